package testing

import (
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/minio/blake2b-simd"
	"github.com/stretchr/testify/require"
)

// NewPubKey returns a deterministic public key for a name, for use as a wallet or mint.
func NewPubKey(name string) solana.PublicKey {
	return solana.PublicKeyFromBytes(blake2bKey(name))
}

// NewPubKeys returns n distinct deterministic public keys sharing a prefix.
func NewPubKeys(prefix string, n int) []solana.PublicKey {
	keys := make([]solana.PublicKey, n)
	for i := range keys {
		keys[i] = NewPubKey(fmt.Sprintf("%s-%d", prefix, i))
	}
	return keys
}

// NewProgramAddress derives a program address from seeds with a bump search.
func NewProgramAddress(t testing.TB, programID solana.PublicKey, seeds ...[]byte) (solana.PublicKey, uint8) {
	address, bump, err := solana.FindProgramAddress(seeds, programID)
	require.NoError(t, err)
	return address, bump
}

// NewTokenAddress derives the associated token account of wallet for mint.
func NewTokenAddress(t testing.TB, wallet, mint solana.PublicKey) solana.PublicKey {
	address, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	require.NoError(t, err)
	return address
}

func blake2bKey(name string) []byte {
	sum := blake2b.Sum256([]byte(name))
	return sum[:]
}

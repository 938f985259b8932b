package vm

import (
	"context"
	"strings"
	"testing"

	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	"github.com/tokenvest/vesting-actors/actors/builtin"
	"github.com/tokenvest/vesting-actors/actors/builtin/vesting"
	"github.com/tokenvest/vesting-actors/actors/runtime"
	"github.com/tokenvest/vesting-actors/actors/serde"
	"github.com/tokenvest/vesting-actors/support/ipld"
)

//
// Genesis like setup
//

// Creates a new VM over an in-memory store, dispatching to the given programs.
func NewVMWithPrograms(ctx context.Context, t testing.TB, programs ...runtime.Invokee) *VM {
	v, err := NewVM(ctx, ipld.NewADTStore(ctx), programs...)
	require.NoError(t, err)
	return v
}

// Creates a mint and, for each owner, its associated token account funded with balance.
func CreateTokenAccounts(t testing.TB, v *VM, mint solana.PublicKey, decimals uint8, balance uint64, owners ...solana.PublicKey) []solana.PublicKey {
	if _, err := v.GetMint(mint); err != nil {
		require.NoError(t, v.CreateMint(mint, decimals))
	}
	accounts := make([]solana.PublicKey, len(owners))
	for i, owner := range owners {
		key, err := v.CreateAssociatedTokenAccount(owner, mint)
		require.NoError(t, err)
		if balance > 0 {
			require.NoError(t, v.MintTo(key, balance))
		}
		accounts[i] = key
	}
	return accounts
}

//
// Invocation expectations
//

// Applies an instruction, requiring success.
func ApplyOk(t testing.TB, v *VM, ix solana.Instruction) ApplyResult {
	return ApplyCode(t, v, ix, exitcode.Ok)
}

// Applies an instruction, requiring it to exit with code.
func ApplyCode(t testing.TB, v *VM, ix solana.Instruction, code exitcode.ExitCode) ApplyResult {
	result := v.ApplyInstruction(ix)
	require.Equal(t, code, result.Code, "unexpected exit code: %s", result.Message)
	return result
}

// Requires the token balance of an account.
func RequireBalance(t testing.TB, v *VM, key solana.PublicKey, expected uint64) {
	balance, err := v.GetTokenBalance(key)
	require.NoError(t, err)
	require.Equal(t, expected, balance, "balance of %s", key)
}

//
// Invariants
//

// Checks every grant held by a vesting program, and that each grant's vault is its token account.
func CheckStateInvariants(v *VM, programID solana.PublicKey) (*builtin.MessageAccumulator, error) {
	acc := &builtin.MessageAccumulator{}
	err := v.ForEachAccount(programID, func(key solana.PublicKey, record *AccountRecord) error {
		grantAcc := acc.WithPrefix("grant %s: ", key)
		var st vesting.State
		if err := serde.Deserialize(record.Data, &st); err != nil {
			grantAcc.Addf("failed to decode: %v", err)
			return nil
		}
		_, msgs := vesting.CheckStateInvariants(&st, programID, key)
		grantAcc.AddAll(msgs)

		vault, err := vesting.FindVaultAddress(key, st.Mint)
		if err != nil {
			return err
		}
		account, found, err := v.GetTokenAccount(vault)
		if err != nil {
			return err
		}
		if grantAcc.Require(found, "vault %s missing", vault); found {
			grantAcc.Require(account.Owner.Equals(key), "vault %s owned by %s", vault, account.Owner)
			grantAcc.Require(account.Mint.Equals(st.Mint), "vault %s holds mint %s, grant mint %s", vault, account.Mint, st.Mint)
		}
		return nil
	})
	return acc, err
}

// Requires every grant of a program to satisfy its invariants.
func RequireStateInvariants(t testing.TB, v *VM, programID solana.PublicKey) {
	msgs, err := CheckStateInvariants(v, programID)
	require.NoError(t, err)
	require.True(t, msgs.IsEmpty(), "%s", strings.Join(msgs.Messages(), "\n"))
}

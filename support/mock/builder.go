package mock

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/tokenvest/vesting-actors/actors/runtime"
)

// Build for fluent initialization of a mock runtime.
type RuntimeBuilder struct {
	rt *Runtime
}

// Initializes a new builder with a receiving program id.
func NewBuilder(ctx context.Context, receiver solana.PublicKey) *RuntimeBuilder {
	m := &Runtime{
		ctx:      ctx,
		time:     0,
		receiver: receiver,

		owners: make(map[solana.PublicKey]solana.PublicKey),
		store:  make(map[solana.PublicKey][]byte),

		tokenAccounts: make(map[solana.PublicKey]runtime.TokenAccount),
		decimals:      make(map[solana.PublicKey]uint8),

		t:                   nil, // Initialized at Build()
		expectCreateAccount: nil,
		expectTransfers:     make([]*expectTransfer, 0),
	}
	return &RuntimeBuilder{m}
}

// Builds a new runtime object with the configured values.
func (b *RuntimeBuilder) Build(t testing.TB) *Runtime {
	cpy := *b.rt

	// Deep copy the mutable values.
	s := b.rt.snapshot()
	cpy.owners, cpy.store, cpy.tokenAccounts = s.owners, s.store, s.tokenAccounts
	cpy.decimals = make(map[solana.PublicKey]uint8, len(b.rt.decimals))
	for k, v := range b.rt.decimals {
		cpy.decimals[k] = v
	}

	cpy.t = t
	return &cpy
}

func (b *RuntimeBuilder) WithTime(now int64) *RuntimeBuilder {
	b.rt.time = now
	return b
}

func (b *RuntimeBuilder) WithMint(mint solana.PublicKey, decimals uint8) *RuntimeBuilder {
	b.rt.decimals[mint] = decimals
	return b
}

func (b *RuntimeBuilder) WithTokenAccount(key, owner, mint solana.PublicKey, amount uint64) *RuntimeBuilder {
	b.rt.tokenAccounts[key] = runtime.TokenAccount{Mint: mint, Owner: owner, Amount: amount}
	return b
}

func (b *RuntimeBuilder) WithAccountData(key, owner solana.PublicKey, data []byte) *RuntimeBuilder {
	b.rt.owners[key] = owner
	b.rt.store[key] = data
	return b
}

package vesting

import (
	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/builtin"
	"github.com/tokenvest/vesting-actors/actors/runtime"
)

// Each check aborts the instruction on failure. None of them mutate state.

func requireAccounts(rt runtime.Runtime, n int) []*solana.AccountMeta {
	accounts := rt.Message().Accounts()
	builtin.RequireParam(rt, len(accounts) >= n, "instruction needs %d accounts, got %d", n, len(accounts))
	for i, a := range accounts[:n] {
		builtin.RequireParam(rt, a != nil, "account %d is missing", i)
	}
	return accounts[:n]
}

func requireSigner(rt runtime.Runtime, account *solana.AccountMeta, role string) {
	if !account.IsSigner {
		rt.Abortf(ErrMissingSignature, "%s %s must sign", role, account.PublicKey)
	}
}

func requireProgram(rt runtime.Runtime, account *solana.AccountMeta, expected solana.PublicKey, name string) {
	builtin.RequireParam(rt, account.PublicKey.Equals(expected), "%s account %s is not %s", name, account.PublicKey, expected)
}

// Loads a grant, requiring its account to be owned by the executing program.
func loadGrant(rt runtime.Runtime, grant solana.PublicKey) State {
	owner, ok := rt.AccountOwner(grant)
	if !ok {
		rt.Abortf(ErrInvalidOwner, "grant %s holds no data", grant)
	}
	if !owner.Equals(rt.Message().Receiver()) {
		rt.Abortf(ErrInvalidOwner, "grant %s is owned by %s, not by this program", grant, owner)
	}
	var st State
	rt.State(grant).Readonly(&st)
	return st
}

func requireFieldMatch(rt runtime.Runtime, field string, supplied, stored solana.PublicKey) {
	if !supplied.Equals(stored) {
		rt.Abortf(ErrFieldMismatch, "%s %s does not match grant %s %s", field, supplied, field, stored)
	}
}

// Re-derives an address under the executing program from seeds (bump included).
func requireDerivedAddress(rt runtime.Runtime, seeds [][]byte, expected solana.PublicKey, what string) {
	derived, err := rt.Syscalls().CreateProgramAddress(seeds, rt.Message().Receiver())
	if err != nil {
		rt.Abortf(ErrAddressDerivationMismatch, "failed to derive %s address: %s", what, err)
	}
	if !derived.Equals(expected) {
		rt.Abortf(ErrAddressDerivationMismatch, "%s %s does not match derived address %s", what, expected, derived)
	}
}

// Requires the vault to be the grant's associated token account for the grant mint, with the grant
// as token owner. Returns the vault balance.
func requireVault(rt runtime.Runtime, grant solana.PublicKey, st *State, vault solana.PublicKey) uint64 {
	expected, err := rt.Syscalls().AssociatedTokenAddress(grant, st.Mint)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to derive vault of grant %s", grant)
	if !vault.Equals(expected) {
		rt.Abortf(ErrFieldMismatch, "vault %s is not the token account %s of grant %s", vault, expected, grant)
	}

	account := loadTokenAccount(rt, vault, "vault")
	if !account.Owner.Equals(grant) {
		rt.Abortf(ErrFieldMismatch, "vault %s is owned by %s, not grant %s", vault, account.Owner, grant)
	}
	if !account.Mint.Equals(st.Mint) {
		rt.Abortf(ErrFieldMismatch, "vault %s holds mint %s, not %s", vault, account.Mint, st.Mint)
	}

	balance, err := rt.Tokens().BalanceOf(vault)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to read balance of vault %s", vault)
	return balance
}

// Requires a counterparty holding account to be a token account of the grant mint owned by owner.
// The vault is owned by the grant, so it never passes for the admin's or beneficiary's holding.
func requireHolder(rt runtime.Runtime, key solana.PublicKey, owner, mint solana.PublicKey, role string) {
	account := loadTokenAccount(rt, key, role+" token account")
	if !account.Owner.Equals(owner) {
		rt.Abortf(ErrFieldMismatch, "%s token account %s is owned by %s, not %s", role, key, account.Owner, owner)
	}
	if !account.Mint.Equals(mint) {
		rt.Abortf(ErrFieldMismatch, "%s token account %s holds mint %s, not %s", role, key, account.Mint, mint)
	}
}

// A token account that does not exist is a mismatched account, not a host failure.
func loadTokenAccount(rt runtime.Runtime, key solana.PublicKey, what string) runtime.TokenAccount {
	account, err := rt.Tokens().Account(key)
	if xerrors.Is(err, exitcode.ErrNotFound) {
		rt.Abortf(ErrFieldMismatch, "%s %s does not exist: %s", what, key, err)
	}
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to load %s %s", what, key)
	return account
}

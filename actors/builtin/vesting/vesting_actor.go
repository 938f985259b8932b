package vesting

import (
	"math"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/gagliardetto/solana-go"

	"github.com/tokenvest/vesting-actors/actors/builtin"
	"github.com/tokenvest/vesting-actors/actors/runtime"
)

// Exit codes of the vesting program.
const (
	ErrInvalidArgument  = exitcode.ErrIllegalArgument
	ErrMissingSignature = exitcode.ErrForbidden
)

const (
	ErrInvalidOpcode = exitcode.ExitCode(32) + iota
	ErrInvalidOwner
	ErrFieldMismatch
	ErrAddressDerivationMismatch
	ErrAlreadyExists
	ErrAlreadyFunded
	ErrNotFunded
	ErrNothingToClaim
	ErrOverflow
)

type Actor struct {
	// Program id the actor is deployed at. Zero means builtin.VestingProgramID.
	ID solana.PublicKey
}

func (a Actor) ProgramID() solana.PublicKey {
	if a.ID.IsZero() {
		return builtin.VestingProgramID
	}
	return a.ID
}

var _ runtime.Invokee = Actor{}

func (a Actor) Invoke(rt runtime.Runtime) {
	ix, err := DecodeInstruction(rt.Message().Data())
	builtin.RequireNoErr(rt, err, ErrInvalidArgument, "failed to decode instruction")

	switch params := ix.(type) {
	case *CreateVestingParams:
		a.CreateVesting(rt, params)
	case *DepositParams:
		a.Deposit(rt, params)
	case *ClaimParams:
		a.Claim(rt, params)
	default:
		rt.Abortf(ErrInvalidOpcode, "unhandled instruction %T", ix)
	}
}

// Accounts: [admin(signer, writable), beneficiary, mint, grant(writable), system program]
func (a Actor) CreateVesting(rt runtime.Runtime, params *CreateVestingParams) *abi.EmptyValue {
	accounts := requireAccounts(rt, CreateVestingAccounts)
	admin, beneficiary, mint, grant, systemProgram := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	requireSigner(rt, admin, "admin")
	builtin.RequireNoErr(rt, params.ValidateSchedule(), ErrInvalidArgument, "invalid schedule")
	requireProgram(rt, systemProgram, builtin.SystemProgramID, "system program")

	seeds := GrantSeeds(beneficiary.PublicKey, mint.PublicKey, params.Seed, params.Bump)
	requireDerivedAddress(rt, seeds, grant.PublicKey, "grant")

	if _, exists := rt.AccountOwner(grant.PublicKey); exists {
		rt.Abortf(ErrAlreadyExists, "grant %s already exists", grant.PublicKey)
	}
	err := rt.CreateAccount(admin.PublicKey, grant.PublicKey, GrantSize, seeds)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to allocate grant %s", grant.PublicKey)

	st := ConstructState(admin.PublicKey, beneficiary.PublicKey, mint.PublicKey, params)
	rt.State(grant.PublicKey).Create(st)

	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "vesting created: beneficiary=%s, mint=%s, amount=%d, seed=%d",
		st.Beneficiary, st.Mint, st.TotalAmount, st.Seed)
	return nil
}

// Accounts: [admin(signer, writable), mint, grant, vault(writable), admin token account(writable), token program]
func (a Actor) Deposit(rt runtime.Runtime, _ *DepositParams) *abi.EmptyValue {
	accounts := requireAccounts(rt, DepositAccounts)
	admin, mint, grant, vault, adminTokenAccount, tokenProgram := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4], accounts[5]

	requireSigner(rt, admin, "admin")
	requireProgram(rt, tokenProgram, builtin.TokenProgramID, "token program")

	st := loadGrant(rt, grant.PublicKey)
	requireFieldMatch(rt, "admin", admin.PublicKey, st.Admin)
	requireFieldMatch(rt, "mint", mint.PublicKey, st.Mint)

	balance := requireVault(rt, grant.PublicKey, &st, vault.PublicKey)
	requireHolder(rt, adminTokenAccount.PublicKey, st.Admin, st.Mint, "admin")
	if balance != 0 {
		rt.Abortf(ErrAlreadyFunded, "vault %s already holds %d", vault.PublicKey, balance)
	}

	decimals, err := rt.Tokens().DecimalsOf(st.Mint)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to read decimals of mint %s", st.Mint)

	err = rt.Tokens().TransferChecked(adminTokenAccount.PublicKey, st.Mint, vault.PublicKey, admin.PublicKey,
		st.TotalAmount, decimals, nil)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to deposit %d into vault %s", st.TotalAmount, vault.PublicKey)

	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "deposited %d tokens into vault for vesting %s", st.TotalAmount, grant.PublicKey)
	return nil
}

// Accounts: [beneficiary(signer, writable), mint, grant(writable), vault(writable), beneficiary token account(writable), token program]
func (a Actor) Claim(rt runtime.Runtime, _ *ClaimParams) *abi.EmptyValue {
	accounts := requireAccounts(rt, ClaimAccounts)
	beneficiary, mint, grant, vault, beneficiaryTokenAccount, tokenProgram := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4], accounts[5]

	requireSigner(rt, beneficiary, "beneficiary")
	requireProgram(rt, tokenProgram, builtin.TokenProgramID, "token program")

	st := loadGrant(rt, grant.PublicKey)
	requireFieldMatch(rt, "beneficiary", beneficiary.PublicKey, st.Beneficiary)
	requireFieldMatch(rt, "mint", mint.PublicKey, st.Mint)
	// The grant address is the vault's signing authority.
	requireDerivedAddress(rt, st.SignerSeeds(), grant.PublicKey, "vault authority")

	balance := requireVault(rt, grant.PublicKey, &st, vault.PublicKey)
	requireHolder(rt, beneficiaryTokenAccount.PublicKey, st.Beneficiary, st.Mint, "beneficiary")
	if st.Dormant() {
		rt.Abortf(ErrNothingToClaim, "grant %s fully released: %d of %d", grant.PublicKey, st.ReleasedAmount, st.TotalAmount)
	}
	if balance == 0 {
		rt.Abortf(ErrNotFunded, "vault %s is empty", vault.PublicKey)
	}

	now := rt.UnixTimestamp()
	claimable := ClaimableAmount(&st, now)
	if claimable == 0 {
		rt.Abortf(ErrNothingToClaim, "nothing to claim at %d: released %d of %d", now, st.ReleasedAmount, st.TotalAmount)
	}
	builtin.RequireState(rt, claimable <= st.Locked(), "claimable %d exceeds locked %d", claimable, st.Locked())

	decimals, err := rt.Tokens().DecimalsOf(st.Mint)
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to read decimals of mint %s", st.Mint)

	// The host discards this transfer if the ledger update below aborts.
	err = rt.Tokens().TransferChecked(vault.PublicKey, st.Mint, beneficiaryTokenAccount.PublicKey, grant.PublicKey,
		claimable, decimals, st.SignerSeeds())
	builtin.RequireNoErr(rt, err, exitcode.ErrIllegalState, "failed to transfer %d from vault %s", claimable, vault.PublicKey)

	rt.State(grant.PublicKey).Transaction(&st, func() {
		if st.ReleasedAmount > math.MaxUint64-claimable {
			rt.Abortf(ErrOverflow, "released amount %d + %d overflows", st.ReleasedAmount, claimable)
		}
		st.ReleasedAmount += claimable
	})

	rt.Log(builtin.GetActorLogLevel(a, rtt.INFO), "claimed %d tokens, total released: %d/%d",
		claimable, st.ReleasedAmount, st.TotalAmount)
	return nil
}

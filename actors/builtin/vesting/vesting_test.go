package vesting_test

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenvest/vesting-actors/actors/builtin"
	"github.com/tokenvest/vesting-actors/actors/builtin/vesting"
	"github.com/tokenvest/vesting-actors/actors/runtime"
	"github.com/tokenvest/vesting-actors/actors/serde"
	"github.com/tokenvest/vesting-actors/support/mock"
	tutil "github.com/tokenvest/vesting-actors/support/testing"
)

const mintDecimals = uint8(6)

func TestCreateVesting(t *testing.T) {
	t.Run("simple construction", func(t *testing.T) {
		rt, actor := newHarness(t)
		st := actor.createAndVerify(rt)

		assert.Equal(t, actor.admin, st.Admin)
		assert.Equal(t, actor.beneficiary, st.Beneficiary)
		assert.Equal(t, actor.mint, st.Mint)
		assert.Equal(t, uint64(1000), st.TotalAmount)
		assert.Equal(t, uint64(0), st.ReleasedAmount)
		assert.Equal(t, int64(0), st.StartTime)
		assert.Equal(t, int64(100), st.CliffTime)
		assert.Equal(t, int64(1000), st.EndTime)
		assert.Equal(t, uint64(7), st.Seed)
		assert.Equal(t, actor.params.Bump, st.Bump)

		data, found := rt.GetAccountData(actor.grant)
		require.True(t, found)
		assert.Len(t, data, vesting.GrantSize)
		actor.checkState(rt)
	})

	t.Run("cliff equal to start and end", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.params.CliffTime = actor.params.StartTime
		actor.createAndVerify(rt)

		rt, actor = newHarness(t)
		actor.params.CliffTime = actor.params.EndTime
		actor.createAndVerify(rt)
	})

	t.Run("too few accounts", func(t *testing.T) {
		rt, actor := newHarness(t)
		rt.SetAccounts(actor.createMetas()[:4]...)
		rt.ExpectAbort(vesting.ErrInvalidArgument, func() {
			rt.Call(actor.CreateVesting, &actor.params)
		})
	})

	t.Run("admin must sign", func(t *testing.T) {
		rt, actor := newHarness(t)
		metas := actor.createMetas()
		metas[0].IsSigner = false
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrMissingSignature, func() {
			rt.Call(actor.CreateVesting, &actor.params)
		})
	})

	t.Run("signature is checked before the schedule", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.params.TotalAmount = 0
		metas := actor.createMetas()
		metas[0].IsSigner = false
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrMissingSignature, func() {
			rt.Call(actor.CreateVesting, &actor.params)
		})
	})

	for name, mutate := range map[string]func(p *vesting.CreateVestingParams){
		"zero total":           func(p *vesting.CreateVestingParams) { p.TotalAmount = 0 },
		"cliff before start":   func(p *vesting.CreateVestingParams) { p.CliffTime = p.StartTime - 1 },
		"cliff after end":      func(p *vesting.CreateVestingParams) { p.CliffTime = p.EndTime + 1 },
		"start equals end":     func(p *vesting.CreateVestingParams) { p.StartTime, p.CliffTime, p.EndTime = 500, 500, 500 },
		"start after end":      func(p *vesting.CreateVestingParams) { p.StartTime, p.CliffTime, p.EndTime = 900, 900, 100 },
		"negative time window": func(p *vesting.CreateVestingParams) { p.StartTime, p.CliffTime, p.EndTime = -10, -20, -5 },
	} {
		mutate := mutate
		t.Run("invalid schedule: "+name, func(t *testing.T) {
			rt, actor := newHarness(t)
			mutate(&actor.params)
			rt.SetAccounts(actor.createMetas()...)
			rt.ExpectAbort(vesting.ErrInvalidArgument, func() {
				rt.Call(actor.CreateVesting, &actor.params)
			})
			_, found := rt.GetAccountData(actor.grant)
			assert.False(t, found)
		})
	}

	t.Run("wrong system program", func(t *testing.T) {
		rt, actor := newHarness(t)
		metas := actor.createMetas()
		metas[4] = solana.Meta(builtin.TokenProgramID)
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrInvalidArgument, func() {
			rt.Call(actor.CreateVesting, &actor.params)
		})
	})

	t.Run("grant address not derived from the seeds", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.params.Seed++
		rt.SetAccounts(actor.createMetas()...)
		rt.ExpectAbort(vesting.ErrAddressDerivationMismatch, func() {
			rt.Call(actor.CreateVesting, &actor.params)
		})
	})

	t.Run("grant for another beneficiary", func(t *testing.T) {
		rt, actor := newHarness(t)
		metas := actor.createMetas()
		metas[1] = solana.Meta(tutil.NewPubKey("someone-else"))
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrAddressDerivationMismatch, func() {
			rt.Call(actor.CreateVesting, &actor.params)
		})
	})

	t.Run("grant already exists", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)

		rt.SetAccounts(actor.createMetas()...)
		rt.ExpectAbort(vesting.ErrAlreadyExists, func() {
			rt.Call(actor.CreateVesting, &actor.params)
		})
		rt.Verify()
		actor.checkState(rt)
	})
}

func TestDeposit(t *testing.T) {
	t.Run("deposit moves the total into the vault", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)

		assert.Equal(t, uint64(1000), rt.GetTokenBalance(actor.vault))
		assert.Equal(t, uint64(4000), rt.GetTokenBalance(actor.adminTokens))
	})

	t.Run("vault already funded", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.setVault(rt, actor.grant, actor.mint, 1)

		rt.SetAccounts(actor.depositMetas()...)
		rt.ExpectAbort(vesting.ErrAlreadyFunded, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
		rt.Verify()
	})

	t.Run("admin must sign", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		metas := actor.depositMetas()
		metas[0].IsSigner = false
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrMissingSignature, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
	})

	t.Run("too few accounts", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		rt.SetAccounts(actor.depositMetas()[:5]...)
		rt.ExpectAbort(vesting.ErrInvalidArgument, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
	})

	t.Run("wrong token program", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		metas := actor.depositMetas()
		metas[5] = solana.Meta(builtin.SystemProgramID)
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrInvalidArgument, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
	})

	t.Run("grant not created", func(t *testing.T) {
		rt, actor := newHarness(t)
		rt.SetAccounts(actor.depositMetas()...)
		rt.ExpectAbort(vesting.ErrInvalidOwner, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
	})

	t.Run("admin does not match the grant", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		metas := actor.depositMetas()
		metas[0] = solana.Meta(tutil.NewPubKey("mallory")).WRITE().SIGNER()
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
	})

	t.Run("mint does not match the grant", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		metas := actor.depositMetas()
		metas[1] = solana.Meta(tutil.NewPubKey("other-mint"))
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
	})

	t.Run("vault is not the grant's token account", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		metas := actor.depositMetas()
		metas[3] = solana.Meta(actor.beneficiaryTokens).WRITE()
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
	})

	for name, source := range map[string]func(h *actorHarness) solana.PublicKey{
		"source is the vault":             func(h *actorHarness) solana.PublicKey { return h.vault },
		"source owned by the beneficiary": func(h *actorHarness) solana.PublicKey { return h.beneficiaryTokens },
		"source is not a token account":   func(h *actorHarness) solana.PublicKey { return tutil.NewPubKey("nowhere") },
	} {
		source := source
		t.Run(name, func(t *testing.T) {
			rt, actor := newHarness(t)
			actor.createAndVerify(rt)
			metas := actor.depositMetas()
			metas[4] = solana.Meta(source(actor)).WRITE()
			rt.SetAccounts(metas...)
			rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
				rt.Call(actor.Deposit, &vesting.DepositParams{})
			})
			rt.Verify()
			assert.Equal(t, uint64(0), rt.GetTokenBalance(actor.vault))
			assert.Equal(t, uint64(5000), rt.GetTokenBalance(actor.adminTokens))
		})
	}

	t.Run("source holds another token", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		other := tutil.NewPubKey("admin-other-tokens")
		rt.SetTokenAccount(other, runtime.TokenAccount{Mint: tutil.NewPubKey("other-mint"), Owner: actor.admin, Amount: 5000})

		metas := actor.depositMetas()
		metas[4] = solana.Meta(other).WRITE()
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
	})

	t.Run("failed transfer aborts the deposit", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		rt.SetAccounts(actor.depositMetas()...)
		rt.ExpectTransfer(actor.adminTokens, actor.mint, actor.vault, actor.admin, 1000, mintDecimals, nil, exitcode.ErrInsufficientFunds)
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(actor.Deposit, &vesting.DepositParams{})
		})
		rt.Verify()
		assert.Equal(t, uint64(0), rt.GetTokenBalance(actor.vault))
	})
}

func TestClaim(t *testing.T) {
	t.Run("linear release over the schedule", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)

		rt.SetTime(550)
		actor.claimAndVerify(rt, 550)
		assert.Equal(t, uint64(450), rt.GetTokenBalance(actor.vault))
		assert.Equal(t, uint64(550), rt.GetTokenBalance(actor.beneficiaryTokens))

		rt.SetTime(1000)
		st := actor.claimAndVerify(rt, 450)
		assert.True(t, st.Dormant())
		assert.Equal(t, uint64(0), rt.GetTokenBalance(actor.vault))
		assert.Equal(t, uint64(1000), rt.GetTokenBalance(actor.beneficiaryTokens))

		// The vault is drained too, but a fully released grant has nothing to claim whatever its vault holds.
		rt.SetTime(2000)
		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectAbort(vesting.ErrNothingToClaim, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
		actor.checkState(rt)
	})

	t.Run("claim at the cliff", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)

		rt.SetTime(100)
		actor.claimAndVerify(rt, 100)
	})

	t.Run("nothing released before the cliff", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)

		rt.SetTime(99)
		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectAbort(vesting.ErrNothingToClaim, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
		rt.Verify()
	})

	t.Run("repeated claim at the same time", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)

		rt.SetTime(300)
		actor.claimAndVerify(rt, 300)
		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectAbort(vesting.ErrNothingToClaim, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("vault not funded", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)

		rt.SetTime(500)
		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectAbort(vesting.ErrNotFunded, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("vault missing", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		rt.SetTime(500)

		rt.SetAccounts(actor.claimMetas()...)
		actor.removeVault(rt)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("beneficiary must sign", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)
		rt.SetTime(500)

		metas := actor.claimMetas()
		metas[0].IsSigner = false
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrMissingSignature, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("too few accounts", func(t *testing.T) {
		rt, actor := newHarness(t)
		rt.SetAccounts(actor.claimMetas()[:3]...)
		rt.ExpectAbort(vesting.ErrInvalidArgument, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("wrong token program", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)
		rt.SetTime(500)

		metas := actor.claimMetas()
		metas[5] = solana.Meta(tutil.NewPubKey("fake-token-program"))
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrInvalidArgument, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("beneficiary does not match the grant", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)
		rt.SetTime(500)

		metas := actor.claimMetas()
		metas[0] = solana.Meta(tutil.NewPubKey("mallory")).WRITE().SIGNER()
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
		assert.Equal(t, uint64(1000), rt.GetTokenBalance(actor.vault))
	})

	t.Run("mint does not match the grant", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)
		rt.SetTime(500)

		metas := actor.claimMetas()
		metas[1] = solana.Meta(tutil.NewPubKey("other-mint"))
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("grant owned by another program", func(t *testing.T) {
		rt, actor := newHarness(t)
		st := vesting.ConstructState(actor.admin, actor.beneficiary, actor.mint, &actor.params)
		data, err := serde.Serialize(st)
		require.NoError(t, err)
		rt.SetAccountData(actor.grant, tutil.NewPubKey("impostor"), data)
		actor.setVault(rt, actor.grant, actor.mint, 1000)
		rt.SetTime(500)

		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectAbort(vesting.ErrInvalidOwner, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("stored bump does not derive the grant", func(t *testing.T) {
		rt, actor := newHarness(t)
		st := vesting.ConstructState(actor.admin, actor.beneficiary, actor.mint, &actor.params)
		st.Bump--
		data, err := serde.Serialize(st)
		require.NoError(t, err)
		rt.SetAccountData(actor.grant, builtin.VestingProgramID, data)
		actor.setVault(rt, actor.grant, actor.mint, 1000)
		rt.SetTime(500)

		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectAbort(vesting.ErrAddressDerivationMismatch, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("vault owned by someone else", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.setVault(rt, actor.admin, actor.mint, 1000)
		rt.SetTime(500)

		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("vault holds another token", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.setVault(rt, actor.grant, tutil.NewPubKey("other-mint"), 1000)
		rt.SetTime(500)

		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	for name, dest := range map[string]func(h *actorHarness) solana.PublicKey{
		"destination is the vault":           func(h *actorHarness) solana.PublicKey { return h.vault },
		"destination owned by the admin":     func(h *actorHarness) solana.PublicKey { return h.adminTokens },
		"destination is not a token account": func(h *actorHarness) solana.PublicKey { return tutil.NewPubKey("nowhere") },
	} {
		dest := dest
		t.Run(name, func(t *testing.T) {
			rt, actor := newHarness(t)
			actor.createAndVerify(rt)
			actor.depositAndVerify(rt)
			rt.SetTime(550)

			metas := actor.claimMetas()
			metas[4] = solana.Meta(dest(actor)).WRITE()
			rt.SetAccounts(metas...)
			rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
				rt.Call(actor.Claim, &vesting.ClaimParams{})
			})
			rt.Verify()

			var st vesting.State
			rt.GetState(actor.grant, &st)
			assert.Equal(t, uint64(0), st.ReleasedAmount)
			assert.Equal(t, uint64(1000), rt.GetTokenBalance(actor.vault))
		})
	}

	t.Run("destination holds another token", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)
		rt.SetTime(550)
		other := tutil.NewPubKey("beneficiary-other-tokens")
		rt.SetTokenAccount(other, runtime.TokenAccount{Mint: tutil.NewPubKey("other-mint"), Owner: actor.beneficiary})

		metas := actor.claimMetas()
		metas[4] = solana.Meta(other).WRITE()
		rt.SetAccounts(metas...)
		rt.ExpectAbort(vesting.ErrFieldMismatch, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
	})

	t.Run("failed transfer leaves the ledger unchanged", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)
		rt.SetTime(500)

		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectTransfer(actor.vault, actor.mint, actor.beneficiaryTokens, actor.grant, 500, mintDecimals,
			actor.seeds(), exitcode.ErrInsufficientFunds)
		rt.ExpectAbort(exitcode.ErrInsufficientFunds, func() {
			rt.Call(actor.Claim, &vesting.ClaimParams{})
		})
		rt.Verify()

		var st vesting.State
		rt.GetState(actor.grant, &st)
		assert.Equal(t, uint64(0), st.ReleasedAmount)
		assert.Equal(t, uint64(1000), rt.GetTokenBalance(actor.vault))
	})

	t.Run("released only grows", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)

		var prev uint64
		for _, now := range []int64{150, 151, 400, 401, 999, 1000} {
			rt.SetTime(now)
			st := actor.claimAndVerify(rt, vesting.ReleasedAmount(1000, 0, 100, 1000, now)-prev)
			assert.Greater(t, st.ReleasedAmount, prev)
			prev = st.ReleasedAmount
		}
		assert.Equal(t, uint64(1000), prev)
	})
}

func TestInvoke(t *testing.T) {
	t.Run("dispatches create vesting", func(t *testing.T) {
		rt, actor := newHarness(t)
		data, err := vesting.EncodeInstruction(&actor.params)
		require.NoError(t, err)

		rt.SetData(data)
		rt.SetAccounts(actor.createMetas()...)
		rt.ExpectCreateAccount(actor.admin, actor.grant, vesting.GrantSize, actor.seeds())
		rt.ExpectLogsContain("vesting created")
		rt.Invoke(actor)
		rt.Verify()
		actor.checkState(rt)
	})

	t.Run("dispatches claim", func(t *testing.T) {
		rt, actor := newHarness(t)
		actor.createAndVerify(rt)
		actor.depositAndVerify(rt)
		rt.SetTime(1000)

		rt.SetData([]byte{byte(builtin.MethodsVesting.Claim)})
		rt.SetAccounts(actor.claimMetas()...)
		rt.ExpectTransfer(actor.vault, actor.mint, actor.beneficiaryTokens, actor.grant, 1000, mintDecimals, actor.seeds(), exitcode.Ok)
		rt.Invoke(actor)
		rt.Verify()
	})

	for name, tc := range map[string]struct {
		data []byte
		code exitcode.ExitCode
	}{
		"empty data":     {nil, vesting.ErrInvalidOpcode},
		"unknown opcode": {[]byte{3}, vesting.ErrInvalidOpcode},
		"short payload":  {append([]byte{0}, make([]byte, vesting.CreateVestingPayloadSize-1)...), vesting.ErrInvalidArgument},
	} {
		tc := tc
		t.Run(name, func(t *testing.T) {
			rt, actor := newHarness(t)
			rt.SetData(tc.data)
			rt.SetAccounts(actor.createMetas()...)
			rt.ExpectAbort(tc.code, func() {
				rt.Invoke(actor)
			})
		})
	}
}

//
// Harness
//

type actorHarness struct {
	vesting.Actor
	t testing.TB

	admin, beneficiary, mint       solana.PublicKey
	grant, vault                   solana.PublicKey
	adminTokens, beneficiaryTokens solana.PublicKey
	params                         vesting.CreateVestingParams
}

// A grant of 1000 units released linearly over [0, 1000] with a cliff at 100.
func newHarness(t *testing.T) (*mock.Runtime, *actorHarness) {
	h := &actorHarness{
		t:           t,
		admin:       tutil.NewPubKey("admin"),
		beneficiary: tutil.NewPubKey("beneficiary"),
		mint:        tutil.NewPubKey("mint"),
	}
	grant, bump, err := vesting.FindGrantAddress(builtin.VestingProgramID, h.beneficiary, h.mint, 7)
	require.NoError(t, err)
	h.grant = grant
	h.vault = tutil.NewTokenAddress(t, h.grant, h.mint)
	h.adminTokens = tutil.NewTokenAddress(t, h.admin, h.mint)
	h.beneficiaryTokens = tutil.NewTokenAddress(t, h.beneficiary, h.mint)
	h.params = vesting.CreateVestingParams{
		Seed:        7,
		TotalAmount: 1000,
		StartTime:   0,
		CliffTime:   100,
		EndTime:     1000,
		Bump:        bump,
	}
	return h.builder().Build(t), h
}

func (h *actorHarness) builder() *mock.RuntimeBuilder {
	return mock.NewBuilder(context.Background(), builtin.VestingProgramID).
		WithMint(h.mint, mintDecimals).
		WithTokenAccount(h.adminTokens, h.admin, h.mint, 5000).
		WithTokenAccount(h.beneficiaryTokens, h.beneficiary, h.mint, 0).
		WithTokenAccount(h.vault, h.grant, h.mint, 0)
}

func (h *actorHarness) seeds() [][]byte {
	return vesting.GrantSeeds(h.beneficiary, h.mint, h.params.Seed, h.params.Bump)
}

func (h *actorHarness) createMetas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.Meta(h.admin).WRITE().SIGNER(),
		solana.Meta(h.beneficiary),
		solana.Meta(h.mint),
		solana.Meta(h.grant).WRITE(),
		solana.Meta(builtin.SystemProgramID),
	}
}

func (h *actorHarness) depositMetas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.Meta(h.admin).WRITE().SIGNER(),
		solana.Meta(h.mint),
		solana.Meta(h.grant),
		solana.Meta(h.vault).WRITE(),
		solana.Meta(h.adminTokens).WRITE(),
		solana.Meta(builtin.TokenProgramID),
	}
}

func (h *actorHarness) claimMetas() []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.Meta(h.beneficiary).WRITE().SIGNER(),
		solana.Meta(h.mint),
		solana.Meta(h.grant).WRITE(),
		solana.Meta(h.vault).WRITE(),
		solana.Meta(h.beneficiaryTokens).WRITE(),
		solana.Meta(builtin.TokenProgramID),
	}
}

func (h *actorHarness) setVault(rt *mock.Runtime, owner, mint solana.PublicKey, amount uint64) {
	rt.SetTokenAccount(h.vault, runtime.TokenAccount{Mint: mint, Owner: owner, Amount: amount})
}

func (h *actorHarness) removeVault(rt *mock.Runtime) {
	rt.RemoveTokenAccount(h.vault)
}

func (h *actorHarness) createAndVerify(rt *mock.Runtime) *vesting.State {
	rt.SetAccounts(h.createMetas()...)
	rt.ExpectCreateAccount(h.admin, h.grant, vesting.GrantSize, h.seeds())
	rt.ExpectLogsContain("vesting created")
	ret := rt.Call(h.CreateVesting, &h.params)
	assert.Nil(h.t, ret)
	rt.Verify()

	var st vesting.State
	rt.GetState(h.grant, &st)
	return &st
}

func (h *actorHarness) depositAndVerify(rt *mock.Runtime) {
	rt.SetAccounts(h.depositMetas()...)
	rt.ExpectTransfer(h.adminTokens, h.mint, h.vault, h.admin, h.params.TotalAmount, mintDecimals, nil, exitcode.Ok)
	rt.ExpectLogsContain("deposited")
	rt.Call(h.Deposit, &vesting.DepositParams{})
	rt.Verify()
}

func (h *actorHarness) claimAndVerify(rt *mock.Runtime, expected uint64) *vesting.State {
	var before vesting.State
	rt.GetState(h.grant, &before)

	rt.SetAccounts(h.claimMetas()...)
	rt.ExpectTransfer(h.vault, h.mint, h.beneficiaryTokens, h.grant, expected, mintDecimals, h.seeds(), exitcode.Ok)
	rt.ExpectLogsContain("claimed")
	rt.Call(h.Claim, &vesting.ClaimParams{})
	rt.Verify()

	var st vesting.State
	rt.GetState(h.grant, &st)
	assert.Equal(h.t, before.ReleasedAmount+expected, st.ReleasedAmount)
	h.checkState(rt)
	return &st
}

func (h *actorHarness) checkState(rt *mock.Runtime) {
	var st vesting.State
	rt.GetState(h.grant, &st)
	_, msgs := vesting.CheckStateInvariants(&st, rt.GetReceiver(), h.grant)
	assert.True(h.t, msgs.IsEmpty(), msgs.Messages())
}

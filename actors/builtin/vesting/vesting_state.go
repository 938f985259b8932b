package vesting

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/xerrors"
)

// GrantSize is the size in bytes of an encoded grant record.
const GrantSize = 145

// Byte offsets of the grant record fields. The record carries no tag or length prefix.
const (
	AdminOffset          = 0
	BeneficiaryOffset    = 32
	MintOffset           = 64
	TotalAmountOffset    = 96
	ReleasedAmountOffset = 104
	StartTimeOffset      = 112
	CliffTimeOffset      = 120
	EndTimeOffset        = 128
	SeedOffset           = 136
	BumpOffset           = 144
)

// State is a single vesting grant.
type State struct {
	// The account that created the grant and is allowed to fund it.
	Admin solana.PublicKey
	// The account allowed to claim released tokens.
	Beneficiary solana.PublicKey
	// The token the grant is denominated in.
	Mint solana.PublicKey

	// Total units ever claimable.
	TotalAmount uint64
	// Cumulative units already transferred to the beneficiary. Never decreases.
	ReleasedAmount uint64

	// Schedule boundaries, in unix seconds.
	StartTime int64
	CliffTime int64
	EndTime   int64

	// Distinguishes grants for the same beneficiary and mint.
	Seed uint64
	// Derivation discriminator of the grant address, which is also the vault's signing authority.
	Bump uint8
}

func ConstructState(admin, beneficiary, mint solana.PublicKey, params *CreateVestingParams) *State {
	return &State{
		Admin:          admin,
		Beneficiary:    beneficiary,
		Mint:           mint,
		TotalAmount:    params.TotalAmount,
		ReleasedAmount: 0,
		StartTime:      params.StartTime,
		CliffTime:      params.CliffTime,
		EndTime:        params.EndTime,
		Seed:           params.Seed,
		Bump:           params.Bump,
	}
}

// Released returns the cumulative amount unlocked by the schedule at time now.
func (st *State) Released(now int64) uint64 {
	return ReleasedAmount(st.TotalAmount, st.StartTime, st.CliffTime, st.EndTime, now)
}

// Claimable returns the amount unlocked at time now but not yet transferred.
func (st *State) Claimable(now int64) uint64 {
	return ClaimableAmount(st, now)
}

// Locked returns the amount not yet transferred to the beneficiary.
func (st *State) Locked() uint64 {
	if st.ReleasedAmount > st.TotalAmount {
		return 0
	}
	return st.TotalAmount - st.ReleasedAmount
}

// Dormant reports whether every unit of the grant has been claimed.
func (st *State) Dormant() bool {
	return st.ReleasedAmount >= st.TotalAmount
}

// SignerSeeds returns the seeds (bump included) that reproduce the grant address.
func (st *State) SignerSeeds() [][]byte {
	return GrantSeeds(st.Beneficiary, st.Mint, st.Seed, st.Bump)
}

func (st *State) String() string {
	return fmt.Sprintf("grant{admin=%s beneficiary=%s mint=%s released=%d/%d schedule=[%d,%d,%d] seed=%d bump=%d}",
		st.Admin, st.Beneficiary, st.Mint, st.ReleasedAmount, st.TotalAmount,
		st.StartTime, st.CliffTime, st.EndTime, st.Seed, st.Bump)
}

func (st *State) MarshalWithEncoder(encoder *bin.Encoder) (err error) {
	// Admin
	if err = encoder.Encode(st.Admin); err != nil {
		return err
	}
	// Beneficiary
	if err = encoder.Encode(st.Beneficiary); err != nil {
		return err
	}
	// Mint
	if err = encoder.Encode(st.Mint); err != nil {
		return err
	}
	// TotalAmount
	if err = encoder.Encode(st.TotalAmount); err != nil {
		return err
	}
	// ReleasedAmount
	if err = encoder.Encode(st.ReleasedAmount); err != nil {
		return err
	}
	// StartTime
	if err = encoder.Encode(st.StartTime); err != nil {
		return err
	}
	// CliffTime
	if err = encoder.Encode(st.CliffTime); err != nil {
		return err
	}
	// EndTime
	if err = encoder.Encode(st.EndTime); err != nil {
		return err
	}
	// Seed
	if err = encoder.Encode(st.Seed); err != nil {
		return err
	}
	// Bump
	return encoder.Encode(st.Bump)
}

func (st *State) UnmarshalWithDecoder(decoder *bin.Decoder) (err error) {
	if decoder.Remaining() < GrantSize {
		return xerrors.Errorf("grant record too short: %d bytes, need %d", decoder.Remaining(), GrantSize)
	}
	// Admin
	if err = decoder.Decode(&st.Admin); err != nil {
		return err
	}
	// Beneficiary
	if err = decoder.Decode(&st.Beneficiary); err != nil {
		return err
	}
	// Mint
	if err = decoder.Decode(&st.Mint); err != nil {
		return err
	}
	// TotalAmount
	if err = decoder.Decode(&st.TotalAmount); err != nil {
		return err
	}
	// ReleasedAmount
	if err = decoder.Decode(&st.ReleasedAmount); err != nil {
		return err
	}
	// StartTime
	if err = decoder.Decode(&st.StartTime); err != nil {
		return err
	}
	// CliffTime
	if err = decoder.Decode(&st.CliffTime); err != nil {
		return err
	}
	// EndTime
	if err = decoder.Decode(&st.EndTime); err != nil {
		return err
	}
	// Seed
	if err = decoder.Decode(&st.Seed); err != nil {
		return err
	}
	// Bump
	return decoder.Decode(&st.Bump)
}

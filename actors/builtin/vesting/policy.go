package vesting

import (
	"github.com/filecoin-project/go-state-types/big"
)

// Domain tag prefixing the seeds of every grant address.
var GrantSeedPrefix = []byte("vesting")

// ReleasedAmount computes the cumulative amount unlocked at time now by a linear schedule of total
// units running from start to end, with nothing unlocked before cliff.
// Intermediates are arbitrary precision, so total near 2^64 and long durations cannot overflow.
// The result truncates toward zero and is non-decreasing in now.
func ReleasedAmount(total uint64, start, cliff, end, now int64) uint64 {
	if now < cliff {
		return 0
	}
	if now >= end {
		return total
	}
	elapsed := big.Sub(big.NewInt(now), big.NewInt(start))
	duration := big.Sub(big.NewInt(end), big.NewInt(start))
	if elapsed.Sign() <= 0 || duration.Sign() <= 0 {
		return 0
	}
	released := big.Div(big.Mul(big.NewIntUnsigned(total), elapsed), duration)
	return released.Uint64()
}

// ClaimableAmount is the amount released at time now less what the grant has already paid out,
// clamped at zero.
func ClaimableAmount(st *State, now int64) uint64 {
	released := st.Released(now)
	if released <= st.ReleasedAmount {
		return 0
	}
	return released - st.ReleasedAmount
}

package vesting

import (
	"github.com/gagliardetto/solana-go"

	"github.com/tokenvest/vesting-actors/actors/builtin"
)

type StateSummary struct {
	Released uint64
	Locked   uint64
	Dormant  bool
}

// Checks internal invariants of a grant stored at address grant under programID.
func CheckStateInvariants(st *State, programID, grant solana.PublicKey) (*StateSummary, *builtin.MessageAccumulator) {
	acc := &builtin.MessageAccumulator{}

	acc.Require(st.TotalAmount > 0, "grant total amount is zero")
	acc.Require(st.StartTime <= st.CliffTime, "grant cliff %d before start %d", st.CliffTime, st.StartTime)
	acc.Require(st.CliffTime <= st.EndTime, "grant cliff %d after end %d", st.CliffTime, st.EndTime)
	acc.Require(st.StartTime < st.EndTime, "grant start %d not before end %d", st.StartTime, st.EndTime)
	acc.Require(st.ReleasedAmount <= st.TotalAmount, "grant released %d exceeds total %d", st.ReleasedAmount, st.TotalAmount)

	derived, err := solana.CreateProgramAddress(st.SignerSeeds(), programID)
	if err != nil {
		acc.Addf("grant seeds do not derive an address: %v", err)
	} else {
		acc.Require(derived.Equals(grant), "grant address %s does not match derived address %s", grant, derived)
	}

	return &StateSummary{
		Released: st.ReleasedAmount,
		Locked:   st.Locked(),
		Dormant:  st.Dormant(),
	}, acc
}

package builtin

import (
	"github.com/gagliardetto/solana-go"
)

// The built-in program ids.
var (
	// Placeholder id of the vesting program; deployments override it through the host.
	VestingProgramID = solana.MustPublicKeyFromBase58("VestUKq6zzomKBgTCD3qwswmzNsmDnGBpoDQ2mMGp9X")

	SystemProgramID = solana.SystemProgramID
	TokenProgramID  = solana.TokenProgramID
)

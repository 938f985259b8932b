package main

import (
	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/tokenvest/vesting-actors/actors/builtin/vesting"
)

var codeNames = map[string]exitcode.ExitCode{
	"":                          exitcode.Ok,
	"Ok":                        exitcode.Ok,
	"InvalidArgument":           vesting.ErrInvalidArgument,
	"MissingSignature":          vesting.ErrMissingSignature,
	"InvalidOpcode":             vesting.ErrInvalidOpcode,
	"InvalidOwner":              vesting.ErrInvalidOwner,
	"FieldMismatch":             vesting.ErrFieldMismatch,
	"AddressDerivationMismatch": vesting.ErrAddressDerivationMismatch,
	"AlreadyExists":             vesting.ErrAlreadyExists,
	"AlreadyFunded":             vesting.ErrAlreadyFunded,
	"NotFunded":                 vesting.ErrNotFunded,
	"NothingToClaim":            vesting.ErrNothingToClaim,
	"Overflow":                  vesting.ErrOverflow,
	"InsufficientFunds":         exitcode.ErrInsufficientFunds,
	"NotFound":                  exitcode.ErrNotFound,
}

// ParseCode resolves an exit code by name.
func ParseCode(name string) (exitcode.ExitCode, bool) {
	code, ok := codeNames[name]
	return code, ok
}

// CodeName names an exit code, falling back to its numeric form.
func CodeName(code exitcode.ExitCode) string {
	if code == exitcode.Ok {
		return "Ok"
	}
	for name, c := range codeNames {
		if c == code && name != "" {
			return name
		}
	}
	return code.String()
}

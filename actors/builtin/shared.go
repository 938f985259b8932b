package builtin

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"

	"github.com/tokenvest/vesting-actors/actors/runtime"
)

///// Code shared by multiple built-in programs. /////

// Aborts with an ErrIllegalArgument if predicate is not true.
func RequireParam(rt runtime.Runtime, predicate bool, msg string, args ...interface{}) {
	if !predicate {
		rt.Abortf(exitcode.ErrIllegalArgument, msg, args...)
	}
}

// Aborts with an ErrIllegalState if predicate is not true.
func RequireState(rt runtime.Runtime, predicate bool, msg string, args ...interface{}) {
	if !predicate {
		rt.Abortf(exitcode.ErrIllegalState, msg, args...)
	}
}

// Aborts if err is non-nil. The exit code is taken from the error chain when one of its links
// carries an exit code, otherwise defaultExitCode is used.
func RequireNoErr(rt runtime.Runtime, err error, defaultExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	if err != nil {
		code := exitcode.Unwrap(err, defaultExitCode)
		rt.Abortf(code, "%s: %s", fmt.Sprintf(msg, args...), err)
	}
}

package builtin

import (
	"sync"

	rtt "github.com/filecoin-project/go-state-types/rt"
	"github.com/gagliardetto/solana-go"

	"github.com/tokenvest/vesting-actors/actors/runtime"
)

// ProgramLog holds per-program log level overrides, keyed by program id.
type ProgramLog struct {
	sync.RWMutex
	Programs map[solana.PublicKey]rtt.LogLevel
}

var programLogSingle *ProgramLog

func init() {
	programLogSingle = &ProgramLog{Programs: make(map[solana.PublicKey]rtt.LogLevel)}
}

func SetActorsLogLevel(logLevel rtt.LogLevel, actors ...runtime.Invokee) {
	programLogSingle.Lock()
	defer programLogSingle.Unlock()

	for _, actor := range actors {
		programLogSingle.Programs[actor.ProgramID()] = logLevel
	}
}

// Clears every override, so that all programs log at their default level again.
func ResetActorsLogLevel() {
	programLogSingle.Lock()
	defer programLogSingle.Unlock()

	programLogSingle.Programs = make(map[solana.PublicKey]rtt.LogLevel)
}

func GetActorLogLevel(actor runtime.Invokee, defValue rtt.LogLevel) rtt.LogLevel {
	programLogSingle.RLock()
	defer programLogSingle.RUnlock()

	logLevel, ok := programLogSingle.Programs[actor.ProgramID()]
	if ok {
		return logLevel
	}

	return defValue
}

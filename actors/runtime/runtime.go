package runtime

import (
	"context"

	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/filecoin-project/go-state-types/rt"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Runtime is the execution host's object exposed to programs.
// This is everything that is accessible to a program, beyond the instruction itself.
type Runtime interface {
	// Information related to the instruction being executed.
	Message() Message

	// The current unix timestamp, in seconds, as reported by the host clock.
	UnixTimestamp() int64

	// Looks up the owning program of an account. Returns false if the account holds no data.
	AccountOwner(key solana.PublicKey) (owner solana.PublicKey, ok bool)

	// Allocates `space` zeroed bytes at `target`, owned by the executing program.
	// The target must not already exist. If the target is a derived address, `signerSeeds` must
	// re-derive it under the executing program id (seeds include the bump).
	CreateAccount(payer, target solana.PublicKey, space uint64, signerSeeds [][]byte) error

	// Provides a handle for the state stored in an account owned by the executing program.
	State(key solana.PublicKey) StateHandle

	// Provides the token custody interface.
	Tokens() TokenProgram

	// Provides the system call interface.
	Syscalls() Syscalls

	// Halts execution upon an error from which the program cannot recover. The host will report the
	// exitcode and discard every write made during the instruction, including token transfers.
	// This method does not return.
	// The message and args are for diagnostic purposes and do not persist.
	Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{})

	// Log writes a diagnostic line at the given level. Logs are not persisted.
	Log(level rt.LogLevel, msg string, args ...interface{})

	// Provides a Go context for use by host storage.
	// Program code should not use this context directly.
	Context() context.Context
}

// Message contains information available to the program about the executing instruction.
type Message interface {
	// The program receiving the instruction.
	Receiver() solana.PublicKey

	// The accounts passed to the instruction, in order, with their signer and writable flags.
	Accounts() []*solana.AccountMeta

	// The raw instruction data.
	Data() []byte
}

// Pure functions implemented as primitives by the runtime.
type Syscalls interface {
	// Computes the program-derived address for a set of seeds (bump included).
	// Fails if the resulting point lies on the ed25519 curve.
	CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error)
	// Computes the associated token account address for a wallet and mint.
	AssociatedTokenAddress(wallet, mint solana.PublicKey) (solana.PublicKey, error)
}

// TokenAccount is the host's view of a token holding account.
type TokenAccount struct {
	Mint   solana.PublicKey
	Owner  solana.PublicKey
	Amount uint64
}

// TokenProgram moves fungible balances between custody accounts.
type TokenProgram interface {
	// Account loads a token account. Fails if the account does not exist.
	Account(key solana.PublicKey) (TokenAccount, error)

	BalanceOf(key solana.PublicKey) (uint64, error)

	DecimalsOf(mint solana.PublicKey) (uint8, error)

	// TransferChecked atomically moves exactly `amount` units, or fails with no effect.
	// The authority must own `from` and either sign the instruction or be a program-derived address
	// of the executing program reproduced by `signerSeeds`.
	TransferChecked(from, mint, to, authority solana.PublicKey, amount uint64, decimals uint8, signerSeeds [][]byte) error
}

// StateHandle provides mutable, exclusive access to program state held in an account.
type StateHandle interface {
	// Create initializes the state object.
	// This is only valid on a freshly allocated account owned by the executing program.
	Create(obj bin.BinaryMarshaler)

	// Readonly loads a readonly copy of the state into the argument.
	//
	// Any modification to the state is illegal and will result in an abort.
	Readonly(obj bin.BinaryUnmarshaler)

	// Transaction loads a mutable version of the state into the `obj` argument and protects
	// the execution from side effects (including token transfers).
	//
	// The second argument is a function which allows the caller to mutate the state.
	//
	// If the state is modified after this function returns, execution will abort.
	Transaction(obj Borsher, f func())
}

// Invokee is implemented by programs the host can dispatch instructions to.
type Invokee interface {
	ProgramID() solana.PublicKey
	Invoke(rt Runtime)
}

// These interfaces match those of gagliardetto/binary, such that anchor-style generated
// encoders are automatically usable here (but not mandatory).
type Borsher interface {
	bin.BinaryMarshaler
	bin.BinaryUnmarshaler
}

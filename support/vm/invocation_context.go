package vm

import (
	"bytes"
	"context"
	"fmt"

	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/builtin"
	"github.com/tokenvest/vesting-actors/actors/runtime"
	"github.com/tokenvest/vesting-actors/actors/serde"
	"github.com/tokenvest/vesting-actors/actors/util/adt"
)

type message struct {
	receiver solana.PublicKey
	accounts []*solana.AccountMeta
	data     []byte
}

var _ runtime.Message = (*message)(nil)

func (m *message) Receiver() solana.PublicKey        { return m.receiver }
func (m *message) Accounts() []*solana.AccountMeta { return m.accounts }
func (m *message) Data() []byte                      { return m.data }

func (m *message) meta(key solana.PublicKey) (signer, writable bool) {
	for _, a := range m.accounts {
		if a != nil && a.PublicKey.Equals(key) {
			signer = signer || a.IsSigner
			writable = writable || a.IsWritable
		}
	}
	return signer, writable
}

type abort struct {
	code exitcode.ExitCode
	msg  string
}

func (a abort) String() string {
	return fmt.Sprintf("abort(%v): %s", a.code, a.msg)
}

// invocationContext is the runtime seen by a program while it executes one instruction.
type invocationContext struct {
	vm            *VM
	tables        *tables
	msg           *message
	inTransaction bool
	logs          []string
}

var _ runtime.Runtime = (*invocationContext)(nil)

func newInvocationContext(vm *VM, t *tables, msg *message) *invocationContext {
	return &invocationContext{
		vm:     vm,
		tables: t,
		msg:    msg,
	}
}

func (ic *invocationContext) Message() runtime.Message {
	return ic.msg
}

func (ic *invocationContext) UnixTimestamp() int64 {
	return ic.vm.time
}

func (ic *invocationContext) AccountOwner(key solana.PublicKey) (solana.PublicKey, bool) {
	var record AccountRecord
	found, err := ic.tables.accounts.Get(adt.PubKey(key), &record)
	if err != nil {
		ic.Abortf(exitcode.ErrIllegalState, "failed to load account %s: %s", key, err)
	}
	if found {
		return record.Owner, true
	}
	for _, m := range []*adt.Map{ic.tables.tokenAccounts, ic.tables.mints} {
		found, err := m.Has(adt.PubKey(key))
		if err != nil {
			ic.Abortf(exitcode.ErrIllegalState, "failed to load account %s: %s", key, err)
		}
		if found {
			return builtin.TokenProgramID, true
		}
	}
	return solana.PublicKey{}, false
}

func (ic *invocationContext) CreateAccount(payer, target solana.PublicKey, space uint64, signerSeeds [][]byte) error {
	if ic.inTransaction {
		ic.Abortf(exitcode.SysErrorIllegalActor, "side-effect within transaction")
	}
	if signer, writable := ic.msg.meta(payer); !signer || !writable {
		return xerrors.Errorf("payer %s must be a writable signer: %w", payer, exitcode.ErrForbidden)
	}
	if _, writable := ic.msg.meta(target); !writable {
		return xerrors.Errorf("new account %s is not writable: %w", target, exitcode.ErrForbidden)
	}
	if !ic.authorized(target, signerSeeds) {
		return xerrors.Errorf("new account %s did not sign: %w", target, exitcode.ErrForbidden)
	}
	if _, exists := ic.AccountOwner(target); exists {
		return xerrors.Errorf("account %s already in use: %w", target, exitcode.ErrIllegalState)
	}
	return ic.tables.accounts.Put(adt.PubKey(target), &AccountRecord{
		Owner: ic.msg.receiver,
		Data:  make([]byte, space),
	})
}

func (ic *invocationContext) State(key solana.PublicKey) runtime.StateHandle {
	return &stateHandle{ic: ic, key: key}
}

func (ic *invocationContext) Tokens() runtime.TokenProgram {
	return &tokenProgram{ic: ic}
}

func (ic *invocationContext) Syscalls() runtime.Syscalls {
	return syscalls{}
}

func (ic *invocationContext) Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	panic(abort{errExitCode, fmt.Sprintf(msg, args...)})
}

func (ic *invocationContext) Log(level rtt.LogLevel, msg string, args ...interface{}) {
	line := fmt.Sprintf(msg, args...)
	ic.logs = append(ic.logs, line)
	switch level {
	case rtt.DEBUG:
		log.Debugw(line, "program", ic.msg.receiver)
	case rtt.INFO:
		log.Infow(line, "program", ic.msg.receiver)
	case rtt.WARN:
		log.Warnw(line, "program", ic.msg.receiver)
	case rtt.ERROR:
		log.Errorw(line, "program", ic.msg.receiver)
	}
}

func (ic *invocationContext) Context() context.Context {
	return ic.vm.ctx
}

// Whether key signed the instruction, or is a program address of the executing program
// reproduced by signerSeeds.
func (ic *invocationContext) authorized(key solana.PublicKey, signerSeeds [][]byte) bool {
	if signer, _ := ic.msg.meta(key); signer {
		return true
	}
	if len(signerSeeds) == 0 {
		return false
	}
	derived, err := solana.CreateProgramAddress(signerSeeds, ic.msg.receiver)
	return err == nil && derived.Equals(key)
}

//
// State handle
//

type stateHandle struct {
	ic  *invocationContext
	key solana.PublicKey
}

func (h *stateHandle) Create(obj bin.BinaryMarshaler) {
	record := h.load()
	if !bytes.Equal(record.Data, make([]byte, len(record.Data))) {
		h.ic.Abortf(exitcode.SysErrorIllegalActor, "state of %s already constructed", h.key)
	}
	h.put(record, obj)
}

func (h *stateHandle) Readonly(obj bin.BinaryUnmarshaler) {
	record := h.load()
	if err := serde.Deserialize(record.Data, obj); err != nil {
		h.ic.Abortf(exitcode.ErrSerialization, "failed to load state of %s: %s", h.key, err)
	}
}

func (h *stateHandle) Transaction(obj runtime.Borsher, f func()) {
	if h.ic.inTransaction {
		h.ic.Abortf(exitcode.SysErrorIllegalActor, "nested transaction")
	}
	record := h.load()
	if err := serde.Deserialize(record.Data, obj); err != nil {
		h.ic.Abortf(exitcode.ErrSerialization, "failed to load state of %s: %s", h.key, err)
	}
	h.ic.inTransaction = true
	defer func() { h.ic.inTransaction = false }()
	f()
	h.put(record, obj)
}

// Loads an account owned by the executing program.
func (h *stateHandle) load() *AccountRecord {
	var record AccountRecord
	found, err := h.ic.tables.accounts.Get(adt.PubKey(h.key), &record)
	if err != nil {
		h.ic.Abortf(exitcode.ErrIllegalState, "failed to load account %s: %s", h.key, err)
	}
	if !found {
		h.ic.Abortf(exitcode.ErrNotFound, "account %s not found", h.key)
	}
	if !record.Owner.Equals(h.ic.msg.receiver) {
		h.ic.Abortf(exitcode.SysErrorIllegalActor, "account %s is owned by %s", h.key, record.Owner)
	}
	return &record
}

func (h *stateHandle) put(record *AccountRecord, obj bin.BinaryMarshaler) {
	if _, writable := h.ic.msg.meta(h.key); !writable {
		h.ic.Abortf(exitcode.SysErrorIllegalActor, "account %s is not writable", h.key)
	}
	data, err := serde.Serialize(obj)
	if err != nil {
		h.ic.Abortf(exitcode.ErrSerialization, "failed to store state of %s: %s", h.key, err)
	}
	if len(data) != len(record.Data) {
		h.ic.Abortf(exitcode.SysErrorIllegalActor, "state of %s is %d bytes, account holds %d", h.key, len(data), len(record.Data))
	}
	record.Data = data
	if err := h.ic.tables.accounts.Put(adt.PubKey(h.key), record); err != nil {
		h.ic.Abortf(exitcode.ErrIllegalState, "failed to store account %s: %s", h.key, err)
	}
}

//
// Token program
//

type tokenProgram struct {
	ic *invocationContext
}

func (p *tokenProgram) Account(key solana.PublicKey) (runtime.TokenAccount, error) {
	var record TokenAccountRecord
	found, err := p.ic.tables.tokenAccounts.Get(adt.PubKey(key), &record)
	if err != nil {
		return runtime.TokenAccount{}, err
	}
	if !found {
		return runtime.TokenAccount{}, xerrors.Errorf("token account %s not found: %w", key, exitcode.ErrNotFound)
	}
	amount, err := p.ic.tables.balances.Get(key)
	if err != nil {
		return runtime.TokenAccount{}, err
	}
	return runtime.TokenAccount{Mint: record.Mint, Owner: record.Owner, Amount: amount}, nil
}

func (p *tokenProgram) BalanceOf(key solana.PublicKey) (uint64, error) {
	account, err := p.Account(key)
	if err != nil {
		return 0, err
	}
	return account.Amount, nil
}

func (p *tokenProgram) DecimalsOf(mint solana.PublicKey) (uint8, error) {
	var record MintRecord
	found, err := p.ic.tables.mints.Get(adt.PubKey(mint), &record)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, xerrors.Errorf("mint %s not found: %w", mint, exitcode.ErrNotFound)
	}
	return record.Decimals, nil
}

func (p *tokenProgram) TransferChecked(from, mint, to, authority solana.PublicKey, amount uint64, decimals uint8, signerSeeds [][]byte) error {
	ic := p.ic
	if ic.inTransaction {
		ic.Abortf(exitcode.SysErrorIllegalActor, "side-effect within transaction")
	}
	src, err := p.Account(from)
	if err != nil {
		return err
	}
	dst, err := p.Account(to)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(mint) || !dst.Mint.Equals(mint) {
		return xerrors.Errorf("mint %s does not match source %s or destination %s: %w", mint, src.Mint, dst.Mint, exitcode.ErrIllegalArgument)
	}
	expected, err := p.DecimalsOf(mint)
	if err != nil {
		return err
	}
	if decimals != expected {
		return xerrors.Errorf("decimals %d do not match mint %s decimals %d: %w", decimals, mint, expected, exitcode.ErrIllegalArgument)
	}
	for _, key := range []solana.PublicKey{from, to} {
		if _, writable := ic.msg.meta(key); !writable {
			return xerrors.Errorf("token account %s is not writable: %w", key, exitcode.ErrForbidden)
		}
	}
	if !src.Owner.Equals(authority) {
		return xerrors.Errorf("authority %s does not own %s: %w", authority, from, exitcode.ErrForbidden)
	}
	if !ic.authorized(authority, signerSeeds) {
		return xerrors.Errorf("authority %s did not sign: %w", authority, exitcode.ErrForbidden)
	}
	return ic.tables.balances.Transfer(from, to, amount)
}

//
// Syscalls
//

type syscalls struct{}

func (syscalls) CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error) {
	return solana.CreateProgramAddress(seeds, programID)
}

func (syscalls) AssociatedTokenAddress(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	return addr, err
}

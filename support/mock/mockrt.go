package mock

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/filecoin-project/go-state-types/exitcode"
	rtt "github.com/filecoin-project/go-state-types/rt"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/runtime"
	"github.com/tokenvest/vesting-actors/actors/serde"
)

// A mock runtime for unit testing of programs in isolation.
// The mock allows direct specification of the execution context as observable by a program, supports
// the account storage interface, and mocks out side-effect-inducing calls (account creation, token transfers).
type Runtime struct {
	// Execution context
	ctx      context.Context
	time     int64
	receiver solana.PublicKey
	accounts []*solana.AccountMeta
	data     []byte

	syscalls syscaller

	// Account storage: owning program and raw data per account.
	owners map[solana.PublicKey]solana.PublicKey
	store  map[solana.PublicKey][]byte

	// Token ledger
	tokenAccounts map[solana.PublicKey]runtime.TokenAccount
	decimals      map[solana.PublicKey]uint8

	// VM implementation
	inCall        bool
	inTransaction bool
	logs          []string

	// Expectations
	t                   testing.TB
	expectTransfers     []*expectTransfer
	expectCreateAccount *expectCreateAccount
	expectLogs          []string
}

type expectTransfer struct {
	// expected parameters
	from, mint, to, authority solana.PublicKey
	amount                    uint64
	decimals                  uint8
	signerSeeds               [][]byte

	// result of the transfer
	exitCode exitcode.ExitCode
}

func (e *expectTransfer) Equal(from, mint, to, authority solana.PublicKey, amount uint64, decimals uint8, signerSeeds [][]byte) bool {
	return e.from == from && e.mint == mint && e.to == to && e.authority == authority &&
		e.amount == amount && e.decimals == decimals && seedsEqual(e.signerSeeds, signerSeeds)
}

func (e *expectTransfer) String() string {
	return fmt.Sprintf("from: %s mint: %s to: %s authority: %s amount: %d decimals: %d seeds: %x exitCode: %v",
		e.from, e.mint, e.to, e.authority, e.amount, e.decimals, e.signerSeeds, e.exitCode)
}

type expectCreateAccount struct {
	payer, target solana.PublicKey
	space         uint64
	signerSeeds   [][]byte
}

var _ runtime.Runtime = &Runtime{}
var _ runtime.Message = &Runtime{}
var typeOfRuntimeInterface = reflect.TypeOf((*runtime.Runtime)(nil)).Elem()
var typeOfBinaryMarshaler = reflect.TypeOf((*bin.BinaryMarshaler)(nil)).Elem()

///// Implementation of the runtime API /////

func (rt *Runtime) Message() runtime.Message {
	rt.requireInCall()
	return rt
}

func (rt *Runtime) UnixTimestamp() int64 {
	rt.requireInCall()
	return rt.time
}

func (rt *Runtime) AccountOwner(key solana.PublicKey) (solana.PublicKey, bool) {
	rt.requireInCall()
	owner, ok := rt.owners[key]
	return owner, ok
}

func (rt *Runtime) CreateAccount(payer, target solana.PublicKey, space uint64, signerSeeds [][]byte) error {
	rt.requireInCall()
	if rt.inTransaction {
		rt.Abortf(exitcode.SysErrorIllegalActor, "side-effect within transaction")
	}
	exp := rt.expectCreateAccount
	if exp == nil {
		rt.failTestNow("unexpected account creation at %s", target)
		return nil
	}
	if exp.payer != payer || exp.target != target || exp.space != space || !seedsEqual(exp.signerSeeds, signerSeeds) {
		rt.failTest("unexpected account creation\n            payer: %s, target: %s, space: %d, seeds: %x\n"+
			"expected payer: %s, target: %s, space: %d, seeds: %x",
			payer, target, space, signerSeeds, exp.payer, exp.target, exp.space, exp.signerSeeds)
	}
	rt.expectCreateAccount = nil

	if _, ok := rt.owners[target]; ok {
		return xerrors.Errorf("account %s already in use: %w", target, exitcode.ErrIllegalState)
	}
	rt.owners[target] = rt.receiver
	rt.store[target] = make([]byte, space)
	return nil
}

func (rt *Runtime) State(key solana.PublicKey) runtime.StateHandle {
	rt.requireInCall()
	return &stateHandle{rt: rt, key: key}
}

func (rt *Runtime) Tokens() runtime.TokenProgram {
	rt.requireInCall()
	return &tokenProgram{rt}
}

func (rt *Runtime) Syscalls() runtime.Syscalls {
	rt.requireInCall()
	return &rt.syscalls
}

func (rt *Runtime) Abortf(errExitCode exitcode.ExitCode, msg string, args ...interface{}) {
	rt.requireInCall()
	rt.t.Logf("Mock Runtime Abort ExitCode: %v Reason: %s", errExitCode, fmt.Sprintf(msg, args...))
	panic(abort{errExitCode, fmt.Sprintf(msg, args...)})
}

func (rt *Runtime) Log(level rtt.LogLevel, msg string, args ...interface{}) {
	line := fmt.Sprintf(msg, args...)
	rt.logs = append(rt.logs, line)
	rt.t.Logf("Mock Runtime Log [%d]: %s", level, line)
}

func (rt *Runtime) Context() context.Context {
	// requireInCall omitted because it makes using this mock runtime outside calls awkward.
	return rt.ctx
}

///// Message implementation /////

func (rt *Runtime) Receiver() solana.PublicKey {
	return rt.receiver
}

func (rt *Runtime) Accounts() []*solana.AccountMeta {
	return rt.accounts
}

func (rt *Runtime) Data() []byte {
	return rt.data
}

///// State handle implementation /////

type stateHandle struct {
	rt  *Runtime
	key solana.PublicKey
}

func (h *stateHandle) Create(obj bin.BinaryMarshaler) {
	rt := h.rt
	if owner, ok := rt.owners[h.key]; !ok || owner != rt.receiver {
		rt.Abortf(exitcode.SysErrorIllegalActor, "account %s not allocated to %s", h.key, rt.receiver)
	}
	if !bytes.Equal(rt.store[h.key], make([]byte, len(rt.store[h.key]))) {
		rt.Abortf(exitcode.SysErrorIllegalActor, "state of %s already constructed", h.key)
	}
	h.put(obj)
}

func (h *stateHandle) Readonly(obj bin.BinaryUnmarshaler) {
	rt := h.rt
	data, found := rt.store[h.key]
	if !found {
		rt.Abortf(exitcode.ErrIllegalState, "account state not found: %s", h.key)
	}
	if err := serde.Deserialize(data, obj); err != nil {
		rt.Abortf(exitcode.ErrSerialization, err.Error())
	}
}

func (h *stateHandle) Transaction(obj runtime.Borsher, f func()) {
	rt := h.rt
	if rt.inTransaction {
		rt.Abortf(exitcode.SysErrorIllegalActor, "nested transaction")
	}
	h.Readonly(obj)
	rt.inTransaction = true
	defer func() { rt.inTransaction = false }()
	f()
	h.put(obj)
}

func (h *stateHandle) put(obj bin.BinaryMarshaler) {
	rt := h.rt
	data, err := serde.Serialize(obj)
	if err != nil {
		rt.Abortf(exitcode.ErrSerialization, err.Error())
	}
	if len(data) != len(rt.store[h.key]) {
		rt.Abortf(exitcode.SysErrorIllegalActor, "state of %s is %d bytes, account holds %d", h.key, len(data), len(rt.store[h.key]))
	}
	rt.store[h.key] = data
}

///// Token program implementation /////

type tokenProgram struct {
	rt *Runtime
}

func (p *tokenProgram) Account(key solana.PublicKey) (runtime.TokenAccount, error) {
	account, ok := p.rt.tokenAccounts[key]
	if !ok {
		return runtime.TokenAccount{}, xerrors.Errorf("token account %s not found: %w", key, exitcode.ErrNotFound)
	}
	return account, nil
}

func (p *tokenProgram) BalanceOf(key solana.PublicKey) (uint64, error) {
	account, err := p.Account(key)
	if err != nil {
		return 0, err
	}
	return account.Amount, nil
}

func (p *tokenProgram) DecimalsOf(mint solana.PublicKey) (uint8, error) {
	decimals, ok := p.rt.decimals[mint]
	if !ok {
		return 0, xerrors.Errorf("mint %s not found: %w", mint, exitcode.ErrNotFound)
	}
	return decimals, nil
}

func (p *tokenProgram) TransferChecked(from, mint, to, authority solana.PublicKey, amount uint64, decimals uint8, signerSeeds [][]byte) error {
	rt := p.rt
	if rt.inTransaction {
		rt.Abortf(exitcode.SysErrorIllegalActor, "side-effect within transaction")
	}
	if len(rt.expectTransfers) == 0 {
		rt.failTestNow("unexpected transfer of %d from %s to %s", amount, from, to)
		return nil
	}
	exp := rt.expectTransfers[0]
	if !exp.Equal(from, mint, to, authority, amount, decimals, signerSeeds) {
		toName := fmt.Sprintf("from: %s mint: %s to: %s authority: %s amount: %d decimals: %d seeds: %x",
			from, mint, to, authority, amount, decimals, signerSeeds)
		rt.failTestNow("transfer mismatch\n"+
			"  transfer: %s\n"+
			"  expected: %s", toName, exp)
		return nil
	}
	rt.expectTransfers = rt.expectTransfers[1:]

	if !exp.exitCode.IsSuccess() {
		return xerrors.Errorf("transfer of %d from %s failed: %w", amount, from, exp.exitCode)
	}
	src, dst := rt.tokenAccounts[from], rt.tokenAccounts[to]
	src.Amount -= amount
	dst.Amount += amount
	rt.tokenAccounts[from], rt.tokenAccounts[to] = src, dst
	return nil
}

type abort struct {
	code exitcode.ExitCode
	msg  string
}

func (a abort) String() string {
	return fmt.Sprintf("abort(%v): %s", a.code, a.msg)
}

///// Inspection facilities /////

func (rt *Runtime) GetReceiver() solana.PublicKey {
	return rt.receiver
}

func (rt *Runtime) GetTime() int64 {
	return rt.time
}

// Loads the state held in an account into o. Fails the test if the account holds no data.
func (rt *Runtime) GetState(key solana.PublicKey, o bin.BinaryUnmarshaler) {
	data, found := rt.store[key]
	if !found {
		rt.failTestNow("failed to find state of %s", key)
	}
	if err := serde.Deserialize(data, o); err != nil {
		rt.failTestNow("failed to load state of %s: %v", key, err)
	}
}

// Returns the raw data held in an account.
func (rt *Runtime) GetAccountData(key solana.PublicKey) ([]byte, bool) {
	data, ok := rt.store[key]
	return data, ok
}

func (rt *Runtime) GetTokenBalance(key solana.PublicKey) uint64 {
	return rt.tokenAccounts[key].Amount
}

// Returns the lines logged by the program so far.
func (rt *Runtime) Logs() []string {
	return rt.logs
}

///// Mocking facilities /////

func (rt *Runtime) SetTime(now int64) {
	rt.time = now
}

// Sets the instruction's positional accounts.
func (rt *Runtime) SetAccounts(accounts ...*solana.AccountMeta) {
	rt.accounts = accounts
}

// Sets the raw instruction data seen by Invoke.
func (rt *Runtime) SetData(data []byte) {
	rt.data = data
}

// Places raw data in an account owned by owner.
func (rt *Runtime) SetAccountData(key, owner solana.PublicKey, data []byte) {
	rt.owners[key] = owner
	rt.store[key] = data
}

func (rt *Runtime) SetTokenAccount(key solana.PublicKey, account runtime.TokenAccount) {
	rt.tokenAccounts[key] = account
}

func (rt *Runtime) RemoveTokenAccount(key solana.PublicKey) {
	delete(rt.tokenAccounts, key)
}

func (rt *Runtime) SetMint(mint solana.PublicKey, decimals uint8) {
	rt.decimals[mint] = decimals
}

func (rt *Runtime) SetProgramAddressFunc(f ProgramAddressFunc) {
	rt.syscalls.ProgramAddress = f
}

func (rt *Runtime) ExpectCreateAccount(payer, target solana.PublicKey, space uint64, signerSeeds [][]byte) {
	rt.expectCreateAccount = &expectCreateAccount{
		payer:       payer,
		target:      target,
		space:       space,
		signerSeeds: signerSeeds,
	}
}

// Expects a TransferChecked call. A successful exit code moves the amount in the mock token ledger.
func (rt *Runtime) ExpectTransfer(from, mint, to, authority solana.PublicKey, amount uint64, decimals uint8, signerSeeds [][]byte, exitCode exitcode.ExitCode) {
	rt.expectTransfers = append(rt.expectTransfers, &expectTransfer{
		from:        from,
		mint:        mint,
		to:          to,
		authority:   authority,
		amount:      amount,
		decimals:    decimals,
		signerSeeds: signerSeeds,
		exitCode:    exitCode,
	})
}

// Expects a log line containing substr by the time Verify is called.
func (rt *Runtime) ExpectLogsContain(substr string) {
	rt.expectLogs = append(rt.expectLogs, substr)
}

// Verifies that expected calls were received, and resets all expectations.
func (rt *Runtime) Verify() {
	if len(rt.expectTransfers) > 0 {
		rt.failTest("expected all transfers to be made, missing transfers %v", rt.expectTransfers)
	}
	if rt.expectCreateAccount != nil {
		rt.failTest("expected account to be created, uncreated account: %s", rt.expectCreateAccount.target)
	}
	for _, substr := range rt.expectLogs {
		found := false
		for _, line := range rt.logs {
			if strings.Contains(line, substr) {
				found = true
				break
			}
		}
		if !found {
			rt.failTest("expected log line containing %q, logs: %v", substr, rt.logs)
		}
	}

	rt.Reset()
}

// Resets expectations
func (rt *Runtime) Reset() {
	rt.expectTransfers = nil
	rt.expectCreateAccount = nil
	rt.expectLogs = nil
	rt.logs = nil
}

type snapshot struct {
	owners        map[solana.PublicKey]solana.PublicKey
	store         map[solana.PublicKey][]byte
	tokenAccounts map[solana.PublicKey]runtime.TokenAccount
}

func (rt *Runtime) snapshot() snapshot {
	s := snapshot{
		owners:        make(map[solana.PublicKey]solana.PublicKey, len(rt.owners)),
		store:         make(map[solana.PublicKey][]byte, len(rt.store)),
		tokenAccounts: make(map[solana.PublicKey]runtime.TokenAccount, len(rt.tokenAccounts)),
	}
	for k, v := range rt.owners {
		s.owners[k] = v
	}
	for k, v := range rt.store {
		s.store[k] = append([]byte(nil), v...)
	}
	for k, v := range rt.tokenAccounts {
		s.tokenAccounts[k] = v
	}
	return s
}

func (rt *Runtime) restore(s snapshot) {
	rt.owners = s.owners
	rt.store = s.store
	rt.tokenAccounts = s.tokenAccounts
}

// Calls f() expecting it to invoke Runtime.Abortf() with a specified exit code.
// Every account and token balance change made by f is rolled back, as the host does.
func (rt *Runtime) ExpectAbort(expected exitcode.ExitCode, f func()) {
	prev := rt.snapshot()

	defer func() {
		r := recover()
		if r == nil {
			rt.failTest("expected abort with code %v but call succeeded", expected)
			return
		}
		a, ok := r.(abort)
		if !ok {
			panic(r)
		}
		if a.code != expected {
			rt.failTest("abort expected code %v, got %v %s", expected, a.code, a.msg)
		}
		// Roll back state change.
		rt.restore(prev)
		rt.inTransaction = false
	}()
	f()
}

// Calls a program method with its params, e.g. rt.Call(actor.Claim, &vesting.ClaimParams{}).
func (rt *Runtime) Call(method interface{}, params interface{}) interface{} {
	meth := reflect.ValueOf(method)
	rt.verifyExportedMethodType(meth)

	// There's no panic recovery here. If an abort is expected, this call will be inside an ExpectAbort block.
	// If not expected, the panic will escape and cause the test to fail.

	rt.inCall = true
	defer func() { rt.inCall = false }()
	ret := meth.Call([]reflect.Value{reflect.ValueOf(rt), reflect.ValueOf(params)})
	return ret[0].Interface()
}

// Dispatches the raw instruction data set with SetData through the program's entrypoint.
func (rt *Runtime) Invoke(program runtime.Invokee) {
	rt.inCall = true
	defer func() { rt.inCall = false }()
	program.Invoke(rt)
}

func (rt *Runtime) verifyExportedMethodType(meth reflect.Value) {
	t := meth.Type()
	rt.require(t.Kind() == reflect.Func, "%v is not a function", meth)
	rt.require(t.NumIn() == 2, "exported method %v must have two parameters, got %v", meth, t.NumIn())
	rt.require(t.In(0) == typeOfRuntimeInterface, "exported method first parameter must be runtime, got %v", t.In(0))
	rt.require(t.In(1).Kind() == reflect.Ptr, "exported method second parameter must be pointer to params, got %v", t.In(1))
	rt.require(t.In(1).Implements(typeOfBinaryMarshaler), "exported method second parameter must be encodable params, got %v", t.In(1))
	rt.require(t.NumOut() == 1, "exported method must return a single value")
}

func (rt *Runtime) requireInCall() {
	rt.require(rt.inCall, "invalid runtime invocation outside of method call")
}

func (rt *Runtime) require(predicate bool, msg string, args ...interface{}) {
	if !predicate {
		rt.failTestNow(msg, args...)
	}
}

func (rt *Runtime) failTest(msg string, args ...interface{}) {
	rt.t.Logf(msg, args...)
	rt.t.Logf("%s", debug.Stack())
	rt.t.Fail()
}

func (rt *Runtime) failTestNow(msg string, args ...interface{}) {
	rt.t.Logf(msg, args...)
	rt.t.Logf("%s", debug.Stack())
	rt.t.FailNow()
}

func seedsEqual(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

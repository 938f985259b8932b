package vm

import (
	"context"
	"sync"

	"github.com/filecoin-project/go-state-types/exitcode"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	cid "github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/runtime"
	"github.com/tokenvest/vesting-actors/actors/serde"
	"github.com/tokenvest/vesting-actors/actors/util/adt"
)

var log = logging.Logger("vm")

// VM is a simplified execution host for programs. It applies one instruction at a time; every
// account, token and balance change made by an instruction is discarded if the instruction aborts.
type VM struct {
	ctx   context.Context
	store adt.Store

	programs map[solana.PublicKey]runtime.Invokee

	mu       sync.Mutex
	root     StateRoot
	receipts cid.Cid
	time     int64
}

// StateRoot holds the roots of the account, token and balance tables.
type StateRoot struct {
	Accounts      cid.Cid
	TokenAccounts cid.Cid
	Balances      cid.Cid
	Mints         cid.Cid
}

// ApplyResult is the outcome of an instruction.
type ApplyResult struct {
	Code    exitcode.ExitCode
	Message string
	Logs    []string
}

func NewVM(ctx context.Context, store adt.Store, programs ...runtime.Invokee) (*VM, error) {
	emptyMap, err := adt.StoreEmptyMap(store, adt.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty map: %w", err)
	}
	emptyBalances, err := adt.StoreEmptyMap(store, adt.BalanceTableBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty balance table: %w", err)
	}
	emptyArray, err := adt.StoreEmptyArray(store, adt.DefaultAmtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to create empty array: %w", err)
	}

	lookup := make(map[solana.PublicKey]runtime.Invokee, len(programs))
	for _, p := range programs {
		lookup[p.ProgramID()] = p
	}

	return &VM{
		ctx:      ctx,
		store:    store,
		programs: lookup,
		root: StateRoot{
			Accounts:      emptyMap,
			TokenAccounts: emptyMap,
			Balances:      emptyBalances,
			Mints:         emptyMap,
		},
		receipts: emptyArray,
	}, nil
}

// ApplyInstruction runs an instruction to completion. Signer and writable flags are taken from the
// instruction's account metas.
func (vm *VM) ApplyInstruction(ix solana.Instruction) ApplyResult {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	data, err := ix.Data()
	if err != nil {
		return ApplyResult{Code: exitcode.SysErrorIllegalArgument, Message: err.Error()}
	}
	programID := ix.ProgramID()
	msg := &message{receiver: programID, accounts: ix.Accounts(), data: data}

	result := vm.apply(msg)
	if err := vm.recordReceipt(msg, result.Code); err != nil {
		log.Errorf("failed to record receipt: %s", err)
	}
	if result.Code.IsSuccess() {
		log.Debugw("applied instruction", "program", programID, "logs", len(result.Logs))
	} else {
		log.Infow("instruction aborted", "program", programID, "code", result.Code, "reason", result.Message)
	}
	return result
}

func (vm *VM) apply(msg *message) (result ApplyResult) {
	program, ok := vm.programs[msg.receiver]
	if !ok {
		return ApplyResult{Code: exitcode.SysErrInvalidReceiver, Message: "unknown program " + msg.receiver.String()}
	}

	tables, err := loadTables(vm.store, vm.root)
	if err != nil {
		return ApplyResult{Code: exitcode.ErrIllegalState, Message: err.Error()}
	}

	ic := newInvocationContext(vm, tables, msg)
	defer func() {
		result.Logs = ic.logs
		if r := recover(); r != nil {
			a, ok := r.(abort)
			if !ok {
				panic(r)
			}
			// State roots are only replaced on success; the loaded tables are dropped.
			result.Code, result.Message = a.code, a.msg
		}
	}()

	program.Invoke(ic)

	root, err := tables.flush()
	if err != nil {
		return ApplyResult{Code: exitcode.ErrIllegalState, Message: err.Error(), Logs: ic.logs}
	}
	vm.root = root
	return ApplyResult{Code: exitcode.Ok}
}

func (vm *VM) recordReceipt(msg *message, code exitcode.ExitCode) error {
	receipts, err := adt.AsArray(vm.store, vm.receipts, adt.DefaultAmtBitwidth)
	if err != nil {
		return err
	}
	opcode := uint8(NoOpcode)
	if len(msg.data) > 0 {
		opcode = msg.data[0]
	}
	if err := receipts.AppendContinuous(&Receipt{
		Program:  msg.receiver,
		Opcode:   opcode,
		Time:     vm.time,
		ExitCode: int64(code),
	}); err != nil {
		return err
	}
	vm.receipts, err = receipts.Root()
	return err
}

//
// Clock
//

func (vm *VM) SetTime(now int64) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.time = now
}

func (vm *VM) GetTime() int64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.time
}

//
// Genesis-like setup of mints and token accounts. These bypass programs entirely.
//

func (vm *VM) CreateMint(mint solana.PublicKey, decimals uint8) error {
	return vm.mutate(func(t *tables) error {
		if found, err := t.mints.Has(adt.PubKey(mint)); err != nil {
			return err
		} else if found {
			return xerrors.Errorf("mint %s already exists", mint)
		}
		return t.mints.Put(adt.PubKey(mint), &MintRecord{Decimals: decimals})
	})
}

func (vm *VM) CreateTokenAccount(key, owner, mint solana.PublicKey) error {
	return vm.mutate(func(t *tables) error {
		if found, err := t.mints.Has(adt.PubKey(mint)); err != nil {
			return err
		} else if !found {
			return xerrors.Errorf("mint %s not found: %w", mint, exitcode.ErrNotFound)
		}
		if found, err := t.tokenAccounts.Has(adt.PubKey(key)); err != nil {
			return err
		} else if found {
			return xerrors.Errorf("token account %s already exists", key)
		}
		return t.tokenAccounts.Put(adt.PubKey(key), &TokenAccountRecord{Mint: mint, Owner: owner})
	})
}

// Creates the associated token account of owner for mint, returning its address.
func (vm *VM) CreateAssociatedTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	key, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return key, vm.CreateTokenAccount(key, owner, mint)
}

// Issues new tokens into a token account.
func (vm *VM) MintTo(key solana.PublicKey, amount uint64) error {
	return vm.mutate(func(t *tables) error {
		var account TokenAccountRecord
		if found, err := t.tokenAccounts.Get(adt.PubKey(key), &account); err != nil {
			return err
		} else if !found {
			return xerrors.Errorf("token account %s not found: %w", key, exitcode.ErrNotFound)
		}
		var mint MintRecord
		if _, err := t.mints.Get(adt.PubKey(account.Mint), &mint); err != nil {
			return err
		}
		if mint.Supply+amount < mint.Supply {
			return xerrors.Errorf("supply of %s overflows: %w", account.Mint, exitcode.ErrIllegalArgument)
		}
		mint.Supply += amount
		if err := t.mints.Put(adt.PubKey(account.Mint), &mint); err != nil {
			return err
		}
		return t.balances.Add(key, amount)
	})
}

// Places raw data in an account owned by owner.
func (vm *VM) SetAccount(key, owner solana.PublicKey, data []byte) error {
	return vm.mutate(func(t *tables) error {
		return t.accounts.Put(adt.PubKey(key), &AccountRecord{Owner: owner, Data: data})
	})
}

func (vm *VM) mutate(f func(t *tables) error) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	t, err := loadTables(vm.store, vm.root)
	if err != nil {
		return err
	}
	if err := f(t); err != nil {
		return err
	}
	root, err := t.flush()
	if err != nil {
		return err
	}
	vm.root = root
	return nil
}

//
// Inspection
//

func (vm *VM) StateRoot() StateRoot {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.root
}

// Restores a previously observed state root. Receipts are not affected.
func (vm *VM) Rollback(root StateRoot) {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	vm.root = root
}

// GetAccount returns the data account at key, if any.
func (vm *VM) GetAccount(key solana.PublicKey) (*AccountRecord, bool, error) {
	t, err := vm.tables()
	if err != nil {
		return nil, false, err
	}
	var record AccountRecord
	found, err := t.accounts.Get(adt.PubKey(key), &record)
	if err != nil || !found {
		return nil, found, err
	}
	return &record, true, nil
}

// GetState decodes the state held in a data account.
func (vm *VM) GetState(key solana.PublicKey, out bin.BinaryUnmarshaler) error {
	record, found, err := vm.GetAccount(key)
	if err != nil {
		return err
	}
	if !found {
		return xerrors.Errorf("account %s not found: %w", key, exitcode.ErrNotFound)
	}
	return serde.Deserialize(record.Data, out)
}

func (vm *VM) GetTokenBalance(key solana.PublicKey) (uint64, error) {
	t, err := vm.tables()
	if err != nil {
		return 0, err
	}
	return t.balances.Get(key)
}

// GetTokenAccount returns the token account at key, if any.
func (vm *VM) GetTokenAccount(key solana.PublicKey) (*TokenAccountRecord, bool, error) {
	t, err := vm.tables()
	if err != nil {
		return nil, false, err
	}
	var record TokenAccountRecord
	found, err := t.tokenAccounts.Get(adt.PubKey(key), &record)
	if err != nil || !found {
		return nil, found, err
	}
	return &record, true, nil
}

func (vm *VM) GetMint(mint solana.PublicKey) (*MintRecord, error) {
	t, err := vm.tables()
	if err != nil {
		return nil, err
	}
	var record MintRecord
	found, err := t.mints.Get(adt.PubKey(mint), &record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, xerrors.Errorf("mint %s not found: %w", mint, exitcode.ErrNotFound)
	}
	return &record, nil
}

// TotalTokens sums every token balance held in the VM.
func (vm *VM) TotalTokens() (uint64, error) {
	t, err := vm.tables()
	if err != nil {
		return 0, err
	}
	return t.balances.Total()
}

// Receipts returns the outcome of every instruction applied so far, in order.
func (vm *VM) Receipts() ([]Receipt, error) {
	vm.mu.Lock()
	root := vm.receipts
	vm.mu.Unlock()

	arr, err := adt.AsArray(vm.store, root, adt.DefaultAmtBitwidth)
	if err != nil {
		return nil, err
	}
	out := make([]Receipt, 0, arr.Length())
	var r Receipt
	err = arr.ForEach(&r, func(_ int64) error {
		out = append(out, r)
		return nil
	})
	return out, err
}

// ForEachAccount iterates the data accounts owned by program.
func (vm *VM) ForEachAccount(program solana.PublicKey, f func(key solana.PublicKey, record *AccountRecord) error) error {
	t, err := vm.tables()
	if err != nil {
		return err
	}
	var record AccountRecord
	return t.accounts.ForEach(&record, func(k string) error {
		if !record.Owner.Equals(program) {
			return nil
		}
		key, err := adt.ParsePubKey(k)
		if err != nil {
			return err
		}
		cpy := record
		return f(key, &cpy)
	})
}

func (vm *VM) tables() (*tables, error) {
	vm.mu.Lock()
	root := vm.root
	vm.mu.Unlock()
	return loadTables(vm.store, root)
}

// Programs returns the ids of the programs the VM dispatches to.
func (vm *VM) Programs() []solana.PublicKey {
	out := make([]solana.PublicKey, 0, len(vm.programs))
	for id := range vm.programs {
		out = append(out, id)
	}
	return out
}

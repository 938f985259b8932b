package adt

import (
	"math"

	"github.com/filecoin-project/go-state-types/exitcode"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"
)

// Bitwidth of balance table HAMTs, determined empirically from mutation
// patterns and projections of mainnet data
const BalanceTableBitwidth = 6

// A specialization of a map of token accounts to balances.
// Absent keys hold a zero balance; a zero balance is stored as an absent key.
type BalanceTable Map

// Interprets a store as balance table with root `r`.
func AsBalanceTable(s Store, r cid.Cid) (*BalanceTable, error) {
	m, err := AsMap(s, r, BalanceTableBitwidth)
	if err != nil {
		return nil, err
	}

	return &BalanceTable{
		lastCid: r,
		root:    m.root,
		store:   s,
	}, nil
}

// Returns the root cid of underlying HAMT.
func (t *BalanceTable) Root() (cid.Cid, error) {
	return (*Map)(t).Root()
}

// Gets the balance for a key, which is zero if the key has never been added to.
func (t *BalanceTable) Get(key solana.PublicKey) (uint64, error) {
	var value balance
	found, err := (*Map)(t).Get(PubKey(key), &value)
	if !found || err != nil {
		return 0, err
	}
	return uint64(value), nil
}

// Adds an amount to a balance, requiring the resulting balance to fit in 64 bits.
func (t *BalanceTable) Add(key solana.PublicKey, value uint64) error {
	prev, err := t.Get(key)
	if err != nil {
		return xerrors.Errorf("failed to get balance of %s: %w", key, err)
	}
	if prev > math.MaxUint64-value {
		return xerrors.Errorf("balance %d of %s plus %d overflows: %w", prev, key, value, exitcode.ErrIllegalArgument)
	}
	return t.set(key, prev+value)
}

// Subtracts exactly the specified amount from a balance. Fails, leaving the balance unchanged,
// if the balance is less than the amount.
func (t *BalanceTable) Subtract(key solana.PublicKey, value uint64) error {
	prev, err := t.Get(key)
	if err != nil {
		return xerrors.Errorf("failed to get balance of %s: %w", key, err)
	}
	if prev < value {
		return xerrors.Errorf("balance %d of %s less than %d: %w", prev, key, value, exitcode.ErrInsufficientFunds)
	}
	return t.set(key, prev-value)
}

// Moves an amount between two balances, or nothing at all.
func (t *BalanceTable) Transfer(from, to solana.PublicKey, value uint64) error {
	if err := t.Subtract(from, value); err != nil {
		return err
	}
	if err := t.Add(to, value); err != nil {
		// Restore the source so the table is unchanged on failure.
		if rerr := t.Add(from, value); rerr != nil {
			return xerrors.Errorf("failed to restore %s after %v: %w", from, err, rerr)
		}
		return err
	}
	return nil
}

// Returns the total balance held in the table.
func (t *BalanceTable) Total() (uint64, error) {
	var total uint64
	var value balance
	err := (*Map)(t).ForEach(&value, func(key string) error {
		if total > math.MaxUint64-uint64(value) {
			return xerrors.Errorf("total balance overflows at %x: %w", key, exitcode.ErrIllegalState)
		}
		total += uint64(value)
		return nil
	})
	return total, err
}

func (t *BalanceTable) set(key solana.PublicKey, value uint64) error {
	if value == 0 {
		_, err := (*Map)(t).TryDelete(PubKey(key))
		return err
	}
	v := balance(value)
	return (*Map)(t).Put(PubKey(key), &v)
}

type balance uint64

func (b *balance) MarshalWithEncoder(encoder *bin.Encoder) error {
	return encoder.Encode(uint64(*b))
}

func (b *balance) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	var v uint64
	if err := decoder.Decode(&v); err != nil {
		return err
	}
	*b = balance(v)
	return nil
}

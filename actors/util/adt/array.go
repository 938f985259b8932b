package adt

import (
	amt "github.com/filecoin-project/go-amt-ipld/v4"
	bin "github.com/gagliardetto/binary"
	cid "github.com/ipfs/go-cid"
	cbg "github.com/whyrusleeping/cbor-gen"
	"golang.org/x/xerrors"
)

// Branching factor of the AMT.
const DefaultAmtBitwidth = 3

// Array stores a sparse sequence of values in an AMT. Values are borsh-encoded.
type Array struct {
	root  *amt.Root
	store Store
}

// AsArray interprets a store as an AMT-based array with root `r`.
func AsArray(s Store, r cid.Cid, bitwidth int) (*Array, error) {
	root, err := amt.LoadAMT(s.Context(), s, r, amt.UseTreeBitWidth(uint(bitwidth)))
	if err != nil {
		return nil, xerrors.Errorf("failed to load AMT with root %s: %w", r, err)
	}

	return &Array{
		root:  root,
		store: s,
	}, nil
}

// Creates a new array backed by an empty AMT.
func MakeEmptyArray(s Store, bitwidth int) (*Array, error) {
	root, err := amt.NewAMT(s, amt.UseTreeBitWidth(uint(bitwidth)))
	if err != nil {
		return nil, err
	}
	return &Array{
		root:  root,
		store: s,
	}, nil
}

// Writes a new empty array to the store, returning its CID.
func StoreEmptyArray(s Store, bitwidth int) (cid.Cid, error) {
	arr, err := MakeEmptyArray(s, bitwidth)
	if err != nil {
		return cid.Undef, err
	}
	return arr.Root()
}

// Returns the root CID of the underlying AMT.
func (a *Array) Root() (cid.Cid, error) {
	return a.root.Flush(a.store.Context())
}

// Appends a value to the end of the array. Assumes continuous array.
// If the array isn't continuous use Set and a separate counter
func (a *Array) AppendContinuous(value bin.BinaryMarshaler) error {
	if err := a.root.Set(a.store.Context(), a.root.Len(), &borshMarshaler{value}); err != nil {
		return xerrors.Errorf("append failed to set index %v value %v in root %v: %w", a.root.Len(), value, a.root, err)
	}
	return nil
}

func (a *Array) Set(i uint64, value bin.BinaryMarshaler) error {
	if err := a.root.Set(a.store.Context(), i, &borshMarshaler{value}); err != nil {
		return xerrors.Errorf("failed to set index %v value %v in root %v: %w", i, value, a.root, err)
	}
	return nil
}

// Gets the value at index `i` into `out`, if the index is present and `out` is non-nil.
// Returns whether the index was found.
func (a *Array) Get(i uint64, out bin.BinaryUnmarshaler) (bool, error) {
	var target cbg.CBORUnmarshaler
	if out != nil {
		target = &borshUnmarshaler{out}
	}
	found, err := a.root.Get(a.store.Context(), i, target)
	if err != nil {
		return false, xerrors.Errorf("failed to get index %v in root %v: %w", i, a.root, err)
	}
	return found, nil
}

// Iterates all entries in the array, deserializing each value in turn into `out` and then calling a function.
// Iteration halts if the function returns an error.
// If the output parameter is nil, deserialization is skipped.
func (a *Array) ForEach(out bin.BinaryUnmarshaler, fn func(i int64) error) error {
	return a.root.ForEach(a.store.Context(), func(k uint64, val *cbg.Deferred) error {
		if out != nil {
			if err := decodeDeferred(val.Raw, out); err != nil {
				return err
			}
		}
		return fn(int64(k))
	})
}

func (a *Array) Length() uint64 {
	return a.root.Len()
}

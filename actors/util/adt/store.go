package adt

import (
	"context"

	"github.com/gagliardetto/solana-go"
	ipldcbor "github.com/ipfs/go-ipld-cbor"
	"golang.org/x/xerrors"
)

// Store defines an interface required to back the ADTs in this package.
type Store interface {
	Context() context.Context
	ipldcbor.IpldStore
}

// Adapts a vanilla IPLD store as an ADT store.
func WrapStore(ctx context.Context, store ipldcbor.IpldStore) Store {
	return &wstore{
		ctx:       ctx,
		IpldStore: store,
	}
}

// Adapts a block store as an ADT store.
func WrapBlockStore(ctx context.Context, bs ipldcbor.IpldBlockstore) Store {
	return WrapStore(ctx, ipldcbor.NewCborStore(bs))
}

type wstore struct {
	ctx context.Context
	ipldcbor.IpldStore
}

var _ Store = &wstore{}

func (s *wstore) Context() context.Context {
	return s.ctx
}

// Keyer defines an interface required to put values in mapping.
type Keyer interface {
	Key() string
}

// Adapts a public key as a mapping key.
type PubKey solana.PublicKey

func (k PubKey) Key() string {
	return string(k[:])
}

// Parses a mapping key back into a public key.
func ParsePubKey(key string) (solana.PublicKey, error) {
	if len(key) != solana.PublicKeyLength {
		return solana.PublicKey{}, xerrors.Errorf("key of %d bytes is not a public key", len(key))
	}
	var pk solana.PublicKey
	copy(pk[:], key)
	return pk, nil
}

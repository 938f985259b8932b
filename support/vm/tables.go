package vm

import (
	"golang.org/x/xerrors"

	"github.com/tokenvest/vesting-actors/actors/util/adt"
)

// The VM state tables loaded from a state root. Mutations are visible only to the holder until flushed.
type tables struct {
	accounts      *adt.Map
	tokenAccounts *adt.Map
	balances      *adt.BalanceTable
	mints         *adt.Map
}

func loadTables(store adt.Store, root StateRoot) (*tables, error) {
	accounts, err := adt.AsMap(store, root.Accounts, adt.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load accounts: %w", err)
	}
	tokenAccounts, err := adt.AsMap(store, root.TokenAccounts, adt.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load token accounts: %w", err)
	}
	balances, err := adt.AsBalanceTable(store, root.Balances)
	if err != nil {
		return nil, xerrors.Errorf("failed to load balances: %w", err)
	}
	mints, err := adt.AsMap(store, root.Mints, adt.DefaultHamtBitwidth)
	if err != nil {
		return nil, xerrors.Errorf("failed to load mints: %w", err)
	}
	return &tables{
		accounts:      accounts,
		tokenAccounts: tokenAccounts,
		balances:      balances,
		mints:         mints,
	}, nil
}

func (t *tables) flush() (root StateRoot, err error) {
	if root.Accounts, err = t.accounts.Root(); err != nil {
		return StateRoot{}, xerrors.Errorf("failed to flush accounts: %w", err)
	}
	if root.TokenAccounts, err = t.tokenAccounts.Root(); err != nil {
		return StateRoot{}, xerrors.Errorf("failed to flush token accounts: %w", err)
	}
	if root.Balances, err = t.balances.Root(); err != nil {
		return StateRoot{}, xerrors.Errorf("failed to flush balances: %w", err)
	}
	if root.Mints, err = t.mints.Root(); err != nil {
		return StateRoot{}, xerrors.Errorf("failed to flush mints: %w", err)
	}
	return root, nil
}

package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/ledger"
)

func storedWallet(t *testing.T, o identity.Identity, release int64) Wallet {
	t.Helper()
	addr, bump, err := testNamespace.Derive(o)
	require.NoError(t, err)
	return Wallet{Owner: o, ReleaseTime: release, Bump: bump, Address: addr}
}

func TestMemoryStoreRollsBackOnError(t *testing.T) {
	store := NewMemoryStore(ledger.NewInMemory())
	ctx := context.Background()
	w := storedWallet(t, owner(1), 10)
	boom := errors.New("boom")

	err := store.Update(ctx, func(tx Tx) error {
		require.NoError(t, tx.Insert(ctx, w))
		require.NoError(t, tx.Ledger().EnsureAccount(ctx, w.Address.AccountCode()))
		got, err := tx.Get(ctx, w.Address)
		require.NoError(t, err)
		require.Equal(t, w, got)
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, store.Len())

	err = store.View(ctx, func(tx Tx) error {
		_, err := tx.Get(ctx, w.Address)
		return err
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreInsertDelete(t *testing.T) {
	store := NewMemoryStore(ledger.NewInMemory())
	ctx := context.Background()
	w := storedWallet(t, owner(2), 10)

	require.NoError(t, store.Update(ctx, func(tx Tx) error { return tx.Insert(ctx, w) }))
	require.ErrorIs(t, store.Update(ctx, func(tx Tx) error { return tx.Insert(ctx, w) }), ErrAlreadyExists)
	require.Equal(t, 1, store.Len())

	require.NoError(t, store.Update(ctx, func(tx Tx) error { return tx.Delete(ctx, w.Address) }))
	require.ErrorIs(t, store.Update(ctx, func(tx Tx) error { return tx.Delete(ctx, w.Address) }), ErrNotFound)
	require.Zero(t, store.Len())
}

func TestMemoryStoreViewIsReadOnly(t *testing.T) {
	store := NewMemoryStore(ledger.NewInMemory())
	ctx := context.Background()
	w := storedWallet(t, owner(3), 10)

	err := store.View(ctx, func(tx Tx) error { return tx.Insert(ctx, w) })
	require.ErrorIs(t, err, ledger.ErrReadOnly)
}

func TestMemoryStoreReleasedOrdersByReleaseTime(t *testing.T) {
	store := NewMemoryStore(ledger.NewInMemory())
	ctx := context.Background()
	late := storedWallet(t, owner(4), 300)
	early := storedWallet(t, owner(5), 100)
	future := storedWallet(t, owner(6), 900)

	require.NoError(t, store.Update(ctx, func(tx Tx) error {
		for _, w := range []Wallet{late, early, future} {
			if err := tx.Insert(ctx, w); err != nil {
				return err
			}
		}
		return nil
	}))

	got, err := store.Released(ctx, 300, 0)
	require.NoError(t, err)
	require.Equal(t, []Wallet{early, late}, got)

	got, err = store.Released(ctx, 1_000, 1)
	require.NoError(t, err)
	require.Equal(t, []Wallet{early}, got)

	require.NoError(t, store.Update(ctx, func(tx Tx) error { return tx.Delete(ctx, early.Address) }))
	got, err = store.Released(ctx, 1_000, 0)
	require.NoError(t, err)
	require.Equal(t, []Wallet{late, future}, got)
}

package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInMemoryLedger_TransferMaintainsBalance(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	SeedBalance(l, "wallet:a", 10_000)
	SeedBalance(l, "wallet:b", 0)

	var res TransactionResult
	err := l.Update(ctx, func(b Book) error {
		var err error
		res, err = b.Transfer(ctx, "wallet:a", "wallet:b", KindDeposit, 1_500)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, uint64(8_500), res.FromBalance)
	require.Equal(t, uint64(1_500), res.ToBalance)

	total := l.balances["wallet:a"] + l.balances["wallet:b"]
	require.Equal(t, uint64(10_000), total, "ledger not balanced")
}

func TestInMemoryLedger_FailedUpdateRollsBack(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	SeedBalance(l, "wallet:a", 5_000)
	SeedBalance(l, "wallet:b", 0)

	boom := errors.New("boom")
	err := l.Update(ctx, func(b Book) error {
		if _, err := b.Transfer(ctx, "wallet:a", "wallet:b", KindDeposit, 500); err != nil {
			return err
		}
		if err := b.EnsureAccount(ctx, "wallet:c"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Equal(t, uint64(5_000), l.balances["wallet:a"])
	require.Equal(t, uint64(0), l.balances["wallet:b"])
	_, exists := l.balances["wallet:c"]
	require.False(t, exists)
}

func TestInMemoryLedger_InsufficientFunds(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	SeedBalance(l, "wallet:a", 100)
	SeedBalance(l, "wallet:b", 0)

	err := l.Update(ctx, func(b Book) error {
		_, err := b.Transfer(ctx, "wallet:a", "wallet:b", KindDeposit, 101)
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = l.Update(ctx, func(b Book) error {
		_, err := b.Transfer(ctx, "wallet:missing", "wallet:b", KindDeposit, 1)
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	err = l.Update(ctx, func(b Book) error {
		_, err := b.Transfer(ctx, "wallet:a", "wallet:missing", KindDeposit, 1)
		return err
	})
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestInMemoryLedger_MintAndRemove(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	err := l.Update(ctx, func(b Book) error {
		if err := b.EnsureAccount(ctx, "system:alice"); err != nil {
			return err
		}
		_, err := b.Mint(ctx, "system:alice", 2_000)
		return err
	})
	require.NoError(t, err)
	require.Equal(t, uint64(2_000), l.Minted())

	err = l.Update(ctx, func(b Book) error {
		return b.RemoveAccount(ctx, "system:alice")
	})
	require.ErrorIs(t, err, ErrAccountNotEmpty)

	err = l.Update(ctx, func(b Book) error {
		if err := b.EnsureAccount(ctx, "wallet:x"); err != nil {
			return err
		}
		if _, err := b.Transfer(ctx, "system:alice", "wallet:x", KindDeposit, 2_000); err != nil {
			return err
		}
		if err := b.RemoveAccount(ctx, "system:alice"); err != nil {
			return err
		}
		_, err := b.Balance(ctx, "system:alice")
		if !errors.Is(err, ErrAccountNotFound) {
			return errors.New("removed account still visible inside the transaction")
		}
		return nil
	})
	require.NoError(t, err)

	err = l.View(ctx, func(b Book) error {
		_, err := b.Balance(ctx, "system:alice")
		return err
	})
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestInMemoryLedger_ViewIsReadOnly(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()

	err := l.View(ctx, func(b Book) error {
		return b.EnsureAccount(ctx, "wallet:a")
	})
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestInMemoryLedger_ConcurrentTransfers(t *testing.T) {
	l := NewInMemory()
	ctx := context.Background()
	SeedBalance(l, "wallet:a", 100_000)
	SeedBalance(l, "wallet:b", 0)

	const workers = 10
	const amount = uint64(500)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.Update(ctx, func(b Book) error {
				_, err := b.Transfer(ctx, "wallet:a", "wallet:b", KindDeposit, amount)
				return err
			})
			if err != nil {
				t.Errorf("transfer failed: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, uint64(100_000-workers*amount), l.balances["wallet:a"])
	require.Equal(t, uint64(workers*amount), l.balances["wallet:b"])
}

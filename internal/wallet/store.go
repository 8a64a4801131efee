package wallet

import (
	"context"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/ledger"
)

// Tx is the view of wallet records and ledger balances inside one store
// transaction. Writes become visible to others only when the transaction commits.
type Tx interface {
	Get(ctx context.Context, addr identity.Address) (Wallet, error)
	Insert(ctx context.Context, w Wallet) error
	Delete(ctx context.Context, addr identity.Address) error
	// Ledger returns the ledger book bound to this transaction.
	Ledger() ledger.Book
}

// Store persists wallet records atomically with their ledger postings.
type Store interface {
	// Update runs fn in a read-write transaction, rolled back when fn fails.
	Update(ctx context.Context, fn func(Tx) error) error
	View(ctx context.Context, fn func(Tx) error) error
	// Released lists up to limit wallets whose release time is at or before at,
	// oldest release first.
	Released(ctx context.Context, at int64, limit int) ([]Wallet, error)
}

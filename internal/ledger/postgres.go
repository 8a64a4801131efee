package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

var _ Ledger = (*PostgresLedger)(nil)

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Update implements Ledger.
func (l *PostgresLedger) Update(ctx context.Context, fn func(Book) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(NewPostgresBook(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// View implements Ledger.
func (l *PostgresLedger) View(ctx context.Context, fn func(Book) error) error {
	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	return fn(NewReadOnlyPostgresBook(tx))
}

// PostgresBook is a Book bound to an open pgx transaction. Callers that
// already hold a transaction (e.g. the wallet store) use it so ledger postings
// commit together with their own writes.
type PostgresBook struct {
	tx       pgx.Tx
	writable bool
}

// NewPostgresBook wraps a read-write transaction.
func NewPostgresBook(tx pgx.Tx) *PostgresBook {
	return &PostgresBook{tx: tx, writable: true}
}

// NewReadOnlyPostgresBook wraps a transaction opened for reading only.
func NewReadOnlyPostgresBook(tx pgx.Tx) *PostgresBook {
	return &PostgresBook{tx: tx}
}

// EnsureAccount guarantees an open account exists for the provided code.
func (b *PostgresBook) EnsureAccount(ctx context.Context, code string) error {
	if !b.writable {
		return ErrReadOnly
	}
	_, err := b.tx.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO UPDATE SET closed_at = NULL WHERE accounts.closed_at IS NOT NULL`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (b *PostgresBook) Balance(ctx context.Context, code string) (uint64, error) {
	id, err := b.accountID(ctx, code)
	if err != nil {
		return 0, err
	}
	return balanceForAccount(ctx, b.tx, id)
}

// Transfer records a balanced posting between two accounts.
func (b *PostgresBook) Transfer(ctx context.Context, fromCode, toCode, kind string, amount uint64) (TransactionResult, error) {
	if !b.writable {
		return TransactionResult{}, ErrReadOnly
	}
	if amount > maxAmount {
		return TransactionResult{}, ErrInvalidAmount
	}

	fromAccountID, err := b.accountID(ctx, fromCode)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return TransactionResult{}, ErrInsufficientFunds
		}
		return TransactionResult{}, err
	}
	toAccountID, err := b.accountID(ctx, toCode)
	if err != nil {
		return TransactionResult{}, err
	}

	fromBalance, err := balanceForAccount(ctx, b.tx, fromAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	if fromBalance < amount {
		return TransactionResult{}, ErrInsufficientFunds
	}

	txID := uuid.New()
	if amount > 0 && fromAccountID != toAccountID {
		if err := b.post(ctx, txID, kind, fromAccountID, toAccountID, int64(amount)); err != nil {
			return TransactionResult{}, err
		}
	}

	fromBal, err := balanceForAccount(ctx, b.tx, fromAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	toBal, err := balanceForAccount(ctx, b.tx, toAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	return TransactionResult{TransactionID: txID.String(), FromBalance: fromBal, ToBalance: toBal}, nil
}

// Mint credits toCode from the faucet account, which is allowed to go negative.
func (b *PostgresBook) Mint(ctx context.Context, toCode string, amount uint64) (TransactionResult, error) {
	if !b.writable {
		return TransactionResult{}, ErrReadOnly
	}
	if amount > maxAmount {
		return TransactionResult{}, ErrInvalidAmount
	}
	if err := b.EnsureAccount(ctx, FaucetAccountCode); err != nil {
		return TransactionResult{}, err
	}
	faucetID, err := b.accountID(ctx, FaucetAccountCode)
	if err != nil {
		return TransactionResult{}, err
	}
	toAccountID, err := b.accountID(ctx, toCode)
	if err != nil {
		return TransactionResult{}, err
	}

	txID := uuid.New()
	if amount > 0 {
		if err := b.post(ctx, txID, KindMint, faucetID, toAccountID, int64(amount)); err != nil {
			return TransactionResult{}, err
		}
	}
	toBal, err := balanceForAccount(ctx, b.tx, toAccountID)
	if err != nil {
		return TransactionResult{}, err
	}
	return TransactionResult{TransactionID: txID.String(), ToBalance: toBal}, nil
}

// RemoveAccount closes an account with a zero balance. Its entries are kept.
func (b *PostgresBook) RemoveAccount(ctx context.Context, code string) error {
	if !b.writable {
		return ErrReadOnly
	}
	id, err := b.accountID(ctx, code)
	if err != nil {
		return err
	}
	balance, err := balanceForAccount(ctx, b.tx, id)
	if err != nil {
		return err
	}
	if balance != 0 {
		return fmt.Errorf("%s holds %d: %w", code, balance, ErrAccountNotEmpty)
	}
	_, err = b.tx.Exec(ctx, `UPDATE accounts SET closed_at = now() WHERE id = $1`, id)
	return err
}

func (b *PostgresBook) post(ctx context.Context, txID uuid.UUID, kind string, from, to uuid.UUID, amount int64) error {
	if _, err := b.tx.Exec(ctx, `INSERT INTO transactions (id, kind) VALUES ($1, $2)`, txID, kind); err != nil {
		return err
	}
	if _, err := b.tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, from, -amount); err != nil {
		return err
	}
	if _, err := b.tx.Exec(ctx, `INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, to, amount); err != nil {
		return err
	}
	return nil
}

func (b *PostgresBook) accountID(ctx context.Context, code string) (uuid.UUID, error) {
	query := `SELECT id FROM accounts WHERE code = $1 AND closed_at IS NULL`
	if b.writable {
		query += ` FOR UPDATE`
	}
	var id uuid.UUID
	if err := b.tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%s: %w", code, ErrAccountNotFound)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (uint64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	if balance < 0 {
		// Only the faucet account runs negative.
		return 0, nil
	}
	return uint64(balance), nil
}

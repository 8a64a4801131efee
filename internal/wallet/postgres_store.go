package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/ledger"
)

// PostgresStore stores wallet records in PostgreSQL. Ledger postings made
// through Tx.Ledger share the record's transaction.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Update implements Store.
func (s *PostgresStore) Update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&pgTx{tx: tx, book: ledger.NewPostgresBook(tx), writable: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// View implements Store.
func (s *PostgresStore) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	return fn(&pgTx{tx: tx, book: ledger.NewReadOnlyPostgresBook(tx)})
}

// Released implements Store.
func (s *PostgresStore) Released(ctx context.Context, at int64, limit int) ([]Wallet, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(ctx, `SELECT address, data FROM wallets
        WHERE release_time <= $1 ORDER BY release_time, address LIMIT $2`, at, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wallet
	for rows.Next() {
		var (
			rawAddr string
			data    []byte
		)
		if err := rows.Scan(&rawAddr, &data); err != nil {
			return nil, err
		}
		addr, err := identity.ParseAddress(rawAddr)
		if err != nil {
			return nil, fmt.Errorf("stored address %q: %w", rawAddr, err)
		}
		w, err := decodeRecord(addr, data)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

type pgTx struct {
	tx       pgx.Tx
	book     *ledger.PostgresBook
	writable bool
}

func (t *pgTx) Ledger() ledger.Book { return t.book }

// Get locks the row for the rest of a writable transaction.
func (t *pgTx) Get(ctx context.Context, addr identity.Address) (Wallet, error) {
	query := `SELECT data FROM wallets WHERE address = $1`
	if t.writable {
		query += ` FOR UPDATE`
	}
	var data []byte
	if err := t.tx.QueryRow(ctx, query, addr.String()).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	return decodeRecord(addr, data)
}

func (t *pgTx) Insert(ctx context.Context, w Wallet) error {
	if !t.writable {
		return ledger.ErrReadOnly
	}
	data, err := w.MarshalBinary()
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `INSERT INTO wallets (address, owner, release_time, bump, data)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT DO NOTHING`,
		w.Address.String(), w.Owner.String(), w.ReleaseTime, int16(w.Bump), data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (t *pgTx) Delete(ctx context.Context, addr identity.Address) error {
	if !t.writable {
		return ledger.ErrReadOnly
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM wallets WHERE address = $1`, addr.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

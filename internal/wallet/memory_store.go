package wallet

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/ledger"
)

const btreeDegree = 16

type memRecord struct {
	addr        identity.Address
	releaseTime int64
	data        []byte
}

func byAddress(a, b memRecord) bool {
	return bytes.Compare(a.addr[:], b.addr[:]) < 0
}

func byRelease(a, b memRecord) bool {
	if a.releaseTime != b.releaseTime {
		return a.releaseTime < b.releaseTime
	}
	return byAddress(a, b)
}

// MemoryStore keeps encoded wallet records in ordered in-memory indexes and
// shares transactions with an in-memory ledger. It is meant for development
// and tests.
type MemoryStore struct {
	ledger *ledger.InMemory

	mu       sync.RWMutex
	records  *btree.BTreeG[memRecord]
	releases *btree.BTreeG[memRecord]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds a store whose balances live in led.
func NewMemoryStore(led *ledger.InMemory) *MemoryStore {
	return &MemoryStore{
		ledger:   led,
		records:  btree.NewG(btreeDegree, byAddress),
		releases: btree.NewG(btreeDegree, byRelease),
	}
}

// Update implements Store. The ledger allows one writer at a time, so the
// overlay never races another Update.
func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	return s.ledger.Update(ctx, func(book ledger.Book) error {
		tx := s.newTx(book, true)
		if err := fn(tx); err != nil {
			return err
		}
		s.apply(tx)
		return nil
	})
}

// View implements Store.
func (s *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	return s.ledger.View(ctx, func(book ledger.Book) error {
		return fn(s.newTx(book, false))
	})
}

// Released implements Store.
func (s *MemoryStore) Released(_ context.Context, at int64, limit int) ([]Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		out  []Wallet
		ferr error
	)
	s.releases.Ascend(func(rec memRecord) bool {
		if rec.releaseTime > at || (limit > 0 && len(out) >= limit) {
			return false
		}
		w, err := decodeRecord(rec.addr, rec.data)
		if err != nil {
			ferr = err
			return false
		}
		out = append(out, w)
		return true
	})
	return out, ferr
}

// Len returns the number of stored wallets.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records.Len()
}

func (s *MemoryStore) newTx(book ledger.Book, writable bool) *memTx {
	return &memTx{
		store:    s,
		book:     book,
		writable: writable,
		puts:     make(map[identity.Address]memRecord),
		deletes:  make(map[identity.Address]bool),
	}
}

func (s *MemoryStore) apply(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for addr := range tx.deletes {
		if old, ok := s.records.Delete(memRecord{addr: addr}); ok {
			s.releases.Delete(old)
		}
	}
	for _, rec := range tx.puts {
		if old, ok := s.records.ReplaceOrInsert(rec); ok {
			s.releases.Delete(old)
		}
		s.releases.ReplaceOrInsert(rec)
	}
}

type memTx struct {
	store    *MemoryStore
	book     ledger.Book
	writable bool
	puts     map[identity.Address]memRecord
	deletes  map[identity.Address]bool
}

func (tx *memTx) Ledger() ledger.Book { return tx.book }

func (tx *memTx) Get(_ context.Context, addr identity.Address) (Wallet, error) {
	if tx.deletes[addr] {
		return Wallet{}, ErrNotFound
	}
	if rec, ok := tx.puts[addr]; ok {
		return decodeRecord(addr, rec.data)
	}

	tx.store.mu.RLock()
	rec, ok := tx.store.records.Get(memRecord{addr: addr})
	tx.store.mu.RUnlock()
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return decodeRecord(addr, rec.data)
}

func (tx *memTx) Insert(ctx context.Context, w Wallet) error {
	if !tx.writable {
		return ledger.ErrReadOnly
	}
	if _, err := tx.Get(ctx, w.Address); err == nil {
		return ErrAlreadyExists
	}
	data, err := w.MarshalBinary()
	if err != nil {
		return err
	}
	delete(tx.deletes, w.Address)
	tx.puts[w.Address] = memRecord{addr: w.Address, releaseTime: w.ReleaseTime, data: data}
	return nil
}

func (tx *memTx) Delete(ctx context.Context, addr identity.Address) error {
	if !tx.writable {
		return ledger.ErrReadOnly
	}
	if _, err := tx.Get(ctx, addr); err != nil {
		return err
	}
	delete(tx.puts, addr)
	tx.deletes[addr] = true
	return nil
}

func decodeRecord(addr identity.Address, data []byte) (Wallet, error) {
	var w Wallet
	if err := w.UnmarshalBinary(data); err != nil {
		return Wallet{}, fmt.Errorf("wallet %s: %w", addr, err)
	}
	w.Address = addr
	return w, nil
}

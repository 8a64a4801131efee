package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// InMemory is a concurrency-safe single-writer ledger. Each Update works on an
// overlay of the committed balances which is merged only on success.
type InMemory struct {
	mu       sync.RWMutex
	balances map[string]uint64
	minted   uint64
}

var _ Ledger = (*InMemory)(nil)

// NewInMemory creates an in-memory ledger useful for unit tests and development.
func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[string]uint64)}
}

// Update implements Ledger.
func (l *InMemory) Update(_ context.Context, fn func(Book) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.overlay(true)
	if err := fn(b); err != nil {
		return err
	}
	l.commit(b)
	return nil
}

// View implements Ledger.
func (l *InMemory) View(_ context.Context, fn func(Book) error) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return fn(l.overlay(false))
}

// Minted reports the total amount issued by the faucet.
func (l *InMemory) Minted() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minted
}

func (l *InMemory) overlay(writable bool) *memBook {
	return &memBook{
		base:     l,
		writable: writable,
		set:      make(map[string]uint64),
		removed:  make(map[string]bool),
	}
}

func (l *InMemory) commit(b *memBook) {
	for code := range b.removed {
		delete(l.balances, code)
	}
	for code, balance := range b.set {
		l.balances[code] = balance
	}
	l.minted += b.minted
}

type memBook struct {
	base     *InMemory
	writable bool
	set      map[string]uint64
	removed  map[string]bool
	minted   uint64
}

func (b *memBook) lookup(code string) (uint64, bool) {
	if b.removed[code] {
		return 0, false
	}
	if v, ok := b.set[code]; ok {
		return v, true
	}
	v, ok := b.base.balances[code]
	return v, ok
}

func (b *memBook) put(code string, balance uint64) {
	delete(b.removed, code)
	b.set[code] = balance
}

func (b *memBook) EnsureAccount(_ context.Context, code string) error {
	if !b.writable {
		return ErrReadOnly
	}
	if _, exists := b.lookup(code); !exists {
		b.put(code, 0)
	}
	return nil
}

func (b *memBook) Balance(_ context.Context, code string) (uint64, error) {
	balance, exists := b.lookup(code)
	if !exists {
		return 0, fmt.Errorf("%s: %w", code, ErrAccountNotFound)
	}
	return balance, nil
}

func (b *memBook) Transfer(_ context.Context, fromCode, toCode, kind string, amount uint64) (TransactionResult, error) {
	if !b.writable {
		return TransactionResult{}, ErrReadOnly
	}
	if amount > maxAmount {
		return TransactionResult{}, ErrInvalidAmount
	}

	fromBalance, ok := b.lookup(fromCode)
	if !ok {
		return TransactionResult{}, ErrInsufficientFunds
	}
	toBalance, ok := b.lookup(toCode)
	if !ok {
		return TransactionResult{}, fmt.Errorf("%s: %w", toCode, ErrAccountNotFound)
	}
	if fromCode == toCode {
		return TransactionResult{TransactionID: kind + ":" + uuid.NewString(), FromBalance: fromBalance, ToBalance: toBalance}, nil
	}

	if fromBalance < amount {
		return TransactionResult{}, ErrInsufficientFunds
	}
	if toBalance+amount < toBalance {
		return TransactionResult{}, ErrInvalidAmount
	}

	fromBalance -= amount
	toBalance += amount
	b.put(fromCode, fromBalance)
	b.put(toCode, toBalance)

	return TransactionResult{
		TransactionID: kind + ":" + uuid.NewString(),
		FromBalance:   fromBalance,
		ToBalance:     toBalance,
	}, nil
}

func (b *memBook) Mint(_ context.Context, toCode string, amount uint64) (TransactionResult, error) {
	if !b.writable {
		return TransactionResult{}, ErrReadOnly
	}
	if amount > maxAmount {
		return TransactionResult{}, ErrInvalidAmount
	}
	toBalance, ok := b.lookup(toCode)
	if !ok {
		return TransactionResult{}, fmt.Errorf("%s: %w", toCode, ErrAccountNotFound)
	}
	if toBalance+amount < toBalance {
		return TransactionResult{}, ErrInvalidAmount
	}

	toBalance += amount
	b.put(toCode, toBalance)
	b.minted += amount

	return TransactionResult{TransactionID: KindMint + ":" + uuid.NewString(), ToBalance: toBalance}, nil
}

func (b *memBook) RemoveAccount(_ context.Context, code string) error {
	if !b.writable {
		return ErrReadOnly
	}
	balance, ok := b.lookup(code)
	if !ok {
		return fmt.Errorf("%s: %w", code, ErrAccountNotFound)
	}
	if balance != 0 {
		return fmt.Errorf("%s holds %d: %w", code, balance, ErrAccountNotEmpty)
	}
	delete(b.set, code)
	b.removed[code] = true
	return nil
}

package ledger

import (
	"context"
	"errors"
	"math"
)

var (
	// ErrInsufficientFunds occurs when the source account lacks available balance
	// to cover a requested posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAccountNotFound indicates the account code has never been opened or was removed.
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountNotEmpty is returned when removing an account that still holds funds.
	ErrAccountNotEmpty = errors.New("account not empty")

	// ErrInvalidAmount rejects amounts the backend cannot represent.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrReadOnly is returned by mutating calls made inside View.
	ErrReadOnly = errors.New("ledger transaction is read-only")
)

const (
	// FaucetAccountCode is the issuing account debited by Mint.
	FaucetAccountCode = "system:faucet"

	KindRent     = "rent"
	KindDeposit  = "deposit"
	KindWithdraw = "withdraw"
	KindClose    = "close"
	KindMint     = "mint"
)

// maxAmount is the largest posting every backend can store.
const maxAmount = math.MaxInt64

// TransactionResult captures the outcome of a ledger posting.
type TransactionResult struct {
	TransactionID string
	FromBalance   uint64
	ToBalance     uint64
}

// Book is the transfer primitive scoped to one ledger transaction. Nothing
// written through a Book is visible outside it until the enclosing Update
// returns successfully.
type Book interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (uint64, error)
	Transfer(ctx context.Context, fromCode, toCode, kind string, amount uint64) (TransactionResult, error)
	Mint(ctx context.Context, toCode string, amount uint64) (TransactionResult, error)
	RemoveAccount(ctx context.Context, code string) error
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	// Update runs fn in a read-write transaction. Any error from fn discards
	// every posting made through the Book.
	Update(ctx context.Context, fn func(Book) error) error
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Book) error) error
}

package funding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/ledger"
)

var (
	// ErrDisabled is returned when the faucet is switched off.
	ErrDisabled = errors.New("faucet disabled")

	// ErrAmountOutOfRange rejects zero amounts and amounts above the faucet limit.
	ErrAmountOutOfRange = errors.New("airdrop amount out of range")
)

// Observer receives the outcome of every airdrop.
type Observer interface {
	ObserveAirdrop(outcome string)
}

// Config bounds the faucet.
type Config struct {
	Enabled   bool
	MaxAmount uint64
}

// Service credits external identity accounts from the faucet and reads their
// balances. It is the only way new funds enter the ledger.
type Service struct {
	ledger   ledger.Ledger
	cfg      Config
	logger   *slog.Logger
	observer Observer
}

// NewService builds a funding service. observer may be nil.
func NewService(led ledger.Ledger, cfg Config, logger *slog.Logger, observer Observer) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: led, cfg: cfg, logger: logger, observer: observer}
}

// AirdropResult represents the domain outcome of a faucet credit.
type AirdropResult struct {
	TransactionID string
	Identity      identity.Identity
	Amount        uint64
	Balance       uint64
	CompletedAt   time.Time
}

// Airdrop mints amount into the external account of to, opening it when needed.
func (s *Service) Airdrop(ctx context.Context, to identity.Identity, amount uint64) (AirdropResult, error) {
	res, err := s.airdrop(ctx, to, amount)
	if s.observer != nil {
		outcome := "ok"
		if err != nil {
			outcome = "rejected"
		}
		s.observer.ObserveAirdrop(outcome)
	}
	return res, err
}

func (s *Service) airdrop(ctx context.Context, to identity.Identity, amount uint64) (AirdropResult, error) {
	if !s.cfg.Enabled {
		return AirdropResult{}, ErrDisabled
	}
	if amount == 0 || (s.cfg.MaxAmount > 0 && amount > s.cfg.MaxAmount) {
		return AirdropResult{}, fmt.Errorf("%d not in [1, %d]: %w", amount, s.cfg.MaxAmount, ErrAmountOutOfRange)
	}

	var minted ledger.TransactionResult
	err := s.ledger.Update(ctx, func(book ledger.Book) error {
		if err := book.EnsureAccount(ctx, to.AccountCode()); err != nil {
			return err
		}
		var err error
		minted, err = book.Mint(ctx, to.AccountCode(), amount)
		return err
	})
	if err != nil {
		s.logger.Warn("faucet airdrop failed", slog.String("identity", to.String()), slog.Any("error", err))
		return AirdropResult{}, err
	}

	s.logger.Info("faucet airdrop",
		slog.String("identity", to.String()),
		slog.Uint64("amount", amount),
		slog.String("transaction_id", minted.TransactionID),
	)
	return AirdropResult{
		TransactionID: minted.TransactionID,
		Identity:      to,
		Amount:        amount,
		Balance:       minted.ToBalance,
		CompletedAt:   time.Now().UTC(),
	}, nil
}

// Balance returns the external balance of id. Unknown identities hold nothing.
func (s *Service) Balance(ctx context.Context, id identity.Identity) (uint64, error) {
	var balance uint64
	err := s.ledger.View(ctx, func(book ledger.Book) error {
		var err error
		balance, err = book.Balance(ctx, id.AccountCode())
		return err
	})
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return 0, nil
	}
	return balance, err
}

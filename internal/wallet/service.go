package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/ledger"
	"github.com/congo-pay/timelock/internal/lock"
	"github.com/congo-pay/timelock/internal/reserve"
)

const (
	opCreate   = "create"
	opDeposit  = "deposit"
	opWithdraw = "withdraw"
	opClose    = "close"
)

// Observer receives the outcome of every lifecycle operation.
type Observer interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
}

// Deps are the collaborators of Service. Clock, Locker, Reserve and Logger
// fall back to defaults when nil.
type Deps struct {
	Store     Store
	Locker    lock.Locker
	Reserve   reserve.Oracle
	Clock     clock.Clock
	Namespace identity.Namespace
	Logger    *slog.Logger
	Observer  Observer
}

// Service runs the wallet lifecycle: create, deposit, withdraw and close.
// Each operation holds the wallet address lock and runs in one store transaction.
type Service struct {
	store    Store
	locker   lock.Locker
	reserve  reserve.Oracle
	clock    clock.Clock
	ns       identity.Namespace
	logger   *slog.Logger
	observer Observer
}

// NewService builds a wallet service instance.
func NewService(d Deps) *Service {
	s := &Service{
		store:    d.Store,
		locker:   d.Locker,
		reserve:  d.Reserve,
		clock:    d.Clock,
		ns:       d.Namespace,
		logger:   d.Logger,
		observer: d.Observer,
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.reserve == nil {
		s.reserve = reserve.DefaultSchedule()
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Address returns the derived wallet address of owner.
func (s *Service) Address(owner identity.Identity) (identity.Address, error) {
	addr, _, err := s.ns.Derive(owner)
	return addr, err
}

// Reserve is the balance every live wallet must hold.
func (s *Service) Reserve() uint64 {
	return s.reserve.MinimumBalance(WalletSize)
}

// Create opens the wallet of owner, funding its reserve from the owner's account.
// releaseTime is not required to lie in the future.
func (s *Service) Create(ctx context.Context, caller, owner identity.Identity, releaseTime int64) (w Wallet, err error) {
	defer s.observe(opCreate, s.clock.Now(), &err)

	if err := authorizeOwner(owner, caller); err != nil {
		return Wallet{}, err
	}
	addr, bump, err := s.ns.Derive(owner)
	if err != nil {
		return Wallet{}, err
	}
	w = Wallet{Owner: owner, ReleaseTime: releaseTime, Bump: bump, Address: addr}
	minimum := s.Reserve()

	var receipt Receipt
	err = s.withLock(ctx, addr, func() error {
		return s.store.Update(ctx, func(tx Tx) error {
			if _, err := tx.Get(ctx, addr); err == nil {
				return ErrAlreadyExists
			} else if !errors.Is(err, ErrNotFound) {
				return err
			}

			book := tx.Ledger()
			if err := book.EnsureAccount(ctx, addr.AccountCode()); err != nil {
				return err
			}
			res, err := book.Transfer(ctx, owner.AccountCode(), addr.AccountCode(), ledger.KindRent, minimum)
			if err != nil {
				return fmt.Errorf("fund reserve: %w", err)
			}
			receipt = receiptFrom(addr, minimum, res, false)
			return tx.Insert(ctx, w)
		})
	})
	if err != nil {
		s.logFailure(opCreate, owner, addr, err)
		return Wallet{}, err
	}

	s.logger.Info("wallet created",
		slog.String("operation", opCreate),
		slog.String("owner", owner.String()),
		slog.String("address", addr.String()),
		slog.Int64("release_time", releaseTime),
		slog.Uint64("reserve", minimum),
		slog.String("transaction_id", receipt.TransactionID),
	)
	return w, nil
}

// Deposit moves amount from the owner's account into the wallet.
func (s *Service) Deposit(ctx context.Context, caller, owner identity.Identity, amount uint64) (r Receipt, err error) {
	defer s.observe(opDeposit, s.clock.Now(), &err)

	addr, err := s.Address(owner)
	if err != nil {
		return Receipt{}, err
	}
	err = s.withLock(ctx, addr, func() error {
		return s.store.Update(ctx, func(tx Tx) error {
			w, err := s.load(ctx, tx, addr, caller)
			if err != nil {
				return err
			}
			res, err := tx.Ledger().Transfer(ctx, w.Owner.AccountCode(), addr.AccountCode(), ledger.KindDeposit, amount)
			if err != nil {
				return err
			}
			r = receiptFrom(addr, amount, res, false)
			return nil
		})
	})
	if err != nil {
		s.logFailure(opDeposit, owner, addr, err)
		return Receipt{}, err
	}

	s.logger.Info("wallet deposit",
		slog.String("operation", opDeposit),
		slog.String("address", addr.String()),
		slog.Uint64("amount", amount),
		slog.Uint64("balance", r.WalletBalance),
	)
	return r, nil
}

// Withdraw releases everything above the reserve to the owner once the release
// time has passed. The wallet keeps exactly the reserve and stays open.
func (s *Service) Withdraw(ctx context.Context, caller, owner identity.Identity) (r Receipt, err error) {
	defer s.observe(opWithdraw, s.clock.Now(), &err)

	addr, err := s.Address(owner)
	if err != nil {
		return Receipt{}, err
	}
	minimum := s.Reserve()
	err = s.withLock(ctx, addr, func() error {
		return s.store.Update(ctx, func(tx Tx) error {
			w, err := s.load(ctx, tx, addr, caller)
			if err != nil {
				return err
			}
			if err := CheckRelease(w, s.clock.Now().Unix()); err != nil {
				return err
			}

			book := tx.Ledger()
			balance, err := book.Balance(ctx, addr.AccountCode())
			if err != nil {
				return err
			}
			amount := reserve.Withdrawable(balance, minimum)
			if err := book.EnsureAccount(ctx, w.Owner.AccountCode()); err != nil {
				return err
			}
			res, err := book.Transfer(ctx, addr.AccountCode(), w.Owner.AccountCode(), ledger.KindWithdraw, amount)
			if err != nil {
				return err
			}
			r = receiptFrom(addr, amount, res, true)
			return nil
		})
	})
	if err != nil {
		s.logFailure(opWithdraw, owner, addr, err)
		return Receipt{}, err
	}

	s.logger.Info("wallet withdraw",
		slog.String("operation", opWithdraw),
		slog.String("address", addr.String()),
		slog.Uint64("amount", r.Amount),
		slog.Uint64("balance", r.WalletBalance),
	)
	return r, nil
}

// Close returns the whole balance, reserve included, to the owner and removes
// the wallet. Closing is allowed before the release time.
func (s *Service) Close(ctx context.Context, caller, owner identity.Identity) (r Receipt, err error) {
	defer s.observe(opClose, s.clock.Now(), &err)

	addr, err := s.Address(owner)
	if err != nil {
		return Receipt{}, err
	}
	err = s.withLock(ctx, addr, func() error {
		return s.store.Update(ctx, func(tx Tx) error {
			w, err := s.load(ctx, tx, addr, caller)
			if err != nil {
				return err
			}

			book := tx.Ledger()
			balance, err := book.Balance(ctx, addr.AccountCode())
			if err != nil {
				return err
			}
			if err := book.EnsureAccount(ctx, w.Owner.AccountCode()); err != nil {
				return err
			}
			res, err := book.Transfer(ctx, addr.AccountCode(), w.Owner.AccountCode(), ledger.KindClose, balance)
			if err != nil {
				return err
			}
			if err := book.RemoveAccount(ctx, addr.AccountCode()); err != nil {
				return err
			}
			r = receiptFrom(addr, balance, res, true)
			return tx.Delete(ctx, addr)
		})
	})
	if err != nil {
		s.logFailure(opClose, owner, addr, err)
		return Receipt{}, err
	}

	s.logger.Info("wallet closed",
		slog.String("operation", opClose),
		slog.String("address", addr.String()),
		slog.Uint64("amount", r.Amount),
	)
	return r, nil
}

// Get returns the wallet of owner with its balance and release state.
func (s *Service) Get(ctx context.Context, owner identity.Identity) (View, error) {
	addr, err := s.Address(owner)
	if err != nil {
		return View{}, err
	}
	minimum := s.Reserve()
	now := s.clock.Now().Unix()

	var v View
	err = s.store.View(ctx, func(tx Tx) error {
		w, err := tx.Get(ctx, addr)
		if err != nil {
			return err
		}
		balance, err := tx.Ledger().Balance(ctx, addr.AccountCode())
		if err != nil {
			return err
		}
		v = View{
			Wallet:       w,
			Balance:      balance,
			Reserve:      minimum,
			Withdrawable: reserve.Withdrawable(balance, minimum),
			Unlocked:     w.Released(now),
		}
		return nil
	})
	return v, err
}

// load fetches the wallet at addr and checks the caller may act on it.
func (s *Service) load(ctx context.Context, tx Tx, addr identity.Address, caller identity.Identity) (Wallet, error) {
	w, err := tx.Get(ctx, addr)
	if err != nil {
		return Wallet{}, err
	}
	if !s.ns.Verify(addr, w.Owner, w.Bump) {
		return Wallet{}, ErrInvalidAddress
	}
	if err := Authorize(w, caller); err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (s *Service) withLock(ctx context.Context, addr identity.Address, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, addr.String())
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (s *Service) observe(op string, start time.Time, err *error) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(op, Outcome(*err), s.clock.Since(start))
}

func (s *Service) logFailure(op string, owner identity.Identity, addr identity.Address, err error) {
	s.logger.Warn("wallet operation failed",
		slog.String("operation", op),
		slog.String("owner", owner.String()),
		slog.String("address", addr.String()),
		slog.Any("error", err),
	)
}

// Outcome maps an operation error to a short label for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTooEarly):
		return "too_early"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "invalid_amount"
	default:
		return "error"
	}
}

// receiptFrom reads the wallet and owner balances off a transfer. outbound is
// true when the wallet was the source.
func receiptFrom(addr identity.Address, amount uint64, res ledger.TransactionResult, outbound bool) Receipt {
	r := Receipt{TransactionID: res.TransactionID, Address: addr, Amount: amount}
	if outbound {
		r.WalletBalance, r.OwnerBalance = res.FromBalance, res.ToBalance
	} else {
		r.WalletBalance, r.OwnerBalance = res.ToBalance, res.FromBalance
	}
	return r
}

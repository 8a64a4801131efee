package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/robfig/cron/v3"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/wallet"
)

const scanBatch = 1000

// ReleasedLister lists wallets whose release time is at or before a unix time.
type ReleasedLister interface {
	Released(ctx context.Context, at int64, limit int) ([]wallet.Wallet, error)
}

// ReleaseObserver counts wallets reported by the watcher.
type ReleaseObserver interface {
	ObserveReleased(n int)
}

// ReleaseWatcher periodically tells owners their wallet can be withdrawn.
// Each wallet is reported once per lifetime.
type ReleaseWatcher struct {
	source   ReleasedLister
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
	observer ReleaseObserver

	mu       sync.Mutex
	notified map[identity.Address]int64
	cron     *cron.Cron
}

// NewReleaseWatcher builds a watcher. clk, logger and observer may be nil.
func NewReleaseWatcher(source ReleasedLister, notifier Notifier, clk clock.Clock, logger *slog.Logger, observer ReleaseObserver) *ReleaseWatcher {
	if clk == nil {
		clk = clock.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReleaseWatcher{
		source:   source,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		observer: observer,
		notified: make(map[identity.Address]int64),
	}
}

// Scan notifies every released wallet not reported yet and returns how many
// notifications were sent.
func (w *ReleaseWatcher) Scan(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	released, err := w.source.Released(ctx, w.clock.Now().Unix(), scanBatch)
	if err != nil {
		return 0, fmt.Errorf("list released wallets: %w", err)
	}

	current := make(map[identity.Address]int64, len(released))
	sent := 0
	for _, wl := range released {
		current[wl.Address] = wl.ReleaseTime
		if at, ok := w.notified[wl.Address]; ok && at == wl.ReleaseTime {
			continue
		}
		msg := Message{
			Kind:        KindWalletReleased,
			Owner:       wl.Owner,
			Address:     wl.Address,
			ReleaseTime: wl.ReleaseTime,
		}
		if err := w.notifier.Send(ctx, msg); err != nil {
			w.logger.Warn("release notification failed", slog.String("address", wl.Address.String()), slog.Any("error", err))
			continue
		}
		w.notified[wl.Address] = wl.ReleaseTime
		sent++
	}

	// Forget closed wallets so a re-created one is reported again. A full
	// batch may be truncated, so only prune when the listing was complete.
	if len(released) < scanBatch {
		for addr := range w.notified {
			if _, ok := current[addr]; !ok {
				delete(w.notified, addr)
			}
		}
	}

	if w.observer != nil && sent > 0 {
		w.observer.ObserveReleased(sent)
	}
	return sent, nil
}

// Start runs Scan on the cron schedule until Stop is called.
func (w *ReleaseWatcher) Start(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(schedule, func() {
		if _, err := w.Scan(ctx); err != nil {
			w.logger.Error("release scan failed", slog.Any("error", err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}
	w.cron = c
	c.Start()
	w.logger.Info("release watcher started", slog.String("schedule", schedule))
	return nil
}

// Stop halts the schedule and waits for a running scan to finish.
func (w *ReleaseWatcher) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
}

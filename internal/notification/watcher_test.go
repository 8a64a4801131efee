package notification

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/ledger"
	"github.com/congo-pay/timelock/internal/logging"
	"github.com/congo-pay/timelock/internal/wallet"
)

type recordingNotifier struct {
	messages []Message
}

func (r *recordingNotifier) Send(_ context.Context, m Message) error {
	r.messages = append(r.messages, m)
	return nil
}

func insert(t *testing.T, store *wallet.MemoryStore, owner identity.Identity, release int64) {
	t.Helper()
	addr, bump, err := identity.Namespace{1}.Derive(owner)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Update(ctx, func(tx wallet.Tx) error {
		return tx.Insert(ctx, wallet.Wallet{Owner: owner, ReleaseTime: release, Bump: bump, Address: addr})
	}))
}

func TestReleaseWatcherNotifiesOnce(t *testing.T) {
	store := wallet.NewMemoryStore(ledger.NewInMemory())
	clk := clock.NewMock()
	clk.Set(time.Unix(1_000, 0))
	notifier := &recordingNotifier{}
	w := NewReleaseWatcher(store, notifier, clk, logging.Discard(), nil)
	ctx := context.Background()

	insert(t, store, identity.Identity{1}, 900)
	insert(t, store, identity.Identity{2}, 1_100)

	sent, err := w.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Equal(t, identity.Identity{1}, notifier.messages[0].Owner)
	require.Equal(t, KindWalletReleased, notifier.messages[0].Kind)
	require.Contains(t, notifier.messages[0].Text(), "released at 900")

	sent, err = w.Scan(ctx)
	require.NoError(t, err)
	require.Zero(t, sent)

	clk.Add(100 * time.Second)
	sent, err = w.Scan(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Len(t, notifier.messages, 2)
}

func TestReleaseWatcherRejectsBadSchedule(t *testing.T) {
	w := NewReleaseWatcher(wallet.NewMemoryStore(ledger.NewInMemory()), &recordingNotifier{}, nil, logging.Discard(), nil)
	require.Error(t, w.Start(context.Background(), "not a schedule"))
	w.Stop()
}

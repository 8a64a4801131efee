package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/congo-pay/timelock/internal/identity"
)

// KindWalletReleased is sent once a wallet's release time has passed.
const KindWalletReleased = "wallet_released"

// Message is one event addressed to a wallet owner.
type Message struct {
	Kind        string
	Owner       identity.Identity
	Address     identity.Address
	ReleaseTime int64
}

// Text renders the message for channels that only carry plain text.
func (m Message) Text() string {
	switch m.Kind {
	case KindWalletReleased:
		return fmt.Sprintf("wallet %s released at %d", m.Address, m.ReleaseTime)
	default:
		return fmt.Sprintf("%s: wallet %s", m.Kind, m.Address)
	}
}

// Notifier delivers messages to wallet owners.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes messages to the structured logger instead of delivering them.
type LoggerNotifier struct {
	logger *slog.Logger
}

func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("owner", message.Owner.String()),
		slog.String("address", message.Address.String()),
		slog.Int64("release_time", message.ReleaseTime),
	)
	return nil
}

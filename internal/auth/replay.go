package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
)

const replayPrefix = "sig:v1:"

// ReplayGuard remembers accepted signatures for a window so a captured
// request cannot be submitted twice.
type ReplayGuard interface {
	// Claim records sig and fails with ErrReplay when it was already claimed.
	Claim(ctx context.Context, sig string, window time.Duration) error
}

// RedisReplayGuard shares claimed signatures between instances.
type RedisReplayGuard struct {
	client *redis.Client
}

// NewRedisReplayGuard builds a guard backed by client.
func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

// Claim implements ReplayGuard.
func (g *RedisReplayGuard) Claim(ctx context.Context, sig string, window time.Duration) error {
	ok, err := g.client.SetNX(ctx, replayPrefix+sig, 1, window).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrReplay
	}
	return nil
}

// MemoryReplayGuard is a single-process ReplayGuard.
type MemoryReplayGuard struct {
	clock clock.Clock

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemoryReplayGuard builds an in-process guard. A nil clock uses wall time.
func NewMemoryReplayGuard(clk clock.Clock) *MemoryReplayGuard {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryReplayGuard{clock: clk, seen: make(map[string]time.Time)}
}

// Claim implements ReplayGuard.
func (g *MemoryReplayGuard) Claim(_ context.Context, sig string, window time.Duration) error {
	now := g.clock.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for s, expiry := range g.seen {
		if !now.Before(expiry) {
			delete(g.seen, s)
		}
	}
	if _, ok := g.seen[sig]; ok {
		return ErrReplay
	}
	g.seen[strings.Clone(sig)] = now.Add(window)
	return nil
}

package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/congo-pay/timelock/internal/auth"
	"github.com/congo-pay/timelock/internal/identity"
)

const callerKey = "caller_identity"

// SignatureConfig configures SignatureAuth.
type SignatureConfig struct {
	MaxSkew time.Duration
	Clock   clock.Clock
	// Replay is optional. When set each signature is accepted once.
	Replay auth.ReplayGuard
}

// SignatureAuth verifies the ed25519 signature carried by X-Identity,
// X-Timestamp and X-Signature and stores the proven caller for handlers.
func SignatureAuth(cfg SignatureConfig) fiber.Handler {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.MaxSkew <= 0 {
		cfg.MaxSkew = 30 * time.Second
	}
	return func(c *fiber.Ctx) error {
		rawID := c.Get(auth.HeaderIdentity)
		rawTS := c.Get(auth.HeaderTimestamp)
		// The replay guard outlives the request buffer.
		sig := utils.CopyString(c.Get(auth.HeaderSignature))
		if rawID == "" || rawTS == "" || sig == "" {
			return fiber.NewError(http.StatusUnauthorized, "missing signature headers")
		}

		caller, err := identity.Parse(rawID)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid identity")
		}
		ts, err := strconv.ParseInt(rawTS, 10, 64)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid timestamp")
		}
		if err := auth.CheckFreshness(ts, cfg.Clock.Now(), cfg.MaxSkew); err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}

		req := auth.Request{Method: c.Method(), Path: c.Path(), Timestamp: ts, Body: c.Body()}
		if err := auth.Verify(caller, req, sig); err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid signature")
		}

		if cfg.Replay != nil {
			if err := cfg.Replay.Claim(c.UserContext(), sig, 2*cfg.MaxSkew); err != nil {
				if errors.Is(err, auth.ErrReplay) {
					return fiber.NewError(http.StatusUnauthorized, err.Error())
				}
				return fiber.NewError(http.StatusServiceUnavailable, "replay store failure")
			}
		}

		c.Locals(callerKey, caller)
		return c.Next()
	}
}

// Caller returns the identity proven by SignatureAuth.
func Caller(c *fiber.Ctx) (identity.Identity, bool) {
	id, ok := c.Locals(callerKey).(identity.Identity)
	return id, ok
}

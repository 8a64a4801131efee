package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/timelock/internal/funding"
)

// RegisterPublicFundingRoutes wires external balance reads.
func RegisterPublicFundingRoutes(r fiber.Router, h *funding.Handler) {
	r.Get("/accounts/:identity/balance", h.Balance)
}

// RegisterFundingRoutes wires the faucet.
func RegisterFundingRoutes(r fiber.Router, h *funding.Handler, rateLimiter fiber.Handler) {
	if rateLimiter != nil {
		r.Post("/faucet", rateLimiter, h.Airdrop)
	} else {
		r.Post("/faucet", h.Airdrop)
	}
}

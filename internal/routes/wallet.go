package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/timelock/internal/wallet"
)

// RegisterPublicWalletRoutes wires wallet reads that need no signature.
func RegisterPublicWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Get("/wallets/:owner", h.Get)
}

// RegisterWalletRoutes wires the signed wallet lifecycle endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets/:owner", h.Create)
	r.Post("/wallets/:owner/deposit", h.Deposit)
	r.Post("/wallets/:owner/withdraw", h.Withdraw)
	r.Delete("/wallets/:owner", h.Close)
}

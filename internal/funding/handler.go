package funding

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/ledger"
	"github.com/congo-pay/timelock/internal/middleware"
)

// Handler exposes HTTP endpoints for faucet funding and balances.
type Handler struct {
	service *Service
}

// NewHandler constructs a funding handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Airdrop credits the signed caller's account.
func (h *Handler) Airdrop(c *fiber.Ctx) error {
	caller, ok := middleware.Caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "signed request required")
	}
	var req AirdropRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Airdrop(c.UserContext(), caller, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrDisabled):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ErrAmountOutOfRange), errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, "airdrop failed")
		}
	}

	return c.Status(http.StatusCreated).JSON(toResponse(result))
}

// Balance returns the external balance of the identity in the path.
func (h *Handler) Balance(c *fiber.Ctx) error {
	id, err := identity.Parse(c.Params("identity"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid identity: "+err.Error())
	}
	balance, err := h.service.Balance(c.UserContext(), id)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, "balance lookup failed")
	}
	return c.Status(http.StatusOK).JSON(BalanceResponse{Identity: id.String(), Balance: balance})
}

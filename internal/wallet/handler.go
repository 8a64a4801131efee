package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/timelock/internal/identity"
	"github.com/congo-pay/timelock/internal/ledger"
	"github.com/congo-pay/timelock/internal/lock"
	"github.com/congo-pay/timelock/internal/middleware"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	ReleaseTime *int64 `json:"release_time"`
}

type depositRequest struct {
	Amount *uint64 `json:"amount"`
}

type walletResponse struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	Bump         uint8  `json:"bump"`
	ReleaseTime  int64  `json:"release_time"`
	Balance      uint64 `json:"balance"`
	Reserve      uint64 `json:"reserve"`
	Withdrawable uint64 `json:"withdrawable"`
	Released     bool   `json:"released"`
}

type receiptResponse struct {
	TransactionID string `json:"transaction_id"`
	Address       string `json:"address"`
	Amount        uint64 `json:"amount"`
	WalletBalance uint64 `json:"wallet_balance"`
	OwnerBalance  uint64 `json:"owner_balance"`
}

// Create opens the wallet of the owner named in the path.
func (h *Handler) Create(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.ReleaseTime == nil {
		return fiber.NewError(http.StatusBadRequest, "release_time is required")
	}

	w, err := h.service.Create(c.UserContext(), callerOf(c), owner, *req.ReleaseTime)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(walletResponse{
		Address:     w.Address.String(),
		Owner:       w.Owner.String(),
		Bump:        w.Bump,
		ReleaseTime: w.ReleaseTime,
		Balance:     h.service.Reserve(),
		Reserve:     h.service.Reserve(),
		Released:    w.Released(h.service.clock.Now().Unix()),
	})
}

// Deposit adds funds from the owner's account.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Amount == nil {
		return fiber.NewError(http.StatusBadRequest, "amount is required")
	}

	r, err := h.service.Deposit(c.UserContext(), callerOf(c), owner, *req.Amount)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toReceipt(r))
}

// Withdraw releases everything above the reserve.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}
	r, err := h.service.Withdraw(c.UserContext(), callerOf(c), owner)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toReceipt(r))
}

// Close drains and removes the wallet.
func (h *Handler) Close(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}
	r, err := h.service.Close(c.UserContext(), callerOf(c), owner)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toReceipt(r))
}

// Get returns the public view of a wallet.
func (h *Handler) Get(c *fiber.Ctx) error {
	owner, err := ownerParam(c)
	if err != nil {
		return err
	}
	v, err := h.service.Get(c.UserContext(), owner)
	if err != nil {
		return HTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(walletResponse{
		Address:      v.Address.String(),
		Owner:        v.Owner.String(),
		Bump:         v.Bump,
		ReleaseTime:  v.ReleaseTime,
		Balance:      v.Balance,
		Reserve:      v.Reserve,
		Withdrawable: v.Withdrawable,
		Released:     v.Unlocked,
	})
}

// HTTPError converts service errors into fiber errors with a matching status.
func HTTPError(err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrTooEarly):
		status = fiber.StatusTooEarly
	case errors.Is(err, ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrInsufficientFunds), errors.Is(err, ledger.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, lock.ErrNotAcquired):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		return fiber.NewError(status, "internal error")
	}
	return fiber.NewError(status, err.Error())
}

func ownerParam(c *fiber.Ctx) (identity.Identity, error) {
	owner, err := identity.Parse(c.Params("owner"))
	if err != nil {
		return identity.Identity{}, fiber.NewError(http.StatusBadRequest, "invalid owner: "+err.Error())
	}
	return owner, nil
}

func callerOf(c *fiber.Ctx) identity.Identity {
	caller, _ := middleware.Caller(c)
	return caller
}

func toReceipt(r Receipt) receiptResponse {
	return receiptResponse{
		TransactionID: r.TransactionID,
		Address:       r.Address.String(),
		Amount:        r.Amount,
		WalletBalance: r.WalletBalance,
		OwnerBalance:  r.OwnerBalance,
	}
}

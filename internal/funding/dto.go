package funding

import "time"

// AirdropRequest is the body of POST /faucet.
type AirdropRequest struct {
	Amount uint64 `json:"amount"`
}

// AirdropResponse is returned after a successful airdrop.
type AirdropResponse struct {
	TransactionID string    `json:"transaction_id"`
	Identity      string    `json:"identity"`
	Amount        uint64    `json:"amount"`
	Balance       uint64    `json:"balance"`
	CompletedAt   time.Time `json:"completed_at"`
}

// BalanceResponse is returned by GET /accounts/:identity/balance.
type BalanceResponse struct {
	Identity string `json:"identity"`
	Balance  uint64 `json:"balance"`
}

func toResponse(res AirdropResult) AirdropResponse {
	return AirdropResponse{
		TransactionID: res.TransactionID,
		Identity:      res.Identity.String(),
		Amount:        res.Amount,
		Balance:       res.Balance,
		CompletedAt:   res.CompletedAt,
	}
}

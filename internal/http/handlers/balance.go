package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Jhoseto/factcheck-api/internal/service"
)

// BalanceHandler handles point balance and transaction history endpoints.
type BalanceHandler struct {
	billingSvc *service.BillingService
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(billingSvc *service.BillingService) *BalanceHandler {
	return &BalanceHandler{billingSvc: billingSvc}
}

// GetBalanceOutput represents the balance response.
type GetBalanceOutput struct {
	Body struct {
		Balance       int       `json:"balance" doc:"Current point balance"`
		LifetimeAdded int       `json:"lifetime_added" doc:"Total points ever purchased"`
		LifetimeSpent int       `json:"lifetime_spent" doc:"Total points ever spent"`
		UpdatedAt     time.Time `json:"updated_at"`
	}
}

// GetBalance returns the caller's point balance. Creates a zero balance
// record for first-time callers.
func (h *BalanceHandler) GetBalance(ctx context.Context, input *struct{}) (*GetBalanceOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	balance, err := h.billingSvc.GetBalance(ctx, userID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get balance")
	}

	out := &GetBalanceOutput{}
	out.Body.Balance = balance.Balance
	out.Body.LifetimeAdded = balance.LifetimeAdded
	out.Body.LifetimeSpent = balance.LifetimeSpent
	out.Body.UpdatedAt = balance.UpdatedAt
	return out, nil
}

// ListTransactionsInput represents the transaction history query.
type ListTransactionsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"100" default:"50" doc:"Page size"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Page offset"`
}

// TransactionOutput represents one point transaction.
type TransactionOutput struct {
	ID           string    `json:"id"`
	Type         string    `json:"type" doc:"purchase, deduction, or adjustment"`
	Amount       int       `json:"amount" doc:"Signed point delta"`
	BalanceAfter int       `json:"balance_after"`
	AnalysisID   string    `json:"analysis_id,omitempty"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// ListTransactionsOutput represents the transaction history response.
type ListTransactionsOutput struct {
	Body struct {
		Transactions []TransactionOutput `json:"transactions"`
	}
}

// ListTransactions returns the caller's point transaction history,
// newest first.
func (h *BalanceHandler) ListTransactions(ctx context.Context, input *ListTransactionsInput) (*ListTransactionsOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	txns, err := h.billingSvc.ListTransactions(ctx, userID, input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list transactions")
	}

	out := &ListTransactionsOutput{}
	out.Body.Transactions = make([]TransactionOutput, 0, len(txns))
	for _, t := range txns {
		o := TransactionOutput{
			ID:           t.ID,
			Type:         string(t.Type),
			Amount:       t.Amount,
			BalanceAfter: t.BalanceAfter,
			Description:  t.Description,
			CreatedAt:    t.CreatedAt,
		}
		if t.AnalysisID != nil {
			o.AnalysisID = *t.AnalysisID
		}
		out.Body.Transactions = append(out.Body.Transactions, o)
	}
	return out, nil
}

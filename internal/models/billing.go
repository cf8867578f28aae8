// Package models defines the domain models for the application.
package models

import "time"

// ========================================
// User Balance
// ========================================

// UserBalance tracks a user's point balance. Points are integer credits,
// 100 points per euro of purchase value.
type UserBalance struct {
	UserID        string    `json:"user_id"`
	Balance       int       `json:"balance"`
	LifetimeAdded int       `json:"lifetime_added"`
	LifetimeSpent int       `json:"lifetime_spent"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ========================================
// Point Transactions
// ========================================

// PointTransactionType defines the type of point transaction.
type PointTransactionType string

const (
	TxTypePurchase   PointTransactionType = "purchase"   // Points bought via payment provider
	TxTypeDeduction  PointTransactionType = "deduction"  // Analysis usage deduction
	TxTypeAdjustment PointTransactionType = "adjustment" // Manual admin adjustment
)

// PointTransaction provides the audit trail for every point movement.
type PointTransaction struct {
	ID           string               `json:"id"`
	UserID       string               `json:"user_id"`
	Type         PointTransactionType `json:"type"`
	Amount       int                  `json:"amount"`        // Positive=credit, Negative=debit
	BalanceAfter int                  `json:"balance_after"` // Balance after this transaction

	// References
	OrderID    *string `json:"order_id,omitempty"`    // External payment order, set for purchases
	AnalysisID *string `json:"analysis_id,omitempty"` // Set for deductions

	Description string    `json:"description"`
	Metadata    string    `json:"metadata,omitempty"` // JSON blob with model/token details
	CreatedAt   time.Time `json:"created_at"`
}

// ========================================
// Processed Orders
// ========================================

// ProcessedOrder marks an external payment order as already credited.
// The order ID is UNIQUE, which is what makes webhook retries safe.
type ProcessedOrder struct {
	OrderID     string    `json:"order_id"`
	UserID      string    `json:"user_id"`
	Points      int       `json:"points"`
	ProcessedAt time.Time `json:"processed_at"`
}

// DeductResult is the outcome of a point deduction attempt. Insufficient
// funds is reported here, not as an error.
type DeductResult struct {
	Success    bool `json:"success"`
	NewBalance int  `json:"new_balance"`
}

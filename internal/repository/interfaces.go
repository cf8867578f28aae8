// Package repository defines repository interfaces for data access.
// User identity (OAuth, sessions) lives in the external auth provider; the
// user_id values here are its subject IDs.
package repository

import (
	"context"

	"github.com/Jhoseto/factcheck-api/internal/models"
)

// BillingRepository defines the atomic point-balance operations. Deduct and
// Credit each run as a single database transaction so a crash or concurrent
// request can never leave a partial deduction or a double credit.
type BillingRepository interface {
	// GetBalance returns the user's balance record, or nil if none exists.
	GetBalance(ctx context.Context, userID string) (*models.UserBalance, error)

	// EnsureBalance creates a zero-point balance record if none exists.
	// Called when an authenticated user is first seen.
	EnsureBalance(ctx context.Context, userID string) (*models.UserBalance, error)

	// Deduct atomically subtracts points and appends the transaction record.
	// Insufficient funds is reported via DeductResult, not an error.
	// A missing balance record returns a UserNotFound error.
	Deduct(ctx context.Context, userID string, points int, description, metadata string, analysisID *string) (*models.DeductResult, error)

	// Credit atomically adds points and appends the transaction record. If
	// orderID is non-empty and already processed, the whole call is a no-op.
	Credit(ctx context.Context, userID string, points int, description, orderID string) error

	// Adjust applies a signed correction, recorded as an adjustment
	// transaction. Negative amounts are clamped so the balance never goes
	// below zero. orderID is the same idempotency gate as for Credit.
	Adjust(ctx context.Context, userID string, points int, description, orderID string) error

	// ListTransactions returns the user's most recent transactions.
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.PointTransaction, error)
}

// InsightRepository stores per-request analysis telemetry.
type InsightRepository interface {
	Create(ctx context.Context, insight *models.AnalysisInsight) error
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*models.AnalysisInsight, error)
}

// Package service contains the business logic layer.
// UserID values reference subjects from the external auth provider.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Jhoseto/factcheck-api/internal/models"
	"github.com/Jhoseto/factcheck-api/internal/repository"
)

// BillingService handles point balances, deductions, and purchase credits.
// The atomicity lives in the repository; this layer adds logging and the
// purchase conversion rule.
type BillingService struct {
	repos  *repository.Repositories
	logger *slog.Logger
}

// NewBillingService creates a new billing service.
func NewBillingService(repos *repository.Repositories, logger *slog.Logger) *BillingService {
	return &BillingService{
		repos:  repos,
		logger: logger,
	}
}

// GetBalance retrieves a user's balance, creating a zero record on first
// contact so authenticated users always have one.
func (s *BillingService) GetBalance(ctx context.Context, userID string) (*models.UserBalance, error) {
	balance, err := s.repos.Billing.EnsureBalance(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// Deduct atomically charges points. Insufficient funds comes back in the
// result, never as an error.
func (s *BillingService) Deduct(ctx context.Context, userID string, points int, description, metadata string, analysisID *string) (*models.DeductResult, error) {
	result, err := s.repos.Billing.Deduct(ctx, userID, points, description, metadata, analysisID)
	if err != nil {
		return nil, fmt.Errorf("failed to deduct points: %w", err)
	}

	if result.Success {
		s.logger.Info("points deducted",
			"user_id", userID,
			"points", points,
			"new_balance", result.NewBalance,
		)
	} else {
		s.logger.Info("deduction refused, insufficient points",
			"user_id", userID,
			"points", points,
			"balance", result.NewBalance,
		)
	}
	return result, nil
}

// Credit adds purchased points. orderID makes the call idempotent: replayed
// payment webhooks credit at most once.
func (s *BillingService) Credit(ctx context.Context, userID string, points int, description, orderID string) error {
	if err := s.repos.Billing.Credit(ctx, userID, points, description, orderID); err != nil {
		return fmt.Errorf("failed to credit points: %w", err)
	}
	s.logger.Info("points credited",
		"user_id", userID,
		"points", points,
		"order_id", orderID,
	)
	return nil
}

// Refund removes points for a refunded purchase, recorded as an adjustment.
// Points the user already spent are not clawed back. The charge ID makes
// replayed refund webhooks a no-op.
func (s *BillingService) Refund(ctx context.Context, userID string, points int, chargeID string) error {
	if err := s.repos.Billing.Adjust(ctx, userID, -points, "refund", chargeID); err != nil {
		return fmt.Errorf("failed to process refund: %w", err)
	}
	s.logger.Info("refund processed",
		"user_id", userID,
		"points", points,
		"charge_id", chargeID,
	)
	return nil
}

// ListTransactions returns the user's recent point movements.
func (s *BillingService) ListTransactions(ctx context.Context, userID string, limit, offset int) ([]*models.PointTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repos.Billing.ListTransactions(ctx, userID, limit, offset)
}

// PointsForAmount converts a payment amount in euro cents into points.
// 100 points per euro means 1 point per cent.
func PointsForAmount(amountCents int64) int {
	return int(amountCents)
}

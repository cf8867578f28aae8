package service

import (
	"context"
	"log/slog"

	"github.com/Jhoseto/factcheck-api/internal/errkind"
	"github.com/Jhoseto/factcheck-api/internal/models"
	"github.com/Jhoseto/factcheck-api/internal/pricing"
)

// PreflightCheck verifies a user can afford the cheapest possible outcome of
// a request before any model quota is spent on it. The real charge is
// computed after generation; this only rejects requests that could never be
// paid for.
type PreflightCheck struct {
	billing *BillingService
	engine  *pricing.Engine
	logger  *slog.Logger
}

// NewPreflightCheck creates a new preflight check utility.
func NewPreflightCheck(billing *BillingService, engine *pricing.Engine, logger *slog.Logger) *PreflightCheck {
	return &PreflightCheck{
		billing: billing,
		engine:  engine,
		logger:  logger,
	}
}

// PreflightResult contains the results of preflight validation.
type PreflightResult struct {
	MinimumCharge int
	Balance       int
	Passed        bool
}

// Check compares the minimum plausible charge against the current balance.
// Returns an InsufficientPoints error (carrying the balance) when the user
// cannot afford the floor.
func (p *PreflightCheck) Check(ctx context.Context, userID string, serviceType models.ServiceType, mode models.AnalysisMode) (*PreflightResult, error) {
	minimum, err := p.engine.MinimumCharge(serviceType, mode)
	if err != nil {
		return nil, err
	}

	balance, err := p.billing.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &PreflightResult{MinimumCharge: minimum, Balance: balance.Balance}
	if balance.Balance < minimum {
		p.logger.Info("preflight refused",
			"user_id", userID,
			"service_type", serviceType,
			"mode", mode,
			"minimum", minimum,
			"balance", balance.Balance,
		)
		e := errkind.New(errkind.InsufficientPoints, "need at least %d points, balance is %d", minimum, balance.Balance)
		e.Balance = balance.Balance
		return result, e
	}

	result.Passed = true
	return result, nil
}

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/Jhoseto/factcheck-api/internal/config"
	"github.com/Jhoseto/factcheck-api/internal/service"
)

// StripeWebhookHandler handles Stripe webhook events.
type StripeWebhookHandler struct {
	cfg        *config.Config
	billingSvc *service.BillingService
	logger     *slog.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler.
func NewStripeWebhookHandler(cfg *config.Config, billingSvc *service.BillingService, logger *slog.Logger) *StripeWebhookHandler {
	stripe.Key = cfg.StripeSecretKey

	return &StripeWebhookHandler{
		cfg:        cfg,
		billingSvc: billingSvc,
		logger:     logger,
	}
}

// HandleWebhook processes incoming Stripe webhooks.
// This is a raw HTTP handler since huma doesn't handle raw body verification well.
func (h *StripeWebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 65536 // 64KB

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	event, err := webhook.ConstructEvent(payload, sigHeader, h.cfg.StripeWebhookSecret)
	if err != nil {
		h.logger.Error("failed to verify webhook signature", "error", err)
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := h.handleEvent(ctx, event); err != nil {
		h.logger.Error("failed to handle webhook event", "type", event.Type, "error", err)
		// Return 500 so Stripe retries; Credit is idempotent on session ID
		// so a retry after a partial failure cannot double-credit.
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// handleEvent routes events to appropriate handlers.
func (h *StripeWebhookHandler) handleEvent(ctx context.Context, event stripe.Event) error {
	h.logger.Info("received Stripe webhook", "type", event.Type, "id", event.ID)

	switch event.Type {
	case "checkout.session.completed":
		return h.handleCheckoutComplete(ctx, event)

	case "charge.refunded":
		return h.handleChargeRefunded(ctx, event)

	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		return nil
	}
}

// handleCheckoutComplete credits points for a completed point purchase.
func (h *StripeWebhookHandler) handleCheckoutComplete(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to unmarshal checkout session: %w", err)
	}

	userID, ok := session.Metadata["user_id"]
	if !ok || userID == "" {
		h.logger.Warn("checkout session missing user_id", "session_id", session.ID)
		return nil // Don't error - might be a non-point checkout
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		h.logger.Info("checkout session not paid yet", "session_id", session.ID, "status", session.PaymentStatus)
		return nil
	}

	// 1 point per euro cent; AmountTotal is in the smallest currency unit.
	points := service.PointsForAmount(session.AmountTotal)
	if points <= 0 {
		h.logger.Warn("checkout session with non-positive amount", "session_id", session.ID, "amount", session.AmountTotal)
		return nil
	}

	// The session ID is the idempotency key: Stripe retries deliver the
	// same session, and a replayed session is a silent no-op.
	if err := h.billingSvc.Credit(ctx, userID, points, "point purchase", session.ID); err != nil {
		return fmt.Errorf("failed to credit points: %w", err)
	}

	h.logger.Info("credited purchased points",
		"user_id", userID,
		"points", points,
		"session_id", session.ID,
	)
	return nil
}

// handleChargeRefunded removes points for a refunded purchase.
func (h *StripeWebhookHandler) handleChargeRefunded(ctx context.Context, event stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return fmt.Errorf("failed to unmarshal charge: %w", err)
	}

	userID := ""
	if charge.Metadata != nil {
		userID = charge.Metadata["user_id"]
	}
	if userID == "" {
		h.logger.Warn("refunded charge missing user_id", "charge_id", charge.ID)
		return nil
	}

	points := service.PointsForAmount(charge.AmountRefunded)
	if points <= 0 {
		return nil
	}

	// The charge ID is the idempotency key; replayed refund events are a
	// silent no-op. Spent points are not clawed back.
	if err := h.billingSvc.Refund(ctx, userID, points, charge.ID); err != nil {
		return fmt.Errorf("failed to process refund: %w", err)
	}

	h.logger.Info("refunded purchased points",
		"user_id", userID,
		"points", points,
		"charge_id", charge.ID,
	)
	return nil
}

package handlers

import (
	"context"

	"github.com/Jhoseto/factcheck-api/internal/models"
	"github.com/Jhoseto/factcheck-api/internal/pricing"
)

// PricingHandler exposes the current price list so the web app can render
// cost estimates without hardcoding the table.
type PricingHandler struct {
	engine *pricing.Engine
}

// NewPricingHandler creates a new pricing handler.
func NewPricingHandler(engine *pricing.Engine) *PricingHandler {
	return &PricingHandler{engine: engine}
}

// GetPricingOutput represents the public price list.
type GetPricingOutput struct {
	Body struct {
		Version       string         `json:"version" doc:"Pricing table version"`
		FixedPrices   map[string]int `json:"fixed_prices" doc:"Flat point prices per service type"`
		StandardFloor int            `json:"standard_floor" doc:"Minimum charge for a standard video analysis"`
		DeepFloor     int            `json:"deep_floor" doc:"Minimum charge for a deep video analysis"`
	}
}

// GetPricing returns the current price list.
func (h *PricingHandler) GetPricing(ctx context.Context, input *struct{}) (*GetPricingOutput, error) {
	out := &GetPricingOutput{}
	out.Body.Version = h.engine.Version()

	fixed := make(map[string]int)
	for _, st := range []models.ServiceType{models.ServiceLink, models.ServiceSocial, models.ServiceComments} {
		if p, err := h.engine.PriceFixed(st); err == nil {
			fixed[string(st)] = p
		}
	}
	out.Body.FixedPrices = fixed
	if m, err := h.engine.MinimumCharge(models.ServiceVideo, models.ModeStandard); err == nil {
		out.Body.StandardFloor = m
	}
	if m, err := h.engine.MinimumCharge(models.ServiceVideo, models.ModeDeep); err == nil {
		out.Body.DeepFloor = m
	}
	return out, nil
}

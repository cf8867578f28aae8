// Package pricing converts model token usage into point charges. All
// functions are pure: the engine holds only the rate table, so identical
// inputs always price identically, which is what makes charges auditable
// against the transaction log.
package pricing

import (
	"math"

	"github.com/Jhoseto/factcheck-api/internal/errkind"
	"github.com/Jhoseto/factcheck-api/internal/models"
)

// ModelRate gives USD cost per million tokens for one model.
type ModelRate struct {
	InputUSDPerMTok  float64
	OutputUSDPerMTok float64
}

// Table holds every constant the engine needs. Versioned so a charge can be
// traced back to the table that produced it.
type Table struct {
	Version string

	// Per-model raw cost. Unknown model IDs fall back to FallbackModel.
	Models        map[string]ModelRate
	FallbackModel string

	// Currency conversion. Points are denominated in euros.
	USDToEUR     float64
	PointsPerEUR float64

	// Profit multipliers and per-request floors.
	StandardMultiplier float64
	DeepMultiplier     float64
	StandardFloor      int
	DeepFloor          int

	// Batch API calls cost half the synchronous rate.
	BatchDiscount float64

	// Flat prices for services not metered by tokens.
	Fixed map[models.ServiceType]int
}

// DefaultTable returns the current production rate table.
func DefaultTable() Table {
	return Table{
		Version: "2025-08",
		Models: map[string]ModelRate{
			"gemini-2.5-flash": {InputUSDPerMTok: 0.30, OutputUSDPerMTok: 2.50},
			"gemini-2.5-pro":   {InputUSDPerMTok: 1.25, OutputUSDPerMTok: 10.00},
		},
		FallbackModel:      "gemini-2.5-flash",
		USDToEUR:           0.92,
		PointsPerEUR:       100,
		StandardMultiplier: 2,
		DeepMultiplier:     3,
		StandardFloor:      5,
		DeepFloor:          10,
		BatchDiscount:      0.5,
		Fixed: map[models.ServiceType]int{
			models.ServiceLink:     10,
			models.ServiceSocial:   5,
			models.ServiceComments: 15,
		},
	}
}

// Engine prices requests against a fixed table.
type Engine struct {
	table Table
}

// NewEngine returns an engine backed by the given table.
func NewEngine(table Table) *Engine {
	return &Engine{table: table}
}

// Version returns the rate table version.
func (e *Engine) Version() string {
	return e.table.Version
}

// PriceByUsage converts token usage into points. Deep mode carries a higher
// multiplier and floor because it incurs grounding/search tool cost on top of
// generation. The floor guarantees a request never bills below fixed
// overhead, even at near-zero token counts.
func (e *Engine) PriceByUsage(promptTokens, outputTokens int, deep, batch bool, modelID string) int {
	rate, ok := e.table.Models[modelID]
	if !ok {
		rate = e.table.Models[e.table.FallbackModel]
	}
	inputRate := rate.InputUSDPerMTok
	outputRate := rate.OutputUSDPerMTok
	if batch {
		inputRate *= e.table.BatchDiscount
		outputRate *= e.table.BatchDiscount
	}

	costUSD := float64(promptTokens)/1e6*inputRate + float64(outputTokens)/1e6*outputRate
	costEUR := costUSD * e.table.USDToEUR
	points := costEUR * e.table.PointsPerEUR

	multiplier := e.table.StandardMultiplier
	floor := e.table.StandardFloor
	if deep {
		multiplier = e.table.DeepMultiplier
		floor = e.table.DeepFloor
	}
	charged := int(math.Ceil(points * multiplier))
	if charged < floor {
		charged = floor
	}
	return charged
}

// PriceFixed returns the flat price for a non-metered service type. An
// unknown type is a configuration bug, not user input, so it returns an
// error the caller should treat as fatal.
func (e *Engine) PriceFixed(serviceType models.ServiceType) (int, error) {
	points, ok := e.table.Fixed[serviceType]
	if !ok {
		return 0, errkind.New(errkind.UnknownServiceType, "no fixed price configured for service type %q", serviceType)
	}
	return points, nil
}

// MinimumCharge returns the lowest amount a request of this shape can be
// billed: the fixed price for fixed-price services, else the mode floor.
// Preflight balance checks use this before any model call is made.
func (e *Engine) MinimumCharge(serviceType models.ServiceType, mode models.AnalysisMode) (int, error) {
	if !serviceType.Metered() {
		return e.PriceFixed(serviceType)
	}
	if mode == models.ModeDeep {
		return e.table.DeepFloor, nil
	}
	return e.table.StandardFloor, nil
}

package models

import "time"

// ========================================
// Analysis Requests
// ========================================

// ServiceType identifies what kind of content is being analyzed. Video
// analysis is metered by token usage; the others are fixed-price.
type ServiceType string

const (
	ServiceVideo    ServiceType = "video"
	ServiceLink     ServiceType = "link"
	ServiceSocial   ServiceType = "social"
	ServiceComments ServiceType = "comments"
)

// Valid reports whether t is a known service type.
func (t ServiceType) Valid() bool {
	switch t {
	case ServiceVideo, ServiceLink, ServiceSocial, ServiceComments:
		return true
	}
	return false
}

// Metered reports whether the service type is billed by token usage rather
// than a fixed price.
func (t ServiceType) Metered() bool {
	return t == ServiceVideo
}

// AnalysisMode selects the model tier and pricing multiplier.
type AnalysisMode string

const (
	ModeStandard AnalysisMode = "standard"
	ModeDeep     AnalysisMode = "deep"
)

// Valid reports whether m is a known mode. The empty string is treated as
// standard by callers, not here.
func (m AnalysisMode) Valid() bool {
	return m == ModeStandard || m == ModeDeep
}

// ========================================
// Analysis Insights (telemetry table)
// ========================================

// AnalysisInsight stores per-request telemetry: what was analyzed, what it
// cost, and how the model behaved. One row per completed or failed attempt.
type AnalysisInsight struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	ServiceType ServiceType  `json:"service_type"`
	Mode        AnalysisMode `json:"mode"`
	TargetURL   string       `json:"target_url,omitempty"`

	// Outcome
	Status       string `json:"status"` // completed | failed
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	Retried      bool   `json:"retried"`

	// Token usage and billing
	PromptTokens   int    `json:"prompt_tokens"`
	OutputTokens   int    `json:"output_tokens"`
	PointsCharged  int    `json:"points_charged"`
	ModelID        string `json:"model_id"`
	PricingVersion string `json:"pricing_version,omitempty"`

	// Execution metrics
	GenerateDurationMs int `json:"generate_duration_ms"`
	TotalDurationMs    int `json:"total_duration_ms"`

	// Request context
	RequestID string `json:"request_id,omitempty"`

	// Archived result location, when archiving is enabled
	ArchiveKey string `json:"archive_key,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

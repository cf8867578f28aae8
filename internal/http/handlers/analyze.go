package handlers

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Jhoseto/factcheck-api/internal/models"
	"github.com/Jhoseto/factcheck-api/internal/service"
)

// AnalyzeHandler handles fact-check analysis endpoints.
type AnalyzeHandler struct {
	analysisSvc *service.AnalysisService
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(analysisSvc *service.AnalysisService) *AnalyzeHandler {
	return &AnalyzeHandler{analysisSvc: analysisSvc}
}

// AnalyzeInput represents an analysis request.
type AnalyzeInput struct {
	Body AnalyzeRequestBody
}

// AnalyzeRequestBody is the JSON body of an analysis request.
type AnalyzeRequestBody struct {
	ServiceType string `json:"service_type" enum:"video,link,social,comments" doc:"What kind of content is being checked"`
	Mode        string `json:"mode,omitempty" enum:"standard,deep" default:"standard" doc:"Analysis depth: deep enables web search grounding"`
	URL         string `json:"url,omitempty" format:"uri" doc:"URL of the content being checked"`
	Content     string `json:"content,omitempty" maxLength:"200000" doc:"Raw content to analyze (transcript, article text, post). If omitted for link checks the page is fetched server side."`
}

// AnalyzeOutput represents an analysis response.
type AnalyzeOutput struct {
	Body AnalyzeResponseBody
}

// AnalyzeResponseBody contains the analysis result and billing summary.
type AnalyzeResponseBody struct {
	AnalysisID    string         `json:"analysis_id" doc:"Unique ID for this analysis"`
	Result        map[string]any `json:"result" doc:"Structured fact-check result"`
	PointsCharged int            `json:"points_charged" doc:"Points deducted for this analysis"`
	NewBalance    int            `json:"new_balance" doc:"Point balance after the deduction"`
	ModelID       string         `json:"model_id" doc:"Model that produced the result"`
	Retried       bool           `json:"retried" doc:"Whether the analysis needed a retry to produce valid output"`
}

// Analyze handles blocking analysis requests.
func (h *AnalyzeHandler) Analyze(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	userID := getUserID(ctx)
	if userID == "" {
		return nil, huma.Error401Unauthorized("unauthorized")
	}

	result, err := h.analysisSvc.Analyze(ctx, service.AnalysisRequest{
		UserID:      userID,
		RequestID:   middleware.GetReqID(ctx),
		ServiceType: models.ServiceType(input.Body.ServiceType),
		Mode:        models.AnalysisMode(input.Body.Mode),
		TargetURL:   input.Body.URL,
		Content:     input.Body.Content,
	})
	if err != nil {
		return nil, NewAnalysisError(err)
	}

	return &AnalyzeOutput{
		Body: AnalyzeResponseBody{
			AnalysisID:    result.AnalysisID,
			Result:        result.Parsed,
			PointsCharged: result.PointsCharged,
			NewBalance:    result.NewBalance,
			ModelID:       result.ModelID,
			Retried:       result.Retried,
		},
	}, nil
}

package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Jhoseto/factcheck-api/internal/config"
	"github.com/Jhoseto/factcheck-api/internal/errkind"
	"github.com/Jhoseto/factcheck-api/internal/llm"
	"github.com/Jhoseto/factcheck-api/internal/models"
	"github.com/Jhoseto/factcheck-api/internal/pricing"
	"github.com/Jhoseto/factcheck-api/internal/repository"
	"github.com/Jhoseto/factcheck-api/internal/validate"
)

// AnalysisRequest is one fact-check request.
type AnalysisRequest struct {
	UserID    string
	RequestID string

	ServiceType models.ServiceType
	Mode        models.AnalysisMode
	TargetURL   string
	Content     string

	// Batch marks requests priced at the batch-API discount. Interactive
	// traffic never sets it.
	Batch bool
}

// AnalysisResult is the billed outcome of a successful analysis.
type AnalysisResult struct {
	AnalysisID string         `json:"analysis_id"`
	Parsed     map[string]any `json:"result"`

	PointsCharged int    `json:"points_charged"`
	NewBalance    int    `json:"new_balance"`
	PromptTokens  int    `json:"prompt_tokens"`
	OutputTokens  int    `json:"output_tokens"`
	ModelID       string `json:"model_id"`
	Retried       bool   `json:"retried"`
}

// AnalysisService orchestrates one request end to end: preflight, model
// generation, validation with a bounded retry, pricing, and deduction. The
// ordering is the fairness guarantee: deduction happens only after the
// response validates, so the user is never charged for output they cannot
// use, and a mid-flight disconnect abandons the request before billing.
type AnalysisService struct {
	generator llm.Generator
	billing   *BillingService
	preflight *PreflightCheck
	engine    *pricing.Engine
	metadata  *MetadataService
	storage   *StorageService
	insights  repository.InsightRepository
	cfg       *config.Config
	logger    *slog.Logger
}

// NewAnalysisService creates a new analysis service.
func NewAnalysisService(
	generator llm.Generator,
	billing *BillingService,
	preflight *PreflightCheck,
	engine *pricing.Engine,
	metadata *MetadataService,
	storage *StorageService,
	insights repository.InsightRepository,
	cfg *config.Config,
	logger *slog.Logger,
) *AnalysisService {
	return &AnalysisService{
		generator: generator,
		billing:   billing,
		preflight: preflight,
		engine:    engine,
		metadata:  metadata,
		storage:   storage,
		insights:  insights,
		cfg:       cfg,
		logger:    logger,
	}
}

// Analyze runs a blocking analysis.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	return s.run(ctx, req, nil)
}

// AnalyzeStream runs an analysis with periodic progress notifications.
// progress must not block; it stops being called once run returns. If the
// caller disconnects, ctx cancellation aborts generation and nothing is
// billed.
func (s *AnalysisService) AnalyzeStream(ctx context.Context, req AnalysisRequest, progress llm.ProgressFunc) (*AnalysisResult, error) {
	return s.run(ctx, req, progress)
}

func (s *AnalysisService) run(ctx context.Context, req AnalysisRequest, progress llm.ProgressFunc) (*AnalysisResult, error) {
	started := time.Now()
	analysisID := ulid.Make().String()

	if !req.ServiceType.Valid() {
		return nil, errkind.New(errkind.UnknownServiceType, "unknown service type %q", req.ServiceType)
	}
	if req.Mode == "" {
		req.Mode = models.ModeStandard
	}

	insight := &models.AnalysisInsight{
		ID:          analysisID,
		UserID:      req.UserID,
		ServiceType: req.ServiceType,
		Mode:        req.Mode,
		TargetURL:   req.TargetURL,
		RequestID:   req.RequestID,
	}

	s.logger.Info("starting analysis",
		"request_id", req.RequestID,
		"user_id", req.UserID,
		"analysis_id", analysisID,
		"service_type", req.ServiceType,
		"mode", req.Mode,
	)

	if _, err := s.preflight.Check(ctx, req.UserID, req.ServiceType, req.Mode); err != nil {
		s.recordFailure(insight, err, started)
		return nil, err
	}

	promptIn := PromptInput{
		ServiceType: req.ServiceType,
		Mode:        req.Mode,
		TargetURL:   req.TargetURL,
		Content:     req.Content,
	}

	// Link analyses without caller-supplied content fetch the page
	// themselves; the resolved metadata also anchors the prompt.
	if req.ServiceType == models.ServiceLink && req.Content == "" && req.TargetURL != "" {
		if progress != nil {
			progress("fetching page content...")
		}
		meta, err := s.metadata.Fetch(ctx, req.TargetURL)
		if err != nil {
			wrapped := errkind.Wrap(errkind.GenerationFailed, err, "could not fetch target page")
			s.recordFailure(insight, wrapped, started)
			return nil, wrapped
		}
		promptIn.Content = meta.ContentText
		promptIn.PageTitle = meta.Title
		promptIn.PageSiteName = meta.SiteName
	}

	modelID := s.cfg.ModelStandard
	enableSearch := false
	if req.Mode == models.ModeDeep {
		modelID = s.cfg.ModelDeep
		enableSearch = true
	}
	insight.ModelID = modelID

	genCtx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	var (
		genResult *llm.GenerateResult
		outcome   *validate.Outcome
		lastErr   error
	)
	// One initial attempt plus the configured retry budget. A retry starts
	// from scratch with a stricter instruction; partial text from the failed
	// attempt is discarded.
	for attempt := 0; attempt <= s.cfg.RetryBudget; attempt++ {
		if attempt > 0 {
			insight.Retried = true
			s.logger.Warn("analysis attempt failed validation, retrying",
				"request_id", req.RequestID,
				"analysis_id", analysisID,
				"attempt", attempt,
				"error", lastErr,
			)
			if progress != nil {
				progress("response was incomplete, retrying...")
			}
		}

		genReq := llm.GenerateRequest{
			ModelID:         modelID,
			SystemPrompt:    SystemPrompt(),
			Prompt:          BuildPrompt(promptIn, attempt > 0),
			Temperature:     s.cfg.Temperature,
			MaxOutputTokens: s.cfg.MaxOutputTokens,
			EnableSearch:    enableSearch,
		}

		genStart := time.Now()
		var err error
		if progress != nil {
			genResult, err = s.generator.GenerateStream(genCtx, genReq, progress)
		} else {
			genResult, err = s.generator.Generate(genCtx, genReq)
		}
		insight.GenerateDurationMs += int(time.Since(genStart).Milliseconds())
		if err != nil {
			lastErr = errkind.Wrap(errkind.GenerationFailed, err, "model call failed")
			s.recordFailure(insight, lastErr, started)
			return nil, lastErr
		}
		insight.PromptTokens += genResult.PromptTokens
		insight.OutputTokens += genResult.OutputTokens

		outcome, lastErr = validate.Response(genResult.Text, req.ServiceType)
		if lastErr == nil {
			break
		}
	}
	if lastErr != nil {
		// Retry budget exhausted. No deduction has happened.
		s.recordFailure(insight, lastErr, started)
		return nil, lastErr
	}

	var points int
	if req.ServiceType.Metered() {
		points = s.engine.PriceByUsage(genResult.PromptTokens, genResult.OutputTokens, req.Mode == models.ModeDeep, req.Batch, modelID)
	} else {
		var err error
		points, err = s.engine.PriceFixed(req.ServiceType)
		if err != nil {
			s.recordFailure(insight, err, started)
			return nil, err
		}
	}

	metadata, _ := json.Marshal(map[string]any{
		"model_id":        modelID,
		"prompt_tokens":   genResult.PromptTokens,
		"output_tokens":   genResult.OutputTokens,
		"pricing_version": s.engine.Version(),
		"retried":         insight.Retried,
	})
	deduct, err := s.billing.Deduct(ctx, req.UserID, points,
		string(req.ServiceType)+" analysis", string(metadata), &analysisID)
	if err != nil {
		s.recordFailure(insight, err, started)
		return nil, err
	}
	if !deduct.Success {
		e := errkind.New(errkind.InsufficientPoints, "analysis costs %d points, balance is %d", points, deduct.NewBalance)
		e.Balance = deduct.NewBalance
		s.recordFailure(insight, e, started)
		return nil, e
	}

	// Best-effort archive; never affects the billed outcome.
	if key, err := s.storage.ArchiveResponse(ctx, req.UserID, analysisID, modelID, genResult.Text); err != nil {
		s.logger.Warn("failed to archive response", "analysis_id", analysisID, "error", err)
	} else {
		insight.ArchiveKey = key
	}

	insight.Status = "completed"
	insight.PointsCharged = points
	insight.PricingVersion = s.engine.Version()
	insight.TotalDurationMs = int(time.Since(started).Milliseconds())
	insight.CreatedAt = time.Now().UTC()
	s.saveInsight(insight)

	s.logger.Info("analysis completed",
		"request_id", req.RequestID,
		"user_id", req.UserID,
		"analysis_id", analysisID,
		"points", points,
		"prompt_tokens", genResult.PromptTokens,
		"output_tokens", genResult.OutputTokens,
		"retried", insight.Retried,
		"duration_ms", insight.TotalDurationMs,
	)

	return &AnalysisResult{
		AnalysisID:    analysisID,
		Parsed:        outcome.Parsed,
		PointsCharged: points,
		NewBalance:    deduct.NewBalance,
		PromptTokens:  genResult.PromptTokens,
		OutputTokens:  genResult.OutputTokens,
		ModelID:       modelID,
		Retried:       insight.Retried,
	}, nil
}

func (s *AnalysisService) recordFailure(insight *models.AnalysisInsight, err error, started time.Time) {
	insight.Status = "failed"
	insight.ErrorCode = string(errkind.KindOf(err))
	insight.ErrorMessage = err.Error()
	insight.TotalDurationMs = int(time.Since(started).Milliseconds())
	insight.CreatedAt = time.Now().UTC()
	s.saveInsight(insight)
}

// saveInsight writes telemetry outside the request's failure path. Losing a
// telemetry row is logged, not surfaced.
func (s *AnalysisService) saveInsight(insight *models.AnalysisInsight) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.insights.Create(ctx, insight); err != nil {
		s.logger.Error("failed to save analysis insight", "analysis_id", insight.ID, "error", err)
	}
}

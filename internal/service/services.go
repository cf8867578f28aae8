package service

import (
	"fmt"
	"log/slog"

	"github.com/Jhoseto/factcheck-api/internal/config"
	"github.com/Jhoseto/factcheck-api/internal/llm"
	"github.com/Jhoseto/factcheck-api/internal/pricing"
	"github.com/Jhoseto/factcheck-api/internal/repository"
)

// Services holds all service instances.
type Services struct {
	Billing   *BillingService
	Preflight *PreflightCheck
	Analysis  *AnalysisService
	Metadata  *MetadataService
	Storage   *StorageService
	Pricing   *pricing.Engine
}

// NewServices creates all service instances.
func NewServices(cfg *config.Config, repos *repository.Repositories, logger *slog.Logger) (*Services, error) {
	storageSvc, err := NewStorageService(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage service: %w", err)
	}

	engine := pricing.NewEngine(pricing.DefaultTable())
	billingSvc := NewBillingService(repos, logger)
	preflight := NewPreflightCheck(billingSvc, engine, logger)
	metadataSvc := NewMetadataService(cfg.MetadataTimeout, cfg.MetadataUserAgent, logger)

	generator := llm.NewClient(cfg.ModelBaseURL, cfg.ModelAPIKey, cfg.GenerationTimeout, logger)

	analysisSvc := NewAnalysisService(
		generator,
		billingSvc,
		preflight,
		engine,
		metadataSvc,
		storageSvc,
		repos.Insight,
		cfg,
		logger,
	)

	return &Services{
		Billing:   billingSvc,
		Preflight: preflight,
		Analysis:  analysisSvc,
		Metadata:  metadataSvc,
		Storage:   storageSvc,
		Pricing:   engine,
	}, nil
}

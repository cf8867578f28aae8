// Package main is the entry point for the factcheck-api server.
// User accounts, sessions, and checkout live in the web application; this
// API validates its JWTs, runs analyses, and keeps the point ledger.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/Jhoseto/factcheck-api/internal/auth"
	"github.com/Jhoseto/factcheck-api/internal/config"
	"github.com/Jhoseto/factcheck-api/internal/database"
	"github.com/Jhoseto/factcheck-api/internal/http/handlers"
	"github.com/Jhoseto/factcheck-api/internal/http/mw"
	"github.com/Jhoseto/factcheck-api/internal/logging"
	"github.com/Jhoseto/factcheck-api/internal/repository"
	"github.com/Jhoseto/factcheck-api/internal/service"
	"github.com/Jhoseto/factcheck-api/internal/shutdown"
	"github.com/Jhoseto/factcheck-api/internal/version"
)

func main() {
	_ = godotenv.Load()

	logger := logging.SetDefault()

	v := version.Get()
	logger.Info("starting factcheck-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := database.Migrate(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	repos := repository.NewRepositories(db)

	services, err := service.NewServices(cfg, repos, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	verifier := auth.NewVerifier([]byte(cfg.JWTSecret), cfg.JWTIssuer)

	idle := shutdown.NewIdleMonitor(cfg.IdleShutdownTimeout, []string{"/healthz", "/readyz"}, logger)
	idle.Start()
	defer idle.Stop()

	// Router and global middleware
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(idle.Middleware)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit - analysis content is capped well below this
	router.Use(middleware.RequestSize(2 * 1024 * 1024))

	// Global rate limit by IP; authenticated traffic gets per-user limits below
	router.Use(mw.RateLimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow))

	// Huma API with OpenAPI docs
	humaConfig := huma.DefaultConfig("FactCheck API", v.Short())
	humaConfig.Info.Description = "Fact-check analysis API with point-based billing."
	humaConfig.Servers = []*huma.Server{
		{URL: cfg.BaseURL, Description: "API Server"},
	}
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearerAuth": {
			Type:        "http",
			Scheme:      "bearer",
			Description: "JWT issued by the web application.",
		},
	}
	api := humachi.New(router, humaConfig)

	// Config for hidden routes (K8s probes - no docs needed)
	hiddenConfig := huma.DefaultConfig("FactCheck API", v.Short())
	hiddenConfig.DocsPath = ""
	hiddenConfig.OpenAPIPath = ""
	hiddenConfig.SchemasPath = ""
	hiddenAPI := humachi.New(router, hiddenConfig)

	// Config for protected routes (documented by the main API only)
	protectedConfig := huma.DefaultConfig("FactCheck API", v.Short())
	protectedConfig.Info.Description = humaConfig.Info.Description
	protectedConfig.Servers = humaConfig.Servers
	protectedConfig.DocsPath = ""
	protectedConfig.OpenAPIPath = ""
	protectedConfig.SchemasPath = ""

	// Public routes
	huma.Get(api, "/api/v1/health", handlers.HealthCheck)
	huma.Get(api, "/api/v1/pricing", handlers.NewPricingHandler(services.Pricing).GetPricing)

	// Kubernetes probes (hidden from docs)
	huma.Get(hiddenAPI, "/healthz", handlers.Livez)
	huma.Get(hiddenAPI, "/readyz", handlers.NewReadyzHandler(db).Readyz)

	// Stripe webhook (signature verified by the handler, not user auth)
	if cfg.StripeWebhookSecret != "" {
		stripeWebhook := handlers.NewStripeWebhookHandler(cfg, services.Billing, logger)
		router.Post("/api/v1/webhooks/stripe", stripeWebhook.HandleWebhook)
		logger.Info("stripe webhook endpoint enabled")
	}

	// Protected routes
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(verifier, logger))
		r.Use(mw.RateLimitByUser(cfg.RateLimitRequests, cfg.RateLimitWindow))

		protectedAPI := humachi.New(r, protectedConfig)

		balanceHandler := handlers.NewBalanceHandler(services.Billing)
		huma.Get(protectedAPI, "/api/v1/balance", balanceHandler.GetBalance)
		huma.Get(protectedAPI, "/api/v1/transactions", balanceHandler.ListTransactions)
	})

	// Analysis routes get a tighter per-user rate limit; each request costs
	// real model tokens.
	router.Group(func(r chi.Router) {
		r.Use(mw.Auth(verifier, logger))
		r.Use(mw.RateLimitByUser(cfg.AnalyzeLimit, cfg.RateLimitWindow))

		analyzeAPI := humachi.New(r, protectedConfig)
		huma.Post(analyzeAPI, "/api/v1/analyze", handlers.NewAnalyzeHandler(services.Analysis).Analyze)

		// Raw handler for SSE streaming
		streamHandler := handlers.NewStreamHandler(services.Analysis, logger)
		r.Post("/api/v1/analyze/stream", streamHandler.AnalyzeStream)
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
		// WriteTimeout must cover a full blocking analysis; the SSE handler
		// clears its own deadline.
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GenerationTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on signal or idle timeout
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-sigChan:
			logger.Info("shutting down server")
		case <-idle.ShutdownChan():
			logger.Info("shutting down server after idle timeout")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

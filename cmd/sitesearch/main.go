package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/treyworks/sitesearch/internal/config"
	dbRedis "github.com/treyworks/sitesearch/internal/db/redis"
	"github.com/treyworks/sitesearch/internal/domain"
	logpkg "github.com/treyworks/sitesearch/internal/logger"
	"github.com/treyworks/sitesearch/internal/metrics"
	auditrepo "github.com/treyworks/sitesearch/internal/repository/audit"
	contentrepo "github.com/treyworks/sitesearch/internal/repository/content"
	promptrepo "github.com/treyworks/sitesearch/internal/repository/prompt"
	chiTransport "github.com/treyworks/sitesearch/internal/transport/chi"
	geminiLLM "github.com/treyworks/sitesearch/internal/transport/gemini"
	openaiLLM "github.com/treyworks/sitesearch/internal/transport/openai"
	healthuc "github.com/treyworks/sitesearch/internal/usecase/health"
	pipelineuc "github.com/treyworks/sitesearch/internal/usecase/pipeline"
	"github.com/treyworks/sitesearch/internal/version"
)

// llmProvider is what the composition root needs from a provider client.
type llmProvider interface {
	pipelineuc.Provider
	healthuc.ProviderChecker
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting sitesearch API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("llm_provider", cfg.LLM.Provider),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create content store", zap.Error(err))
	}
	defer store.Close()

	// Wait for the content index to be ready
	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Content store not ready", zap.Error(err))
	}
	logger.Info("Connected to content store")

	// Register LLM metrics explicitly (no init())
	metrics.RegisterLLMMetrics()

	provider := buildProvider(cfg, logger)

	keyPrefix := cfg.Storage.KeyPrefix

	contentRepo := contentrepo.New(store, keyPrefix, cfg.Search.MaxContentResults, cfg.Search.MaxResults)
	if cfg.Search.IncludeMetadata {
		contentRepo.WithEnrichers(
			contentrepo.MetadataEnricher(store, keyPrefix, cfg.Search.MetadataFieldAllow),
		)
	}

	promptRepo := promptrepo.New(store, keyPrefix)
	bootstrapPrompts(ctx, promptRepo, cfg.Prompts, logger)

	auditRepo := auditrepo.New(
		store, keyPrefix+cfg.Audit.StreamKey, cfg.Audit.MaxLen, cfg.Audit.Enabled, logger,
	)

	pipelineSvc := pipelineuc.New(
		provider, contentRepo, promptRepo, auditRepo,
		cfg.Search.PostTypes,
		time.Duration(cfg.LLM.RequestTimeoutSec)*time.Second,
	)

	healthSvc := healthuc.New(store, provider)

	nonces := chiTransport.NewNonceService(
		cfg.Auth.NonceSecret, time.Duration(cfg.Auth.NonceTTLSec)*time.Second,
	)

	server := chiTransport.NewServer(pipelineSvc, healthSvc, nonces, auditRepo, logger, chiTransport.Config{
		SiteDomain:       cfg.Auth.SiteDomain,
		IntegrationToken: cfg.Auth.IntegrationToken,
		RestrictOrigins:  cfg.Auth.RestrictOrigins,
		TrustedOrigins:   cfg.Auth.TrustedOrigins,
	})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildProvider constructs the configured LLM client. A missing API key is a
// startup failure, not a runtime degradation.
func buildProvider(cfg config.Config, logger *zap.Logger) llmProvider {
	provCfg := cfg.ActiveProvider()

	var (
		provider llmProvider
		err      error
	)
	switch cfg.LLM.Provider {
	case "openai":
		provider, err = openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:          provCfg.APIKey,
			BaseURL:         provCfg.BaseURL,
			ExtractionModel: provCfg.ExtractionModel,
			GenerativeModel: provCfg.GenerativeModel,
			Logger:          logger,
		})
	case "gemini":
		provider, err = geminiLLM.NewClient(&geminiLLM.Config{
			APIKey:          provCfg.APIKey,
			BaseURL:         provCfg.BaseURL,
			ExtractionModel: provCfg.ExtractionModel,
			GenerativeModel: provCfg.GenerativeModel,
			Logger:          logger,
		})
	default:
		// Validate() already rejects unknown providers; keep the fatal anyway.
		err = fmt.Errorf("%w: %s", domain.ErrUnknownProvider, cfg.LLM.Provider)
	}
	if err != nil {
		logger.Fatal("Failed to create LLM provider",
			zap.String("provider", cfg.LLM.Provider), zap.Error(err))
	}

	logger.Info("LLM provider created",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("extraction_model", provCfg.ExtractionModel),
		zap.String("generative_model", provCfg.GenerativeModel),
	)
	return provider
}

// bootstrapPrompts persists configured prompt overrides so operators can ship
// them with the deployment instead of writing to the store by hand.
func bootstrapPrompts(ctx context.Context, repo *promptrepo.Repo, prompts config.PromptsConfig, logger *zap.Logger) {
	overrides := map[domain.PromptKey]string{
		domain.PromptExtractTerm: prompts.ExtractTerm,
		domain.PromptSummarize:   prompts.Summarize,
		domain.PromptAnswer:      prompts.Answer,
	}
	for key, text := range overrides {
		if text == "" {
			continue
		}
		if err := repo.SetOverride(ctx, key, text); err != nil {
			logger.Warn("Failed to store prompt override",
				zap.String("key", string(key)), zap.Error(err))
		}
	}
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "api_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}

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
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/config"
	dbRedis "github.com/toxgate-io/toxgate/internal/db/redis"
	"github.com/toxgate-io/toxgate/internal/domain"
	logpkg "github.com/toxgate-io/toxgate/internal/logger"
	"github.com/toxgate-io/toxgate/internal/metrics"
	"github.com/toxgate-io/toxgate/internal/repository/anacache"
	"github.com/toxgate-io/toxgate/internal/repository/jobstore"
	chiTransport "github.com/toxgate-io/toxgate/internal/transport/chi"
	"github.com/toxgate-io/toxgate/internal/transport/fastcls"
	"github.com/toxgate-io/toxgate/internal/transport/gemini"
	openaiCtx "github.com/toxgate-io/toxgate/internal/transport/openai"
	bulkuc "github.com/toxgate-io/toxgate/internal/usecase/bulk"
	classifyuc "github.com/toxgate-io/toxgate/internal/usecase/classify"
	healthuc "github.com/toxgate-io/toxgate/internal/usecase/health"
	"github.com/toxgate-io/toxgate/internal/version"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting toxgate API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("backend_model", cfg.Backend.Model),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterBatchMetrics()

	// Backend client for file upload and batch jobs
	backend := gemini.NewClient(&gemini.Config{
		APIKey:  cfg.Backend.APIKey,
		BaseURL: cfg.Backend.BaseURL,
		Model:   cfg.Backend.Model,
		Logger:  logger,
	})

	// Batch snapshots survive the submitting connection
	jobs := jobstore.New(
		store,
		cfg.Storage.KeyPrefix,
		time.Duration(cfg.Storage.JobTTLHours)*time.Hour,
		logger,
	)

	// Bulk pipeline — composition root
	bulkSvc := bulkuc.NewService(
		bulkuc.NewEncoder(backend.Model()),
		bulkuc.NewSubmitter(backend, backend,
			time.Duration(cfg.Backend.FilePollIntervalMS)*time.Millisecond, logger),
		bulkuc.NewPoller(backend,
			time.Duration(cfg.Backend.PollIntervalSec)*time.Second, cfg.Backend.Model, logger),
		bulkuc.NewFetcher(backend),
		bulkuc.NewReconciler(),
		jobs,
		cfg.Backend.Model,
		cfg.Backend.MaxBatchSize,
		logger,
	)

	// Synchronous cascade: cached fast classifier + contextual escalation
	classifier := fastcls.NewClient(fastcls.Config{
		BaseURL: cfg.Classifier.BaseURL,
		Timeout: time.Duration(cfg.Classifier.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	var fast domain.FastClassifier = classifier
	fast = anacache.New(
		fast,
		store,
		cfg.Storage.KeyPrefix,
		time.Duration(cfg.Storage.CacheTTLDays)*24*time.Hour,
		metrics.AnalysisCacheTotal,
		logger,
	)

	// Pass nil interface (not typed nil pointer!) if the contextual model
	// is not configured.
	var contextual classifyuc.ContextualAnalyzer
	if cfg.Contextual.Model != "" {
		contextual = openaiCtx.NewAnalyzer(&openaiCtx.Config{
			APIKey:  cfg.Contextual.APIKey,
			BaseURL: cfg.Contextual.BaseURL,
			Model:   cfg.Contextual.Model,
			Logger:  logger,
		})
		logger.Info("Contextual escalation enabled",
			zap.String("model", cfg.Contextual.Model),
			zap.Float64("threshold", cfg.Classifier.Threshold),
		)
	}

	classifySvc := classifyuc.NewService(fast, contextual, cfg.Classifier.Threshold, logger)
	healthSvc := healthuc.New(store, backend, classifier)

	server := chiTransport.NewServer(bulkSvc, classifySvc, jobs, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
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
						"code":    "internal_error",
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

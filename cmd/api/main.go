package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/mreyes-dev/payflow/internal/cache"
	"github.com/mreyes-dev/payflow/internal/config"
	"github.com/mreyes-dev/payflow/internal/handler"
	"github.com/mreyes-dev/payflow/internal/logging"
	"github.com/mreyes-dev/payflow/internal/middleware"
	"github.com/mreyes-dev/payflow/internal/processor"
	"github.com/mreyes-dev/payflow/internal/repository"
	"github.com/mreyes-dev/payflow/internal/service"
	"github.com/mreyes-dev/payflow/internal/webhook"
	"github.com/mreyes-dev/payflow/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("payflow-api", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	payments := repository.NewPaymentRepository(db)
	events := repository.NewWebhookEventRepository(db)

	proc := processor.New(cfg.StripeSecretKey, cfg.StripeTimeout(), slog.Default())

	var dedup webhook.Deduper
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		dedup = cache.NewDeduper(rdb, cfg.EventDedupTTL())
		slog.Info("redis dedup enabled", "addr", cfg.RedisAddr)
	}

	verifier := webhook.NewVerifier(cfg.StripeWebhookSecret, cfg.WebhookTolerance())
	resolver := webhook.NewResolver(proc, cfg.StripeTimeout())
	reconciler := webhook.NewReconciler(payments, slog.Default())
	pipeline := webhook.NewPipeline(verifier, resolver, reconciler, events, dedup)

	paymentSvc := service.NewPaymentService(payments, proc)

	webhookHandler := handler.NewWebhookHandler(pipeline)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)

	requireAuth := middleware.Auth(cfg.JWTSecret)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("POST /api/v1/webhooks/stripe", webhookHandler.Receive)
	mux.Handle("POST /api/v1/payments", requireAuth(http.HandlerFunc(paymentHandler.Create)))
	mux.Handle("POST /api/v1/payments/{id}/confirm", requireAuth(http.HandlerFunc(paymentHandler.Confirm)))
	mux.Handle("GET /api/v1/payments/{id}", requireAuth(http.HandlerFunc(paymentHandler.Get)))

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	sweeper := worker.NewSweeper(payments, proc, reconciler, slog.Default(),
		cfg.SweepInterval(), cfg.SweepPendingAge(), cfg.SweepBatchSize)
	go sweeper.Start(sweepCtx)

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connectDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetimeS) * time.Second)
	db.SetConnMaxIdleTime(time.Duration(cfg.DBConnMaxIdleTimeS) * time.Second)

	for i := range 30 {
		if err = db.Ping(); err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	db.Close()
	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/vnmchuo/llm-relay/config"
	"github.com/vnmchuo/llm-relay/internal/auth"
	"github.com/vnmchuo/llm-relay/internal/billing"
	"github.com/vnmchuo/llm-relay/internal/catalog"
	"github.com/vnmchuo/llm-relay/internal/metrics"
	"github.com/vnmchuo/llm-relay/internal/provider"
	"github.com/vnmchuo/llm-relay/internal/provider/registry"
	"github.com/vnmchuo/llm-relay/internal/proxy"
	"github.com/vnmchuo/llm-relay/internal/seeder"
	"github.com/vnmchuo/llm-relay/internal/telemetry"
	"github.com/vnmchuo/llm-relay/pkg/ratelimit"
)

const (
	serviceName = "llm-relay"
	version     = "0.2.0"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// 2. Init telemetry
	shutdownTracer, err := telemetry.InitTracer(serviceName, version, cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer()
	recorder := metrics.New()

	// 3. Connect PostgreSQL
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping postgres: %v", err)
	}
	log.Println("PostgreSQL connected")

	// 4. Connect Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to ping redis: %v", err)
	}
	log.Println("Redis connected")

	// 5. Init auth
	authStore := auth.NewPostgresStore(pool)
	authMiddleware := auth.NewMiddleware(authStore, rdb, auth.NewTokenVerifier(cfg.Auth.JWTSecret))

	// 6. Init billing
	billingStore := billing.NewPostgresStore(pool)
	reporters := billing.MultiReporter{billingStore}
	if cfg.Billing.StripeAPIKey != "" {
		stripeReporter, err := billing.NewStripeReporter(cfg.Billing.StripeAPIKey, cfg.Billing.StripeSubscriptionItems)
		if err != nil {
			log.Fatalf("failed to init stripe: %v", err)
		}
		reporters = append(reporters, stripeReporter)
		log.Printf("Stripe usage reporting enabled for %d orgs", len(cfg.Billing.StripeSubscriptionItems))
	}
	if cfg.Billing.LogUsage {
		reporters = append(reporters, billing.LogReporter{})
	}

	// 7. Init rate limiters
	hourly := ratelimit.NewHourlyLimiter(ratelimit.NewRedisCounterStore(rdb), cfg.RateLimit.PerHour, cfg.RateLimit.Window)
	var tokens *ratelimit.TokenLimiter
	if cfg.RateLimit.TokensPerMinute > 0 {
		tokens = ratelimit.NewTokenLimiter(rdb, cfg.RateLimit.TokensPerMinute)
	}
	limiter := ratelimit.Guards(hourly, tokens)

	// 8. Init providers
	client := &http.Client{Timeout: cfg.VendorTimeout}
	configs := make(map[string]provider.Config, len(cfg.Providers))
	for id, p := range cfg.Providers {
		configs[id] = provider.Config{APIKey: p.APIKey, BaseURL: p.BaseURL, Client: client}
	}
	for _, id := range registry.IDs() {
		if _, ok := configs[id]; !ok {
			configs[id] = provider.Config{Client: client}
		}
	}
	providers := registry.Build(configs)

	// 9. Init router and gateway
	router := proxy.NewRouter(providers)
	for _, p := range router.Providers() {
		log.Printf("Provider %s: %d models", p.Name(), len(p.Models()))
	}
	gateway := proxy.NewGateway(router, limiter, reporters, proxy.Options{
		PricePerCredit: cfg.Billing.PricePerCredit,
		Metrics:        recorder,
		Tracer:         otel.GetTracerProvider().Tracer(serviceName),
	})

	// 10. Init handler
	handler := proxy.NewHandler(gateway, billingStore)

	// 11. Seed test API key if RUN_SEED=true
	if cfg.RunSeed {
		_ = seeder.SeedTestAPIKey(ctx, authStore)
	}

	// 12. Init Chi router
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	// Public routes
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"llm-relay"}`))
	})
	r.Handle("/metrics", recorder.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		handler.Routes(r)
	})

	// 13. Graceful shutdown
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("LLM Relay starting on port %s (%d models)", cfg.Server.Port, len(router.Models(catalog.ModalityText))+len(router.Models(catalog.ModalityImage)))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

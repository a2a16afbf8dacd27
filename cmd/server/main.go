package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/api"
	"github.com/veribank/trading-engine/internal/config"
	"github.com/veribank/trading-engine/internal/engine"
	"github.com/veribank/trading-engine/internal/ledger"
	"github.com/veribank/trading-engine/internal/metrics"
	"github.com/veribank/trading-engine/internal/money"
	"github.com/veribank/trading-engine/internal/portfolio"
	"github.com/veribank/trading-engine/internal/risk"
	"github.com/veribank/trading-engine/internal/store"
)

func main() {
	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("configuration load failed", "err", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.Database.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.Database.RedisURL)
			if err != nil {
				slog.Error("invalid redis url", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, time.Duration(cfg.Database.CacheTTL)*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("database url not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Ledger accounts ---
	feeAccount := ledger.NewAccount(cfg.Engine.FeeAccountID, "veribank", ledger.KindTransactional, money.Zero(cfg.Engine.Currency))
	resolver := ledger.NewStaticResolver()
	for _, seed := range cfg.Engine.Accounts {
		opening := money.Zero(cfg.Engine.Currency)
		if seed.OpeningBalance != "" {
			amt, err := decimal.NewFromString(seed.OpeningBalance)
			if err != nil {
				slog.Error("invalid opening balance", "account", seed.AccountID, "err", err)
				os.Exit(1)
			}
			opening = money.MustNew(amt, cfg.Engine.Currency)
		}
		resolver.Add(ledger.NewAccount(seed.AccountID, seed.OwnerID, ledger.KindTransactional, opening))
	}
	if len(cfg.Engine.Accounts) > 0 {
		slog.Info("seeded ledger accounts", "count", len(cfg.Engine.Accounts))
	}

	// --- Risk limits ---
	maxNotional := money.Zero(cfg.Engine.Currency)
	if cfg.Engine.MaxNotional != "" {
		amt, err := decimal.NewFromString(cfg.Engine.MaxNotional)
		if err != nil {
			slog.Error("invalid max notional", "err", err)
			os.Exit(1)
		}
		maxNotional = money.MustNew(amt, cfg.Engine.Currency)
	}
	limiter := risk.NewLimiter(cfg.Engine.MaxOpenOrders, maxNotional)

	// --- WebSocket hub ---
	hub := api.NewHub()
	go hub.Run()

	// --- Engine and HTTP service ---
	positions := portfolio.NewHolder(cfg.Engine.Currency)
	eng := engine.New(resolver, positions, st, hub, limiter, feeAccount, cfg.Engine.Currency)
	svc := api.NewService(eng, st, cfg.Engine.Currency)

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"trading-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time fill and match events.
		r.Get("/ws", hub.HandleWS)
		svc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("trading-engine listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down trading-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	gw "apigateway/internal/gateway"
	"apigateway/internal/gateway/adapter/inmem"
	"apigateway/internal/gateway/adapter/proxy"
	"apigateway/internal/gateway/adapter/redisstore"
	"apigateway/internal/gateway/middleware"
	"apigateway/internal/gateway/ratelimit"
	"apigateway/internal/gateway/session"
	"apigateway/internal/platform/config"
	"apigateway/internal/platform/server"
	"apigateway/internal/platform/telemetry"
)

func main() {
	// A .env file is a local convenience; in deployment the variables
	// come from the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// Logging
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	shutdown, err := telemetry.Setup(context.Background(), "gateway")
	if err != nil {
		slog.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}

	metrics, err := telemetry.NewGatewayMetrics()
	if err != nil {
		slog.Error("metrics initialization failed", "error", err)
		os.Exit(1)
	}

	// Shared store
	var store gw.Store
	switch cfg.StoreBackend {
	case config.StoreMemory:
		mem := inmem.NewStore(time.Now)
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					mem.Cleanup()
				}
			}
		}()
		store = mem
	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		rs, err := redisstore.New(connectCtx, cfg.Redis)
		cancel()
		if err != nil {
			slog.Error("redis connection failed", "addr", cfg.Redis.Addr(), "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		store = rs
	}

	// Rate limiter
	limiter := ratelimit.NewLimiter(store, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Session cache (disabled when TTL is zero)
	var sessions *session.Cache
	if cfg.Session.TTL > 0 {
		sessions = session.NewCache(store, cfg.Session.TTL, time.Now)
	}

	// Router
	router, err := proxy.NewRouter([]proxy.Rule{
		{Name: "users", Prefix: "/api/users", Target: cfg.UserServiceURL},
		{Name: "inventory", Prefix: "/api/inventory", Target: cfg.InventoryServiceURL},
	}, cfg.UpstreamTimeout, metrics)
	if err != nil {
		slog.Error("router initialization failed", "error", err)
		os.Exit(1)
	}

	// Public paths (no auth required)
	publicPaths := []string{"/health", "/metrics"}

	// Assemble middleware chain
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.MetricsHandler())
	mux.HandleFunc("GET /health", handleHealth)
	const maxBodyBytes = 1 << 20 // 1MB
	mux.Handle("/", middleware.Chain(
		router,
		middleware.Metrics(metrics),
		middleware.RequestID,
		middleware.Logging(logger),
		middleware.Recovery,
		middleware.MaxBodySize(maxBodyBytes),
		middleware.RateLimit(limiter, router.RouteClass, cfg.RateLimit.FailurePolicy, metrics),
		middleware.Auth(middleware.AuthOptions{
			Secret:               []byte(cfg.JWTSecret),
			Method:               cfg.JWTAlgorithm,
			Sessions:             sessions,
			SessionFailurePolicy: cfg.Session.FailurePolicy,
			PublicPaths:          publicPaths,
		}, metrics),
	))

	// Start server
	srv := server.New(cfg.ListenAddr, mux)

	slog.Info("gateway starting",
		"addr", cfg.ListenAddr,
		"store", cfg.StoreBackend,
		"user_service_url", cfg.UserServiceURL,
		"inventory_service_url", cfg.InventoryServiceURL,
		"rate_limit_requests", cfg.RateLimit.Requests,
		"rate_limit_window", cfg.RateLimit.Window,
	)

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "error", err)
	}

	if err := shutdown(context.Background()); err != nil {
		slog.Error("telemetry shutdown error", "error", err)
	}
}

// handleHealth reports gateway liveness. It deliberately does not probe
// the store or the backends: the gateway can still serve cached
// sessions and fail-open traffic while a dependency is down.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

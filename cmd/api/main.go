// Package main is the entry point for the feed API server.
package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/metricshour/metricshour/internal/api"
	"github.com/metricshour/metricshour/internal/auth"
	"github.com/metricshour/metricshour/internal/config"
	"github.com/metricshour/metricshour/internal/content"
	"github.com/metricshour/metricshour/internal/db"
	"github.com/metricshour/metricshour/internal/feed"
	"github.com/metricshour/metricshour/internal/follow"
	"github.com/metricshour/metricshour/internal/health"
	"github.com/metricshour/metricshour/internal/interaction"
	"github.com/metricshour/metricshour/internal/middleware"
	"github.com/metricshour/metricshour/internal/tracing"
)

const (
	serviceName    = "metricshour-feed"
	serviceVersion = "0.1.0"

	shutdownTimeout          = 10 * time.Second
	rateLimitCleanupInterval = time.Minute

	// internalTokenHeader carries the metrics token.
	internalTokenHeader = "X-Internal-Token"
)

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("MetricsHour Feed API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if cfg == nil {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("invalid configuration", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// run wires the dependencies and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tp, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSamplingRate,
		InsecureMode:   cfg.TracingInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to flush traces", "error", err)
		}
	}()

	database, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, logger); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(reg); err != nil {
		return fmt.Errorf("failed to register http metrics: %w", err)
	}
	feedMetrics := feed.NewMetrics()
	if err := feedMetrics.Register(reg); err != nil {
		return fmt.Errorf("failed to register feed metrics: %w", err)
	}

	items := content.NewPostgresRepository(database, logger)
	interactions := interaction.NewPostgresRepository(database, logger)
	var follows follow.Repository = follow.NewPostgresRepository(database, logger)

	checkers := []api.HealthChecker{health.NewDBChecker(database)}
	var store middleware.RateLimitStore
	if cfg.RedisURL != "" {
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()

		follows = follow.NewCachedRepository(follows, client, cfg.FollowCacheTTL, logger)
		store = middleware.NewRedisRateLimitStore(client).WithMetrics(httpMetrics).WithLogger(logger)
		checkers = append(checkers, health.NewRedisChecker(client))
		logger.Info("redis enabled for follow cache and rate limiting")
	} else {
		mem := middleware.NewInMemoryRateLimitStore()
		go mem.RunCleanup(ctx, rateLimitCleanupInterval)
		store = mem
		logger.Warn("REDIS_URL not set, using in-memory rate limiting")
	}

	// A broken calibration file falls back to the defaults.
	rankCfg, err := feed.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("ranking calibration not applied", "error", err)
	}
	ranker, err := feed.NewRanker(rankCfg, feed.Sources{
		Items:        items,
		Follows:      follows,
		Interactions: interactions,
	}, feedMetrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create ranker: %w", err)
	}

	handler := newHandler(handlerDeps{
		Feed: api.NewFeedHandlers(api.FeedHandlersConfig{
			Ranker:       ranker,
			Items:        items,
			Follows:      follows,
			Interactions: interactions,
			Countries:    content.NewPostgresCountryDirectory(database),
			Logger:       logger,
		}),
		Health:         api.NewHealthHandlers(logger, checkers...),
		Tokens:         auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret),
		RateLimitStore: store,
		RateLimit: middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimitRequests,
			WindowDuration:    cfg.RateLimitWindow,
		},
		Metrics:        httpMetrics,
		Gatherer:       reg,
		MetricsToken:   cfg.MetricsToken,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
	}
	logger.Info("starting server", "port", cfg.Port)
	return serve(ctx, server, ln, logger)
}

// serve runs server on ln until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func serve(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func newRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

type handlerDeps struct {
	Feed           *api.FeedHandlers
	Health         *api.HealthHandlers
	Tokens         middleware.TokenValidator
	RateLimitStore middleware.RateLimitStore
	RateLimit      middleware.RateLimitConfig
	Metrics        *middleware.Metrics
	Gatherer       prometheus.Gatherer
	MetricsToken   string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// newHandler builds the routed mux and the middleware chain:
// RequestID -> Logging -> Tracing -> HTTPMetrics -> CORS -> OptionalAuth -> RateLimiter -> mux.
func newHandler(d handlerDeps) http.Handler {
	mux := http.NewServeMux()
	api.Routes(mux, d.Feed, d.Health)
	mux.Handle("GET /metrics", metricsHandler(d.Gatherer, d.MetricsToken))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, r.Context(), http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
	})

	var h http.Handler = mux
	h = middleware.RateLimiter(d.RateLimitStore, d.RateLimit, middleware.UserKeyFunc(), d.Metrics)(h)
	h = middleware.OptionalAuth(d.Tokens)(h)
	h = middleware.CORS(middleware.DefaultCORSConfig(d.AllowedOrigins))(h)
	h = middleware.HTTPMetrics(d.Metrics)(h)
	h = middleware.Tracing(serviceName)(h)
	h = middleware.Logging(d.Logger)(h)
	return middleware.RequestID(h)
}

// metricsHandler serves the Prometheus registry. When token is set, requests
// must present it in X-Internal-Token.
func metricsHandler(g prometheus.Gatherer, token string) http.Handler {
	h := promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	if token == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get(internalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			api.WriteError(w, r.Context(), http.StatusUnauthorized, api.ErrCodeAuthFailed, "Invalid internal token")
			return
		}
		h.ServeHTTP(w, r)
	})
}

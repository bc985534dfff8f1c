package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/catalog-service/internal/cache"
	"github.com/xenking/catalog-service/internal/cacheaside"
	"github.com/xenking/catalog-service/internal/domain/catalog"
	"github.com/xenking/catalog-service/internal/handler"
	"github.com/xenking/catalog-service/internal/repository"
	"github.com/xenking/catalog-service/pkg/health"
	"github.com/xenking/catalog-service/pkg/httpmiddleware"
)

// Telemetry provides the tracer and meter providers. *app.Telemetry from
// go-faster/sdk implements it.
type Telemetry interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("cache", cfg.Cache.Backend),
	)

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	healthSvc := health.New(health.WithLogger(lg.Named("health")))
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))

	// Product list/count cache. Redis being down at startup is not fatal:
	// reads fall through to Postgres until it comes back.
	var productCache catalog.Cache
	switch cfg.Cache.Backend {
	case CacheRedis:
		client := newRedisClient(cfg.Redis)
		defer func() {
			if err := client.Close(); err != nil {
				lg.Warn("Close redis client", zap.Error(err))
			}
		}()

		pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.DialTimeout)
		if err := client.Ping(pingCtx).Err(); err != nil {
			lg.Warn("Redis unreachable, serving without cache until it recovers",
				zap.String("redis_addr", cfg.Redis.Addr),
				zap.Error(err),
			)
		}
		cancel()

		rc := cache.NewRedis(client, cfg.Cache.Prefix, cfg.Cache.TTL)
		healthSvc.AddOptionalReadinessCheck("redis", time.Second, health.PingCheck(rc))
		productCache = rc
	case CacheMemory:
		mc := cache.NewMemory(cfg.Cache.TTL)
		mc.StartCleanup(ctx, cfg.Cache.TTL)
		productCache = mc
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	recorder, err := cacheaside.NewMetricRecorder(m.MeterProvider().Meter("catalog"))
	if err != nil {
		return errors.Wrap(err, "create cache recorder")
	}

	catalogSvc := catalog.NewService(
		repository.NewProductRepository(pool),
		repository.NewCouponRepository(pool),
		repository.NewCategoryRepository(pool),
		productCache,
		catalog.WithRecorder(recorder),
		catalog.WithTracerProvider(m.TracerProvider()),
	)

	h := handler.NewHandler(handler.Config{
		DefaultLimit: cfg.Paging.DefaultLimit,
		MaxLimit:     cfg.Paging.MaxLimit,
	}, catalogSvc)

	// Router: health endpoints + catalog API on one server. Route-aware
	// middleware runs inside chi so the matched pattern is known.
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.LogRequests(httpmiddleware.ChiRouteFinder),
		httpmiddleware.Labeler(httpmiddleware.ChiRouteFinder),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Mount("/api", h.Routes())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.RequestID(),
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Budgets: []httpmiddleware.RouteBudget{
					{Name: "product_detail", Match: isProductDetail, Max: cfg.RateLimit.DetailMax},
				},
				Skip: isProbe,
			}),
			httpmiddleware.Instrument("catalog-api", m.TracerProvider(), m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func newRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		MaxRetries:   cfg.MaxRetries,
	})
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

// isProductDetail matches /api/products/{productID}.
func isProductDetail(r *http.Request) bool {
	id, ok := strings.CutPrefix(r.URL.Path, "/api/products/")
	return ok && id != "" && !strings.Contains(id, "/")
}

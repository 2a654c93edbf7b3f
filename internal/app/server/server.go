package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reviewflow/internal/domain/audit"
	"reviewflow/internal/domain/auth"
	"reviewflow/internal/domain/notifications"
	"reviewflow/internal/domain/performance"
	"reviewflow/internal/platform/catalog"
	"reviewflow/internal/platform/config"
	"reviewflow/internal/platform/crypto"
	"reviewflow/internal/platform/db"
	"reviewflow/internal/platform/email"
	"reviewflow/internal/platform/jobs"
	"reviewflow/internal/platform/lock"
	"reviewflow/internal/platform/metrics"
	"reviewflow/internal/transport/http/api"
	audithandler "reviewflow/internal/transport/http/handlers/audit"
	authhandler "reviewflow/internal/transport/http/handlers/auth"
	notificationshandler "reviewflow/internal/transport/http/handlers/notifications"
	performancehandler "reviewflow/internal/transport/http/handlers/performance"
	"reviewflow/internal/transport/http/middleware"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	Config  config.Config
	DB      *pgxpool.Pool
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	Router  http.Handler
}

func Run() {
	config.LoadDotEnv()
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
		}
	case <-ctx.Done():
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("graceful shutdown failed", "err", err)
		}
	}
}

// New connects the backing stores and assembles the router. The returned cleanup closes
// the connections it opened.
func New(ctx context.Context, cfg config.Config) (*App, func(), error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){pool.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			cleanup()
			return nil, nil, err
		}
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisURL != "" {
		client, err := lock.Connect(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, func() { _ = client.Close() })
		locker = lock.NewRedis(client, cfg.RedisLockPrefix)
		slog.Info("using redis locks", "prefix", cfg.RedisLockPrefix)
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		slog.Warn("catalog not loaded, reference checks disabled", "path", cfg.CatalogPath, "err", err)
		cat = nil
	}

	sealer, err := crypto.New(cfg.DataEncryptionKey)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if !sealer.Configured() {
		slog.Warn("DATA_ENCRYPTION_KEY not set, MFA secrets are stored unencrypted")
	}

	collector := metrics.New()
	perfSvc := performance.NewService(performance.NewStore(pool), locker, cat).WithLockTTL(cfg.LockTTL)
	authSvc := auth.NewService(auth.NewStore(pool), cfg.JWTSecret, cfg.TokenTTL).WithSealer(sealer)
	auditSvc := audit.New(pool)
	notifySvc := notifications.New(notifications.NewStore(pool), email.New(cfg), cfg.EmailFrom)
	jobSvc := jobs.New(pool, perfSvc, notifySvc, cfg.SweepInterval)
	perms := auth.StaticPermissions{}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.SecureHeaders(cfg.IsProduction()))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(authSvc).RegisterRoutes(r)
		performancehandler.NewHandler(perfSvc, perms, notifySvc, auditSvc, collector, jobSvc).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc, perms).RegisterRoutes(r)
		notificationshandler.NewHandler(notifySvc).RegisterRoutes(r)
		r.With(middleware.RequirePermission(auth.PermReportsRead, perms)).Get("/metrics/summary", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	})

	return &App{Config: cfg, DB: pool, Jobs: jobSvc, Metrics: collector, Router: router}, cleanup, nil
}

// AngelaMos | 2026
// serve.go

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/carterperez-dev/templates/authflow/internal/auth"
	"github.com/carterperez-dev/templates/authflow/internal/config"
	"github.com/carterperez-dev/templates/authflow/internal/core"
	"github.com/carterperez-dev/templates/authflow/internal/diagnostics"
	"github.com/carterperez-dev/templates/authflow/internal/events"
	"github.com/carterperez-dev/templates/authflow/internal/health"
	"github.com/carterperez-dev/templates/authflow/internal/middleware"
	"github.com/carterperez-dev/templates/authflow/internal/ratelimit"
	"github.com/carterperez-dev/templates/authflow/internal/recaptcha"
	"github.com/carterperez-dev/templates/authflow/internal/server"
	"github.com/carterperez-dev/templates/authflow/internal/user"
	"github.com/carterperez-dev/templates/authflow/internal/web"
)

const (
	drainDelay = 5 * time.Second
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.GetKeyID(),
		"session_ttl", cfg.JWT.SessionTTL,
	)

	publisher, err := events.New(cfg.Events)
	if err != nil {
		return err
	}
	logger.Info("event publisher initialized", "driver", cfg.Events.Driver)

	var limiterStore ratelimit.Store
	switch cfg.AuthLimit.Store {
	case config.AuthLimitStoreRedis:
		limiterStore = ratelimit.NewRedisStore(redis.Client)
	default:
		limiterStore = ratelimit.NewMemoryStore()
	}

	limiter := ratelimit.New(limiterStore, ratelimit.Config{
		Window:      cfg.AuthLimit.Window,
		MaxRequests: cfg.AuthLimit.MaxRequests,
	}, ratelimit.WithLogger(logger))
	go limiter.Run(ctx)

	logger.Info("auth rate limiter initialized",
		"store", cfg.AuthLimit.Store,
		"max_requests", cfg.AuthLimit.MaxRequests,
		"window", cfg.AuthLimit.Window,
	)

	verifier := recaptcha.NewVerifier(recaptcha.Config{
		SecretKey:           cfg.Recaptcha.SecretKey,
		SiteKey:             cfg.Recaptcha.SiteKey,
		VerifyURL:           cfg.Recaptcha.VerifyURL,
		Timeout:             cfg.Recaptcha.Timeout,
		MinScore:            cfg.Recaptcha.MinScore,
		AllowActionMismatch: cfg.RecaptchaBypass(),
	}, logger)
	if !verifier.Enabled() {
		logger.Warn("recaptcha keys not configured, registration will be refused")
	}

	revocations := auth.NewRevocationStore(redis.Client)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo, publisher, logger)

	authSvc := auth.NewService(
		jwtManager,
		userSvc,
		verifier,
		revocations,
		publisher,
		logger,
		auth.ServiceConfig{
			CaptchaMinScore: cfg.Recaptcha.MinScore,
			CaptchaBypass:   cfg.RecaptchaBypass(),
		},
	)

	authHandler := auth.NewHandler(authSvc, cfg.Session, logger)
	userHandler := user.NewHandler(userSvc, authSvc, cfg.Session, logger)
	captchaHandler := recaptcha.NewHandler(verifier)
	webHandler := web.NewHandler(verifier, cfg.App.Name)

	healthHandler := health.NewHandler(cfg.App.Version,
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.LimitFromWindow(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Window,
				cfg.RateLimit.Burst,
			),
			FailOpen:   true,
			BypassFunc: middleware.BypassProbes,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.GetJWKSHandler())

	authenticator := middleware.Authenticator(authSvc, cfg.Session.CookieName)
	optionalAuth := middleware.OptionalAuth(authSvc, cfg.Session.CookieName)
	authLimit := middleware.AuthRateLimit(limiter)

	webHandler.RegisterRoutes(router, optionalAuth)

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, authLimit)
		userHandler.RegisterRoutes(r, authenticator)
		captchaHandler.RegisterRoutes(r, authLimit)

		if cfg.Diagnostics.Enabled {
			diagnostics.NewHandler(diagnostics.HandlerConfig{
				DBStats:     db.Stats,
				RedisStats:  redis.PoolStats,
				DBPing:      db.Ping,
				RedisPing:   redis.Ping,
				LimiterSize: limiter.Size,
			}).RegisterRoutes(r, authenticator)
		}
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := publisher.Close(); err != nil {
		logger.Error("event publisher close error", "error", err)
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

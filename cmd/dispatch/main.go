package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cityhail/dispatch/internal/matching"
	"github.com/cityhail/dispatch/internal/realtime"
	"github.com/cityhail/dispatch/internal/rides"
	"github.com/cityhail/dispatch/internal/users"
	"github.com/cityhail/dispatch/pkg/common"
	"github.com/cityhail/dispatch/pkg/config"
	"github.com/cityhail/dispatch/pkg/database"
	"github.com/cityhail/dispatch/pkg/errors"
	"github.com/cityhail/dispatch/pkg/eventbus"
	"github.com/cityhail/dispatch/pkg/logger"
	"github.com/cityhail/dispatch/pkg/middleware"
	"github.com/cityhail/dispatch/pkg/ratelimit"
	redisclient "github.com/cityhail/dispatch/pkg/redis"
	"github.com/cityhail/dispatch/pkg/tracing"
	"github.com/cityhail/dispatch/pkg/websocket"
)

const (
	serviceName = "dispatch"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment, serviceName); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting dispatch service",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	sentryConfig := errors.DefaultSentryConfig(cfg.Sentry.DSN, cfg.Server.Environment, serviceName)
	sentryConfig.Release = version
	if err := errors.InitSentry(sentryConfig); err != nil {
		logger.Warn("Failed to initialize Sentry, continuing without error tracking", zap.Error(err))
	} else {
		defer errors.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized")
	}

	if cfg.Tracing.Enabled {
		tracerCfg := tracing.Config{
			ServiceName:    serviceName,
			ServiceVersion: version,
			Environment:    cfg.Server.Environment,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			Enabled:        true,
		}

		tp, err := tracing.InitTracer(tracerCfg, logger.Get())
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					logger.Warn("Failed to shutdown tracer", zap.Error(err))
				}
			}()
			logger.Info("OpenTelemetry tracing initialized")
		}
	}

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	// The realtime service keeps a database/sql handle for its point reads.
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to open sql handle", zap.Error(err))
	}
	defer sqlDB.Close()

	var (
		redisClient *redisclient.Client
		limiter     *ratelimit.Limiter
	)

	if cfg.Redis.Enabled || cfg.RateLimit.Enabled {
		redisClient, err = redisclient.NewRedisClient(&cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to initialize redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("Failed to close redis client", zap.Error(err))
			}
		}()

		if cfg.RateLimit.Enabled {
			limiter = ratelimit.NewLimiter(redisClient.Client, cfg.RateLimit)
			logger.Info("Rate limiting enabled",
				zap.Int("limit", cfg.RateLimit.Limit),
				zap.Int("burst", cfg.RateLimit.Burst),
				zap.Duration("window", cfg.RateLimit.Window()),
			)
		}
	}

	var bus *eventbus.Bus
	if cfg.NATS.Enabled {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.NATS.URL
		busCfg.Name = serviceName

		bus, err = eventbus.New(busCfg)
		if err != nil {
			logger.Warn("Failed to connect to NATS, continuing without event bus", zap.Error(err))
			bus = nil
		} else {
			defer bus.Close()
			logger.Info("Event bus connected", zap.String("url", cfg.NATS.URL))
		}
	}

	hub := websocket.NewHub()

	// A nil *Bus must not become a non-nil interface value.
	var matchingEvents matching.EventPublisher
	var rideEvents rides.EventPublisher
	var userEvents users.EventPublisher
	if bus != nil {
		matchingEvents = bus
		rideEvents = bus
		userEvents = bus
	}

	engineCtx, cancelEngine := context.WithCancel(context.Background())
	defer cancelEngine()

	engine := matching.NewEngine(matching.NewStore(db), hub, matchingEvents, cfg.Dispatch)
	engine.Start(engineCtx)

	userHandler := users.NewHandler(users.NewService(users.NewRepository(db), userEvents))
	rideHandler := rides.NewHandler(rides.NewService(rides.NewRepository(db), rideEvents), engine)

	var cache redisclient.ClientInterface
	if redisClient != nil {
		cache = redisClient
	}
	realtimeService := realtime.NewService(hub, sqlDB, cache)
	realtimeHandler := realtime.NewHandler(realtimeService, hub)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.SentryMiddleware())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.SanitizeRequest())
	router.Use(middleware.Metrics(serviceName))

	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware(serviceName))
	}

	if limiter != nil {
		router.Use(middleware.RateLimit(limiter, cfg.RateLimit))
	}

	router.Use(middleware.ErrorHandler())

	router.GET("/healthz", common.HealthCheck(serviceName, version))

	healthChecks := make(map[string]func() error)
	healthChecks["database"] = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return db.Ping(ctx)
	}
	if redisClient != nil {
		healthChecks["redis"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return redisClient.Client.Ping(ctx).Err()
		}
	}
	if bus != nil {
		healthChecks["nats"] = func() error {
			if !bus.Connected() {
				return fmt.Errorf("nats connection lost")
			}
			return nil
		}
	}
	router.GET("/health/ready", common.ReadinessProbe(serviceName, version, healthChecks))

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": serviceName,
			"version": version,
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/stats", func(c *gin.Context) {
		common.SuccessResponse(c, realtimeService.Stats())
	})

	if cfg.Server.StaticDir != "" {
		router.Static("/app", cfg.Server.StaticDir)
	}

	userHandler.RegisterRoutes(router)
	rideHandler.RegisterRoutes(router)
	realtimeHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	cancelEngine()
	engine.Stop()

	logger.Info("Server stopped")
}

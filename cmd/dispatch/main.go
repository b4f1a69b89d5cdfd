package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mishwari/taxi-dispatch/internal/admin"
	"github.com/mishwari/taxi-dispatch/internal/drivers"
	"github.com/mishwari/taxi-dispatch/internal/hazards"
	"github.com/mishwari/taxi-dispatch/internal/matching"
	"github.com/mishwari/taxi-dispatch/internal/payments"
	"github.com/mishwari/taxi-dispatch/internal/pricing"
	"github.com/mishwari/taxi-dispatch/internal/sweeper"
	"github.com/mishwari/taxi-dispatch/internal/sysconfig"
	"github.com/mishwari/taxi-dispatch/internal/trips"
	"github.com/mishwari/taxi-dispatch/pkg/config"
	"github.com/mishwari/taxi-dispatch/pkg/database"
	"github.com/mishwari/taxi-dispatch/pkg/eventbus"
	"github.com/mishwari/taxi-dispatch/pkg/logger"
	"github.com/mishwari/taxi-dispatch/pkg/middleware"
	redisclient "github.com/mishwari/taxi-dispatch/pkg/redis"
)

const (
	serviceName = "taxi-dispatch"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting dispatch engine",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	if err := database.Migrate(&cfg.Database); err != nil {
		logger.Fatal("failed to apply migrations", zap.Error(err))
	}

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("connected to database")

	redisClient, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	var bus *eventbus.EventBus
	if cfg.NATS.Enabled {
		bus, err = eventbus.NewEventBus(cfg.NATS.URL)
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer bus.Close()
		logger.Info("connected to nats", zap.String("url", cfg.NATS.URL))
	}

	calc := pricing.NewCalculator(cfg.Dispatch.MinFareIls, cfg.Dispatch.RatePerKm)

	sysconfigSvc := sysconfig.NewService(sysconfig.NewRepository(db), cfg.Dispatch.ConfigCacheTTL)
	driversRepo := drivers.NewRepository(db)
	driversSvc := drivers.NewService(driversRepo, bus)
	hazardsSvc := hazards.NewService(hazards.NewRepository(db), sysconfigSvc)
	tripsRepo := trips.NewRepository(db)
	tripsSvc := trips.NewService(tripsRepo, bus)
	matchingSvc := matching.NewService(
		matching.NewRepository(db),
		driversRepo,
		sysconfigSvc,
		hazardsSvc,
		calc,
		redisClient,
		bus,
		cfg.Dispatch,
	)
	paymentsSvc := payments.NewService(payments.NewRepository(db), tripsRepo, bus)

	sweepWorker := sweeper.NewWorker(sweeper.NewRepository(db), cfg.Dispatch)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go sweepWorker.Start(sweepCtx)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.CallableTimeout(time.Duration(cfg.Server.CallableTimeout) * time.Second))
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": serviceName, "version": version})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	api.Use(middleware.Idempotency(redisClient))

	matching.NewHandler(matchingSvc).RegisterRoutes(api)
	trips.NewHandler(tripsSvc).RegisterRoutes(api)
	payments.NewHandler(paymentsSvc).RegisterRoutes(api)
	drivers.NewHandler(driversSvc).RegisterRoutes(api)
	hazards.NewHandler(hazardsSvc).RegisterRoutes(api)
	admin.NewHandler(sysconfigSvc, tripsSvc).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}

	logger.Info("dispatch engine stopped")
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/brokerconnect/service-booking/internal/application"
	"github.com/brokerconnect/service-booking/internal/cache"
	"github.com/brokerconnect/service-booking/internal/config"
	bookingDomain "github.com/brokerconnect/service-booking/internal/domain/booking"
	bookingEvents "github.com/brokerconnect/service-booking/internal/events"
	"github.com/brokerconnect/service-booking/internal/handler"
	"github.com/brokerconnect/service-booking/internal/notify"
	"github.com/brokerconnect/service-booking/internal/repository"
	"github.com/brokerconnect/service-booking/pkg/auth"
	"github.com/brokerconnect/service-booking/pkg/database"
	"github.com/brokerconnect/service-booking/pkg/health"
	"github.com/brokerconnect/service-booking/pkg/kafka"
	"github.com/brokerconnect/service-booking/pkg/logger"
	"github.com/brokerconnect/service-booking/pkg/metrics"
	"github.com/brokerconnect/service-booking/pkg/middleware"
	"github.com/brokerconnect/service-booking/pkg/obs"
	"github.com/brokerconnect/service-booking/pkg/rabbitmq"
)

const serviceName = "service-booking"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.AppEnv),
		zap.Int("negotiation_max_rounds", cfg.NegotiationMaxRounds),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.AppEnv, cfg.Observability.OTelEndpoint)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	// Connect to database and migrate
	db, err := database.Connect(cfg.DBConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := database.RunMigrations(cfg.DBConfig.DatabaseURL(), cfg.MigrationsDir, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		cfg.JWTConfig.AccessTokenTTL,
		cfg.JWTConfig.RefreshTokenTTL,
	)

	// Kafka producer for booking and review events
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	healthHandler := health.NewHandler(db, serviceName)

	// Read-through cache; the service runs uncached without Redis.
	var bookingCache cache.Cache = cache.Nop{}
	if cfg.RedisConfig.Addr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisConfig.Addr, cfg.RedisConfig.Password, cfg.RedisConfig.DB)
		if err != nil {
			log.Warn("redis unavailable, caching disabled", zap.String("addr", cfg.RedisConfig.Addr), zap.Error(err))
		} else {
			defer func() { _ = redisClient.Close() }()
			redisCache := cache.NewRedisCache(redisClient, cfg.RedisConfig.TTL)
			bookingCache = redisCache
			healthHandler.AddChecker("redis", redisCache.Ping)
		}
	}

	// Counterparty notifications
	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if cfg.RabbitConfig.URL != "" {
		publisher, err := rabbitmq.NewPublisher(cfg.RabbitConfig.URL, cfg.RabbitConfig.Exchange)
		if err != nil {
			log.Warn("rabbitmq unavailable, notifications are logged only", zap.Error(err))
		} else {
			defer func() { _ = publisher.Close() }()
			notifier = notify.NewAMQPNotifier(publisher, log)
		}
	}

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New(serviceName)
	}

	// Repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	reviewRepo := repository.NewGormReviewRepository(db)
	listingRepo := repository.NewGormListingRepository(db)

	// Application services
	policy := bookingDomain.NegotiationPolicy{MaxRounds: cfg.NegotiationMaxRounds}
	bookingService := application.NewBookingService(bookingRepo, listingRepo, bookingCache, kafkaProducer, notifier, m, policy, log)
	reviewService := application.NewReviewService(reviewRepo, bookingRepo, listingRepo, bookingCache, kafkaProducer, m, log)
	listingService := application.NewListingService(listingRepo, log)

	// Property projection consumer
	propertyConsumer := bookingEvents.NewPropertyEventConsumer(
		cfg.KafkaConfig.Brokers,
		cfg.KafkaConfig.GroupPrefix+"-property-projection",
		listingService,
		log,
	)
	defer func() { _ = propertyConsumer.Close() }()

	go func() {
		log.Info("starting property event consumer")
		if err := propertyConsumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("property event consumer error", zap.Error(err))
		}
	}()

	if err := handler.RegisterValidators(); err != nil {
		log.Fatal("failed to register validators", zap.Error(err))
	}

	// Setup Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	if m != nil {
		router.Use(m.Middleware())
		router.GET(cfg.Observability.MetricsPath, m.Handler())
	}

	healthHandler.RegisterRoutes(router)

	api := router.Group("/api/v1")
	api.Use(middleware.TimeoutMiddleware(cfg.RequestTimeout))
	handler.NewBookingHandler(bookingService).RegisterRoutes(api, jwtManager)
	handler.NewReviewHandler(reviewService).RegisterRoutes(api, jwtManager)
	handler.NewAdminBookingHandler(bookingService).RegisterRoutes(api, jwtManager)
	handler.MeHandler{}.RegisterRoutes(api, jwtManager)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelhttp.NewHandler(router, serviceName),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Warn("tracer shutdown failed", zap.Error(err))
	}

	log.Info("service-booking stopped")
}

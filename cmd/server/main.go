package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	closingapp "github.com/bpo/cashclosing/internal/application/closing"
	"github.com/bpo/cashclosing/internal/domain/closing"
	"github.com/bpo/cashclosing/internal/domain/shared"
	"github.com/bpo/cashclosing/internal/domain/shared/valueobject"
	"github.com/bpo/cashclosing/internal/infrastructure/auth"
	"github.com/bpo/cashclosing/internal/infrastructure/cache"
	"github.com/bpo/cashclosing/internal/infrastructure/config"
	"github.com/bpo/cashclosing/internal/infrastructure/event"
	"github.com/bpo/cashclosing/internal/infrastructure/logger"
	"github.com/bpo/cashclosing/internal/infrastructure/persistence"
	"github.com/bpo/cashclosing/internal/infrastructure/storage"
	"github.com/bpo/cashclosing/internal/infrastructure/telemetry"
	"github.com/bpo/cashclosing/internal/interfaces/http/handler"
	"github.com/bpo/cashclosing/internal/interfaces/http/middleware"
	"github.com/bpo/cashclosing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/bpo/cashclosing/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

//	@title			Cash Closing API
//	@version		1.0
//	@description	Daily cash-closing reconciliation between clients and the back office.

//	@contact.name	API Support

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bootstrap logger, replaced once the OTLP log pipeline is up
	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	telemetry.ServiceVersion = Version
	serviceName := cfg.Telemetry.ServiceName
	if serviceName == "" {
		serviceName = cfg.App.Name
	}

	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       serviceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Warn("OTLP log export unavailable", zap.Error(err))
	} else if logProvider.IsEnabled() {
		if withOTLP, err := logger.New(logCfg, logProvider.ZapCore(zapcore.InfoLevel)); err == nil {
			log = withOTLP
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting cash closing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       serviceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       serviceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	// Create GORM logger backed by zap
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))

	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	meter := meterProvider.Meter("cashclosing")
	dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DBMetricsConfig{
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	if err != nil {
		log.Fatal("Failed to create database metrics", zap.Error(err))
	}
	if err := telemetry.InstrumentDB(db.DB, telemetry.DBTracingConfig{
		TracingEnabled:  cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, dbMetrics, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		dbMetrics.StartPoolStatsCollection(ctx, sqlDB)
	}
	defer dbMetrics.Stop()

	// Repositories
	closingRepo := persistence.NewGormClosingRecordRepository(db.DB)
	threadRepo := persistence.NewGormThreadMessageRepository(db.DB)

	// Attachment storage
	var attachmentStorage closingapp.AttachmentStorage
	if cfg.Storage.Enabled {
		s3Storage, err := storage.NewS3AttachmentStorage(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration),
		)
		if err != nil {
			log.Fatal("Failed to initialize attachment storage", zap.Error(err))
		}
		if err := s3Storage.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare attachment bucket", zap.Error(err), zap.String("bucket", s3Storage.Bucket()))
		}
		attachmentStorage = s3Storage
	} else if cfg.App.Env != "production" {
		log.Info("Attachment storage disabled, using stub presigned URLs")
		attachmentStorage = storage.NewStubAttachmentStorage()
	}

	// Application service
	serviceCfg, err := closingServiceConfig(cfg)
	if err != nil {
		log.Fatal("Invalid closing configuration", zap.Error(err))
	}
	closingService := closingapp.NewClosingService(closingRepo, threadRepo, attachmentStorage, log)
	closingService.SetConfig(serviceCfg)

	// Event bus; handlers are deduplicated through the idempotency store
	idempotencyStore, redisClient := cache.NewIdempotencyStore(ctx, cfg.Redis, log)
	defer func() {
		_ = idempotencyStore.Close()
	}()

	eventBus := event.NewInMemoryEventBus(log)
	closingMetrics, err := telemetry.NewClosingMetrics(telemetry.ClosingMetricsConfig{
		Meter:           meter,
		Logger:          log,
		BacklogProvider: telemetry.NewGormBacklogProvider(db.DB),
		CollectInterval: cfg.Telemetry.MetricsInterval,
	})
	if err != nil {
		log.Fatal("Failed to create closing metrics", zap.Error(err))
	}
	closingMetrics.StartPeriodicCollection(ctx)
	defer closingMetrics.Stop()

	metricsHandler := event.NewIdempotentHandler(
		"closing_metrics",
		closingapp.NewClosingMetricsHandler(closingMetrics, serviceCfg.Policy, log),
		idempotencyStore,
		log,
		event.WithIdempotencyConfig(idempotencyConfig(cfg)),
	)
	eventBus.Subscribe(metricsHandler, metricsHandler.EventTypes()...)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	closingService.SetEventPublisher(eventBus)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.ServiceName = serviceName
	tracingCfg.Enabled = cfg.Telemetry.Enabled

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.TracingWithConfig(tracingCfg),
		logger.GinMiddleware(log),
		middleware.SpanErrorMarker(),
		middleware.Secure(),
		middleware.CORSWithConfig(corsCfg),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			ServiceName:   serviceName,
			Enabled:       cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		}),
	)

	// Auth
	var jwtService *auth.JWTService
	if cfg.JWT.Enabled {
		jwtService = auth.NewJWTService(cfg.JWT)
	}
	authCfg := middleware.DefaultJWTConfig(jwtService)
	authCfg.AllowDevHeaders = !cfg.JWT.Enabled && cfg.App.Env != "production"
	authCfg.Logger = log
	authMiddleware := middleware.JWTAuthMiddlewareWithConfig(authCfg)
	if authCfg.AllowDevHeaders {
		log.Warn("JWT disabled, accepting development identity headers")
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, Version, db)
	engine.GET("/health", systemHandler.Health)

	if cfg.Swagger.Enabled {
		engine.GET("/swagger/*any",
			middleware.SwaggerProtection(middleware.SwaggerConfig{
				Enabled:     true,
				RequireAuth: cfg.App.Env == "production",
				AllowedIPs:  cfg.Swagger.AllowedIPs,
			}, authMiddleware),
			ginSwagger.WrapHandler(swaggerFiles.Handler),
		)
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(authMiddleware, middleware.TracingAttributeInjector())
	if cfg.HTTP.RateLimitEnabled {
		limiter, err := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow, redisClient)
		if err != nil {
			log.Fatal("Failed to create rate limiter", zap.Error(err))
		}
		r.Use(middleware.RateLimit(limiter))
	}
	r.Register(router.ClosingRoutes(handler.NewClosingHandler(closingService))).
		Register(router.SystemRoutes(systemHandler)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	cancel()

	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if logProvider != nil {
		if err := logProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down log provider", zap.Error(err))
		}
	}

	log.Info("Server exited")
}

// closingServiceConfig maps the [closing] and [storage] sections onto the
// service configuration
func closingServiceConfig(cfg *config.Config) (closingapp.ServiceConfig, error) {
	out := closingapp.DefaultServiceConfig()

	currency, err := valueobject.ParseCurrency(cfg.Closing.Currency)
	if err != nil {
		return out, err
	}
	out.Currency = currency
	out.Locale = cfg.Closing.Locale
	out.Policy = closing.DivergencePolicy{
		ToleranceCents:  cfg.Closing.ToleranceCents,
		MinorLimitCents: cfg.Closing.DivergenceMinorLimitCents,
	}

	weekdays, err := cfg.Closing.Weekdays()
	if err != nil {
		return out, err
	}
	out.Calendar = closing.NewBusinessCalendar(weekdays, cfg.Closing.Holidays)

	loc, err := cfg.Closing.Location()
	if err != nil {
		return out, err
	}
	out.Location = loc

	if cfg.Storage.PresignExpiration > 0 {
		out.UploadURLExpiry = cfg.Storage.PresignExpiration
	}
	if cfg.Storage.MaxAttachmentSize > 0 {
		out.MaxAttachmentSize = cfg.Storage.MaxAttachmentSize
	}
	if len(cfg.Storage.AllowedMimeTypes) > 0 {
		out.AllowedMimeTypes = cfg.Storage.AllowedMimeTypes
	}
	out.VerifyUploads = cfg.Storage.Enabled
	return out, nil
}

func idempotencyConfig(cfg *config.Config) shared.IdempotencyConfig {
	ic := shared.DefaultIdempotencyConfig()
	if cfg.Closing.IdempotencyTTL > 0 {
		ic.TTL = cfg.Closing.IdempotencyTTL
	}
	return ic
}

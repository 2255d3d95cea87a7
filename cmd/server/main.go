package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	flagapp "github.com/fulfillment/backend/internal/application/featureflag"
	fulfillmentapp "github.com/fulfillment/backend/internal/application/fulfillment"
	"github.com/fulfillment/backend/internal/domain/featureflag"
	"github.com/fulfillment/backend/internal/infrastructure/auth"
	"github.com/fulfillment/backend/internal/infrastructure/cache"
	"github.com/fulfillment/backend/internal/infrastructure/config"
	"github.com/fulfillment/backend/internal/infrastructure/logger"
	"github.com/fulfillment/backend/internal/infrastructure/persistence"
	"github.com/fulfillment/backend/internal/infrastructure/telemetry"
	"github.com/fulfillment/backend/internal/interfaces/http/handler"
	"github.com/fulfillment/backend/internal/interfaces/http/middleware"
	"github.com/fulfillment/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//	@title			Fulfillment Backend API
//	@version		1.0
//	@description	Order fulfillment tracking API - piece-level batch synchronization for multi-tenant workshops
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/fulfillment/backend
//	@contact.email	support@fulfillment.example.com

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

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

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	// Bridge zap into the OTLP log pipeline before anything else captures the logger
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	log = loggerProvider.AttachZapBridge(log)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	log.Info("Starting Fulfillment Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:            cfg.Telemetry.Enabled && cfg.Telemetry.DBTracingEnabled,
		SlowQueryThreshold: cfg.Telemetry.SlowQueryThreshold,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Start continuous profiling before the tracer so span profiles can link up
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilerAddress,
		ApplicationName: cfg.App.Name,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Initialize OpenTelemetry providers
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		SpanProfiles:      profiler.IsEnabled(),
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	trackingMetrics, err := telemetry.NewTrackingMetrics(telemetry.TrackingMetricsConfig{
		Meter:  meterProvider.Meter(telemetry.TracerName),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to initialize tracking metrics", zap.Error(err))
	}

	// Initialize repositories
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	lineRepo := persistence.NewGormOrderLineRepository(db.DB)
	pieceRepo := persistence.NewGormPieceRepository(db.DB)
	flagRepo := persistence.NewGormFeatureFlagRepository(db.DB)
	overrideRepo := persistence.NewGormFlagOverrideRepository(db.DB)

	// Flag cache: Redis-backed when available, in-memory otherwise
	cacheFactory := cache.NewFlagCacheFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(true),
	)
	flagCache, err := cacheFactory.CreateCache()
	if err != nil {
		log.Fatal("Failed to create flag cache", zap.Error(err))
	}

	flagEvaluator := featureflag.NewEvaluator(flagRepo, overrideRepo,
		featureflag.WithCache(flagCache, cfg.Tracking.FlagCacheTTL),
	)

	// Initialize application services
	trackingService := fulfillmentapp.NewTrackingService(orderRepo, lineRepo, pieceRepo, flagEvaluator, log,
		fulfillmentapp.WithForcedPieceTracking(cfg.Tracking.ForcePieceTracking),
	)
	pieceService := fulfillmentapp.NewPieceService(pieceRepo, lineRepo, log)
	flagService := flagapp.NewFlagService(flagRepo, overrideRepo, flagCache, log)

	// Initialize JWT service
	jwtService := auth.NewJWTService(cfg.JWT)

	// Token revocation store: Redis so a logout reaches every instance,
	// in-memory when Redis is down so authentication still works.
	var tokenBlacklist auth.TokenBlacklist
	if redisBlacklist, err := auth.NewRedisTokenBlacklist(cfg.Redis); err != nil {
		log.Warn("Redis unavailable, falling back to in-memory token blacklist",
			zap.Error(err))
		tokenBlacklist = auth.NewInMemoryTokenBlacklist()
	} else {
		defer func() {
			if err := redisBlacklist.Close(); err != nil {
				log.Warn("Failed to close token blacklist", zap.Error(err))
			}
		}()
		tokenBlacklist = redisBlacklist
	}

	// Initialize HTTP handlers
	trackingHandler := handler.NewTrackingHandler(trackingService,
		handler.WithTrackingMetrics(trackingMetrics),
	)
	pieceHandler := handler.NewPieceHandler(pieceService)
	flagHandler := handler.NewFeatureFlagHandler(flagService)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()
	handler.RegisterTrackingValidations()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Logger - Log requests
	// 4. Security - Add security headers
	// 5. CORS - Handle cross-origin requests
	// 6. BodyLimit - Limit request body size
	// 7. Tracing/Metrics - OpenTelemetry instrumentation
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// OpenTelemetry HTTP instrumentation
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       cfg.Telemetry.Enabled,
	}))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	// Apply JWT authentication middleware to API routes
	// Configure skip paths for public endpoints
	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: tokenBlacklist,
		SkipPaths: []string{
			"/api/v1/ping",
			"/api/v1/system/ping",
			"/api/v1/system/info",
		},
		Logger: log,
	}
	r.Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig))

	// Resolve tenant context after authentication: JWT claims first,
	// then the X-Tenant-ID header for service-to-service calls.
	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Required = false
	tenantConfig.SkipPaths = append(tenantConfig.SkipPaths, jwtConfig.SkipPaths...)
	tenantConfig.Logger = log
	r.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))

	// Fulfillment domain (orders, lines, pieces, tracking batches)
	orderRoutes := router.NewDomainGroup("/orders")
	orderRoutes.POST("/:orderId/tracking", trackingHandler.ApplyBatch)
	orderRoutes.POST("/:orderId/lines/:lineId/pieces", pieceHandler.Create)
	orderRoutes.GET("/:orderId/lines/:lineId/pieces", pieceHandler.List)
	orderRoutes.DELETE("/:orderId/pieces/:pieceId", pieceHandler.Delete)

	// Admin domain (feature flag management)
	adminRoutes := router.NewDomainGroup("/admin")
	adminRoutes.GET("/flags", flagHandler.List)
	adminRoutes.PUT("/flags/:key", flagHandler.SetDefault)
	adminRoutes.PUT("/flags/:key/tenants/:tenantId", flagHandler.SetOverride)
	adminRoutes.DELETE("/flags/:key/tenants/:tenantId", flagHandler.ClearOverride)

	// System routes
	systemHandler := handler.NewSystemHandler()
	systemRoutes := router.NewDomainGroup("/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)

	// Register all domain groups
	r.Register(orderRoutes).
		Register(adminRoutes).
		Register(systemRoutes)

	// Setup routes
	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		payload := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		}
		if stats, err := db.Stats(); err == nil {
			payload["pool"] = gin.H{
				"open":       stats.OpenConnections,
				"in_use":     stats.InUse,
				"idle":       stats.Idle,
				"wait_count": stats.WaitCount,
			}
		}
		c.JSON(http.StatusOK, payload)
	}
}

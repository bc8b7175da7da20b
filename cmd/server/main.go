package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Joshlanuevo/ferry-api/internal/config"
	"github.com/Joshlanuevo/ferry-api/internal/database"
	"github.com/Joshlanuevo/ferry-api/internal/handlers"
	"github.com/Joshlanuevo/ferry-api/internal/middleware"
	"github.com/Joshlanuevo/ferry-api/internal/services"
	"github.com/Joshlanuevo/ferry-api/pkg/ferry"
	"github.com/Joshlanuevo/ferry-api/pkg/jwt"
	"github.com/Joshlanuevo/ferry-api/pkg/sealbox"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.IsProduction() {
		logger.SetFormatter(&logrus.JSONFormatter{})
		gin.SetMode(gin.ReleaseMode)
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		gin.SetMode(gin.DebugMode)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	logger.Info("Starting ferry booking API")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Initialize document store
	ctx := context.Background()
	store, locker, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to open document store: %v", err)
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		logger.Fatalf("Failed to ping document store: %v", err)
	}
	logger.WithField("driver", cfg.Database.Driver).Info("Document store ready")

	box, err := sealbox.New(cfg.Security.TokenEncryptionKey)
	if err != nil {
		logger.Fatalf("Failed to initialize token encryption: %v", err)
	}

	// Initialize repositories
	ledgerRepo := database.NewLedgerRepository(store)
	walletRepo := database.NewWalletRepository(store)
	directoryRepo := database.NewDirectoryRepository(store)
	tokenRepo := database.NewTokenRepository(store, box)
	chargesRepo := database.NewChargesCacheRepository(store, cfg.Session.ChargesTTL)
	auditRepo := database.NewAuditRepository(store, logger)

	// Initialize services
	gateway := ferry.NewClient(ferry.Config{
		BaseURL:          cfg.Ferry.BaseURL,
		ClientID:         cfg.Ferry.ClientID,
		ClientSecret:     cfg.Ferry.ClientSecret,
		Timeout:          cfg.Ferry.Timeout,
		SearchWindowDays: cfg.Ferry.SearchWindowDays,
	})
	tokenCache := services.NewTokenCache(gateway, tokenRepo, services.TokenCacheConfig{
		Buffer: cfg.Ferry.TokenBuffer,
	}, logger)

	bookingConfig := services.DefaultFerryBookingConfig()
	bookingConfig.ReconcileGrace = cfg.Ferry.ReconcileGrace
	bookingConfig.ReconcileAttempts = cfg.Ferry.ReconcileAttempts
	bookingConfig.ReconcileBackoff = cfg.Ferry.ReconcileBackoff
	bookingConfig.SearchWindowDays = cfg.Ferry.SearchWindowDays

	var bookingAudit *database.AuditRepository
	if cfg.Security.EnableAuditLog {
		bookingAudit = auditRepo
	}

	bookingService := services.NewFerryBookingService(
		gateway,
		tokenCache,
		services.NewAccessPolicy(directoryRepo, logger),
		services.NewWalletService(walletRepo, logger),
		locker,
		ledgerRepo,
		chargesRepo,
		bookingAudit,
		bookingConfig,
		logger,
	)
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	logger.Info("Services initialized")

	// Start cron jobs
	var cronService *services.CronService
	if cfg.Cron.Enabled {
		cronService = services.NewCronService(tokenCache, chargesRepo, cfg.Cron, logger)
		if err := cronService.Start(); err != nil {
			logger.Fatalf("Failed to start cron service: %v", err)
		}
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Tracking())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.TrackingHeader},
		AllowCredentials: !allowsAnyOrigin(cfg.CORS.AllowedOrigins),
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(store, cfg.Database.Driver))
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/api/v1")
	ferryHandler := handlers.NewFerryHandler(bookingService, auditRepo, logger)
	ferryHandler.RegisterRoutes(v1,
		middleware.AuthMiddleware(jwtService, logger),
		middleware.RequireUserType(services.AdminUserTypes...),
	)

	// Ticket creation waits on the reseller and the reconcile poll
	writeTimeout := cfg.Database.LockWait + cfg.Ferry.Timeout*3 + cfg.Ferry.ReconcileGrace +
		cfg.Ferry.ReconcileBackoff*time.Duration(cfg.Ferry.ReconcileAttempts*(cfg.Ferry.ReconcileAttempts+1)/2) + 15*time.Second

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	if cronService != nil {
		logger.Info("Stopping cron service...")
		cronService.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// openStore opens the configured document store and the wallet locker that
// matches it
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (database.DocumentStore, services.WalletLocker, error) {
	store, db, err := database.OpenDocumentStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if db != nil {
		shared := database.NewAdvisoryLocker(db, cfg.Database.MaxHeldLocks, logger)
		return store, services.NewLayeredLocker(shared, cfg.Database.LockWait), nil
	}

	logger.Warn("No cross-instance wallet lock for this driver, purchases are serialized per instance")
	return store, services.NewLayeredLocker(nil, cfg.Database.LockWait), nil
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(store database.DocumentStore, driver string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"driver":   driver,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"driver":    driver,
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}

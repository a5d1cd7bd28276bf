// Package main provides the main entry point for the AdPilot automation engine
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arvand/adpilot/app/handlers"
	"github.com/arvand/adpilot/app/middleware"
	"github.com/arvand/adpilot/app/router"
	"github.com/arvand/adpilot/app/scheduler"
	"github.com/arvand/adpilot/app/services"
	businessflow "github.com/arvand/adpilot/business_flow"
	"github.com/arvand/adpilot/config"
	"github.com/arvand/adpilot/models"
	"github.com/arvand/adpilot/repository"
	"github.com/arvand/adpilot/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting AdPilot...")

	cfg := config.LoadProductionConfig()
	if err := config.ValidateProductionConfig(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// migrateDatabase keeps the schema in sync with the models
func migrateDatabase(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Admin{},
		&models.AdAccount{},
		&models.AdCampaign{},
		&models.AdSet{},
		&models.Ad{},
		&models.MetricSnapshot{},
		&models.AutomationRule{},
		&models.AutomationLog{},
		&models.Insight{},
	)
}

// initializeRedis initializes the redis client and verifies connectivity.
// Returns nil when redis is disabled; callers fall back to the noop cache.
func initializeRedis(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.Addr(), cfg.DB)
	return client, nil
}

// initializePlatformClient selects the ad platform client implementation
func initializePlatformClient(cfg config.AdPlatformConfig) services.AdPlatformClient {
	if cfg.UseMock {
		log.Println("Using mock ad platform client")
		return services.NewMockAdPlatformClient()
	}
	return services.NewHTTPAdPlatformClient(cfg.BaseURL, cfg.APIToken, cfg.Timeout)
}

// ensureBootstrapAdmin creates the configured operator account if it is missing
func ensureBootstrapAdmin(db *gorm.DB, cfg config.AdminConfig) error {
	if cfg.BootstrapUsername == "" || cfg.BootstrapPassword == "" {
		return nil
	}

	adminRepo := repository.NewAdminRepository(db)
	existing, err := adminRepo.ByUsername(context.Background(), cfg.BootstrapUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.BootstrapPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := models.Admin{
		Username:     cfg.BootstrapUsername,
		Email:        cfg.BootstrapEmail,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    utils.UTCNow(),
	}
	if err := adminRepo.Save(context.Background(), &admin); err != nil {
		return err
	}

	log.Printf("Bootstrap admin %q created", cfg.BootstrapUsername)
	return nil
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := migrateDatabase(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	redisClient, err := initializeRedis(cfg.Redis)
	if err != nil {
		return nil, err
	}

	var cacheService services.CacheService
	if redisClient != nil {
		cacheService = services.NewRedisCacheService(redisClient)
	} else {
		log.Println("Redis disabled, running without aggregate cache and run locks")
		cacheService = services.NewNoopCacheService()
	}

	if err := ensureBootstrapAdmin(db, cfg.Admin); err != nil {
		return nil, fmt.Errorf("failed to ensure bootstrap admin: %w", err)
	}

	// Initialize repositories
	ruleRepo := repository.NewAutomationRuleRepository(db)
	logRepo := repository.NewAutomationLogRepository(db)
	metricRepo := repository.NewMetricSnapshotRepository(db)
	entityRepo := repository.NewAdEntityRepository(db)
	insightRepo := repository.NewInsightRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	// Initialize services
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	platformClient := initializePlatformClient(cfg.AdPlatform)
	insightSink := services.NewInsightSink(insightRepo)

	// Initialize flows
	executor := businessflow.NewActionExecutor(
		db,
		ruleRepo,
		logRepo,
		entityRepo,
		metricRepo,
		platformClient,
		insightSink,
	)

	evaluationFlow := businessflow.NewEvaluationFlow(
		ruleRepo,
		entityRepo,
		metricRepo,
		cacheService,
		executor,
		log.Default(),
	)

	approvalFlow := businessflow.NewApprovalFlow(logRepo, ruleRepo, executor)
	rollbackFlow := businessflow.NewRollbackFlow(db, logRepo, entityRepo, platformClient)
	ruleFlow := businessflow.NewRuleFlow(ruleRepo)
	auditFlow := businessflow.NewAuditFlow(logRepo, insightRepo)
	adminAuthFlow := businessflow.NewAdminAuthFlow(adminRepo, tokenService)

	// Initialize handlers
	adminAuthHandler := handlers.NewAdminAuthHandler(adminAuthFlow)
	ruleHandler := handlers.NewRuleHandler(ruleFlow)
	logHandler := handlers.NewAutomationLogHandler(auditFlow, approvalFlow, rollbackFlow)
	evaluationHandler := handlers.NewEvaluationHandler(evaluationFlow)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	appRouter := router.NewFiberRouter(
		authMiddleware,
		adminAuthHandler,
		ruleHandler,
		logHandler,
		evaluationHandler,
	)

	if cfg.Scheduler.Enabled {
		sched := scheduler.NewAutomationScheduler(ruleRepo, evaluationFlow, approvalFlow, cacheService, cfg.Scheduler)
		stopScheduler := sched.Start(context.Background())
		stopFuncs = append(stopFuncs, stopScheduler)
	}

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

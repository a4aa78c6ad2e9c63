package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/selin/memoria/docs" // Import generated swagger docs
	appControllers "github.com/selin/memoria/internal/app/controllers"
	appMigrations "github.com/selin/memoria/internal/app/migrations"
	appRepos "github.com/selin/memoria/internal/app/repositories"
	appRoutes "github.com/selin/memoria/internal/app/routes"
	appServices "github.com/selin/memoria/internal/app/services"
	"github.com/selin/memoria/internal/config"
	"github.com/selin/memoria/internal/db"
	appMiddleware "github.com/selin/memoria/internal/middleware"
	"github.com/selin/memoria/internal/pkg/identity"
	"github.com/selin/memoria/internal/pkg/logger"
	"github.com/selin/memoria/internal/pkg/revalidate"
	"github.com/selin/memoria/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	MemoryService       appServices.MemoryService
	UserService         appServices.UserService
	CommunityService    appServices.CommunityService
	MemoryController    *appControllers.MemoryController
	UserController      *appControllers.UserController
	CommunityController *appControllers.CommunityController
	IdentityMiddleware  *appMiddleware.IdentityMiddleware
	Repos               *appRepos.Repositories
	Notifier            revalidate.Notifier
	Logger              zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.Pool.Ping(ctx); err != nil {
		lgr.Error().Err(err).Msg("Failed to ping database")
		database.Close()
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(database.Pool)

	migrationsDir := "migrations"
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		database.Close()
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	if err := migrator.MigrateFromDirectory(migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	if strings.ToLower(cfg.Server.Mode) != "production" {
		if err := seed.CreateDefaultData(context.Background(), database, lgr); err != nil {
			// Seed failures should not abort startup.
			lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
		}
	}

	return database, nil
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.Repos = appRepos.NewRepositories(database)

	deps.Notifier = revalidate.Notifier(revalidate.NoopNotifier{})
	if cfg.Revalidate.WebhookURL != "" {
		timeout, err := time.ParseDuration(cfg.Revalidate.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid revalidate timeout: %w", err)
		}
		deps.Notifier = revalidate.NewWebhookNotifier(cfg.Revalidate.WebhookURL, timeout)
		lgr.Info().Str("url", cfg.Revalidate.WebhookURL).Msg("Revalidation webhook configured")
	}

	deps.MemoryService = appServices.NewMemoryService(
		deps.Repos.MemoryRepository,
		deps.Repos.UserRepository,
		deps.Repos.CommunityRepository,
		deps.Notifier,
		cfg.Posting.StrictCommunity,
		lgr,
	)
	deps.UserService = appServices.NewUserService(deps.Repos.UserRepository, deps.Notifier, lgr)
	deps.CommunityService = appServices.NewCommunityService(
		deps.Repos.CommunityRepository,
		deps.Repos.MemoryRepository,
		deps.Repos.UserRepository,
		deps.Notifier,
		lgr,
	)

	verifier := identity.NewVerifier(identity.Config{
		SecretKey: cfg.Identity.Secret,
		Issuer:    cfg.Identity.Issuer,
	})
	deps.IdentityMiddleware = appMiddleware.NewIdentityMiddleware(verifier)

	deps.MemoryController = appControllers.NewMemoryController(deps.MemoryService)
	deps.UserController = appControllers.NewUserController(deps.UserService)
	deps.CommunityController = appControllers.NewCommunityController(deps.CommunityService)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.Default()
	router.Use(appMiddleware.RequestID())

	// Setup Swagger
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json"), ginSwagger.DefaultModelsExpandDepth(1)))

	appRoutes.SetupRouter(router,
		deps.MemoryController,
		deps.UserController,
		deps.CommunityController,
		deps.IdentityMiddleware,
	)

	// Test endpoint
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hostel-hub.backend/internal/config"
	"hostel-hub.backend/internal/infrastructure/datasources/migrations"
	"hostel-hub.backend/internal/infrastructure/jobs"
	"hostel-hub.backend/internal/infrastructure/mail"
	"hostel-hub.backend/internal/infrastructure/repositories"
	"hostel-hub.backend/internal/interfaces/http/handlers"
	"hostel-hub.backend/internal/interfaces/http/middleware"
	"hostel-hub.backend/internal/usecases"
	"hostel-hub.backend/pkg/jwt"
	"hostel-hub.backend/pkg/logger"
	"hostel-hub.backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

var (
	loadDotenv = godotenv.Load
	loadCfg    = config.Load
	initLog    = logger.Init
	initRedis  = redis.Init
	openDB     = func(cfg config.DatabaseConfig) (*gorm.DB, error) {
		if cfg.IsSQLite() {
			if dir := filepath.Dir(cfg.Path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, err
				}
			}
			return gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{})
		}
		return gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.URL(),
			PreferSimpleProtocol: true,
		}), &gorm.Config{
			PrepareStmt: false,
		})
	}
	runServer = func(srv *http.Server) error { return srv.ListenAndServe() }
	getStdDB  = func(db *gorm.DB) (*sql.DB, error) { return db.DB() }
)

func main() {
	if err := runMainProcess(); err != nil {
		log.Fatal(err)
	}
}

func runMainProcess() error {
	if err := loadDotenv(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := loadCfg()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	initLog(cfg.Server.Env)
	ctx := context.Background()
	logger.Info(ctx, "Logger initialized", zap.String("env", cfg.Server.Env))

	// Redis only backs throttling, so the server runs without it.
	if cfg.Redis.Enabled {
		if err := initRedis(cfg.Redis.URL, cfg.Redis.Password); err != nil {
			logger.Warn(ctx, "Redis unavailable, resend cooldown and login rate limit are off", zap.Error(err))
		} else {
			logger.Info(ctx, "Redis initialized")
			defer redis.Close()
		}
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := getStdDB(db)
	if err != nil {
		return fmt.Errorf("failed to get generic database object: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		dialect := migrations.DialectPostgres
		if cfg.Database.IsSQLite() {
			dialect = migrations.DialectSQLite
		}
		if err := migrations.Up(ctx, sqlDB, dialect); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	sender, err := mail.NewSender(cfg.Mail)
	if err != nil {
		return fmt.Errorf("failed to initialize mail sender: %w", err)
	}

	jwtService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	userRepo := repositories.NewUserRepository(db)
	uow := repositories.NewUnitOfWork(db)

	credentials := usecases.NewCredentialStore(userRepo)
	issuer := usecases.NewVerificationIssuer(userRepo, cfg.Verification.TTL)
	notifier := mail.NewNotifier(sender, cfg.Server.PublicURL, cfg.Mail.FromName, issuer.TTL())
	authUsecase := usecases.NewAuthUsecase(credentials, issuer, uow, jwtService, notifier, usecases.AuthConfig{
		AdminEmail:     cfg.Admin.Email,
		ResendCooldown: cfg.Verification.ResendCooldown,
	})
	if cfg.Admin.Email == "" {
		logger.Info(ctx, "ADMIN_EMAIL not set, admin registration disabled")
	}

	r, err := newRouter(routeDeps{
		authHandler:    handlers.NewAuthHandler(authUsecase),
		adminHandler:   handlers.NewAdminHandler(authUsecase),
		authMiddleware: middleware.AuthMiddleware(jwtService),
		loginLimiter:   middleware.LoginRateLimit(cfg.RateLimit.LoginPerMinute, time.Minute),
		trustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := jobs.NewVerificationTokenSweeper(userRepo, cfg.Verification.SweepInterval, cfg.Verification.SweepGrace)
	go sweeper.Start(ctx)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info(ctx, "Hostel Hub backend starting",
		zap.String("port", cfg.Server.Port),
		zap.Int("routes", len(r.Routes())),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- runServer(srv) }()

	select {
	case err := <-errCh:
		sweeper.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "Shutting down server")
	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

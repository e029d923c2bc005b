package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zentrolabs/zentro/internal/api"
	"github.com/zentrolabs/zentro/internal/app"
	"github.com/zentrolabs/zentro/internal/app/maintenance"
	iauth "github.com/zentrolabs/zentro/internal/auth"
	"github.com/zentrolabs/zentro/internal/cache"
	"github.com/zentrolabs/zentro/internal/database"
	"github.com/zentrolabs/zentro/internal/notifications"
	"github.com/zentrolabs/zentro/internal/services"
	"github.com/zentrolabs/zentro/pkg/logger"
	"github.com/zentrolabs/zentro/pkg/mail"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("zentro-server", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var configPath string
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadApplicationConfig(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := app.ConfigureLogging(cfg.Server.LogLevel); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	db, err := initialiseDatabase(cfg)
	if err != nil {
		return err
	}
	defer closeDatabase(db, log)

	dbStore := cache.NewDatabaseStore(db, nil)

	var store cache.Store = dbStore
	if cfg.Cache.Redis.Enabled {
		redisStore, redisErr := cache.NewRedisStore(ctx, cfg.Cache.Redis.RedisConfig())
		if redisErr != nil {
			log.Warn("redis unavailable; falling back to database-backed cache", zap.Error(redisErr))
		} else {
			store = redisStore
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("cache close failed", zap.Error(err))
		}
	}()

	tokens, err := iauth.NewTokenService(cfg.Auth.TokenServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise token service: %w", err)
	}

	otp, err := iauth.NewOTPService(db, cfg.OTP.OTPServiceConfig())
	if err != nil {
		return fmt.Errorf("initialise otp service: %w", err)
	}

	refresh, err := iauth.NewRefreshStore(db, iauth.RefreshStoreConfig{Cache: store})
	if err != nil {
		return fmt.Errorf("initialise refresh store: %w", err)
	}

	notifier, flushNotifier, err := buildNotifier(cfg)
	if err != nil {
		return err
	}
	defer flushNotifier()

	authCfg := cfg.Auth.AuthServicePolicy()
	authCfg.Tokens = tokens
	authCfg.OTP = otp
	authCfg.RefreshStore = refresh
	authCfg.Notifier = notifier

	authSvc, err := services.NewAuthService(db, authCfg)
	if err != nil {
		return fmt.Errorf("initialise auth service: %w", err)
	}

	userSvc, err := services.NewUserService(db, services.UserConfig{
		RefreshStore:     refresh,
		UsernameCooldown: cfg.Auth.UsernameCooldown,
	})
	if err != nil {
		return fmt.Errorf("initialise user service: %w", err)
	}

	cleaner := maintenance.NewCleaner(otp, refresh, dbStore)
	if err := cleaner.Start(); err != nil {
		return fmt.Errorf("start maintenance jobs: %w", err)
	}
	defer func() {
		stopCtx := cleaner.Stop()
		if err := cleaner.RunOnce(stopCtx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}()

	router, err := api.NewRouter(api.Deps{
		DB:     db,
		Config: cfg,
		Tokens: tokens,
		Auth:   authSvc,
		Users:  userSvc,
	})
	if err != nil {
		return fmt.Errorf("build api router: %w", err)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	if err, ok := <-serverErr; ok && err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("server stopped gracefully")
	return nil
}

func loadApplicationConfig(path string) (*app.Config, error) {
	switch {
	case strings.TrimSpace(path) == "":
		return app.LoadConfig()
	default:
		info, err := os.Stat(path)
		if err == nil {
			if info.IsDir() {
				return app.LoadConfig(path)
			}
			return app.LoadConfig(filepath.Dir(path))
		}
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config path %q does not exist", path)
		}
		return nil, fmt.Errorf("stat config path: %w", err)
	}
}

// buildNotifier returns the notifier plus a flush func for shutdown.
func buildNotifier(cfg *app.Config) (notifications.Notifier, func(), error) {
	if !cfg.Email.SMTP.Enabled {
		logger.WithModule("bootstrap").Warn("smtp disabled; one-time codes will be written to the log")
		return notifications.NewLogNotifier(), func() {}, nil
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTP.SMTPSettings())
	if err != nil {
		return nil, nil, fmt.Errorf("initialise mailer: %w", err)
	}

	notifier := notifications.NewEmailNotifier(mailer, cfg.Email.SMTP.From)
	return notifier, notifier.Flush, nil
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseConfig()
	dbCfg.Driver = strings.ToLower(strings.TrimSpace(dbCfg.Driver))

	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}

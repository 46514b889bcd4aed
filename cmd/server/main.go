package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"pickupmap/internal/cluster"
	"pickupmap/internal/config"
	"pickupmap/internal/database"
	"pickupmap/internal/handlers"
	"pickupmap/internal/repository"
	"pickupmap/internal/security"
	"pickupmap/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireServerSecrets(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connection established", slog.String("type", cfg.DatabaseType))

	if err := db.RunMigrations(ctx); err != nil {
		return err
	}
	logger.Info("migrations completed")

	// Repositories
	gameRepo := repository.NewGameRepository(db)
	inviteRepo := repository.NewInvitationRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Services
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, userRepo, logger)
	if err != nil {
		return err
	}
	if !emailService.IsEnabled() {
		logger.Info("email notifications disabled: SES_FROM_EMAIL not set")
	}

	notifier := service.NewFanoutNotifier(service.NewInboxNotifier(notificationRepo), emailService)
	gate := service.NewVisibilityGate(friendRepo, inviteRepo)
	games := service.NewGameService(gameRepo, inviteRepo, locationRepo, gate, notifier, logger)
	sweeper := service.NewSweeper(games, logger)

	mode, err := cluster.ParseMode(cfg.ClusterMode)
	if err != nil {
		return err
	}

	var limiter *security.RateLimiter
	if cfg.RateLimitRequests > 0 {
		limiter = security.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		defer limiter.Stop()
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Middleware:     handlers.NewMiddleware(cfg.JWTSecret, userRepo, logger),
		Games:          handlers.NewGameHandler(games, mode, logger),
		Notifications:  handlers.NewNotificationHandler(service.NewNotificationService(notificationRepo), logger),
		Cron:           handlers.NewCronHandler(sweeper, cfg.CronSecretHash, logger),
		Limiter:        limiter,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			return server.Close()
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("starting expiration sweeper", slog.Duration("interval", cfg.SweepInterval))
		return sweeper.Run(gctx, cfg.SweepInterval)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

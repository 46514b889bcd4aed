package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pickupmap/internal/config"
	"pickupmap/internal/database"
	"pickupmap/internal/repository"
	"pickupmap/internal/service"
)

func main() {
	flag.Usage = printUsage
	timeout := flag.Duration("timeout", 30*time.Second, "Abort the sweep after this long")
	verbose := flag.Bool("v", false, "Log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger, *timeout); err != nil {
		logger.Error("sweep failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger, timeout time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Run migrations to ensure schema is up to date
	if err := db.RunMigrations(ctx); err != nil {
		return err
	}

	inviteRepo := repository.NewInvitationRepository(db)
	gate := service.NewVisibilityGate(repository.NewFriendRepository(db), inviteRepo)
	notifier := service.NewInboxNotifier(repository.NewNotificationRepository(db))
	games := service.NewGameService(repository.NewGameRepository(db), inviteRepo,
		repository.NewLocationRepository(db), gate, notifier, logger)

	n, err := service.NewSweeper(games, logger).RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("expired %d game(s)\n", n)
	return nil
}

func printUsage() {
	fmt.Println("Pickup Map Expiration Sweep")
	fmt.Println()
	fmt.Println("Marks every OPEN or FULL game whose expiry has passed as EXPIRED, then exits.")
	fmt.Println("Run it from cron when the server's built-in sweeper is not enough.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sweep [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -timeout <dur>    Abort the sweep after this long (default: 30s)")
	fmt.Println("  -v                Log at debug level")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./pickupmap.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}

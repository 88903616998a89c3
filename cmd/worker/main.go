package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/hollis/taskpilot/internal/database"
	"github.com/hollis/taskpilot/internal/notify"
	"github.com/hollis/taskpilot/internal/tasks"
	"github.com/hollis/taskpilot/pkg/config"
	"github.com/hollis/taskpilot/pkg/queue"
	"github.com/hollis/taskpilot/pkg/util"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting TaskPilot worker")

	// Connect to database
	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Create Asynq server
	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency)

	// Create task handler
	mailer := notify.NewMailer(cfg.SMTP, logger)
	handler := tasks.NewHandler(db, logger, mailer)

	// Register handlers
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	// Periodic invitation expiry sweep. Reads already treat stale pending
	// rows as expired; the sweep just keeps the table honest.
	scheduler := queue.NewScheduler(&cfg.Redis)
	if err := util.ValidateCronExpr(cfg.Worker.InvitationSweepCron); err != nil {
		logger.Error("invalid invitation sweep cron", "expr", cfg.Worker.InvitationSweepCron, "error", err)
		os.Exit(1)
	}
	if _, err := scheduler.Register(cfg.Worker.InvitationSweepCron, tasks.NewInvitationSweepTask()); err != nil {
		logger.Error("failed to register invitation sweep", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	// Handle shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down worker...")
		scheduler.Shutdown()
		srv.Shutdown()
		cancel()
	}()

	logger.Info("worker started, waiting for tasks...")

	// Start the server
	if err := srv.Run(mux); err != nil {
		logger.Error("worker error", "error", err)
	}

	// Wait for context cancellation
	<-ctx.Done()

	// Close database connection
	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}

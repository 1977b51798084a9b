// The reminder scheduler periodically scans for overdue fee allocations and
// enqueues a reminder for each one. Delivery happens in reminder-worker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"feeledger/internal/amqp"
	"feeledger/internal/config"
	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/reports"
	"feeledger/internal/services"
	"feeledger/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentScheduler})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the reminder scheduler")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
		cfg.AMQPPaymentsQueue, cfg.AMQPRemindersQueue, logger)
	if err != nil {
		logger.Error("failed to connect to AMQP", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	reminderSvc := services.NewReminderService(reports.NewService(repo, logger), amqpClient, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scan := func(now time.Time) {
		sent, err := reminderSvc.Scan(ctx, core.DateOf(now.UTC()))
		if err != nil {
			logger.Error("reminder scan failed", log.FieldError, err)
			return
		}
		logger.Info("reminder scan complete", "reminders_sent", sent)
	}

	logger.Info("starting reminder scheduler",
		log.FieldOperation, log.OpStartup,
		"interval", cfg.ReminderScanInterval,
		"schema_version", repo.SchemaVersion())
	scan(time.Now())

	ticker := time.NewTicker(cfg.ReminderScanInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				scan(now)
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())
	cancel()
}

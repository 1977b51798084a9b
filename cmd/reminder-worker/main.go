// The queue worker drains both queues: fee reminders are delivered through
// the configured notifier and payment announcements are recorded as audit
// log entries.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"feeledger/internal/amqp"
	"feeledger/internal/config"
	"feeledger/internal/log"
	"feeledger/internal/storage"
	"feeledger/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the queue worker")
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

	reminderWorker := worker.NewReminderWorker(repo, worker.NewLogNotifier(logger), logger)
	auditor := worker.NewPaymentAuditor(repo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())
		cancel()
	}()

	logger.Info("starting queue worker",
		log.FieldOperation, log.OpStartup,
		"schema_version", repo.SchemaVersion())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeFeeReminders(gctx, func(msg *amqp.FeeReminderMessage) error {
			return reminderWorker.HandleReminderMessage(gctx, msg)
		})
	})
	g.Go(func() error {
		return amqpClient.ConsumePaymentsPosted(gctx, func(msg *amqp.PaymentPostedMessage) error {
			return auditor.HandlePaymentPostedMessage(gctx, msg)
		})
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("queue worker stopped")
}

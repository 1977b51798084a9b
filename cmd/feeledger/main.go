package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"feeledger/internal/amqp"
	"feeledger/internal/bulk"
	"feeledger/internal/config"
	apphttp "feeledger/internal/http"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/reports"
	"feeledger/internal/services"
	"feeledger/internal/storage"
)

func main() {
	// .env is for local development; absence is fine.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to open repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange,
			cfg.AMQPPaymentsQueue, cfg.AMQPRemindersQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, postings will not be announced", log.FieldError, err)
			amqpClient = nil
		} else {
			defer amqpClient.Close()
		}
	} else {
		logger.Info("AMQP disabled, postings will not be announced")
	}

	engine := ledger.NewEngine(repo, logger, cfg.LockWait)
	collector := bulk.NewCollector(engine, logger, cfg.BulkConcurrency)
	reportSvc := reports.NewService(repo, logger)

	// A nil *amqp.Client must not reach the services as a non-nil interface.
	var paymentPub services.PaymentPublisher
	var reminderPub services.ReminderPublisher
	if amqpClient != nil {
		paymentPub = amqpClient
		reminderPub = amqpClient
	}
	paymentSvc := services.NewPaymentService(engine, collector, paymentPub, logger)
	reminderSvc := services.NewReminderService(reportSvc, reminderPub, logger)

	srv := apphttp.NewServer(":"+cfg.Port, repo, engine, paymentSvc, reportSvc, reminderSvc, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("shutdown signal received", log.FieldOperation, log.OpShutdown, "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("starting fee ledger server",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"schema_version", repo.SchemaVersion())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("server stopped")
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// AMQP. An empty URL disables messaging; postings still work, they are
	// just not announced.
	AMQPURL            string
	AMQPExchange       string
	AMQPPaymentsQueue  string
	AMQPRemindersQueue string

	// Ledger engine
	LockWait time.Duration

	// Bulk coordinator
	BulkConcurrency int

	// Reminder scheduler
	ReminderScanInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/feeledger.db"),

		AMQPURL:            getEnv("AMQP_URL", ""),
		AMQPExchange:       getEnv("AMQP_EXCHANGE", "feeledger"),
		AMQPPaymentsQueue:  getEnv("AMQP_PAYMENTS_QUEUE", "payments_posted"),
		AMQPRemindersQueue: getEnv("AMQP_REMINDERS_QUEUE", "fee_reminders"),

		LockWait:        getEnvDuration("LOCK_WAIT", 2*time.Second),
		BulkConcurrency: getEnvInt("BULK_CONCURRENCY", 4),

		ReminderScanInterval: getEnvDuration("REMINDER_SCAN_INTERVAL", time.Hour),
	}
}

// Validate checks the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.SQLiteDBPath == "" {
		errs = append(errs, "SQLite database path cannot be empty")
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPPaymentsQueue == "" {
			errs = append(errs, "AMQP payments queue name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRemindersQueue == "" {
			errs = append(errs, "AMQP reminders queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.LockWait < 100*time.Millisecond {
		errs = append(errs, fmt.Sprintf("invalid lock wait %v: must be at least 100ms", c.LockWait))
	} else if c.LockWait > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid lock wait %v: must be at most 1 minute", c.LockWait))
	}

	if c.BulkConcurrency < 1 {
		errs = append(errs, fmt.Sprintf("invalid bulk concurrency %d: must be at least 1", c.BulkConcurrency))
	} else if c.BulkConcurrency > 64 {
		errs = append(errs, fmt.Sprintf("invalid bulk concurrency %d: must be at most 64", c.BulkConcurrency))
	}

	if c.ReminderScanInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid reminder scan interval %v: must be at least 1 minute", c.ReminderScanInterval))
	} else if c.ReminderScanInterval > 7*24*time.Hour {
		errs = append(errs, fmt.Sprintf("invalid reminder scan interval %v: must be at most 7 days", c.ReminderScanInterval))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

package services

import (
	"context"

	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/reports"
)

// ReminderPublisher enqueues overdue-fee reminders for the worker.
type ReminderPublisher interface {
	PublishFeeReminder(ctx context.Context, allocationID, studentID int64, daysOverdue int) error
}

// ReminderService finds overdue allocations and enqueues a reminder for
// each one.
type ReminderService struct {
	reports   *reports.Service
	publisher ReminderPublisher
	logger    *log.Logger
}

// NewReminderService creates a reminder service.
func NewReminderService(reportSvc *reports.Service, publisher ReminderPublisher, logger *log.Logger) *ReminderService {
	return &ReminderService{
		reports:   reportSvc,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentScheduler),
	}
}

// Scan enqueues a reminder for every allocation overdue as of asOf and
// returns how many were enqueued. A publish failure stops the scan; the
// next run picks the remainder up again.
func (s *ReminderService) Scan(ctx context.Context, asOf core.Date) (int, error) {
	entries, err := s.reports.DueReport(ctx, asOf)
	if err != nil {
		return 0, err
	}

	sent := 0
	overdue := 0
	for _, e := range entries {
		if e.DaysOverdue == 0 {
			continue
		}
		overdue++
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishFeeReminder(ctx, e.AllocationID, e.StudentID, e.DaysOverdue); err != nil {
			return sent, err
		}
		sent++
	}

	s.logger.InfoContext(ctx, "reminder scan finished",
		log.FieldOperation, log.OpRemind,
		"overdue", overdue,
		"sent", sent,
		"scanned", len(entries))
	return sent, nil
}

// Package worker processes queued fee reminders. The worker owns no
// transport of its own: it resolves each message against the database and
// hands the result to a Notifier.
package worker

import (
	"context"
	"errors"
	"fmt"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/storage"
)

// Reminder is a resolved overdue-fee notification.
type Reminder struct {
	Student     core.Student
	Allocation  core.FeeAllocation
	Remaining   core.Money
	DaysOverdue int
}

// Notifier delivers one reminder. Implementations decide the channel.
type Notifier interface {
	Notify(ctx context.Context, r Reminder) error
}

// ReminderWorker turns queued reminder messages into notifications.
type ReminderWorker struct {
	repo     *storage.Repository
	notifier Notifier
	logger   *log.Logger
}

func NewReminderWorker(repo *storage.Repository, notifier Notifier, logger *log.Logger) *ReminderWorker {
	return &ReminderWorker{
		repo:     repo,
		notifier: notifier,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleReminderMessage processes one queued reminder. Messages whose
// allocation was paid between enqueue and processing are dropped silently;
// messages for rows that no longer resolve are dropped with a warning so
// they are not requeued forever.
func (w *ReminderWorker) HandleReminderMessage(ctx context.Context, msg *amqp.FeeReminderMessage) error {
	alloc, err := w.repo.GetAllocation(ctx, msg.AllocationID)
	if errors.Is(err, core.ErrNotFound) {
		w.logger.WarnContext(ctx, "reminder for unknown allocation dropped",
			log.FieldAllocationID, msg.AllocationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get allocation: %w", err)
	}

	if alloc.Status == core.StatusPaid {
		w.logger.InfoContext(ctx, "allocation settled since enqueue, reminder skipped",
			log.FieldAllocationID, alloc.ID)
		return nil
	}

	student, err := w.repo.GetStudent(ctx, alloc.StudentID)
	if err != nil {
		return fmt.Errorf("get student: %w", err)
	}
	if !student.Active {
		w.logger.InfoContext(ctx, "student inactive, reminder skipped",
			log.FieldStudentID, student.ID)
		return nil
	}

	reminder := Reminder{
		Student:     student,
		Allocation:  alloc,
		Remaining:   alloc.Remaining(),
		DaysOverdue: msg.DaysOverdue,
	}
	if err := w.notifier.Notify(ctx, reminder); err != nil {
		return fmt.Errorf("notify: %w", err)
	}

	w.logger.InfoContext(ctx, "reminder delivered",
		log.FieldOperation, log.OpRemind,
		log.FieldAllocationID, alloc.ID,
		log.FieldStudentID, student.ID,
		log.FieldAmountCents, reminder.Remaining.Cents)
	return nil
}

// LogNotifier writes reminders to the log. It stands in until a real
// delivery channel is wired up.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.WithComponent(log.ComponentWorker)}
}

func (n *LogNotifier) Notify(ctx context.Context, r Reminder) error {
	n.logger.InfoContext(ctx, "fee reminder",
		"student", r.Student.FullName,
		log.FieldAllocationID, r.Allocation.ID,
		"remaining", r.Remaining.String(),
		"days_overdue", r.DaysOverdue)
	return nil
}

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

// PaymentAuditor turns payment announcements into audit log entries with the
// allocation state resolved at processing time.
type PaymentAuditor struct {
	repo   *storage.Repository
	logger *log.Logger
}

func NewPaymentAuditor(repo *storage.Repository, logger *log.Logger) *PaymentAuditor {
	return &PaymentAuditor{
		repo:   repo,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandlePaymentPostedMessage records one announced payment. Messages whose
// allocation no longer resolves are dropped with a warning so they are not
// requeued forever.
func (a *PaymentAuditor) HandlePaymentPostedMessage(ctx context.Context, msg *amqp.PaymentPostedMessage) error {
	alloc, err := a.repo.GetAllocation(ctx, msg.AllocationID)
	if errors.Is(err, core.ErrNotFound) {
		a.logger.WarnContext(ctx, "payment announcement for unknown allocation dropped",
			log.FieldAllocationID, msg.AllocationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get allocation: %w", err)
	}

	student, err := a.repo.GetStudent(ctx, msg.StudentID)
	if errors.Is(err, core.ErrNotFound) {
		a.logger.WarnContext(ctx, "payment announcement for unknown student dropped",
			log.FieldStudentID, msg.StudentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get student: %w", err)
	}

	a.logger.InfoContext(ctx, "payment recorded",
		"payment_id", msg.PaymentID,
		log.FieldAllocationID, alloc.ID,
		log.FieldStudentID, student.ID,
		"student", student.FullName,
		"paid", alloc.Paid.String(),
		"remaining", alloc.Remaining().String(),
		"status", string(alloc.Status))
	return nil
}

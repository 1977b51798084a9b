// Package services composes the ledger engine, reports and messaging into
// the operations the HTTP layer and workers call.
package services

import (
	"context"

	"feeledger/internal/bulk"
	"feeledger/internal/core"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
)

// PaymentPublisher announces committed payments. Publishing is best effort
// and happens after commit; a publish failure never undoes a posting.
type PaymentPublisher interface {
	PublishPaymentPosted(ctx context.Context, paymentID, allocationID, studentID int64) error
}

// PaymentService posts payments through the ledger engine and announces
// them downstream.
type PaymentService struct {
	engine    *ledger.Engine
	collector *bulk.Collector
	publisher PaymentPublisher
	logger    *log.Logger
}

// NewPaymentService creates a payment service. publisher may be nil when
// messaging is not configured.
func NewPaymentService(engine *ledger.Engine, collector *bulk.Collector, publisher PaymentPublisher, logger *log.Logger) *PaymentService {
	return &PaymentService{
		engine:    engine,
		collector: collector,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentLedger),
	}
}

// Post records one payment and announces it.
func (s *PaymentService) Post(ctx context.Context, in ledger.PostPaymentInput) (core.Payment, error) {
	payment, err := s.engine.PostPayment(ctx, in)
	if err != nil {
		return core.Payment{}, err
	}
	s.announce(ctx, payment)
	return payment, nil
}

// CollectBatch posts a batch of payments and announces each success.
func (s *PaymentService) CollectBatch(ctx context.Context, entries []ledger.PostPaymentInput) (bulk.Summary, error) {
	summary, err := s.collector.Collect(ctx, entries)
	for _, r := range summary.Results {
		if r.OK() {
			s.announce(ctx, *r.Payment)
		}
	}
	return summary, err
}

func (s *PaymentService) announce(ctx context.Context, p core.Payment) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishPaymentPosted(ctx, p.ID, p.AllocationID, p.StudentID); err != nil {
		s.logger.WarnContext(ctx, "payment announcement failed",
			log.FieldError, err,
			log.FieldReceipt, p.Receipt)
	}
}

// Package reports derives summary figures from the ledger at query time.
// Nothing here is cached or incrementally maintained; every report is
// computed from the stored rows when asked for.
package reports

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/storage"
)

const recentPaymentsLimit = 10

// Service answers report queries against the repository.
type Service struct {
	repo   *storage.Repository
	logger *log.Logger
}

// NewService creates a report service.
func NewService(repo *storage.Repository, logger *log.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.WithComponent(log.ComponentReports),
	}
}

// MonthTotal is one month's collected total.
type MonthTotal struct {
	Month string     `json:"month"`
	Total core.Money `json:"total"`
}

// Dashboard is the headline summary for the current state of the ledger.
type Dashboard struct {
	TotalCollected    core.Money     `json:"total_collected"`
	TotalDue          core.Money     `json:"total_due"`
	OverdueCount      int            `json:"overdue_count"`
	ActiveStudents    int            `json:"active_students"`
	RecentPayments    []core.Payment `json:"recent_payments"`
	MonthlyCollection []MonthTotal   `json:"monthly_collection"`
}

// DashboardSummary computes the dashboard as of now. All queries run in one
// read transaction so the figures describe a single snapshot.
func (s *Service) DashboardSummary(ctx context.Context, now time.Time) (Dashboard, error) {
	var d Dashboard
	today := core.DateOf(now.UTC())

	err := s.repo.WithinReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		if d.TotalCollected, err = s.repo.TotalCollectedTx(ctx, tx); err != nil {
			return err
		}
		if d.TotalDue, err = s.repo.TotalDueTx(ctx, tx); err != nil {
			return err
		}
		if d.OverdueCount, err = s.repo.OverdueCountTx(ctx, tx, today); err != nil {
			return err
		}
		if d.ActiveStudents, err = s.repo.ActiveStudentCountTx(ctx, tx); err != nil {
			return err
		}
		if d.RecentPayments, err = s.repo.RecentPaymentsTx(ctx, tx, recentPaymentsLimit); err != nil {
			return err
		}
		months, err := s.repo.MonthlyCollectionTx(ctx, tx, now.UTC().Year())
		if err != nil {
			return err
		}
		d.MonthlyCollection = make([]MonthTotal, 0, len(months))
		for i, total := range months {
			d.MonthlyCollection = append(d.MonthlyCollection, MonthTotal{
				Month: time.Month(i + 1).String(),
				Total: total,
			})
		}
		return nil
	})
	if err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// ClassRow is the fee position of one class.
type ClassRow struct {
	ClassID        int64           `json:"class_id"`
	ClassName      string          `json:"class_name"`
	StudentCount   int             `json:"student_count"`
	TotalDue       core.Money      `json:"total_due"`
	TotalPaid      core.Money      `json:"total_paid"`
	Outstanding    core.Money      `json:"outstanding"`
	CollectionRate decimal.Decimal `json:"collection_rate"`
}

// ClassWiseReport breaks the fee position down per class. The collection
// rate is paid over due; a class with nothing due reports a rate of zero.
func (s *Service) ClassWiseReport(ctx context.Context) ([]ClassRow, error) {
	var aggs []storage.ClassAggregate
	err := s.repo.WithinReadTx(ctx, func(tx *sql.Tx) error {
		var err error
		aggs, err = s.repo.ClassAggregatesTx(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	rows := make([]ClassRow, 0, len(aggs))
	for _, agg := range aggs {
		row := ClassRow{
			ClassID:      agg.ClassID,
			ClassName:    agg.ClassName,
			StudentCount: agg.StudentCount,
			TotalDue:     agg.TotalDue,
			TotalPaid:    agg.TotalPaid,
			Outstanding:  agg.TotalDue.Sub(agg.TotalPaid),
		}
		if agg.TotalDue.IsPositive() {
			row.CollectionRate = agg.TotalPaid.Decimal().Div(agg.TotalDue.Decimal()).Round(4)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// DueEntry is one outstanding allocation with its student context.
type DueEntry struct {
	AllocationID int64      `json:"allocation_id"`
	StudentID    int64      `json:"student_id"`
	StudentName  string     `json:"student_name"`
	ClassName    string     `json:"class_name"`
	FeeGroupName string     `json:"fee_group_name"`
	Amount       core.Money `json:"amount"`
	Paid         core.Money `json:"paid"`
	Remaining    core.Money `json:"remaining"`
	DueDate      core.Date  `json:"due_date"`
	DaysOverdue  int        `json:"days_overdue"`
}

// DueReport lists every allocation that still has a remainder, ordered by
// due date. DaysOverdue counts whole days past the due date as of asOf and
// is zero for obligations not yet due.
func (s *Service) DueReport(ctx context.Context, asOf core.Date) ([]DueEntry, error) {
	rows, err := s.repo.DueRows(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]DueEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, DueEntry{
			AllocationID: row.AllocationID,
			StudentID:    row.StudentID,
			StudentName:  row.StudentName,
			ClassName:    row.ClassName,
			FeeGroupName: row.FeeGroupName,
			Amount:       row.Amount,
			Paid:         row.Paid,
			Remaining:    row.Amount.Sub(row.Paid),
			DueDate:      row.DueDate,
			DaysOverdue:  asOf.DaysSince(row.DueDate),
		})
	}
	return entries, nil
}

// HistoryEntry is one payment in a student's history.
type HistoryEntry struct {
	Payment      core.Payment `json:"payment"`
	FeeGroupName string       `json:"fee_group_name"`
}

// PaymentHistory lists a student's payments, newest first. The student must
// exist; an empty history for a known student is not an error.
func (s *Service) PaymentHistory(ctx context.Context, studentID int64) ([]HistoryEntry, error) {
	if _, err := s.repo.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	rows, err := s.repo.PaymentHistory(ctx, studentID)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, HistoryEntry{Payment: row.Payment, FeeGroupName: row.FeeGroupName})
	}
	return entries, nil
}

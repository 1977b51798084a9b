package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"feeledger/internal/core"
)

// Read-side aggregate queries. Everything here is derived from the payment
// and transaction logs at query time; nothing keeps its own counters. The
// reports service runs multi-query summaries inside WithinReadTx so the
// figures come from one snapshot.

// ActiveStudentCountTx counts students currently marked active.
func (r *Repository) ActiveStudentCountTx(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM students WHERE active = 1`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return n, nil
}

// TotalCollectedTx sums every payment ever posted.
func (r *Repository) TotalCollectedTx(ctx context.Context, tx *sql.Tx) (core.Money, error) {
	var cents int64
	err := tx.QueryRowContext(ctx, `SELECT COALESCE(SUM(amount_cents), 0) FROM payments`).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("total collected: %w", err)
	}
	return core.FromCents(cents), nil
}

// TotalDueTx sums the outstanding remainder over non-paid allocations.
func (r *Repository) TotalDueTx(ctx context.Context, tx *sql.Tx) (core.Money, error) {
	var cents int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents - paid_cents), 0) FROM fee_allocations WHERE status != 'paid'`).
		Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("total due: %w", err)
	}
	return core.FromCents(cents), nil
}

// OverdueCountTx counts non-paid allocations past their due date.
func (r *Repository) OverdueCountTx(ctx context.Context, tx *sql.Tx, asOf core.Date) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM fee_allocations WHERE status != 'paid' AND due_date < ?`,
		asOf.String()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("overdue count: %w", err)
	}
	return n, nil
}

// RecentPaymentsTx returns the latest payments by payment date, newest
// first, with insertion order as the tiebreak.
func (r *Repository) RecentPaymentsTx(ctx context.Context, tx *sql.Tx, limit int) ([]core.Payment, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id, receipt, allocation_id, student_id, amount_cents, method, paid_on, remarks, created_at
		 FROM payments ORDER BY paid_on DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// MonthlyCollectionTx returns payment totals per calendar month (index 0 is
// January) for the given year.
func (r *Repository) MonthlyCollectionTx(ctx context.Context, tx *sql.Tx, year int) ([12]core.Money, error) {
	var months [12]core.Money
	rows, err := tx.QueryContext(ctx,
		`SELECT CAST(strftime('%m', paid_on) AS INTEGER) AS month, COALESCE(SUM(amount_cents), 0)
		 FROM payments WHERE strftime('%Y', paid_on) = ? GROUP BY month`,
		strconv.Itoa(year))
	if err != nil {
		return months, fmt.Errorf("monthly collection: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			month int
			cents int64
		)
		if err := rows.Scan(&month, &cents); err != nil {
			return months, fmt.Errorf("scan monthly collection: %w", err)
		}
		if month >= 1 && month <= 12 {
			months[month-1] = core.FromCents(cents)
		}
	}
	return months, rows.Err()
}

// ClassAggregate is one class-wise report row as read from storage.
type ClassAggregate struct {
	ClassID      int64
	ClassName    string
	StudentCount int
	TotalDue     core.Money
	TotalPaid    core.Money
}

// ClassAggregatesTx groups allocations by the student's class. Classes with
// no allocations still appear, with zero figures.
func (r *Repository) ClassAggregatesTx(ctx context.Context, tx *sql.Tx) ([]ClassAggregate, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT c.id, c.name,
		        COUNT(DISTINCT s.id),
		        COALESCE(SUM(a.amount_cents), 0),
		        COALESCE(SUM(a.paid_cents), 0)
		 FROM classes c
		 LEFT JOIN students s ON s.class_id = c.id
		 LEFT JOIN fee_allocations a ON a.student_id = s.id
		 GROUP BY c.id, c.name
		 ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("class aggregates: %w", err)
	}
	defer rows.Close()

	var aggs []ClassAggregate
	for rows.Next() {
		var (
			agg  ClassAggregate
			due  int64
			paid int64
		)
		if err := rows.Scan(&agg.ClassID, &agg.ClassName, &agg.StudentCount, &due, &paid); err != nil {
			return nil, fmt.Errorf("scan class aggregate: %w", err)
		}
		agg.TotalDue = core.FromCents(due)
		agg.TotalPaid = core.FromCents(paid)
		aggs = append(aggs, agg)
	}
	return aggs, rows.Err()
}

// DueRow is one non-paid allocation joined with its student and fee group.
type DueRow struct {
	AllocationID int64
	StudentID    int64
	StudentName  string
	ClassName    string
	FeeGroupName string
	Amount       core.Money
	Paid         core.Money
	DueDate      core.Date
}

// DueRows returns every non-paid allocation with naming context, ordered by
// due date then allocation id.
func (r *Repository) DueRows(ctx context.Context) ([]DueRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.student_id, s.full_name, c.name, g.name,
		        a.amount_cents, a.paid_cents, a.due_date
		 FROM fee_allocations a
		 JOIN students s ON s.id = a.student_id
		 JOIN classes c ON c.id = s.class_id
		 JOIN fee_groups g ON g.id = a.fee_group_id
		 WHERE a.status != 'paid'
		 ORDER BY a.due_date, a.id`)
	if err != nil {
		return nil, fmt.Errorf("due rows: %w", err)
	}
	defer rows.Close()

	var result []DueRow
	for rows.Next() {
		var (
			row    DueRow
			amount int64
			paid   int64
			due    string
		)
		if err := rows.Scan(&row.AllocationID, &row.StudentID, &row.StudentName, &row.ClassName,
			&row.FeeGroupName, &amount, &paid, &due); err != nil {
			return nil, fmt.Errorf("scan due row: %w", err)
		}
		row.Amount = core.FromCents(amount)
		row.Paid = core.FromCents(paid)
		row.DueDate, err = core.ParseDate(due)
		if err != nil {
			return nil, fmt.Errorf("due row %d date: %w", row.AllocationID, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// PaymentHistoryRow is one payment joined with its fee group name.
type PaymentHistoryRow struct {
	Payment      core.Payment
	FeeGroupName string
}

// PaymentHistory returns a student's payments, newest first.
func (r *Repository) PaymentHistory(ctx context.Context, studentID int64) ([]PaymentHistoryRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.receipt, p.allocation_id, p.student_id, p.amount_cents, p.method, p.paid_on, p.remarks, p.created_at,
		        g.name
		 FROM payments p
		 JOIN fee_allocations a ON a.id = p.allocation_id
		 JOIN fee_groups g ON g.id = a.fee_group_id
		 WHERE p.student_id = ?
		 ORDER BY p.paid_on DESC, p.id DESC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("payment history: %w", err)
	}
	defer rows.Close()

	var result []PaymentHistoryRow
	for rows.Next() {
		var (
			row    PaymentHistoryRow
			amount int64
			date   string
		)
		p := &row.Payment
		if err := rows.Scan(&p.ID, &p.Receipt, &p.AllocationID, &p.StudentID, &amount, &p.Method,
			&date, &p.Remarks, &p.CreatedAt, &row.FeeGroupName); err != nil {
			return nil, fmt.Errorf("scan payment history: %w", err)
		}
		p.Amount = core.FromCents(amount)
		p.Date, err = core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("payment %d date: %w", p.ID, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func collectPayments(rows *sql.Rows) ([]core.Payment, error) {
	var payments []core.Payment
	for rows.Next() {
		var (
			p      core.Payment
			amount int64
			date   string
		)
		if err := rows.Scan(&p.ID, &p.Receipt, &p.AllocationID, &p.StudentID, &amount, &p.Method,
			&date, &p.Remarks, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Amount = core.FromCents(amount)
		var err error
		p.Date, err = core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("payment %d date: %w", p.ID, err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

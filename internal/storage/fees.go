package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"feeledger/internal/core"
)

// CreateFeeType inserts a new fee type and returns it.
func (r *Repository) CreateFeeType(ctx context.Context, f core.FeeType) (core.FeeType, error) {
	f.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO fee_types (name, code, description, created_at) VALUES (?, ?, ?, ?)`,
		f.Name, f.Code, f.Description, f.CreatedAt)
	if err != nil {
		return core.FeeType{}, fmt.Errorf("insert fee type: %w", err)
	}
	f.ID, err = res.LastInsertId()
	if err != nil {
		return core.FeeType{}, fmt.Errorf("fee type id: %w", err)
	}
	return f, nil
}

// ListFeeTypes returns every fee type in creation order.
func (r *Repository) ListFeeTypes(ctx context.Context) ([]core.FeeType, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, code, description, created_at FROM fee_types ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list fee types: %w", err)
	}
	defer rows.Close()

	var types []core.FeeType
	for rows.Next() {
		var f core.FeeType
		if err := rows.Scan(&f.ID, &f.Name, &f.Code, &f.Description, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan fee type: %w", err)
		}
		types = append(types, f)
	}
	return types, rows.Err()
}

// GetFeeType returns the fee type or core.ErrNotFound.
func (r *Repository) GetFeeType(ctx context.Context, id int64) (core.FeeType, error) {
	var f core.FeeType
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, code, description, created_at FROM fee_types WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &f.Code, &f.Description, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FeeType{}, core.ErrNotFound
	}
	if err != nil {
		return core.FeeType{}, fmt.Errorf("get fee type: %w", err)
	}
	return f, nil
}

// CreateFeeGroup inserts a new fee group and returns it.
func (r *Repository) CreateFeeGroup(ctx context.Context, g core.FeeGroup) (core.FeeGroup, error) {
	g.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO fee_groups (name, class_id, fee_type_id, amount_cents, due_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.Name, g.ClassID, g.FeeTypeID, g.Amount.Cents, g.DueDate.String(), g.CreatedAt)
	if err != nil {
		return core.FeeGroup{}, fmt.Errorf("insert fee group: %w", err)
	}
	g.ID, err = res.LastInsertId()
	if err != nil {
		return core.FeeGroup{}, fmt.Errorf("fee group id: %w", err)
	}
	return g, nil
}

// GetFeeGroup returns the fee group or core.ErrNotFound.
func (r *Repository) GetFeeGroup(ctx context.Context, id int64) (core.FeeGroup, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, class_id, fee_type_id, amount_cents, due_date, created_at
		 FROM fee_groups WHERE id = ?`, id)
	return scanFeeGroup(row)
}

// ListFeeGroups returns every fee group in creation order.
func (r *Repository) ListFeeGroups(ctx context.Context) ([]core.FeeGroup, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, class_id, fee_type_id, amount_cents, due_date, created_at
		 FROM fee_groups ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list fee groups: %w", err)
	}
	defer rows.Close()

	var groups []core.FeeGroup
	for rows.Next() {
		g, err := scanFeeGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func scanFeeGroup(row rowScanner) (core.FeeGroup, error) {
	var (
		g      core.FeeGroup
		amount int64
		due    string
	)
	err := row.Scan(&g.ID, &g.Name, &g.ClassID, &g.FeeTypeID, &amount, &due, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FeeGroup{}, core.ErrNotFound
	}
	if err != nil {
		return core.FeeGroup{}, fmt.Errorf("scan fee group: %w", err)
	}
	g.Amount = core.FromCents(amount)
	g.DueDate, err = core.ParseDate(due)
	if err != nil {
		return core.FeeGroup{}, fmt.Errorf("fee group %d due date: %w", g.ID, err)
	}
	return g, nil
}

// CreateAllocation inserts a fee allocation with status unpaid and paid 0.
func (r *Repository) CreateAllocation(ctx context.Context, a core.FeeAllocation) (core.FeeAllocation, error) {
	a.Paid = core.Money{}
	a.Status = core.StatusUnpaid
	a.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO fee_allocations (student_id, fee_group_id, amount_cents, paid_cents, status, due_date, created_at)
		 VALUES (?, ?, ?, 0, 'unpaid', ?, ?)`,
		a.StudentID, a.FeeGroupID, a.Amount.Cents, a.DueDate.String(), a.CreatedAt)
	if err != nil {
		return core.FeeAllocation{}, fmt.Errorf("insert allocation: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return core.FeeAllocation{}, fmt.Errorf("allocation id: %w", err)
	}
	return a, nil
}

// GetAllocation returns the allocation or core.ErrNotFound.
func (r *Repository) GetAllocation(ctx context.Context, id int64) (core.FeeAllocation, error) {
	return getAllocation(ctx, r.db, id)
}

func getAllocation(ctx context.Context, q querier, id int64) (core.FeeAllocation, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, student_id, fee_group_id, amount_cents, paid_cents, status, due_date, created_at
		 FROM fee_allocations WHERE id = ?`, id)
	return scanAllocation(row)
}

// AllocationFilter narrows ListAllocations. Zero values mean "any".
type AllocationFilter struct {
	StudentID int64
	ClassID   int64
	Status    core.AllocationStatus
}

// ListAllocations returns allocations matching the filter in creation order.
func (r *Repository) ListAllocations(ctx context.Context, f AllocationFilter) ([]core.FeeAllocation, error) {
	query := `SELECT a.id, a.student_id, a.fee_group_id, a.amount_cents, a.paid_cents, a.status, a.due_date, a.created_at
		 FROM fee_allocations a`
	var (
		conds []string
		args  []any
	)
	if f.ClassID > 0 {
		query += ` JOIN students s ON s.id = a.student_id`
		conds = append(conds, "s.class_id = ?")
		args = append(args, f.ClassID)
	}
	if f.StudentID > 0 {
		conds = append(conds, "a.student_id = ?")
		args = append(args, f.StudentID)
	}
	if f.Status != "" {
		conds = append(conds, "a.status = ?")
		args = append(args, string(f.Status))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()

	var allocations []core.FeeAllocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, a)
	}
	return allocations, rows.Err()
}

func scanAllocation(row rowScanner) (core.FeeAllocation, error) {
	var (
		a      core.FeeAllocation
		amount int64
		paid   int64
		status string
		due    string
	)
	err := row.Scan(&a.ID, &a.StudentID, &a.FeeGroupID, &amount, &paid, &status, &due, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.FeeAllocation{}, core.ErrNotFound
	}
	if err != nil {
		return core.FeeAllocation{}, fmt.Errorf("scan allocation: %w", err)
	}
	a.Amount = core.FromCents(amount)
	a.Paid = core.FromCents(paid)
	a.Status = core.AllocationStatus(status)
	a.DueDate, err = core.ParseDate(due)
	if err != nil {
		return core.FeeAllocation{}, fmt.Errorf("allocation %d due date: %w", a.ID, err)
	}
	return a, nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feeledger/internal/core"
)

// CreateClass inserts a new class and returns it.
func (r *Repository) CreateClass(ctx context.Context, c core.Class) (core.Class, error) {
	c.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO classes (name, created_at) VALUES (?, ?)`, c.Name, c.CreatedAt)
	if err != nil {
		return core.Class{}, fmt.Errorf("insert class: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Class{}, fmt.Errorf("class id: %w", err)
	}
	return c, nil
}

// GetClass returns the class or core.ErrNotFound.
func (r *Repository) GetClass(ctx context.Context, id int64) (core.Class, error) {
	var c core.Class
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM classes WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Class{}, core.ErrNotFound
	}
	if err != nil {
		return core.Class{}, fmt.Errorf("get class: %w", err)
	}
	return c, nil
}

// ListClasses returns every class in creation order.
func (r *Repository) ListClasses(ctx context.Context) ([]core.Class, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM classes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var classes []core.Class
	for rows.Next() {
		var c core.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// CreateStudent inserts a new (active) student reference and returns it.
func (r *Repository) CreateStudent(ctx context.Context, s core.Student) (core.Student, error) {
	s.Active = true
	s.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO students (full_name, class_id, active, created_at) VALUES (?, ?, 1, ?)`,
		s.FullName, s.ClassID, s.CreatedAt)
	if err != nil {
		return core.Student{}, fmt.Errorf("insert student: %w", err)
	}
	s.ID, err = res.LastInsertId()
	if err != nil {
		return core.Student{}, fmt.Errorf("student id: %w", err)
	}
	return s, nil
}

// GetStudent returns the student or core.ErrNotFound.
func (r *Repository) GetStudent(ctx context.Context, id int64) (core.Student, error) {
	var s core.Student
	err := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, class_id, active, created_at FROM students WHERE id = ?`, id).
		Scan(&s.ID, &s.FullName, &s.ClassID, &s.Active, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Student{}, core.ErrNotFound
	}
	if err != nil {
		return core.Student{}, fmt.Errorf("get student: %w", err)
	}
	return s, nil
}

// ListStudents returns students, optionally narrowed to a class.
func (r *Repository) ListStudents(ctx context.Context, classID int64) ([]core.Student, error) {
	query := `SELECT id, full_name, class_id, active, created_at FROM students`
	var args []any
	if classID > 0 {
		query += ` WHERE class_id = ?`
		args = append(args, classID)
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []core.Student
	for rows.Next() {
		var s core.Student
		if err := rows.Scan(&s.ID, &s.FullName, &s.ClassID, &s.Active, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

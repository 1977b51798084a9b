package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feeledger/internal/core"
)

// Mutation path for derived state. Only the ledger engine calls these, and
// always inside one SQL transaction, so an appended payment/transaction and
// its derived-state update commit or roll back together.

// GetAllocationTx re-reads an allocation inside the engine's transaction.
func (r *Repository) GetAllocationTx(ctx context.Context, tx *sql.Tx, id int64) (core.FeeAllocation, error) {
	return getAllocation(ctx, tx, id)
}

// GetAccountTx re-reads an account inside the engine's transaction.
func (r *Repository) GetAccountTx(ctx context.Context, tx *sql.Tx, id int64) (core.Account, error) {
	return getAccount(ctx, tx, id)
}

// GetVoucherHeadTx re-reads a voucher head inside the engine's transaction.
// The pool is capped at one connection, so reads that run while a transaction
// is open must go through it.
func (r *Repository) GetVoucherHeadTx(ctx context.Context, tx *sql.Tx, id int64) (core.VoucherHead, error) {
	var v core.VoucherHead
	err := tx.QueryRowContext(ctx,
		`SELECT id, name, description, created_at FROM voucher_heads WHERE id = ?`, id).
		Scan(&v.ID, &v.Name, &v.Description, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.VoucherHead{}, core.ErrNotFound
	}
	if err != nil {
		return core.VoucherHead{}, fmt.Errorf("get voucher head: %w", err)
	}
	return v, nil
}

// AppendPaymentTx appends a payment row and fills in its ID and CreatedAt.
func (r *Repository) AppendPaymentTx(ctx context.Context, tx *sql.Tx, p *core.Payment) error {
	p.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO payments (receipt, allocation_id, student_id, amount_cents, method, paid_on, remarks, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Receipt, p.AllocationID, p.StudentID, p.Amount.Cents, p.Method, p.Date.String(), p.Remarks, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("payment id: %w", err)
	}
	return nil
}

// UpdateAllocationPaidTx sets the derived paid amount and status. The
// paid_cents CHECK constraint backs up the engine's overpayment guard.
func (r *Repository) UpdateAllocationPaidTx(ctx context.Context, tx *sql.Tx, id int64, paid core.Money, status core.AllocationStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE fee_allocations SET paid_cents = ?, status = ? WHERE id = ?`,
		paid.Cents, string(status), id)
	if err != nil {
		return fmt.Errorf("update allocation paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update allocation paid: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// AppendTransactionTx appends a transaction row and fills in its ID and
// CreatedAt.
func (r *Repository) AppendTransactionTx(ctx context.Context, tx *sql.Tx, t *core.Transaction) error {
	t.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (reference, voucher_head_id, account_id, type, amount_cents, txn_date, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Reference, t.VoucherHeadID, t.AccountID, string(t.Type), t.Amount.Cents, t.Date.String(), t.Description, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	t.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	return nil
}

// ApplyBalanceDeltaTx adjusts an account balance by a signed amount. The
// arithmetic runs in the database so the new balance is derived from the
// committed row, not from a value read earlier.
func (r *Repository) ApplyBalanceDeltaTx(ctx context.Context, tx *sql.Tx, accountID int64, delta core.Money) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`,
		delta.Cents, accountID)
	if err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply balance delta: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SumPaymentsForAllocation recomputes paid-so-far from the payment log.
// Used by invariant checks and tests; the committed paid_cents must always
// equal this sum.
func (r *Repository) SumPaymentsForAllocation(ctx context.Context, allocationID int64) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE allocation_id = ?`, allocationID).
		Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum payments: %w", err)
	}
	return core.FromCents(cents), nil
}

// SumTransactionsForAccount recomputes the signed transaction sum for an
// account; the committed balance must always equal it.
func (r *Repository) SumTransactionsForAccount(ctx context.Context, accountID int64) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE type WHEN 'credit' THEN amount_cents ELSE -amount_cents END), 0)
		 FROM transactions WHERE account_id = ?`, accountID).
		Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum transactions: %w", err)
	}
	return core.FromCents(cents), nil
}

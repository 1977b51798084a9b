package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feeledger/internal/core"
)

// querier lets the same scan code run against the pool or a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateAccount inserts a new account with a zero balance and returns it.
func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.Balance = core.Money{}
	a.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (name, category, kind, provider, number, balance_cents, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		a.Name, string(a.Category), string(a.Kind), a.Provider, a.Number, a.CreatedAt)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return core.Account{}, fmt.Errorf("account id: %w", err)
	}
	return a, nil
}

// GetAccount returns the account or core.ErrNotFound.
func (r *Repository) GetAccount(ctx context.Context, id int64) (core.Account, error) {
	return getAccount(ctx, r.db, id)
}

func getAccount(ctx context.Context, q querier, id int64) (core.Account, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, category, kind, provider, number, balance_cents, created_at
		 FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// ListAccounts returns every account in creation order with live balances.
func (r *Repository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, category, kind, provider, number, balance_cents, created_at
		 FROM accounts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (core.Account, error) {
	var (
		a        core.Account
		category string
		kind     string
		balance  int64
	)
	err := row.Scan(&a.ID, &a.Name, &category, &kind, &a.Provider, &a.Number, &balance, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	a.Category = core.AccountCategory(category)
	a.Kind = core.AccountKind(kind)
	a.Balance = core.FromCents(balance)
	return a, nil
}

// CreateVoucherHead inserts a new voucher head and returns it.
func (r *Repository) CreateVoucherHead(ctx context.Context, v core.VoucherHead) (core.VoucherHead, error) {
	v.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO voucher_heads (name, description, created_at) VALUES (?, ?, ?)`,
		v.Name, v.Description, v.CreatedAt)
	if err != nil {
		return core.VoucherHead{}, fmt.Errorf("insert voucher head: %w", err)
	}
	v.ID, err = res.LastInsertId()
	if err != nil {
		return core.VoucherHead{}, fmt.Errorf("voucher head id: %w", err)
	}
	return v, nil
}

// GetVoucherHead returns the voucher head or core.ErrNotFound.
func (r *Repository) GetVoucherHead(ctx context.Context, id int64) (core.VoucherHead, error) {
	var v core.VoucherHead
	err := r.db.QueryRowContext(ctx,
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

// ListVoucherHeads returns every voucher head in creation order.
func (r *Repository) ListVoucherHeads(ctx context.Context) ([]core.VoucherHead, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM voucher_heads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list voucher heads: %w", err)
	}
	defer rows.Close()

	var heads []core.VoucherHead
	for rows.Next() {
		var v core.VoucherHead
		if err := rows.Scan(&v.ID, &v.Name, &v.Description, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan voucher head: %w", err)
		}
		heads = append(heads, v)
	}
	return heads, rows.Err()
}

// ListTransactions returns posted transactions for an account, newest first.
func (r *Repository) ListTransactions(ctx context.Context, accountID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reference, voucher_head_id, account_id, type, amount_cents, txn_date, description, created_at
		 FROM transactions WHERE account_id = ? ORDER BY id DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t       core.Transaction
		txnType string
		amount  int64
		date    string
	)
	err := row.Scan(&t.ID, &t.Reference, &t.VoucherHeadID, &t.AccountID, &txnType, &amount, &date, &t.Description, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TxnType(txnType)
	t.Amount = core.FromCents(amount)
	t.Date, err = core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %d date: %w", t.ID, err)
	}
	return t, nil
}

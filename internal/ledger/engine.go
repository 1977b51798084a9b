package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/storage"
)

// DefaultLockWait bounds how long a posting waits for a busy entity.
const DefaultLockWait = 2 * time.Second

// Engine posts payments and account transactions. Work on the same
// allocation or account is serialized through keyed locks, and each posting
// runs its precondition checks and writes inside one SQL transaction, so a
// failed posting leaves nothing behind.
type Engine struct {
	repo       *storage.Repository
	logger     *log.Logger
	allocLocks *keyedLocks
	acctLocks  *keyedLocks
}

// NewEngine creates an engine around the repository. lockWait bounds lock
// acquisition; zero means DefaultLockWait.
func NewEngine(repo *storage.Repository, logger *log.Logger, lockWait time.Duration) *Engine {
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}
	return &Engine{
		repo:       repo,
		logger:     logger.WithComponent(log.ComponentLedger),
		allocLocks: newKeyedLocks(lockWait),
		acctLocks:  newKeyedLocks(lockWait),
	}
}

// PostPaymentInput carries one payment posting request.
type PostPaymentInput struct {
	AllocationID int64
	StudentID    int64
	Amount       core.Money
	Method       string
	Date         core.Date
	Remarks      string
}

func (in PostPaymentInput) validate() error {
	if in.AllocationID <= 0 {
		return &core.ValidationError{Field: "allocation_id", Reason: "must be positive"}
	}
	if in.StudentID <= 0 {
		return &core.ValidationError{Field: "student_id", Reason: "must be positive"}
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	if in.Method == "" {
		return &core.ValidationError{Field: "method", Reason: "is required"}
	}
	return in.Date.Validate()
}

// PostPayment records a payment against a fee allocation and rolls the
// allocation's paid amount and status forward. A payment exceeding the
// remaining balance is rejected whole with OverpaymentError; nothing is
// recorded on failure.
func (e *Engine) PostPayment(ctx context.Context, in PostPaymentInput) (core.Payment, error) {
	if err := in.validate(); err != nil {
		return core.Payment{}, err
	}

	release, err := e.allocLocks.acquire(ctx, in.AllocationID)
	if err != nil {
		return core.Payment{}, fmt.Errorf("allocation %d: %w", in.AllocationID, err)
	}
	defer release()

	payment := core.Payment{
		Receipt:      uuid.NewString(),
		AllocationID: in.AllocationID,
		StudentID:    in.StudentID,
		Amount:       in.Amount,
		Method:       in.Method,
		Date:         in.Date,
		Remarks:      in.Remarks,
	}

	err = e.repo.WithinTx(ctx, func(tx *sql.Tx) error {
		alloc, err := e.repo.GetAllocationTx(ctx, tx, in.AllocationID)
		if err != nil {
			return err
		}
		if alloc.StudentID != in.StudentID {
			return core.ErrNotFound
		}

		remaining := alloc.Remaining()
		if in.Amount.GreaterThan(remaining) {
			return &core.OverpaymentError{AllocationID: alloc.ID, Remaining: remaining}
		}

		if err := e.repo.AppendPaymentTx(ctx, tx, &payment); err != nil {
			return err
		}

		paid := alloc.Paid.Add(in.Amount)
		return e.repo.UpdateAllocationPaidTx(ctx, tx, alloc.ID, paid, core.StatusFor(paid, alloc.Amount))
	})
	if err != nil {
		return core.Payment{}, err
	}

	e.logger.InfoContext(ctx, "payment posted",
		log.FieldOperation, log.OpPostPayment,
		log.FieldAllocationID, payment.AllocationID,
		log.FieldStudentID, payment.StudentID,
		log.FieldReceipt, payment.Receipt,
		log.FieldAmountCents, payment.Amount.Cents)
	return payment, nil
}

// PostTransactionInput carries one account transaction posting request.
type PostTransactionInput struct {
	AccountID     int64
	VoucherHeadID int64
	Type          core.TxnType
	Amount        core.Money
	Date          core.Date
	Description   string
}

func (in PostTransactionInput) validate() error {
	if in.AccountID <= 0 {
		return &core.ValidationError{Field: "account_id", Reason: "must be positive"}
	}
	if in.VoucherHeadID <= 0 {
		return &core.ValidationError{Field: "voucher_head_id", Reason: "must be positive"}
	}
	if !in.Type.IsValid() {
		return &core.ValidationError{Field: "type", Reason: "must be debit or credit"}
	}
	if err := in.Amount.Validate(); err != nil {
		return err
	}
	return in.Date.Validate()
}

// PostTransaction records a debit or credit against an account and moves its
// balance by the same amount. A debit that would take an asset account below
// zero is rejected with InsufficientBalanceError; other categories may go
// negative.
func (e *Engine) PostTransaction(ctx context.Context, in PostTransactionInput) (core.Transaction, error) {
	if err := in.validate(); err != nil {
		return core.Transaction{}, err
	}

	release, err := e.acctLocks.acquire(ctx, in.AccountID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("account %d: %w", in.AccountID, err)
	}
	defer release()

	txn := core.Transaction{
		Reference:     uuid.NewString(),
		VoucherHeadID: in.VoucherHeadID,
		AccountID:     in.AccountID,
		Type:          in.Type,
		Amount:        in.Amount,
		Date:          in.Date,
		Description:   in.Description,
	}

	err = e.repo.WithinTx(ctx, func(tx *sql.Tx) error {
		acct, err := e.repo.GetAccountTx(ctx, tx, in.AccountID)
		if err != nil {
			return err
		}
		if _, err := e.repo.GetVoucherHeadTx(ctx, tx, in.VoucherHeadID); err != nil {
			return err
		}

		if in.Type == core.TxnDebit && acct.Category == core.CategoryAsset &&
			in.Amount.GreaterThan(acct.Balance) {
			return &core.InsufficientBalanceError{AccountID: acct.ID, Balance: acct.Balance}
		}

		if err := e.repo.AppendTransactionTx(ctx, tx, &txn); err != nil {
			return err
		}

		delta := in.Amount
		if in.Type == core.TxnDebit {
			delta = core.FromCents(-in.Amount.Cents)
		}
		return e.repo.ApplyBalanceDeltaTx(ctx, tx, acct.ID, delta)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	e.logger.InfoContext(ctx, "transaction posted",
		log.FieldOperation, log.OpPostTxn,
		log.FieldAccountID, txn.AccountID,
		log.FieldReference, txn.Reference,
		"type", string(txn.Type),
		log.FieldAmountCents, txn.Amount.Cents)
	return txn, nil
}

package core

import (
	"strings"
	"time"
)

// AccountCategory is the accounting class of an account.
type AccountCategory string

const (
	CategoryAsset     AccountCategory = "asset"
	CategoryLiability AccountCategory = "liability"
	CategoryEquity    AccountCategory = "equity"
	CategoryIncome    AccountCategory = "income"
	CategoryExpense   AccountCategory = "expense"
)

// IsValid reports whether the category is one of the known classes.
func (c AccountCategory) IsValid() bool {
	switch c {
	case CategoryAsset, CategoryLiability, CategoryEquity, CategoryIncome, CategoryExpense:
		return true
	}
	return false
}

// AccountKind is the physical form an account takes.
type AccountKind string

const (
	KindCash        AccountKind = "cash"
	KindBank        AccountKind = "bank"
	KindMobileMoney AccountKind = "mobile-money"
)

func (k AccountKind) IsValid() bool {
	switch k {
	case KindCash, KindBank, KindMobileMoney:
		return true
	}
	return false
}

// TxnType is the signed direction of an accounting transaction. A credit
// increases the account balance, a debit decreases it.
type TxnType string

const (
	TxnDebit  TxnType = "debit"
	TxnCredit TxnType = "credit"
)

func (t TxnType) IsValid() bool {
	return t == TxnDebit || t == TxnCredit
}

// AllocationStatus is derived from paid-so-far versus amount owed. It is
// never set directly by a caller.
type AllocationStatus string

const (
	StatusUnpaid  AllocationStatus = "unpaid"
	StatusPartial AllocationStatus = "partial"
	StatusPaid    AllocationStatus = "paid"
)

func (s AllocationStatus) IsValid() bool {
	return s == StatusUnpaid || s == StatusPartial || s == StatusPaid
}

// StatusFor computes the allocation status from the paid amount and the
// amount owed: paid when coverage is complete, partial when anything has
// been paid, unpaid otherwise. This is the single source of the status
// state machine; under overpayment rejection the progression
// unpaid -> partial -> paid is monotonic.
func StatusFor(paid, amount Money) AllocationStatus {
	switch {
	case paid.Cents >= amount.Cents:
		return StatusPaid
	case paid.Cents > 0:
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// Account is a named financial account. Balance is derived: it always equals
// the signed sum of transactions posted against the account and is mutated
// only by the ledger engine. Accounts are never deleted.
type Account struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Category  AccountCategory `json:"category"`
	Kind      AccountKind     `json:"kind"`
	Provider  string          `json:"provider,omitempty"`
	Number    string          `json:"number,omitempty"`
	Balance   Money           `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return NewValidationError("name", "required")
	}
	if !a.Category.IsValid() {
		return NewValidationError("category", "must be one of asset, liability, equity, income, expense")
	}
	if !a.Kind.IsValid() {
		return NewValidationError("kind", "must be one of cash, bank, mobile-money")
	}
	return nil
}

// VoucherHead is a categorical tag for transactions, immutable once a posted
// transaction references it.
type VoucherHead struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (v VoucherHead) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return NewValidationError("name", "required")
	}
	return nil
}

// Transaction is one posted accounting entry. Transactions are append-only:
// corrections are new offsetting transactions, never edits.
type Transaction struct {
	ID            int64     `json:"id"`
	Reference     string    `json:"reference"`
	VoucherHeadID int64     `json:"voucher_head_id"`
	AccountID     int64     `json:"account_id"`
	Type          TxnType   `json:"type"`
	Amount        Money     `json:"amount"`
	Date          Date      `json:"date"`
	Description   string    `json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (t Transaction) Validate() error {
	if t.VoucherHeadID <= 0 {
		return NewValidationError("voucher_head_id", "required")
	}
	if t.AccountID <= 0 {
		return NewValidationError("account_id", "required")
	}
	if !t.Type.IsValid() {
		return NewValidationError("type", "must be debit or credit")
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	return t.Date.Validate()
}

// FeeType is a named kind of fee (tuition, transport, ...).
type FeeType struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (f FeeType) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return NewValidationError("name", "required")
	}
	if strings.TrimSpace(f.Code) == "" {
		return NewValidationError("code", "required")
	}
	return nil
}

// FeeGroup is a fee definition for a class: fee type, amount and due date.
// Allocations are created from fee groups.
type FeeGroup struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	ClassID   int64     `json:"class_id"`
	FeeTypeID int64     `json:"fee_type_id"`
	Amount    Money     `json:"amount"`
	DueDate   Date      `json:"due_date"`
	CreatedAt time.Time `json:"created_at"`
}

func (g FeeGroup) Validate() error {
	if strings.TrimSpace(g.Name) == "" {
		return NewValidationError("name", "required")
	}
	if g.ClassID <= 0 {
		return NewValidationError("class_id", "required")
	}
	if g.FeeTypeID <= 0 {
		return NewValidationError("fee_type_id", "required")
	}
	if err := g.Amount.Validate(); err != nil {
		return err
	}
	return g.DueDate.Validate()
}

// FeeAllocation is one student's obligation to pay a fee group by a due
// date. Paid and Status are derived by the ledger engine and read-only
// everywhere else. Allocations are never deleted.
type FeeAllocation struct {
	ID         int64            `json:"id"`
	StudentID  int64            `json:"student_id"`
	FeeGroupID int64            `json:"fee_group_id"`
	Amount     Money            `json:"amount"`
	Paid       Money            `json:"paid"`
	Status     AllocationStatus `json:"status"`
	DueDate    Date             `json:"due_date"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Remaining is the unpaid portion of the obligation.
func (a FeeAllocation) Remaining() Money {
	return a.Amount.Sub(a.Paid)
}

// Overdue reports whether the allocation is unpaid past its due date.
func (a FeeAllocation) Overdue(asOf Date) bool {
	return a.Status != StatusPaid && a.DueDate.Before(asOf)
}

// Payment is one payment against a fee allocation. Append-only; the sum of
// payments for an allocation never exceeds the allocation amount.
type Payment struct {
	ID           int64     `json:"id"`
	Receipt      string    `json:"receipt"`
	AllocationID int64     `json:"allocation_id"`
	StudentID    int64     `json:"student_id"`
	Amount       Money     `json:"amount"`
	Method       string    `json:"method"`
	Date         Date      `json:"date"`
	Remarks      string    `json:"remarks,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (p Payment) Validate() error {
	if p.AllocationID <= 0 {
		return NewValidationError("allocation_id", "required")
	}
	if p.StudentID <= 0 {
		return NewValidationError("student_id", "required")
	}
	if err := p.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(p.Method) == "" {
		return NewValidationError("method", "required")
	}
	return p.Date.Validate()
}

// Class is a minimal class reference used for grouping fee reports.
type Class struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Student is a minimal student reference; full student records live in an
// external system.
type Student struct {
	ID        int64     `json:"id"`
	FullName  string    `json:"full_name"`
	ClassID   int64     `json:"class_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (s Student) Validate() error {
	if strings.TrimSpace(s.FullName) == "" {
		return NewValidationError("full_name", "required")
	}
	if s.ClassID <= 0 {
		return NewValidationError("class_id", "required")
	}
	return nil
}

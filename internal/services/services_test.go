package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"feeledger/internal/bulk"
	"feeledger/internal/core"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/reports"
	"feeledger/internal/storage"
)

type fakePublisher struct {
	payments  []int64
	reminders []int64
	fail      bool
}

func (f *fakePublisher) PublishPaymentPosted(ctx context.Context, paymentID, allocationID, studentID int64) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.payments = append(f.payments, paymentID)
	return nil
}

func (f *fakePublisher) PublishFeeReminder(ctx context.Context, allocationID, studentID int64, daysOverdue int) error {
	if f.fail {
		return errors.New("broker down")
	}
	f.reminders = append(f.reminders, allocationID)
	return nil
}

type harness struct {
	repo      *storage.Repository
	payments  *PaymentService
	reminders *ReminderService
	publisher *fakePublisher
}

func newHarness(t *testing.T) harness {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "services.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.DefaultConfig())
	engine := ledger.NewEngine(repo, logger, 0)
	collector := bulk.NewCollector(engine, logger, 0)
	publisher := &fakePublisher{}
	return harness{
		repo:      repo,
		payments:  NewPaymentService(engine, collector, publisher, logger),
		reminders: NewReminderService(reports.NewService(repo, logger), publisher, logger),
		publisher: publisher,
	}
}

func seedAllocation(t *testing.T, repo *storage.Repository, amount string, due core.Date) (core.FeeAllocation, core.Student) {
	t.Helper()
	ctx := context.Background()

	class, err := repo.CreateClass(ctx, core.Class{Name: "5A"})
	if err != nil {
		t.Fatalf("CreateClass() error = %v", err)
	}
	student, err := repo.CreateStudent(ctx, core.Student{FullName: "Amina Yusuf", ClassID: class.ID})
	if err != nil {
		t.Fatalf("CreateStudent() error = %v", err)
	}
	feeType, err := repo.CreateFeeType(ctx, core.FeeType{Name: "Tuition", Code: "TUI"})
	if err != nil {
		t.Fatalf("CreateFeeType() error = %v", err)
	}
	owed, err := core.ParseMoney(amount)
	if err != nil {
		t.Fatalf("ParseMoney(%q) error = %v", amount, err)
	}
	group, err := repo.CreateFeeGroup(ctx, core.FeeGroup{
		Name: "Term 1", ClassID: class.ID, FeeTypeID: feeType.ID, Amount: owed, DueDate: due,
	})
	if err != nil {
		t.Fatalf("CreateFeeGroup() error = %v", err)
	}
	alloc, err := repo.CreateAllocation(ctx, core.FeeAllocation{
		StudentID: student.ID, FeeGroupID: group.ID, Amount: owed, DueDate: due,
	})
	if err != nil {
		t.Fatalf("CreateAllocation() error = %v", err)
	}
	return alloc, student
}

func TestPostAnnouncesPayment(t *testing.T) {
	h := newHarness(t)
	alloc, student := seedAllocation(t, h.repo, "100.00", core.NewDate(2026, 3, 1))

	amount, _ := core.ParseMoney("60.00")
	payment, err := h.payments.Post(context.Background(), ledger.PostPaymentInput{
		AllocationID: alloc.ID, StudentID: student.ID,
		Amount: amount, Method: "cash", Date: core.NewDate(2026, 2, 1),
	})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if len(h.publisher.payments) != 1 || h.publisher.payments[0] != payment.ID {
		t.Errorf("published payments = %v, want [%d]", h.publisher.payments, payment.ID)
	}
}

func TestPostSurvivesPublishFailure(t *testing.T) {
	h := newHarness(t)
	alloc, student := seedAllocation(t, h.repo, "100.00", core.NewDate(2026, 3, 1))
	h.publisher.fail = true

	amount, _ := core.ParseMoney("60.00")
	if _, err := h.payments.Post(context.Background(), ledger.PostPaymentInput{
		AllocationID: alloc.ID, StudentID: student.ID,
		Amount: amount, Method: "cash", Date: core.NewDate(2026, 2, 1),
	}); err != nil {
		t.Fatalf("Post() error = %v, want nil despite publish failure", err)
	}

	got, err := h.repo.GetAllocation(context.Background(), alloc.ID)
	if err != nil {
		t.Fatalf("GetAllocation() error = %v", err)
	}
	if got.Status != core.StatusPartial {
		t.Errorf("status = %q, want partial", got.Status)
	}
}

func TestPostRejectionNotAnnounced(t *testing.T) {
	h := newHarness(t)
	alloc, student := seedAllocation(t, h.repo, "100.00", core.NewDate(2026, 3, 1))

	amount, _ := core.ParseMoney("150.00")
	_, err := h.payments.Post(context.Background(), ledger.PostPaymentInput{
		AllocationID: alloc.ID, StudentID: student.ID,
		Amount: amount, Method: "cash", Date: core.NewDate(2026, 2, 1),
	})
	var ope *core.OverpaymentError
	if !errors.As(err, &ope) {
		t.Fatalf("Post() error = %v, want OverpaymentError", err)
	}
	if len(h.publisher.payments) != 0 {
		t.Errorf("published payments = %v, want none", h.publisher.payments)
	}
}

func TestCollectBatchAnnouncesSuccessesOnly(t *testing.T) {
	h := newHarness(t)
	alloc, student := seedAllocation(t, h.repo, "100.00", core.NewDate(2026, 3, 1))

	amount, _ := core.ParseMoney("100.00")
	entries := []ledger.PostPaymentInput{
		{AllocationID: alloc.ID, StudentID: student.ID, Amount: amount, Method: "cash", Date: core.NewDate(2026, 2, 1)},
		{AllocationID: 9999, StudentID: student.ID, Amount: amount, Method: "cash", Date: core.NewDate(2026, 2, 1)},
	}
	summary, err := h.payments.CollectBatch(context.Background(), entries)
	if err != nil {
		t.Fatalf("CollectBatch() error = %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %d/%d, want 1/1", summary.Succeeded, summary.Failed)
	}
	if len(h.publisher.payments) != 1 {
		t.Errorf("published payments = %v, want one", h.publisher.payments)
	}
}

func TestReminderScan(t *testing.T) {
	h := newHarness(t)
	// Overdue as of the scan date.
	alloc, _ := seedAllocation(t, h.repo, "100.00", core.NewDate(2026, 2, 1))

	sent, err := h.reminders.Scan(context.Background(), core.NewDate(2026, 2, 10))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if len(h.publisher.reminders) != 1 || h.publisher.reminders[0] != alloc.ID {
		t.Errorf("reminders = %v, want [%d]", h.publisher.reminders, alloc.ID)
	}
}

func TestReminderScanWithoutPublisher(t *testing.T) {
	h := newHarness(t)
	seedAllocation(t, h.repo, "100.00", core.NewDate(2026, 2, 1))

	logger := log.New(log.DefaultConfig())
	silent := NewReminderService(reports.NewService(h.repo, logger), nil, logger)

	sent, err := silent.Scan(context.Background(), core.NewDate(2026, 2, 10))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if sent != 0 {
		t.Errorf("sent = %d, want 0 with messaging disabled", sent)
	}
}

func TestReminderScanSkipsNotYetDue(t *testing.T) {
	h := newHarness(t)
	seedAllocation(t, h.repo, "100.00", core.NewDate(2026, 6, 1))

	sent, err := h.reminders.Scan(context.Background(), core.NewDate(2026, 2, 10))
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if sent != 0 || len(h.publisher.reminders) != 0 {
		t.Errorf("sent = %d, reminders = %v, want none", sent, h.publisher.reminders)
	}
}

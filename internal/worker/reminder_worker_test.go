package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"feeledger/internal/amqp"
	"feeledger/internal/core"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/storage"
)

type captureNotifier struct {
	reminders []Reminder
	fail      bool
}

func (n *captureNotifier) Notify(ctx context.Context, r Reminder) error {
	if n.fail {
		return errors.New("delivery failed")
	}
	n.reminders = append(n.reminders, r)
	return nil
}

func newTestWorker(t *testing.T) (*ReminderWorker, *storage.Repository, *captureNotifier) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "worker.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	notifier := &captureNotifier{}
	return NewReminderWorker(repo, notifier, log.New(log.DefaultConfig())), repo, notifier
}

func seedAllocation(t *testing.T, repo *storage.Repository, amount string) (core.FeeAllocation, core.Student) {
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
	due := core.NewDate(2026, 2, 1)
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

func TestHandleReminderNotifies(t *testing.T) {
	w, repo, notifier := newTestWorker(t)
	alloc, student := seedAllocation(t, repo, "100.00")

	msg := amqp.NewFeeReminderMessage(alloc.ID, student.ID, 9)
	if err := w.HandleReminderMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleReminderMessage() error = %v", err)
	}
	if len(notifier.reminders) != 1 {
		t.Fatalf("reminders = %d, want 1", len(notifier.reminders))
	}
	got := notifier.reminders[0]
	if got.Student.ID != student.ID {
		t.Errorf("student = %d, want %d", got.Student.ID, student.ID)
	}
	if got.Remaining != alloc.Amount {
		t.Errorf("remaining = %s, want %s", got.Remaining, alloc.Amount)
	}
	if got.DaysOverdue != 9 {
		t.Errorf("days overdue = %d, want 9", got.DaysOverdue)
	}
}

func TestHandleReminderSkipsSettledAllocation(t *testing.T) {
	w, repo, notifier := newTestWorker(t)
	alloc, student := seedAllocation(t, repo, "100.00")

	// Pay in full between enqueue and processing.
	engine := ledger.NewEngine(repo, log.New(log.DefaultConfig()), 0)
	amount, _ := core.ParseMoney("100.00")
	if _, err := engine.PostPayment(context.Background(), ledger.PostPaymentInput{
		AllocationID: alloc.ID, StudentID: student.ID,
		Amount: amount, Method: "cash", Date: core.NewDate(2026, 2, 5),
	}); err != nil {
		t.Fatalf("PostPayment() error = %v", err)
	}

	msg := amqp.NewFeeReminderMessage(alloc.ID, student.ID, 4)
	if err := w.HandleReminderMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleReminderMessage() error = %v", err)
	}
	if len(notifier.reminders) != 0 {
		t.Errorf("reminders = %d, want 0 for settled allocation", len(notifier.reminders))
	}
}

func TestHandleReminderUnknownAllocationDropped(t *testing.T) {
	w, _, notifier := newTestWorker(t)

	msg := amqp.NewFeeReminderMessage(9999, 1, 3)
	if err := w.HandleReminderMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleReminderMessage() error = %v, want nil drop", err)
	}
	if len(notifier.reminders) != 0 {
		t.Errorf("reminders = %d, want 0", len(notifier.reminders))
	}
}

func TestHandleReminderNotifierFailurePropagates(t *testing.T) {
	w, repo, notifier := newTestWorker(t)
	alloc, student := seedAllocation(t, repo, "100.00")
	notifier.fail = true

	msg := amqp.NewFeeReminderMessage(alloc.ID, student.ID, 2)
	if err := w.HandleReminderMessage(context.Background(), msg); err == nil {
		t.Fatal("HandleReminderMessage() error = nil, want delivery error for requeue")
	}
}

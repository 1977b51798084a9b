package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"feeledger/internal/bulk"
	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/reports"
	"feeledger/internal/services"
	"feeledger/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	logger := log.New(log.DefaultConfig())
	engine := ledger.NewEngine(repo, logger, 0)
	collector := bulk.NewCollector(engine, logger, 0)
	payments := services.NewPaymentService(engine, collector, nil, logger)
	reportSvc := reports.NewService(repo, logger)
	reminders := services.NewReminderService(reportSvc, nil, logger)

	s := NewServer(":0", repo, engine, payments, reportSvc, reminders, logger)
	t.Cleanup(func() { s.limiter.Stop() })
	return s
}

// do sends a request through the full middleware chain and decodes the JSON
// response into out when it is non-nil.
func do(t *testing.T, s *Server, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func created(t *testing.T, s *Server, path string, body any) map[string]any {
	t.Helper()
	var out map[string]any
	rec := do(t, s, http.MethodPost, path, body, &out)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST %s = %d, body %s", path, rec.Code, rec.Body.String())
	}
	return out
}

func idOf(t *testing.T, m map[string]any) int64 {
	t.Helper()
	id, ok := m["id"].(float64)
	if !ok {
		t.Fatalf("no id in %v", m)
	}
	return int64(id)
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind      string `json:"kind"`
			Remaining string `json:"remaining"`
			Balance   string `json:"balance"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error.Kind
}

// seedFeeWorld creates class, student, fee type, fee group and allocation
// over the API and returns the allocation and student ids.
func seedFeeWorld(t *testing.T, s *Server, amount string) (allocationID, studentID int64) {
	t.Helper()
	class := created(t, s, "/api/classes", map[string]any{"name": "5A"})
	student := created(t, s, "/api/students", map[string]any{
		"full_name": "Amina Yusuf", "class_id": idOf(t, class),
	})
	feeType := created(t, s, "/api/fee-types", map[string]any{"name": "Tuition", "code": "TUI"})
	group := created(t, s, "/api/fee-groups", map[string]any{
		"name": "Term 1", "class_id": idOf(t, class), "fee_type_id": idOf(t, feeType),
		"amount": amount, "due_date": "2026-03-01",
	})
	alloc := created(t, s, "/api/allocations", map[string]any{
		"student_id": idOf(t, student), "fee_group_id": idOf(t, group),
	})
	return idOf(t, alloc), idOf(t, student)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)
	if rec := do(t, s, http.MethodGet, "/healthz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want 200", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/readyz", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", rec.Code)
	}
}

func TestCreateAccountValidation(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/accounts", map[string]any{
		"name": "Main Cash", "category": "mystery", "kind": "cash",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid category = %d, want 400", rec.Code)
	}
	if kind := errorKind(t, rec); kind != "validation" {
		t.Errorf("error kind = %q, want validation", kind)
	}

	created(t, s, "/api/accounts", map[string]any{
		"name": "Main Cash", "category": "asset", "kind": "cash",
	})
}

func TestGetAccountNotFound(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/api/accounts/42", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("GET missing account = %d, want 404", rec.Code)
	}
	if kind := errorKind(t, rec); kind != "not_found" {
		t.Errorf("error kind = %q, want not_found", kind)
	}
}

func TestPaymentLifecycleOverAPI(t *testing.T) {
	s := newTestServer(t)
	allocID, studentID := seedFeeWorld(t, s, "500000.00")

	var payment map[string]any
	rec := do(t, s, http.MethodPost, "/api/payments", map[string]any{
		"allocation_id": allocID, "student_id": studentID,
		"amount": "300000.00", "method": "bank", "date": "2026-02-10",
	}, &payment)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /api/payments = %d, body %s", rec.Code, rec.Body.String())
	}
	if payment["receipt"] == "" {
		t.Error("payment has no receipt")
	}

	// Overpayment: 300,000 against a 200,000 remainder is refused whole.
	rec = do(t, s, http.MethodPost, "/api/payments", map[string]any{
		"allocation_id": allocID, "student_id": studentID,
		"amount": "300000.00", "method": "bank", "date": "2026-02-11",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("overpayment = %d, want 409", rec.Code)
	}
	var body struct {
		Error struct {
			Kind      string `json:"kind"`
			Remaining string `json:"remaining"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Error.Kind != "overpayment" || body.Error.Remaining != "200000.00" {
		t.Errorf("error = %+v, want overpayment with remaining 200000.00", body.Error)
	}

	var alloc map[string]any
	if rec := do(t, s, http.MethodGet, fmt.Sprintf("/api/allocations/%d", allocID), nil, &alloc); rec.Code != http.StatusOK {
		t.Fatalf("GET allocation = %d", rec.Code)
	}
	if alloc["status"] != "partial" {
		t.Errorf("status = %v, want partial", alloc["status"])
	}
	if alloc["paid"] != "300000.00" {
		t.Errorf("paid = %v, want 300000.00", alloc["paid"])
	}
}

func TestPostPaymentMalformedAmount(t *testing.T) {
	s := newTestServer(t)
	allocID, studentID := seedFeeWorld(t, s, "100.00")

	for _, amount := range []string{"abc", "-5.00", "0"} {
		rec := do(t, s, http.MethodPost, "/api/payments", map[string]any{
			"allocation_id": allocID, "student_id": studentID,
			"amount": amount, "method": "cash", "date": "2026-02-10",
		}, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("amount %q = %d, want 400", amount, rec.Code)
		}
	}
}

func TestPostTransactionOverAPI(t *testing.T) {
	s := newTestServer(t)
	account := created(t, s, "/api/accounts", map[string]any{
		"name": "School Bank", "category": "asset", "kind": "bank",
	})
	head := created(t, s, "/api/voucher-heads", map[string]any{"name": "Fees"})
	accountID, headID := idOf(t, account), idOf(t, head)

	rec := do(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"account_id": accountID, "voucher_head_id": headID,
		"type": "credit", "amount": "100000.00", "date": "2026-02-01",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("credit = %d, body %s", rec.Code, rec.Body.String())
	}

	// A debit a cent over the balance is a conflict.
	rec = do(t, s, http.MethodPost, "/api/transactions", map[string]any{
		"account_id": accountID, "voucher_head_id": headID,
		"type": "debit", "amount": "100000.01", "date": "2026-02-02",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("overdraft = %d, want 409", rec.Code)
	}
	if kind := errorKind(t, rec); kind != "insufficient_balance" {
		t.Errorf("error kind = %q, want insufficient_balance", kind)
	}

	var account2 map[string]any
	do(t, s, http.MethodGet, fmt.Sprintf("/api/accounts/%d", accountID), nil, &account2)
	if account2["balance"] != "100000.00" {
		t.Errorf("balance = %v, want 100000.00", account2["balance"])
	}

	var txns struct {
		Transactions []map[string]any `json:"transactions"`
	}
	do(t, s, http.MethodGet, fmt.Sprintf("/api/accounts/%d/transactions", accountID), nil, &txns)
	if len(txns.Transactions) != 1 {
		t.Errorf("transactions = %d, want 1 (rejected debit not recorded)", len(txns.Transactions))
	}
}

func TestBulkCollectOverAPI(t *testing.T) {
	s := newTestServer(t)

	class := created(t, s, "/api/classes", map[string]any{"name": "5A"})
	feeType := created(t, s, "/api/fee-types", map[string]any{"name": "Tuition", "code": "TUI"})
	group := created(t, s, "/api/fee-groups", map[string]any{
		"name": "Term 1", "class_id": idOf(t, class), "fee_type_id": idOf(t, feeType),
		"amount": "100.00", "due_date": "2026-03-01",
	})

	entries := make([]map[string]any, 0, 5)
	for i := 0; i < 5; i++ {
		student := created(t, s, "/api/students", map[string]any{
			"full_name": fmt.Sprintf("Student %d", i), "class_id": idOf(t, class),
		})
		alloc := created(t, s, "/api/allocations", map[string]any{
			"student_id": idOf(t, student), "fee_group_id": idOf(t, group),
		})
		entries = append(entries, map[string]any{
			"allocation_id": idOf(t, alloc), "student_id": idOf(t, student),
			"amount": "100.00", "method": "cash", "date": "2026-02-01",
		})
	}
	// Break one entry.
	entries[3]["allocation_id"] = int64(9999)

	var summary struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Results   []struct {
			Index int    `json:"index"`
			Error string `json:"error"`
		} `json:"results"`
	}
	rec := do(t, s, http.MethodPost, "/api/payments/bulk", map[string]any{"entries": entries}, &summary)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk = %d, body %s", rec.Code, rec.Body.String())
	}
	if summary.Succeeded != 4 || summary.Failed != 1 {
		t.Fatalf("summary = %d/%d, want 4/1", summary.Succeeded, summary.Failed)
	}
	if summary.Results[3].Error == "" {
		t.Error("entry 3 should carry an error")
	}
}

func TestReportsOverAPI(t *testing.T) {
	restore := timeNow
	timeNow = func() time.Time { return time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = restore })

	s := newTestServer(t)
	allocID, studentID := seedFeeWorld(t, s, "1000.00")
	rec := do(t, s, http.MethodPost, "/api/payments", map[string]any{
		"allocation_id": allocID, "student_id": studentID,
		"amount": "400.00", "method": "cash", "date": "2026-02-20",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("payment = %d", rec.Code)
	}

	var dashboard struct {
		TotalCollected string `json:"total_collected"`
		TotalDue       string `json:"total_due"`
		OverdueCount   int    `json:"overdue_count"`
	}
	if rec := do(t, s, http.MethodGet, "/api/reports/dashboard", nil, &dashboard); rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d", rec.Code)
	}
	if dashboard.TotalCollected != "400.00" || dashboard.TotalDue != "600.00" {
		t.Errorf("dashboard = %+v, want 400.00 collected / 600.00 due", dashboard)
	}
	if dashboard.OverdueCount != 1 {
		t.Errorf("overdue count = %d, want 1", dashboard.OverdueCount)
	}

	var classWise struct {
		Classes []struct {
			CollectionRate string `json:"collection_rate"`
		} `json:"classes"`
	}
	if rec := do(t, s, http.MethodGet, "/api/reports/class-wise", nil, &classWise); rec.Code != http.StatusOK {
		t.Fatalf("class-wise = %d", rec.Code)
	}
	if len(classWise.Classes) != 1 || classWise.Classes[0].CollectionRate != "0.4" {
		t.Errorf("class-wise = %+v, want one class at rate 0.4", classWise.Classes)
	}

	var due struct {
		Due []struct {
			Remaining   string `json:"remaining"`
			DaysOverdue int    `json:"days_overdue"`
		} `json:"due"`
	}
	if rec := do(t, s, http.MethodGet, "/api/reports/due?as_of=2026-03-11", nil, &due); rec.Code != http.StatusOK {
		t.Fatalf("due = %d", rec.Code)
	}
	if len(due.Due) != 1 || due.Due[0].Remaining != "600.00" || due.Due[0].DaysOverdue != 10 {
		t.Errorf("due = %+v, want one entry, 600.00 remaining, 10 days", due.Due)
	}

	var history struct {
		Payments []struct {
			FeeGroupName string `json:"fee_group_name"`
		} `json:"payments"`
	}
	path := fmt.Sprintf("/api/students/%d/payments", studentID)
	if rec := do(t, s, http.MethodGet, path, nil, &history); rec.Code != http.StatusOK {
		t.Fatalf("history = %d", rec.Code)
	}
	if len(history.Payments) != 1 || history.Payments[0].FeeGroupName != "Term 1" {
		t.Errorf("history = %+v, want one Term 1 payment", history.Payments)
	}
}

func TestMalformedJSONBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/classes", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body = %d, want 400", rec.Code)
	}
}

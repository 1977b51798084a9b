package http

import (
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/ledger"
)

type postPaymentRequest struct {
	AllocationID int64      `json:"allocation_id"`
	StudentID    int64      `json:"student_id"`
	Amount       core.Money `json:"amount"`
	Method       string     `json:"method"`
	Date         core.Date  `json:"date"`
	Remarks      string     `json:"remarks"`
}

func (p postPaymentRequest) toInput() ledger.PostPaymentInput {
	return ledger.PostPaymentInput{
		AllocationID: p.AllocationID,
		StudentID:    p.StudentID,
		Amount:       p.Amount,
		Method:       p.Method,
		Date:         p.Date,
		Remarks:      p.Remarks,
	}
}

func (s *Server) handlePostPayment(w http.ResponseWriter, r *http.Request) {
	var req postPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	payment, err := s.payments.Post(r.Context(), req.toInput())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, payment)
}

const maxBulkEntries = 500

type bulkCollectRequest struct {
	Entries []postPaymentRequest `json:"entries"`
}

// handleBulkCollect posts a batch of payments. The response is always 200
// with a per-entry breakdown; individual failures are reported inline, not
// as an HTTP error.
func (s *Server) handleBulkCollect(w http.ResponseWriter, r *http.Request) {
	var req bulkCollectRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(req.Entries) == 0 {
		s.writeError(w, r, core.NewValidationError("entries", "must not be empty"))
		return
	}
	if len(req.Entries) > maxBulkEntries {
		s.writeError(w, r, core.NewValidationError("entries", "too many entries"))
		return
	}

	entries := make([]ledger.PostPaymentInput, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, e.toInput())
	}
	summary, err := s.payments.CollectBatch(r.Context(), entries)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleRunReminders triggers a reminder scan outside the scheduler, for
// operators. as_of defaults to today.
func (s *Server) handleRunReminders(w http.ResponseWriter, r *http.Request) {
	asOf := core.DateOf(timeNow().UTC())
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := core.ParseDate(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		asOf = parsed
	}

	sent, err := s.reminders.Scan(r.Context(), asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"as_of": asOf, "reminders_sent": sent})
}

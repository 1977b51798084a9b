package http

import (
	"net/http"
	"time"

	"feeledger/internal/core"
)

// timeNow is swapped in tests to pin report dates.
var timeNow = time.Now

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := s.reports.DashboardSummary(r.Context(), timeNow())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (s *Server) handleClassWise(w http.ResponseWriter, r *http.Request) {
	rows, err := s.reports.ClassWiseReport(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"classes": rows})
}

func (s *Server) handleDueReport(w http.ResponseWriter, r *http.Request) {
	asOf := core.DateOf(timeNow().UTC())
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := core.ParseDate(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		asOf = parsed
	}

	entries, err := s.reports.DueReport(r.Context(), asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"as_of": asOf, "due": entries})
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.reports.PaymentHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": entries})
}

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"feeledger/internal/core"
	"feeledger/internal/log"
	"feeledger/internal/middleware/trace"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	// Remaining and Balance carry the figures behind conflict rejections.
	Remaining string `json:"remaining,omitempty"`
	Balance   string `json:"balance,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto statuses: invalid input is 400, missing
// rows are 404, rejected postings and busy entities are 409, the rest is 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve  *core.ValidationError
		ope *core.OverpaymentError
		ibe *core.InsufficientBalanceError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{errorDetail{
			Kind: "validation", Message: ve.Reason, Field: ve.Field,
		}})
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, errorBody{errorDetail{
			Kind: "validation", Message: err.Error(),
		}})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{errorDetail{
			Kind: "not_found", Message: "resource not found",
		}})
	case errors.As(err, &ope):
		writeJSON(w, http.StatusConflict, errorBody{errorDetail{
			Kind: "overpayment", Message: ope.Error(), Remaining: ope.Remaining.String(),
		}})
	case errors.As(err, &ibe):
		writeJSON(w, http.StatusConflict, errorBody{errorDetail{
			Kind: "insufficient_balance", Message: ibe.Error(), Balance: ibe.Balance.String(),
		}})
	case errors.Is(err, core.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusConflict, errorBody{errorDetail{
			Kind: "busy", Message: "entity busy, retry later",
		}})
	default:
		s.logger.ErrorContext(r.Context(), "request failed",
			log.FieldError, err,
			log.FieldRequestID, trace.GetRequestID(r.Context()),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		writeJSON(w, http.StatusInternalServerError, errorBody{errorDetail{
			Kind: "internal", Message: "internal error",
		}})
	}
}

// decodeJSON reads a bounded JSON body into dst, turning decode problems
// into validation errors.
func decodeJSON(r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err != nil {
		return core.NewValidationError("body", "unreadable or too large")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		if core.IsValidation(err) {
			return err
		}
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return core.NewValidationError(ute.Field, fmt.Sprintf("cannot be %s", ute.Value))
		}
		return core.NewValidationError("body", "malformed JSON")
	}
	return nil
}

// pathID extracts a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

package http

import (
	"net/http"

	"feeledger/internal/core"
	"feeledger/internal/ledger"
)

type createAccountRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Provider string `json:"provider"`
	Number   string `json:"number"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	account := core.Account{
		Name:     req.Name,
		Category: core.AccountCategory(req.Category),
		Kind:     core.AccountKind(req.Kind),
		Provider: req.Provider,
		Number:   req.Number,
	}
	if err := account.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.repo.CreateAccount(r.Context(), account)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.repo.ListAccounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	account, err := s.repo.GetAccount(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// Listing against a missing account is a 404, not an empty list.
	if _, err := s.repo.GetAccount(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	txns, err := s.repo.ListTransactions(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": txns})
}

type createVoucherHeadRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateVoucherHead(w http.ResponseWriter, r *http.Request) {
	var req createVoucherHeadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	head := core.VoucherHead{Name: req.Name, Description: req.Description}
	if err := head.Validate(); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.repo.CreateVoucherHead(r.Context(), head)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListVoucherHeads(w http.ResponseWriter, r *http.Request) {
	heads, err := s.repo.ListVoucherHeads(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"voucher_heads": heads})
}

type postTransactionRequest struct {
	AccountID     int64      `json:"account_id"`
	VoucherHeadID int64      `json:"voucher_head_id"`
	Type          string     `json:"type"`
	Amount        core.Money `json:"amount"`
	Date          core.Date  `json:"date"`
	Description   string     `json:"description"`
}

func (s *Server) handlePostTransaction(w http.ResponseWriter, r *http.Request) {
	var req postTransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	txn, err := s.engine.PostTransaction(r.Context(), ledger.PostTransactionInput{
		AccountID:     req.AccountID,
		VoucherHeadID: req.VoucherHeadID,
		Type:          core.TxnType(req.Type),
		Amount:        req.Amount,
		Date:          req.Date,
		Description:   req.Description,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}

// Package http exposes the fee ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"

	"feeledger/internal/ledger"
	"feeledger/internal/log"
	"feeledger/internal/middleware/ratelimit"
	"feeledger/internal/middleware/security"
	"feeledger/internal/middleware/trace"
	"feeledger/internal/reports"
	"feeledger/internal/services"
	"feeledger/internal/storage"
)

type Server struct {
	http.Server
	repo      *storage.Repository
	engine    *ledger.Engine
	payments  *services.PaymentService
	reports   *reports.Service
	reminders *services.ReminderService
	logger    *log.Logger

	limiter      *ratelimit.Limiter
	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, repo *storage.Repository, engine *ledger.Engine, payments *services.PaymentService,
	reportSvc *reports.Service, reminders *services.ReminderService, logger *log.Logger) *Server {

	s := &Server{
		repo:      repo,
		engine:    engine,
		payments:  payments,
		reports:   reportSvc,
		reminders: reminders,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(clientIP, logger)
	s.Server = http.Server{
		Addr:    addr,
		Handler: headers.Middleware(tracer.Middleware(mux)),
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /api/accounts", s.limited(s.handleCreateAccount))
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("GET /api/accounts/{id}/transactions", s.handleListTransactions)
	mux.Handle("POST /api/voucher-heads", s.limited(s.handleCreateVoucherHead))
	mux.HandleFunc("GET /api/voucher-heads", s.handleListVoucherHeads)
	mux.Handle("POST /api/transactions", s.limited(s.handlePostTransaction))

	mux.Handle("POST /api/classes", s.limited(s.handleCreateClass))
	mux.HandleFunc("GET /api/classes", s.handleListClasses)
	mux.Handle("POST /api/students", s.limited(s.handleCreateStudent))
	mux.HandleFunc("GET /api/students", s.handleListStudents)
	mux.HandleFunc("GET /api/students/{id}/payments", s.handlePaymentHistory)

	mux.Handle("POST /api/fee-types", s.limited(s.handleCreateFeeType))
	mux.HandleFunc("GET /api/fee-types", s.handleListFeeTypes)
	mux.Handle("POST /api/fee-groups", s.limited(s.handleCreateFeeGroup))
	mux.HandleFunc("GET /api/fee-groups", s.handleListFeeGroups)
	mux.Handle("POST /api/allocations", s.limited(s.handleCreateAllocation))
	mux.HandleFunc("GET /api/allocations", s.handleListAllocations)
	mux.HandleFunc("GET /api/allocations/{id}", s.handleGetAllocation)

	mux.Handle("POST /api/payments", s.limited(s.handlePostPayment))
	mux.Handle("POST /api/payments/bulk", s.limited(s.handleBulkCollect))

	mux.HandleFunc("GET /api/reports/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /api/reports/class-wise", s.handleClassWise)
	mux.HandleFunc("GET /api/reports/due", s.handleDueReport)

	mux.Handle("POST /api/reminders/run", s.limited(s.handleRunReminders))
}

// limited throttles write endpoints per client IP.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	return s.limiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "rate limit exceeded",
			log.FieldClientIP, clientIP(r),
			log.FieldPath, r.URL.Path)
		w.Header().Set("Retry-After", "60")
		writeJSON(w, http.StatusTooManyRequests, errorBody{errorDetail{
			Kind: "rate_limited", Message: "too many requests, retry later",
		}})
	})(h)
}

// clientIP resolves the caller's address, honouring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown stops the rate limiter alongside the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.Info("stopping rate limiter", "tracked_clients", s.limiter.ActiveClients())
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

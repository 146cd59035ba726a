// Package api exposes the core services over HTTP. Handlers only decode,
// validate and map errors; all behavior lives in the services.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/reconciler"
	"solana-wallet-tracker/internal/stats"
	"solana-wallet-tracker/internal/wallet"
	"solana-wallet-tracker/internal/watch"
)

const (
	maxBodyBytes = 1 << 20

	// trackTimeout bounds the background subscribe after a submit.
	trackTimeout = 10 * time.Second
)

// SignatureTracker starts waiting for a confirmation of a submitted signature.
type SignatureTracker interface {
	Track(ctx context.Context, signature string) error
}

// SlotReader reports the ledger's current slot.
type SlotReader interface {
	Slot(ctx context.Context) (int64, error)
}

// Deps are the services behind the API. Watcher and Ledger are optional.
type Deps struct {
	Wallets    *wallet.Service
	Reconciler *reconciler.Service
	Watcher    SignatureTracker
	Ledger     SlotReader
	Stats      *stats.Aggregator
	Watch      *watch.Evaluator
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// Server routes HTTP requests to the services.
type Server struct {
	router   *mux.Router
	deps     Deps
	validate *validator.Validate
	logger   *zap.Logger

	tracks sync.WaitGroup
}

// NewServer creates a Server with all routes registered.
func NewServer(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	s := &Server{
		router:   mux.NewRouter(),
		deps:     d,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   d.Logger.Named("api"),
	}
	s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until background signature tracking started by submits is done.
func (s *Server) Wait() {
	s.tracks.Wait()
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.instrument)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.deps.Metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/wallet", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/wallet/{wallet}", s.handleGetUser).Methods(http.MethodGet)
	api.HandleFunc("/wallet/{wallet}", s.handleUpdateProfile).Methods(http.MethodPut)
	api.HandleFunc("/wallet/{wallet}", s.handleRemoveUser).Methods(http.MethodDelete)
	api.HandleFunc("/wallet/{wallet}/balance", s.handleRefreshBalance).Methods(http.MethodPost)

	api.HandleFunc("/transaction/submit", s.handleSubmit).Methods(http.MethodPost)
	api.HandleFunc("/transaction/history/{wallet}", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/transaction/status/{signature}", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/transaction/settle/{signature}", s.handleSettle).Methods(http.MethodPost)

	api.HandleFunc("/trading-stats/{wallet}", s.handleRecordTrade).Methods(http.MethodPost)
	api.HandleFunc("/trading-stats/{wallet}", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/trading-stats/{wallet}/trades", s.handleTrades).Methods(http.MethodGet)

	api.HandleFunc("/watchlist/{wallet}", s.handleAddWatch).Methods(http.MethodPost)
	api.HandleFunc("/watchlist/{wallet}", s.handleWatchlist).Methods(http.MethodGet)
	api.HandleFunc("/watchlist/{wallet}/{pair:.+}", s.handleRemoveWatch).Methods(http.MethodDelete)

	api.HandleFunc("/alerts/{wallet}", s.handleCreateAlert).Methods(http.MethodPost)
	api.HandleFunc("/alerts/{wallet}", s.handleAlerts).Methods(http.MethodGet)
	api.HandleFunc("/alerts/{wallet}/{id}", s.handleUpdateAlert).Methods(http.MethodPatch)
	api.HandleFunc("/alerts/{wallet}/{id}", s.handleDeleteAlert).Methods(http.MethodDelete)
	api.HandleFunc("/alerts/{wallet}/{id}/trigger", s.handleRecordTrigger).Methods(http.MethodPost)

	api.HandleFunc("/evaluate/{wallet}", s.handleEvaluate).Methods(http.MethodPost)
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.deps.Metrics.RecordHTTPRequest(route, r.Method, rec.status, time.Since(start).Seconds())
	})
}

type healthResponse struct {
	Status string `json:"status"`
	Slot   *int64 `json:"slot,omitempty"`
	Error  string `json:"error,omitempty"`
}

// handleHealth reports degraded when the ledger cannot be reached.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
		return
	}
	slot, err := s.deps.Ledger.Slot(r.Context())
	if err != nil {
		s.logger.Warn("health check: ledger unreachable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "degraded", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Slot: &slot})
}

// decode reads a JSON body into dst and validates it. An empty body is
// accepted when optional is set.
func (s *Server) decode(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			return domain.Validationf("invalid request body: %v", err)
		}
	}
	if err := s.validate.Struct(dst); err != nil {
		return domain.Validationf("%v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNetworkUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

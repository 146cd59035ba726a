package api

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/reconciler"
	"solana-wallet-tracker/internal/stats"
	"solana-wallet-tracker/internal/wallet"
	"solana-wallet-tracker/internal/watch"
)

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Validationf("%s must be an integer", name)
	}
	return n, nil
}

// Wallet accounts.

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.deps.Wallets.Register(r.Context(), req.WalletAddress)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Wallets.Get(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	u, err := s.deps.Wallets.UpdateProfile(r.Context(), mux.Vars(r)["wallet"], wallet.ProfileUpdate{
		Email:              req.Email,
		ProfileImage:       req.ProfileImage,
		EmailNotifications: req.EmailNotifications,
		PriceAlerts:        req.PriceAlerts,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleRemoveUser(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Wallets.Remove(r.Context(), mux.Vars(r)["wallet"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefreshBalance(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Wallets.RefreshBalance(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Transactions.

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	tx, err := s.deps.Reconciler.Submit(r.Context(), reconciler.SubmitRequest{
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Signature: req.Signature,
		Token:     req.Token,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if s.deps.Watcher != nil {
		s.track(r.Context(), tx.Signature)
	}
	writeJSON(w, http.StatusCreated, tx)
}

// track subscribes in the background so a slow or reconnecting feed never
// delays the submit response. The sweep settles anything not tracked.
func (s *Server) track(ctx context.Context, signature string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), trackTimeout)
	s.tracks.Add(1)
	go func() {
		defer s.tracks.Done()
		defer cancel()
		if err := s.deps.Watcher.Track(ctx, signature); err != nil {
			s.logger.Warn("track signature",
				zap.String("signature", signature),
				zap.Error(err))
		}
	}()
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", reconciler.DefaultHistoryLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	txs, total, err := s.deps.Reconciler.History(r.Context(), mux.Vars(r)["wallet"], limit, offset)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if limit <= 0 {
		limit = reconciler.DefaultHistoryLimit
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Transactions: txs,
		Total:        total,
		Limit:        min(limit, reconciler.MaxHistoryLimit),
		Offset:       offset,
	})
}

// writeReconcile renders a reconcile result. A ledger outage still carries
// the stored status, with 503.
func (s *Server) writeReconcile(w http.ResponseWriter, r *http.Request, res *reconciler.ReconcileResult, err error) {
	if res == nil || (err != nil && !errors.Is(err, domain.ErrNetworkUnavailable)) {
		s.writeError(w, r, err)
		return
	}
	body := statusResponse{
		Signature: res.Signature,
		DBStatus:  res.DBStatus,
		Network:   res.Network,
		Settled:   res.Settled,
	}
	code := http.StatusOK
	if err != nil {
		body.Error = err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Reconciler.Reconcile(r.Context(), mux.Vars(r)["signature"])
	s.writeReconcile(w, r, res, err)
}

// handleSettle applies an explicit status, or asks the ledger when none is given.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := s.decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	sig := mux.Vars(r)["signature"]

	if req.Status == "" {
		res, err := s.deps.Reconciler.SettleFromLedger(r.Context(), sig)
		s.writeReconcile(w, r, res, err)
		return
	}

	tx, err := s.deps.Reconciler.Settle(r.Context(), sig, req.Status)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// Trading stats.

func (s *Server) handleRecordTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.deps.Stats.RecordTrade(r.Context(), mux.Vars(r)["wallet"], stats.TradeOutcome{
		Success:   *req.Success,
		TradeType: req.TradeType,
		Amount:    req.Amount,
		Pair:      req.Pair,
		Token:     req.Token,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Stats.Stats(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", domain.MaxTradeHistory)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	trades, err := s.deps.Stats.Trades(r.Context(), mux.Vars(r)["wallet"], limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// Watchlist and alerts.

func (s *Server) handleAddWatch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	entry, err := s.deps.Watch.AddWatch(r.Context(), mux.Vars(r)["wallet"], req.Pair, req.TargetPrice, req.Condition)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Watch.Watchlist(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"watchlist": list})
}

func (s *Server) handleRemoveWatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	list, err := s.deps.Watch.RemoveWatch(r.Context(), vars["wallet"], vars["pair"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"watchlist": list})
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req alertRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	alert, err := s.deps.Watch.CreateAlert(r.Context(), mux.Vars(r)["wallet"], watch.AlertRequest{
		Type:      req.Type,
		Pair:      req.Pair,
		Condition: req.Condition,
		Value:     req.Value,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.deps.Watch.Alerts(r.Context(), mux.Vars(r)["wallet"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	var req alertPatchRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	alert, err := s.deps.Watch.UpdateAlert(r.Context(), vars["wallet"], vars["id"], watch.AlertPatch{
		Type:      req.Type,
		Pair:      req.Pair,
		Condition: req.Condition,
		Value:     req.Value,
		Active:    req.Active,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.deps.Watch.DeleteAlert(r.Context(), vars["wallet"], vars["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordTrigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := s.decode(r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	var at time.Time
	if req.At != nil {
		at = req.At.UTC()
	}
	vars := mux.Vars(r)
	alert, err := s.deps.Watch.RecordTrigger(r.Context(), vars["wallet"], vars["id"], at)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := s.decode(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	quotes := domain.PriceQuotes(req.Prices)
	maps.Copy(quotes, req.Quotes)

	seq, err := s.deps.Watch.Evaluate(r.Context(), mux.Vars(r)["wallet"], quotes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	triggers := slices.Collect(seq)
	if triggers == nil {
		triggers = []domain.Trigger{}
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Triggers: triggers})
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/portfolio"
	"github.com/go-chi/chi/v5"
)

// statusClientClosedRequest es el 499 de nginx: el cliente cortó la request.
const statusClientClosedRequest = 499

const (
	defaultHistoryLimit = 50
	defaultSummaryRange = 7 * 24 * time.Hour
	maxBodyBytes        = 1 << 20
)

// GET /api/v1/users/{userID}/portfolio?wallet&status&sort&order&page&page_size
func (s *Server) getPortfolio(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	pageSize, err := intParam(q.Get("page_size"), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	if pageSize > s.opts.MaxPageSize {
		pageSize = s.opts.MaxPageSize
	}
	opts, err := portfolio.ParseViewOptions(q.Get("status"), q.Get("sort"), q.Get("order"), q.Get("page"), pageSize)
	if err != nil {
		writeError(w, err)
		return
	}

	acct := portfolio.Account{UserID: chi.URLParam(r, "userID"), Wallet: q.Get("wallet")}
	snap, view, err := s.svc.View(r.Context(), acct, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := portfolioJSON{
		Positions: make([]positionJSON, 0, len(view.Positions)),
		Summary:   snap.Summary,
		Failures:  make([]failureJSON, 0, len(snap.Failures)),
		Degraded:  snap.Degraded(),
		Total:     view.Total,
		Page:      view.Page,
		HasMore:   view.HasMore,
		LoadedAt:  snap.LoadedAt,
	}
	for _, p := range view.Positions {
		resp.Positions = append(resp.Positions, newPositionJSON(p))
	}
	for _, f := range snap.Failures {
		resp.Failures = append(resp.Failures, failureJSON{Source: f.Source, Error: errString(f.Err)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/users/{userID}/copy-trades?limit&offset
func (s *Server) listCopyTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), defaultHistoryLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(q.Get("offset"), 0)
	if err != nil {
		writeError(w, err)
		return
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}

	page, err := s.svc.CopyTrades(r.Context(), chi.URLParam(r, "userID"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := tradePageJSON{Trades: make([]tradeJSON, 0, len(page.Trades)), Total: page.Total, HasMore: page.HasMore}
	for _, t := range page.Trades {
		resp.Trades = append(resp.Trades, newTradeJSON(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/users/{userID}/summary-history?from&to (RFC3339)
func (s *Server) getSummaryHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	to, err := timeParam(q.Get("to"), time.Now().UTC())
	if err != nil {
		writeError(w, err)
		return
	}
	from, err := timeParam(q.Get("from"), to.Add(-defaultSummaryRange))
	if err != nil {
		writeError(w, err)
		return
	}

	points, err := s.svc.SummaryHistory(r.Context(), chi.URLParam(r, "userID"), from, to)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]summaryPointJSON, 0, len(points))
	for _, p := range points {
		out = append(out, summaryPointJSON{
			TakenAt:       p.TakenAt,
			TradeCount:    p.TradeCount,
			TotalPnL:      p.TotalPnL,
			RealizedPnL:   p.RealizedPnL,
			UnrealizedPnL: p.UnrealizedPnL,
			TotalVolume:   p.TotalVolume,
			ROI:           p.ROI,
			WinRate:       p.WinRate,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// POST /api/v1/users/{userID}/trades
func (s *Server) createTrade(w http.ResponseWriter, r *http.Request) {
	var req createTradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	created, err := s.svc.CreateTrade(r.Context(), req.toDomain(chi.URLParam(r, "userID")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTradeJSON(created))
}

// POST /api/v1/users/{userID}/trades/{tradeID}/close
func (s *Server) closeTrade(w http.ResponseWriter, r *http.Request) {
	var req closeTradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ExitPrice == nil {
		writeError(w, fmt.Errorf("exit_price is required: %w", domain.ErrInvalidInput))
		return
	}
	t, err := s.svc.CloseTrade(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "tradeID"), *req.ExitPrice)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeJSON(t))
}

// POST /api/v1/users/{userID}/trades/{tradeID}/reopen
func (s *Server) reopenTrade(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.ReopenTrade(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "tradeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeJSON(t))
}

// PATCH /api/v1/users/{userID}/trades/{tradeID}
func (s *Server) editTrade(w http.ResponseWriter, r *http.Request) {
	var req editTradeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	t, err := s.svc.EditTrade(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "tradeID"), req.toDomain())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTradeJSON(t))
}

// DELETE /api/v1/users/{userID}/trades/{tradeID}
func (s *Server) deleteTrade(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteTrade(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "tradeID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/v1/users/{userID}/orders
func (s *Server) recordOrder(w http.ResponseWriter, r *http.Request) {
	var req recordOrderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	o := req.toDomain(chi.URLParam(r, "userID"))
	if err := s.svc.RecordOrder(r.Context(), o); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": o.ID})
}

// --- helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, domain.ErrInvalidInput)
	}
	return nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad integer %q: %w", raw, domain.ErrInvalidInput)
	}
	return n, nil
}

func timeParam(raw string, def time.Time) (time.Time, error) {
	if raw == "" {
		return def, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad time %q: %w", raw, domain.ErrInvalidInput)
	}
	return t, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("httpapi: encode response", "err", err)
	}
}

// writeError traduce los errores sentinel del dominio a status HTTP.
// Cualquier otro error es un 500 y su detalle solo va al log.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		slog.Error("httpapi: request failed", "err", err)
		msg = "internal error"
	case statusClientClosedRequest:
		slog.Debug("httpapi: request cancelled by client", "err", err)
	}
	writeJSON(w, status, errorJSON{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrImmutableTrade):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

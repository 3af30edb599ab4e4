// Package httpapi expone el portfolio y las mutaciones de copy trades
// sobre HTTP con chi.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/metrics"
	"github.com/alejandrodnm/polycopy/internal/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Portfolio es lo que el API necesita del servicio de portfolio.
type Portfolio interface {
	View(ctx context.Context, acct portfolio.Account, opts portfolio.ViewOptions) (domain.PortfolioSnapshot, portfolio.View, error)
	CopyTrades(ctx context.Context, userID string, limit, offset int) (domain.TradePage, error)
	CreateTrade(ctx context.Context, t domain.ManualTrade) (domain.ManualTrade, error)
	CloseTrade(ctx context.Context, userID, tradeID string, exitPrice float64) (domain.ManualTrade, error)
	ReopenTrade(ctx context.Context, userID, tradeID string) (domain.ManualTrade, error)
	EditTrade(ctx context.Context, userID, tradeID string, upd domain.TradeUpdate) (domain.ManualTrade, error)
	DeleteTrade(ctx context.Context, userID, tradeID string) error
	RecordOrder(ctx context.Context, o domain.PlatformOrder) error
	SummaryHistory(ctx context.Context, userID string, from, to time.Time) ([]domain.SummaryPoint, error)
}

// Options configura el router.
type Options struct {
	RequestTimeout time.Duration
	MaxPageSize    int
}

// DefaultOptions devuelve timeouts y límites razonables.
func DefaultOptions() Options {
	return Options{
		RequestTimeout: 30 * time.Second,
		MaxPageSize:    100,
	}
}

// Server contiene los handlers y el router.
type Server struct {
	svc    Portfolio
	opts   Options
	router chi.Router
}

// NewServer monta las rutas.
func NewServer(svc Portfolio, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultOptions().RequestTimeout
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = DefaultOptions().MaxPageSize
	}
	s := &Server{svc: svc, opts: opts}
	s.router = s.routes()
	return s
}

// Handler devuelve el http.Handler raíz.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"polycopy"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1/users/{userID}", func(r chi.Router) {
		r.Get("/portfolio", s.getPortfolio)
		r.Get("/copy-trades", s.listCopyTrades)
		r.Get("/summary-history", s.getSummaryHistory)

		r.Post("/trades", s.createTrade)
		r.Patch("/trades/{tradeID}", s.editTrade)
		r.Delete("/trades/{tradeID}", s.deleteTrade)
		r.Post("/trades/{tradeID}/close", s.closeTrade)
		r.Post("/trades/{tradeID}/reopen", s.reopenTrade)

		r.Post("/orders", s.recordOrder)
	})
	return r
}

// requestLogger registra cada request con slog.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

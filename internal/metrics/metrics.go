// Package metrics expone la instrumentación Prometheus de polycopy.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceFailures cuenta los fallos por fuente de datos (history, orders, positions, metadata, quote).
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polycopy_source_failures_total",
		Help: "Data source failures during portfolio loads",
	}, []string{"source"})

	// LoadDuration mide la duración de una carga completa del portfolio.
	LoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polycopy_portfolio_load_seconds",
		Help:    "Portfolio load latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// QuoteFetches cuenta los fetches de precio live por resultado (ok, error).
	QuoteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polycopy_quote_fetches_total",
		Help: "Live quote fetches by result",
	}, []string{"result"})

	// CacheLookups cuenta hits y misses del cache Redis por tipo (quote, meta).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polycopy_cache_lookups_total",
		Help: "Read-through cache lookups",
	}, []string{"kind", "result"})

	// TradeMutations cuenta las mutaciones de copy trades por operación.
	TradeMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polycopy_trade_mutations_total",
		Help: "Manual trade mutations by operation and result",
	}, []string{"op", "result"})

	// HTTPRequestsTotal cuenta requests HTTP por método, ruta y status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polycopy_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration mide la duración de las requests por método y ruta.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polycopy_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
	}, []string{"method", "path"})
)

// Handler devuelve el handler HTTP de Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware registra métricas por request. La ruta se etiqueta con el
// patrón de chi para no disparar la cardinalidad con ids de usuario.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter captura el status code de la respuesta.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

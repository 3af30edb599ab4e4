package portfolio

// overlay.go — fetch concurrente de precios live, un request por mercado.
//
// Los fallos se aíslan por mercado: un mercado que falla conserva su último
// precio conocido y el resto del batch se actualiza igual.

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/metrics"
	"github.com/alejandrodnm/polycopy/internal/ports"
)

// QuoteSourcePrefix es el prefijo del Source de los fallos de precio live.
const QuoteSourcePrefix = "quote:"

// BuildPriceBook agrupa los trades que admiten overlay por market id y pide
// un quote por mercado distinto usando un worker pool.
// Devuelve el PriceBook con los mercados que respondieron y un SourceError
// por cada mercado que falló.
//
// Si workers <= 0 usa runtime.NumCPU() × 2.
func BuildPriceBook(
	ctx context.Context,
	trades []domain.UnifiedTrade,
	quotes ports.QuoteProvider,
	workers int,
) (domain.PriceBook, []domain.SourceError) {
	book := make(domain.PriceBook)
	marketIDs := distinctOverlayMarkets(trades)
	if len(marketIDs) == 0 || quotes == nil {
		return book, nil
	}

	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}
	if workers > len(marketIDs) {
		workers = len(marketIDs)
	}

	type result struct {
		marketID string
		quote    domain.Quote
		err      error
	}

	workCh := make(chan string, len(marketIDs))
	resultCh := make(chan result, len(marketIDs))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range workCh {
				if err := ctx.Err(); err != nil {
					resultCh <- result{marketID: id, err: err}
					continue
				}
				q, err := quotes.FetchQuote(ctx, id)
				resultCh <- result{marketID: id, quote: q, err: err}
			}
		}()
	}

	for _, id := range marketIDs {
		workCh <- id
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	var failures []domain.SourceError
	for r := range resultCh {
		if r.err != nil {
			slog.Warn("live quote failed, keeping last known price",
				"market_id", r.marketID,
				"err", r.err,
			)
			metrics.QuoteFetches.WithLabelValues("error").Inc()
			failures = append(failures, domain.SourceError{
				Source: QuoteSourcePrefix + r.marketID,
				Err:    fmt.Errorf("portfolio.BuildPriceBook: %w", r.err),
			})
			continue
		}
		metrics.QuoteFetches.WithLabelValues("ok").Inc()
		if r.quote.MarketID == "" {
			r.quote.MarketID = r.marketID
		}
		book.Merge(domain.BuildLivePrices(r.quote))
	}

	slog.Debug("price book built",
		"markets", len(marketIDs),
		"failed", len(failures),
		"workers", workers,
	)
	return book, failures
}

// distinctOverlayMarkets devuelve los market ids distintos de los trades que
// admiten overlay, en orden de primera aparición.
func distinctOverlayMarkets(trades []domain.UnifiedTrade) []string {
	seen := make(map[string]bool, len(trades))
	ids := make([]string, 0, len(trades))
	for _, t := range trades {
		if t.MarketID == "" || !domain.Overlayable(t) || seen[t.MarketID] {
			continue
		}
		seen[t.MarketID] = true
		ids = append(ids, t.MarketID)
	}
	return ids
}

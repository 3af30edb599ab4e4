package ports

import (
	"context"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// MarketProvider obtiene metadata de mercados (título, slug, imagen).
type MarketProvider interface {
	// FetchMarketMeta devuelve la metadata de los market ids dados.
	// Internamente agrupa los IDs en batches para minimizar requests.
	// Los ids desconocidos simplemente no aparecen en el map.
	FetchMarketMeta(ctx context.Context, marketIDs []string) (map[string]domain.MarketMeta, error)
}

// QuoteProvider obtiene el precio live y el estado de resolución de un mercado.
type QuoteProvider interface {
	FetchQuote(ctx context.Context, marketID string) (domain.Quote, error)
}

package polymarket

// clob.go — Polymarket CLOB API adapter: precio live y resolución por mercado.

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

const clobMarketsPath = "/markets/"

// FetchQuote devuelve los precios por outcome y el estado de resolución de
// un mercado usando GET /markets/{condition_id}.
func (c *Client) FetchQuote(ctx context.Context, marketID string) (domain.Quote, error) {
	if marketID == "" {
		return domain.Quote{}, fmt.Errorf("clob.FetchQuote: empty market id")
	}

	var resp clobMarket
	u := c.clobBase + clobMarketsPath + url.PathEscape(marketID)
	if err := c.get(ctx, c.clobLimiter, u, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("clob.FetchQuote %s: %w", marketID, err)
	}

	q := mapQuote(resp)
	if q.MarketID == "" {
		q.MarketID = marketID
	}
	return q, nil
}

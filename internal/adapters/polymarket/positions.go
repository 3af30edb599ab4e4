package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

const (
	positionsPath     = "/positions"
	positionsPerPage  = 500
	positionsMaxPages = 5
)

// ErrPositionsTruncated indica que la wallet tiene más posiciones de las que
// se paginan. Un snapshot incompleto no sirve para reconciliar órdenes.
var ErrPositionsTruncated = errors.New("positions truncated at page cap")

// FetchPositions obtiene las posiciones abiertas de una wallet desde la Data API.
// Pagina por offset hasta positionsMaxPages; si la última página viene llena
// devuelve ErrPositionsTruncated.
func (c *Client) FetchPositions(ctx context.Context, wallet string) ([]domain.OpenPosition, error) {
	if wallet == "" {
		return nil, fmt.Errorf("data-api.FetchPositions: empty wallet")
	}

	var all []domain.OpenPosition
	for page := 0; page < positionsMaxPages; page++ {
		offset := page * positionsPerPage
		u := fmt.Sprintf("%s%s?user=%s&sizeThreshold=0&limit=%d&offset=%d",
			c.dataBase, positionsPath, url.QueryEscape(wallet), positionsPerPage, offset)

		var resp []dataPosition
		if err := c.get(ctx, c.dataLimiter, u, &resp); err != nil {
			return nil, fmt.Errorf("data-api.FetchPositions: %w", err)
		}

		all = append(all, mapPositions(resp)...)

		slog.Debug("fetched positions page",
			"wallet", wallet[:min(10, len(wallet))]+"...",
			"page", page,
			"count", len(resp),
			"total", len(all),
		)

		if len(resp) < positionsPerPage {
			return all, nil
		}
	}

	slog.Warn("positions page cap reached, skipping reconciliation",
		"wallet", wallet[:min(10, len(wallet))]+"...",
		"pages", positionsMaxPages,
		"count", len(all),
	)
	return nil, fmt.Errorf("data-api.FetchPositions: %d positions: %w", len(all), ErrPositionsTruncated)
}

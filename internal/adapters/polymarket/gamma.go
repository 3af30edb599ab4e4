package polymarket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

const (
	gammaMarketsPath  = "/markets"
	gammaConditionMax = 20
)

// FetchMarketMeta obtiene título, slug e imagen de Gamma para los condition_ids
// dados, en batches de gammaConditionMax. Un batch que falla no impide los
// demás: se devuelve lo obtenido junto con el error agregado.
func (c *Client) FetchMarketMeta(ctx context.Context, marketIDs []string) (map[string]domain.MarketMeta, error) {
	result := make(map[string]domain.MarketMeta, len(marketIDs))
	var errs []error

	for _, batch := range splitBatches(marketIDs, gammaConditionMax) {
		url := fmt.Sprintf("%s%s?condition_ids=%s&limit=%d",
			c.gammaBase,
			gammaMarketsPath,
			strings.Join(batch, ","),
			gammaConditionMax,
		)

		var resp gammaMarketsResponse
		if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
			slog.Debug("gamma batch failed, skipping",
				"batch_size", len(batch),
				"err", err,
			)
			errs = append(errs, err)
			continue
		}

		for _, gm := range resp {
			if gm.ConditionID == "" {
				continue
			}
			result[gm.ConditionID] = mapGammaMeta(gm)
		}
	}

	slog.Debug("gamma metadata fetched",
		"requested", len(marketIDs),
		"found", len(result),
	)

	if len(errs) > 0 {
		return result, fmt.Errorf("gamma.FetchMarketMeta: %w", errors.Join(errs...))
	}
	return result, nil
}

// splitBatches divide ids en slices de tamaño máximo size.
func splitBatches(ids []string, size int) [][]string {
	if size <= 0 {
		size = gammaConditionMax
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[i:end])
	}
	return batches
}

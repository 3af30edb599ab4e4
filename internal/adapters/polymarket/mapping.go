package polymarket

import (
	"strings"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// mapQuote convierte un clobMarket DTO a domain.Quote.
// Un mercado cerrado con token ganador está resuelto; cerrado sin ganador
// solo significa que ya no cotiza.
func mapQuote(r clobMarket) domain.Quote {
	q := domain.Quote{
		MarketID: r.ConditionID,
		Prices:   make(map[string]float64, len(r.Tokens)),
		Closed:   r.Closed,
	}
	for _, t := range r.Tokens {
		outcome := domain.NormalizeOutcome(t.Outcome)
		if outcome == "" || t.Price < 0 || t.Price > 1 {
			continue
		}
		q.Prices[outcome] = t.Price
		if t.Winner {
			q.WinningOutcome = outcome
		}
	}
	q.Resolved = r.Closed && q.WinningOutcome != ""
	return q
}

// mapGammaMeta convierte un gammaMarket DTO a domain.MarketMeta.
func mapGammaMeta(gm gammaMarket) domain.MarketMeta {
	image := gm.Image
	if image == "" {
		image = gm.Icon
	}
	return domain.MarketMeta{
		MarketID: gm.ConditionID,
		Title:    strings.TrimSpace(gm.Question),
		Slug:     gm.Slug,
		Image:    image,
	}
}

// mapPositions convierte las posiciones de la Data API a domain.OpenPosition.
// Las posiciones con size 0 o no parseable se descartan.
func mapPositions(raw []dataPosition) []domain.OpenPosition {
	out := make([]domain.OpenPosition, 0, len(raw))
	for _, r := range raw {
		size, err := r.Size.Float64()
		if err != nil || size <= 0 {
			continue
		}
		avg, _ := r.AvgPrice.Float64()
		out = append(out, domain.OpenPosition{
			TokenID:  r.Asset,
			MarketID: r.ConditionID,
			Outcome:  r.Outcome,
			Side:     domain.SideBuy,
			Size:     size,
			AvgPrice: avg,
		})
	}
	return out
}

package domain

import (
	"math"
	"strings"
)

// placeholderTitles son títulos que el pipeline de ingesta guarda cuando
// todavía no conoce el mercado. Se sustituyen por la metadata de Gamma.
var placeholderTitles = map[string]bool{
	"":               true,
	"unknown market": true,
	"unknown":        true,
	"market":         true,
	"n/a":            true,
	"-":              true,
}

// Normalize convierte un TradeRecord en un UnifiedTrade.
// meta es la caché de metadata por market id (puede ser nil) y positions el
// snapshot de posiciones abiertas (nil = no disponible, no se reconcilia).
// Nunca falla: los campos inválidos se degradan a placeholders.
func Normalize(rec TradeRecord, meta map[string]MarketMeta, positions PositionBook) UnifiedTrade {
	switch r := rec.(type) {
	case ManualTrade:
		return normalizeManual(r, meta)
	case PlatformOrder:
		return normalizeOrder(r, meta, positions)
	default:
		return UnifiedTrade{MarketTitle: UnknownMarketTitle, Status: StatusOpen}
	}
}

// NormalizeAll normaliza un batch completo. Las órdenes canceladas sin fill
// no representan posición económica y se descartan.
func NormalizeAll(records []TradeRecord, meta map[string]MarketMeta, positions PositionBook) []UnifiedTrade {
	out := make([]UnifiedTrade, 0, len(records))
	for _, rec := range records {
		if o, ok := rec.(PlatformOrder); ok && o.Status == OrderCancelled && o.FilledSize <= 0 {
			continue
		}
		out = append(out, Normalize(rec, meta, positions))
	}
	return out
}

func normalizeManual(t ManualTrade, meta map[string]MarketMeta) UnifiedTrade {
	title, slug, image := resolveMarket(t.MarketID, t.MarketTitle, t.MarketSlug, t.MarketImage, meta)

	u := UnifiedTrade{
		ID:              t.ID,
		Source:          SourceManual,
		UserID:          t.UserID,
		MarketID:        t.MarketID,
		MarketTitle:     title,
		MarketSlug:      slug,
		MarketImage:     image,
		Outcome:         strings.TrimSpace(t.Outcome),
		Side:            SideBuy,
		TraderWallet:    t.TraderWallet,
		EntryPrice:      entryPrice(t.PriceWhenCopied),
		Size:            nonNegative(t.EntrySize),
		StoredInvested:  nonNegative(t.AmountInvested),
		CurrentPrice:    probability(t.CurrentPrice),
		ExitPrice:       probability(t.UserExitPrice),
		StoredROI:       finite(t.ROI),
		StoredPnL:       finite(t.RealizedPnL),
		UserClosedAt:    t.UserClosedAt,
		MarketResolved:  t.MarketResolved,
		ResolvedOutcome: strings.TrimSpace(t.ResolvedOutcome),
		CreatedAt:       t.CreatedAt,
	}

	switch {
	case t.MarketResolved:
		u.Status = StatusResolved
	case t.UserClosedAt != nil:
		u.Status = StatusUserClosed
	case t.TraderPositionClosed:
		u.Status = StatusCounterpartyClosed
	default:
		u.Status = StatusOpen
	}

	return Settle(u)
}

func normalizeOrder(o PlatformOrder, meta map[string]MarketMeta, positions PositionBook) UnifiedTrade {
	title, slug, image := resolveMarket(o.MarketID, o.MarketTitle, o.MarketSlug, o.MarketImage, meta)

	side := o.Side
	if side != SideSell {
		side = SideBuy
	}
	size := math.Max(o.FilledSize, 0)

	u := UnifiedTrade{
		ID:              o.ID,
		Source:          SourcePlatform,
		UserID:          o.UserID,
		MarketID:        o.MarketID,
		MarketTitle:     title,
		MarketSlug:      slug,
		MarketImage:     image,
		Outcome:         strings.TrimSpace(o.Outcome),
		Side:            side,
		TraderWallet:    o.TraderWallet,
		EntryPrice:      entryPrice(o.AvgPrice),
		Size:            &size,
		StoredInvested:  nonNegative(o.AmountInvested),
		CurrentPrice:    probability(o.CurrentPrice),
		ExitPrice:       probability(o.ExitPrice),
		StoredPnL:       finite(o.RealizedPnL),
		UserClosedAt:    o.ClosedAt,
		MarketResolved:  o.MarketResolved,
		ResolvedOutcome: strings.TrimSpace(o.ResolvedOutcome),
		CreatedAt:       o.CreatedAt,
	}

	switch {
	case o.MarketResolved:
		u.Status = StatusResolved
	case orderClosedByUser(o, positions):
		u.Status = StatusUserClosed
	case o.TraderPositionClosed:
		u.Status = StatusCounterpartyClosed
	default:
		u.Status = StatusOpen
	}

	return Settle(u)
}

// orderClosedByUser aplica la política de cierre de órdenes: marcador explícito,
// fill de cierre, orden de venta, o posición neta cero en el snapshot.
// La posición neta manda sobre los flags de estado implícitos.
func orderClosedByUser(o PlatformOrder, positions PositionBook) bool {
	if o.ClosedAt != nil || o.Status == OrderClosed || o.Status == OrderSold {
		return true
	}
	if o.Side == SideSell {
		return true
	}
	if positions != nil && o.FilledSize > 0 && positions.NetSize(o.MarketID, o.Outcome) <= 0 {
		return true
	}
	return false
}

// resolveMarket elige título, slug e imagen: el valor guardado salvo que sea
// un placeholder (o el propio market id), luego la caché de metadata.
func resolveMarket(marketID, title, slug, image string, meta map[string]MarketMeta) (string, string, string) {
	m, hasMeta := meta[marketID]

	t := strings.TrimSpace(title)
	if isPlaceholderTitle(t, marketID) {
		t = ""
		if hasMeta && !isPlaceholderTitle(strings.TrimSpace(m.Title), marketID) {
			t = strings.TrimSpace(m.Title)
		}
	}
	if t == "" {
		t = UnknownMarketTitle
	}

	if slug == "" && hasMeta {
		slug = m.Slug
	}
	if image == "" && hasMeta {
		image = m.Image
	}
	return t, slug, image
}

// NeedsMetadata devuelve true si hace falta consultar la metadata del
// mercado: el título guardado es un placeholder o falta slug o imagen.
func NeedsMetadata(marketID, title, slug, image string) bool {
	if marketID == "" {
		return false
	}
	return isPlaceholderTitle(strings.TrimSpace(title), marketID) || slug == "" || image == ""
}

func isPlaceholderTitle(title, marketID string) bool {
	if placeholderTitles[strings.ToLower(title)] {
		return true
	}
	return marketID != "" && title == marketID
}

// entryPrice acepta solo precios en (0, 1].
func entryPrice(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || *p <= 0 || *p > 1 {
		return nil
	}
	v := *p
	return &v
}

// probability acepta precios en [0, 1].
func probability(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || *p < 0 || *p > 1 {
		return nil
	}
	v := *p
	return &v
}

func nonNegative(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) || *p < 0 {
		return nil
	}
	v := *p
	return &v
}

func finite(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	v := *p
	return &v
}

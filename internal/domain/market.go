package domain

import "strings"

// UnknownMarketTitle es el placeholder cuando no hay título resoluble.
const UnknownMarketTitle = "Unknown Market"

// MarketMeta es la metadata de un mercado, enriquecida desde Gamma.
type MarketMeta struct {
	MarketID string
	Title    string
	Slug     string
	Image    string
}

// Quote es el snapshot live de un mercado: precios por outcome y estado de resolución.
type Quote struct {
	MarketID       string
	Prices         map[string]float64 // outcome normalizado → precio
	Closed         bool
	Resolved       bool
	WinningOutcome string // vacío si no se conoce
}

// PriceFor devuelve el precio del outcome dado, si el quote lo trae.
func (q Quote) PriceFor(outcome string) (float64, bool) {
	p, ok := q.Prices[NormalizeOutcome(outcome)]
	return p, ok
}

// PriceKey identifica un precio live por (mercado, outcome).
type PriceKey struct {
	MarketID string
	Outcome  string
}

// NewPriceKey construye la key con el outcome normalizado.
func NewPriceKey(marketID, outcome string) PriceKey {
	return PriceKey{MarketID: marketID, Outcome: NormalizeOutcome(outcome)}
}

// LivePrice es la entrada del PriceBook para un (mercado, outcome).
type LivePrice struct {
	Price          float64
	HasPrice       bool
	Resolved       bool
	WinningOutcome string
}

// PriceBook es el lookup transitorio que consulta el overlay.
// No se persiste; se reconstruye en cada carga.
type PriceBook map[PriceKey]LivePrice

// OpenPosition es una fila del snapshot de posiciones abiertas de una wallet.
type OpenPosition struct {
	TokenID  string
	MarketID string
	Outcome  string
	Side     Side
	Size     float64
	AvgPrice float64
}

// PositionBook indexa el tamaño neto abierto por (mercado, outcome).
type PositionBook map[PriceKey]float64

// NewPositionBook agrega las posiciones del snapshot por (mercado, outcome).
func NewPositionBook(positions []OpenPosition) PositionBook {
	book := make(PositionBook, len(positions))
	for _, p := range positions {
		size := p.Size
		if p.Side == SideSell {
			size = -size
		}
		book[NewPriceKey(p.MarketID, p.Outcome)] += size
	}
	return book
}

// NetSize devuelve el tamaño neto abierto para el mercado/outcome.
func (b PositionBook) NetSize(marketID, outcome string) float64 {
	return b[NewPriceKey(marketID, outcome)]
}

// NormalizeOutcome pasa el outcome a mayúsculas sin espacios sobrantes,
// para que "Yes", "YES" y " yes" sean la misma key.
func NormalizeOutcome(outcome string) string {
	return strings.ToUpper(strings.TrimSpace(outcome))
}

// TruncateTitle recorta el título a maxLen runas para mostrarlo en tablas.
// Un título vacío se sustituye por el market id abreviado.
func TruncateTitle(title, marketID string, maxLen int) string {
	t := title
	if strings.TrimSpace(t) == "" {
		t = marketID
		if len(t) > 20 {
			t = t[:20] + "..."
		}
	}
	r := []rune(t)
	if maxLen <= 3 || len(r) <= maxLen {
		return t
	}
	return string(r[:maxLen-3]) + "..."
}

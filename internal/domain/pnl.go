package domain

// pnl.go — cálculo de posición y P&L por trade.
//
// Una sola cadena de fallbacks para todos los trades: nunca se mezcla un P&L
// guardado para unos con uno derivado para otros bajo otra precedencia.

// Invested devuelve el capital invertido: el guardado si existe, si no
// size × entry, si no 0. Nunca negativo.
func Invested(t UnifiedTrade) float64 {
	if t.StoredInvested != nil {
		return *t.StoredInvested
	}
	if t.Size != nil && t.EntryPrice != nil {
		return *t.Size * *t.EntryPrice
	}
	return 0
}

// MarkPrice devuelve el precio contra el que se valora el trade:
// el exit price del usuario si lo cerró, si no el precio de display.
func MarkPrice(t UnifiedTrade) *float64 {
	if t.UserClosedAt != nil && t.ExitPrice != nil {
		return t.ExitPrice
	}
	if t.Status == StatusUserClosed && t.ExitPrice != nil {
		return t.ExitPrice
	}
	return t.CurrentPrice
}

// direction es +1 para compras y -1 para ventas (posición corta).
func direction(t UnifiedTrade) float64 {
	if t.IsShort() {
		return -1
	}
	return 1
}

// ROI devuelve el retorno en %. El guardado gana; si no, se calcula de entry
// vs precio de valoración con el signo invertido para ventas. nil si no hay datos.
func ROI(t UnifiedTrade) *float64 {
	if t.StoredROI != nil {
		return t.StoredROI
	}
	mark := MarkPrice(t)
	if t.EntryPrice == nil || *t.EntryPrice <= 0 || mark == nil {
		return nil
	}
	roi := ComputeROI(*t.EntryPrice, *mark, t.Side)
	return &roi
}

// ComputeROI calcula el retorno % de entry a exit según la dirección.
// Una posición corta gana cuando el precio baja: (entry − exit) / entry.
func ComputeROI(entry, exit float64, side Side) float64 {
	if entry <= 0 {
		return 0
	}
	if side == SideSell {
		return (entry - exit) / entry * 100
	}
	return (exit - entry) / entry * 100
}

// PnL devuelve el P&L en USDC con la cadena de precedencia:
//  1. P&L realizado guardado
//  2. (precio − entry) × size, con dirección
//  3. invested × ROI/100, si se conoce un ROI
//  4. 0
func PnL(t UnifiedTrade) float64 {
	if t.StoredPnL != nil {
		return *t.StoredPnL
	}
	mark := MarkPrice(t)
	if t.EntryPrice != nil && mark != nil && t.Size != nil {
		return (*mark - *t.EntryPrice) * *t.Size * direction(t)
	}
	if t.StoredROI != nil {
		return Invested(t) * (*t.StoredROI / 100)
	}
	return 0
}

// CurrentValue devuelve el valor actual de la posición: size × precio si se
// conocen, si no invested + P&L.
func CurrentValue(t UnifiedTrade) float64 {
	mark := MarkPrice(t)
	if t.Size != nil && mark != nil {
		if t.IsShort() && t.EntryPrice != nil {
			return Invested(t) + PnL(t)
		}
		return *t.Size * *mark
	}
	return Invested(t) + PnL(t)
}

// IsOpen devuelve true si el trade cuenta como abierto para el P&L:
// sin cierre del usuario y con el mercado sin resolver. El flag live de
// resolución (escrito por el overlay) manda sobre el status guardado.
func IsOpen(t UnifiedTrade) bool {
	if t.UserClosedAt != nil || t.Status == StatusUserClosed {
		return false
	}
	if t.MarketResolved || t.Status == StatusResolved {
		return false
	}
	return true
}

// Position agrupa los valores derivados de un trade para presentación.
type Position struct {
	Trade        UnifiedTrade
	Invested     float64
	PnL          float64
	ROI          *float64
	CurrentValue float64
	Open         bool
}

// Evaluate calcula todos los valores derivados de un trade.
func Evaluate(t UnifiedTrade) Position {
	return Position{
		Trade:        t,
		Invested:     Invested(t),
		PnL:          PnL(t),
		ROI:          ROI(t),
		CurrentValue: CurrentValue(t),
		Open:         IsOpen(t),
	}
}

// EvaluateAll aplica Evaluate a todo el batch.
func EvaluateAll(trades []UnifiedTrade) []Position {
	out := make([]Position, len(trades))
	for i, t := range trades {
		out[i] = Evaluate(t)
	}
	return out
}

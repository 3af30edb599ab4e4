package domain

// Overlayable devuelve true si el trade admite precio live: está abierto
// (o cerrado solo por el trader copiado) y su mercado no está resuelto.
func Overlayable(t UnifiedTrade) bool {
	return t.Status == StatusOpen || t.Status == StatusCounterpartyClosed
}

// ApplyOverlay devuelve copias de los trades con el precio y el flag de
// resolución live del PriceBook. Los trades sin entrada en el book conservan
// su último precio conocido. No modifica el slice de entrada.
func ApplyOverlay(trades []UnifiedTrade, book PriceBook) []UnifiedTrade {
	out := make([]UnifiedTrade, len(trades))
	for i, t := range trades {
		out[i] = t
		if !Overlayable(t) {
			continue
		}
		lp, ok := book[NewPriceKey(t.MarketID, t.Outcome)]
		if !ok {
			continue
		}

		u := t
		if lp.HasPrice {
			p := lp.Price
			u.CurrentPrice = &p
		}
		if lp.Resolved {
			// El dato live manda sobre el status guardado.
			u.MarketResolved = true
			u.Status = StatusResolved
			if u.ResolvedOutcome == "" {
				u.ResolvedOutcome = lp.WinningOutcome
			}
		}
		out[i] = Settle(u)
	}
	return out
}

// Settle fuerza el precio de display a exactamente 1 (outcome ganador) o 0
// (perdedor) cuando el mercado está resuelto y ambos outcomes se conocen.
// Tras la resolución el valor de la share es categórico, no de mercado.
func Settle(t UnifiedTrade) UnifiedTrade {
	if !t.MarketResolved && t.Status != StatusResolved {
		return t
	}
	if t.Outcome == "" || t.ResolvedOutcome == "" {
		return t
	}
	price := 0.0
	if NormalizeOutcome(t.Outcome) == NormalizeOutcome(t.ResolvedOutcome) {
		price = 1.0
	}
	t.CurrentPrice = &price
	return t
}

// BuildLivePrices convierte un quote en las entradas del PriceBook para cada
// outcome que trae. Un mercado resuelto sin outcome ganador explícito infiere
// el ganador del outcome cotizado a ≥ 0.99.
func BuildLivePrices(q Quote) PriceBook {
	book := make(PriceBook, len(q.Prices))

	winner := NormalizeOutcome(q.WinningOutcome)
	if q.Resolved && winner == "" {
		for outcome, p := range q.Prices {
			if p >= 0.99 {
				winner = outcome
				break
			}
		}
	}

	for outcome, p := range q.Prices {
		book[NewPriceKey(q.MarketID, outcome)] = LivePrice{
			Price:          p,
			HasPrice:       true,
			Resolved:       q.Resolved,
			WinningOutcome: winner,
		}
	}
	return book
}

// Merge copia las entradas de other en b.
func (b PriceBook) Merge(other PriceBook) {
	for k, v := range other {
		b[k] = v
	}
}

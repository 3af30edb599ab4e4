package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverlay_UpdatesOpenTrades(t *testing.T) {
	a := openTrade()
	b := openTrade()
	b.ID = "t2"
	b.MarketID = "0xfail"
	b.CurrentPrice = Float(0.55)

	book := PriceBook{NewPriceKey("0xmkt", "yes"): {Price: 0.72, HasPrice: true}}
	out := ApplyOverlay([]UnifiedTrade{a, b}, book)

	require.Len(t, out, 2)
	assert.Equal(t, 0.72, *out[0].CurrentPrice)
	// mercado sin entrada en el book conserva su último precio
	assert.Equal(t, 0.55, *out[1].CurrentPrice)
}

func TestApplyOverlay_DoesNotMutateInput(t *testing.T) {
	in := []UnifiedTrade{openTrade()}
	book := PriceBook{NewPriceKey("0xmkt", "YES"): {Price: 0.1, HasPrice: true, Resolved: true, WinningOutcome: "NO"}}
	out := ApplyOverlay(in, book)

	assert.Equal(t, 0.80, *in[0].CurrentPrice)
	assert.Equal(t, StatusOpen, in[0].Status)
	assert.Equal(t, 0.0, *out[0].CurrentPrice)
	assert.Equal(t, StatusResolved, out[0].Status)
}

func TestApplyOverlay_SkipsUserClosed(t *testing.T) {
	closedAt := t0
	tr := openTrade()
	tr.Status = StatusUserClosed
	tr.UserClosedAt = &closedAt
	book := PriceBook{NewPriceKey("0xmkt", "YES"): {Price: 0.99, HasPrice: true}}
	out := ApplyOverlay([]UnifiedTrade{tr}, book)
	assert.Equal(t, 0.80, *out[0].CurrentPrice)
}

func TestApplyOverlay_CounterpartyClosedGetsPrice(t *testing.T) {
	tr := openTrade()
	tr.Status = StatusCounterpartyClosed
	book := PriceBook{NewPriceKey("0xmkt", "YES"): {Price: 0.33, HasPrice: true}}
	out := ApplyOverlay([]UnifiedTrade{tr}, book)
	assert.Equal(t, 0.33, *out[0].CurrentPrice)
}

func TestSettle_ResolvedPricesAreCategorical(t *testing.T) {
	quotes := []float64{0, 0.01, 0.5, 0.97, 1}
	for _, q := range quotes {
		for _, winner := range []string{"YES", "NO"} {
			tr := openTrade()
			tr.CurrentPrice = Float(q)
			tr.MarketResolved = true
			tr.ResolvedOutcome = winner
			s := Settle(tr)
			require.NotNil(t, s.CurrentPrice)
			assert.Contains(t, []float64{0, 1}, *s.CurrentPrice)
			if winner == "YES" {
				assert.Equal(t, 1.0, *s.CurrentPrice)
			} else {
				assert.Equal(t, 0.0, *s.CurrentPrice)
			}
		}
	}
}

func TestSettle_UnknownOutcomeLeavesPrice(t *testing.T) {
	tr := openTrade()
	tr.MarketResolved = true
	s := Settle(tr)
	assert.Equal(t, 0.80, *s.CurrentPrice)
}

func TestBuildLivePrices_InfersWinner(t *testing.T) {
	q := Quote{
		MarketID: "0xmkt",
		Prices:   map[string]float64{"YES": 0.995, "NO": 0.005},
		Closed:   true,
		Resolved: true,
	}
	book := BuildLivePrices(q)
	require.Len(t, book, 2)
	lp := book[NewPriceKey("0xmkt", "no")]
	assert.True(t, lp.Resolved)
	assert.Equal(t, "YES", lp.WinningOutcome)
}

func TestPriceBook_Merge(t *testing.T) {
	a := PriceBook{NewPriceKey("m1", "YES"): {Price: 0.1, HasPrice: true}}
	a.Merge(PriceBook{NewPriceKey("m2", "YES"): {Price: 0.2, HasPrice: true}})
	assert.Len(t, a, 2)
}

func TestCalculatorWorksWithoutOverlay(t *testing.T) {
	closedAt := t0.Add(2 * time.Hour)
	tr := openTrade()
	tr.UserClosedAt = &closedAt
	tr.Status = StatusUserClosed
	tr.ExitPrice = nil
	// sin exit price ni overlay se usa el último precio guardado
	assert.InDelta(t, 20.0, PnL(tr), 1e-9)
}

package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// SizeBucket es una barra del histograma de tamaño de posición.
type SizeBucket struct {
	Label   string  `json:"label"`
	Min     float64 `json:"min"`
	Max     float64 `json:"-"` // +Inf en el último bucket
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// CategoryShare es una entrada de la distribución por categoría.
type CategoryShare struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Percent  float64  `json:"percent"`
	Color    string   `json:"color"`
}

// Summary es el resumen agregado del portfolio.
type Summary struct {
	TradeCount    int             `json:"trade_count"`
	OpenTrades    int             `json:"open_trades"`
	ClosedTrades  int             `json:"closed_trades"`
	Wins          int             `json:"wins"`
	TotalPnL      float64         `json:"total_pnl"`
	RealizedPnL   float64         `json:"realized_pnl"`
	UnrealizedPnL float64         `json:"unrealized_pnl"`
	TotalVolume   float64         `json:"total_volume"`
	CurrentValue  float64         `json:"current_value"`
	ROI           float64         `json:"roi"`
	WinRate       float64         `json:"win_rate"`
	SizeBuckets   []SizeBucket    `json:"size_buckets"`
	Categories    []CategoryShare `json:"categories"`
}

// PortfolioSnapshot es el resultado de una carga completa del portfolio.
type PortfolioSnapshot struct {
	UserID    string
	Wallet    string
	Positions []Position
	Summary   Summary
	Failures  []SourceError
	LoadedAt  time.Time
}

// Degraded devuelve true si alguna fuente falló durante la carga.
func (s PortfolioSnapshot) Degraded() bool {
	return len(s.Failures) > 0
}

type bucketRange struct {
	label    string
	min, max float64
}

// sizeRanges son los rangos fijos del histograma sobre el capital invertido.
var sizeRanges = []bucketRange{
	{"$0-$100", 0, 100},
	{"$100-$500", 100, 500},
	{"$500-$1K", 500, 1000},
	{"$1K-$5K", 1000, 5000},
	{"$5K-$10K", 5000, 10000},
	{"$10K+", 10000, math.Inf(1)},
}

// Aggregate reduce el batch de trades al Summary. Con cero trades devuelve
// un resumen a cero con slices vacíos, sin NaN ni Inf.
func Aggregate(trades []UnifiedTrade) Summary {
	return AggregatePositions(EvaluateAll(trades))
}

// AggregatePositions es Aggregate sobre posiciones ya evaluadas.
func AggregatePositions(positions []Position) Summary {
	s := Summary{
		TradeCount:  len(positions),
		SizeBuckets: []SizeBucket{},
		Categories:  []CategoryShare{},
	}
	if len(positions) == 0 {
		return s
	}

	bucketCounts := make([]int, len(sizeRanges))
	catCounts := make(map[Category]int, len(Categories))

	for _, p := range positions {
		s.TotalVolume += p.Invested
		s.TotalPnL += p.PnL
		s.CurrentValue += p.CurrentValue
		if p.Open {
			s.OpenTrades++
			s.UnrealizedPnL += p.PnL
		} else {
			s.ClosedTrades++
			s.RealizedPnL += p.PnL
			if p.PnL > 0 {
				s.Wins++
			}
		}

		bucketCounts[bucketIndex(p.Invested)]++
		catCounts[Classify(p.Trade.MarketTitle)]++
	}

	if s.TotalVolume > 0 {
		s.ROI = round2(s.TotalPnL / s.TotalVolume * 100)
	}
	if s.ClosedTrades > 0 {
		s.WinRate = percent(s.Wins, s.ClosedTrades)
	}

	for i, r := range sizeRanges {
		if bucketCounts[i] == 0 {
			continue
		}
		s.SizeBuckets = append(s.SizeBuckets, SizeBucket{
			Label:   r.label,
			Min:     r.min,
			Max:     r.max,
			Count:   bucketCounts[i],
			Percent: percent(bucketCounts[i], len(positions)),
		})
	}

	for _, cat := range Categories {
		n := catCounts[cat]
		if n == 0 {
			continue
		}
		s.Categories = append(s.Categories, CategoryShare{
			Category: cat,
			Count:    n,
			Percent:  percent(n, len(positions)),
			Color:    CategoryColors[cat],
		})
	}

	s.TotalPnL = round2(s.TotalPnL)
	s.RealizedPnL = round2(s.RealizedPnL)
	s.UnrealizedPnL = round2(s.UnrealizedPnL)
	s.TotalVolume = round2(s.TotalVolume)
	s.CurrentValue = round2(s.CurrentValue)
	return s
}

func bucketIndex(invested float64) int {
	for i, r := range sizeRanges {
		if invested >= r.min && invested < r.max {
			return i
		}
	}
	// negativos o NaN no deberían llegar; van al primer bucket
	return 0
}

// percent devuelve n/total en %, redondeado a una décima.
func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	v, _ := decimal.NewFromInt(int64(n)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		Round(1).
		Float64()
	return v
}

// round2 redondea importes en USDC a centavos.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	r, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return r
}

// SummaryPoint es un punto guardado del histórico de resúmenes.
type SummaryPoint struct {
	UserID        string
	TakenAt       time.Time
	TradeCount    int
	TotalPnL      float64
	RealizedPnL   float64
	UnrealizedPnL float64
	TotalVolume   float64
	ROI           float64
	WinRate       float64
}

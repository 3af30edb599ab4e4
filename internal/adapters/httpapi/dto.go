package httpapi

import (
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// --- requests ---

type createTradeRequest struct {
	MarketID        string   `json:"market_id"`
	MarketTitle     string   `json:"market_title"`
	MarketSlug      string   `json:"market_slug"`
	MarketImage     string   `json:"market_image"`
	Outcome         string   `json:"outcome"`
	TraderWallet    string   `json:"trader_wallet"`
	TraderUsername  string   `json:"trader_username"`
	PriceWhenCopied *float64 `json:"price_when_copied"`
	EntrySize       *float64 `json:"entry_size"`
	AmountInvested  *float64 `json:"amount_invested"`
}

func (r createTradeRequest) toDomain(userID string) domain.ManualTrade {
	return domain.ManualTrade{
		UserID:          userID,
		MarketID:        r.MarketID,
		MarketTitle:     r.MarketTitle,
		MarketSlug:      r.MarketSlug,
		MarketImage:     r.MarketImage,
		Outcome:         r.Outcome,
		TraderWallet:    r.TraderWallet,
		TraderUsername:  r.TraderUsername,
		PriceWhenCopied: r.PriceWhenCopied,
		EntrySize:       r.EntrySize,
		AmountInvested:  r.AmountInvested,
	}
}

type closeTradeRequest struct {
	ExitPrice *float64 `json:"exit_price"`
}

type editTradeRequest struct {
	PriceWhenCopied *float64 `json:"price_when_copied"`
	EntrySize       *float64 `json:"entry_size"`
	AmountInvested  *float64 `json:"amount_invested"`
	MarketTitle     *string  `json:"market_title"`
	Outcome         *string  `json:"outcome"`
}

func (r editTradeRequest) toDomain() domain.TradeUpdate {
	return domain.TradeUpdate{
		PriceWhenCopied: r.PriceWhenCopied,
		EntrySize:       r.EntrySize,
		AmountInvested:  r.AmountInvested,
		MarketTitle:     r.MarketTitle,
		Outcome:         r.Outcome,
	}
}

type recordOrderRequest struct {
	ID                   string     `json:"id"`
	MarketID             string     `json:"market_id"`
	TokenID              string     `json:"token_id"`
	Outcome              string     `json:"outcome"`
	MarketTitle          string     `json:"market_title"`
	MarketSlug           string     `json:"market_slug"`
	MarketImage          string     `json:"market_image"`
	Side                 string     `json:"side"`
	Status               string     `json:"status"`
	FilledSize           float64    `json:"filled_size"`
	AvgPrice             *float64   `json:"avg_price"`
	AmountInvested       *float64   `json:"amount_invested"`
	RealizedPnL          *float64   `json:"realized_pnl"`
	ClosedAt             *time.Time `json:"closed_at"`
	ExitPrice            *float64   `json:"exit_price"`
	TraderWallet         string     `json:"trader_wallet"`
	TraderPositionClosed bool       `json:"trader_position_closed"`
}

func (r recordOrderRequest) toDomain(userID string) domain.PlatformOrder {
	side := domain.Side(r.Side)
	if r.Side == "" {
		side = domain.SideBuy
	}
	return domain.PlatformOrder{
		ID:                   r.ID,
		UserID:               userID,
		MarketID:             r.MarketID,
		TokenID:              r.TokenID,
		Outcome:              r.Outcome,
		MarketTitle:          r.MarketTitle,
		MarketSlug:           r.MarketSlug,
		MarketImage:          r.MarketImage,
		Side:                 side,
		Status:               domain.OrderStatus(r.Status),
		FilledSize:           r.FilledSize,
		AvgPrice:             r.AvgPrice,
		AmountInvested:       r.AmountInvested,
		RealizedPnL:          r.RealizedPnL,
		ClosedAt:             r.ClosedAt,
		ExitPrice:            r.ExitPrice,
		TraderWallet:         r.TraderWallet,
		TraderPositionClosed: r.TraderPositionClosed,
	}
}

// --- responses ---

type tradeJSON struct {
	ID              string     `json:"id"`
	MarketID        string     `json:"market_id"`
	MarketTitle     string     `json:"market_title"`
	MarketSlug      string     `json:"market_slug,omitempty"`
	MarketImage     string     `json:"market_image,omitempty"`
	Outcome         string     `json:"outcome"`
	TraderWallet    string     `json:"trader_wallet,omitempty"`
	TraderUsername  string     `json:"trader_username,omitempty"`
	PriceWhenCopied *float64   `json:"price_when_copied"`
	EntrySize       *float64   `json:"entry_size"`
	AmountInvested  *float64   `json:"amount_invested"`
	CurrentPrice    *float64   `json:"current_price"`
	ROI             *float64   `json:"roi"`
	UserClosedAt    *time.Time `json:"user_closed_at"`
	UserExitPrice   *float64   `json:"user_exit_price"`
	MarketResolved  bool       `json:"market_resolved"`
	CreatedAt       time.Time  `json:"created_at"`
}

func newTradeJSON(t domain.ManualTrade) tradeJSON {
	return tradeJSON{
		ID:              t.ID,
		MarketID:        t.MarketID,
		MarketTitle:     t.MarketTitle,
		MarketSlug:      t.MarketSlug,
		MarketImage:     t.MarketImage,
		Outcome:         t.Outcome,
		TraderWallet:    t.TraderWallet,
		TraderUsername:  t.TraderUsername,
		PriceWhenCopied: t.PriceWhenCopied,
		EntrySize:       t.EntrySize,
		AmountInvested:  t.AmountInvested,
		CurrentPrice:    t.CurrentPrice,
		ROI:             t.ROI,
		UserClosedAt:    t.UserClosedAt,
		UserExitPrice:   t.UserExitPrice,
		MarketResolved:  t.MarketResolved,
		CreatedAt:       t.CreatedAt,
	}
}

type tradePageJSON struct {
	Trades  []tradeJSON `json:"trades"`
	Total   int         `json:"total"`
	HasMore bool        `json:"has_more"`
}

// positionJSON es un trade unificado con sus valores derivados.
type positionJSON struct {
	ID              string          `json:"id"`
	Source          string          `json:"source"`
	MarketID        string          `json:"market_id"`
	MarketTitle     string          `json:"market_title"`
	MarketSlug      string          `json:"market_slug,omitempty"`
	MarketImage     string          `json:"market_image,omitempty"`
	Category        domain.Category `json:"category"`
	Outcome         string          `json:"outcome"`
	Side            string          `json:"side"`
	Status          string          `json:"status"`
	TraderWallet    string          `json:"trader_wallet,omitempty"`
	EntryPrice      *float64        `json:"entry_price"`
	Size            *float64        `json:"size"`
	CurrentPrice    *float64        `json:"current_price"`
	ExitPrice       *float64        `json:"exit_price"`
	Invested        float64         `json:"invested"`
	PnL             float64         `json:"pnl"`
	ROI             *float64        `json:"roi"`
	CurrentValue    float64         `json:"current_value"`
	Open            bool            `json:"open"`
	MarketResolved  bool            `json:"market_resolved"`
	ResolvedOutcome string          `json:"resolved_outcome,omitempty"`
	UserClosedAt    *time.Time      `json:"user_closed_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newPositionJSON(p domain.Position) positionJSON {
	t := p.Trade
	return positionJSON{
		ID:              t.ID,
		Source:          string(t.Source),
		MarketID:        t.MarketID,
		MarketTitle:     t.MarketTitle,
		MarketSlug:      t.MarketSlug,
		MarketImage:     t.MarketImage,
		Category:        domain.Classify(t.MarketTitle),
		Outcome:         t.Outcome,
		Side:            string(t.Side),
		Status:          string(t.Status),
		TraderWallet:    t.TraderWallet,
		EntryPrice:      t.EntryPrice,
		Size:            t.Size,
		CurrentPrice:    t.CurrentPrice,
		ExitPrice:       t.ExitPrice,
		Invested:        p.Invested,
		PnL:             p.PnL,
		ROI:             p.ROI,
		CurrentValue:    p.CurrentValue,
		Open:            p.Open,
		MarketResolved:  t.MarketResolved,
		ResolvedOutcome: t.ResolvedOutcome,
		UserClosedAt:    t.UserClosedAt,
		CreatedAt:       t.CreatedAt,
	}
}

type failureJSON struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type portfolioJSON struct {
	Positions []positionJSON `json:"positions"`
	Summary   domain.Summary `json:"summary"`
	Failures  []failureJSON  `json:"failures"`
	Degraded  bool           `json:"degraded"`
	Total     int            `json:"total"`
	Page      int            `json:"page"`
	HasMore   bool           `json:"has_more"`
	LoadedAt  time.Time      `json:"loaded_at"`
}

type summaryPointJSON struct {
	TakenAt       time.Time `json:"taken_at"`
	TradeCount    int       `json:"trade_count"`
	TotalPnL      float64   `json:"total_pnl"`
	RealizedPnL   float64   `json:"realized_pnl"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	TotalVolume   float64   `json:"total_volume"`
	ROI           float64   `json:"roi"`
	WinRate       float64   `json:"win_rate"`
}

type errorJSON struct {
	Error string `json:"error"`
}

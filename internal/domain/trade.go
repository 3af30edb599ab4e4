package domain

import "time"

// TradeSource indica de dónde viene un trade.
type TradeSource string

const (
	SourceManual   TradeSource = "manual"
	SourcePlatform TradeSource = "platform"
)

// TradeStatus es el estado de un trade en la vista del portfolio.
type TradeStatus string

const (
	StatusOpen               TradeStatus = "open"
	StatusUserClosed         TradeStatus = "user-closed"
	StatusCounterpartyClosed TradeStatus = "counterparty-closed"
	StatusResolved           TradeStatus = "resolved"
)

// Side es la dirección de una orden.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TradeRecord es la unión cerrada de las dos fuentes de trades:
// ManualTrade y PlatformOrder. El normalizer hace type switch sobre ella.
type TradeRecord interface {
	Source() TradeSource
	RecordID() string
	isTradeRecord()
}

// ManualTrade es un copy trade registrado a mano por el usuario.
type ManualTrade struct {
	ID                   string
	UserID               string
	MarketID             string // condition_id
	MarketTitle          string
	MarketSlug           string
	MarketImage          string
	Outcome              string // "YES" | "NO" | nombre del outcome
	TraderWallet         string
	TraderUsername       string
	PriceWhenCopied      *float64 // precio de entrada (0-1)
	EntrySize            *float64 // shares
	AmountInvested       *float64 // USDC, gana sobre size × price
	CurrentPrice         *float64 // último precio guardado
	ROI                  *float64 // % guardado
	RealizedPnL          *float64
	UserClosedAt         *time.Time
	UserExitPrice        *float64
	TraderPositionClosed bool
	MarketResolved       bool
	ResolvedOutcome      string
	CreatedAt            time.Time
}

func (ManualTrade) Source() TradeSource { return SourceManual }
func (t ManualTrade) RecordID() string { return t.ID }
func (ManualTrade) isTradeRecord() {}

// OrderStatus es el estado de una orden ejecutada por la plataforma.
type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderPartial   OrderStatus = "partial"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderClosed    OrderStatus = "closed"
	OrderSold      OrderStatus = "sold"
)

// PlatformOrder es una orden ejecutada por el sistema de copy trading.
// Es historial inmutable: nunca se edita ni se borra desde el portfolio.
type PlatformOrder struct {
	ID                   string
	UserID               string
	MarketID             string
	TokenID              string
	Outcome              string
	MarketTitle          string
	MarketSlug           string
	MarketImage          string
	Side                 Side
	Status               OrderStatus
	FilledSize           float64
	AvgPrice             *float64
	AmountInvested       *float64
	RealizedPnL          *float64
	ClosedAt             *time.Time // fill de cierre, si existe
	ExitPrice            *float64
	CurrentPrice         *float64
	TraderWallet         string
	TraderPositionClosed bool
	MarketResolved       bool
	ResolvedOutcome      string
	CreatedAt            time.Time
}

func (PlatformOrder) Source() TradeSource { return SourcePlatform }
func (o PlatformOrder) RecordID() string { return o.ID }
func (PlatformOrder) isTradeRecord() {}

// TradePage es una página del endpoint de historial de copy trades.
type TradePage struct {
	Trades  []ManualTrade
	Total   int
	HasMore bool
}

// UnifiedTrade es la forma única que consumen el calculador y el agregador.
// Se trata como valor inmutable: cada etapa devuelve copias nuevas.
type UnifiedTrade struct {
	ID              string
	Source          TradeSource
	UserID          string
	MarketID        string
	MarketTitle     string
	MarketSlug      string
	MarketImage     string
	Outcome         string
	Side            Side
	TraderWallet    string
	EntryPrice      *float64
	Size            *float64
	StoredInvested  *float64
	CurrentPrice    *float64 // precio de display (live o último conocido)
	ExitPrice       *float64
	StoredROI       *float64
	StoredPnL       *float64
	Status          TradeStatus
	UserClosedAt    *time.Time
	MarketResolved  bool
	ResolvedOutcome string
	CreatedAt       time.Time
}

// IsShort devuelve true para trades de venta, cuyo retorno tiene signo invertido.
func (t UnifiedTrade) IsShort() bool {
	return t.Side == SideSell
}

// Float devuelve un puntero a v. Útil para construir registros con campos opcionales.
func Float(v float64) *float64 {
	return &v
}

// TradeUpdate son los campos editables de un copy trade manual.
// Un campo nil no se toca.
type TradeUpdate struct {
	PriceWhenCopied *float64
	EntrySize       *float64
	AmountInvested  *float64
	MarketTitle     *string
	Outcome         *string
}

// Empty devuelve true si la edición no cambia nada.
func (u TradeUpdate) Empty() bool {
	return u.PriceWhenCopied == nil && u.EntrySize == nil && u.AmountInvested == nil &&
		u.MarketTitle == nil && u.Outcome == nil
}

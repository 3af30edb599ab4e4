package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// TradeStore persiste y muta los copy trades manuales.
// Todas las operaciones están acotadas al userID y son idempotentes por fila.
type TradeStore interface {
	CopyTradeHistory

	CreateTrade(ctx context.Context, t domain.ManualTrade) (domain.ManualTrade, error)
	GetTrade(ctx context.Context, userID, tradeID string) (domain.ManualTrade, error)

	// CloseTrade guarda exit price, ROI (nil si no hay entry) y timestamp de cierre.
	CloseTrade(ctx context.Context, userID, tradeID string, exitPrice float64, roi *float64, closedAt time.Time) error

	// ReopenTrade pone a NULL exit price y timestamp de cierre, y devuelve
	// el ROI que el trade tenía antes de cerrarse.
	ReopenTrade(ctx context.Context, userID, tradeID string) error

	UpdateTrade(ctx context.Context, userID, tradeID string, upd domain.TradeUpdate) error
	DeleteTrade(ctx context.Context, userID, tradeID string) error
}

// OrderStore persiste las órdenes confirmadas por el sistema de ejecución.
type OrderStore interface {
	OrderHistory
	SaveOrder(ctx context.Context, o domain.PlatformOrder) error
}

// SummaryStore guarda un punto del resumen en cada ciclo de refresco.
type SummaryStore interface {
	SaveSummary(ctx context.Context, userID string, s domain.Summary, at time.Time) error

	// GetSummaryHistory devuelve los puntos registrados en el rango de tiempo dado.
	GetSummaryHistory(ctx context.Context, userID string, from, to time.Time) ([]domain.SummaryPoint, error)
}

// Storage agrupa todo lo que ofrece un backend de persistencia.
type Storage interface {
	TradeStore
	OrderStore
	SummaryStore

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}

package ports

import (
	"context"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// CopyTradeHistory lista los copy trades registrados a mano por un usuario.
type CopyTradeHistory interface {
	// ListCopyTrades devuelve una página del historial, más recientes primero.
	// HasMore indica si quedan filas tras offset+limit.
	ListCopyTrades(ctx context.Context, userID string, limit, offset int) (domain.TradePage, error)
}

// OrderHistory lista las órdenes ejecutadas por la plataforma para un usuario.
type OrderHistory interface {
	ListOrders(ctx context.Context, userID string) ([]domain.PlatformOrder, error)
}

// PositionProvider obtiene el snapshot de posiciones abiertas de una wallet.
type PositionProvider interface {
	FetchPositions(ctx context.Context, wallet string) ([]domain.OpenPosition, error)
}

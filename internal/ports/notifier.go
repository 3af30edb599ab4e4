package ports

import (
	"context"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// Notifier presenta el snapshot del portfolio al usuario.
type Notifier interface {
	// Notify muestra posiciones, resumen y fuentes que fallaron.
	// En la implementación de consola, imprime tablas formateadas.
	Notify(ctx context.Context, snap domain.PortfolioSnapshot) error
}

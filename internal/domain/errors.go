package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidInput indica un input de usuario inválido (p.ej. cerrar sin exit price).
	ErrInvalidInput = errors.New("invalid input")
	// ErrTradeNotFound indica que el trade no existe para ese usuario.
	ErrTradeNotFound = errors.New("trade not found")
	// ErrImmutableTrade se devuelve al intentar mutar una orden de la plataforma.
	ErrImmutableTrade = errors.New("platform-executed trades are immutable")
)

// SourceError describe el fallo de una fuente de datos durante una carga.
// Las cargas siguen adelante; el error solo se reporta.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error {
	return e.Err
}

// ValidateExitPrice comprueba que el precio de salida sea una probabilidad.
func ValidateExitPrice(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("exit price %v out of [0,1]: %w", p, ErrInvalidInput)
	}
	return nil
}

// Validate comprueba los campos de una edición: entry ∈ (0,1], size e
// invested no negativos.
func (u TradeUpdate) Validate() error {
	if u.Empty() {
		return fmt.Errorf("empty update: %w", ErrInvalidInput)
	}
	if u.PriceWhenCopied != nil && entryPrice(u.PriceWhenCopied) == nil {
		return fmt.Errorf("entry price %v out of (0,1]: %w", *u.PriceWhenCopied, ErrInvalidInput)
	}
	if u.EntrySize != nil && nonNegative(u.EntrySize) == nil {
		return fmt.Errorf("entry size %v must be >= 0: %w", *u.EntrySize, ErrInvalidInput)
	}
	if u.AmountInvested != nil && nonNegative(u.AmountInvested) == nil {
		return fmt.Errorf("amount invested %v must be >= 0: %w", *u.AmountInvested, ErrInvalidInput)
	}
	return nil
}

// ValidateNew comprueba un copy trade manual antes de crearlo.
func (t ManualTrade) ValidateNew() error {
	if t.UserID == "" || t.MarketID == "" {
		return fmt.Errorf("user_id and market_id are required: %w", ErrInvalidInput)
	}
	if t.PriceWhenCopied != nil && entryPrice(t.PriceWhenCopied) == nil {
		return fmt.Errorf("entry price %v out of (0,1]: %w", *t.PriceWhenCopied, ErrInvalidInput)
	}
	if t.EntrySize != nil && nonNegative(t.EntrySize) == nil {
		return fmt.Errorf("entry size %v must be >= 0: %w", *t.EntrySize, ErrInvalidInput)
	}
	if t.AmountInvested != nil && nonNegative(t.AmountInvested) == nil {
		return fmt.Errorf("amount invested %v must be >= 0: %w", *t.AmountInvested, ErrInvalidInput)
	}
	return nil
}

// Validate comprueba una orden confirmada antes de guardarla.
func (o PlatformOrder) Validate() error {
	if o.ID == "" || o.UserID == "" || o.MarketID == "" {
		return fmt.Errorf("id, user_id and market_id are required: %w", ErrInvalidInput)
	}
	if o.Side != SideBuy && o.Side != SideSell {
		return fmt.Errorf("side %q: %w", o.Side, ErrInvalidInput)
	}
	switch o.Status {
	case OrderOpen, OrderPartial, OrderFilled, OrderCancelled, OrderClosed, OrderSold:
	default:
		return fmt.Errorf("status %q: %w", o.Status, ErrInvalidInput)
	}
	if math.IsNaN(o.FilledSize) || o.FilledSize < 0 {
		return fmt.Errorf("filled size %v must be >= 0: %w", o.FilledSize, ErrInvalidInput)
	}
	if o.AvgPrice != nil && entryPrice(o.AvgPrice) == nil {
		return fmt.Errorf("avg price %v out of (0,1]: %w", *o.AvgPrice, ErrInvalidInput)
	}
	if o.ExitPrice != nil {
		if err := ValidateExitPrice(*o.ExitPrice); err != nil {
			return err
		}
	}
	return nil
}

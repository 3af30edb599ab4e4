package portfolio_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMutationService(store *memStore, orders *mockOrders) *portfolio.Service {
	deps := portfolio.Deps{History: store, Trades: store}
	if orders != nil {
		deps.Orders = orders
	}
	return portfolio.New(portfolio.DefaultConfig(), deps)
}

func TestCloseTrade_ComputesROI(t *testing.T) {
	store := newMemStore(makeManual("t1", "m1", "x", 0.60, 100, 0.70, 0))
	svc := newMutationService(store, nil)

	got, err := svc.CloseTrade(context.Background(), "u1", "t1", 0.75)
	require.NoError(t, err)
	require.NotNil(t, got.UserClosedAt)
	require.NotNil(t, got.UserExitPrice)
	assert.Equal(t, 0.75, *got.UserExitPrice)
	require.NotNil(t, got.ROI)
	assert.InDelta(t, 25.0, *got.ROI, 1e-9)
}

func TestCloseTrade_ThenReopenRestoresOpenState(t *testing.T) {
	orig := makeManual("t1", "m1", "x", 0.60, 100, 0.70, 0)
	store := newMemStore(orig)
	svc := newMutationService(store, nil)
	ctx := context.Background()

	_, err := svc.CloseTrade(ctx, "u1", "t1", 0.9)
	require.NoError(t, err)

	reopened, err := svc.ReopenTrade(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Nil(t, reopened.UserExitPrice)
	assert.Nil(t, reopened.UserClosedAt)
	assert.Nil(t, reopened.ROI)
	assert.Equal(t, orig, reopened)

	// reabrir otra vez es idempotente
	again, err := svc.ReopenTrade(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, reopened, again)

	snap, err := svc.Load(ctx, portfolio.Account{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, domain.StatusOpen, snap.Positions[0].Trade.Status)
}

func TestCloseTrade_ReopenRestoresStoredROI(t *testing.T) {
	orig := makeManual("t1", "m1", "x", 0.60, 100, 0.70, 0)
	orig.ROI = domain.Float(16.7)
	svc := newMutationService(newMemStore(orig), nil)
	ctx := context.Background()

	_, err := svc.CloseTrade(ctx, "u1", "t1", 0.9)
	require.NoError(t, err)
	// cerrar dos veces no pisa el ROI guardado
	closed, err := svc.CloseTrade(ctx, "u1", "t1", 0.3)
	require.NoError(t, err)
	require.NotNil(t, closed.ROI)
	assert.InDelta(t, -50.0, *closed.ROI, 1e-9)

	reopened, err := svc.ReopenTrade(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, orig, reopened)
}

func TestCloseTrade_InvalidExitPrice(t *testing.T) {
	svc := newMutationService(newMemStore(makeManual("t1", "m1", "x", 0.6, 1, 0.6, 0)), nil)
	for _, p := range []float64{-0.1, 1.01} {
		_, err := svc.CloseTrade(context.Background(), "u1", "t1", p)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	}
}

func TestCloseTrade_UnknownAndForeignTrade(t *testing.T) {
	svc := newMutationService(newMemStore(makeManual("t1", "m1", "x", 0.6, 1, 0.6, 0)), nil)
	_, err := svc.CloseTrade(context.Background(), "u1", "nope", 0.5)
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)

	_, err = svc.CloseTrade(context.Background(), "u2", "t1", 0.5)
	assert.ErrorIs(t, err, domain.ErrTradeNotFound)
}

func TestMutations_PlatformOrdersAreImmutable(t *testing.T) {
	orders := &mockOrders{orders: []domain.PlatformOrder{{ID: "o1", UserID: "u1", MarketID: "m1"}}}
	svc := newMutationService(newMemStore(), orders)
	ctx := context.Background()

	_, err := svc.CloseTrade(ctx, "u1", "o1", 0.5)
	assert.ErrorIs(t, err, domain.ErrImmutableTrade)
	_, err = svc.ReopenTrade(ctx, "u1", "o1")
	assert.ErrorIs(t, err, domain.ErrImmutableTrade)
	err = svc.DeleteTrade(ctx, "u1", "o1")
	assert.ErrorIs(t, err, domain.ErrImmutableTrade)
}

func TestEditTrade(t *testing.T) {
	store := newMemStore(makeManual("t1", "m1", "x", 0.6, 100, 0.6, 0))
	svc := newMutationService(store, nil)
	ctx := context.Background()

	got, err := svc.EditTrade(ctx, "u1", "t1", domain.TradeUpdate{PriceWhenCopied: domain.Float(0.5), EntrySize: domain.Float(40)})
	require.NoError(t, err)
	assert.Equal(t, 0.5, *got.PriceWhenCopied)
	assert.Equal(t, 40.0, *got.EntrySize)

	_, err = svc.EditTrade(ctx, "u1", "t1", domain.TradeUpdate{PriceWhenCopied: domain.Float(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.EditTrade(ctx, "u1", "t1", domain.TradeUpdate{EntrySize: domain.Float(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = svc.EditTrade(ctx, "u1", "t1", domain.TradeUpdate{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeleteTrade(t *testing.T) {
	store := newMemStore(makeManual("t1", "m1", "x", 0.6, 100, 0.6, 0))
	svc := newMutationService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.DeleteTrade(ctx, "u1", "t1"))
	assert.ErrorIs(t, svc.DeleteTrade(ctx, "u1", "t1"), domain.ErrTradeNotFound)
}

func TestCreateTrade(t *testing.T) {
	store := newMemStore()
	svc := newMutationService(store, nil)
	ctx := context.Background()

	created, err := svc.CreateTrade(ctx, domain.ManualTrade{
		UserID:          "u1",
		MarketID:        "m1",
		Outcome:         "YES",
		PriceWhenCopied: domain.Float(0.42),
		EntrySize:       domain.Float(10),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.WithinDuration(t, time.Now(), created.CreatedAt, time.Minute)

	_, err = svc.CreateTrade(ctx, domain.ManualTrade{UserID: "u1", MarketID: "m1", PriceWhenCopied: domain.Float(2)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMutations_NoStoreConfigured(t *testing.T) {
	svc := portfolio.New(portfolio.DefaultConfig(), portfolio.Deps{})
	_, err := svc.CloseTrade(context.Background(), "u1", "t1", 0.5)
	assert.Error(t, err)
}

func TestRecordOrder(t *testing.T) {
	orders := &mockOrders{}
	svc := portfolio.New(portfolio.DefaultConfig(), portfolio.Deps{Orders: orders, OrderLog: orders})
	ctx := context.Background()

	o := domain.PlatformOrder{
		ID: "o1", UserID: "u1", MarketID: "m1", Outcome: "YES",
		Side: domain.SideBuy, Status: domain.OrderFilled, FilledSize: 10, AvgPrice: domain.Float(0.4),
	}
	require.NoError(t, svc.RecordOrder(ctx, o))
	require.Len(t, orders.orders, 1)
	assert.False(t, orders.orders[0].CreatedAt.IsZero())

	bad := o
	bad.Side = "HOLD"
	assert.ErrorIs(t, svc.RecordOrder(ctx, bad), domain.ErrInvalidInput)
	bad = o
	bad.AvgPrice = domain.Float(1.5)
	assert.ErrorIs(t, svc.RecordOrder(ctx, bad), domain.ErrInvalidInput)
	assert.Len(t, orders.orders, 1)

	// la orden recién guardada ya es inmutable desde el portfolio
	_, err := svc.CloseTrade(ctx, "u1", "o1", 0.5)
	assert.Error(t, err)
}

func TestRecordOrder_NoStore(t *testing.T) {
	svc := portfolio.New(portfolio.DefaultConfig(), portfolio.Deps{})
	err := svc.RecordOrder(context.Background(), domain.PlatformOrder{
		ID: "o1", UserID: "u1", MarketID: "m1", Side: domain.SideBuy, Status: domain.OrderOpen,
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSummaryHistory(t *testing.T) {
	svc := portfolio.New(portfolio.DefaultConfig(), portfolio.Deps{})
	ctx := context.Background()
	now := time.Now()

	points, err := svc.SummaryHistory(ctx, "u1", now.Add(-time.Hour), now)
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)

	_, err = svc.SummaryHistory(ctx, "u1", now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

package portfolio_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// --- mocks ---

type mockHistory struct {
	trades []domain.ManualTrade
	err    error
	failAt int // offset que falla; -1 = nunca
	calls  int
	mu     sync.Mutex
}

func (m *mockHistory) ListCopyTrades(_ context.Context, _ string, limit, offset int) (domain.TradePage, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil && (m.failAt < 0 || m.failAt == offset) {
		return domain.TradePage{}, m.err
	}
	if offset >= len(m.trades) {
		return domain.TradePage{Total: len(m.trades)}, nil
	}
	end := offset + limit
	if end > len(m.trades) {
		end = len(m.trades)
	}
	return domain.TradePage{
		Trades:  m.trades[offset:end],
		Total:   len(m.trades),
		HasMore: end < len(m.trades),
	}, nil
}

type mockOrders struct {
	orders []domain.PlatformOrder
	err    error
}

func (m *mockOrders) ListOrders(_ context.Context, _ string) ([]domain.PlatformOrder, error) {
	return m.orders, m.err
}

func (m *mockOrders) SaveOrder(_ context.Context, o domain.PlatformOrder) error {
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, o)
	return nil
}

type mockPositions struct {
	positions []domain.OpenPosition
	err       error
}

func (m *mockPositions) FetchPositions(_ context.Context, _ string) ([]domain.OpenPosition, error) {
	return m.positions, m.err
}

type mockMarkets struct {
	meta  map[string]domain.MarketMeta
	err   error
	asked []string
}

func (m *mockMarkets) FetchMarketMeta(_ context.Context, ids []string) (map[string]domain.MarketMeta, error) {
	m.asked = append(m.asked, ids...)
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]domain.MarketMeta)
	for _, id := range ids {
		if mm, ok := m.meta[id]; ok {
			out[id] = mm
		}
	}
	return out, nil
}

type mockQuotes struct {
	quotes map[string]domain.Quote
	fail   map[string]bool
	mu     sync.Mutex
	calls  map[string]int
}

func (m *mockQuotes) FetchQuote(_ context.Context, marketID string) (domain.Quote, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[marketID]++
	m.mu.Unlock()

	if m.fail[marketID] {
		return domain.Quote{}, errors.New("clob 503")
	}
	q, ok := m.quotes[marketID]
	if !ok {
		return domain.Quote{}, errors.New("market not found")
	}
	return q, nil
}

type mockNotifier struct {
	notified []domain.PortfolioSnapshot
	err      error
}

func (m *mockNotifier) Notify(_ context.Context, snap domain.PortfolioSnapshot) error {
	m.notified = append(m.notified, snap)
	return m.err
}

type mockSummaries struct {
	saved []domain.Summary
}

func (m *mockSummaries) SaveSummary(_ context.Context, _ string, s domain.Summary, _ time.Time) error {
	m.saved = append(m.saved, s)
	return nil
}

func (m *mockSummaries) GetSummaryHistory(_ context.Context, _ string, _, _ time.Time) ([]domain.SummaryPoint, error) {
	return nil, nil
}

// memStore es un TradeStore en memoria.
type memStore struct {
	mu      sync.Mutex
	trades  map[string]domain.ManualTrade
	openROI map[string]*float64 // ROI previo al cierre, como la columna open_roi
	seq     int
}

func newMemStore(trades ...domain.ManualTrade) *memStore {
	s := &memStore{trades: make(map[string]domain.ManualTrade), openROI: make(map[string]*float64)}
	for _, t := range trades {
		s.trades[t.ID] = t
	}
	return s
}

func (s *memStore) ListCopyTrades(_ context.Context, userID string, limit, offset int) (domain.TradePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []domain.ManualTrade
	for _, t := range s.trades {
		if t.UserID == userID {
			rows = append(rows, t)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	if offset > len(rows) {
		offset = len(rows)
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return domain.TradePage{Trades: rows[offset:end], Total: len(rows), HasMore: end < len(rows)}, nil
}

func (s *memStore) CreateTrade(_ context.Context, t domain.ManualTrade) (domain.ManualTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if t.ID == "" {
		t.ID = "mem-" + strconv.Itoa(s.seq)
	}
	s.trades[t.ID] = t
	return t, nil
}

func (s *memStore) GetTrade(_ context.Context, userID, id string) (domain.ManualTrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok || t.UserID != userID {
		return domain.ManualTrade{}, domain.ErrTradeNotFound
	}
	return t, nil
}

func (s *memStore) CloseTrade(_ context.Context, userID, id string, exit float64, roi *float64, at time.Time) error {
	return s.mutate(userID, id, func(t *domain.ManualTrade) {
		if t.UserClosedAt == nil {
			s.openROI[id] = t.ROI
		}
		t.UserExitPrice = &exit
		t.ROI = roi
		t.UserClosedAt = &at
	})
}

func (s *memStore) ReopenTrade(_ context.Context, userID, id string) error {
	return s.mutate(userID, id, func(t *domain.ManualTrade) {
		if t.UserClosedAt != nil {
			t.ROI = s.openROI[id]
		}
		delete(s.openROI, id)
		t.UserExitPrice = nil
		t.UserClosedAt = nil
	})
}

func (s *memStore) UpdateTrade(_ context.Context, userID, id string, upd domain.TradeUpdate) error {
	return s.mutate(userID, id, func(t *domain.ManualTrade) {
		if upd.PriceWhenCopied != nil {
			t.PriceWhenCopied = upd.PriceWhenCopied
		}
		if upd.EntrySize != nil {
			t.EntrySize = upd.EntrySize
		}
		if upd.AmountInvested != nil {
			t.AmountInvested = upd.AmountInvested
		}
	})
}

func (s *memStore) DeleteTrade(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trades[id]; !ok || t.UserID != userID {
		return domain.ErrTradeNotFound
	}
	delete(s.trades, id)
	return nil
}

func (s *memStore) mutate(userID, id string, fn func(*domain.ManualTrade)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trades[id]
	if !ok || t.UserID != userID {
		return domain.ErrTradeNotFound
	}
	fn(&t)
	s.trades[id] = t
	return nil
}

// --- helpers ---

var t0 = time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)

func makeManual(id, marketID, title string, entry, size, current float64, age time.Duration) domain.ManualTrade {
	return domain.ManualTrade{
		ID:              id,
		UserID:          "u1",
		MarketID:        marketID,
		MarketTitle:     title,
		Outcome:         "YES",
		PriceWhenCopied: domain.Float(entry),
		EntrySize:       domain.Float(size),
		CurrentPrice:    domain.Float(current),
		CreatedAt:       t0.Add(-age),
	}
}

func yesQuote(marketID string, yes float64) domain.Quote {
	return domain.Quote{
		MarketID: marketID,
		Prices:   map[string]float64{"YES": yes, "NO": 1 - yes},
	}
}

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alejandrodnm/polycopy/internal/adapters/httpapi"
	"github.com/alejandrodnm/polycopy/internal/adapters/storage"
	"github.com/alejandrodnm/polycopy/internal/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := portfolio.New(portfolio.DefaultConfig(), portfolio.Deps{
		History:   db,
		Orders:    db,
		OrderLog:  db,
		Trades:    db,
		Summaries: db,
	})
	return httpapi.NewServer(svc, httpapi.DefaultOptions()).Handler()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createTrade(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/v1/users/u1/trades", map[string]any{
		"market_id":         "0xbtc",
		"market_title":      "Will Bitcoin hit 100k?",
		"outcome":           "YES",
		"price_when_copied": 0.6,
		"entry_size":        100,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id, _ := decode(t, rec)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"polycopy"}`, rec.Body.String())
}

func TestCreateTrade_AppearsInPortfolio(t *testing.T) {
	h := newTestServer(t)
	createTrade(t, h)

	rec := do(t, h, http.MethodGet, "/api/v1/users/u1/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)

	positions := body["positions"].([]any)
	require.Len(t, positions, 1)
	p := positions[0].(map[string]any)
	assert.Equal(t, "open", p["status"])
	assert.Equal(t, "manual", p["source"])
	assert.InDelta(t, 60.0, p["invested"], 1e-9)
	assert.Equal(t, "Crypto", p["category"])

	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 1, summary["trade_count"])
	assert.Equal(t, false, body["has_more"])
	assert.Equal(t, false, body["degraded"])
	assert.Empty(t, body["failures"])
}

func TestCloseAndReopen(t *testing.T) {
	h := newTestServer(t)
	id := createTrade(t, h)

	rec := do(t, h, http.MethodPost, "/api/v1/users/u1/trades/"+id+"/close", map[string]any{"exit_price": 0.75})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	closed := decode(t, rec)
	assert.InDelta(t, 25.0, closed["roi"], 1e-6)
	assert.NotNil(t, closed["user_closed_at"])

	rec = do(t, h, http.MethodGet, "/api/v1/users/u1/portfolio?status=sold", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["positions"], 1)

	rec = do(t, h, http.MethodPost, "/api/v1/users/u1/trades/"+id+"/reopen", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reopened := decode(t, rec)
	assert.Nil(t, reopened["roi"])
	assert.Nil(t, reopened["user_exit_price"])
	assert.Nil(t, reopened["user_closed_at"])
}

func TestErrorMapping(t *testing.T) {
	h := newTestServer(t)
	id := createTrade(t, h)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"exit price out of range", http.MethodPost, "/api/v1/users/u1/trades/" + id + "/close", map[string]any{"exit_price": 1.5}, http.StatusBadRequest},
		{"missing exit price", http.MethodPost, "/api/v1/users/u1/trades/" + id + "/close", map[string]any{}, http.StatusBadRequest},
		{"bad entry price", http.MethodPatch, "/api/v1/users/u1/trades/" + id, map[string]any{"price_when_copied": 2}, http.StatusBadRequest},
		{"empty edit", http.MethodPatch, "/api/v1/users/u1/trades/" + id, map[string]any{}, http.StatusBadRequest},
		{"unknown trade", http.MethodDelete, "/api/v1/users/u1/trades/nope", nil, http.StatusNotFound},
		{"other user", http.MethodPost, "/api/v1/users/u2/trades/" + id + "/reopen", nil, http.StatusNotFound},
		{"bad status filter", http.MethodGet, "/api/v1/users/u1/portfolio?status=closed", nil, http.StatusBadRequest},
		{"bad sort", http.MethodGet, "/api/v1/users/u1/portfolio?sort=pnl", nil, http.StatusBadRequest},
		{"bad limit", http.MethodGet, "/api/v1/users/u1/copy-trades?limit=x", nil, http.StatusBadRequest},
		{"bad from", http.MethodGet, "/api/v1/users/u1/summary-history?from=yesterday", nil, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestRecordedOrdersAreImmutable(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/users/u1/orders", map[string]any{
		"id":          "o1",
		"market_id":   "0xm",
		"outcome":     "NO",
		"side":        "BUY",
		"status":      "filled",
		"filled_size": 10,
		"avg_price":   0.3,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/users/u1/trades/o1/close", map[string]any{"exit_price": 0.5})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = do(t, h, http.MethodDelete, "/api/v1/users/u1/trades/o1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/users/u1/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	positions := decode(t, rec)["positions"].([]any)
	require.Len(t, positions, 1)
	assert.Equal(t, "platform", positions[0].(map[string]any)["source"])
}

func TestListCopyTrades_Paging(t *testing.T) {
	h := newTestServer(t)
	for i := 0; i < 3; i++ {
		createTrade(t, h)
	}

	rec := do(t, h, http.MethodGet, "/api/v1/users/u1/copy-trades?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Len(t, body["trades"], 2)
	assert.EqualValues(t, 3, body["total"])
	assert.Equal(t, true, body["has_more"])

	rec = do(t, h, http.MethodGet, "/api/v1/users/u1/copy-trades?limit=2&offset=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Len(t, body["trades"], 1)
	assert.Equal(t, false, body["has_more"])
}

func TestSummaryHistory_Empty(t *testing.T) {
	h := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/api/v1/users/u1/summary-history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestCancelledRequestIsNotAServerError(t *testing.T) {
	h := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/portfolio", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, 499, rec.Code, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "internal error")
}

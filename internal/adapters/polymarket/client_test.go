package polymarket_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alejandrodnm/polycopy/internal/adapters/polymarket"
	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

// --- CLOB /markets/{id} ---

const clobOpenMarket = `{
	"condition_id": "0xabc",
	"question": "Will BTC close above 100k?",
	"market_slug": "btc-100k",
	"active": true,
	"closed": false,
	"tokens": [
		{"token_id": "t_yes", "outcome": "Yes", "price": 0.62, "winner": false},
		{"token_id": "t_no",  "outcome": "No",  "price": 0.38, "winner": false}
	]
}`

const clobResolvedMarket = `{
	"condition_id": "0xdef",
	"closed": true,
	"tokens": [
		{"token_id": "t_yes", "outcome": "Yes", "price": 0.999, "winner": true},
		{"token_id": "t_no",  "outcome": "No",  "price": 0.001, "winner": false}
	]
}`

func TestFetchQuote_OpenMarket(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/markets/0xabc", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(clobOpenMarket))
	})

	client := polymarket.NewClient(srv.URL, "", "")
	q, err := client.FetchQuote(context.Background(), "0xabc")
	require.NoError(t, err)

	assert.Equal(t, "0xabc", q.MarketID)
	assert.False(t, q.Closed)
	assert.False(t, q.Resolved)
	p, ok := q.PriceFor("yes")
	require.True(t, ok)
	assert.InDelta(t, 0.62, p, 1e-9)
}

func TestFetchQuote_ResolvedMarket(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(clobResolvedMarket))
	})

	client := polymarket.NewClient(srv.URL, "", "")
	q, err := client.FetchQuote(context.Background(), "0xdef")
	require.NoError(t, err)

	assert.True(t, q.Closed)
	assert.True(t, q.Resolved)
	assert.Equal(t, "YES", q.WinningOutcome)
}

func TestFetchQuote_ClientErrorIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "market not found", http.StatusNotFound)
	})

	client := polymarket.NewClient(srv.URL, "", "")
	_, err := client.FetchQuote(context.Background(), "0xnope")
	require.Error(t, err)

	var se *polymarket.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), calls.Load(), "4xx no se reintenta")
}

func TestFetchQuote_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(clobOpenMarket))
	})

	client := polymarket.NewClient(srv.URL, "", "")
	q, err := client.FetchQuote(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", q.MarketID)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchQuote_EmptyID(t *testing.T) {
	client := polymarket.NewClient("http://127.0.0.1:0", "", "")
	_, err := client.FetchQuote(context.Background(), "")
	assert.Error(t, err)
}

// --- Gamma /markets ---

func TestFetchMarketMeta_Batches(t *testing.T) {
	var calls atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/markets", r.URL.Path)
		ids := strings.Split(r.URL.Query().Get("condition_ids"), ",")
		assert.LessOrEqual(t, len(ids), 20)

		out := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			out = append(out, map[string]any{
				"conditionId": id,
				"question":    "Q " + id,
				"slug":        "slug-" + id,
				"icon":        "icon-" + id + ".png",
			})
		}
		json.NewEncoder(w).Encode(out)
	})

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = fmt.Sprintf("0x%02d", i)
	}

	client := polymarket.NewClient("", srv.URL, "")
	meta, err := client.FetchMarketMeta(context.Background(), ids)
	require.NoError(t, err)

	assert.Equal(t, int32(2), calls.Load(), "25 ids → batch de 20 + batch de 5")
	require.Len(t, meta, 25)
	m := meta["0x07"]
	assert.Equal(t, "Q 0x07", m.Title)
	assert.Equal(t, "slug-0x07", m.Slug)
	assert.Equal(t, "icon-0x07.png", m.Image)
}

func TestFetchMarketMeta_PartialFailure(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Query().Get("condition_ids"), "0xbad") {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Write([]byte(`[{"conditionId": "0xgood", "question": "Good market"}]`))
	})

	ids := []string{"0xgood"}
	for i := 0; i < 19; i++ {
		ids = append(ids, fmt.Sprintf("0xfill%d", i))
	}
	ids = append(ids, "0xbad")

	client := polymarket.NewClient("", srv.URL, "")
	meta, err := client.FetchMarketMeta(context.Background(), ids)
	assert.Error(t, err)
	assert.Equal(t, "Good market", meta["0xgood"].Title)
}

// --- Data API /positions ---

func TestFetchPositions(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/positions", r.URL.Path)
		assert.Equal(t, "0xwallet", r.URL.Query().Get("user"))
		w.Write([]byte(`[
			{"asset": "t1", "conditionId": "0xm1", "size": 12.5, "avgPrice": 0.41, "outcome": "Yes"},
			{"asset": "t2", "conditionId": "0xm2", "size": "3", "avgPrice": "0.2", "outcome": "No"},
			{"asset": "t3", "conditionId": "0xm3", "size": 0, "avgPrice": 0.5, "outcome": "Yes"}
		]`))
	})

	client := polymarket.NewClient("", "", srv.URL)
	positions, err := client.FetchPositions(context.Background(), "0xwallet")
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, domain.OpenPosition{
		TokenID: "t1", MarketID: "0xm1", Outcome: "Yes", Side: domain.SideBuy, Size: 12.5, AvgPrice: 0.41,
	}, positions[0])
	assert.InDelta(t, 3.0, positions[1].Size, 1e-9)

	book := domain.NewPositionBook(positions)
	assert.InDelta(t, 12.5, book.NetSize("0xm1", "YES"), 1e-9)
}

func TestFetchPositions_EmptyWallet(t *testing.T) {
	client := polymarket.NewClient("", "", "http://127.0.0.1:0")
	_, err := client.FetchPositions(context.Background(), "")
	assert.Error(t, err)
}

func TestFetchPositions_PageCapIsAnError(t *testing.T) {
	var calls atomic.Int32
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		offset := r.URL.Query().Get("offset")
		rows := make([]string, 500)
		for i := range rows {
			rows[i] = fmt.Sprintf(`{"asset": "t%s-%d", "conditionId": "0xm%s-%d", "size": 1, "avgPrice": 0.5, "outcome": "Yes"}`, offset, i, offset, i)
		}
		w.Write([]byte("[" + strings.Join(rows, ",") + "]"))
	})

	client := polymarket.NewClient("", "", srv.URL)
	positions, err := client.FetchPositions(context.Background(), "0xwhale")
	assert.ErrorIs(t, err, polymarket.ErrPositionsTruncated)
	assert.Nil(t, positions)
	assert.Equal(t, int32(5), calls.Load())
}

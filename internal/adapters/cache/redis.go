// Package cache envuelve los proveedores de Polymarket con un cache
// read-through en Redis. Los errores nunca se cachean y un Redis caído
// se trata como miss: el cache no puede romper una carga.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/metrics"
	"github.com/alejandrodnm/polycopy/internal/ports"
	"github.com/redis/go-redis/v9"
)

const (
	kindQuote = "quote"
	kindMeta  = "meta"
)

// Open conecta a la URL dada (redis://...) y verifica la conexión.
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("cache.Open: parse url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("cache.Open: ping: %w", err)
	}
	return rdb, nil
}

// Quotes cachea los quotes live. Un mercado resuelto ya no cambia, así que
// se guarda con el TTL largo.
type Quotes struct {
	primary     ports.QuoteProvider
	rdb         *redis.Client
	ttl         time.Duration
	resolvedTTL time.Duration
}

// NewQuotes crea el wrapper. ttl debe ser corto (segundos): es un precio live.
func NewQuotes(primary ports.QuoteProvider, rdb *redis.Client, ttl, resolvedTTL time.Duration) *Quotes {
	return &Quotes{primary: primary, rdb: rdb, ttl: ttl, resolvedTTL: resolvedTTL}
}

// FetchQuote devuelve el quote cacheado o lo pide al proveedor.
func (c *Quotes) FetchQuote(ctx context.Context, marketID string) (domain.Quote, error) {
	data, err := c.rdb.Get(ctx, quoteKey(marketID)).Bytes()
	if err == nil {
		var q domain.Quote
		if json.Unmarshal(data, &q) == nil {
			lookup(kindQuote, "hit")
			return q, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Debug("cache: redis get failed", "key", quoteKey(marketID), "err", err)
	}
	lookup(kindQuote, "miss")

	q, err := c.primary.FetchQuote(ctx, marketID)
	if err != nil {
		return domain.Quote{}, err
	}

	ttl := c.ttl
	if q.Resolved && c.resolvedTTL > 0 {
		ttl = c.resolvedTTL
	}
	if data, err := json.Marshal(q); err == nil {
		c.rdb.Set(ctx, quoteKey(marketID), data, ttl)
	}
	return q, nil
}

// Markets cachea la metadata de Gamma. Título, slug e imagen casi nunca
// cambian, el TTL puede ser de horas.
type Markets struct {
	primary ports.MarketProvider
	rdb     *redis.Client
	ttl     time.Duration
}

// NewMarkets crea el wrapper.
func NewMarkets(primary ports.MarketProvider, rdb *redis.Client, ttl time.Duration) *Markets {
	return &Markets{primary: primary, rdb: rdb, ttl: ttl}
}

// FetchMarketMeta resuelve desde Redis lo que pueda y pide el resto al
// proveedor en una sola llamada. Si el proveedor falla parcialmente se
// devuelve lo obtenido junto al error, igual que el proveedor.
func (c *Markets) FetchMarketMeta(ctx context.Context, marketIDs []string) (map[string]domain.MarketMeta, error) {
	out := make(map[string]domain.MarketMeta, len(marketIDs))
	if len(marketIDs) == 0 {
		return out, nil
	}

	keys := make([]string, len(marketIDs))
	for i, id := range marketIDs {
		keys[i] = metaKey(id)
	}

	var missing []string
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Debug("cache: redis mget failed", "keys", len(keys), "err", err)
		vals = make([]any, len(keys))
	}
	for i, v := range vals {
		s, ok := v.(string)
		var m domain.MarketMeta
		if ok && json.Unmarshal([]byte(s), &m) == nil {
			out[marketIDs[i]] = m
			continue
		}
		missing = append(missing, marketIDs[i])
	}
	metrics.CacheLookups.WithLabelValues(kindMeta, "hit").Add(float64(len(out)))
	metrics.CacheLookups.WithLabelValues(kindMeta, "miss").Add(float64(len(missing)))

	if len(missing) == 0 {
		return out, nil
	}

	fetched, fetchErr := c.primary.FetchMarketMeta(ctx, missing)
	if len(fetched) > 0 {
		pipe := c.rdb.Pipeline()
		for id, m := range fetched {
			out[id] = m
			if data, err := json.Marshal(m); err == nil {
				pipe.Set(ctx, metaKey(id), data, c.ttl)
			}
		}
		if _, err := pipe.Exec(ctx); err != nil {
			slog.Debug("cache: redis pipeline failed", "err", err)
		}
	}
	return out, fetchErr
}

func lookup(kind, result string) {
	metrics.CacheLookups.WithLabelValues(kind, result).Inc()
}

func quoteKey(id string) string { return fmt.Sprintf("polycopy:quote:%s", id) }
func metaKey(id string) string  { return fmt.Sprintf("polycopy:meta:%s", id) }

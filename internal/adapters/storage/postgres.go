package storage

// postgres.go — backend para despliegues compartidos (varias instancias del
// servidor HTTP contra la misma base). Mismo modelo que sqlite.go con tipos
// nativos de Postgres.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS copy_trades (
    id                     TEXT PRIMARY KEY,
    user_id                TEXT NOT NULL,
    market_id              TEXT NOT NULL,
    market_title           TEXT NOT NULL DEFAULT '',
    market_slug            TEXT NOT NULL DEFAULT '',
    market_image           TEXT NOT NULL DEFAULT '',
    outcome                TEXT NOT NULL DEFAULT '',
    trader_wallet          TEXT NOT NULL DEFAULT '',
    trader_username        TEXT NOT NULL DEFAULT '',
    price_when_copied      DOUBLE PRECISION,
    entry_size             DOUBLE PRECISION,
    amount_invested        DOUBLE PRECISION,
    current_price          DOUBLE PRECISION,
    roi                    DOUBLE PRECISION,
    open_roi               DOUBLE PRECISION,
    realized_pnl           DOUBLE PRECISION,
    user_closed_at         TIMESTAMPTZ,
    user_exit_price        DOUBLE PRECISION,
    trader_position_closed BOOLEAN NOT NULL DEFAULT FALSE,
    market_resolved        BOOLEAN NOT NULL DEFAULT FALSE,
    resolved_outcome       TEXT NOT NULL DEFAULT '',
    created_at             TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id                     TEXT PRIMARY KEY,
    user_id                TEXT NOT NULL,
    market_id              TEXT NOT NULL,
    token_id               TEXT NOT NULL DEFAULT '',
    outcome                TEXT NOT NULL DEFAULT '',
    market_title           TEXT NOT NULL DEFAULT '',
    market_slug            TEXT NOT NULL DEFAULT '',
    market_image           TEXT NOT NULL DEFAULT '',
    side                   TEXT NOT NULL DEFAULT 'BUY',
    status                 TEXT NOT NULL,
    filled_size            DOUBLE PRECISION NOT NULL DEFAULT 0,
    avg_price              DOUBLE PRECISION,
    amount_invested        DOUBLE PRECISION,
    realized_pnl           DOUBLE PRECISION,
    closed_at              TIMESTAMPTZ,
    exit_price             DOUBLE PRECISION,
    current_price          DOUBLE PRECISION,
    trader_wallet          TEXT NOT NULL DEFAULT '',
    trader_position_closed BOOLEAN NOT NULL DEFAULT FALSE,
    market_resolved        BOOLEAN NOT NULL DEFAULT FALSE,
    resolved_outcome       TEXT NOT NULL DEFAULT '',
    created_at             TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS summary_history (
    id             BIGSERIAL PRIMARY KEY,
    user_id        TEXT             NOT NULL,
    taken_at       TIMESTAMPTZ      NOT NULL,
    trade_count    INTEGER          NOT NULL DEFAULT 0,
    total_pnl      DOUBLE PRECISION NOT NULL DEFAULT 0,
    realized_pnl   DOUBLE PRECISION NOT NULL DEFAULT 0,
    unrealized_pnl DOUBLE PRECISION NOT NULL DEFAULT 0,
    total_volume   DOUBLE PRECISION NOT NULL DEFAULT 0,
    roi            DOUBLE PRECISION NOT NULL DEFAULT 0,
    win_rate       DOUBLE PRECISION NOT NULL DEFAULT 0
);

ALTER TABLE copy_trades ADD COLUMN IF NOT EXISTS open_roi DOUBLE PRECISION;

CREATE INDEX IF NOT EXISTS idx_trades_user  ON copy_trades(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_user  ON orders(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_summary_user ON summary_history(user_id, taken_at);
`

// PgxPool es el subconjunto de *pgxpool.Pool que usa el store.
// pgxmock.PgxPoolIface también lo cumple.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStorage implementa ports.Storage sobre PostgreSQL.
type PostgresStorage struct {
	pool PgxPool
}

// NewPostgresStorage conecta al DSN dado y aplica el schema.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage.NewPostgresStorage: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage.NewPostgresStorage: apply schema: %w", err)
	}
	return &PostgresStorage{pool: pool}, nil
}

// NewPostgresStorageWithPool usa un pool ya abierto. No aplica el schema.
func NewPostgresStorageWithPool(pool PgxPool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (s *PostgresStorage) ListCopyTrades(ctx context.Context, userID string, limit, offset int) (domain.TradePage, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM copy_trades WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return domain.TradePage{}, fmt.Errorf("storage.ListCopyTrades: count: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeColumns+` FROM copy_trades
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return domain.TradePage{}, fmt.Errorf("storage.ListCopyTrades: query: %w", err)
	}
	defer rows.Close()

	page := domain.TradePage{Total: total}
	for rows.Next() {
		t, err := scanPgTrade(rows)
		if err != nil {
			return domain.TradePage{}, fmt.Errorf("storage.ListCopyTrades: scan row: %w", err)
		}
		page.Trades = append(page.Trades, t)
	}
	if err := rows.Err(); err != nil {
		return domain.TradePage{}, fmt.Errorf("storage.ListCopyTrades: rows: %w", err)
	}
	page.HasMore = offset+len(page.Trades) < total
	return page, nil
}

func (s *PostgresStorage) CreateTrade(ctx context.Context, t domain.ManualTrade) (domain.ManualTrade, error) {
	t = withIdentity(t)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO copy_trades (`+tradeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		t.ID, t.UserID, t.MarketID, t.MarketTitle, t.MarketSlug, t.MarketImage,
		t.Outcome, t.TraderWallet, t.TraderUsername,
		t.PriceWhenCopied, t.EntrySize, t.AmountInvested, t.CurrentPrice, t.ROI, t.RealizedPnL,
		t.UserClosedAt, t.UserExitPrice,
		t.TraderPositionClosed, t.MarketResolved, t.ResolvedOutcome, t.CreatedAt,
	)
	if err != nil {
		return domain.ManualTrade{}, fmt.Errorf("storage.CreateTrade: insert %s: %w", t.ID, err)
	}
	return t, nil
}

func (s *PostgresStorage) GetTrade(ctx context.Context, userID, tradeID string) (domain.ManualTrade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM copy_trades WHERE id = $1 AND user_id = $2`, tradeID, userID)
	t, err := scanPgTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ManualTrade{}, fmt.Errorf("storage.GetTrade: %s: %w", tradeID, domain.ErrTradeNotFound)
	}
	if err != nil {
		return domain.ManualTrade{}, fmt.Errorf("storage.GetTrade: scan %s: %w", tradeID, err)
	}
	return t, nil
}

func (s *PostgresStorage) CloseTrade(ctx context.Context, userID, tradeID string, exitPrice float64, roi *float64, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE copy_trades
		 SET user_exit_price = $1, roi = $2, user_closed_at = $3,
		     open_roi = CASE WHEN user_closed_at IS NULL THEN roi ELSE open_roi END
		 WHERE id = $4 AND user_id = $5`,
		exitPrice, roi, closedAt.UTC(), tradeID, userID)
	return checkTag("storage.CloseTrade", tradeID, tag, err)
}

func (s *PostgresStorage) ReopenTrade(ctx context.Context, userID, tradeID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE copy_trades
		 SET user_exit_price = NULL, user_closed_at = NULL,
		     roi = CASE WHEN user_closed_at IS NULL THEN roi ELSE open_roi END,
		     open_roi = NULL
		 WHERE id = $1 AND user_id = $2`,
		tradeID, userID)
	return checkTag("storage.ReopenTrade", tradeID, tag, err)
}

func (s *PostgresStorage) UpdateTrade(ctx context.Context, userID, tradeID string, upd domain.TradeUpdate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE copy_trades SET
		     price_when_copied = COALESCE($1, price_when_copied),
		     entry_size        = COALESCE($2, entry_size),
		     amount_invested   = COALESCE($3, amount_invested),
		     market_title      = COALESCE($4, market_title),
		     outcome           = COALESCE($5, outcome)
		 WHERE id = $6 AND user_id = $7`,
		upd.PriceWhenCopied, upd.EntrySize, upd.AmountInvested, upd.MarketTitle, upd.Outcome,
		tradeID, userID)
	return checkTag("storage.UpdateTrade", tradeID, tag, err)
}

func (s *PostgresStorage) DeleteTrade(ctx context.Context, userID, tradeID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM copy_trades WHERE id = $1 AND user_id = $2`, tradeID, userID)
	return checkTag("storage.DeleteTrade", tradeID, tag, err)
}

func (s *PostgresStorage) SaveOrder(ctx context.Context, o domain.PlatformOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		 ON CONFLICT (id) DO UPDATE SET
		     status                 = EXCLUDED.status,
		     filled_size            = EXCLUDED.filled_size,
		     avg_price              = EXCLUDED.avg_price,
		     amount_invested        = EXCLUDED.amount_invested,
		     realized_pnl           = EXCLUDED.realized_pnl,
		     closed_at              = EXCLUDED.closed_at,
		     exit_price             = EXCLUDED.exit_price,
		     current_price          = EXCLUDED.current_price,
		     trader_position_closed = EXCLUDED.trader_position_closed,
		     market_resolved        = EXCLUDED.market_resolved,
		     resolved_outcome       = EXCLUDED.resolved_outcome`,
		o.ID, o.UserID, o.MarketID, o.TokenID, o.Outcome, o.MarketTitle, o.MarketSlug, o.MarketImage,
		string(o.Side), string(o.Status), o.FilledSize, o.AvgPrice, o.AmountInvested, o.RealizedPnL,
		o.ClosedAt, o.ExitPrice, o.CurrentPrice,
		o.TraderWallet, o.TraderPositionClosed, o.MarketResolved, o.ResolvedOutcome, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveOrder: upsert %s: %w", o.ID, err)
	}
	return nil
}

func (s *PostgresStorage) ListOrders(ctx context.Context, userID string) ([]domain.PlatformOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListOrders: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PlatformOrder
	for rows.Next() {
		var o domain.PlatformOrder
		var side, status string
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.MarketID, &o.TokenID, &o.Outcome, &o.MarketTitle, &o.MarketSlug, &o.MarketImage,
			&side, &status, &o.FilledSize, &o.AvgPrice, &o.AmountInvested, &o.RealizedPnL,
			&o.ClosedAt, &o.ExitPrice, &o.CurrentPrice,
			&o.TraderWallet, &o.TraderPositionClosed, &o.MarketResolved, &o.ResolvedOutcome, &o.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.ListOrders: scan row: %w", err)
		}
		o.Side = domain.Side(side)
		o.Status = domain.OrderStatus(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) SaveSummary(ctx context.Context, userID string, sum domain.Summary, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO summary_history
		     (user_id, taken_at, trade_count, total_pnl, realized_pnl, unrealized_pnl, total_volume, roi, win_rate)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		userID, at.UTC(), sum.TradeCount, sum.TotalPnL, sum.RealizedPnL, sum.UnrealizedPnL,
		sum.TotalVolume, sum.ROI, sum.WinRate,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSummary: insert: %w", err)
	}
	return nil
}

func (s *PostgresStorage) GetSummaryHistory(ctx context.Context, userID string, from, to time.Time) ([]domain.SummaryPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id, taken_at, trade_count, total_pnl, realized_pnl, unrealized_pnl, total_volume, roi, win_rate
		 FROM summary_history
		 WHERE user_id = $1 AND taken_at BETWEEN $2 AND $3
		 ORDER BY taken_at`, userID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("storage.GetSummaryHistory: query: %w", err)
	}
	defer rows.Close()

	var points []domain.SummaryPoint
	for rows.Next() {
		var p domain.SummaryPoint
		if err := rows.Scan(&p.UserID, &p.TakenAt, &p.TradeCount, &p.TotalPnL, &p.RealizedPnL,
			&p.UnrealizedPnL, &p.TotalVolume, &p.ROI, &p.WinRate); err != nil {
			return nil, fmt.Errorf("storage.GetSummaryHistory: scan row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Close cierra el pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func scanPgTrade(r rowScanner) (domain.ManualTrade, error) {
	var t domain.ManualTrade
	err := r.Scan(
		&t.ID, &t.UserID, &t.MarketID, &t.MarketTitle, &t.MarketSlug, &t.MarketImage,
		&t.Outcome, &t.TraderWallet, &t.TraderUsername,
		&t.PriceWhenCopied, &t.EntrySize, &t.AmountInvested, &t.CurrentPrice, &t.ROI, &t.RealizedPnL,
		&t.UserClosedAt, &t.UserExitPrice,
		&t.TraderPositionClosed, &t.MarketResolved, &t.ResolvedOutcome, &t.CreatedAt,
	)
	return t, err
}

func checkTag(op, tradeID string, tag pgconn.CommandTag, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, tradeID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %s: %w", op, tradeID, domain.ErrTradeNotFound)
	}
	return nil
}

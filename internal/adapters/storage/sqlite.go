package storage

// sqlite.go — backend por defecto, un fichero local.
//
// Tablas:
//   - `copy_trades`: copy trades manuales, editables por el usuario.
//   - `orders`: órdenes de la plataforma, solo se insertan o actualizan por id.
//   - `summary_history`: un punto del resumen por ciclo de refresco.
//
// Los timestamps se guardan como TEXT en UTC con ancho fijo para que el
// ORDER BY lexicográfico coincida con el cronológico.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
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
    price_when_copied      REAL,
    entry_size             REAL,
    amount_invested        REAL,
    current_price          REAL,
    roi                    REAL,
    open_roi               REAL,
    realized_pnl           REAL,
    user_closed_at         TEXT,
    user_exit_price        REAL,
    trader_position_closed INTEGER NOT NULL DEFAULT 0,
    market_resolved        INTEGER NOT NULL DEFAULT 0,
    resolved_outcome       TEXT NOT NULL DEFAULT '',
    created_at             TEXT NOT NULL
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
    filled_size            REAL NOT NULL DEFAULT 0,
    avg_price              REAL,
    amount_invested        REAL,
    realized_pnl           REAL,
    closed_at              TEXT,
    exit_price             REAL,
    current_price          REAL,
    trader_wallet          TEXT NOT NULL DEFAULT '',
    trader_position_closed INTEGER NOT NULL DEFAULT 0,
    market_resolved        INTEGER NOT NULL DEFAULT 0,
    resolved_outcome       TEXT NOT NULL DEFAULT '',
    created_at             TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS summary_history (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id        TEXT    NOT NULL,
    taken_at       TEXT    NOT NULL,
    trade_count    INTEGER NOT NULL DEFAULT 0,
    total_pnl      REAL    NOT NULL DEFAULT 0,
    realized_pnl   REAL    NOT NULL DEFAULT 0,
    unrealized_pnl REAL    NOT NULL DEFAULT 0,
    total_volume   REAL    NOT NULL DEFAULT 0,
    roi            REAL    NOT NULL DEFAULT 0,
    win_rate       REAL    NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_trades_user  ON copy_trades(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_orders_user  ON orders(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_summary_user ON summary_history(user_id, taken_at);
`

// Columnas añadidas después de la primera versión del schema.
// En una DB nueva fallan con "duplicate column" y se ignoran.
var sqliteMigrations = []string{
	"ALTER TABLE copy_trades ADD COLUMN trader_username TEXT NOT NULL DEFAULT ''",
	"ALTER TABLE orders ADD COLUMN market_image TEXT NOT NULL DEFAULT ''",
	"ALTER TABLE copy_trades ADD COLUMN open_roi REAL",
}

const summaryRetention = 90 * 24 * time.Hour

// timeLayout tiene ancho fijo: RFC3339Nano recorta ceros y rompe el orden de texto.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const tradeColumns = `id, user_id, market_id, market_title, market_slug, market_image,
       outcome, trader_wallet, trader_username,
       price_when_copied, entry_size, amount_invested, current_price, roi, realized_pnl,
       user_closed_at, user_exit_price,
       trader_position_closed, market_resolved, resolved_outcome, created_at`

const orderColumns = `id, user_id, market_id, token_id, outcome, market_title, market_slug, market_image,
       side, status, filled_size, avg_price, amount_invested, realized_pnl,
       closed_at, exit_price, current_price,
       trader_wallet, trader_position_closed, market_resolved, resolved_outcome, created_at`

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y las migraciones y limpia histórico viejo.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	for _, m := range sqliteMigrations {
		db.Exec(m) // duplicate column en DBs nuevas
	}

	s := &SQLiteStorage{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// --- copy trades ---

// ListCopyTrades devuelve una página del historial del usuario, más recientes primero.
func (s *SQLiteStorage) ListCopyTrades(ctx context.Context, userID string, limit, offset int) (domain.TradePage, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM copy_trades WHERE user_id = ?`, userID,
	).Scan(&total); err != nil {
		return domain.TradePage{}, fmt.Errorf("storage.ListCopyTrades: count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tradeColumns+` FROM copy_trades
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id
		 LIMIT ? OFFSET ?`, userID, limit, offset)
	if err != nil {
		return domain.TradePage{}, fmt.Errorf("storage.ListCopyTrades: query: %w", err)
	}
	defer rows.Close()

	page := domain.TradePage{Total: total}
	for rows.Next() {
		t, err := scanSQLiteTrade(rows)
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

// CreateTrade inserta un copy trade nuevo. Si no trae id se genera un UUID.
func (s *SQLiteStorage) CreateTrade(ctx context.Context, t domain.ManualTrade) (domain.ManualTrade, error) {
	t = withIdentity(t)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO copy_trades (`+tradeColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.MarketID, t.MarketTitle, t.MarketSlug, t.MarketImage,
		t.Outcome, t.TraderWallet, t.TraderUsername,
		t.PriceWhenCopied, t.EntrySize, t.AmountInvested, t.CurrentPrice, t.ROI, t.RealizedPnL,
		fmtTimePtr(t.UserClosedAt), t.UserExitPrice,
		t.TraderPositionClosed, t.MarketResolved, t.ResolvedOutcome, fmtTime(t.CreatedAt),
	)
	if err != nil {
		return domain.ManualTrade{}, fmt.Errorf("storage.CreateTrade: insert %s: %w", t.ID, err)
	}
	return t, nil
}

// GetTrade devuelve el copy trade del usuario o ErrTradeNotFound.
func (s *SQLiteStorage) GetTrade(ctx context.Context, userID, tradeID string) (domain.ManualTrade, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+tradeColumns+` FROM copy_trades WHERE id = ? AND user_id = ?`, tradeID, userID)
	t, err := scanSQLiteTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ManualTrade{}, fmt.Errorf("storage.GetTrade: %s: %w", tradeID, domain.ErrTradeNotFound)
	}
	if err != nil {
		return domain.ManualTrade{}, fmt.Errorf("storage.GetTrade: scan %s: %w", tradeID, err)
	}
	return t, nil
}

// CloseTrade guarda el cierre manual del trade. El ROI que tenía abierto
// queda en open_roi; cerrar otra vez no lo pisa.
func (s *SQLiteStorage) CloseTrade(ctx context.Context, userID, tradeID string, exitPrice float64, roi *float64, closedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE copy_trades
		 SET user_exit_price = ?, roi = ?, user_closed_at = ?,
		     open_roi = CASE WHEN user_closed_at IS NULL THEN roi ELSE open_roi END
		 WHERE id = ? AND user_id = ?`,
		exitPrice, roi, fmtTime(closedAt), tradeID, userID)
	return checkAffected("storage.CloseTrade", tradeID, res, err)
}

// ReopenTrade deshace el cierre manual y devuelve el ROI previo al cierre.
func (s *SQLiteStorage) ReopenTrade(ctx context.Context, userID, tradeID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE copy_trades
		 SET user_exit_price = NULL, user_closed_at = NULL,
		     roi = CASE WHEN user_closed_at IS NULL THEN roi ELSE open_roi END,
		     open_roi = NULL
		 WHERE id = ? AND user_id = ?`,
		tradeID, userID)
	return checkAffected("storage.ReopenTrade", tradeID, res, err)
}

// UpdateTrade aplica solo los campos no nil de upd.
func (s *SQLiteStorage) UpdateTrade(ctx context.Context, userID, tradeID string, upd domain.TradeUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE copy_trades SET
		     price_when_copied = COALESCE(?, price_when_copied),
		     entry_size        = COALESCE(?, entry_size),
		     amount_invested   = COALESCE(?, amount_invested),
		     market_title      = COALESCE(?, market_title),
		     outcome           = COALESCE(?, outcome)
		 WHERE id = ? AND user_id = ?`,
		upd.PriceWhenCopied, upd.EntrySize, upd.AmountInvested, upd.MarketTitle, upd.Outcome,
		tradeID, userID)
	return checkAffected("storage.UpdateTrade", tradeID, res, err)
}

// DeleteTrade borra el copy trade del usuario.
func (s *SQLiteStorage) DeleteTrade(ctx context.Context, userID, tradeID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM copy_trades WHERE id = ? AND user_id = ?`, tradeID, userID)
	return checkAffected("storage.DeleteTrade", tradeID, res, err)
}

// --- orders ---

// SaveOrder hace upsert de una orden de la plataforma por id.
func (s *SQLiteStorage) SaveOrder(ctx context.Context, o domain.PlatformOrder) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     status                 = excluded.status,
		     filled_size            = excluded.filled_size,
		     avg_price              = excluded.avg_price,
		     amount_invested        = excluded.amount_invested,
		     realized_pnl           = excluded.realized_pnl,
		     closed_at              = excluded.closed_at,
		     exit_price             = excluded.exit_price,
		     current_price          = excluded.current_price,
		     trader_position_closed = excluded.trader_position_closed,
		     market_resolved        = excluded.market_resolved,
		     resolved_outcome       = excluded.resolved_outcome`,
		o.ID, o.UserID, o.MarketID, o.TokenID, o.Outcome, o.MarketTitle, o.MarketSlug, o.MarketImage,
		string(o.Side), string(o.Status), o.FilledSize, o.AvgPrice, o.AmountInvested, o.RealizedPnL,
		fmtTimePtr(o.ClosedAt), o.ExitPrice, o.CurrentPrice,
		o.TraderWallet, o.TraderPositionClosed, o.MarketResolved, o.ResolvedOutcome, fmtTime(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("storage.SaveOrder: upsert %s: %w", o.ID, err)
	}
	return nil
}

// ListOrders devuelve todas las órdenes del usuario, más recientes primero.
func (s *SQLiteStorage) ListOrders(ctx context.Context, userID string) ([]domain.PlatformOrder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.ListOrders: query: %w", err)
	}
	defer rows.Close()

	var out []domain.PlatformOrder
	for rows.Next() {
		var (
			o            domain.PlatformOrder
			side, status string
			closedAt     sql.NullString
			createdAt    string
		)
		if err := rows.Scan(
			&o.ID, &o.UserID, &o.MarketID, &o.TokenID, &o.Outcome, &o.MarketTitle, &o.MarketSlug, &o.MarketImage,
			&side, &status, &o.FilledSize, &o.AvgPrice, &o.AmountInvested, &o.RealizedPnL,
			&closedAt, &o.ExitPrice, &o.CurrentPrice,
			&o.TraderWallet, &o.TraderPositionClosed, &o.MarketResolved, &o.ResolvedOutcome, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("storage.ListOrders: scan row: %w", err)
		}
		o.Side = domain.Side(side)
		o.Status = domain.OrderStatus(status)
		o.ClosedAt = parseTimePtr(closedAt)
		o.CreatedAt = parseTime(createdAt)
		out = append(out, o)
	}
	return out, rows.Err()
}

// --- summary history ---

// SaveSummary guarda un punto del histórico de resúmenes.
func (s *SQLiteStorage) SaveSummary(ctx context.Context, userID string, sum domain.Summary, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO summary_history
		     (user_id, taken_at, trade_count, total_pnl, realized_pnl, unrealized_pnl, total_volume, roi, win_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, fmtTime(at), sum.TradeCount, sum.TotalPnL, sum.RealizedPnL, sum.UnrealizedPnL,
		sum.TotalVolume, sum.ROI, sum.WinRate,
	)
	if err != nil {
		return fmt.Errorf("storage.SaveSummary: insert: %w", err)
	}
	return nil
}

// GetSummaryHistory devuelve los puntos del usuario en [from, to], en orden cronológico.
func (s *SQLiteStorage) GetSummaryHistory(ctx context.Context, userID string, from, to time.Time) ([]domain.SummaryPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, taken_at, trade_count, total_pnl, realized_pnl, unrealized_pnl, total_volume, roi, win_rate
		 FROM summary_history
		 WHERE user_id = ? AND taken_at BETWEEN ? AND ?
		 ORDER BY taken_at`, userID, fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("storage.GetSummaryHistory: query: %w", err)
	}
	defer rows.Close()

	var points []domain.SummaryPoint
	for rows.Next() {
		var p domain.SummaryPoint
		var takenAt string
		if err := rows.Scan(&p.UserID, &takenAt, &p.TradeCount, &p.TotalPnL, &p.RealizedPnL,
			&p.UnrealizedPnL, &p.TotalVolume, &p.ROI, &p.WinRate); err != nil {
			return nil, fmt.Errorf("storage.GetSummaryHistory: scan row: %w", err)
		}
		p.TakenAt = parseTime(takenAt)
		points = append(points, p)
	}
	return points, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// --- helpers internos ---

// pruneOld elimina puntos de resumen antiguos para mantener la DB ligera.
func (s *SQLiteStorage) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-summaryRetention)
	s.db.ExecContext(ctx, `DELETE FROM summary_history WHERE taken_at < ?`, fmtTime(cutoff))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteTrade(r rowScanner) (domain.ManualTrade, error) {
	var (
		t         domain.ManualTrade
		closedAt  sql.NullString
		createdAt string
	)
	err := r.Scan(
		&t.ID, &t.UserID, &t.MarketID, &t.MarketTitle, &t.MarketSlug, &t.MarketImage,
		&t.Outcome, &t.TraderWallet, &t.TraderUsername,
		&t.PriceWhenCopied, &t.EntrySize, &t.AmountInvested, &t.CurrentPrice, &t.ROI, &t.RealizedPnL,
		&closedAt, &t.UserExitPrice,
		&t.TraderPositionClosed, &t.MarketResolved, &t.ResolvedOutcome, &createdAt,
	)
	if err != nil {
		return domain.ManualTrade{}, err
	}
	t.UserClosedAt = parseTimePtr(closedAt)
	t.CreatedAt = parseTime(createdAt)
	return t, nil
}

// withIdentity completa id y created_at de un trade nuevo.
func withIdentity(t domain.ManualTrade) domain.ManualTrade {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return t
}

func checkAffected(op, tradeID string, res sql.Result, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, tradeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %s: %w", op, tradeID, domain.ErrTradeNotFound)
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t.UTC()
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/metrics"
	"github.com/alejandrodnm/polycopy/internal/ports"
)

// Nombres de las fuentes de datos en SourceError y en las métricas.
const (
	SourceHistory   = "history"
	SourceOrders    = "orders"
	SourcePositions = "positions"
	SourceMetadata  = "metadata"
)

// Config contiene la configuración del servicio de portfolio.
type Config struct {
	RefreshInterval time.Duration
	HistoryPageSize int // filas por página del historial de copy trades
	HistoryMaxPages int // tope de páginas por carga
	PageSize        int // tamaño de página de la vista
	QuoteWorkers    int
	OverlayEnabled  bool
	DryRun          bool // Run hace un solo ciclo
}

// DefaultConfig devuelve una configuración sensata para producción.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 60 * time.Second,
		HistoryPageSize: 50,
		HistoryMaxPages: 10,
		PageSize:        DefaultPageSize,
		QuoteWorkers:    8,
		OverlayEnabled:  true,
	}
}

// Account identifica de quién es el portfolio: el usuario de la app y la
// wallet cuyas posiciones abiertas reconcilian las órdenes.
type Account struct {
	UserID string
	Wallet string
}

// Deps son los colaboradores del servicio. Cualquiera puede ser nil: una
// fuente nil simplemente no aporta datos.
type Deps struct {
	History   ports.CopyTradeHistory
	Orders    ports.OrderHistory
	Positions ports.PositionProvider
	Markets   ports.MarketProvider
	Quotes    ports.QuoteProvider
	Trades    ports.TradeStore
	OrderLog  ports.OrderStore // donde el sistema de ejecución registra órdenes confirmadas
	Summaries ports.SummaryStore
	Notifier  ports.Notifier
}

// Service es el orquestador del pipeline del portfolio:
// fetch → normalize → overlay → calculate → aggregate.
type Service struct {
	cfg  Config
	deps Deps
	now  func() time.Time
}

// New crea un Service con todas las dependencias inyectadas.
func New(cfg Config, deps Deps) *Service {
	return &Service{cfg: cfg, deps: deps, now: time.Now}
}

// Config devuelve la configuración con la que se creó el servicio.
func (s *Service) Config() Config {
	return s.cfg
}

// Run ejecuta el loop de refresco hasta que el contexto se cancele.
// Si cfg.DryRun está activo, solo ejecuta un ciclo.
func (s *Service) Run(ctx context.Context, acct Account) error {
	slog.Info("portfolio refresh starting",
		"user_id", acct.UserID,
		"interval", s.cfg.RefreshInterval,
		"dry_run", s.cfg.DryRun,
	)

	if err := s.runCycle(ctx, acct); err != nil {
		slog.Error("refresh cycle failed", "err", err)
		if s.cfg.DryRun {
			return err
		}
	}

	if s.cfg.DryRun {
		return nil
	}

	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("portfolio refresh stopped")
			return nil
		case <-ticker.C:
			if err := s.runCycle(ctx, acct); err != nil {
				slog.Error("refresh cycle failed", "err", err)
			}
		}
	}
}

// RunOnce ejecuta exactamente un ciclo: carga, notifica y guarda el resumen.
func (s *Service) RunOnce(ctx context.Context, acct Account) (domain.PortfolioSnapshot, error) {
	snap, err := s.Load(ctx, acct)
	if err != nil {
		return snap, err
	}
	s.publish(ctx, snap)
	return snap, nil
}

func (s *Service) runCycle(ctx context.Context, acct Account) error {
	start := time.Now()

	snap, err := s.Load(ctx, acct)
	if err != nil {
		return err
	}
	s.publish(ctx, snap)

	slog.Info("refresh cycle complete",
		"trades", len(snap.Positions),
		"failures", len(snap.Failures),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// publish notifica y persiste el resumen. Los errores solo se loguean.
func (s *Service) publish(ctx context.Context, snap domain.PortfolioSnapshot) {
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.Notify(ctx, snap); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}
	if s.deps.Summaries != nil {
		if err := s.deps.Summaries.SaveSummary(ctx, snap.UserID, snap.Summary, snap.LoadedAt); err != nil {
			slog.Warn("summary storage error", "err", err)
		}
	}
}

// failureSet acumula los fallos de fuentes desde varias goroutines.
type failureSet struct {
	mu   sync.Mutex
	errs []domain.SourceError
}

func (f *failureSet) add(source string, err error) {
	slog.Warn("data source failed, continuing without it",
		"source", source,
		"err", err,
	)
	metrics.SourceFailures.WithLabelValues(source).Inc()
	f.mu.Lock()
	f.errs = append(f.errs, domain.SourceError{Source: source, Err: err})
	f.mu.Unlock()
}

func (f *failureSet) addAll(errs []domain.SourceError) {
	if len(errs) == 0 {
		return
	}
	metrics.SourceFailures.WithLabelValues("quote").Add(float64(len(errs)))
	f.mu.Lock()
	f.errs = append(f.errs, errs...)
	f.mu.Unlock()
}

// Load ejecuta el pipeline completo para una cuenta.
// Historial, órdenes y posiciones se piden en paralelo; el fallo de una
// fuente degrada el resultado pero nunca aborta la carga. Solo un contexto
// cancelado devuelve error.
func (s *Service) Load(ctx context.Context, acct Account) (domain.PortfolioSnapshot, error) {
	start := time.Now()
	defer func() { metrics.LoadDuration.Observe(time.Since(start).Seconds()) }()

	if acct.UserID == "" {
		return domain.PortfolioSnapshot{}, fmt.Errorf("portfolio.Load: empty user id: %w", domain.ErrInvalidInput)
	}

	var (
		failures    failureSet
		manual      []domain.ManualTrade
		orders      []domain.PlatformOrder
		openPos     []domain.OpenPosition
		positionsOK bool
		wg          sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		manual, err = s.fetchHistory(ctx, acct.UserID)
		if err != nil {
			failures.add(SourceHistory, err)
		}
	}()
	go func() {
		defer wg.Done()
		if s.deps.Orders == nil {
			return
		}
		var err error
		orders, err = s.deps.Orders.ListOrders(ctx, acct.UserID)
		if err != nil {
			failures.add(SourceOrders, fmt.Errorf("portfolio.Load: list orders: %w", err))
		}
	}()
	go func() {
		defer wg.Done()
		if s.deps.Positions == nil || acct.Wallet == "" {
			return
		}
		var err error
		openPos, err = s.deps.Positions.FetchPositions(ctx, acct.Wallet)
		if err != nil {
			failures.add(SourcePositions, fmt.Errorf("portfolio.Load: fetch positions: %w", err))
			return
		}
		positionsOK = true
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("portfolio.Load: %w", err)
	}

	records := make([]domain.TradeRecord, 0, len(manual)+len(orders))
	for _, t := range manual {
		records = append(records, t)
	}
	for _, o := range orders {
		records = append(records, o)
	}

	meta := s.fetchMetadata(ctx, manual, orders, &failures)

	// Sin snapshot de posiciones no se reconcilia: nil != book vacío.
	var posBook domain.PositionBook
	if positionsOK {
		posBook = domain.NewPositionBook(openPos)
	}

	trades := domain.NormalizeAll(records, meta, posBook)

	if s.cfg.OverlayEnabled && s.deps.Quotes != nil {
		book, quoteErrs := BuildPriceBook(ctx, trades, s.deps.Quotes, s.cfg.QuoteWorkers)
		failures.addAll(quoteErrs)
		trades = domain.ApplyOverlay(trades, book)
	}

	positions := domain.EvaluateAll(trades)
	snap := domain.PortfolioSnapshot{
		UserID:    acct.UserID,
		Wallet:    acct.Wallet,
		Positions: positions,
		Summary:   domain.AggregatePositions(positions),
		Failures:  failures.errs,
		LoadedAt:  s.now(),
	}

	slog.Debug("portfolio loaded",
		"user_id", acct.UserID,
		"manual", len(manual),
		"orders", len(orders),
		"trades", len(trades),
		"failures", len(snap.Failures),
	)
	return snap, nil
}

// fetchHistory pagina el historial de copy trades hasta HistoryMaxPages.
// Si una página falla devuelve lo ya leído junto con el error.
func (s *Service) fetchHistory(ctx context.Context, userID string) ([]domain.ManualTrade, error) {
	if s.deps.History == nil {
		return nil, nil
	}
	limit := s.cfg.HistoryPageSize
	if limit <= 0 {
		limit = 50
	}
	maxPages := s.cfg.HistoryMaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	var all []domain.ManualTrade
	for page := 0; page < maxPages; page++ {
		p, err := s.deps.History.ListCopyTrades(ctx, userID, limit, page*limit)
		if err != nil {
			return all, fmt.Errorf("portfolio.fetchHistory: page %d: %w", page, err)
		}
		all = append(all, p.Trades...)
		if !p.HasMore || len(p.Trades) == 0 {
			return all, nil
		}
	}
	slog.Debug("trade history truncated at page cap", "user_id", userID, "pages", maxPages)
	return all, nil
}

// fetchMetadata pide en un solo batch la metadata de los mercados cuyo
// título guardado es un placeholder o a los que les falta slug o imagen.
func (s *Service) fetchMetadata(
	ctx context.Context,
	manual []domain.ManualTrade,
	orders []domain.PlatformOrder,
	failures *failureSet,
) map[string]domain.MarketMeta {
	if s.deps.Markets == nil {
		return nil
	}

	seen := make(map[string]bool)
	var ids []string
	add := func(marketID, title, slug, image string) {
		if domain.NeedsMetadata(marketID, title, slug, image) && !seen[marketID] {
			seen[marketID] = true
			ids = append(ids, marketID)
		}
	}
	for _, t := range manual {
		add(t.MarketID, t.MarketTitle, t.MarketSlug, t.MarketImage)
	}
	for _, o := range orders {
		add(o.MarketID, o.MarketTitle, o.MarketSlug, o.MarketImage)
	}
	if len(ids) == 0 {
		return nil
	}

	meta, err := s.deps.Markets.FetchMarketMeta(ctx, ids)
	if err != nil {
		failures.add(SourceMetadata, fmt.Errorf("portfolio.fetchMetadata: %w", err))
		// un fallo parcial puede traer parte de la metadata
		return meta
	}
	return meta
}

// View carga el portfolio y aplica filtro, orden y paginación.
func (s *Service) View(ctx context.Context, acct Account, opts ViewOptions) (domain.PortfolioSnapshot, View, error) {
	snap, err := s.Load(ctx, acct)
	if err != nil {
		return snap, View{}, err
	}
	if opts.PageSize <= 0 {
		opts.PageSize = s.cfg.PageSize
	}
	return snap, BuildView(snap.Positions, opts), nil
}

// --- mutaciones de copy trades manuales ---

// CreateTrade registra un copy trade manual nuevo.
func (s *Service) CreateTrade(ctx context.Context, t domain.ManualTrade) (domain.ManualTrade, error) {
	if err := t.ValidateNew(); err != nil {
		return domain.ManualTrade{}, s.mutationResult("create", fmt.Errorf("portfolio.CreateTrade: %w", err))
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now().UTC()
	}
	created, err := s.store().CreateTrade(ctx, t)
	if err != nil {
		return domain.ManualTrade{}, s.mutationResult("create", fmt.Errorf("portfolio.CreateTrade: %w", err))
	}
	return created, s.mutationResult("create", nil)
}

// CloseTrade marca un copy trade como cerrado por el usuario al exitPrice
// dado y guarda el ROI con la misma regla de dirección que el calculador.
// Cerrar dos veces sobrescribe el exit price.
func (s *Service) CloseTrade(ctx context.Context, userID, tradeID string, exitPrice float64) (domain.ManualTrade, error) {
	if err := domain.ValidateExitPrice(exitPrice); err != nil {
		return domain.ManualTrade{}, s.mutationResult("close", fmt.Errorf("portfolio.CloseTrade: %w", err))
	}
	t, err := s.getManual(ctx, userID, tradeID)
	if err != nil {
		return domain.ManualTrade{}, s.mutationResult("close", fmt.Errorf("portfolio.CloseTrade: %w", err))
	}

	var roi *float64
	if t.PriceWhenCopied != nil && *t.PriceWhenCopied > 0 {
		v := domain.ComputeROI(*t.PriceWhenCopied, exitPrice, domain.SideBuy)
		roi = &v
	}

	if err := s.store().CloseTrade(ctx, userID, tradeID, exitPrice, roi, s.now().UTC()); err != nil {
		return domain.ManualTrade{}, s.mutationResult("close", fmt.Errorf("portfolio.CloseTrade: %w", err))
	}
	return s.reload(ctx, "close", userID, tradeID)
}

// ReopenTrade deshace el cierre del usuario: exit price y timestamp de
// cierre vuelven a NULL y el ROI al que tenía antes de cerrar. Reabrir un
// trade abierto no cambia nada.
func (s *Service) ReopenTrade(ctx context.Context, userID, tradeID string) (domain.ManualTrade, error) {
	if _, err := s.getManual(ctx, userID, tradeID); err != nil {
		return domain.ManualTrade{}, s.mutationResult("reopen", fmt.Errorf("portfolio.ReopenTrade: %w", err))
	}
	if err := s.store().ReopenTrade(ctx, userID, tradeID); err != nil {
		return domain.ManualTrade{}, s.mutationResult("reopen", fmt.Errorf("portfolio.ReopenTrade: %w", err))
	}
	return s.reload(ctx, "reopen", userID, tradeID)
}

// EditTrade actualiza entry price, size, importe, título u outcome.
func (s *Service) EditTrade(ctx context.Context, userID, tradeID string, upd domain.TradeUpdate) (domain.ManualTrade, error) {
	if err := upd.Validate(); err != nil {
		return domain.ManualTrade{}, s.mutationResult("edit", fmt.Errorf("portfolio.EditTrade: %w", err))
	}
	if _, err := s.getManual(ctx, userID, tradeID); err != nil {
		return domain.ManualTrade{}, s.mutationResult("edit", fmt.Errorf("portfolio.EditTrade: %w", err))
	}
	if err := s.store().UpdateTrade(ctx, userID, tradeID, upd); err != nil {
		return domain.ManualTrade{}, s.mutationResult("edit", fmt.Errorf("portfolio.EditTrade: %w", err))
	}
	return s.reload(ctx, "edit", userID, tradeID)
}

// DeleteTrade borra un copy trade manual del usuario.
func (s *Service) DeleteTrade(ctx context.Context, userID, tradeID string) error {
	if _, err := s.getManual(ctx, userID, tradeID); err != nil {
		return s.mutationResult("delete", fmt.Errorf("portfolio.DeleteTrade: %w", err))
	}
	if err := s.store().DeleteTrade(ctx, userID, tradeID); err != nil {
		return s.mutationResult("delete", fmt.Errorf("portfolio.DeleteTrade: %w", err))
	}
	return s.mutationResult("delete", nil)
}

// CopyTrades devuelve una página del historial de copy trades manuales.
func (s *Service) CopyTrades(ctx context.Context, userID string, limit, offset int) (domain.TradePage, error) {
	if userID == "" || limit <= 0 || offset < 0 {
		return domain.TradePage{}, fmt.Errorf("portfolio.CopyTrades: bad paging: %w", domain.ErrInvalidInput)
	}
	var history ports.CopyTradeHistory = s.store()
	if s.deps.History != nil {
		history = s.deps.History
	}
	page, err := history.ListCopyTrades(ctx, userID, limit, offset)
	if err != nil {
		return domain.TradePage{}, fmt.Errorf("portfolio.CopyTrades: %w", err)
	}
	return page, nil
}

// RecordOrder guarda una orden confirmada por el sistema de ejecución.
// Es la única escritura sobre órdenes: el portfolio nunca las edita.
func (s *Service) RecordOrder(ctx context.Context, o domain.PlatformOrder) error {
	if err := o.Validate(); err != nil {
		return s.mutationResult("record_order", fmt.Errorf("portfolio.RecordOrder: %w", err))
	}
	if s.deps.OrderLog == nil {
		return s.mutationResult("record_order", fmt.Errorf("portfolio.RecordOrder: %w", errNoStore))
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now().UTC()
	}
	if err := s.deps.OrderLog.SaveOrder(ctx, o); err != nil {
		return s.mutationResult("record_order", fmt.Errorf("portfolio.RecordOrder: %w", err))
	}
	return s.mutationResult("record_order", nil)
}

// SummaryHistory devuelve los resúmenes guardados por el refresh loop en [from, to].
func (s *Service) SummaryHistory(ctx context.Context, userID string, from, to time.Time) ([]domain.SummaryPoint, error) {
	if userID == "" || to.Before(from) {
		return nil, fmt.Errorf("portfolio.SummaryHistory: bad range: %w", domain.ErrInvalidInput)
	}
	if s.deps.Summaries == nil {
		return []domain.SummaryPoint{}, nil
	}
	points, err := s.deps.Summaries.GetSummaryHistory(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("portfolio.SummaryHistory: %w", err)
	}
	if points == nil {
		points = []domain.SummaryPoint{}
	}
	return points, nil
}

// getManual busca el trade manual. Si no existe pero es una orden de la
// plataforma devuelve ErrImmutableTrade.
func (s *Service) getManual(ctx context.Context, userID, tradeID string) (domain.ManualTrade, error) {
	if userID == "" || tradeID == "" {
		return domain.ManualTrade{}, fmt.Errorf("user_id and trade_id are required: %w", domain.ErrInvalidInput)
	}
	t, err := s.store().GetTrade(ctx, userID, tradeID)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, domain.ErrTradeNotFound) || s.deps.Orders == nil {
		return domain.ManualTrade{}, err
	}

	orders, oerr := s.deps.Orders.ListOrders(ctx, userID)
	if oerr != nil {
		return domain.ManualTrade{}, err
	}
	for _, o := range orders {
		if o.ID == tradeID {
			return domain.ManualTrade{}, fmt.Errorf("order %s: %w", tradeID, domain.ErrImmutableTrade)
		}
	}
	return domain.ManualTrade{}, err
}

func (s *Service) reload(ctx context.Context, op, userID, tradeID string) (domain.ManualTrade, error) {
	t, err := s.store().GetTrade(ctx, userID, tradeID)
	if err != nil {
		return domain.ManualTrade{}, s.mutationResult(op, fmt.Errorf("portfolio.%s: reload: %w", op, err))
	}
	return t, s.mutationResult(op, nil)
}

func (s *Service) mutationResult(op string, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
		slog.Warn("trade mutation failed", "op", op, "err", err)
	}
	metrics.TradeMutations.WithLabelValues(op, result).Inc()
	return err
}

// store devuelve el TradeStore o uno que siempre falla si no hay backend.
func (s *Service) store() ports.TradeStore {
	if s.deps.Trades == nil {
		return noStore{}
	}
	return s.deps.Trades
}

var errNoStore = errors.New("no trade store configured")

// noStore es el TradeStore cuando el servicio corre sin backend (solo lectura).
type noStore struct{}

func (noStore) ListCopyTrades(context.Context, string, int, int) (domain.TradePage, error) {
	return domain.TradePage{}, errNoStore
}

func (noStore) CreateTrade(context.Context, domain.ManualTrade) (domain.ManualTrade, error) {
	return domain.ManualTrade{}, errNoStore
}

func (noStore) GetTrade(context.Context, string, string) (domain.ManualTrade, error) {
	return domain.ManualTrade{}, errNoStore
}

func (noStore) CloseTrade(context.Context, string, string, float64, *float64, time.Time) error {
	return errNoStore
}

func (noStore) ReopenTrade(context.Context, string, string) error { return errNoStore }

func (noStore) UpdateTrade(context.Context, string, string, domain.TradeUpdate) error {
	return errNoStore
}

func (noStore) DeleteTrade(context.Context, string, string) error { return errNoStore }

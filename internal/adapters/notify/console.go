package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// placeholder para valores desconocidos (ROI sin entry, precio sin quote).
const placeholder = "—"

// Console implementa ports.Notifier imprimiendo el portfolio en tablas.
type Console struct {
	out     io.Writer
	limit   int // filas máximas en la tabla de posiciones; 0 = todas
	compact bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(limit int, compact bool) *Console {
	return &Console{out: os.Stdout, limit: limit, compact: compact}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, limit int, compact bool) *Console {
	return &Console{out: w, limit: limit, compact: compact}
}

// Notify imprime el snapshot en el modo configurado.
func (c *Console) Notify(_ context.Context, snap domain.PortfolioSnapshot) error {
	if snap.Degraded() {
		c.printBanner(snap.Failures)
	}

	if len(snap.Positions) == 0 {
		fmt.Fprintf(c.out, "[%s] no copy trades found\n", stamp(snap.LoadedAt))
		return nil
	}

	if c.compact {
		c.printCompact(snap)
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %d trades (%d open, %d closed)\n",
		stamp(snap.LoadedAt), snap.Summary.TradeCount, snap.Summary.OpenTrades, snap.Summary.ClosedTrades)
	c.printPositions(snap.Positions)
	c.printSummary(snap.Summary)
	c.printBuckets(snap.Summary.SizeBuckets)
	c.printCategories(snap.Summary.Categories)
	return nil
}

// printBanner avisa de que los datos son parciales. Nunca bloquea el resto.
func (c *Console) printBanner(failures []domain.SourceError) {
	sources := make([]string, 0, len(failures))
	for _, f := range failures {
		sources = append(sources, f.Source)
	}
	fmt.Fprintf(c.out, "⚠ partial data: %d source(s) failed [%s]\n",
		len(failures), strings.Join(sources, ", "))
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(snap domain.PortfolioSnapshot) {
	s := snap.Summary
	fmt.Fprintf(c.out, "[%s] %d trades | open:%d | P&L %s (realized %s) | ROI %.1f%% | win %.1f%% | vol $%.2f\n",
		stamp(snap.LoadedAt), s.TradeCount, s.OpenTrades,
		money(s.TotalPnL), money(s.RealizedPnL), s.ROI, s.WinRate, s.TotalVolume)
}

func (c *Console) printPositions(positions []domain.Position) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Cat", "Market", "Side", "Status", "Entry", "Now", "Invested", "P&L", "ROI", "Value")

	shown := positions
	if c.limit > 0 && len(shown) > c.limit {
		shown = shown[:c.limit]
	}
	for i, p := range shown {
		t := p.Trade
		table.Append(
			fmt.Sprintf("%d", i+1),
			string(domain.Classify(t.MarketTitle)),
			domain.TruncateTitle(t.MarketTitle, t.MarketID, 40),
			sideLabel(t),
			string(t.Status),
			price(t.EntryPrice),
			price(markOf(t)),
			fmt.Sprintf("$%.2f", p.Invested),
			money(p.PnL),
			roi(p.ROI),
			fmt.Sprintf("$%.2f", p.CurrentValue),
		)
	}
	table.Render()

	if hidden := len(positions) - len(shown); hidden > 0 {
		fmt.Fprintf(c.out, "  ... %d more\n", hidden)
	}
}

func (c *Console) printSummary(s domain.Summary) {
	fmt.Fprintf(c.out, "\n  --- SUMMARY ---\n")
	fmt.Fprintf(c.out, "  Total P&L:        %s\n", money(s.TotalPnL))
	fmt.Fprintf(c.out, "  Realized:         %s\n", money(s.RealizedPnL))
	fmt.Fprintf(c.out, "  Unrealized:       %s\n", money(s.UnrealizedPnL))
	fmt.Fprintf(c.out, "  Volume:           $%.2f\n", s.TotalVolume)
	fmt.Fprintf(c.out, "  Current value:    $%.2f\n", s.CurrentValue)
	fmt.Fprintf(c.out, "  ROI:              %.1f%%\n", s.ROI)
	fmt.Fprintf(c.out, "  Win rate:         %.1f%% (%d/%d closed)\n", s.WinRate, s.Wins, s.ClosedTrades)
}

func (c *Console) printBuckets(buckets []domain.SizeBucket) {
	if len(buckets) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n  --- SIZE DISTRIBUTION ---\n")
	table := tablewriter.NewWriter(c.out)
	table.Header("Size", "Trades", "%")
	for _, b := range buckets {
		table.Append(b.Label, fmt.Sprintf("%d", b.Count), fmt.Sprintf("%.1f%%", b.Percent))
	}
	table.Render()
}

func (c *Console) printCategories(cats []domain.CategoryShare) {
	if len(cats) == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n  --- CATEGORIES ---\n")
	table := tablewriter.NewWriter(c.out)
	table.Header("Category", "Trades", "%")
	for _, cs := range cats {
		table.Append(string(cs.Category), fmt.Sprintf("%d", cs.Count), fmt.Sprintf("%.1f%%", cs.Percent))
	}
	table.Render()
	fmt.Fprintln(c.out)
}

// --- helpers ---

// markOf es el precio que se muestra en "Now": exit si el usuario cerró.
func markOf(t domain.UnifiedTrade) *float64 {
	if t.ExitPrice != nil && t.Status == domain.StatusUserClosed {
		return t.ExitPrice
	}
	return t.CurrentPrice
}

func sideLabel(t domain.UnifiedTrade) string {
	out := t.Outcome
	if out == "" {
		out = placeholder
	}
	if t.IsShort() {
		return "SELL " + out
	}
	return out
}

func price(p *float64) string {
	if p == nil {
		return placeholder
	}
	return fmt.Sprintf("%.3f", *p)
}

func roi(p *float64) string {
	if p == nil {
		return placeholder
	}
	return fmt.Sprintf("%+.1f%%", *p)
}

func money(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format("15:04:05")
}

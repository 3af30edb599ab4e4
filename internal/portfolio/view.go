package portfolio

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/alejandrodnm/polycopy/internal/domain"
)

// SortKey es el campo por el que se ordena la vista.
type SortKey string

const (
	SortDate     SortKey = "date"
	SortInvested SortKey = "invested"
	SortValue    SortKey = "value"
	SortROI      SortKey = "roi"
)

// StatusFilter es el filtro de estado de la vista.
type StatusFilter string

const (
	FilterAll      StatusFilter = "all"
	FilterOpen     StatusFilter = "open"
	FilterSold     StatusFilter = "sold"
	FilterResolved StatusFilter = "resolved"
)

// DefaultPageSize es el tamaño de página de "load more".
const DefaultPageSize = 20

// ViewOptions contiene los parámetros de presentación.
type ViewOptions struct {
	Status   StatusFilter
	Sort     SortKey
	Desc     bool
	Page     int // 1-based; la vista acumula las páginas 1..Page
	PageSize int
}

// DefaultViewOptions devuelve la vista por defecto: todo, más recientes primero.
func DefaultViewOptions() ViewOptions {
	return ViewOptions{
		Status:   FilterAll,
		Sort:     SortDate,
		Desc:     true,
		Page:     1,
		PageSize: DefaultPageSize,
	}
}

// ParseViewOptions construye ViewOptions desde los query params.
// Los valores vacíos toman el default; los desconocidos son ErrInvalidInput.
// Sin pageSize queda en 0 y el Service usa el de su Config.
func ParseViewOptions(status, sortKey, order, page string, pageSize int) (ViewOptions, error) {
	opts := DefaultViewOptions()
	opts.PageSize = 0
	if pageSize > 0 {
		opts.PageSize = pageSize
	}

	switch StatusFilter(strings.ToLower(status)) {
	case "":
	case FilterAll, FilterOpen, FilterSold, FilterResolved:
		opts.Status = StatusFilter(strings.ToLower(status))
	default:
		return opts, fmt.Errorf("portfolio.ParseViewOptions: unknown status %q: %w", status, domain.ErrInvalidInput)
	}

	switch SortKey(strings.ToLower(sortKey)) {
	case "":
	case SortDate, SortInvested, SortValue, SortROI:
		opts.Sort = SortKey(strings.ToLower(sortKey))
	default:
		return opts, fmt.Errorf("portfolio.ParseViewOptions: unknown sort %q: %w", sortKey, domain.ErrInvalidInput)
	}

	switch strings.ToLower(order) {
	case "", "desc":
		opts.Desc = true
	case "asc":
		opts.Desc = false
	default:
		return opts, fmt.Errorf("portfolio.ParseViewOptions: unknown order %q: %w", order, domain.ErrInvalidInput)
	}

	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("portfolio.ParseViewOptions: bad page %q: %w", page, domain.ErrInvalidInput)
		}
		opts.Page = n
	}
	return opts, nil
}

// View es la página acumulada que se muestra al usuario.
type View struct {
	Positions []domain.Position
	Total     int // posiciones que pasan el filtro
	HasMore   bool
	Page      int
}

// BuildView filtra, ordena y pagina las posiciones. No modifica el input.
func BuildView(positions []domain.Position, opts ViewOptions) View {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Page < 1 {
		opts.Page = 1
	}

	filtered := Filter(positions, opts.Status)
	SortPositions(filtered, opts.Sort, opts.Desc)

	end := opts.Page * opts.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return View{
		Positions: filtered[:end],
		Total:     len(filtered),
		HasMore:   end < len(filtered),
		Page:      opts.Page,
	}
}

// Filter devuelve una copia con las posiciones que pasan el filtro.
func Filter(positions []domain.Position, f StatusFilter) []domain.Position {
	out := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if MatchesFilter(p.Trade, f) {
			out = append(out, p)
		}
	}
	return out
}

// MatchesFilter aplica el filtro de estado. open, sold y resolved cubren
// las cuatro categorías de estado sin solaparse.
func MatchesFilter(t domain.UnifiedTrade, f StatusFilter) bool {
	switch f {
	case FilterOpen:
		return t.Status == domain.StatusOpen || t.Status == domain.StatusCounterpartyClosed
	case FilterSold:
		return t.Status == domain.StatusUserClosed
	case FilterResolved:
		return t.Status == domain.StatusResolved
	default:
		return true
	}
}

// SortPositions ordena in place de forma estable. Los ROI desconocidos van
// siempre al final.
func SortPositions(positions []domain.Position, key SortKey, desc bool) {
	sort.SliceStable(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if key == SortROI {
			switch {
			case a.ROI == nil && b.ROI == nil:
				return false
			case a.ROI == nil:
				return false
			case b.ROI == nil:
				return true
			}
		}
		va, vb := sortValue(a, key), sortValue(b, key)
		if desc {
			return va > vb
		}
		return va < vb
	})
}

func sortValue(p domain.Position, key SortKey) float64 {
	switch key {
	case SortInvested:
		return p.Invested
	case SortValue:
		return p.CurrentValue
	case SortROI:
		if p.ROI == nil {
			return math.Inf(-1)
		}
		return *p.ROI
	default:
		return float64(p.Trade.CreatedAt.UnixNano())
	}
}

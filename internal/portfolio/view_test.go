package portfolio_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/alejandrodnm/polycopy/internal/domain"
	"github.com/alejandrodnm/polycopy/internal/portfolio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(id string, status domain.TradeStatus, invested float64, roi *float64, age time.Duration) domain.Position {
	return domain.Position{
		Trade:        domain.UnifiedTrade{ID: id, Status: status, CreatedAt: t0.Add(-age)},
		Invested:     invested,
		CurrentValue: invested * 2,
		ROI:          roi,
	}
}

func ids(ps []domain.Position) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Trade.ID
	}
	return out
}

func TestBuildView_DefaultNewestFirst(t *testing.T) {
	ps := []domain.Position{
		pos("old", domain.StatusOpen, 10, nil, 3*time.Hour),
		pos("new", domain.StatusOpen, 10, nil, time.Hour),
		pos("mid", domain.StatusOpen, 10, nil, 2*time.Hour),
	}
	v := portfolio.BuildView(ps, portfolio.DefaultViewOptions())
	assert.Equal(t, []string{"new", "mid", "old"}, ids(v.Positions))
	assert.False(t, v.HasMore)
	// el input no se reordena
	assert.Equal(t, "old", ps[0].Trade.ID)
}

func TestBuildView_SortIsStable(t *testing.T) {
	ps := []domain.Position{
		pos("a", domain.StatusOpen, 50, nil, 0),
		pos("b", domain.StatusOpen, 10, nil, 0),
		pos("c", domain.StatusOpen, 50, nil, 0),
		pos("d", domain.StatusOpen, 50, nil, 0),
	}
	opts := portfolio.DefaultViewOptions()
	opts.Sort = portfolio.SortInvested
	v := portfolio.BuildView(ps, opts)
	assert.Equal(t, []string{"a", "c", "d", "b"}, ids(v.Positions))

	opts.Desc = false
	v = portfolio.BuildView(ps, opts)
	assert.Equal(t, []string{"b", "a", "c", "d"}, ids(v.Positions))
}

func TestBuildView_ROIUnknownLast(t *testing.T) {
	ps := []domain.Position{
		pos("none", domain.StatusOpen, 1, nil, 0),
		pos("low", domain.StatusOpen, 1, domain.Float(-10), 0),
		pos("high", domain.StatusOpen, 1, domain.Float(40), 0),
	}
	opts := portfolio.DefaultViewOptions()
	opts.Sort = portfolio.SortROI
	assert.Equal(t, []string{"high", "low", "none"}, ids(portfolio.BuildView(ps, opts).Positions))

	opts.Desc = false
	assert.Equal(t, []string{"low", "high", "none"}, ids(portfolio.BuildView(ps, opts).Positions))
}

func TestBuildView_SortByValue(t *testing.T) {
	ps := []domain.Position{
		pos("small", domain.StatusOpen, 1, nil, 0),
		pos("big", domain.StatusOpen, 100, nil, 0),
	}
	opts := portfolio.DefaultViewOptions()
	opts.Sort = portfolio.SortValue
	assert.Equal(t, []string{"big", "small"}, ids(portfolio.BuildView(ps, opts).Positions))
}

func TestFilter_MutuallyExhaustive(t *testing.T) {
	statuses := []domain.TradeStatus{
		domain.StatusOpen,
		domain.StatusUserClosed,
		domain.StatusCounterpartyClosed,
		domain.StatusResolved,
	}
	filters := []portfolio.StatusFilter{portfolio.FilterOpen, portfolio.FilterSold, portfolio.FilterResolved}

	for _, st := range statuses {
		matches := 0
		for _, f := range filters {
			if portfolio.MatchesFilter(domain.UnifiedTrade{Status: st}, f) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "status %s", st)
		assert.True(t, portfolio.MatchesFilter(domain.UnifiedTrade{Status: st}, portfolio.FilterAll))
	}
}

func TestFilter_OpenIncludesCounterpartyClosed(t *testing.T) {
	ps := []domain.Position{
		pos("a", domain.StatusOpen, 1, nil, 0),
		pos("b", domain.StatusCounterpartyClosed, 1, nil, 0),
		pos("c", domain.StatusUserClosed, 1, nil, 0),
		pos("d", domain.StatusResolved, 1, nil, 0),
	}
	assert.Equal(t, []string{"a", "b"}, ids(portfolio.Filter(ps, portfolio.FilterOpen)))
	assert.Equal(t, []string{"c"}, ids(portfolio.Filter(ps, portfolio.FilterSold)))
	assert.Equal(t, []string{"d"}, ids(portfolio.Filter(ps, portfolio.FilterResolved)))
}

func TestBuildView_LoadMoreAccumulates(t *testing.T) {
	var ps []domain.Position
	for i := 0; i < 45; i++ {
		ps = append(ps, pos(fmt.Sprintf("p%02d", i), domain.StatusOpen, 1, nil, time.Duration(i)*time.Minute))
	}
	opts := portfolio.DefaultViewOptions()

	v := portfolio.BuildView(ps, opts)
	assert.Len(t, v.Positions, 20)
	assert.True(t, v.HasMore)
	assert.Equal(t, 45, v.Total)

	opts.Page = 2
	v = portfolio.BuildView(ps, opts)
	assert.Len(t, v.Positions, 40)
	assert.True(t, v.HasMore)
	assert.Equal(t, "p00", v.Positions[0].Trade.ID)

	opts.Page = 3
	v = portfolio.BuildView(ps, opts)
	assert.Len(t, v.Positions, 45)
	assert.False(t, v.HasMore)
}

func TestParseViewOptions(t *testing.T) {
	opts, err := portfolio.ParseViewOptions("", "", "", "", 0)
	require.NoError(t, err)
	want := portfolio.DefaultViewOptions()
	want.PageSize = 0
	assert.Equal(t, want, opts)

	opts, err = portfolio.ParseViewOptions("Sold", "roi", "asc", "3", 10)
	require.NoError(t, err)
	assert.Equal(t, portfolio.FilterSold, opts.Status)
	assert.Equal(t, portfolio.SortROI, opts.Sort)
	assert.False(t, opts.Desc)
	assert.Equal(t, 3, opts.Page)
	assert.Equal(t, 10, opts.PageSize)

	for _, bad := range [][4]string{
		{"closed", "", "", ""},
		{"", "pnl", "", ""},
		{"", "", "up", ""},
		{"", "", "", "0"},
		{"", "", "", "x"},
	} {
		_, err := portfolio.ParseViewOptions(bad[0], bad[1], bad[2], bad[3], 0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%v", bad)
	}
}

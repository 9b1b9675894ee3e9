// Package agenda assembles one board: window, events, layout and theme.
package agenda

import (
	"context"
	"time"

	"daycal/internal/aggregate"
	"daycal/internal/clock"
	"daycal/internal/layout"
	"daycal/internal/model"
	"daycal/internal/solar"
	"daycal/internal/source"
	"daycal/internal/theme"
	"daycal/internal/window"
)

type Options struct {
	Selector    source.Selector
	Days        int
	TodayOffset int
	Location    *time.Location

	Coordinates   *solar.Coordinates
	ThemeOverride theme.Mode
	ThemeFallback theme.Mode
	LightMargin   time.Duration
	DarkMargin    time.Duration

	Clock clock.Clock
}

// Board is everything a renderer needs for one page.
type Board struct {
	Now      time.Time
	Today    model.Date
	Window   []model.Date
	Location *time.Location
	Layout   layout.Result
	Theme    theme.Decision
	// Solar is nil when no coordinates are configured.
	Solar *solar.Result
	// Degraded is set when the events are stale or missing because the
	// last refresh failed.
	Degraded  bool
	FetchedAt time.Time
}

type EventCache interface {
	Get(ctx context.Context, req aggregate.Request) aggregate.Result
}

type Service struct {
	cache EventCache
	opts  Options
	clock clock.Clock
}

// NewService checks the window parameters up front; they are the only
// errors Board can produce.
func NewService(cache EventCache, opts Options) (*Service, error) {
	if err := window.Validate(opts.Days, opts.TodayOffset); err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{cache: cache, opts: opts, clock: clk}, nil
}

func (s *Service) Board(ctx context.Context) (Board, error) {
	loc := s.opts.Location
	now := s.clock.Now().In(loc)
	today := window.Today(now, loc)

	w, err := window.Build(today, s.opts.Days, s.opts.TodayOffset)
	if err != nil {
		return Board{}, err
	}
	rng := window.Range(w, loc)

	res := s.cache.Get(ctx, aggregate.Request{
		Selector:    s.opts.Selector,
		Days:        s.opts.Days,
		TodayOffset: s.opts.TodayOffset,
		Location:    loc,
		Range:       rng,
	})

	board := Board{
		Now:       now,
		Today:     today,
		Window:    w,
		Location:  loc,
		Layout:    layout.Layout(res.Events, w, loc),
		Degraded:  res.ServedStale,
		FetchedAt: res.FetchedAt,
	}

	sun, ok := solar.Compute(today, s.opts.Coordinates, loc)
	if ok {
		board.Solar = &sun
	}
	board.Theme = theme.Select(theme.Options{
		Override:    s.opts.ThemeOverride,
		Now:         now,
		Solar:       sun,
		SolarOK:     ok,
		LightMargin: s.opts.LightMargin,
		DarkMargin:  s.opts.DarkMargin,
		Fallback:    s.opts.ThemeFallback,
	})

	return board, nil
}

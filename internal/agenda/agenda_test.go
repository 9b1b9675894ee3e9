package agenda

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/aggregate"
	"daycal/internal/clock"
	"daycal/internal/model"
	"daycal/internal/solar"
	"daycal/internal/source"
	"daycal/internal/theme"
)

type stubCache struct {
	result aggregate.Result
	got    aggregate.Request
}

func (s *stubCache) Get(ctx context.Context, req aggregate.Request) aggregate.Result {
	s.got = req
	return s.result
}

func TestBoard_ComposesWindowLayoutAndTheme(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	trip := model.Event{
		ID: "trip", AllDay: true,
		Start: model.NewDate(2024, time.June, 8).In(loc),
		End:   model.NewDate(2024, time.June, 12).In(loc),
	}
	cache := &stubCache{result: aggregate.Result{Events: []model.Event{trip}, ServedStale: true}}
	svc, err := NewService(cache, Options{
		Selector:    source.Selector{Mode: source.SelectAll},
		Days:        5,
		TodayOffset: 1,
		Location:    loc,
		Coordinates: &solar.Coordinates{Latitude: 52.52, Longitude: 13.405},
		LightMargin: theme.DefaultLightMargin,
		DarkMargin:  theme.DefaultDarkMargin,
		Clock:       &clock.MockClock{FixedNow: time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	board, err := svc.Board(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.NewDate(2024, time.June, 10), board.Today)
	require.Len(t, board.Window, 5)
	assert.Equal(t, model.NewDate(2024, time.June, 9), board.Window[0])
	assert.True(t, board.Degraded)
	require.Len(t, board.Layout.Bars, 1)
	assert.Equal(t, 3, board.Layout.Bars[0].Span)
	assert.Equal(t, theme.Decision{Mode: theme.Light, Reason: theme.ReasonSolar}, board.Theme)
	require.NotNil(t, board.Solar)

	assert.Equal(t, model.NewDate(2024, time.June, 9).In(loc), cache.got.Range.Start)
	assert.Equal(t, model.NewDate(2024, time.June, 14).In(loc), cache.got.Range.End)
	assert.Equal(t, 5, cache.got.Days)
}

func TestBoard_FallbackThemeWithoutCoordinates(t *testing.T) {
	svc, err := NewService(&stubCache{result: aggregate.Result{Events: []model.Event{}}}, Options{
		Days:  3,
		Clock: &clock.MockClock{FixedNow: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)

	board, err := svc.Board(context.Background())
	require.NoError(t, err)

	assert.Nil(t, board.Solar)
	assert.Equal(t, theme.Decision{Mode: theme.Dark, Reason: theme.ReasonFallback}, board.Theme)
	assert.False(t, board.Degraded)
	assert.Equal(t, time.UTC, board.Location)
}

func TestBoard_WindowFollowsClock(t *testing.T) {
	clk := &clock.MockClock{FixedNow: time.Date(2024, 6, 10, 23, 30, 0, 0, time.UTC)}
	cache := &stubCache{}
	svc, err := NewService(cache, Options{Days: 3, TodayOffset: 1, Clock: clk})
	require.NoError(t, err)

	board, err := svc.Board(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.NewDate(2024, time.June, 10), board.Today)

	clk.SetNow(time.Date(2024, 6, 11, 0, 30, 0, 0, time.UTC))
	board, err = svc.Board(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.NewDate(2024, time.June, 11), board.Today)
	assert.Equal(t, model.NewDate(2024, time.June, 10), board.Window[0])
	assert.Equal(t, model.NewDate(2024, time.June, 10).In(time.UTC), cache.got.Range.Start)
}

func TestNewService_RejectsBadWindow(t *testing.T) {
	_, err := NewService(&stubCache{}, Options{Days: 5, TodayOffset: 5})
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/agenda"
	"daycal/internal/config"
	"daycal/internal/layout"
	"daycal/internal/model"
	"daycal/internal/theme"
	"daycal/internal/window"
)

type stubBoards struct {
	board agenda.Board
	err   error
}

func (s stubBoards) Board(context.Context) (agenda.Board, error) {
	return s.board, s.err
}

func sampleBoard(t *testing.T) agenda.Board {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	today := model.NewDate(2024, time.June, 10)
	w, err := window.Build(today, 5, 1)
	require.NoError(t, err)

	home := model.Calendar{ID: "home", Label: "Home", Color: "#2962ff"}
	events := []model.Event{
		{ID: "trip", Calendar: home, Title: "Trip", AllDay: true,
			Start: model.NewDate(2024, time.June, 8).In(loc), End: model.NewDate(2024, time.June, 12).In(loc)},
		{ID: "standup", Calendar: home, Title: "Standup <daily>",
			Start: time.Date(2024, 6, 10, 9, 0, 0, 0, loc), End: time.Date(2024, 6, 10, 9, 15, 0, 0, loc)},
	}
	return agenda.Board{
		Today:     today,
		Window:    w,
		Location:  loc,
		Layout:    layout.Layout(events, w, loc),
		Theme:     theme.Decision{Mode: theme.Dark, Reason: theme.ReasonFallback},
		Degraded:  true,
		FetchedAt: time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, boards BoardSource, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return NewServer(cfg, boards).Handler()
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, stubBoards{}, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get(requestIDHeader))
}

func TestBoardJSON(t *testing.T) {
	h := newTestServer(t, stubBoards{board: sampleBoard(t)}, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/board", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got boardView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))

	assert.Equal(t, "dark", got.Theme)
	assert.Equal(t, "fallback", got.Reason)
	assert.True(t, got.Degraded)
	assert.Equal(t, "Europe/Berlin", got.Timezone)
	require.Len(t, got.Days, 5)
	assert.Equal(t, "TODAY", got.Days[1].Name)
	assert.Equal(t, "SUNDAY", got.Days[0].Name)
	assert.Equal(t, "Jun 9", got.Days[0].ShortDate)

	require.Len(t, got.Bars, 1)
	bar := got.Bars[0]
	assert.Equal(t, 0, bar.Column)
	assert.Equal(t, 3, bar.Span)
	assert.True(t, bar.ContinuesBefore)
	assert.False(t, bar.ContinuesAfter)
	assert.Equal(t, "Jun 8 - Jun 11", bar.DateRange)
	assert.Equal(t, "All Day", bar.TimeText)

	var band []eventView
	for _, e := range got.Days[0].Events {
		if e.Band {
			band = append(band, e)
		}
	}
	require.Len(t, band, 1)
	loc := sampleBoard(t).Location
	assert.True(t, band[0].Start.Equal(model.NewDate(2024, time.June, 8).In(loc)))
	assert.True(t, band[0].ShownStart.Equal(model.NewDate(2024, time.June, 9).In(loc)))
	assert.True(t, band[0].ShownEnd.Equal(model.NewDate(2024, time.June, 12).In(loc)))
	assert.True(t, band[0].ContinuesBefore)

	var timed []eventView
	for _, e := range got.Days[1].Events {
		if !e.Band {
			timed = append(timed, e)
		}
	}
	require.Len(t, timed, 1)
	assert.Equal(t, "09:00 - 09:15", timed[0].TimeText)
	assert.Equal(t, "#2962ff", timed[0].Color)
}

func TestBoardHTML(t *testing.T) {
	h := newTestServer(t, stubBoards{board: sampleBoard(t)}, func(c *config.Config) { c.Language = "de_DE.UTF-8" })

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, `lang="de"`)
	assert.Contains(t, body, `class="theme-dark"`)
	assert.Contains(t, body, `data-ready="true"`)
	assert.Contains(t, body, `data-degraded="true"`)
	assert.Contains(t, body, "HEUTE")
	assert.Contains(t, body, "SONNTAG")
	assert.Contains(t, body, "Keine Termine")
	assert.Contains(t, body, "Standup &lt;daily&gt;")
	assert.NotContains(t, body, "<daily>")
}

func TestBoardError(t *testing.T) {
	h := newTestServer(t, stubBoards{err: errors.New("boom")}, nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/board", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"failed to build board"}`, rr.Body.String())
}

func TestBasicAuth(t *testing.T) {
	h := newTestServer(t, stubBoards{board: sampleBoard(t)}, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})

	testCases := []struct {
		name     string
		path     string
		user     string
		pass     string
		wantCode int
	}{
		{name: "health is open", path: "/health", wantCode: http.StatusOK},
		{name: "missing credentials", path: "/", wantCode: http.StatusUnauthorized},
		{name: "wrong password", path: "/api/board", user: "admin", pass: "nope", wantCode: http.StatusUnauthorized},
		{name: "valid", path: "/api/board", user: "admin", pass: "secret", wantCode: http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.user != "" {
				req.SetBasicAuth(tc.user, tc.pass)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantCode, rr.Code)
			if tc.wantCode == http.StatusUnauthorized {
				assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Basic")
			}
		})
	}
}

func TestPreview(t *testing.T) {
	out := filepath.Join(t.TempDir(), "preview.png")
	h := newTestServer(t, stubBoards{}, func(c *config.Config) { c.Capture.Output = out })

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/preview.png", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	png := []byte("\x89PNG\r\n\x1a\n")
	require.NoError(t, os.WriteFile(out, png, 0o644))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/preview.png", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
}

func TestRequestIDIsKept(t *testing.T) {
	h := newTestServer(t, stubBoards{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "abc-123", rr.Header().Get(requestIDHeader))
}

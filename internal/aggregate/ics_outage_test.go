package aggregate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/clock"
	"daycal/internal/ics"
	"daycal/internal/source"
)

func TestCache_ICSOutageIsDegraded(t *testing.T) {
	body := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//daycal//test//EN",
		"BEGIN:VEVENT",
		"UID:review",
		"SUMMARY:Review",
		"DTSTART:20240610T120000Z",
		"DTEND:20240610T130000Z",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n") + "\r\n"

	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	src := ics.NewSource(ics.NewFetcher(t.TempDir(), time.Second), []ics.Feed{{ID: "team", Name: "Team", URL: srv.URL + "/team.ics"}})
	clk := &clock.MockClock{FixedNow: today}
	c := New(src, Options{Clock: clk})
	ctx := context.Background()

	first := c.Get(ctx, req)
	require.Len(t, first.Events, 1)
	require.False(t, first.ServedStale)

	down.Store(true)
	clk.Advance(20 * time.Minute)
	during := c.Get(ctx, req)
	assert.Len(t, during.Events, 1)
	assert.True(t, during.ServedStale)
	assert.ErrorIs(t, during.LastError, source.ErrProtocol)
	assert.Equal(t, first.FetchedAt, during.FetchedAt)
}

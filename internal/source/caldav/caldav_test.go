package caldav

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/model"
	"daycal/internal/source"
)

const objectBody = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//daycal//test//EN\r\n" +
	"BEGIN:VTIMEZONE\r\n" +
	"TZID:Europe/Berlin\r\n" +
	"BEGIN:STANDARD\r\n" +
	"DTSTART:19701025T030000\r\n" +
	"TZOFFSETFROM:+0200\r\n" +
	"TZOFFSETTO:+0100\r\n" +
	"END:STANDARD\r\n" +
	"END:VTIMEZONE\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:retro@example.com\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"SUMMARY:Retro\\, sprint 12\r\n" +
	"LOCATION:Room 4\r\n" +
	"DTSTART;TZID=Europe/Berlin:20240610T140000\r\n" +
	"DTEND;TZID=Europe/Berlin:20240610T150000\r\n" +
	"RRULE:FREQ=WEEKLY\r\n" +
	"EXDATE;TZID=Europe/Berlin:20240617T140000,20240624T140000\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:retro@example.com\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"SUMMARY:Retro (online)\r\n" +
	"RECURRENCE-ID;TZID=Europe/Berlin:20240701T140000\r\n" +
	"DTSTART;TZID=Europe/Berlin:20240701T160000\r\n" +
	"DURATION:PT1H\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday@example.com\r\n" +
	"DTSTAMP:20240601T000000Z\r\n" +
	"SUMMARY:Holiday\r\n" +
	"DTSTART;VALUE=DATE:20240612\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func decode(t *testing.T, body string) *ical.Calendar {
	t.Helper()
	cal, err := ical.NewDecoder(strings.NewReader(body)).Decode()
	require.NoError(t, err)
	return cal
}

func TestRawEvents_ConvertsComponents(t *testing.T) {
	cal := model.Calendar{ID: "/calendars/u/work/", Label: "Work", Color: "#2962ff"}

	raws := RawEvents(cal, decode(t, objectBody))
	require.Len(t, raws, 3)

	base := raws[0]
	assert.Equal(t, cal, base.Calendar)
	assert.Equal(t, "Europe/Berlin", base.DefaultTZ)
	assert.Equal(t, "retro@example.com", base.UID)
	assert.Equal(t, "Retro, sprint 12", base.Summary)
	assert.Equal(t, "Room 4", base.Location)
	assert.Equal(t, source.RawTime{Value: "20240610T140000", TZID: "Europe/Berlin"}, base.Start)
	assert.Equal(t, source.RawTime{Value: "20240610T150000", TZID: "Europe/Berlin"}, base.End)
	assert.Equal(t, "FREQ=WEEKLY", base.RRule)
	require.Len(t, base.ExDates, 2)
	assert.Equal(t, "20240624T140000", base.ExDates[1].Value)
	assert.Equal(t, "Europe/Berlin", base.ExDates[1].TZID)

	override := raws[1]
	require.NotNil(t, override.RecurrenceID)
	assert.Equal(t, "20240701T140000", override.RecurrenceID.Value)
	assert.Equal(t, "PT1H", override.Duration)

	holiday := raws[2]
	assert.True(t, holiday.Start.IsDate)
	assert.True(t, holiday.End.IsZero())
}

func TestRawEvents_NilCalendar(t *testing.T) {
	assert.Empty(t, RawEvents(model.Calendar{}, nil))
}

func TestFetch_ClassifiesServerErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: source.ErrAuthenticationFailed},
		{name: "forbidden", status: http.StatusForbidden, want: source.ErrAuthenticationFailed},
		{name: "server error", status: http.StatusInternalServerError, want: source.ErrProtocol},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var gotUser string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _, _ = r.BasicAuth()
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			src := New(Config{Endpoint: srv.URL, Username: "me@example.com", Password: "app-pass", Timeout: time.Second})
			_, err := src.Fetch(context.Background(), source.Selector{Mode: source.SelectDefault}, model.Range{})

			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, "me@example.com", gotUser)
		})
	}
}

func TestFetch_NetworkUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	src := New(Config{Endpoint: endpoint, Timeout: time.Second})
	_, err := src.Fetch(context.Background(), source.Selector{Mode: source.SelectAll}, model.Range{})

	assert.ErrorIs(t, err, source.ErrNetworkUnavailable)
}

func TestQuery_ExpandsOnServerByDefault(t *testing.T) {
	rng := model.Range{
		Start: time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC),
	}

	q := New(Config{}).query(rng)
	require.NotNil(t, q.CompRequest.Expand)
	assert.Equal(t, rng.Start, q.CompRequest.Expand.Start)
	assert.Equal(t, ical.CompEvent, q.CompFilter.Comps[0].Name)
	assert.Equal(t, rng.End, q.CompFilter.Comps[0].End)

	q = New(Config{ClientExpand: true}).query(rng)
	assert.Nil(t, q.CompRequest.Expand)
}

type scriptedClient struct {
	steps []func() (*http.Response, error)
}

func (c *scriptedClient) Do(req *http.Request) (*http.Response, error) {
	step := c.steps[0]
	c.steps = c.steps[1:]
	return step()
}

func TestStatusRecorder_ClassifiesFromLatestRequest(t *testing.T) {
	netErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	rec := &statusRecorder{next: &scriptedClient{steps: []func() (*http.Response, error){
		func() (*http.Response, error) {
			return &http.Response{StatusCode: http.StatusNotFound, Body: http.NoBody}, nil
		},
		func() (*http.Response, error) { return nil, netErr },
	}}}
	req := httptest.NewRequest(http.MethodGet, "http://dav.example.com/", nil)

	resp, err := rec.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.ErrorIs(t, rec.classify("Home", errors.New("404 Not Found")), source.ErrCalendarNotFound)

	_, err = rec.Do(req)
	require.Error(t, err)
	assert.ErrorIs(t, rec.classify("Home", err), source.ErrNetworkUnavailable)
}

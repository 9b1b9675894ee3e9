// Package caldav is the CalDAV calendar source (iCloud and compatible
// servers), built on emersion/go-webdav.
package caldav

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	gocaldav "github.com/emersion/go-webdav/caldav"

	appLog "daycal/internal/log"
	"daycal/internal/model"
	"daycal/internal/source"
)

const (
	DefaultEndpoint = "https://caldav.icloud.com/"
	defaultTimeout  = 20 * time.Second
)

type Config struct {
	Endpoint string
	Username string
	Password string
	Timeout  time.Duration
	// ClientExpand skips the server-side expand request for servers that
	// ignore or mishandle it; recurrences are then expanded locally.
	ClientExpand bool
}

// Source discovers the user's calendars on every fetch and queries the
// selected ones with server-side recurrence expansion.
type Source struct {
	cfg Config
}

var _ source.Source = (*Source)(nil)

func New(cfg Config) *Source {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Source{cfg: cfg}
}

// statusRecorder keeps the failing HTTP status of the most recent request
// so errors from go-webdav can be classified. Each request starts from a
// clean slate; requests within one fetch run sequentially.
type statusRecorder struct {
	next   webdav.HTTPClient
	status atomic.Int32
}

func (r *statusRecorder) Do(req *http.Request) (*http.Response, error) {
	r.status.Store(0)
	resp, err := r.next.Do(req)
	if err == nil && resp.StatusCode >= 400 {
		r.status.Store(int32(resp.StatusCode))
	}
	return resp, err
}

func (r *statusRecorder) classify(calendar string, err error) error {
	return source.NewFetchError(source.Classify(int(r.status.Load()), err), calendar, err)
}

func (s *Source) client() (*gocaldav.Client, *statusRecorder, error) {
	httpClient := &http.Client{Timeout: s.cfg.Timeout}
	rec := &statusRecorder{next: webdav.HTTPClientWithBasicAuth(httpClient, s.cfg.Username, s.cfg.Password)}
	c, err := gocaldav.NewClient(rec, s.cfg.Endpoint)
	if err != nil {
		return nil, nil, source.NewFetchError(source.ErrProtocol, "", err)
	}
	return c, rec, nil
}

func (s *Source) Fetch(ctx context.Context, sel source.Selector, rng model.Range) ([]source.RawEvent, error) {
	c, rec, err := s.client()
	if err != nil {
		return nil, err
	}

	collections, err := discover(ctx, c)
	if err != nil {
		err = rec.classify("", err)
		appLog.Error("caldav discovery failed", err, "endpoint", s.cfg.Endpoint, "kind", source.KindName(err))
		return nil, err
	}

	calendars, err := source.Resolve(sel, collections)
	if err != nil {
		return nil, err
	}

	out := make([]source.RawEvent, 0)
	for _, cal := range calendars {
		objects, err := c.QueryCalendar(ctx, cal.ID, s.query(rng))
		if err != nil {
			err = rec.classify(cal.Label, err)
			appLog.Error("caldav query failed", err, "calendar", cal.Label, "kind", source.KindName(err))
			return nil, err
		}
		n := 0
		for _, obj := range objects {
			raws := RawEvents(cal, obj.Data)
			n += len(raws)
			out = append(out, raws...)
		}
		appLog.Info("caldav calendar fetched", "calendar", cal.Label, "objects", len(objects), "records", n)
	}
	return out, nil
}

func discover(ctx context.Context, c *gocaldav.Client) ([]source.Collection, error) {
	principal, err := c.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	home, err := c.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, err
	}
	found, err := c.FindCalendars(ctx, home)
	if err != nil {
		return nil, err
	}

	out := make([]source.Collection, 0, len(found))
	for _, cal := range found {
		if !supportsEvents(cal) {
			continue
		}
		name := cal.Name
		if name == "" {
			name = cal.Path
		}
		out = append(out, source.Collection{ID: cal.Path, Name: name})
	}
	if len(out) == 0 {
		return nil, errors.New("no event calendars in home set")
	}
	appLog.Debug("caldav discovered calendars", "home", home, "count", len(out))
	return out, nil
}

func supportsEvents(cal gocaldav.Calendar) bool {
	if len(cal.SupportedComponentSet) == 0 {
		return true
	}
	for _, comp := range cal.SupportedComponentSet {
		if strings.EqualFold(comp, ical.CompEvent) {
			return true
		}
	}
	return false
}

// query asks for VEVENTs overlapping rng, expanded by the server.
func (s *Source) query(rng model.Range) *gocaldav.CalendarQuery {
	q := &gocaldav.CalendarQuery{
		CompRequest: gocaldav.CalendarCompRequest{
			Name:  ical.CompCalendar,
			Props: []string{"VERSION", "X-WR-TIMEZONE"},
			Comps: []gocaldav.CalendarCompRequest{
				{Name: ical.CompEvent, AllProps: true},
				{Name: ical.CompTimezone, AllProps: true},
			},
		},
		CompFilter: gocaldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []gocaldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: rng.Start.UTC(),
				End:   rng.End.UTC(),
			}},
		},
	}
	if !s.cfg.ClientExpand {
		q.CompRequest.Expand = &gocaldav.CalendarExpandRequest{Start: rng.Start.UTC(), End: rng.End.UTC()}
	}
	return q
}

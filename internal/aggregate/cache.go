// Package aggregate caches normalized events per calendar configuration
// and serves the last good data when a refresh fails.
package aggregate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"daycal/internal/clock"
	appLog "daycal/internal/log"
	"daycal/internal/model"
	"daycal/internal/normalize"
	"daycal/internal/source"
)

const (
	DefaultTTL          = 15 * time.Minute
	defaultFetchTimeout = 30 * time.Second
)

// Request identifies what to fetch. Every field takes part in the cache key
// except Range, which is checked against the cached entry instead.
type Request struct {
	Selector    source.Selector
	Days        int
	TodayOffset int
	Location    *time.Location
	Range       model.Range
}

// Key is a digest over selector, window shape and zone.
func (r Request) Key() string {
	zone := "UTC"
	if r.Location != nil {
		zone = r.Location.String()
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%d\x00%s", r.Selector.Key(), r.Days, r.TodayOffset, zone)))
	return hex.EncodeToString(sum[:])
}

// Result is what GetEvents returns plus the metadata a renderer may show.
type Result struct {
	Events      []model.Event
	ServedStale bool
	FetchedAt   time.Time
	LastError   error
}

type Options struct {
	// Schedule decides when an entry expires: the entry is fresh until
	// Schedule.Next(FetchedAt). Defaults to cron.Every(DefaultTTL).
	Schedule     cron.Schedule
	Store        Store
	Clock        clock.Clock
	FetchTimeout time.Duration
}

type Cache struct {
	src          source.Source
	store        Store
	schedule     cron.Schedule
	clock        clock.Clock
	fetchTimeout time.Duration
	group        singleflight.Group
}

func New(src source.Source, opts Options) *Cache {
	c := &Cache{
		src:          src,
		store:        opts.Store,
		schedule:     opts.Schedule,
		clock:        opts.Clock,
		fetchTimeout: opts.FetchTimeout,
	}
	if c.store == nil {
		c.store = NewMemoryStore()
	}
	if c.schedule == nil {
		c.schedule = cron.Every(DefaultTTL)
	}
	if c.clock == nil {
		c.clock = clock.SystemClock{}
	}
	if c.fetchTimeout <= 0 {
		c.fetchTimeout = defaultFetchTimeout
	}
	return c
}

// ParseSchedule turns the refresh setting into an expiry schedule.
// An empty spec uses ttl (or DefaultTTL); otherwise spec is a standard
// cron expression or descriptor such as "@every 10m" or "*/5 6-22 * * *".
func ParseSchedule(spec string, ttl time.Duration) (cron.Schedule, error) {
	if spec == "" {
		if ttl <= 0 {
			ttl = DefaultTTL
		}
		return cron.Every(ttl), nil
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	return sched, nil
}

// GetEvents returns events for req and whether they are stale.
func (c *Cache) GetEvents(ctx context.Context, req Request) ([]model.Event, bool) {
	res := c.Get(ctx, req)
	return res.Events, res.ServedStale
}

// Get serves a fresh entry from the store, or refreshes it. A failed
// refresh never returns an error: the previous events (or none) are
// returned with ServedStale set.
func (c *Cache) Get(ctx context.Context, req Request) Result {
	key := req.Key()
	now := c.clock.Now()

	if e := c.store.Load(key); c.fresh(e, req, now) {
		return result(e, false)
	}

	v, _, shared := c.group.Do(key, func() (interface{}, error) {
		return c.refresh(ctx, key, req), nil
	})
	if shared {
		appLog.Debug("cache refresh shared with concurrent request", "key", key[:12])
	}
	return v.(Result)
}

func (c *Cache) fresh(e *Entry, req Request, now time.Time) bool {
	if !e.HasData() || e.LastError != nil || !e.Range.Start.Equal(req.Range.Start) || !e.Range.End.Equal(req.Range.End) {
		return false
	}
	return now.Before(c.schedule.Next(e.FetchedAt))
}

func (c *Cache) refresh(ctx context.Context, key string, req Request) Result {
	// Shared by every caller waiting on this key, so not tied to one request.
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
	defer cancel()

	old := c.store.Load(key)
	started := c.clock.Now()

	raws, err := c.src.Fetch(fetchCtx, req.Selector, req.Range)
	if source.IsStale(err) {
		return c.storeStale(key, req, old, raws, err)
	}
	if err != nil {
		failed := &Entry{Key: key, LastError: err, FailedAt: c.clock.Now(), Failures: 1}
		if old != nil {
			failed.FetchedAt = old.FetchedAt
			failed.Range = old.Range
			failed.Events = old.Events
			failed.Failures = old.Failures + 1
		}
		c.store.Swap(key, failed)

		appLog.Error("calendar fetch failed; serving cached events", err,
			"kind", source.KindName(err),
			"cached_events", len(failed.Events),
			"last_success", failed.FetchedAt,
			"consecutive_failures", failed.Failures,
		)
		return result(failed, true)
	}

	batch := normalize.Batch(raws, req.Location, req.Range)
	fresh := &Entry{
		Key:       key,
		FetchedAt: c.clock.Now(),
		Range:     req.Range,
		Events:    batch.Events,
	}
	c.store.Swap(key, fresh)

	appLog.Info("calendar cache refreshed",
		"records", len(raws),
		"events", len(batch.Events),
		"skipped", len(batch.Failures),
		"took", c.clock.Now().Sub(started),
	)
	return result(fresh, false)
}

// storeStale keeps records the source could only serve from an older
// download. They replace the cached events, but the entry stays marked
// as failed and keeps the time of the last live fetch.
func (c *Cache) storeStale(key string, req Request, old *Entry, raws []source.RawEvent, err error) Result {
	batch := normalize.Batch(raws, req.Location, req.Range)
	e := &Entry{
		Key:       key,
		Range:     req.Range,
		Events:    batch.Events,
		LastError: err,
		FailedAt:  c.clock.Now(),
		Failures:  1,
	}
	if old != nil {
		e.FetchedAt = old.FetchedAt
		e.Failures = old.Failures + 1
	}
	c.store.Swap(key, e)

	appLog.Error("calendar fetch degraded; serving stored copy", err,
		"kind", source.KindName(err),
		"events", len(e.Events),
		"last_success", e.FetchedAt,
		"consecutive_failures", e.Failures,
	)
	return result(e, true)
}

func result(e *Entry, stale bool) Result {
	events := e.Events
	if events == nil {
		events = []model.Event{}
	}
	return Result{Events: events, ServedStale: stale, FetchedAt: e.FetchedAt, LastError: e.LastError}
}

// Package ics is the subscription-feed calendar source: plain ICS URLs
// fetched over HTTP with validator caching and parsed with golang-ical.
package ics

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	appLog "daycal/internal/log"
	"daycal/internal/model"
	"daycal/internal/source"
)

const maxParallelFetches = 4

// Source serves a fixed set of feeds. Feed names are the calendar names
// the selector matches against.
type Source struct {
	fetcher *Fetcher
	feeds   []Feed
}

var _ source.Source = (*Source)(nil)

func NewSource(fetcher *Fetcher, feeds []Feed) *Source {
	return &Source{fetcher: fetcher, feeds: feeds}
}

// Fetch downloads and parses every feed sel resolves to. Feeds carry whole
// calendars, so rng is not used for filtering here.
func (s *Source) Fetch(ctx context.Context, sel source.Selector, rng model.Range) ([]source.RawEvent, error) {
	calendars, err := s.resolve(sel)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Feed, len(s.feeds))
	for _, f := range s.feeds {
		byID[f.ID] = f
	}

	// One slot per calendar keeps the output order stable.
	out := make([][]source.RawEvent, len(calendars))
	staleErrs := make([]error, len(calendars))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, cal := range calendars {
		feed := byID[cal.ID]
		g.Go(func() error {
			res, err := s.fetcher.FetchOne(gctx, feed)
			if err != nil {
				appLog.Error("ics fetch failed", err, "id", feed.ID, "url", source.RedactURL(feed.URL), "kind", source.KindName(err))
				return err
			}
			raws, err := ParseFeed(cal, res.Body)
			if err != nil {
				appLog.Error("ics parse failed", err, "id", feed.ID, "url", source.RedactURL(feed.URL))
				return source.NewFetchError(source.ErrProtocol, cal.Label, err)
			}
			out[i] = raws
			staleErrs[i] = res.Err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, raws := range out {
		total += len(raws)
	}
	all := make([]source.RawEvent, 0, total)
	for _, raws := range out {
		all = append(all, raws...)
	}

	appLog.Info("ics fetch completed", "calendars", len(calendars), "records", len(all),
		"range_start", rng.Start, "range_end", rng.End)
	if err := errors.Join(staleErrs...); err != nil {
		return all, &source.StaleError{Err: err}
	}
	return all, nil
}

func (s *Source) resolve(sel source.Selector) ([]model.Calendar, error) {
	available := make([]source.Collection, 0, len(s.feeds))
	colors := make(map[string]string, len(s.feeds))
	for _, f := range s.feeds {
		available = append(available, source.Collection{ID: f.ID, Name: f.Name})
		colors[f.ID] = f.Color
	}

	calendars, err := source.Resolve(sel, available)
	if err != nil {
		return nil, err
	}
	if sel.Mode != source.SelectNamed {
		for i := range calendars {
			if c := colors[calendars[i].ID]; c != "" {
				calendars[i].Color = c
			}
		}
	}
	return calendars, nil
}

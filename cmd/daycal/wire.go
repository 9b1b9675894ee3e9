package main

import (
	"fmt"

	"daycal/internal/agenda"
	"daycal/internal/aggregate"
	"daycal/internal/config"
	"daycal/internal/ics"
	"daycal/internal/source"
	"daycal/internal/source/caldav"
	"daycal/internal/theme"
)

func newSource(cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Provider {
	case config.ProviderCalDAV:
		return caldav.New(caldav.Config{
			Endpoint:     cfg.Source.URL,
			Username:     cfg.Source.Username,
			Password:     cfg.Source.Password,
			Timeout:      cfg.SourceTimeout(),
			ClientExpand: cfg.Source.ClientExpand,
		}), nil
	case config.ProviderICS:
		feeds := make([]ics.Feed, 0, len(cfg.Source.Feeds))
		for _, f := range cfg.Source.Feeds {
			feeds = append(feeds, ics.Feed{ID: f.ID, Name: f.Name, URL: f.URL, Color: f.Color})
		}
		return ics.NewSource(ics.NewFetcher(cfg.Source.CacheDir, cfg.SourceTimeout()), feeds), nil
	default:
		return nil, fmt.Errorf("unknown source provider %q", cfg.Source.Provider)
	}
}

// newService wires source, cache and agenda from a validated config.
func newService(cfg *config.Config) (*agenda.Service, error) {
	src, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	schedule, err := aggregate.ParseSchedule(cfg.Refresh, cfg.TTL())
	if err != nil {
		return nil, err
	}
	cache := aggregate.New(src, aggregate.Options{
		Schedule: schedule,
		Store:    aggregate.NewMemoryStore(),
	})

	override, err := theme.ParseMode(cfg.Theme)
	if err != nil {
		return nil, err
	}
	fallback, err := theme.ParseMode(cfg.ThemeFallback)
	if err != nil {
		return nil, err
	}

	return agenda.NewService(cache, agenda.Options{
		Selector:      cfg.Selector(),
		Days:          cfg.Days,
		TodayOffset:   cfg.TodayOffset,
		Location:      cfg.Location(),
		Coordinates:   cfg.Coordinates(),
		ThemeOverride: override,
		ThemeFallback: fallback,
		LightMargin:   cfg.LightMargin(),
		DarkMargin:    cfg.DarkMargin(),
	})
}

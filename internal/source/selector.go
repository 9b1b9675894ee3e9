package source

import (
	"sort"
	"strings"

	appLog "daycal/internal/log"
	"daycal/internal/model"
)

// DefaultPalette is assigned by index to calendars without an explicit color.
var DefaultPalette = []string{
	"#2962ff", // blue
	"#d50000", // red
	"#00c853", // green
	"#ff6d00", // orange
	"#aa00ff", // purple
	"#00bfa5", // teal
	"#c51162", // pink
}

type SelectMode int

const (
	// SelectDefault picks the first calendar the provider reports.
	SelectDefault SelectMode = iota
	// SelectAll picks every calendar, colored by palette index in name order.
	SelectAll
	// SelectNamed picks the listed calendars with their colors.
	SelectNamed
	// SelectLegacy picks one calendar by name (CALENDAR_NAME).
	SelectLegacy
)

func (m SelectMode) String() string {
	switch m {
	case SelectAll:
		return "all"
	case SelectNamed:
		return "named"
	case SelectLegacy:
		return "legacy"
	default:
		return "default"
	}
}

type CalendarRef struct {
	Name  string
	Color string
}

// Selector describes which provider collections to fetch.
type Selector struct {
	Mode      SelectMode
	Calendars []CalendarRef
}

// ParseSelector builds a selector from the "Name:#hex,Other" list format,
// falling back to the legacy single calendar name. "*" selects everything.
func ParseSelector(calendars, legacy string) Selector {
	calendars = strings.TrimSpace(calendars)
	legacy = strings.TrimSpace(legacy)

	if calendars == "*" {
		return Selector{Mode: SelectAll}
	}

	if calendars != "" {
		sel := Selector{Mode: SelectNamed}
		parts := make([]string, 0)
		for _, p := range strings.Split(calendars, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		for i, part := range parts {
			ref := CalendarRef{Name: part}
			if idx := strings.LastIndex(part, ":"); idx >= 0 {
				ref.Name = strings.TrimSpace(part[:idx])
				ref.Color = strings.TrimSpace(part[idx+1:])
			}
			if ref.Color == "" {
				ref.Color = DefaultPalette[i%len(DefaultPalette)]
			}
			sel.Calendars = append(sel.Calendars, ref)
		}
		if len(sel.Calendars) > 0 {
			return sel
		}
	}

	if legacy != "" {
		return Selector{
			Mode:      SelectLegacy,
			Calendars: []CalendarRef{{Name: legacy, Color: DefaultPalette[0]}},
		}
	}

	return Selector{Mode: SelectDefault}
}

// Key is a stable textual identity of the selector, used for cache keys.
func (s Selector) Key() string {
	var b strings.Builder
	b.WriteString(s.Mode.String())
	for _, c := range s.Calendars {
		b.WriteString("|")
		b.WriteString(c.Name)
		b.WriteString("=")
		b.WriteString(c.Color)
	}
	return b.String()
}

// Collection is a calendar discovered on the provider side.
type Collection struct {
	ID   string // provider path or feed ID
	Name string
}

// Resolve matches sel against the available collections and assigns colors.
// Configured names missing on the provider are logged and skipped;
// ErrCalendarNotFound is returned only when nothing matches.
func Resolve(sel Selector, available []Collection) ([]model.Calendar, error) {
	out := make([]model.Calendar, 0)

	switch sel.Mode {
	case SelectDefault:
		if len(available) > 0 {
			c := available[0]
			appLog.Info("no calendar configured; using first found", "calendar", c.Name)
			out = append(out, model.Calendar{ID: c.ID, Label: c.Name, Color: DefaultPalette[0]})
		}

	case SelectAll:
		sorted := append([]Collection(nil), available...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
		for i, c := range sorted {
			out = append(out, model.Calendar{ID: c.ID, Label: c.Name, Color: DefaultPalette[i%len(DefaultPalette)]})
		}

	default:
		byName := make(map[string]Collection, len(available))
		for _, c := range available {
			if _, dup := byName[c.Name]; !dup {
				byName[c.Name] = c
			}
		}
		for _, ref := range sel.Calendars {
			c, ok := byName[ref.Name]
			if !ok {
				appLog.Warn("configured calendar not found on server", "calendar", ref.Name)
				continue
			}
			out = append(out, model.Calendar{ID: c.ID, Label: c.Name, Color: ref.Color})
		}
	}

	if len(out) == 0 {
		return nil, &FetchError{Kind: ErrCalendarNotFound, Calendar: sel.Key()}
	}
	return out, nil
}

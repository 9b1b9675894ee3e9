package normalize

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "daycal/internal/log"
	"daycal/internal/model"
	"daycal/internal/source"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// Result is the outcome of normalizing a batch of raw records.
type Result struct {
	Events []model.Event
	// Failures holds one *Error per record that was skipped.
	Failures []error
	// Truncated records UIDs that hit the per-event occurrence cap.
	Truncated []string
}

// Batch normalizes and expands raws into events overlapping rng.
//
// Records are grouped by (calendar, UID) so RECURRENCE-ID overrides can
// replace generated instances. A record that fails to normalize is logged
// and skipped; it never aborts the batch. Events are de-duplicated by
// (calendar, ID) and sorted by start, calendar, ID.
func Batch(raws []source.RawEvent, loc *time.Location, rng model.Range) Result {
	var result Result
	if loc == nil {
		loc = time.UTC
	}

	groups := groupByUID(raws)
	seen := make(map[string]struct{})

	for _, g := range groups {
		events, truncated, errs := expandGroup(g, loc, rng, defaultMaxOccurrencesPerEvent)
		for _, err := range errs {
			appLog.Warn("skipping event that failed to normalize", "err", err, "calendar", g.calendar, "uid", g.uid)
		}
		result.Failures = append(result.Failures, errs...)
		if truncated {
			result.Truncated = append(result.Truncated, g.uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", g.uid,
				"cap", defaultMaxOccurrencesPerEvent,
			)
		}

		for _, ev := range events {
			key := ev.Calendar.ID + "\x00" + ev.ID
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result.Events = append(result.Events, ev)
		}
	}

	sort.SliceStable(result.Events, func(i, j int) bool {
		a, b := result.Events[i], result.Events[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.Calendar.ID != b.Calendar.ID {
			return a.Calendar.ID < b.Calendar.ID
		}
		return a.ID < b.ID
	})

	return result
}

type group struct {
	calendar  string
	uid       string
	bases     []source.RawEvent
	overrides []source.RawEvent
}

func groupByUID(raws []source.RawEvent) []*group {
	order := make([]*group, 0)
	byKey := make(map[string]*group)

	for _, raw := range raws {
		if raw.UID == "" {
			// Nothing to correlate overrides with.
			order = append(order, &group{calendar: raw.Calendar.ID, bases: []source.RawEvent{raw}})
			continue
		}
		key := raw.Calendar.ID + "\x00" + raw.UID
		g, ok := byKey[key]
		if !ok {
			g = &group{calendar: raw.Calendar.ID, uid: raw.UID}
			byKey[key] = g
			order = append(order, g)
		}
		if raw.RecurrenceID != nil {
			g.overrides = append(g.overrides, raw)
		} else {
			g.bases = append(g.bases, raw)
		}
	}
	return order
}

func expandGroup(g *group, loc *time.Location, rng model.Range, maxOcc int) ([]model.Event, bool, []error) {
	out := make([]model.Event, 0)
	var errs []error
	truncated := false

	// Servers that expand recurrences themselves send instances only.
	if len(g.bases) == 0 {
		for _, ov := range g.overrides {
			ev, err := Normalize(ov, loc)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if rid, ok := recurrenceInstant(ov, ov, ev.AllDay, loc); ok {
				ev.ID = instanceID(ev.ID, rid, loc)
			}
			if ev.Overlaps(rng.Start, rng.End) {
				out = append(out, ev)
			}
		}
		return out, false, errs
	}

	for _, base := range g.bases {
		events, hitCap, err := expandBase(base, g.overrides, loc, rng, maxOcc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		truncated = truncated || hitCap
		out = append(out, events...)
	}

	for _, ov := range g.overrides {
		if _, err := Normalize(ov, loc); err != nil {
			errs = append(errs, err)
		}
	}

	return out, truncated, errs
}

// expandBase expands one base record and applies overrides whose
// RECURRENCE-ID matches a generated instance.
func expandBase(base source.RawEvent, overrides []source.RawEvent, loc *time.Location, rng model.Range, maxOcc int) ([]model.Event, bool, error) {
	first, err := Normalize(base, loc)
	if err != nil {
		return nil, false, err
	}

	dtstart, err := originalStart(base, first)
	if err != nil {
		return nil, false, err
	}

	// Overrides replace the instance they name, wherever it moved to.
	replaced := make(map[int64]struct{})
	out := make([]model.Event, 0)
	for _, ov := range overrides {
		rid, ok := recurrenceInstant(base, ov, first.AllDay, dtstart.Location())
		if !ok {
			continue
		}
		ev, err := Normalize(ov, loc)
		if err != nil {
			continue
		}
		replaced[rid.UnixNano()] = struct{}{}
		if base.RRule == "" {
			ev.ID = first.ID
		} else {
			ev.ID = instanceID(base.UID, rid, loc)
		}
		if ev.Overlaps(rng.Start, rng.End) {
			out = append(out, ev)
		}
	}

	if base.RRule == "" {
		if _, ok := replaced[dtstart.UnixNano()]; !ok && first.Overlaps(rng.Start, rng.End) {
			out = append(out, first)
		}
		return out, false, nil
	}

	r, err := rrule.StrToRRule(base.RRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", base.UID, "rrule", base.RRule)
		return nil, false, fieldError(base, "RRULE", err)
	}
	r.DTStart(dtstart)

	var set rrule.Set
	set.RRule(r)

	excludedDates := make(map[model.Date]struct{})
	for _, ex := range base.ExDates {
		if ex.TZID == "" {
			ex.TZID = base.Start.TZID
		}
		pt, err := parseRawTime(ex, base.DefaultTZ)
		if err != nil {
			appLog.Debug("expand: ignoring unparsable EXDATE", "uid", base.UID, "value", ex.Value)
			continue
		}
		switch {
		case pt.IsDate && first.AllDay:
			set.ExDate(model.DateOf(pt.Time).In(dtstart.Location()))
		case pt.IsDate:
			excludedDates[model.DateOf(pt.Time)] = struct{}{}
		default:
			set.ExDate(pt.Time.In(dtstart.Location()))
		}
	}

	days := first.FirstDay().DaysUntil(model.DateOf(first.End))
	dur := first.Duration()

	// Instances starting before rng can still overlap it.
	from := rng.Start.Add(-dur).In(dtstart.Location())
	to := rng.End.In(dtstart.Location())
	occTimes := set.Between(from, to, true)

	hitCap := false
	if len(occTimes) > maxOcc {
		occTimes = occTimes[:maxOcc]
		hitCap = true
	}

	for _, occStart := range occTimes {
		if _, ok := replaced[occStart.UnixNano()]; ok {
			continue
		}
		if _, ok := excludedDates[model.DateOf(occStart)]; ok {
			continue
		}

		ev := first
		if first.AllDay {
			d := model.DateOf(occStart)
			ev.Start = d.In(loc)
			ev.End = d.AddDays(days).In(loc)
		} else {
			ev.Start = occStart.In(loc)
			ev.End = occStart.Add(dur).In(loc)
		}
		ev.ID = instanceID(base.UID, occStart, loc)

		if ev.Overlaps(rng.Start, rng.End) {
			out = append(out, ev)
		}
	}

	return out, hitCap, nil
}

// originalStart is DTSTART in the zone recurrence rules are evaluated in:
// the event's own zone for timed events, the display zone for all-day ones.
func originalStart(base source.RawEvent, first model.Event) (time.Time, error) {
	if first.AllDay {
		return first.Start, nil
	}
	ps, err := parseRawTime(base.Start, base.DefaultTZ)
	if err != nil {
		return time.Time{}, fieldError(base, "DTSTART", err)
	}
	return ps.Time, nil
}

// recurrenceInstant parses ov's RECURRENCE-ID, interpreting floating values
// in base's start zone.
func recurrenceInstant(base, ov source.RawEvent, allDay bool, zone *time.Location) (time.Time, bool) {
	if ov.RecurrenceID == nil {
		return time.Time{}, false
	}
	rt := *ov.RecurrenceID
	if rt.TZID == "" {
		rt.TZID = base.Start.TZID
	}
	pt, err := parseRawTime(rt, base.DefaultTZ)
	if err != nil {
		return time.Time{}, false
	}
	if pt.IsDate {
		return model.DateOf(pt.Time).In(zone), true
	}
	if allDay {
		return model.DateOf(pt.Time.In(zone)).In(zone), true
	}
	return pt.Time, true
}

// Package layout places events into day columns and lanes.
//
// Two independent lane pools exist per day: the band (all-day and
// multi-day events, one unbroken row across the days they touch) and the
// timed area (single-day timed events). Layout is pure: the same events
// and window always produce the same placement.
package layout

import (
	"sort"
	"time"

	"daycal/internal/model"
	"daycal/internal/window"
)

// Slot is one event rendered on one day.
type Slot struct {
	Event  model.Event
	Day    model.Date
	Column int // index of Day in the window
	Lane   int
	Band   bool

	// Start and End are the event span clipped to the window.
	Start time.Time
	End   time.Time

	// ContinuesBefore/After report that the true span extends past the window edge.
	ContinuesBefore bool
	ContinuesAfter  bool
}

// Bar is a band event as a single grid item spanning Span columns.
type Bar struct {
	Event           model.Event
	Lane            int
	Column          int
	Span            int
	ContinuesBefore bool
	ContinuesAfter  bool
}

type Result struct {
	Window []model.Date
	// Days has an entry for every window date; band slots come first by lane,
	// then timed slots by start and lane.
	Days map[model.Date][]Slot
	// Bars lists band events in placement order.
	Bars       []Bar
	BandLanes  int
	TimedLanes map[model.Date]int
}

type placed struct {
	ev       model.Event
	band     bool
	first    int // first covered column
	last     int // last covered column
	lane     int
	clipFrom time.Time
	clipTo   time.Time
	before   bool
	after    bool
}

// Layout places events into w. Events not overlapping w are dropped.
// Day boundaries are midnights in loc.
func Layout(events []model.Event, w []model.Date, loc *time.Location) Result {
	if loc == nil {
		loc = time.UTC
	}
	res := Result{
		Window:     w,
		Days:       make(map[model.Date][]Slot, len(w)),
		Bars:       make([]Bar, 0),
		TimedLanes: make(map[model.Date]int, len(w)),
	}
	for _, d := range w {
		res.Days[d] = make([]Slot, 0)
	}
	if len(w) == 0 {
		return res
	}

	rng := window.Range(w, loc)
	items := make([]*placed, 0, len(events))
	for _, ev := range events {
		if !ev.End.After(ev.Start) || !ev.Overlaps(rng.Start, rng.End) {
			continue
		}
		items = append(items, clip(ev, w, rng, loc))
	}
	sortItems(items)

	assignBand(items, len(w), &res)
	assignTimed(items, w, &res)

	for _, it := range items {
		for c := it.first; c <= it.last; c++ {
			d := w[c]
			res.Days[d] = append(res.Days[d], Slot{
				Event:           it.ev,
				Day:             d,
				Column:          c,
				Lane:            it.lane,
				Band:            it.band,
				Start:           it.clipFrom,
				End:             it.clipTo,
				ContinuesBefore: it.before,
				ContinuesAfter:  it.after,
			})
		}
		if it.band {
			res.Bars = append(res.Bars, Bar{
				Event:           it.ev,
				Lane:            it.lane,
				Column:          it.first,
				Span:            it.last - it.first + 1,
				ContinuesBefore: it.before,
				ContinuesAfter:  it.after,
			})
		}
	}

	for _, d := range w {
		slots := res.Days[d]
		sort.SliceStable(slots, func(i, j int) bool {
			a, b := slots[i], slots[j]
			if a.Band != b.Band {
				return a.Band
			}
			if a.Band {
				return a.Lane < b.Lane
			}
			if !a.Start.Equal(b.Start) {
				return a.Start.Before(b.Start)
			}
			return a.Lane < b.Lane
		})
	}
	return res
}

func clip(ev model.Event, w []model.Date, rng model.Range, loc *time.Location) *placed {
	start := ev.Start.In(loc)
	end := ev.End.In(loc)
	it := &placed{
		ev:       ev,
		band:     ev.AllDay || model.DateOf(start) != model.DateOf(end.Add(-time.Nanosecond)),
		clipFrom: start,
		clipTo:   end,
		before:   start.Before(rng.Start),
		after:    end.After(rng.End),
	}
	if it.before {
		it.clipFrom = rng.Start
	}
	if it.after {
		it.clipTo = rng.End
	}
	it.first = window.Index(w, model.DateOf(it.clipFrom))
	it.last = window.Index(w, model.DateOf(it.clipTo.Add(-time.Nanosecond)))
	return it
}

// sortItems orders by start, longer first on ties, then calendar and ID
// so equal input always yields equal lanes.
func sortItems(items []*placed) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].ev, items[j].ev
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if da, db := a.Duration(), b.Duration(); da != db {
			return da > db
		}
		if a.Calendar.ID != b.Calendar.ID {
			return a.Calendar.ID < b.Calendar.ID
		}
		return a.ID < b.ID
	})
}

// assignBand gives each band event the lowest lane free on every column it covers.
func assignBand(items []*placed, columns int, res *Result) {
	occupied := make([]map[int]bool, columns)
	for i := range occupied {
		occupied[i] = make(map[int]bool)
	}

	for _, it := range items {
		if !it.band {
			continue
		}
		lane := 0
		for !laneFree(occupied, it.first, it.last, lane) {
			lane++
		}
		for c := it.first; c <= it.last; c++ {
			occupied[c][lane] = true
		}
		it.lane = lane
		if lane+1 > res.BandLanes {
			res.BandLanes = lane + 1
		}
	}
}

func laneFree(occupied []map[int]bool, first, last, lane int) bool {
	for c := first; c <= last; c++ {
		if occupied[c][lane] {
			return false
		}
	}
	return true
}

// assignTimed is greedy interval partitioning per day: items arrive in
// start order, so a lane is free once its last event has ended.
func assignTimed(items []*placed, w []model.Date, res *Result) {
	laneEnds := make(map[model.Date][]time.Time, len(w))

	for _, it := range items {
		if it.band {
			continue
		}
		d := w[it.first]
		ends := laneEnds[d]
		lane := -1
		for i, end := range ends {
			if !end.After(it.clipFrom) {
				lane = i
				break
			}
		}
		if lane == -1 {
			ends = append(ends, time.Time{})
			lane = len(ends) - 1
		}
		ends[lane] = it.clipTo
		laneEnds[d] = ends
		it.lane = lane
		if len(ends) > res.TimedLanes[d] {
			res.TimedLanes[d] = len(ends)
		}
	}
}

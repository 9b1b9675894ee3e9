package model

import (
	"errors"
	"time"
)

// ErrInvalidConfiguration marks deployment mistakes (bad window parameters,
// unknown timezone, ...). It is the one error class allowed to fail loudly.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Calendar describes the source collection an event belongs to.
type Calendar struct {
	ID    string // provider path or feed ID, stable across fetches
	Label string // human-friendly name shown in the UI
	Color string // display tint, e.g. "#2962ff"
}

// Event is a single concrete occurrence after normalization.
//
// Start and End are in the configured display timezone and End is exclusive.
// All-day events start and end at display-timezone midnights, so an all-day
// event on 06-08..06-11 ends at 06-12 00:00.
type Event struct {
	// ID is unique within Calendar. Recurring instances carry the
	// instance start as a suffix.
	ID       string
	Calendar Calendar

	Title       string
	Location    string
	Description string

	AllDay bool

	Start time.Time
	End   time.Time
}

func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Overlaps reports whether the event intersects the half-open range [start, end).
func (e Event) Overlaps(start, end time.Time) bool {
	return e.Start.Before(end) && e.End.After(start)
}

// FirstDay and LastDay are the dates the event touches in its own location.
func (e Event) FirstDay() Date {
	return DateOf(e.Start)
}

func (e Event) LastDay() Date {
	return DateOf(e.End.Add(-time.Nanosecond))
}

// MultiDay reports whether the event touches more than one date.
func (e Event) MultiDay() bool {
	return e.FirstDay() != e.LastDay()
}

// Range is a half-open instant range [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// Package source defines the contract between calendar providers and the
// rest of daycal. Adapters (CalDAV, ICS subscriptions) translate their
// provider-native records into RawEvent and never leak library types.
package source

import (
	"context"

	"daycal/internal/model"
)

// Source fetches raw event records for the calendars picked by sel,
// limited to occurrences that may overlap rng.
//
// Errors are *FetchError values; a fetch either returns records for every
// resolved calendar or fails as a whole. The one exception is a
// *StaleError, which comes with a complete set of records that were
// served from an earlier download.
type Source interface {
	Fetch(ctx context.Context, sel Selector, rng model.Range) ([]RawEvent, error)
}

// RawTime is a DTSTART/DTEND/EXDATE/RECURRENCE-ID value as encoded by the provider.
type RawTime struct {
	Value  string // e.g. "20240610T090000", "20240610T090000Z", "20240610"
	TZID   string // TZID parameter, if any
	IsDate bool   // VALUE=DATE or a date-only value
}

func (t RawTime) IsZero() bool {
	return t.Value == ""
}

// RawEvent is one VEVENT in provider-neutral form, before time parsing.
type RawEvent struct {
	Calendar model.Calendar

	UID         string
	Summary     string
	Location    string
	Description string

	Start    RawTime
	End      RawTime
	Duration string // DURATION, used when End is absent

	RRule        string
	ExDates      []RawTime
	RecurrenceID *RawTime

	// DefaultTZ is the calendar's stated zone (X-WR-TIMEZONE or the only
	// VTIMEZONE), applied to floating times. Empty means UTC.
	DefaultTZ string
}

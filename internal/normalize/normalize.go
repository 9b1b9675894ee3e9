// Package normalize turns provider-neutral raw records into model.Event
// values in the display timezone.
//
// Conventions enforced here, and assumed by every downstream package:
//   - End is exclusive.
//   - All-day events start and end at display-timezone midnights.
//   - Floating (zone-less) times are in the calendar's stated zone, or UTC.
//   - Zero-length events get a minimum duration (1 day all-day, 1 minute timed);
//     an End before Start is rejected.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"daycal/internal/model"
	"daycal/internal/source"
)

const (
	defaultTimedDuration = time.Hour
	minTimedDuration     = time.Minute
)

var ErrNormalization = errors.New("normalization failed")

// Error describes why one raw record could not be normalized.
// errors.Is(err, ErrNormalization) holds for every *Error.
type Error struct {
	Calendar string
	UID      string
	Field    string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s/%s: %s: %v", e.Calendar, e.UID, e.Field, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrNormalization
}

func fieldError(raw source.RawEvent, field string, err error) error {
	return &Error{Calendar: raw.Calendar.ID, UID: raw.UID, Field: field, Err: err}
}

// Normalize converts one non-recurring raw record into an Event in loc.
// The source calendar meta travels in raw.Calendar.
func Normalize(raw source.RawEvent, loc *time.Location) (model.Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, end, allDay, err := span(raw, loc)
	if err != nil {
		return model.Event{}, err
	}

	return model.Event{
		ID:          baseID(raw, start),
		Calendar:    raw.Calendar,
		Title:       raw.Summary,
		Location:    raw.Location,
		Description: raw.Description,
		AllDay:      allDay,
		Start:       start,
		End:         end,
	}, nil
}

// span resolves start/end of a raw record in loc, applying the end rules.
func span(raw source.RawEvent, loc *time.Location) (time.Time, time.Time, bool, error) {
	if raw.Start.IsZero() {
		return time.Time{}, time.Time{}, false, fieldError(raw, "DTSTART", errors.New("missing"))
	}
	ps, err := parseRawTime(raw.Start, raw.DefaultTZ)
	if err != nil {
		return time.Time{}, time.Time{}, false, fieldError(raw, "DTSTART", err)
	}

	var (
		pe     parsedTime
		hasEnd bool
		dur    time.Duration
		hasDur bool
	)
	if !raw.End.IsZero() {
		pe, err = parseRawTime(raw.End, raw.DefaultTZ)
		if err != nil {
			return time.Time{}, time.Time{}, false, fieldError(raw, "DTEND", err)
		}
		hasEnd = true
	} else if raw.Duration != "" {
		dur, err = parseDuration(raw.Duration)
		if err != nil {
			return time.Time{}, time.Time{}, false, fieldError(raw, "DURATION", err)
		}
		hasDur = true
	}

	if ps.IsDate {
		startDate := model.DateOf(ps.Time)
		endDate := startDate.AddDays(1)
		switch {
		case hasEnd && pe.IsDate:
			endDate = model.DateOf(pe.Time)
		case hasEnd:
			// A clock-time end still covers its own day.
			endLocal := pe.Time.In(loc)
			endDate = model.DateOf(endLocal)
			if !endLocal.Equal(endDate.In(loc)) {
				endDate = endDate.AddDays(1)
			}
		case hasDur:
			days := int(dur / (24 * time.Hour))
			if dur%(24*time.Hour) != 0 {
				days++
			}
			endDate = startDate.AddDays(days)
		}

		if endDate.Before(startDate) {
			return time.Time{}, time.Time{}, false, fieldError(raw, "DTEND", errors.New("end before start"))
		}
		if endDate == startDate {
			endDate = startDate.AddDays(1)
		}
		return startDate.In(loc), endDate.In(loc), true, nil
	}

	start := ps.Time
	end := start.Add(defaultTimedDuration)
	switch {
	case hasEnd && pe.IsDate:
		end = model.DateOf(pe.Time).In(start.Location())
	case hasEnd:
		end = pe.Time
	case hasDur:
		end = start.Add(dur)
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, false, fieldError(raw, "DTEND", errors.New("end before start"))
	}
	if end.Equal(start) {
		end = start.Add(minTimedDuration)
	}
	return start.In(loc), end.In(loc), false, nil
}

// baseID is the UID, or a content hash when the provider sent none.
func baseID(raw source.RawEvent, start time.Time) string {
	if raw.UID != "" {
		return raw.UID
	}
	sum := sha256.Sum256([]byte(raw.Calendar.ID + "\x00" + raw.Summary + "\x00" + start.UTC().Format(time.RFC3339)))
	return "gen-" + hex.EncodeToString(sum[:8])
}

// instanceID identifies one occurrence of a recurring event.
func instanceID(uid string, instanceStart time.Time, loc *time.Location) string {
	return uid + "/" + instanceStart.In(loc).Format(time.RFC3339)
}

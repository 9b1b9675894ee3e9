// Package window builds the rolling list of dates shown on the board.
package window

import (
	"fmt"
	"time"

	"daycal/internal/model"
)

// Today is the date of now in the display zone. Every date computation on
// the board uses this boundary.
func Today(now time.Time, loc *time.Location) model.Date {
	if loc == nil {
		loc = time.UTC
	}
	return model.DateOf(now.In(loc))
}

// Build returns totalDays consecutive dates with today at index todayOffset.
func Build(today model.Date, totalDays, todayOffset int) ([]model.Date, error) {
	if err := Validate(totalDays, todayOffset); err != nil {
		return nil, err
	}
	out := make([]model.Date, totalDays)
	first := today.AddDays(-todayOffset)
	for i := range out {
		out[i] = first.AddDays(i)
	}
	return out, nil
}

// Validate checks window parameters without building a window.
func Validate(totalDays, todayOffset int) error {
	if totalDays < 1 {
		return fmt.Errorf("%w: days must be at least 1, got %d", model.ErrInvalidConfiguration, totalDays)
	}
	if todayOffset < 0 || todayOffset >= totalDays {
		return fmt.Errorf("%w: today offset %d outside [0, %d)", model.ErrInvalidConfiguration, todayOffset, totalDays)
	}
	return nil
}

// Range is the instant range covered by w in loc: first midnight to the
// midnight after the last date.
func Range(w []model.Date, loc *time.Location) model.Range {
	if len(w) == 0 {
		return model.Range{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return model.Range{
		Start: w[0].In(loc),
		End:   w[len(w)-1].AddDays(1).In(loc),
	}
}

// Index returns the position of d in w, or -1.
func Index(w []model.Date, d model.Date) int {
	if len(w) == 0 {
		return -1
	}
	i := w[0].DaysUntil(d)
	if i < 0 || i >= len(w) {
		return -1
	}
	return i
}

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_AddDaysAcrossMonthAndYear(t *testing.T) {
	assert.Equal(t, NewDate(2024, time.July, 1), NewDate(2024, time.June, 30).AddDays(1))
	assert.Equal(t, NewDate(2023, time.December, 31), NewDate(2024, time.January, 1).AddDays(-1))
	assert.Equal(t, NewDate(2024, time.March, 1), NewDate(2024, time.February, 28).AddDays(2))
}

func TestDate_DaysUntilIgnoresDST(t *testing.T) {
	// Europe/Berlin switches to summer time on 2024-03-31.
	a := NewDate(2024, time.March, 30)
	b := NewDate(2024, time.April, 2)

	assert.Equal(t, 3, a.DaysUntil(b))
	assert.Equal(t, -3, b.DaysUntil(a))
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
}

func TestDate_TextRoundTripAsMapKey(t *testing.T) {
	m := map[Date]int{NewDate(2024, time.June, 10): 1}

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2024-06-10":1}`, string(data))

	var back map[Date]int
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}

func TestEvent_DaysUseExclusiveEnd(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	allDay := Event{
		AllDay: true,
		Start:  NewDate(2024, time.June, 8).In(loc),
		End:    NewDate(2024, time.June, 12).In(loc),
	}
	assert.Equal(t, NewDate(2024, time.June, 8), allDay.FirstDay())
	assert.Equal(t, NewDate(2024, time.June, 11), allDay.LastDay())
	assert.True(t, allDay.MultiDay())

	timed := Event{
		Start: time.Date(2024, 6, 10, 23, 0, 0, 0, loc),
		End:   time.Date(2024, 6, 11, 0, 0, 0, 0, loc),
	}
	assert.False(t, timed.MultiDay())
	assert.Equal(t, time.Hour, timed.Duration())
}

func TestEvent_Overlaps(t *testing.T) {
	base := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	ev := Event{Start: base, End: base.Add(time.Hour)}

	assert.True(t, ev.Overlaps(base.Add(30*time.Minute), base.Add(2*time.Hour)))
	assert.False(t, ev.Overlaps(base.Add(time.Hour), base.Add(2*time.Hour)))
	assert.False(t, ev.Overlaps(base.Add(-time.Hour), base))
}

package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"daycal/internal/model"
)

func TestNewTranslator(t *testing.T) {
	testCases := []struct {
		raw  string
		want string
	}{
		{raw: "", want: "en"},
		{raw: "en", want: "en"},
		{raw: "de", want: "de"},
		{raw: "de-AT", want: "de"},
		{raw: "de_DE.UTF-8", want: "de"},
		{raw: "de_CH:en", want: "de"},
		{raw: "fr", want: "en"},
		{raw: "C", want: "en"},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, NewTranslator(tc.raw).Lang())
		})
	}
}

func TestTranslator_Text(t *testing.T) {
	de := NewTranslator("de")
	assert.Equal(t, "Ganztägig", de.Text(textAllDay))
	assert.Equal(t, "Keine Termine", de.Text(textNoEvents))
	assert.Equal(t, "unknown_key", de.Text("unknown_key"))
}

func TestTranslator_Dates(t *testing.T) {
	en := NewTranslator("en")
	de := NewTranslator("de")
	d := model.NewDate(2024, time.March, 4)

	assert.Equal(t, "MONDAY", en.DayName(d, false))
	assert.Equal(t, "MONTAG", de.DayName(d, false))
	assert.Equal(t, "HEUTE", de.DayName(d, true))
	assert.Equal(t, "Mar 4", en.ShortDate(d))
	assert.Equal(t, "Mar 4", en.DateRange(d, d))
	assert.Equal(t, "Mar 4 - Mar 6", en.DateRange(d, d.AddDays(2)))
}

package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daycal/internal/model"
)

func TestCompute_NoCoordinates(t *testing.T) {
	_, ok := Compute(model.NewDate(2024, time.June, 10), nil, time.UTC)
	assert.False(t, ok)
}

func TestCompute_Berlin(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	res, ok := Compute(model.NewDate(2024, time.June, 10), &Coordinates{Latitude: 52.52, Longitude: 13.405}, loc)
	require.True(t, ok)
	assert.Equal(t, KindNormal, res.Kind)
	assert.Equal(t, loc, res.Sunrise.Location())

	// Published values for the day: sunrise 04:45, sunset 21:28 CEST.
	assert.WithinDuration(t, time.Date(2024, 6, 10, 4, 45, 0, 0, loc), res.Sunrise, 5*time.Minute)
	assert.WithinDuration(t, time.Date(2024, 6, 10, 21, 28, 0, 0, loc), res.Sunset, 5*time.Minute)
}

func TestCompute_PolarSentinels(t *testing.T) {
	tromso := &Coordinates{Latitude: 69.65, Longitude: 18.96}

	res, ok := Compute(model.NewDate(2024, time.June, 21), tromso, time.UTC)
	require.True(t, ok)
	assert.Equal(t, KindPolarDay, res.Kind)
	assert.True(t, res.Sunrise.IsZero())

	res, ok = Compute(model.NewDate(2024, time.December, 21), tromso, time.UTC)
	require.True(t, ok)
	assert.Equal(t, KindPolarNight, res.Kind)

	south := &Coordinates{Latitude: -78, Longitude: 166}
	res, ok = Compute(model.NewDate(2024, time.December, 21), south, time.UTC)
	require.True(t, ok)
	assert.Equal(t, KindPolarDay, res.Kind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "normal", KindNormal.String())
	assert.Equal(t, "polar_day", KindPolarDay.String())
	assert.Equal(t, "polar_night", KindPolarNight.String())
}

// Package solar computes sunrise and sunset for the theme selector.
package solar

import (
	"math"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"daycal/internal/model"
)

type Kind int

const (
	KindNormal Kind = iota
	// KindPolarDay: the sun stays above the horizon all day.
	KindPolarDay
	// KindPolarNight: the sun stays below the horizon all day.
	KindPolarNight
)

func (k Kind) String() string {
	switch k {
	case KindPolarDay:
		return "polar_day"
	case KindPolarNight:
		return "polar_night"
	default:
		return "normal"
	}
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Result holds sunrise and sunset in the display zone. Both are zero for
// the polar kinds.
type Result struct {
	Sunrise time.Time
	Sunset  time.Time
	Kind    Kind
}

// Compute returns the solar day for date at coords. ok is false when no
// coordinates are configured, which callers treat as "no solar data".
func Compute(date model.Date, coords *Coordinates, loc *time.Location) (res Result, ok bool) {
	if coords == nil {
		return Result{}, false
	}
	if loc == nil {
		loc = time.UTC
	}

	rise, set := sunrise.SunriseSunset(coords.Latitude, coords.Longitude, date.Year, date.Month, date.Day)
	if rise.IsZero() || set.IsZero() {
		if noonElevation(date, coords.Latitude) > 0 {
			return Result{Kind: KindPolarDay}, true
		}
		return Result{Kind: KindPolarNight}, true
	}
	return Result{Sunrise: rise.In(loc), Sunset: set.In(loc), Kind: KindNormal}, true
}

// noonElevation approximates the solar elevation at local noon in degrees.
func noonElevation(date model.Date, latitude float64) float64 {
	dayOfYear := float64(date.In(time.UTC).YearDay())
	declination := -23.44 * math.Cos(2*math.Pi/365*(dayOfYear+10))
	return 90 - math.Abs(latitude-declination)
}

// Package theme decides between the light and dark board palette.
package theme

import (
	"fmt"
	"strings"
	"time"

	"daycal/internal/model"
	"daycal/internal/solar"
)

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
	// Auto is only valid as an override setting: decide from the sun.
	Auto Mode = "auto"
)

type Reason string

const (
	ReasonOverride Reason = "explicit-override"
	ReasonSolar    Reason = "solar"
	ReasonFallback Reason = "fallback"
)

const (
	DefaultLightMargin = 45 * time.Minute
	DefaultDarkMargin  = 30 * time.Minute
)

type Decision struct {
	Mode   Mode
	Reason Reason
}

type Options struct {
	Override Mode
	Now      time.Time
	Solar    solar.Result
	SolarOK  bool
	// LightMargin delays light mode after sunrise; DarkMargin brings dark
	// mode forward before sunset.
	LightMargin time.Duration
	DarkMargin  time.Duration
	// Fallback is used without solar data. Empty means Dark.
	Fallback Mode
}

// Select applies override, then solar window, then fallback.
func Select(o Options) Decision {
	switch o.Override {
	case Light, Dark:
		return Decision{Mode: o.Override, Reason: ReasonOverride}
	}

	if o.SolarOK {
		switch o.Solar.Kind {
		case solar.KindPolarDay:
			return Decision{Mode: Light, Reason: ReasonSolar}
		case solar.KindPolarNight:
			return Decision{Mode: Dark, Reason: ReasonSolar}
		}
		lightFrom := o.Solar.Sunrise.Add(o.LightMargin)
		lightUntil := o.Solar.Sunset.Add(-o.DarkMargin)
		if !o.Now.Before(lightFrom) && o.Now.Before(lightUntil) {
			return Decision{Mode: Light, Reason: ReasonSolar}
		}
		return Decision{Mode: Dark, Reason: ReasonSolar}
	}

	fallback := o.Fallback
	if fallback != Light {
		fallback = Dark
	}
	return Decision{Mode: fallback, Reason: ReasonFallback}
}

// ParseMode accepts "light", "dark" and "auto" (or empty) in any case.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Auto, nil
	case Light, Dark, Auto:
		return m, nil
	default:
		return "", fmt.Errorf("%w: theme %q is not light, dark or auto", model.ErrInvalidConfiguration, s)
	}
}

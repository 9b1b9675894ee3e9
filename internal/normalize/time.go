package normalize

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"

	"daycal/internal/source"
)

// Map of common Windows timezone names to IANA timezone names.
// Exchange and Outlook exports use these in TZID.
var windowsToIANA = map[string]string{
	"Pacific Standard Time":          "America/Los_Angeles",
	"Mountain Standard Time":         "America/Denver",
	"Central Standard Time":          "America/Chicago",
	"Eastern Standard Time":          "America/New_York",
	"Atlantic Standard Time":         "America/Halifax",
	"Alaskan Standard Time":          "America/Anchorage",
	"Hawaiian Standard Time":         "Pacific/Honolulu",
	"GMT Standard Time":              "Europe/London",
	"W. Europe Standard Time":        "Europe/Berlin",
	"Central Europe Standard Time":   "Europe/Budapest",
	"Romance Standard Time":          "Europe/Paris",
	"Central European Standard Time": "Europe/Warsaw",
	"China Standard Time":            "Asia/Shanghai",
	"Tokyo Standard Time":            "Asia/Tokyo",
	"Korea Standard Time":            "Asia/Seoul",
	"India Standard Time":            "Asia/Kolkata",
	"AUS Eastern Standard Time":      "Australia/Sydney",
	"UTC":                            "UTC",
}

var locations sync.Map // tzid -> *time.Location

// resolveLocation maps a TZID to a location, returning nil when unknown.
func resolveLocation(tzid string) *time.Location {
	tzid = strings.Trim(strings.TrimSpace(tzid), `"`)
	if tzid == "" {
		return nil
	}
	if cached, ok := locations.Load(tzid); ok {
		return cached.(*time.Location)
	}

	name := tzid
	if iana, ok := windowsToIANA[tzid]; ok {
		name = iana
	}
	loc, err := time.LoadLocation(name)
	// Globally unique TZIDs carry a path prefix, e.g. "/freeassociation.sourceforge.net/Europe/Berlin".
	if err != nil && strings.HasPrefix(name, "/") {
		parts := strings.Split(strings.TrimPrefix(name, "/"), "/")
		for k := 1; k < len(parts) && err != nil; k++ {
			loc, err = time.LoadLocation(strings.Join(parts[k:], "/"))
		}
	}
	if err != nil {
		return nil
	}
	locations.Store(tzid, loc)
	return loc
}

// zoneFor picks the location for a raw time: its TZID, else the provider's
// stated default, else UTC.
func zoneFor(rt source.RawTime, defaultTZ string) *time.Location {
	if loc := resolveLocation(rt.TZID); loc != nil {
		return loc
	}
	if loc := resolveLocation(defaultTZ); loc != nil {
		return loc
	}
	return time.UTC
}

var (
	dateLayouts     = []string{"20060102", "2006-01-02"}
	dateTimeLayouts = []string{"20060102T150405", "20060102T1504", "2006-01-02T15:04:05"}
)

// parsedTime is a raw time after parsing. For date-only values, Time is
// midnight UTC of the date and only its Y/M/D are meaningful.
type parsedTime struct {
	Time   time.Time
	IsDate bool
}

func parseRawTime(rt source.RawTime, defaultTZ string) (parsedTime, error) {
	v := strings.TrimSpace(rt.Value)
	if v == "" {
		return parsedTime{}, errors.New("empty time value")
	}

	if rt.IsDate || !strings.Contains(v, "T") {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return parsedTime{Time: t, IsDate: true}, nil
			}
		}
		if !strings.Contains(v, "T") {
			return parsedTime{}, fmt.Errorf("unparsable date %q", v)
		}
		// VALUE=DATE with a date-time value: keep the date part.
		if t, err := time.Parse("20060102", v[:strings.Index(v, "T")]); err == nil {
			return parsedTime{Time: t, IsDate: true}, nil
		}
	}

	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return parsedTime{Time: t}, nil
	}
	if strings.HasSuffix(v, "Z") {
		if t, err := time.Parse("20060102T150405Z", v); err == nil {
			return parsedTime{Time: t}, nil
		}
		return parsedTime{}, fmt.Errorf("unparsable UTC time %q", v)
	}

	loc := zoneFor(rt, defaultTZ)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return parsedTime{Time: t}, nil
		}
	}
	return parsedTime{}, fmt.Errorf("unparsable time %q", v)
}

// parseDuration parses an RFC 5545 DURATION such as "P1D", "PT1H30M", "-P1W".
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	// A bare "P" decodes as zero; treat it as malformed.
	if len(strings.TrimLeft(v, "+-")) < 3 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	prop := ical.NewProp(ical.PropDuration)
	prop.Value = v
	return prop.Duration()
}

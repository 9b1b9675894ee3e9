package ics

import (
	"bytes"
	"errors"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "daycal/internal/log"
	"daycal/internal/model"
	"daycal/internal/source"
)

// ParseFeed parses one ICS payload into raw records for cal.
//
// Times are kept in their encoded form (value, TZID, VALUE=DATE);
// interpretation is left to the normalizer. The calendar's X-WR-TIMEZONE,
// or its only VTIMEZONE, becomes the default zone of floating times.
func ParseFeed(cal model.Calendar, body []byte) ([]source.RawEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	parsed, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	defaultTZ := calendarTimezone(parsed)
	events := make([]source.RawEvent, 0)

	for _, ve := range parsed.Events() {
		raw, ok := parseVEvent(ve)
		if !ok {
			appLog.Debug("ics vevent missing DTSTART", "calendar", cal.Label, "uid", raw.UID)
		}
		raw.Calendar = cal
		raw.DefaultTZ = defaultTZ
		events = append(events, raw)
	}

	appLog.Debug("ics parse completed", "calendar", cal.Label, "event_count", len(events), "default_tz", defaultTZ)
	return events, nil
}

func calendarTimezone(cal *ical.Calendar) string {
	for _, p := range cal.CalendarProperties {
		if strings.EqualFold(p.IANAToken, "X-WR-TIMEZONE") && strings.TrimSpace(p.Value) != "" {
			return strings.TrimSpace(p.Value)
		}
	}

	zones := cal.Timezones()
	if len(zones) == 1 {
		if p := zones[0].GetProperty(ical.ComponentPropertyTzid); p != nil {
			return strings.TrimSpace(p.Value)
		}
	}
	return ""
}

// parseVEvent copies the fields the normalizer needs. The bool is false
// when DTSTART is missing; the record is still returned so the failure is
// reported once, by the normalizer.
func parseVEvent(ve *ical.VEvent) (source.RawEvent, bool) {
	var out source.RawEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	out.Start = rawTime(ve.GetProperty(ical.ComponentPropertyDtStart))
	out.End = rawTime(ve.GetProperty(ical.ComponentPropertyDtEnd))
	if p := ve.GetProperty("DURATION"); p != nil {
		out.Duration = strings.TrimSpace(p.Value)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RRule = strings.TrimSpace(p.Value)
	}

	// EXDATE can appear multiple times, each with a comma separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		base := rawTime(p)
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			ex := base
			ex.Value = part
			out.ExDates = append(out.ExDates, ex)
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		rid := rawTime(p)
		if !rid.IsZero() {
			out.RecurrenceID = &rid
		}
	}

	return out, !out.Start.IsZero()
}

func rawTime(p *ical.IANAProperty) source.RawTime {
	if p == nil {
		return source.RawTime{}
	}
	rt := source.RawTime{Value: strings.TrimSpace(p.Value)}
	if params := p.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			rt.IsDate = true
		}
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
			rt.TZID = tzs[0]
		}
	}
	if rt.Value != "" && !strings.Contains(rt.Value, "T") {
		rt.IsDate = true
	}
	return rt
}

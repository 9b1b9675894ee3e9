package caldav

import (
	"strings"

	"github.com/emersion/go-ical"

	"daycal/internal/model"
	"daycal/internal/source"
)

// RawEvents converts the VEVENTs of one calendar object into raw records.
func RawEvents(cal model.Calendar, data *ical.Calendar) []source.RawEvent {
	if data == nil || data.Component == nil {
		return nil
	}

	defaultTZ := calendarTimezone(data)
	out := make([]source.RawEvent, 0, len(data.Children))
	for _, comp := range data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		raw := rawEvent(comp)
		raw.Calendar = cal
		raw.DefaultTZ = defaultTZ
		out = append(out, raw)
	}
	return out
}

func calendarTimezone(data *ical.Calendar) string {
	if p := data.Props.Get("X-WR-TIMEZONE"); p != nil && strings.TrimSpace(p.Value) != "" {
		return strings.TrimSpace(p.Value)
	}
	var tzids []string
	for _, comp := range data.Children {
		if comp.Name != ical.CompTimezone {
			continue
		}
		if p := comp.Props.Get(ical.PropTimezoneID); p != nil {
			tzids = append(tzids, p.Value)
		}
	}
	if len(tzids) == 1 {
		return tzids[0]
	}
	return ""
}

func rawEvent(comp *ical.Component) source.RawEvent {
	var out source.RawEvent

	out.UID = strings.TrimSpace(text(comp, ical.PropUID))
	out.Summary = text(comp, ical.PropSummary)
	out.Description = text(comp, ical.PropDescription)
	out.Location = text(comp, ical.PropLocation)

	out.Start = rawTime(comp.Props.Get(ical.PropDateTimeStart))
	out.End = rawTime(comp.Props.Get(ical.PropDateTimeEnd))
	if p := comp.Props.Get(ical.PropDuration); p != nil {
		out.Duration = strings.TrimSpace(p.Value)
	}
	if p := comp.Props.Get(ical.PropRecurrenceRule); p != nil {
		out.RRule = strings.TrimSpace(p.Value)
	}

	for _, p := range comp.Props.Values(ical.PropExceptionDates) {
		base := rawTime(&p)
		for _, part := range strings.Split(p.Value, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			ex := base
			ex.Value = part
			out.ExDates = append(out.ExDates, ex)
		}
	}

	if p := comp.Props.Get(ical.PropRecurrenceID); p != nil {
		rid := rawTime(p)
		if !rid.IsZero() {
			out.RecurrenceID = &rid
		}
	}
	return out
}

func text(comp *ical.Component, name string) string {
	p := comp.Props.Get(name)
	if p == nil {
		return ""
	}
	if v, err := p.Text(); err == nil {
		return v
	}
	return p.Value
}

func rawTime(p *ical.Prop) source.RawTime {
	if p == nil {
		return source.RawTime{}
	}
	rt := source.RawTime{
		Value: strings.TrimSpace(p.Value),
		TZID:  p.Params.Get(ical.ParamTimezoneID),
	}
	if strings.EqualFold(p.Params.Get(ical.ParamValue), string(ical.ValueDate)) {
		rt.IsDate = true
	}
	if rt.Value != "" && !strings.Contains(rt.Value, "T") {
		rt.IsDate = true
	}
	return rt
}

package web

import (
	"time"

	"daycal/internal/agenda"
	"daycal/internal/layout"
	"daycal/internal/model"
)

// boardView is shared by the HTML template and /api/board.
type boardView struct {
	Lang      string     `json:"lang"`
	Timezone  string     `json:"timezone"`
	Today     model.Date `json:"today"`
	Theme     string     `json:"theme"`
	Reason    string     `json:"theme_reason"`
	Degraded  bool       `json:"degraded"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Sunrise   *time.Time `json:"sunrise,omitempty"`
	Sunset    *time.Time `json:"sunset,omitempty"`
	BandLanes int        `json:"band_lanes"`
	NoEvents  string     `json:"-"`
	Days      []dayView  `json:"days"`
	Bars      []barView  `json:"bars"`
}

type dayView struct {
	Date       model.Date  `json:"date"`
	Name       string      `json:"name"`
	ShortDate  string      `json:"short_date"`
	IsToday    bool        `json:"is_today"`
	TimedLanes int         `json:"timed_lanes"`
	Events     []eventView `json:"events"`
}

type eventView struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Location        string    `json:"location,omitempty"`
	Description     string    `json:"description,omitempty"`
	Calendar        string    `json:"calendar"`
	Color           string    `json:"color"`
	AllDay          bool      `json:"all_day"`
	Band            bool      `json:"band"`
	Lane            int       `json:"lane"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	ShownStart      time.Time `json:"shown_start"` // clipped to the window
	ShownEnd        time.Time `json:"shown_end"`
	TimeText        string    `json:"time_text"`
	ContinuesBefore bool      `json:"continues_before"`
	ContinuesAfter  bool      `json:"continues_after"`
}

type barView struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Location        string `json:"location,omitempty"`
	Color           string `json:"color"`
	Lane            int    `json:"lane"`
	Column          int    `json:"column"`
	Span            int    `json:"span"`
	DateRange       string `json:"date_range"`
	TimeText        string `json:"time_text"`
	ContinuesBefore bool   `json:"continues_before"`
	ContinuesAfter  bool   `json:"continues_after"`
}

func newBoardView(b agenda.Board, tr Translator) boardView {
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}
	v := boardView{
		Lang:      tr.Lang(),
		Timezone:  loc.String(),
		Today:     b.Today,
		Theme:     string(b.Theme.Mode),
		Reason:    string(b.Theme.Reason),
		Degraded:  b.Degraded,
		BandLanes: b.Layout.BandLanes,
		NoEvents:  tr.Text(textNoEvents),
		Days:      make([]dayView, 0, len(b.Window)),
		Bars:      make([]barView, 0, len(b.Layout.Bars)),
	}
	if !b.FetchedAt.IsZero() {
		t := b.FetchedAt.In(loc)
		v.FetchedAt = &t
	}
	if b.Solar != nil && !b.Solar.Sunrise.IsZero() {
		rise, set := b.Solar.Sunrise.In(loc), b.Solar.Sunset.In(loc)
		v.Sunrise, v.Sunset = &rise, &set
	}

	for _, d := range b.Window {
		slots := b.Layout.Days[d]
		day := dayView{
			Date:       d,
			Name:       tr.DayName(d, d == b.Today),
			ShortDate:  tr.ShortDate(d),
			IsToday:    d == b.Today,
			TimedLanes: b.Layout.TimedLanes[d],
			Events:     make([]eventView, 0, len(slots)),
		}
		for _, s := range slots {
			day.Events = append(day.Events, newEventView(s, loc, tr))
		}
		v.Days = append(v.Days, day)
	}

	for _, bar := range b.Layout.Bars {
		ev := bar.Event
		v.Bars = append(v.Bars, barView{
			ID:              ev.ID,
			Title:           ev.Title,
			Location:        ev.Location,
			Color:           ev.Calendar.Color,
			Lane:            bar.Lane,
			Column:          bar.Column,
			Span:            bar.Span,
			DateRange:       tr.DateRange(model.DateOf(ev.Start.In(loc)), model.DateOf(ev.End.In(loc).Add(-time.Nanosecond))),
			TimeText:        barTimeText(ev, loc, tr),
			ContinuesBefore: bar.ContinuesBefore,
			ContinuesAfter:  bar.ContinuesAfter,
		})
	}
	return v
}

func newEventView(s layout.Slot, loc *time.Location, tr Translator) eventView {
	ev := s.Event
	v := eventView{
		ID:              ev.ID,
		Title:           ev.Title,
		Location:        ev.Location,
		Description:     ev.Description,
		Calendar:        ev.Calendar.Label,
		Color:           ev.Calendar.Color,
		AllDay:          ev.AllDay,
		Band:            s.Band,
		Lane:            s.Lane,
		Start:           ev.Start.In(loc),
		End:             ev.End.In(loc),
		ShownStart:      s.Start.In(loc),
		ShownEnd:        s.End.In(loc),
		ContinuesBefore: s.ContinuesBefore,
		ContinuesAfter:  s.ContinuesAfter,
	}
	if s.Band {
		v.TimeText = barTimeText(ev, loc, tr)
	} else {
		v.TimeText = ev.Start.In(loc).Format("15:04") + " - " + ev.End.In(loc).Format("15:04")
	}
	return v
}

// barTimeText labels band items: all-day events say so, timed events that
// cross midnight show their clock times.
func barTimeText(ev model.Event, loc *time.Location, tr Translator) string {
	if ev.AllDay {
		return tr.Text(textAllDay)
	}
	return ev.Start.In(loc).Format("15:04") + " - " + ev.End.In(loc).Format("15:04")
}

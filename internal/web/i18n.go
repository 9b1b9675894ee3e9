package web

import (
	"strings"
	"time"

	"github.com/goodsign/monday"
	"golang.org/x/text/language"

	"daycal/internal/model"
)

// Keys of the fixed UI strings.
const (
	textToday    = "today"
	textNoEvents = "no_events"
	textAllDay   = "all_day"
)

type locale struct {
	tag     language.Tag
	strings map[string]string
	dates   monday.Locale
}

// supported is ordered; the first entry is the fallback.
var supported = []locale{
	{
		tag:   language.English,
		dates: monday.LocaleEnUS,
		strings: map[string]string{
			textToday:    "TODAY",
			textNoEvents: "No events",
			textAllDay:   "All Day",
		},
	},
	{
		tag:   language.German,
		dates: monday.LocaleDeDE,
		strings: map[string]string{
			textToday:    "HEUTE",
			textNoEvents: "Keine Termine",
			textAllDay:   "Ganztägig",
		},
	},
}

var matcher = func() language.Matcher {
	tags := make([]language.Tag, len(supported))
	for i, l := range supported {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// Translator renders UI strings and dates in one language.
type Translator struct {
	loc *locale
}

// NewTranslator accepts config values like "de", "de-AT" or the POSIX
// shaped "de_DE.UTF-8:en" from LANGUAGE. Unknown languages fall back to
// English.
func NewTranslator(raw string) Translator {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		raw = raw[:i]
	}
	if i := strings.IndexByte(raw, '.'); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.ReplaceAll(raw, "_", "-")

	tag, err := language.Parse(raw)
	if err != nil {
		return Translator{loc: &supported[0]}
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		idx = 0
	}
	return Translator{loc: &supported[idx]}
}

func (t Translator) Lang() string {
	base, _ := t.loc.tag.Base()
	return base.String()
}

// Text returns the string for key, then the English one, then key itself.
func (t Translator) Text(key string) string {
	if s, ok := t.loc.strings[key]; ok {
		return s
	}
	if s, ok := supported[0].strings[key]; ok {
		return s
	}
	return key
}

// DayName is the upper-cased weekday, or the "today" label.
func (t Translator) DayName(d model.Date, today bool) string {
	if today {
		return t.Text(textToday)
	}
	return strings.ToUpper(monday.Format(d.In(time.UTC), "Monday", t.loc.dates))
}

// ShortDate formats like "Jun 10".
func (t Translator) ShortDate(d model.Date) string {
	return monday.Format(d.In(time.UTC), "Jan 2", t.loc.dates)
}

// DateRange formats an inclusive date span, collapsing single days.
func (t Translator) DateRange(first, last model.Date) string {
	if first == last {
		return t.ShortDate(first)
	}
	return t.ShortDate(first) + " - " + t.ShortDate(last)
}

// Package extract reads start, end and all-day values from decoded events
// whose date representation is not fixed.
//
// Each lookup walks an ordered list of field names and, for every present
// value, an ordered list of converters. The first converter that yields an
// instant wins. Nothing here returns an error or panics: an unrecognised
// shape is reported as "no value".
package extract

import (
	"strings"
	"time"

	"github.com/sergkorol/kommunist/internal/ics"
)

var (
	startNames    = []string{"Start", "DtStart", "DTStart", "StartDate", "DtStartUtc"}
	endNames      = []string{"End", "DtEnd", "DTEnd", "EndDate", "DtEndUtc"}
	fallbackNames = []string{"Start", "DtStart", "DtStamp", "Created"}
	allDayNames   = []string{"IsAllDay", "AllDay"}
)

// Accessors a decoded value may expose.
type (
	offsetInstanter interface {
		OffsetInstant() (time.Time, bool)
	}
	localInstanter interface {
		LocalInstant() (time.Time, bool)
	}
	valuer interface {
		Value() any
	}
	dater interface {
		IsDate() bool
	}
)

// Date is a calendar date without time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// maxUnwrap bounds nested Value() unwrapping.
const maxUnwrap = 4

// Extractor converts opaque values to instants. Loc places values that carry
// no zone information; it defaults to UTC.
type Extractor struct {
	Loc *time.Location
}

// Start resolves the event start.
func (x Extractor) Start(ev ics.Event) (time.Time, bool) {
	if t, ok := x.first(ev.Fields, startNames); ok {
		return t, true
	}
	if t, ok := x.Instant(ev.StartRaw); ok {
		return t, true
	}
	return x.first(ev.Fields, fallbackNames)
}

// End resolves the event end.
func (x Extractor) End(ev ics.Event) (time.Time, bool) {
	if t, ok := x.first(ev.Fields, endNames); ok {
		return t, true
	}
	return x.Instant(ev.EndRaw)
}

// AllDay reports whether the event spans whole days, false when unknown.
func (x Extractor) AllDay(ev ics.Event) (allDay bool) {
	defer func() {
		if recover() != nil {
			allDay = false
		}
	}()

	for _, name := range allDayNames {
		v, ok := ev.Fields.Get(name)
		if !ok {
			continue
		}
		if b, ok := v.(bool); ok {
			return b
		}
	}
	if d, ok := ev.StartRaw.(dater); ok {
		return d.IsDate()
	}
	return ev.AllDay
}

func (x Extractor) first(rec ics.Record, names []string) (time.Time, bool) {
	for _, name := range names {
		v, ok := rec.Get(name)
		if !ok {
			continue
		}
		if t, ok := x.Instant(v); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// Instant converts a single opaque value.
func (x Extractor) Instant(v any) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()
	return x.convert(v, 0)
}

func (x Extractor) convert(v any, depth int) (time.Time, bool) {
	if v == nil || depth > maxUnwrap {
		return time.Time{}, false
	}
	if a, ok := v.(offsetInstanter); ok {
		if t, ok := a.OffsetInstant(); ok && !t.IsZero() {
			return t, true
		}
	}
	if a, ok := v.(localInstanter); ok {
		if t, ok := a.LocalInstant(); ok && !t.IsZero() {
			return t, true
		}
	}
	if a, ok := v.(valuer); ok {
		if t, ok := x.convert(a.Value(), depth+1); ok {
			return t, true
		}
	}

	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, false
		}
		return *val, true
	case Date:
		return time.Date(val.Year, val.Month, val.Day, 0, 0, 0, 0, x.loc()), true
	case *Date:
		if val == nil {
			return time.Time{}, false
		}
		return time.Date(val.Year, val.Month, val.Day, 0, 0, 0, 0, x.loc()), true
	case string:
		return x.parse(val)
	case []byte:
		return x.parse(string(val))
	}
	return time.Time{}, false
}

var offsetLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"20060102T150405Z",
	"2006-01-02T15:04:05Z0700",
	time.RFC1123Z,
	time.RFC1123,
}

var localLayouts = []string{
	"20060102T150405",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"20060102",
	"2006-01-02",
}

func (x Extractor) parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, x.loc()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (x Extractor) loc() *time.Location {
	if x.Loc == nil {
		return time.UTC
	}
	return x.Loc
}

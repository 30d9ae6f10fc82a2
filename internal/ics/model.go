// Package ics encodes browsed events into iCalendar documents and decodes
// iCalendar documents into a loosely-typed event view for import.
package ics

import (
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// DefaultSummary is used when a VEVENT carries no SUMMARY.
const DefaultSummary = "Event"

// ActionDisplay is the only alarm action the engine produces.
const ActionDisplay = "DISPLAY"

// Event is a decoded VEVENT.
//
// StartRaw and EndRaw are opaque: their concrete type depends on how the
// decoder represents date values. Use package extract to read them.
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	StartRaw    any
	EndRaw      any
	AllDay      bool
	Alarms      []Alarm
	RRule       string

	// Fields is the generic record view of the decoded component, keyed by
	// field name (DtStart, DtEnd, DtStamp, Created, IsAllDay).
	Fields Record
}

// Alarm is a VALARM relative to the event start.
type Alarm struct {
	Offset      time.Duration
	Action      string
	Description string
}

// Record is a field-name keyed view of a decoded component.
type Record map[string]any

// Get returns the named field, ignoring nil entries.
func (r Record) Get(name string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r[name]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Temporal is the decoder's representation of a DATE or DATE-TIME property.
type Temporal struct {
	prop *ical.Prop
	loc  *time.Location
}

// NewTemporal wraps a date property. Floating values resolve in loc.
func NewTemporal(prop *ical.Prop, loc *time.Location) Temporal {
	if loc == nil {
		loc = time.UTC
	}
	return Temporal{prop: prop, loc: loc}
}

// OffsetInstant returns the instant for values that carry their own offset,
// either a UTC "Z" suffix or a TZID parameter.
func (t Temporal) OffsetInstant() (time.Time, bool) {
	if t.prop == nil {
		return time.Time{}, false
	}
	if !strings.HasSuffix(t.prop.Value, "Z") && t.prop.Params.Get(ical.ParamTimezoneID) == "" {
		return time.Time{}, false
	}
	v, err := t.prop.DateTime(time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return v, true
}

// LocalInstant resolves the value, placing floating times in the decode location.
func (t Temporal) LocalInstant() (time.Time, bool) {
	if t.prop == nil {
		return time.Time{}, false
	}
	v, err := t.prop.DateTime(t.loc)
	if err != nil {
		return time.Time{}, false
	}
	return v, true
}

// Value returns the raw property text.
func (t Temporal) Value() any {
	if t.prop == nil {
		return nil
	}
	return t.prop.Value
}

// IsDate reports whether the property holds a DATE rather than a DATE-TIME.
func (t Temporal) IsDate() bool {
	if t.prop == nil {
		return false
	}
	if t.prop.ValueType() == ical.ValueDate {
		return true
	}
	v := strings.TrimSpace(t.prop.Value)
	return len(v) == len(dateLayout) && !strings.Contains(v, "T")
}

package ics

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/sergkorol/kommunist/internal/domain"
)

const (
	DefaultProductID       = "-//Kommunist//Events//EN"
	DefaultReminderMinutes = 30

	dateLayout        = "20060102"
	dateTimeLayout    = "20060102T150405"
	dateTimeUTCLayout = "20060102T150405Z"
)

// TimePolicy selects how DTSTART/DTEND are written.
type TimePolicy string

const (
	// PolicyZoned writes wall-clock time with a TZID parameter. Locations
	// without an IANA name (UTC, Local) are written as UTC instead.
	PolicyZoned TimePolicy = "zoned"
	// PolicyFloating writes a naive local date-time without zone id.
	PolicyFloating TimePolicy = "floating"
)

// EncodeOptions configures Encode.
type EncodeOptions struct {
	// ReminderMinutes before start for the VALARM; nil means
	// DefaultReminderMinutes and 0 fires at start.
	ReminderMinutes *int
	Invitees        string // comma separated e-mail addresses
	Notes           string
	Policy          TimePolicy
	Location        *time.Location
	ProductID       string
	HTMLToText      func(string) string
	Now             func() time.Time
}

func (o *EncodeOptions) normalize() {
	if o.ReminderMinutes == nil {
		m := DefaultReminderMinutes
		o.ReminderMinutes = &m
	}
	if o.Policy == "" {
		o.Policy = PolicyZoned
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.ProductID == "" {
		o.ProductID = DefaultProductID
	}
	if o.HTMLToText == nil {
		o.HTMLToText = func(s string) string { return s }
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Encode renders events as an iCalendar document. Events are written as-is,
// without validation, in the given order. An empty slice yields a valid
// document with no events.
func Encode(events []domain.Event, opts EncodeOptions) (string, error) {
	opts.normalize()

	if len(events) == 0 {
		return emptyDocument(opts.ProductID), nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, opts.ProductID)

	stamp := opts.Now().UTC()
	for _, e := range events {
		cal.Children = append(cal.Children, eventComponent(e, opts, stamp))
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("encode calendar: %w", err)
	}
	return buf.String(), nil
}

// emptyDocument is written by hand: go-ical refuses to encode a VCALENDAR
// without components.
func emptyDocument(productID string) string {
	lines := []string{
		"BEGIN:" + ical.CompCalendar,
		ical.PropVersion + ":2.0",
		ical.PropProductID + ":" + productID,
		"END:" + ical.CompCalendar,
	}
	return strings.Join(lines, "\r\n") + "\r\n"
}

func eventComponent(e domain.Event, opts EncodeOptions, stamp time.Time) *ical.Component {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, eventUID(e))
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	vevent.Props.SetText(ical.PropSummary, e.Title)

	if desc := describe(e, opts); desc != "" {
		vevent.Props.SetText(ical.PropDescription, desc)
	}
	if e.Location != "" {
		vevent.Props.SetText(ical.PropLocation, e.Location)
	}

	vevent.Props.Set(dateTimeProp(ical.PropDateTimeStart, e.Start(), opts))
	vevent.Props.Set(dateTimeProp(ical.PropDateTimeEnd, e.End(), opts))
	vevent.Props.SetText(ical.PropTransparency, "OPAQUE")

	for _, addr := range splitInvitees(opts.Invitees) {
		attendee := ical.NewProp(ical.PropAttendee)
		attendee.Value = "mailto:" + addr
		vevent.Props.Add(attendee)
	}

	vevent.Children = append(vevent.Children, alarmComponent(*opts.ReminderMinutes))
	return vevent.Component
}

func eventUID(e domain.Event) string {
	if e.ID != nil {
		return strconv.Itoa(*e.ID) + "@kommunist"
	}
	return uuid.NewString()
}

func describe(e domain.Event, opts EncodeOptions) string {
	var parts []string
	if text := strings.TrimSpace(opts.HTMLToText(e.DescriptionHTML)); text != "" {
		parts = append(parts, text)
	}
	if e.URL != "" {
		parts = append(parts, e.URL)
	}
	if opts.Notes != "" {
		parts = append(parts, opts.Notes)
	}
	return strings.Join(parts, "\n\n")
}

func dateTimeProp(name string, t time.Time, opts EncodeOptions) *ical.Prop {
	prop := ical.NewProp(name)
	local := t.In(opts.Location)

	switch opts.Policy {
	case PolicyFloating:
		prop.Value = local.Format(dateTimeLayout)
	default:
		if tzid := zoneID(opts.Location); tzid != "" {
			prop.Params.Set(ical.ParamTimezoneID, tzid)
			prop.Value = local.Format(dateTimeLayout)
		} else {
			prop.Value = t.UTC().Format(dateTimeUTCLayout)
		}
	}
	return prop
}

// zoneID returns the IANA identifier of loc, or "" when loc has none.
func zoneID(loc *time.Location) string {
	switch name := loc.String(); name {
	case "", "UTC", "Local":
		return ""
	default:
		return name
	}
}

func alarmComponent(minutes int) *ical.Component {
	alarm := ical.NewComponent(ical.CompAlarm)
	alarm.Props.SetText(ical.PropAction, ActionDisplay)

	trigger := ical.NewProp(ical.PropTrigger)
	SetTrigger(trigger, -time.Duration(minutes)*time.Minute)
	alarm.Props.Set(trigger)

	alarm.Props.SetText(ical.PropDescription, "Reminder")
	return alarm
}

func splitInvitees(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

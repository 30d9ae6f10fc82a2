package caldav

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"

	"github.com/sergkorol/kommunist/internal/domain"
	"github.com/sergkorol/kommunist/internal/ics"
)

const productID = "-//Kommunist//CalDAV//EN"

// parseCalendarObject parses a CalDAV object into an event
func parseCalendarObject(obj *caldav.CalendarObject) (domain.CalendarEvent, error) {
	event := domain.CalendarEvent{ID: obj.Path}

	if obj.Data == nil {
		return event, fmt.Errorf("no data in calendar object")
	}

	vevent := firstEvent(obj.Data)
	if vevent == nil {
		return event, fmt.Errorf("no %s in calendar object", ical.CompEvent)
	}

	if prop := vevent.Props.Get(ical.PropSummary); prop != nil {
		event.Title, _ = prop.Text()
	}
	if prop := vevent.Props.Get(ical.PropDescription); prop != nil {
		event.Description, _ = prop.Text()
	}
	if prop := vevent.Props.Get(ical.PropLocation); prop != nil {
		event.Location, _ = prop.Text()
	}

	// Get start time
	if prop := vevent.Props.Get(ical.PropDateTimeStart); prop != nil {
		t, err := prop.DateTime(time.UTC)
		if err == nil {
			event.Start = t
		}
		// Check if all-day event
		if prop.ValueType() == ical.ValueDate {
			event.AllDay = true
		}
	}

	// Get end time
	if prop := vevent.Props.Get(ical.PropDateTimeEnd); prop != nil {
		t, err := prop.DateTime(time.UTC)
		if err == nil {
			event.End = t
		}
	}

	if prop := vevent.Props.Get(ical.PropRecurrenceRule); prop != nil {
		event.RRule = prop.Value
	}

	for _, child := range vevent.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		if r, ok := parseReminder(child, event.Start); ok {
			event.Reminders = append(event.Reminders, r)
		}
	}

	return event, nil
}

func parseReminder(alarm *ical.Component, start time.Time) (domain.Reminder, bool) {
	prop := alarm.Props.Get(ical.PropTrigger)
	if prop == nil {
		return domain.Reminder{}, false
	}
	if strings.EqualFold(prop.Params.Get(ical.ParamValue), string(ical.ValueDateTime)) {
		t, err := prop.DateTime(time.UTC)
		if err != nil {
			return domain.Reminder{}, false
		}
		return domain.Reminder{TriggerAt: t}, true
	}
	offset, err := ics.TriggerOffset(prop)
	if err != nil {
		return domain.Reminder{}, false
	}
	return domain.Reminder{TriggerAt: start.Add(offset)}, true
}

func firstEvent(cal *ical.Calendar) *ical.Component {
	for _, comp := range cal.Children {
		if comp.Name == ical.CompEvent {
			return comp
		}
	}
	return nil
}

// eventUID returns the UID stored in obj, or fallback.
func eventUID(obj *caldav.CalendarObject, fallback string) string {
	if obj == nil || obj.Data == nil {
		return fallback
	}
	vevent := firstEvent(obj.Data)
	if vevent == nil {
		return fallback
	}
	if prop := vevent.Props.Get(ical.PropUID); prop != nil && prop.Value != "" {
		return prop.Value
	}
	return fallback
}

// eventToICS converts event fields to iCalendar format
func eventToICS(uid string, f domain.EventFields) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetText(ical.PropSummary, f.Title)

	if f.Description != "" {
		vevent.Props.SetText(ical.PropDescription, f.Description)
	}
	if f.Location != "" {
		vevent.Props.SetText(ical.PropLocation, f.Location)
	}

	// Set times - convert to UTC to avoid timezone issues
	if f.AllDay {
		vevent.Props.SetDate(ical.PropDateTimeStart, f.Start)
		if !f.End.IsZero() {
			vevent.Props.SetDate(ical.PropDateTimeEnd, f.End)
		}
	} else {
		// Convert to UTC explicitly - iCalendar will use Z suffix
		vevent.Props.SetDateTime(ical.PropDateTimeStart, f.Start.UTC())
		if !f.End.IsZero() {
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, f.End.UTC())
		}
	}

	// Add recurrence rule if present
	if f.RRule != "" {
		rule := ical.NewProp(ical.PropRecurrenceRule)
		rule.Value = f.RRule
		vevent.Props.Set(rule)
	}

	vevent.Props.SetText(ical.PropTransparency, "OPAQUE")
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())

	for _, r := range f.Reminders {
		alarm := ical.NewComponent(ical.CompAlarm)
		alarm.Props.SetText(ical.PropAction, ics.ActionDisplay)
		trigger := ical.NewProp(ical.PropTrigger)
		ics.SetTrigger(trigger, r.TriggerAt.Sub(f.Start))
		alarm.Props.Set(trigger)
		alarm.Props.SetText(ical.PropDescription, f.Title)
		vevent.Children = append(vevent.Children, alarm)
	}

	cal.Children = append(cal.Children, vevent.Component)
	return cal
}

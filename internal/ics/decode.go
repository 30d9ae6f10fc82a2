package ics

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/sergkorol/kommunist/internal/domain"
)

// Decode parses an iCalendar document into events, in document order.
//
// Floating date-times are resolved in loc (UTC when nil). A well-formed
// document without VEVENTs yields an empty slice. Missing optional fields are
// left empty; no event is rejected here.
func Decode(text string, loc *time.Location) ([]Event, error) {
	if loc == nil {
		loc = time.UTC
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty document", domain.ErrMalformedDocument)
	}

	dec := ical.NewDecoder(strings.NewReader(text))
	events := make([]Event, 0)
	calendars := 0

	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDocument, err)
		}
		if cal.Name != ical.CompCalendar {
			return nil, fmt.Errorf("%w: unexpected top-level component %s", domain.ErrMalformedDocument, cal.Name)
		}
		calendars++

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			events = append(events, decodeEvent(comp, loc))
		}
	}

	if calendars == 0 {
		return nil, fmt.Errorf("%w: no %s found", domain.ErrMalformedDocument, ical.CompCalendar)
	}
	return events, nil
}

func decodeEvent(comp *ical.Component, loc *time.Location) Event {
	ev := Event{
		UID:         text(comp.Props, ical.PropUID),
		Summary:     text(comp.Props, ical.PropSummary),
		Description: text(comp.Props, ical.PropDescription),
		Location:    text(comp.Props, ical.PropLocation),
		Fields:      Record{},
	}
	if ev.Summary == "" {
		ev.Summary = DefaultSummary
	}

	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		start := NewTemporal(prop, loc)
		ev.StartRaw = start
		ev.AllDay = start.IsDate()
		ev.Fields["DtStart"] = start
		ev.Fields["IsAllDay"] = ev.AllDay
	}
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		end := NewTemporal(prop, loc)
		ev.EndRaw = end
		ev.Fields["DtEnd"] = end
	}
	if prop := comp.Props.Get(ical.PropDateTimeStamp); prop != nil {
		ev.Fields["DtStamp"] = NewTemporal(prop, loc)
	}
	if prop := comp.Props.Get(ical.PropCreated); prop != nil {
		ev.Fields["Created"] = NewTemporal(prop, loc)
	}

	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil && prop.Value != "" {
		if _, err := rrule.StrToROption(prop.Value); err != nil {
			log.Printf("ics: dropping invalid RRULE for %q: %v", ev.Summary, err)
		} else {
			ev.RRule = prop.Value
		}
	}

	for _, child := range comp.Children {
		if child.Name != ical.CompAlarm {
			continue
		}
		if alarm, ok := decodeAlarm(child); ok {
			ev.Alarms = append(ev.Alarms, alarm)
		}
	}

	return ev
}

// decodeAlarm reads a relative VALARM. Absolute (DATE-TIME) triggers are skipped.
func decodeAlarm(comp *ical.Component) (Alarm, bool) {
	prop := comp.Props.Get(ical.PropTrigger)
	if prop == nil {
		return Alarm{}, false
	}
	if strings.EqualFold(prop.Params.Get(ical.ParamValue), string(ical.ValueDateTime)) {
		return Alarm{}, false
	}
	offset, err := TriggerOffset(prop)
	if err != nil {
		log.Printf("ics: skipping alarm: %v", err)
		return Alarm{}, false
	}
	action := text(comp.Props, ical.PropAction)
	if action == "" {
		action = ActionDisplay
	}
	return Alarm{
		Offset:      offset,
		Action:      action,
		Description: text(comp.Props, ical.PropDescription),
	}, true
}

func text(props ical.Props, name string) string {
	prop := props.Get(name)
	if prop == nil {
		return ""
	}
	v, err := prop.Text()
	if err != nil {
		return prop.Value
	}
	return v
}

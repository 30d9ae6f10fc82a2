package domain

import "time"

// Calendar is a target calendar owned by the device store.
// The engine only reads calendars, it never creates or deletes them.
type Calendar struct {
	ID   string
	Name string
}

// Reminder is an absolute-time notification attached to a device event.
type Reminder struct {
	TriggerAt time.Time
}

// CalendarEvent is an event persisted in the device store.
type CalendarEvent struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Reminders   []Reminder
	RRule       string // Recurrence rule (e.g., "FREQ=WEEKLY;BYDAY=MO")
}

// EventFields is the tuple written by create and update calls.
type EventFields struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	AllDay      bool
	Reminders   []Reminder
	RRule       string
}

// Apply copies the fields onto an existing device event.
func (f EventFields) Apply(e *CalendarEvent) {
	e.Title = f.Title
	e.Description = f.Description
	e.Location = f.Location
	e.Start = f.Start
	e.End = f.End
	e.AllDay = f.AllDay
	e.Reminders = append([]Reminder(nil), f.Reminders...)
	e.RRule = f.RRule
}


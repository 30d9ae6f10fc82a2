package domain

import (
	"errors"
	"fmt"
)

// Import errors.
var (
	ErrInputNotFound        = errors.New("input document not found")
	ErrMalformedDocument    = errors.New("malformed calendar document")
	ErrNoCalendarsAvailable = errors.New("no calendars available")
	ErrCalendarNotFound     = errors.New("calendar not found")
	ErrUnexpectedStore      = errors.New("unexpected calendar store failure")
)

// CalendarNotFoundError names the calendar that could not be resolved.
type CalendarNotFoundError struct {
	Name string
}

func (e *CalendarNotFoundError) Error() string {
	return fmt.Sprintf("calendar %q not found", e.Name)
}

func (e *CalendarNotFoundError) Is(target error) bool {
	return target == ErrCalendarNotFound
}

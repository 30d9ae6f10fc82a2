package domain

import (
	"errors"
	"time"
)

// Event is a snapshot of a browsed event selected for export.
// It lives only for the duration of one export.
type Event struct {
	ID              *int   `json:"id,omitempty"`
	Title           string `json:"title"`
	DescriptionHTML string `json:"description"`
	StartUnix       int64  `json:"start"`
	EndUnix         int64  `json:"end"`
	Location        string `json:"location,omitempty"`
	URL             string `json:"url,omitempty"`
}

// Start returns the start instant in UTC.
func (e Event) Start() time.Time {
	return time.Unix(e.StartUnix, 0).UTC()
}

// End returns the end instant in UTC.
func (e Event) End() time.Time {
	return time.Unix(e.EndUnix, 0).UTC()
}

// Validate checks the minimal shape of an event coming from the events API.
// The encoder does not call it: malformed events are exported as-is.
func (e *Event) Validate() error {
	if e.Title == "" {
		return errors.New("event title cannot be empty")
	}
	if e.StartUnix == 0 {
		return errors.New("event start is required")
	}
	return nil
}

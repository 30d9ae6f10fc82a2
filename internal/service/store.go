package service

import (
	"context"
	"time"

	"github.com/sergkorol/kommunist/internal/domain"
)

// CalendarStore is the device calendar store the engine imports into.
// Every call is an I/O boundary.
type CalendarStore interface {
	// Calendars lists calendars in store enumeration order.
	Calendars(ctx context.Context) ([]domain.Calendar, error)
	// Events lists events of a calendar. Zero from/to leave the range open.
	Events(ctx context.Context, calendarID string, from, to time.Time) ([]domain.CalendarEvent, error)
	CreateEvent(ctx context.Context, calendarID string, fields domain.EventFields) (*domain.CalendarEvent, error)
	UpdateEvent(ctx context.Context, eventID string, fields domain.EventFields) (*domain.CalendarEvent, error)
}

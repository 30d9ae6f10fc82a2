package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergkorol/kommunist/internal/domain"
)

// Directory enumerates the calendars available in the store.
type Directory struct {
	store CalendarStore
}

// NewDirectory creates a new calendar directory
func NewDirectory(store CalendarStore) *Directory {
	return &Directory{store: store}
}

// List returns all calendars, failing with ErrNoCalendarsAvailable when there are none.
func (d *Directory) List(ctx context.Context) ([]domain.Calendar, error) {
	cals, err := d.store.Calendars(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calendars: %w", err)
	}
	if len(cals) == 0 {
		return nil, domain.ErrNoCalendarsAvailable
	}
	return cals, nil
}

// Names returns calendar names in store order.
func (d *Directory) Names(ctx context.Context) ([]string, error) {
	cals, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(cals))
	for _, c := range cals {
		names = append(names, c.Name)
	}
	return names, nil
}

// Resolve finds the calendar named name, ignoring case.
//
// With an empty name the first calendar in store order is returned. That order
// is defined by the store (SQLite insertion order, CalDAV server listing) and
// is not stable across backends.
func (d *Directory) Resolve(ctx context.Context, name string) (domain.Calendar, error) {
	cals, err := d.List(ctx)
	if err != nil {
		return domain.Calendar{}, err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return cals[0], nil
	}
	for _, c := range cals {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return domain.Calendar{}, &domain.CalendarNotFoundError{Name: name}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sergkorol/kommunist/internal/domain"
)

var errStoreDown = errors.New("store down")

type storeCall struct {
	Op         string // calendars, events, create, update
	CalendarID string
	EventID    string
	Fields     domain.EventFields
}

// fakeStore is an in-memory CalendarStore that records every call.
type fakeStore struct {
	calendars []domain.Calendar
	events    []domain.CalendarEvent
	calls     []storeCall
	nextID    int

	calendarsErr error
	// failCreateAfter makes the create call with this 1-based index fail.
	failCreateAfter int
	creates         int
	// failEventsAfter and failUpdateAfter do the same for listing and update.
	failEventsAfter int
	listings        int
	failUpdateAfter int
	updates         int
	// onCreate runs after every successful create.
	onCreate func()
}

func newFakeStore(names ...string) *fakeStore {
	s := &fakeStore{}
	for i, name := range names {
		s.calendars = append(s.calendars, domain.Calendar{ID: fmt.Sprintf("cal-%d", i+1), Name: name})
	}
	return s
}

func (s *fakeStore) Calendars(_ context.Context) ([]domain.Calendar, error) {
	s.calls = append(s.calls, storeCall{Op: "calendars"})
	if s.calendarsErr != nil {
		return nil, s.calendarsErr
	}
	return append([]domain.Calendar(nil), s.calendars...), nil
}

func (s *fakeStore) Events(_ context.Context, calendarID string, from, to time.Time) ([]domain.CalendarEvent, error) {
	s.calls = append(s.calls, storeCall{Op: "events", CalendarID: calendarID})
	s.listings++
	if s.failEventsAfter > 0 && s.listings == s.failEventsAfter {
		return nil, errStoreDown
	}
	var out []domain.CalendarEvent
	for _, e := range s.events {
		if e.CalendarID == calendarID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateEvent(_ context.Context, calendarID string, f domain.EventFields) (*domain.CalendarEvent, error) {
	s.calls = append(s.calls, storeCall{Op: "create", CalendarID: calendarID, Fields: f})
	s.creates++
	if s.failCreateAfter > 0 && s.creates == s.failCreateAfter {
		return nil, errStoreDown
	}

	s.nextID++
	e := domain.CalendarEvent{ID: fmt.Sprintf("ev-%d", s.nextID), CalendarID: calendarID}
	f.Apply(&e)
	s.events = append(s.events, e)
	if s.onCreate != nil {
		s.onCreate()
	}
	return &e, nil
}

func (s *fakeStore) UpdateEvent(_ context.Context, eventID string, f domain.EventFields) (*domain.CalendarEvent, error) {
	s.calls = append(s.calls, storeCall{Op: "update", EventID: eventID, Fields: f})
	s.updates++
	if s.failUpdateAfter > 0 && s.updates == s.failUpdateAfter {
		return nil, errStoreDown
	}
	for i := range s.events {
		if s.events[i].ID == eventID {
			f.Apply(&s.events[i])
			e := s.events[i]
			return &e, nil
		}
	}
	return nil, fmt.Errorf("event %s not found", eventID)
}

// mutations returns the create and update calls in order.
func (s *fakeStore) mutations() []storeCall {
	var out []storeCall
	for _, c := range s.calls {
		if c.Op == "create" || c.Op == "update" {
			out = append(out, c)
		}
	}
	return out
}

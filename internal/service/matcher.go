package service

import (
	"github.com/sergkorol/kommunist/internal/domain"
	"github.com/sergkorol/kommunist/internal/ics"
)

// Matcher decides which existing device event an incoming event updates.
// Two events match when their keys are equal.
type Matcher interface {
	IncomingKey(ev ics.Event) string
	ExistingKey(ev domain.CalendarEvent) string
}

// TitleMatcher matches on the exact title. UID and times are ignored.
type TitleMatcher struct{}

func (TitleMatcher) IncomingKey(ev ics.Event) string {
	if ev.Summary == "" {
		return ics.DefaultSummary
	}
	return ev.Summary
}

func (TitleMatcher) ExistingKey(ev domain.CalendarEvent) string {
	return ev.Title
}

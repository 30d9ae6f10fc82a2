package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sergkorol/kommunist/internal/domain"
	"github.com/sergkorol/kommunist/internal/extract"
	"github.com/sergkorol/kommunist/internal/ics"
)

const (
	// DefaultReminderOffset applies when an event has no alarm.
	DefaultReminderOffset = -30 * time.Minute
	// DefaultDuration applies when an event has no usable end.
	DefaultDuration = time.Hour
)

// AlarmReading selects how an alarm trigger becomes a reminder offset.
type AlarmReading string

const (
	// AlarmTotal uses the whole trigger duration: -PT1H30M is 90 minutes early.
	AlarmTotal AlarmReading = "total"
	// AlarmMinuteComponent uses only the minutes part of the normalised
	// duration: -PT1H30M and -PT90M are 30 minutes early, -PT2H is at start. Kept for parity with the mobile
	// client's historical behaviour.
	AlarmMinuteComponent AlarmReading = "minutes"
)

// SkipReason explains why an event was not imported.
type SkipReason string

const SkipNoStart SkipReason = "no extractable start"

// SkipRecord is an event left out of an import. It is not an error.
type SkipRecord struct {
	Index   int
	UID     string
	Summary string
	Reason  SkipReason
}

// ImportResult contains import operation results
type ImportResult struct {
	Calendar domain.Calendar
	Created  int
	Updated  int
	Skipped  []SkipRecord
}

// Applied returns the number of store mutations performed.
func (r *ImportResult) Applied() int {
	return r.Created + r.Updated
}

// PartialImportError is returned when an import stops after it started
// mutating the store. Events applied before the failure stay applied.
type PartialImportError struct {
	Summary   string // event being processed when the import stopped
	Applied   int
	Remaining int // unprocessed events, including the failed one
	Err       error
}

func (e *PartialImportError) Error() string {
	return fmt.Sprintf("import aborted at %q (%d applied, %d remaining): %v", e.Summary, e.Applied, e.Remaining, e.Err)
}

func (e *PartialImportError) Unwrap() error {
	return e.Err
}

// Reconciler upserts decoded events into a store calendar, one at a time.
type Reconciler struct {
	store     CalendarStore
	directory *Directory
	matcher   Matcher
	extractor extract.Extractor
	alarms    AlarmReading
}

// NewReconciler creates a reconciler. Floating times resolve in loc.
func NewReconciler(store CalendarStore, loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{
		store:     store,
		directory: NewDirectory(store),
		matcher:   TitleMatcher{},
		extractor: extract.Extractor{Loc: loc},
		alarms:    AlarmTotal,
	}
}

// SetMatcher replaces the title matcher.
func (r *Reconciler) SetMatcher(m Matcher) {
	if m != nil {
		r.matcher = m
	}
}

// SetAlarmReading sets how alarm triggers are read.
func (r *Reconciler) SetAlarmReading(a AlarmReading) {
	if a == AlarmTotal || a == AlarmMinuteComponent {
		r.alarms = a
	}
}

// Directory returns the calendar directory backed by the same store.
func (r *Reconciler) Directory() *Directory {
	return r.directory
}

// Reconcile creates or updates a device event for every decoded event.
//
// The target calendar is resolved before any event is touched; resolution
// errors leave the store unchanged. Events without a start are skipped.
// Events are processed strictly in order: the existing events are listed
// again for every event so that a title created earlier in the same run is
// updated rather than duplicated. A store failure stops the run with a
// *PartialImportError. ctx is checked between events only.
func (r *Reconciler) Reconcile(ctx context.Context, events []ics.Event, calendarName string) (*ImportResult, error) {
	result := &ImportResult{}
	if len(events) == 0 {
		return result, nil
	}

	cal, err := r.directory.Resolve(ctx, calendarName)
	if err != nil {
		return nil, err
	}
	result.Calendar = cal

	for i, ev := range events {
		if err := ctx.Err(); err != nil {
			return result, &PartialImportError{
				Summary:   ev.Summary,
				Applied:   result.Applied(),
				Remaining: len(events) - i,
				Err:       err,
			}
		}

		p, skip := r.prepare(ev)
		if skip != "" {
			log.Printf("import: skipping %q: %s", ev.Summary, skip)
			result.Skipped = append(result.Skipped, SkipRecord{
				Index:   i,
				UID:     ev.UID,
				Summary: ev.Summary,
				Reason:  skip,
			})
			continue
		}

		created, err := r.upsert(ctx, cal, p)
		if err != nil {
			log.Printf("import: store failure on %q in %s: %v", p.key, cal.Name, err)
			return result, &PartialImportError{
				Summary:   ev.Summary,
				Applied:   result.Applied(),
				Remaining: len(events) - i,
				Err:       fmt.Errorf("%w: %w", domain.ErrUnexpectedStore, err),
			}
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	return result, nil
}

type preparedEvent struct {
	key    string
	fields domain.EventFields
}

// prepare extracts the store tuple. A non-empty SkipReason means the event
// must not reach the store.
func (r *Reconciler) prepare(ev ics.Event) (preparedEvent, SkipReason) {
	start, ok := r.extractor.Start(ev)
	if !ok {
		return preparedEvent{}, SkipNoStart
	}

	end, ok := r.extractor.End(ev)
	if !ok || end.Before(start) {
		end = start.Add(DefaultDuration)
	}

	title := ev.Summary
	if title == "" {
		title = ics.DefaultSummary
	}
	return preparedEvent{
		key: r.matcher.IncomingKey(ev),
		fields: domain.EventFields{
			Title:       title,
			Description: ev.Description,
			Location:    ev.Location,
			Start:       start,
			End:         end,
			AllDay:      r.extractor.AllDay(ev),
			Reminders:   []domain.Reminder{{TriggerAt: start.Add(r.reminderOffset(ev.Alarms))}},
			RRule:       ev.RRule,
		},
	}, ""
}

func (r *Reconciler) reminderOffset(alarms []ics.Alarm) time.Duration {
	if len(alarms) == 0 {
		return DefaultReminderOffset
	}
	if r.alarms == AlarmMinuteComponent {
		return ics.MinutePart(alarms[0].Offset)
	}
	return alarms[0].Offset
}

// upsert reports whether a new event was created.
func (r *Reconciler) upsert(ctx context.Context, cal domain.Calendar, p preparedEvent) (bool, error) {
	existing, err := r.store.Events(ctx, cal.ID, time.Time{}, time.Time{})
	if err != nil {
		return false, fmt.Errorf("list events: %w", err)
	}

	for _, e := range existing {
		if r.matcher.ExistingKey(e) != p.key {
			continue
		}
		if _, err := r.store.UpdateEvent(ctx, e.ID, p.fields); err != nil {
			return false, fmt.Errorf("update event %s: %w", e.ID, err)
		}
		return false, nil
	}

	if _, err := r.store.CreateEvent(ctx, cal.ID, p.fields); err != nil {
		return false, fmt.Errorf("create event: %w", err)
	}
	return true, nil
}

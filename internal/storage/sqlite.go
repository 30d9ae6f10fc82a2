package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sergkorol/kommunist/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

// ErrEventNotFound is returned when updating an unknown event.
var ErrEventNotFound = errors.New("event not found")

// Storage is the on-device calendar store.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS calendars (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE COLLATE NOCASE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			calendar_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			location TEXT DEFAULT '',
			start_at DATETIME NOT NULL,
			end_at DATETIME NOT NULL,
			all_day INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (calendar_id) REFERENCES calendars(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_calendar_id ON events(calendar_id)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start_at ON events(start_at)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			trigger_at DATETIME NOT NULL,
			FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_event_id ON reminders(event_id)`,
		// Recurrence rules
		`ALTER TABLE events ADD COLUMN rrule TEXT DEFAULT ''`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Calendars ===

// EnsureCalendar returns the calendar with the given name, creating it first
// if needed. It is used to provision the device store, not by imports.
func (s *Storage) EnsureCalendar(ctx context.Context, name string) (domain.Calendar, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Calendar{}, fmt.Errorf("calendar name is empty")
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO calendars (id, name) VALUES (?, ?)`,
		uuid.NewString(), name,
	); err != nil {
		return domain.Calendar{}, fmt.Errorf("insert calendar: %w", err)
	}

	var c domain.Calendar
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM calendars WHERE name = ?`, name,
	).Scan(&c.ID, &c.Name)
	if err != nil {
		return domain.Calendar{}, fmt.Errorf("get calendar: %w", err)
	}
	return c, nil
}

// Calendars lists calendars in creation order.
func (s *Storage) Calendars(ctx context.Context) ([]domain.Calendar, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM calendars ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cals []domain.Calendar
	for rows.Next() {
		var c domain.Calendar
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		cals = append(cals, c)
	}
	return cals, rows.Err()
}

// === Events ===

// Events returns the events of a calendar overlapping [from, to).
// A zero bound leaves that side open.
func (s *Storage) Events(ctx context.Context, calendarID string, from, to time.Time) ([]domain.CalendarEvent, error) {
	query := `SELECT id, calendar_id, title, description, location, start_at, end_at, all_day, rrule
		FROM events
		WHERE calendar_id = ?`
	args := []any{calendarID}
	if !from.IsZero() {
		query += ` AND end_at >= ?`
		args = append(args, from.UTC())
	}
	if !to.IsZero() {
		query += ` AND start_at < ?`
		args = append(args, to.UTC())
	}
	query += ` ORDER BY start_at ASC, rowid ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.CalendarEvent
	index := make(map[string]int)
	for rows.Next() {
		var e domain.CalendarEvent
		if err := rows.Scan(&e.ID, &e.CalendarID, &e.Title, &e.Description, &e.Location, &e.Start, &e.End, &e.AllDay, &e.RRule); err != nil {
			return nil, err
		}
		index[e.ID] = len(events)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(events) == 0 {
		return events, nil
	}
	if err := s.attachReminders(ctx, calendarID, events, index); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Storage) attachReminders(ctx context.Context, calendarID string, events []domain.CalendarEvent, index map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.event_id, r.trigger_at
		 FROM reminders r JOIN events e ON e.id = r.event_id
		 WHERE e.calendar_id = ?
		 ORDER BY r.id ASC`,
		calendarID,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var eventID string
		var r domain.Reminder
		if err := rows.Scan(&eventID, &r.TriggerAt); err != nil {
			return err
		}
		if i, ok := index[eventID]; ok {
			events[i].Reminders = append(events[i].Reminders, r)
		}
	}
	return rows.Err()
}

// CreateEvent inserts an event and its reminders.
func (s *Storage) CreateEvent(ctx context.Context, calendarID string, f domain.EventFields) (*domain.CalendarEvent, error) {
	e := &domain.CalendarEvent{ID: uuid.NewString(), CalendarID: calendarID}
	f.Apply(e)

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, calendar_id, title, description, location, start_at, end_at, all_day, rrule, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.CalendarID, e.Title, e.Description, e.Location, e.Start.UTC(), e.End.UTC(), e.AllDay, e.RRule, now, now,
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		return insertReminders(ctx, tx, e.ID, e.Reminders)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateEvent overwrites an event and replaces its reminders.
func (s *Storage) UpdateEvent(ctx context.Context, eventID string, f domain.EventFields) (*domain.CalendarEvent, error) {
	var calendarID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT calendar_id FROM events WHERE id = ?`, eventID).Scan(&calendarID); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
			}
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE events SET title = ?, description = ?, location = ?, start_at = ?, end_at = ?, all_day = ?, rrule = ?, updated_at = ?
			 WHERE id = ?`,
			f.Title, f.Description, f.Location, f.Start.UTC(), f.End.UTC(), f.AllDay, f.RRule, time.Now().UTC(), eventID,
		); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM reminders WHERE event_id = ?`, eventID); err != nil {
			return fmt.Errorf("clear reminders: %w", err)
		}
		return insertReminders(ctx, tx, eventID, f.Reminders)
	})
	if err != nil {
		return nil, err
	}

	e := &domain.CalendarEvent{ID: eventID, CalendarID: calendarID}
	f.Apply(e)
	return e, nil
}

func insertReminders(ctx context.Context, tx *sql.Tx, eventID string, reminders []domain.Reminder) error {
	for _, r := range reminders {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO reminders (event_id, trigger_at) VALUES (?, ?)`,
			eventID, r.TriggerAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert reminder: %w", err)
		}
	}
	return nil
}

func (s *Storage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

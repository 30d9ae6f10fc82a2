package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sergkorol/kommunist/internal/domain"
	"github.com/sergkorol/kommunist/internal/ics"
)

// DocumentSource reads an iCalendar document from its origin.
type DocumentSource interface {
	ReadDocument(ctx context.Context, path string) (string, error)
}

// FileSource reads documents from the local filesystem.
type FileSource struct{}

func (FileSource) ReadDocument(_ context.Context, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrInputNotFound)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", domain.ErrInputNotFound, path)
	}
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return string(data), nil
}

// ImportService imports iCalendar documents into the device store.
// Imports run one at a time, whichever front end starts them.
type ImportService struct {
	mu         sync.Mutex
	source     DocumentSource
	reconciler *Reconciler
	timezone   *time.Location
}

// NewImportService creates a new import service
func NewImportService(source DocumentSource, reconciler *Reconciler, tz *time.Location) *ImportService {
	if source == nil {
		source = FileSource{}
	}
	if tz == nil {
		tz = time.UTC
	}
	return &ImportService{
		source:     source,
		reconciler: reconciler,
		timezone:   tz,
	}
}

// ImportDocument reads, decodes and reconciles the document at path into the
// named calendar, or the store's first calendar when name is empty.
func (s *ImportService) ImportDocument(ctx context.Context, path, calendarName string) (*ImportResult, error) {
	text, err := s.source.ReadDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	return s.ImportText(ctx, text, calendarName)
}

// ImportText decodes and reconciles an already loaded document.
func (s *ImportService) ImportText(ctx context.Context, text, calendarName string) (*ImportResult, error) {
	events, err := ics.Decode(text, s.timezone)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconciler.Reconcile(ctx, events, calendarName)
}

// ListCalendarNames returns the names of the store's calendars.
func (s *ImportService) ListCalendarNames(ctx context.Context) ([]string, error) {
	return s.reconciler.Directory().Names(ctx)
}

// FormatResult formats an import result for display
func FormatResult(r *ImportResult) string {
	if r == nil {
		return "nothing imported"
	}
	if r.Calendar.Name == "" {
		return "no events in document"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d created, %d updated", r.Calendar.Name, r.Created, r.Updated)
	if len(r.Skipped) > 0 {
		fmt.Fprintf(&sb, ", %d skipped", len(r.Skipped))
		for _, sk := range r.Skipped {
			fmt.Fprintf(&sb, "\n  - %s (%s)", sk.Summary, sk.Reason)
		}
	}
	return sb.String()
}

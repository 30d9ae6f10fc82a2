package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sergkorol/kommunist/internal/domain"
	"github.com/sergkorol/kommunist/internal/ics"
)

// DefaultDocumentName is used when Export is called without a name.
const DefaultDocumentName = "events.ics"

// DocumentSink hands an encoded document to a transport.
type DocumentSink interface {
	Deliver(ctx context.Context, name string, data []byte) error
}

// FileSink writes documents into a directory.
type FileSink struct {
	Dir string
}

func (s FileSink) Deliver(_ context.Context, name string, data []byte) error {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// ExportService turns selected events into iCalendar documents.
type ExportService struct {
	opts ics.EncodeOptions
	sink DocumentSink
}

// NewExportService creates a new export service
func NewExportService(opts ics.EncodeOptions, sink DocumentSink) *ExportService {
	return &ExportService{opts: opts, sink: sink}
}

// Encode renders events with the service options.
func (s *ExportService) Encode(events []domain.Event) (string, error) {
	return ics.Encode(events, s.opts)
}

// Export encodes events and delivers the document under name.
func (s *ExportService) Export(ctx context.Context, events []domain.Event, name string) error {
	if s.sink == nil {
		return fmt.Errorf("export sink not configured")
	}
	if name == "" {
		name = DefaultDocumentName
	}

	doc, err := s.Encode(events)
	if err != nil {
		return err
	}
	if err := s.sink.Deliver(ctx, name, []byte(doc)); err != nil {
		return fmt.Errorf("deliver %s: %w", name, err)
	}
	return nil
}

// LoadEvents reads a JSON array of events as returned by the events API.
func LoadEvents(r io.Reader) ([]domain.Event, error) {
	var events []domain.Event
	if err := json.NewDecoder(r).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}

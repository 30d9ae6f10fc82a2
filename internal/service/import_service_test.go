package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sergkorol/kommunist/internal/domain"
)

const standupDoc = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//EN\r\n" +
	"BEGIN:VEVENT\r\nUID:s-1\r\nDTSTAMP:20250101T000000Z\r\nSUMMARY:Standup\r\n" +
	"DTSTART:20250101T090000Z\r\nDTEND:20250101T091500Z\r\nEND:VEVENT\r\n" +
	"BEGIN:VEVENT\r\nUID:s-2\r\nSUMMARY:Undated\r\nEND:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.ics")
	if err := os.WriteFile(path, []byte(standupDoc), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := FileSource{}.ReadDocument(context.Background(), path)
	if err != nil || got != standupDoc {
		t.Errorf("ReadDocument() = %q, %v", got, err)
	}

	for _, missing := range []string{"", "   ", filepath.Join(dir, "nope.ics")} {
		if _, err := (FileSource{}).ReadDocument(context.Background(), missing); !errors.Is(err, domain.ErrInputNotFound) {
			t.Errorf("ReadDocument(%q) error = %v, want ErrInputNotFound", missing, err)
		}
	}
}

type memSource map[string]string

func (m memSource) ReadDocument(_ context.Context, path string) (string, error) {
	text, ok := m[path]
	if !ok {
		return "", domain.ErrInputNotFound
	}
	return text, nil
}

func TestImportDocument(t *testing.T) {
	store := newFakeStore("Work", "Personal")
	svc := NewImportService(memSource{"a.ics": standupDoc}, NewReconciler(store, time.UTC), time.UTC)

	result, err := svc.ImportDocument(context.Background(), "a.ics", "Personal")
	if err != nil {
		t.Fatalf("ImportDocument() error = %v", err)
	}
	if result.Calendar.Name != "Personal" || result.Created != 1 || len(result.Skipped) != 1 {
		t.Errorf("result = %+v", result)
	}

	text := FormatResult(result)
	for _, want := range []string{"Personal: 1 created, 0 updated", "1 skipped", "Undated"} {
		if !strings.Contains(text, want) {
			t.Errorf("FormatResult() = %q, missing %q", text, want)
		}
	}
}

func TestImportDocumentErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   memSource
		path     string
		calendar string
		wantErr  error
	}{
		{name: "missing input", source: memSource{}, path: "a.ics", wantErr: domain.ErrInputNotFound},
		{name: "malformed", source: memSource{"a.ics": "hello"}, path: "a.ics", wantErr: domain.ErrMalformedDocument},
		{name: "unknown calendar", source: memSource{"a.ics": standupDoc}, path: "a.ics", calendar: "Nope", wantErr: domain.ErrCalendarNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore("Work")
			svc := NewImportService(tt.source, NewReconciler(store, time.UTC), time.UTC)

			_, err := svc.ImportDocument(context.Background(), tt.path, tt.calendar)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ImportDocument() error = %v, want %v", err, tt.wantErr)
			}
			if len(store.mutations()) != 0 {
				t.Errorf("mutations = %+v, want none", store.mutations())
			}
		})
	}
}

func TestImportTextTwiceUpdates(t *testing.T) {
	store := newFakeStore("Work")
	svc := NewImportService(nil, NewReconciler(store, time.UTC), time.UTC)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.ImportText(ctx, standupDoc, ""); err != nil {
			t.Fatalf("run %d: ImportText() error = %v", i, err)
		}
	}

	muts := store.mutations()
	if len(muts) != 2 || muts[0].Op != "create" || muts[1].Op != "update" {
		t.Errorf("mutations = %+v, want create then update", muts)
	}
}

func TestListCalendarNames(t *testing.T) {
	svc := NewImportService(nil, NewReconciler(newFakeStore(), time.UTC), nil)
	if _, err := svc.ListCalendarNames(context.Background()); !errors.Is(err, domain.ErrNoCalendarsAvailable) {
		t.Errorf("ListCalendarNames() error = %v, want ErrNoCalendarsAvailable", err)
	}
}

func TestFormatResult(t *testing.T) {
	if got := FormatResult(nil); got != "nothing imported" {
		t.Errorf("FormatResult(nil) = %q", got)
	}
	if got := FormatResult(&ImportResult{}); got != "no events in document" {
		t.Errorf("FormatResult(empty) = %q", got)
	}
	r := &ImportResult{Calendar: domain.Calendar{Name: "Work"}, Created: 2, Updated: 1}
	if got := FormatResult(r); got != "Work: 2 created, 1 updated" {
		t.Errorf("FormatResult() = %q", got)
	}
}

func TestImportUsesDecodeLocation(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	floating := strings.NewReplacer("DTSTART:20250101T090000Z", "DTSTART:20250101T100000", "DTEND:20250101T091500Z", "DTEND:20250101T101500").Replace(standupDoc)

	store := newFakeStore("Work")
	svc := NewImportService(nil, NewReconciler(store, berlin), berlin)
	if _, err := svc.ImportText(context.Background(), floating, ""); err != nil {
		t.Fatalf("ImportText() error = %v", err)
	}
	if got := store.mutations()[0].Fields.Start; !got.Equal(t0) {
		t.Errorf("Start = %v, want %v", got, t0)
	}
}

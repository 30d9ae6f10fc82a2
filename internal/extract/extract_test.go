package extract

import (
	"testing"
	"time"

	"github.com/sergkorol/kommunist/internal/ics"
)

var (
	mon9  = time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	tue9  = time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	wed10 = time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
)

type both struct {
	offset, local time.Time
	offsetOK      bool
}

func (b both) OffsetInstant() (time.Time, bool) { return b.offset, b.offsetOK }
func (b both) LocalInstant() (time.Time, bool)  { return b.local, true }

type wrapped struct{ v any }

func (w wrapped) Value() any { return w.v }

type loop struct{}

func (l loop) Value() any { return l }

type exploding struct{}

func (exploding) OffsetInstant() (time.Time, bool) { panic("boom") }
func (exploding) IsDate() bool                     { panic("boom") }

type dateOnly bool

func (d dateOnly) IsDate() bool { return bool(d) }

func TestStart(t *testing.T) {
	tests := []struct {
		name   string
		ev     ics.Event
		want   time.Time
		wantOK bool
	}{
		{
			name:   "start field",
			ev:     ics.Event{Fields: ics.Record{"Start": "2024-03-04T09:00:00Z"}},
			want:   mon9,
			wantOK: true,
		},
		{
			name:   "names are tried in order",
			ev:     ics.Event{Fields: ics.Record{"DtStart": tue9, "Start": mon9}},
			want:   mon9,
			wantOK: true,
		},
		{
			name:   "unparseable value falls through to next name",
			ev:     ics.Event{Fields: ics.Record{"Start": "soon", "StartDate": "2024-03-05 09:00"}},
			want:   tue9,
			wantOK: true,
		},
		{
			name:   "utc suffixed name",
			ev:     ics.Event{Fields: ics.Record{"DtStartUtc": "20240304T090000Z"}},
			want:   mon9,
			wantOK: true,
		},
		{
			name:   "raw start when no field matches",
			ev:     ics.Event{StartRaw: &mon9},
			want:   mon9,
			wantOK: true,
		},
		{
			name:   "stamp fallback",
			ev:     ics.Event{Fields: ics.Record{"DtStamp": "20240306T100000Z"}},
			want:   wed10,
			wantOK: true,
		},
		{
			name:   "created fallback",
			ev:     ics.Event{Fields: ics.Record{"Created": wed10}},
			want:   wed10,
			wantOK: true,
		},
		{
			name: "nil entries are ignored",
			ev:   ics.Event{Fields: ics.Record{"Start": nil}},
		},
		{
			name: "nothing usable",
			ev:   ics.Event{Fields: ics.Record{"Start": 42, "DtStamp": "later"}},
		},
		{
			name: "no fields at all",
			ev:   ics.Event{},
		},
		{
			name: "panicking accessor",
			ev:   ics.Event{StartRaw: exploding{}},
		},
	}

	x := Extractor{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := x.Start(tt.ev)
			if ok != tt.wantOK {
				t.Fatalf("Start() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("Start() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnd(t *testing.T) {
	x := Extractor{}

	got, ok := x.End(ics.Event{Fields: ics.Record{"EndDate": "2024-03-05T09:00:00Z"}, EndRaw: mon9})
	if !ok || !got.Equal(tue9) {
		t.Errorf("End() = %v, %v, want field value %v", got, ok, tue9)
	}

	got, ok = x.End(ics.Event{EndRaw: wrapped{"2024-03-04T09:00:00Z"}})
	if !ok || !got.Equal(mon9) {
		t.Errorf("End() = %v, %v, want raw value %v", got, ok, mon9)
	}

	// DtStamp is a start fallback only
	if _, ok := x.End(ics.Event{Fields: ics.Record{"DtStamp": mon9}}); ok {
		t.Error("End() used a start fallback")
	}
}

func TestInstant(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}

	tests := []struct {
		name   string
		loc    *time.Location
		v      any
		want   time.Time
		wantOK bool
	}{
		{name: "offset accessor wins", v: both{offset: mon9, local: tue9, offsetOK: true}, want: mon9, wantOK: true},
		{name: "local accessor when no offset", v: both{offset: mon9, local: tue9}, want: tue9, wantOK: true},
		{name: "nested value", v: wrapped{wrapped{"2024-03-04T09:00:00Z"}}, want: mon9, wantOK: true},
		{name: "self-referencing value", v: loop{}},
		{name: "date", loc: berlin, v: Date{2024, time.March, 4}, want: time.Date(2024, 3, 4, 0, 0, 0, 0, berlin), wantOK: true},
		{name: "date pointer", v: &Date{2024, time.March, 4}, want: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "nil date pointer", v: (*Date)(nil)},
		{name: "zero time", v: time.Time{}},
		{name: "floating string in loc", loc: berlin, v: "20240304T100000", want: mon9, wantOK: true},
		{name: "offset string ignores loc", loc: berlin, v: "2024-03-04T11:00:00+02:00", want: mon9, wantOK: true},
		{name: "ical date string", v: "20240304", want: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), wantOK: true},
		{name: "bytes", v: []byte("2024-03-04T09:00:00Z"), want: mon9, wantOK: true},
		{name: "blank string", v: "   "},
		{name: "unsupported type", v: 3.14},
		{name: "nil", v: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extractor{Loc: tt.loc}.Instant(tt.v)
			if ok != tt.wantOK {
				t.Fatalf("Instant() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("Instant() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllDay(t *testing.T) {
	tests := []struct {
		name string
		ev   ics.Event
		want bool
	}{
		{name: "field", ev: ics.Event{Fields: ics.Record{"IsAllDay": true}}, want: true},
		{name: "second field name", ev: ics.Event{Fields: ics.Record{"IsAllDay": "yes", "AllDay": true}}, want: true},
		{name: "raw start is a date", ev: ics.Event{StartRaw: dateOnly(true)}, want: true},
		{name: "raw start is a date-time", ev: ics.Event{StartRaw: dateOnly(false), AllDay: true}, want: false},
		{name: "decoded flag", ev: ics.Event{AllDay: true}, want: true},
		{name: "unknown", ev: ics.Event{}, want: false},
		{name: "panicking accessor", ev: ics.Event{StartRaw: exploding{}}, want: false},
	}

	x := Extractor{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := x.AllDay(tt.ev); got != tt.want {
				t.Errorf("AllDay() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodedEvent(t *testing.T) {
	text := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//Test//EN\r\n" +
		"BEGIN:VEVENT\r\nUID:1\r\nDTSTAMP:20240301T120000Z\r\nSUMMARY:Standup\r\n" +
		"DTSTART:20240304T090000Z\r\nDTEND:20240304T091500Z\r\nEND:VEVENT\r\n" +
		"BEGIN:VEVENT\r\nUID:2\r\nDTSTAMP:20240301T120000Z\r\nSUMMARY:Holiday\r\n" +
		"DTSTART;VALUE=DATE:20240305\r\nEND:VEVENT\r\n" +
		"END:VCALENDAR\r\n"

	events, err := ics.Decode(text, time.UTC)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	x := Extractor{Loc: time.UTC}

	start, ok := x.Start(events[0])
	if !ok || !start.Equal(mon9) {
		t.Errorf("Start() = %v, %v, want %v", start, ok, mon9)
	}
	end, ok := x.End(events[0])
	if want := mon9.Add(15 * time.Minute); !ok || !end.Equal(want) {
		t.Errorf("End() = %v, %v, want %v", end, ok, want)
	}
	if x.AllDay(events[0]) {
		t.Error("AllDay() = true for a timed event")
	}

	if !x.AllDay(events[1]) {
		t.Error("AllDay() = false for a DATE event")
	}
	if _, ok := x.End(events[1]); ok {
		t.Error("End() found a value for an event without DTEND")
	}
}

package ics

import (
	"testing"
	"time"

	"github.com/emersion/go-ical"
)

func triggerProp(value string) *ical.Prop {
	prop := ical.NewProp(ical.PropTrigger)
	prop.Value = value
	return prop
}

func TestTriggerOffset(t *testing.T) {
	tests := []struct {
		in      string
		offset  time.Duration
		minutes time.Duration
		wantErr bool
	}{
		{in: "-PT15M", offset: -15 * time.Minute, minutes: -15 * time.Minute},
		{in: "-PT1H30M", offset: -90 * time.Minute, minutes: -30 * time.Minute},
		{in: "-PT90M", offset: -90 * time.Minute, minutes: -30 * time.Minute},
		{in: "-PT2H", offset: -2 * time.Hour, minutes: 0},
		{in: "PT0S", offset: 0, minutes: 0},
		{in: "+PT5M", offset: 5 * time.Minute, minutes: 5 * time.Minute},
		{in: "-P1D", offset: -24 * time.Hour, minutes: 0},
		{in: "-P1W", offset: -7 * 24 * time.Hour, minutes: 0},
		{in: "p1dt2h", offset: 26 * time.Hour, minutes: 0},
		{in: "15M", wantErr: true},
		{in: "-PTXM", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := TriggerOffset(triggerProp(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("TriggerOffset(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got != tt.offset {
				t.Errorf("TriggerOffset() = %v, want %v", got, tt.offset)
			}
			if m := MinutePart(got); m != tt.minutes {
				t.Errorf("MinutePart() = %v, want %v", m, tt.minutes)
			}
		})
	}
}

func TestTriggerOffsetDateTime(t *testing.T) {
	prop := triggerProp("20250101T083000Z")
	prop.Params.Set(ical.ParamValue, string(ical.ValueDateTime))
	if _, err := TriggerOffset(prop); err == nil {
		t.Error("TriggerOffset() accepted an absolute trigger")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		offset time.Duration
		want   string
	}{
		{-30 * time.Minute, "-PT30M"},
		{-90 * time.Minute, "-PT1H30M"},
		{0, "PT0S"},
		{-24 * time.Hour, "-P1D"},
		{-(26*time.Hour + 5*time.Second), "-P1DT2H5S"},
		{10 * time.Minute, "PT10M"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := FormatDuration(tt.offset); got != tt.want {
				t.Errorf("FormatDuration() = %q, want %q", got, tt.want)
			}

			prop := ical.NewProp(ical.PropTrigger)
			SetTrigger(prop, tt.offset)
			parsed, err := TriggerOffset(prop)
			if err != nil {
				t.Fatalf("TriggerOffset(%q): %v", prop.Value, err)
			}
			if parsed != tt.offset {
				t.Errorf("parsed offset = %v, want %v", parsed, tt.offset)
			}
		})
	}
}

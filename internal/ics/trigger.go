package ics

import (
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// TriggerOffset reads a relative TRIGGER property as a signed duration.
func TriggerOffset(prop *ical.Prop) (time.Duration, error) {
	return prop.Duration()
}

// MinutePart returns the signed minutes component of d once normalised into
// days, hours and minutes, so -90m yields -30m and -2h yields 0.
func MinutePart(d time.Duration) time.Duration {
	abs := d
	if abs < 0 {
		abs = -abs
	}
	m := (abs / time.Minute % 60) * time.Minute
	if d < 0 {
		return -m
	}
	return m
}

// SetTrigger stores d on prop as a DURATION split into D/H/M/S units.
// ical.Prop.SetDuration writes seconds only (-PT1800S), which some clients
// display poorly.
func SetTrigger(prop *ical.Prop, d time.Duration) {
	prop.Params.Del(ical.ParamValue)
	prop.Value = FormatDuration(d)
}

// FormatDuration formats d as an iCalendar DURATION value such as "-PT15M".
func FormatDuration(d time.Duration) string {
	var sb strings.Builder
	if d < 0 {
		sb.WriteByte('-')
		d = -d
	}
	sb.WriteByte('P')

	days := int(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int(d / time.Minute)
	d -= time.Duration(minutes) * time.Minute
	seconds := int(d / time.Second)

	if days > 0 {
		sb.WriteString(strconv.Itoa(days) + "D")
	}
	if hours == 0 && minutes == 0 && seconds == 0 {
		if days == 0 {
			sb.WriteString("T0S")
		}
		return sb.String()
	}
	sb.WriteByte('T')
	if hours > 0 {
		sb.WriteString(strconv.Itoa(hours) + "H")
	}
	if minutes > 0 {
		sb.WriteString(strconv.Itoa(minutes) + "M")
	}
	if seconds > 0 {
		sb.WriteString(strconv.Itoa(seconds) + "S")
	}
	return sb.String()
}

package models

import (
	"fmt"
	"time"
)

// TimeLayout is the layout used for every timestamp written to disk.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

var legacyLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// FormatTime renders t for persistence.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}

// ParseTime reads a persisted timestamp. Offset-less values written by older
// releases are interpreted in local time.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range legacyLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

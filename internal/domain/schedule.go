package domain

import (
	"fmt"
	"strings"
	"time"
)

// Civil date-time layouts accepted for scheduled sends. None carries a zone;
// the zone comes from the configured offset.
var civilLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseOffset turns "+hh:mm" or "-hh:mm" into a fixed time.Location.
func ParseOffset(offset string) (*time.Location, error) {
	t, err := time.Parse("-07:00", strings.TrimSpace(offset))
	if err != nil {
		return nil, fmt.Errorf("%w: offset %q must look like -03:00", ErrInvalidFormat, offset)
	}
	_, seconds := t.Zone()
	return time.FixedZone("UTC"+offset, seconds), nil
}

// ParseCivilTime interprets a zone-less date-time string at loc.
// The process's local zone is never consulted.
func ParseCivilTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range civilLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewValidationError("scheduledAt", "must be a date-time like 2006-01-02T15:04", ErrInvalidFormat)
}

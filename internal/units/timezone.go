// Package units resolves the display timezone of reports. The database
// stores every timestamp in UTC.
package units

import (
	"fmt"
	"time"
)

// LoadTimezone resolves a tz database name. An empty name or "Local" means
// the host's zone.
func LoadTimezone(tz string) (*time.Location, error) {
	switch tz {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}

// IsTimezoneValid reports whether tz names a zone in the tz database.
func IsTimezoneValid(tz string) bool {
	if tz == "" {
		return false
	}
	_, err := LoadTimezone(tz)
	return err == nil
}

// TimezoneLabel names loc with its UTC offset at t, for example
// "Europe/Berlin (+02:00)".
func TimezoneLabel(loc *time.Location, t time.Time) string {
	_, offset := t.In(loc).Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%s (%c%02d:%02d)", loc, sign, offset/3600, offset%3600/60)
}

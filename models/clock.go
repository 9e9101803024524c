package models

import (
	"fmt"
	"strings"
	"time"
)

// ClockLayout is the textual timestamp format used in all domain payloads
const ClockLayout = "02-01-2006 15:04"

// displayLocation is the timezone used to parse and render clock values.
// The backend emits wall-clock times without an offset, so the whole client
// must agree on one location.
var displayLocation = mustLoadLocation("Asia/Baku")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SetDisplayLocation switches the timezone used for clock values. Returns an
// error if the name is not a valid IANA zone.
func SetDisplayLocation(name string) error {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	displayLocation = loc
	return nil
}

// ParseClock parses a DD-MM-YYYY HH:MM timestamp in the display location
func ParseClock(s string) (time.Time, error) {
	t, err := time.ParseInLocation(ClockLayout, s, displayLocation)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse clock value %q: %w", s, err)
	}
	return t, nil
}

// FormatClock renders a time as DD-MM-YYYY HH:MM in the display location
func FormatClock(t time.Time) string {
	return t.In(displayLocation).Format(ClockLayout)
}

// Clock is a time.Time that marshals to and from the backend's
// DD-MM-YYYY HH:MM format
type Clock struct {
	time.Time
}

// NewClock wraps a time.Time as a Clock
func NewClock(t time.Time) Clock {
	return Clock{Time: t}
}

// MarshalJSON implements json.Marshaler
func (c Clock) MarshalJSON() ([]byte, error) {
	if c.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + FormatClock(c.Time) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (c *Clock) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		c.Time = time.Time{}
		return nil
	}
	t, err := ParseClock(s)
	if err != nil {
		return err
	}
	c.Time = t
	return nil
}

package helpers

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultTimeZone is the zone used to ground the assistant's notion of "now".
const DefaultTimeZone = "America/New_York"

// Clock returns the current instant. Tests substitute a fixed clock.
type Clock func() time.Time

// DateTimeFormatter renders timestamps in a fixed target zone using a medium
// date style and a medium time style, e.g. "Mar 4, 2025, 9:07:12 AM EST".
type DateTimeFormatter struct {
	loc   *time.Location
	clock Clock
}

// NewDateTimeFormatter resolves zone (an IANA name) and binds the clock. An
// empty zone selects DefaultTimeZone and a nil clock selects time.Now.
func NewDateTimeFormatter(zone string, clock Clock) (*DateTimeFormatter, error) {
	if zone == "" {
		zone = DefaultTimeZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}
	if clock == nil {
		clock = time.Now
	}
	return &DateTimeFormatter{loc: loc, clock: clock}, nil
}

// Now returns the clock's current instant.
func (f *DateTimeFormatter) Now() time.Time {
	return f.clock()
}

// Current formats the clock's current instant.
func (f *DateTimeFormatter) Current() string {
	return f.Format(f.clock())
}

// Format renders t in the formatter's zone. The zone abbreviation follows
// daylight saving (EST or EDT for the default zone).
func (f *DateTimeFormatter) Format(t time.Time) string {
	return t.In(f.loc).Format("Jan 2, 2006, 3:04:05 PM MST")
}

// Date renders t as a calendar date (YYYY-MM-DD) in the formatter's zone.
func (f *DateTimeFormatter) Date(t time.Time) string {
	return t.In(f.loc).Format(time.DateOnly)
}

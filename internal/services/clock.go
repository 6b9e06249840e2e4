package services

import (
	"time"

	"github.com/smarttransit/seat-segment-backend/internal/models"
)

// Clock supplies the current time for "today" defaults and audit stamps
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	location *time.Location
}

// NewSystemClock returns a Clock reading the wall clock in the named IANA zone.
// An unknown zone falls back to UTC.
func NewSystemClock(timezone string) Clock {
	location, err := time.LoadLocation(timezone)
	if err != nil {
		location = time.UTC
	}
	return systemClock{location: location}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.location)
}

// today returns the clock's calendar date as midnight UTC, the form run dates are stored in
func today(clock Clock) time.Time {
	now := clock.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// parseRunDate parses a YYYY-MM-DD date, defaulting to today when empty
func parseRunDate(clock Clock, date string) (time.Time, error) {
	if date == "" {
		return today(clock), nil
	}
	return time.Parse(models.DateLayout, date)
}

package sun

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// SunriseEquation computes events with github.com/nathan-osman/go-sunrise,
// an implementation of the sunrise equation with Julian day arithmetic.
type SunriseEquation struct{}

// Name returns the strategy name
func (SunriseEquation) Name() string {
	return StrategySunriseEquation
}

// Compute returns the instant the sun crosses zenith on date's calendar day.
func (SunriseEquation) Compute(date time.Time, loc Location, rising bool, zenith Zenith) (time.Time, error) {
	y, m, d := date.Date()
	morning, evening := sunrise.TimeOfElevation(loc.Latitude, loc.Longitude, zenith.Elevation(), y, m, d)

	event := evening
	if rising {
		event = morning
	}
	if event.IsZero() {
		return time.Time{}, ErrNoEvent
	}
	return event.Truncate(time.Second).In(date.Location()), nil
}

package sun

import (
	"math"
	"time"
)

// NOAA implements the NOAA general solar position approximation
// (fractional year, equation of time and declination series). It is
// accurate to about a minute at mid-latitudes.
type NOAA struct{}

// Name returns the strategy name
func (NOAA) Name() string {
	return StrategyNOAA
}

// Compute returns the instant the sun crosses zenith on date's calendar day.
func (NOAA) Compute(date time.Time, loc Location, rising bool, zenith Zenith) (time.Time, error) {
	gamma := 2 * math.Pi / float64(daysInYear(date.Year())) * float64(date.YearDay()-1)

	// equation of time in minutes
	eqTime := 229.18 * (0.000075 +
		0.001868*math.Cos(gamma) -
		0.032077*math.Sin(gamma) -
		0.014615*math.Cos(2*gamma) -
		0.040849*math.Sin(2*gamma))

	// declination in radians
	decl := 0.006918 -
		0.399912*math.Cos(gamma) +
		0.070257*math.Sin(gamma) -
		0.006758*math.Cos(2*gamma) +
		0.000907*math.Sin(2*gamma) -
		0.002697*math.Cos(3*gamma) +
		0.00148*math.Sin(3*gamma)

	lat := loc.Latitude * degToRad
	cosHA := math.Cos(float64(zenith)*degToRad)/(math.Cos(lat)*math.Cos(decl)) - math.Tan(lat)*math.Tan(decl)
	if math.IsNaN(cosHA) || cosHA > 1 || cosHA < -1 {
		return time.Time{}, ErrNoEvent
	}
	ha := math.Acos(cosHA) * radToDeg

	// minutes after UTC midnight, unreduced
	minutes := 720 - 4*(loc.Longitude-ha) - eqTime
	if rising {
		minutes = 720 - 4*(loc.Longitude+ha) - eqTime
	}

	return fromDayHours(date, minutes/60), nil
}

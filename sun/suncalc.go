package sun

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

// SunCalc computes events with github.com/sixdouglas/suncalc. The library
// only knows a fixed set of sun angles, so only the matching zeniths are
// supported.
type SunCalc struct{}

var suncalcNames = []struct {
	zenith    Zenith
	rise, set suncalc.DayTimeName
}{
	{ZenithOfficial, suncalc.Sunrise, suncalc.Sunset},
	{ZenithCivilTwilight, suncalc.Dawn, suncalc.Dusk},
	{ZenithNautical, suncalc.NauticalDawn, suncalc.NauticalDusk},
	{ZenithAstronomical, suncalc.NightEnd, suncalc.Night},
}

// Name returns the strategy name
func (SunCalc) Name() string {
	return StrategySunCalc
}

// SupportsZenith reports whether the library names an event for zenith.
func (SunCalc) SupportsZenith(zenith Zenith) bool {
	_, ok := suncalcName(zenith, true)
	return ok
}

func suncalcName(zenith Zenith, rising bool) (suncalc.DayTimeName, bool) {
	for _, n := range suncalcNames {
		if math.Abs(float64(n.zenith-zenith)) < 1e-3 {
			if rising {
				return n.rise, true
			}
			return n.set, true
		}
	}
	return "", false
}

// Compute returns the instant the sun crosses zenith on date's calendar day.
func (SunCalc) Compute(date time.Time, loc Location, rising bool, zenith Zenith) (time.Time, error) {
	name, ok := suncalcName(zenith, rising)
	if !ok {
		return time.Time{}, ErrUnsupportedZenith
	}

	// suncalc works on the solar day nearest to the instant it is given
	noon := dayStart(date).Add(12*time.Hour - time.Duration(loc.Longitude/15*float64(time.Hour)))
	times := suncalc.GetTimes(noon, loc.Latitude, loc.Longitude)

	event, ok := times[name]
	if !ok || event.Value.IsZero() {
		return time.Time{}, ErrNoEvent
	}
	// polar conditions surface as NaN julian dates, far away from the requested day
	if d := event.Value.Sub(noon); d > 18*time.Hour || d < -18*time.Hour {
		return time.Time{}, ErrNoEvent
	}
	return event.Value.Truncate(time.Second).In(date.Location()), nil
}

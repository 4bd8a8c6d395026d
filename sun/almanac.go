package sun

import (
	"log"
	"math"
	"time"
)

// Almanac implements the sunrise/sunset algorithm published in the Almanac
// for Computers (1990), Nautical Almanac Office, US Naval Observatory.
type Almanac struct {
	logger *log.Logger
}

// NewAlmanac creates an almanac calculator. When logger is not nil every
// computation is traced with its intermediate values.
func NewAlmanac(logger *log.Logger) *Almanac {
	return &Almanac{logger: logger}
}

// Name returns the strategy name
func (a *Almanac) Name() string {
	return StrategyAlmanac
}

// Compute returns the instant the sun crosses zenith on date's calendar day.
func (a *Almanac) Compute(date time.Time, loc Location, rising bool, zenith Zenith) (time.Time, error) {
	n := float64(date.YearDay())
	lngHour := loc.Longitude / 15

	// approximate time of the event
	approx := 18.0
	if rising {
		approx = 6.0
	}
	t := n + (approx-lngHour)/24

	// mean anomaly and true longitude
	m := 0.9856*t - 3.289
	l := normalize(m+1.916*sinDeg(m)+0.020*sinDeg(2*m)+282.634, 360)

	// right ascension, moved into the same quadrant as l and converted to hours
	ra := normalize(atanDeg(0.91764*tanDeg(l)), 360)
	ra += math.Floor(l/90)*90 - math.Floor(ra/90)*90
	ra /= 15

	sinDec := 0.39782 * sinDeg(l)
	cosDec := math.Cos(math.Asin(sinDec))

	cosH := (cosDeg(float64(zenith)) - sinDec*sinDeg(loc.Latitude)) / (cosDec * cosDeg(loc.Latitude))
	if math.IsNaN(cosH) || cosH > 1 || cosH < -1 {
		return time.Time{}, ErrNoEvent
	}

	halfArc := acosDeg(cosH) / 15
	h := halfArc
	if rising {
		h = 24 - halfArc
	}

	// local mean time of the event and of the sun's transit
	localMean := h + ra - 0.06571*t - 6.622
	transit := normalize(ra-0.06571*t-6.622, 24)

	// The sign of localMean - lngHour drifts through a full day over the year
	// with the 0.06571*t term, so the day is taken from the transit instead.
	offset := transit + halfArc
	if rising {
		offset = transit - halfArc
	}
	ut := offset - lngHour

	if a.logger != nil {
		a.logger.Printf("isSunrise: %v, H: %.6f, T: %.6f, UT: %.6f, day offset: %.0f",
			rising, h, localMean, normalize(ut, 24), math.Floor(ut/24))
	}

	return fromDayHours(date, ut), nil
}

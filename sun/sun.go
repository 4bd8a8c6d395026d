// Package sun computes sunrise, sunset and twilight times for a location.
//
// Four strategies are available behind the Calculator interface so their
// results can be compared against each other:
//
//   - almanac: the Almanac for Computers (1990) sunrise/sunset algorithm
//   - noaa: the NOAA general solar position approximation
//   - suncalc: github.com/sixdouglas/suncalc
//   - sunrise-equation: github.com/nathan-osman/go-sunrise
//
// All calculators take the calendar day from the year, month and day of the
// date argument and return an instant expressed in the date's location.
package sun

import (
	"errors"
	"fmt"
	"log"
	"math"
	"time"
)

// Strategy names accepted by NewCalculator
const (
	StrategyAlmanac         = "almanac"
	StrategyNOAA            = "noaa"
	StrategySunCalc         = "suncalc"
	StrategySunriseEquation = "sunrise-equation"
)

var (
	// ErrNoEvent is returned when the sun never crosses the requested zenith
	// on the given date and latitude (polar day or polar night).
	ErrNoEvent = errors.New("sun does not cross the requested zenith on this date")

	// ErrUnsupportedZenith is returned by strategies limited to a fixed set of zeniths.
	ErrUnsupportedZenith = errors.New("zenith not supported by this strategy")

	// ErrUnknownStrategy is returned by NewCalculator for an unknown name.
	ErrUnknownStrategy = errors.New("unknown solar strategy")
)

// Zenith is the angle in degrees between the vertical and the sun's centre
// at which an event is defined.
type Zenith float64

const (
	ZenithOfficial      Zenith = 90.8333 // true sunrise/sunset
	ZenithCivil         Zenith = 94      // twilight boundary keeping a light margin
	ZenithCivilTwilight Zenith = 96      // astronomical definition of civil twilight
	ZenithNautical      Zenith = 102
	ZenithAstronomical  Zenith = 108
)

// Elevation returns the solar elevation angle matching the zenith.
func (z Zenith) Elevation() float64 {
	return 90 - float64(z)
}

// Location is a point on Earth in decimal degrees, positive north and east.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate ranges.
func (l Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude must be between -90 and 90, got: %f", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude must be between -180 and 180, got: %f", l.Longitude)
	}
	return nil
}

// Calculator computes the instant the sun crosses a zenith on a given day.
// Compute returns ErrNoEvent when the crossing does not happen.
type Calculator interface {
	Name() string
	Compute(date time.Time, loc Location, rising bool, zenith Zenith) (time.Time, error)
}

// Supports reports whether calc can compute events for zenith. Strategies
// limited to a fixed set of zeniths implement SupportsZenith.
func Supports(calc Calculator, zenith Zenith) bool {
	if l, ok := calc.(interface{ SupportsZenith(Zenith) bool }); ok {
		return l.SupportsZenith(zenith)
	}
	return true
}

// Strategies returns the names of all available strategies.
func Strategies() []string {
	return []string{StrategyAlmanac, StrategyNOAA, StrategySunCalc, StrategySunriseEquation}
}

// NewCalculator returns the calculator registered under name. The logger is
// only used by the almanac strategy for its diagnostic trace and may be nil.
func NewCalculator(name string, logger *log.Logger) (Calculator, error) {
	switch name {
	case StrategyAlmanac:
		return NewAlmanac(logger), nil
	case StrategyNOAA:
		return NOAA{}, nil
	case StrategySunCalc:
		return SunCalc{}, nil
	case StrategySunriseEquation:
		return SunriseEquation{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

func sinDeg(x float64) float64  { return math.Sin(x * degToRad) }
func cosDeg(x float64) float64  { return math.Cos(x * degToRad) }
func tanDeg(x float64) float64  { return math.Tan(x * degToRad) }
func acosDeg(x float64) float64 { return math.Acos(x) * radToDeg }
func atanDeg(x float64) float64 { return math.Atan(x) * radToDeg }

// normalize reduces x into [0, period).
func normalize(x, period float64) float64 {
	x = math.Mod(x, period)
	if x < 0 {
		x += period
	}
	return x
}

// dayStart returns midnight UTC of the date's calendar day.
func dayStart(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fromDayHours converts an unreduced UTC offset in hours from the start of
// the date's calendar day into an instant in the date's location. The day is
// decided before the clock is reduced: offsets of 24h or more land on the
// following day, negative offsets on the previous one.
func fromDayHours(date time.Time, hours float64) time.Time {
	shift := math.Floor(hours / 24)
	clock := hours - 24*shift
	t := dayStart(date).AddDate(0, 0, int(shift)).Add(time.Duration(clock * float64(time.Hour)))
	return t.Truncate(time.Second).In(date.Location())
}

func daysInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}

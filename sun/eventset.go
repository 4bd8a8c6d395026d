package sun

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrIncompleteEventSet is returned when one of the events of a day does not
// occur. The whole set is unusable and the cycle must be skipped.
var ErrIncompleteEventSet = errors.New("incomplete event set")

// Zeniths holds the two thresholds an event set is built from.
type Zeniths struct {
	Official Zenith `json:"official"`
	Civil    Zenith `json:"civil"`
}

// DefaultZeniths returns the official sunrise/sunset zenith and the 94° civil margin.
func DefaultZeniths() Zeniths {
	return Zeniths{Official: ZenithOfficial, Civil: ZenithCivil}
}

// Daylight holds sunrise and sunset for one calendar day.
type Daylight struct {
	Strategy string    `json:"strategy"`
	Date     time.Time `json:"date"`
	Sunrise  time.Time `json:"sunrise"`
	Sunset   time.Time `json:"sunset"`
}

// EventSet holds the four events the lighting policies work with, all for
// the same calendar day and location.
type EventSet struct {
	Daylight
	CivilDawn time.Time `json:"civil_dawn"`
	CivilDusk time.Time `json:"civil_dusk"`

	// DuskReanchored reports that civil dusk fell on another calendar day
	// and was moved onto Date keeping its clock time.
	DuskReanchored bool `json:"dusk_reanchored"`
}

// EventMinutes are the events as minutes after local midnight.
type EventMinutes struct {
	Sunrise   int `json:"sunrise"`
	Sunset    int `json:"sunset"`
	CivilDawn int `json:"civil_dawn"`
	CivilDusk int `json:"civil_dusk"`
}

// BuildDaylight computes sunrise and sunset for now's calendar day.
func BuildDaylight(calc Calculator, now time.Time, loc Location, zenith Zenith) (*Daylight, error) {
	events, missing, err := computePair(calc, now, loc, zenith, "sunrise", "sunset")
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, incomplete(missing)
	}
	return newDaylight(calc, now, events), nil
}

// BuildEventSet computes sunrise, sunset, civil dawn and civil dusk for now's
// calendar day. Either all four events exist or an error wrapping
// ErrIncompleteEventSet and ErrNoEvent is returned.
//
// When civil dusk lands on another calendar day than now it is moved back
// onto now's date with the same clock time. This keeps a dusk computed just
// past midnight comparable with today's times; it is a heuristic, not a
// timezone correction.
func BuildEventSet(calc Calculator, now time.Time, loc Location, zeniths Zeniths) (*EventSet, error) {
	official, missing, err := computePair(calc, now, loc, zeniths.Official, "sunrise", "sunset")
	if err != nil {
		return nil, err
	}
	civil, civilMissing, err := computePair(calc, now, loc, zeniths.Civil, "civil dawn", "civil dusk")
	if err != nil {
		return nil, err
	}
	if missing = append(missing, civilMissing...); len(missing) > 0 {
		return nil, incomplete(missing)
	}

	set := &EventSet{
		Daylight:  *newDaylight(calc, now, official),
		CivilDawn: civil[0],
		CivilDusk: civil[1],
	}

	ny, nm, nd := now.Date()
	if dy, dm, dd := set.CivilDusk.Date(); dy != ny || dm != nm || dd != nd {
		c := set.CivilDusk
		set.CivilDusk = time.Date(ny, nm, nd, c.Hour(), c.Minute(), c.Second(), c.Nanosecond(), now.Location())
		set.DuskReanchored = true
	}

	return set, nil
}

// Minutes returns every event as a minute of the day, rounded to the nearest minute.
func (e *EventSet) Minutes() EventMinutes {
	return EventMinutes{
		Sunrise:   minuteOfDay(e.Sunrise),
		Sunset:    minuteOfDay(e.Sunset),
		CivilDawn: minuteOfDay(e.CivilDawn),
		CivilDusk: minuteOfDay(e.CivilDusk),
	}
}

// SunriseMinute returns sunrise as a minute of the day.
func (d *Daylight) SunriseMinute() int {
	return minuteOfDay(d.Sunrise)
}

// SunsetMinute returns sunset as a minute of the day.
func (d *Daylight) SunsetMinute() int {
	return minuteOfDay(d.Sunset)
}

func minuteOfDay(t time.Time) int {
	r := t.Round(time.Minute)
	// 23:59:40 rounds into the next day
	if r.Day() != t.Day() {
		return 24*60 - 1
	}
	return r.Hour()*60 + r.Minute()
}

// computePair computes the rising and setting event for zenith. Events the
// sun does not reach are returned by name in missing; any other failure
// aborts.
func computePair(calc Calculator, now time.Time, loc Location, zenith Zenith, rise, set string) (events [2]time.Time, missing []string, err error) {
	for i, rising := range []bool{true, false} {
		t, err := calc.Compute(now, loc, rising, zenith)
		switch {
		case errors.Is(err, ErrNoEvent):
			missing = append(missing, eventName(rising, rise, set))
		case err != nil:
			return events, nil, fmt.Errorf("failed to compute %s: %w", eventName(rising, rise, set), err)
		}
		events[i] = t
	}
	return events, missing, nil
}

func newDaylight(calc Calculator, now time.Time, events [2]time.Time) *Daylight {
	return &Daylight{
		Strategy: calc.Name(),
		Date:     midnight(now),
		Sunrise:  events[0],
		Sunset:   events[1],
	}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func eventName(rising bool, rise, set string) string {
	if rising {
		return rise
	}
	return set
}

func incomplete(missing []string) error {
	return fmt.Errorf("%w: no %s (%w)", ErrIncompleteEventSet, strings.Join(missing, ", "), ErrNoEvent)
}

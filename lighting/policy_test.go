package lighting

import (
	"testing"
	"time"

	"github.com/devskill-org/dusk-lights/sun"
)

var lisbon = sun.Location{Latitude: 38.7223, Longitude: -9.1393}

func eventsOn(date time.Time) *sun.EventSet {
	y, m, d := date.Date()
	at := func(hh, mm int) time.Time { return time.Date(y, m, d, hh, mm, 0, 0, date.Location()) }
	return &sun.EventSet{
		Daylight: sun.Daylight{
			Date:    at(0, 0),
			Sunrise: at(6, 39),
			Sunset:  at(18, 49),
		},
		CivilDawn: at(6, 23),
		CivilDusk: at(19, 5),
	}
}

func TestDirectPolicy_Decide(t *testing.T) {
	day := time.Date(2026, time.March, 21, 0, 0, 0, 0, time.UTC)
	events := eventsOn(day)

	tests := []struct {
		name string
		now  time.Time
		want Action
	}{
		{"before dawn", day.Add(3 * time.Hour), ActionOn},
		{"just before dawn", events.CivilDawn.Add(-time.Second), ActionOn},
		{"at dawn", events.CivilDawn, ActionNone},
		{"just after dawn", events.CivilDawn.Add(time.Second), ActionOff},
		{"midday", day.Add(12 * time.Hour), ActionOff},
		{"between sunset and dusk", events.Sunset.Add(5 * time.Minute), ActionOff},
		{"at dusk", events.CivilDusk, ActionNone},
		{"just after dusk", events.CivilDusk.Add(time.Second), ActionOn},
		{"late evening", day.Add(23*time.Hour + 59*time.Minute), ActionOn},
	}

	var p DirectPolicy
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Decide(tt.now, events); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestDirectPolicy_Idempotent(t *testing.T) {
	day := time.Date(2026, time.March, 21, 0, 0, 0, 0, time.UTC)
	events := eventsOn(day)

	var p DirectPolicy
	for _, now := range []time.Time{day.Add(2 * time.Hour), day.Add(13 * time.Hour), day.Add(21 * time.Hour)} {
		first := p.Decide(now, events)
		second := p.Decide(now, events)
		if first != second {
			t.Errorf("decision at %v changed from %v to %v", now, first, second)
		}
	}
}

func TestDirectPolicy_NearUTCMidnight(t *testing.T) {
	calc := sun.NewAlmanac(nil)
	tests := []struct {
		name string
		now  time.Time
		want Action
	}{
		{"new year's eve afternoon", time.Date(2026, time.December, 31, 12, 0, 0, 0, time.UTC), ActionOff},
		{"seconds before midnight", time.Date(2026, time.December, 31, 23, 59, 30, 0, time.UTC), ActionOn},
		{"seconds after midnight", time.Date(2027, time.January, 1, 0, 0, 30, 0, time.UTC), ActionOn},
		{"new year's morning", time.Date(2027, time.January, 1, 9, 0, 0, 0, time.UTC), ActionOff},
	}

	var p DirectPolicy
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := sun.BuildEventSet(calc, tt.now, lisbon, sun.DefaultZeniths())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := p.Decide(tt.now, events); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

// A host clock far east of the location moves dusk past local midnight.
// Re-anchoring puts it early on the same date, so the afternoon reads as
// "after dusk". This pins the known limitation of the heuristic.
func TestDirectPolicy_ReanchoredDuskFarFromLocation(t *testing.T) {
	zone := time.FixedZone("UTC+7", 7*3600)
	now := time.Date(2026, time.December, 31, 16, 0, 0, 0, zone)

	events, err := sun.BuildEventSet(sun.NewAlmanac(nil), now, lisbon, sun.DefaultZeniths())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !events.DuskReanchored {
		t.Fatal("expected dusk to be re-anchored")
	}

	var p DirectPolicy
	if got := p.Decide(now, events); got != ActionOn {
		t.Errorf("expected %v, got %v", ActionOn, got)
	}
}

func daylightOn(date time.Time, sunrise, sunset string) *sun.Daylight {
	y, m, d := date.Date()
	parse := func(s string) time.Time {
		c, err := time.Parse("15:04", s)
		if err != nil {
			panic(err)
		}
		return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, date.Location())
	}
	return &sun.Daylight{Date: time.Date(y, m, d, 0, 0, 0, 0, date.Location()), Sunrise: parse(sunrise), Sunset: parse(sunset)}
}

func TestFailSafePolicy_Targets(t *testing.T) {
	day := time.Date(2026, time.March, 21, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name                string
		sunrise, sunset     string
		onOffset, offOffset int
		wantOn, wantOff     int
	}{
		{"default offsets", "07:10", "18:42", 15, -15, 18*60 + 57, 6*60 + 55},
		{"zero offsets", "07:10", "18:42", 0, 0, 18*60 + 42, 7*60 + 10},
		{"on target past midnight", "05:00", "23:50", 15, 0, 5, 5 * 60},
		{"off target before midnight", "00:05", "20:00", 0, -15, 20 * 60, 23*60 + 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewFailSafePolicy(tt.onOffset, tt.offOffset)
			on, off := p.Targets(daylightOn(day, tt.sunrise, tt.sunset))
			if on != tt.wantOn || off != tt.wantOff {
				t.Errorf("expected targets (%d, %d), got (%d, %d)", tt.wantOn, tt.wantOff, on, off)
			}
		})
	}
}

func TestFailSafePolicy_FiresOncePerDayPerEdge(t *testing.T) {
	p := NewFailSafePolicy(15, -15)
	start := time.Date(2026, time.March, 21, 0, 0, 30, 0, time.UTC)

	fired := map[bool][]time.Time{}
	for tick := start; tick.Before(start.Add(48 * time.Hour)); tick = tick.Add(15 * time.Second) {
		d := daylightOn(tick, "07:10", "18:42")
		want, fire := p.Decide(tick, d)
		if !fire {
			continue
		}
		fired[want] = append(fired[want], tick)
		p.Done(tick, want)
	}

	if len(fired[true]) != 2 || len(fired[false]) != 2 {
		t.Fatalf("expected one on and one off per day, got on=%v off=%v", fired[true], fired[false])
	}
	for _, at := range fired[true] {
		if at.Hour() != 18 || at.Minute() != 57 {
			t.Errorf("expected on edge at 18:57, got %s", at.Format(time.TimeOnly))
		}
	}
	for _, at := range fired[false] {
		if at.Hour() != 6 || at.Minute() != 55 {
			t.Errorf("expected off edge at 06:55, got %s", at.Format(time.TimeOnly))
		}
	}
}

func TestFailSafePolicy_EdgeStaysOpenUntilDone(t *testing.T) {
	p := NewFailSafePolicy(15, -15)
	day := time.Date(2026, time.March, 21, 0, 0, 0, 0, time.UTC)
	d := daylightOn(day, "07:10", "18:42")

	first := day.Add(18*time.Hour + 57*time.Minute)
	if want, fire := p.Decide(first, d); !fire || !want {
		t.Fatalf("expected on edge to fire, got want=%v fire=%v", want, fire)
	}

	retry := first.Add(30 * time.Second)
	if _, fire := p.Decide(retry, d); !fire {
		t.Fatal("expected edge to fire again before it is marked done")
	}

	p.Done(retry, true)
	if _, fire := p.Decide(retry.Add(15*time.Second), d); fire {
		t.Error("expected no fire after the edge was marked done")
	}
	if _, fire := p.Decide(first.Add(time.Minute), d); fire {
		t.Error("expected no fire outside the target minute")
	}
}

func TestFailSafePolicy_CoincidingTargets(t *testing.T) {
	// sunset 18:00 + 60 and sunrise 07:00 + 720 both land on 19:00
	p := NewFailSafePolicy(60, 12*60)
	day := time.Date(2026, time.March, 21, 0, 0, 0, 0, time.UTC)
	d := daylightOn(day, "07:00", "18:00")

	if on, off := p.Targets(d); on != off {
		t.Fatalf("expected coinciding targets, got (%d, %d)", on, off)
	}

	at := day.Add(19*time.Hour + 30*time.Second)
	want, fire := p.Decide(at, d)
	if !fire || !want {
		t.Fatalf("expected the on edge, got want=%v fire=%v", want, fire)
	}
	p.Done(at, want)

	if _, fire := p.Decide(at.Add(15*time.Second), d); fire {
		t.Error("expected no off edge in the same minute")
	}
}

func TestActionUnmarshalText(t *testing.T) {
	var a Action
	if err := a.UnmarshalText([]byte("off")); err != nil || a != ActionOff {
		t.Errorf("expected off, got %v (err %v)", a, err)
	}
	if err := a.UnmarshalText([]byte("dim")); err == nil {
		t.Error("expected error for unknown action")
	}
}

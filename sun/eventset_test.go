package sun

import (
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeCalculator struct {
	events map[Zenith][2]time.Time
	err    error
	calls  int
}

func (f *fakeCalculator) Name() string { return "fake" }

func (f *fakeCalculator) Compute(_ time.Time, _ Location, rising bool, zenith Zenith) (time.Time, error) {
	f.calls++
	if f.err != nil {
		return time.Time{}, f.err
	}
	e, ok := f.events[zenith]
	if !ok {
		return time.Time{}, ErrNoEvent
	}
	if rising {
		return e[0], nil
	}
	return e[1], nil
}

func TestBuildEventSet_Lisbon(t *testing.T) {
	now := utc(2026, time.March, 21, 12, 0, 0)

	set, err := BuildEventSet(NewAlmanac(nil), now, lisbon, DefaultZeniths())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if set.Strategy != StrategyAlmanac {
		t.Errorf("expected strategy %q, got %q", StrategyAlmanac, set.Strategy)
	}
	if set.DuskReanchored {
		t.Error("dusk should not be re-anchored in UTC")
	}
	if !set.Date.Equal(utc(2026, time.March, 21, 0, 0, 0)) {
		t.Errorf("expected date 2026-03-21, got %v", set.Date)
	}
	if !(set.CivilDawn.Before(set.Sunrise) && set.Sunrise.Before(set.Sunset) && set.Sunset.Before(set.CivilDusk)) {
		t.Errorf("expected dawn < sunrise < sunset < dusk, got %v %v %v %v",
			set.CivilDawn, set.Sunrise, set.Sunset, set.CivilDusk)
	}

	want := EventMinutes{Sunrise: 399, Sunset: 1129, CivilDawn: 383, CivilDusk: 1145}
	got := set.Minutes()
	for _, c := range []struct {
		name      string
		got, want int
	}{
		{"sunrise", got.Sunrise, want.Sunrise},
		{"sunset", got.Sunset, want.Sunset},
		{"civil dawn", got.CivilDawn, want.CivilDawn},
		{"civil dusk", got.CivilDusk, want.CivilDusk},
	} {
		if d := c.got - c.want; d < -1 || d > 1 {
			t.Errorf("%s: expected minute %d (±1), got %d", c.name, c.want, c.got)
		}
	}
}

func TestBuildEventSet_ReanchorsDusk(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		dusk time.Time
	}{
		{
			name: "dusk past local midnight",
			now:  time.Date(2026, time.June, 21, 10, 0, 0, 0, time.FixedZone("UTC+6", 6*3600)),
			dusk: time.Date(2026, time.June, 21, 2, 24, 0, 0, time.FixedZone("UTC+6", 6*3600)),
		},
		{
			name: "dusk past the end of the year",
			now:  time.Date(2026, time.December, 31, 12, 0, 0, 0, time.FixedZone("UTC+7", 7*3600)),
			dusk: time.Date(2026, time.December, 31, 0, 42, 58, 0, time.FixedZone("UTC+7", 7*3600)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := BuildEventSet(NewAlmanac(nil), tt.now, lisbon, DefaultZeniths())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !set.DuskReanchored {
				t.Fatal("expected dusk to be re-anchored")
			}
			y, m, d := set.CivilDusk.Date()
			ny, nm, nd := tt.now.Date()
			if y != ny || m != nm || d != nd {
				t.Errorf("expected dusk on %s, got %v", tt.now.Format(time.DateOnly), set.CivilDusk)
			}
			assertNear(t, "civil dusk", set.CivilDusk, tt.dusk, time.Minute)
		})
	}
}

func TestBuildEventSet_KeepsDuskClockTime(t *testing.T) {
	zone := time.FixedZone("test", 0)
	now := time.Date(2026, time.May, 10, 12, 0, 0, 0, zone)
	calc := &fakeCalculator{events: map[Zenith][2]time.Time{
		ZenithOfficial: {
			time.Date(2026, time.May, 10, 6, 0, 0, 0, zone),
			time.Date(2026, time.May, 10, 20, 0, 0, 0, zone),
		},
		ZenithCivil: {
			time.Date(2026, time.May, 10, 5, 30, 0, 0, zone),
			time.Date(2026, time.May, 11, 0, 15, 20, 250, zone),
		},
	}}

	set, err := BuildEventSet(calc, now, lisbon, DefaultZeniths())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2026, time.May, 10, 0, 15, 20, 250, zone)
	if !set.CivilDusk.Equal(want) {
		t.Errorf("expected dusk %v, got %v", want, set.CivilDusk)
	}
	if got := set.Minutes().CivilDusk; got != 15 {
		t.Errorf("expected dusk minute 15, got %d", got)
	}
}

func TestBuildEventSet_Incomplete(t *testing.T) {
	tests := []struct {
		name        string
		lat         float64
		date        time.Time
		wantMissing []string
		wantPresent []string
	}{
		{
			name:        "midnight sun",
			lat:         75,
			date:        utc(2026, time.June, 21, 12, 0, 0),
			wantMissing: []string{"sunrise", "sunset", "civil dawn", "civil dusk"},
		},
		{
			name:        "polar night with civil twilight",
			lat:         70,
			date:        utc(2026, time.December, 21, 12, 0, 0),
			wantMissing: []string{"sunrise", "sunset"},
			wantPresent: []string{"civil"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := BuildEventSet(NOAA{}, tt.date, Location{Latitude: tt.lat, Longitude: 10}, DefaultZeniths())
			if set != nil {
				t.Errorf("expected no event set, got %+v", set)
			}
			if !errors.Is(err, ErrIncompleteEventSet) {
				t.Fatalf("expected ErrIncompleteEventSet, got %v", err)
			}
			if !errors.Is(err, ErrNoEvent) {
				t.Errorf("expected error to wrap ErrNoEvent, got %v", err)
			}
			for _, name := range tt.wantMissing {
				if !strings.Contains(err.Error(), name) {
					t.Errorf("expected error to name %q, got %q", name, err)
				}
			}
			for _, name := range tt.wantPresent {
				if strings.Contains(err.Error(), name) {
					t.Errorf("expected error not to name %q, got %q", name, err)
				}
			}
		})
	}
}

func TestBuildEventSet_ComputesEachEventOnce(t *testing.T) {
	day := utc(2026, time.June, 21, 0, 0, 0)
	tests := []struct {
		name   string
		events map[Zenith][2]time.Time
	}{
		{"all events", map[Zenith][2]time.Time{
			ZenithOfficial: {day.Add(5 * time.Hour), day.Add(20 * time.Hour)},
			ZenithCivil:    {day.Add(4 * time.Hour), day.Add(21 * time.Hour)},
		}},
		{"no official events", map[Zenith][2]time.Time{
			ZenithCivil: {day.Add(4 * time.Hour), day.Add(21 * time.Hour)},
		}},
		{"no events", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc := &fakeCalculator{events: tt.events}
			_, _ = BuildEventSet(calc, day.Add(12*time.Hour), lisbon, DefaultZeniths())
			if calc.calls != 4 {
				t.Errorf("expected 4 computations, got %d", calc.calls)
			}
		})
	}
}

func TestBuildEventSet_CalculatorError(t *testing.T) {
	boom := errors.New("boom")
	_, err := BuildEventSet(&fakeCalculator{err: boom}, utc(2026, time.March, 21, 0, 0, 0), lisbon, DefaultZeniths())
	if !errors.Is(err, boom) {
		t.Errorf("expected calculator error, got %v", err)
	}
	if errors.Is(err, ErrIncompleteEventSet) {
		t.Error("calculator failures must not look like missing events")
	}
}

func TestBuildDaylight(t *testing.T) {
	now := utc(2026, time.March, 21, 15, 0, 0)

	d, err := BuildDaylight(NOAA{}, now, lisbon, ZenithOfficial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertNear(t, "sunrise", d.Sunrise, utc(2026, time.March, 21, 6, 40, 21), time.Minute)
	assertNear(t, "sunset", d.Sunset, utc(2026, time.March, 21, 18, 48, 28), time.Minute)

	if got := d.SunsetMinute(); got < 1127 || got > 1130 {
		t.Errorf("expected sunset minute around 1128, got %d", got)
	}

	if _, err := BuildDaylight(NOAA{}, utc(2026, time.June, 21, 0, 0, 0), Location{Latitude: 80}, ZenithOfficial); !errors.Is(err, ErrIncompleteEventSet) {
		t.Errorf("expected ErrIncompleteEventSet, got %v", err)
	}
}

func TestMinuteOfDay(t *testing.T) {
	tests := []struct {
		in   time.Time
		want int
	}{
		{utc(2026, time.March, 21, 0, 0, 0), 0},
		{utc(2026, time.March, 21, 0, 0, 29), 0},
		{utc(2026, time.March, 21, 0, 0, 30), 1},
		{utc(2026, time.March, 21, 18, 42, 10), 1122},
		{utc(2026, time.March, 21, 23, 59, 40), 1439},
	}

	for _, tt := range tests {
		if got := minuteOfDay(tt.in); got != tt.want {
			t.Errorf("minuteOfDay(%s) = %d, want %d", tt.in.Format(time.TimeOnly), got, tt.want)
		}
	}
}

package sun

import (
	"errors"
	"testing"
	"time"
)

func TestNOAA_Lisbon(t *testing.T) {
	tests := []struct {
		name   string
		date   time.Time
		rising bool
		zenith Zenith
		want   time.Time
	}{
		{"equinox sunrise", utc(2026, time.March, 21, 0, 0, 0), true, ZenithOfficial, utc(2026, time.March, 21, 6, 40, 21)},
		{"equinox sunset", utc(2026, time.March, 21, 0, 0, 0), false, ZenithOfficial, utc(2026, time.March, 21, 18, 48, 28)},
		{"equinox civil dawn", utc(2026, time.March, 21, 0, 0, 0), true, ZenithCivil, utc(2026, time.March, 21, 6, 24, 6)},
		{"equinox civil dusk", utc(2026, time.March, 21, 0, 0, 0), false, ZenithCivil, utc(2026, time.March, 21, 19, 4, 43)},
		{"new year's eve sunrise", utc(2026, time.December, 31, 0, 0, 0), true, ZenithOfficial, utc(2026, time.December, 31, 7, 54, 12)},
		{"new year's eve sunset", utc(2026, time.December, 31, 0, 0, 0), false, ZenithOfficial, utc(2026, time.December, 31, 17, 23, 49)},
		{"new year's eve civil dusk", utc(2026, time.December, 31, 0, 0, 0), false, ZenithCivil, utc(2026, time.December, 31, 17, 42, 13)},
		{"custom zenith in the evening", utc(2026, time.June, 21, 0, 0, 0), false, 100, utc(2026, time.June, 21, 21, 2, 38)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NOAA{}.Compute(tt.date, lisbon, tt.rising, tt.zenith)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertNear(t, tt.name, got, tt.want, time.Minute)
		})
	}
}

func TestNOAA_DayRollover(t *testing.T) {
	date := utc(2026, time.June, 1, 0, 0, 0)

	sunset, err := NOAA{}.Compute(date, Location{Latitude: 20, Longitude: -150}, false, ZenithOfficial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertNear(t, "sunset", sunset, utc(2026, time.June, 2, 4, 35, 2), time.Minute)

	sunrise, err := NOAA{}.Compute(date, Location{Latitude: 0, Longitude: 150}, true, ZenithOfficial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertNear(t, "sunrise", sunrise, utc(2026, time.May, 31, 19, 53, 50), time.Minute)
}

func TestNOAA_PolarConditions(t *testing.T) {
	for _, lat := range []float64{70, 75, 80, -70, -75, -80} {
		date := utc(2026, time.June, 21, 0, 0, 0)
		for _, rising := range []bool{true, false} {
			if _, err := (NOAA{}).Compute(date, Location{Latitude: lat, Longitude: 10}, rising, ZenithOfficial); !errors.Is(err, ErrNoEvent) {
				t.Errorf("lat %v rising=%v: expected ErrNoEvent, got %v", lat, rising, err)
			}
		}
	}
}

func TestNOAA_EventOrdering(t *testing.T) {
	date := utc(2026, time.September, 1, 0, 0, 0)
	n := NOAA{}

	var times []time.Time
	for _, e := range []struct {
		rising bool
		zenith Zenith
	}{
		{true, ZenithAstronomical},
		{true, ZenithNautical},
		{true, ZenithCivilTwilight},
		{true, ZenithOfficial},
		{false, ZenithOfficial},
		{false, ZenithCivilTwilight},
		{false, ZenithNautical},
		{false, ZenithAstronomical},
	} {
		got, err := n.Compute(date, lisbon, e.rising, e.zenith)
		if err != nil {
			t.Fatalf("zenith %v rising=%v: unexpected error: %v", e.zenith, e.rising, err)
		}
		times = append(times, got)
	}

	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			t.Errorf("expected event %d (%v) after event %d (%v)", i, times[i], i-1, times[i-1])
		}
	}
}

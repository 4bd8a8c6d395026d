// Package main prints today's solar events for a location with every strategy.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/devskill-org/dusk-lights/sun"
)

func main() {
	lat := flag.Float64("lat", 38.7223, "latitude in decimal degrees")
	lon := flag.Float64("lon", -9.1393, "longitude in decimal degrees")
	date := flag.String("date", "", "date as YYYY-MM-DD (default today)")
	flag.Parse()

	now := time.Now()
	if *date != "" {
		d, err := time.ParseInLocation(time.DateOnly, *date, time.Local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid date: %v\n", err)
			os.Exit(1)
		}
		now = d.Add(12 * time.Hour)
	}

	loc := sun.Location{Latitude: *lat, Longitude: *lon}
	if err := loc.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid location: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Solar events for %.4f, %.4f on %s\n\n", loc.Latitude, loc.Longitude, now.Format(time.DateOnly))
	fmt.Printf("%-18s %-10s %-10s %-10s %-10s\n", "strategy", "dawn", "sunrise", "sunset", "dusk")

	for _, name := range sun.Strategies() {
		calc, err := sun.NewCalculator(name, nil)
		if err != nil {
			fmt.Printf("%-18s %v\n", name, err)
			continue
		}

		zeniths := sun.DefaultZeniths()
		if name == sun.StrategySunCalc {
			zeniths.Civil = sun.ZenithCivilTwilight
		}

		set, err := sun.BuildEventSet(calc, now, loc, zeniths)
		switch {
		case errors.Is(err, sun.ErrIncompleteEventSet):
			fmt.Printf("%-18s %v\n", name, err)
			continue
		case err != nil:
			fmt.Printf("%-18s error: %v\n", name, err)
			continue
		}

		dusk := set.CivilDusk.Format(time.TimeOnly)
		if set.DuskReanchored {
			dusk += "*"
		}
		fmt.Printf("%-18s %-10s %-10s %-10s %-10s\n", name,
			set.CivilDawn.Format(time.TimeOnly),
			set.Sunrise.Format(time.TimeOnly),
			set.Sunset.Format(time.TimeOnly),
			dusk)
	}
}

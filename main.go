// Package main provides the dusk-lights entry point and CLI interface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devskill-org/dusk-lights/scheduler"
	"github.com/devskill-org/dusk-lights/sun"
	"github.com/devskill-org/dusk-lights/utils"
)

func main() {
	// Command line flags
	var (
		configFile = flag.String("config", "config.json", "Configuration file path")
		info       = flag.Bool("info", false, "Show today's solar events for every strategy")
		date       = flag.String("date", "", "Date for -info (YYYY-MM-DD, default today)")
		help       = flag.Bool("help", false, "Show help message")
		serverOnly = flag.Bool("serverOnly", false, "Run only web server without periodic checks")
		once       = flag.Bool("once", false, "Run every enabled policy once and exit")
	)
	flag.Parse()

	if *help {
		showHelp()
		return
	}

	config, err := scheduler.LoadConfig(*configFile)
	if err != nil {
		fmt.Println("Error loading configuration:", err)
		return
	}

	if *info {
		if err := showEvents(config, *date); err != nil {
			fmt.Println("Error:", err)
		}
		return
	}

	logger := log.New(os.Stdout, "[LIGHTS] ", log.LstdFlags)

	if *once {
		runOnce(config, logger)
		return
	}

	fmt.Printf("Starting dusk-lights with the following configuration:\n")
	fmt.Printf("  Location: %.4f, %.4f\n", config.Latitude, config.Longitude)
	fmt.Printf("  Mode: %s\n", config.Mode)
	fmt.Printf("  Strategy: %s (fail-safe: %s)\n", config.Strategy, config.FailSafeStrategy)
	fmt.Printf("  Zeniths: official %.4f, civil %.4f\n", config.OfficialZenith, config.CivilZenith)
	fmt.Printf("  Relay: %s %s\n", config.Actuator.Type, config.Actuator.Address)
	if config.RunsDirect() {
		fmt.Printf("  Direct Interval: %s\n", config.DirectInterval)
	}
	if config.RunsFailSafe() {
		fmt.Printf("  Fail-safe Interval: %s (on %+d min, off %+d min)\n",
			config.FailSafeInterval, config.OnOffsetMinutes, config.OffOffsetMinutes)
	}

	if config.DryRun {
		fmt.Printf("  Mode: DRY-RUN (relay commands will be logged only)\n")
	}
	fmt.Println()

	lightScheduler, err := scheduler.NewLightSchedulerWithHealthCheck(config, logger)
	if err != nil {
		logger.Printf("Failed to create scheduler: %v", err)
		os.Exit(1)
	}
	defer lightScheduler.Close()

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start scheduler in a goroutine
	go func() {
		if err := lightScheduler.Start(ctx, *serverOnly); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Printf("Scheduler error: %v", err)
			}
		}
	}()

	logger.Printf("Scheduler started. Press Ctrl+C to stop...")

	// Wait for shutdown signal
	<-sigChan
	logger.Printf("Shutdown signal received, stopping scheduler...")

	// Cancel context to stop scheduler
	cancel()

	lightScheduler.Stop()

	logger.Printf("Scheduler stopped successfully")
}

func runOnce(config *scheduler.Config, logger *log.Logger) {
	lightScheduler, err := scheduler.NewLightScheduler(config, logger)
	if err != nil {
		logger.Printf("Failed to create scheduler: %v", err)
		os.Exit(1)
	}

	decisions, err := lightScheduler.RunOnce(context.Background())
	if cerr := lightScheduler.Close(); cerr != nil {
		logger.Printf("Failed to close relay: %v", cerr)
	}
	for _, d := range decisions {
		status := "ok"
		if d.Error != "" {
			status = d.Error
		}
		fmt.Printf("%-9s %-16s action=%-4s commanded=%-5v %s\n", d.Policy, d.Strategy, d.Action, d.Commanded, status)
	}
	if err != nil {
		os.Exit(1)
	}
}

func showEvents(config *scheduler.Config, date string) error {
	now := time.Now()
	if date != "" {
		day, err := time.ParseInLocation(time.DateOnly, date, now.Location())
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", date, err)
		}
		now = time.Date(day.Year(), day.Month(), day.Day(), now.Hour(), now.Minute(), now.Second(), 0, now.Location())
	}

	loc := config.Location()
	zeniths := config.Zeniths()

	fmt.Printf("Solar events for %s at %.4f, %.4f (%s)\n\n", utils.FormatDate(now), loc.Latitude, loc.Longitude, now.Location())
	fmt.Printf("%-18s %-10s %-10s %-10s %-10s\n", "Strategy", "Sunrise", "Sunset", "Dawn", "Dusk")

	for _, name := range sun.Strategies() {
		calc, err := sun.NewCalculator(name, nil)
		if err != nil {
			return err
		}

		marker := ""
		if name == config.Strategy {
			marker = " (direct)"
		}
		if name == config.FailSafeStrategy {
			marker += " (fail-safe)"
		}

		events, err := sun.BuildEventSet(calc, now, loc, zeniths)
		if err != nil {
			fmt.Printf("%-18s %v%s\n", name, err, marker)
			continue
		}

		dusk := utils.FormatClock(events.CivilDusk)
		if events.DuskReanchored {
			dusk += "*"
		}
		fmt.Printf("%-18s %-10s %-10s %-10s %-10s%s\n", name,
			utils.FormatClock(events.Sunrise),
			utils.FormatClock(events.Sunset),
			utils.FormatClock(events.CivilDawn),
			dusk,
			marker,
		)
	}

	fmt.Println()
	fmt.Println("* civil dusk moved onto today's date")
	return nil
}

func showHelp() {
	fmt.Println("dusk-lights - Switch outdoor lights from computed solar events")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Computes sunrise, sunset and civil twilight for a fixed location and drives")
	fmt.Println("  a light relay from them. Two policies are available: a direct policy that")
	fmt.Println("  commands the relay on every cycle from the civil twilight window, and a")
	fmt.Println("  fail-safe policy that checks the relay once a day shortly after sunset and")
	fmt.Println("  before sunrise and only corrects it when it is in the wrong state.")
	fmt.Println()
	fmt.Println("  Key Features:")
	fmt.Println("  - Almanac, NOAA, suncalc and sunrise-equation solar strategies")
	fmt.Println("  - Shelly HTTP and Modbus TCP relays")
	fmt.Println("  - MQTT state publishing with Home Assistant discovery")
	fmt.Println("  - PostgreSQL switch log")
	fmt.Println("  - Health endpoints and live status over websocket")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  dusk-lights [OPTIONS]")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Basic usage with default settings")
	fmt.Println("  dusk-lights")
	fmt.Println()
	fmt.Println("  # Custom configuration")
	fmt.Println("  dusk-lights --config=config.json")
	fmt.Println()
	fmt.Println("  # Compare the strategies for a date")
	fmt.Println("  dusk-lights -info -date=2026-12-21")
	fmt.Println()
	fmt.Println("  # Evaluate the policies once and exit")
	fmt.Println("  dusk-lights -once")
	fmt.Println()
	fmt.Println("  # Run only web server without periodic checks")
	fmt.Println("  dusk-lights -serverOnly")
	fmt.Println()
	fmt.Println("  # Show this help")
	fmt.Println("  dusk-lights -help")
}

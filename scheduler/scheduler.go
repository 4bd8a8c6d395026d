// Package scheduler runs the lighting policies on fixed intervals and serves
// their status over HTTP.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/devskill-org/dusk-lights/lighting"
	"github.com/devskill-org/dusk-lights/mqtt"
	"github.com/devskill-org/dusk-lights/relay"
	"github.com/devskill-org/dusk-lights/sun"
	"github.com/devskill-org/dusk-lights/utils"
	_ "github.com/lib/pq"
)

// PeriodicTask represents a task that runs periodically with an optional initial delay
type PeriodicTask struct {
	name         string
	initialDelay time.Duration
	interval     time.Duration
	runFunc      func(ctx context.Context)
}

// run executes the periodic task until ctx is done or stopChan is closed.
// A cycle always completes before the next one starts; the ticker drops
// ticks that fall during a long cycle.
func (pt *PeriodicTask) run(ctx context.Context, stopChan <-chan struct{}, logger *log.Logger) {
	if pt.initialDelay > 0 {
		logger.Printf("[%s] Waiting for initial delay: %v", pt.name, pt.initialDelay)
		select {
		case <-time.After(pt.initialDelay):
			logger.Printf("[%s] Initial delay passed, running first iteration", pt.name)
			pt.runFunc(ctx)
		case <-ctx.Done():
			logger.Printf("[%s] Stopped during initial delay due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped during initial delay due to stop signal", pt.name)
			return
		}
	} else {
		logger.Printf("[%s] Running immediately (no initial delay)", pt.name)
		pt.runFunc(ctx)
	}

	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()

	logger.Printf("[%s] Started with interval: %v", pt.name, pt.interval)

	for {
		select {
		case <-ticker.C:
			pt.runFunc(ctx)
		case <-ctx.Done():
			logger.Printf("[%s] Stopped due to context cancellation", pt.name)
			return
		case <-stopChan:
			logger.Printf("[%s] Stopped due to stop signal", pt.name)
			return
		}
	}
}

// LightScheduler drives the light relay from the solar events
type LightScheduler struct {
	// Configuration
	config *Config

	// Lighting
	controller   *lighting.Controller
	relay        relay.Relay
	failSafeCalc sun.Calculator

	// State
	lastDirect   *lighting.Decision
	lastFailSafe *lighting.Decision
	lastSaved    map[string]lighting.Action
	lastFailure  map[string]string
	cycles       int
	failures     int
	isRunning    bool
	stopChan     chan struct{}
	mu           sync.RWMutex

	// Web server
	webServer *WebServer

	// Database connection
	db *sql.DB

	// MQTT state publisher
	publisher *mqtt.Publisher

	// Logging
	logger *log.Logger
}

// NewLightScheduler creates a new scheduler instance with the relay described by the config
func NewLightScheduler(config *Config, logger *log.Logger) (*LightScheduler, error) {
	return newLightScheduler(config, logger, relay.New)
}

// NewLightSchedulerWithHealthCheck creates a new scheduler instance with the web server
func NewLightSchedulerWithHealthCheck(config *Config, logger *log.Logger) (*LightScheduler, error) {
	scheduler, err := NewLightScheduler(config, logger)
	if err != nil {
		return nil, err
	}
	scheduler.webServer = NewWebServer(scheduler, config.HealthCheckPort)
	return scheduler, nil
}

func newLightScheduler(config *Config, logger *log.Logger, relayFactory func(relay.Options) (relay.Relay, error)) (*LightScheduler, error) {
	if logger == nil {
		logger = log.Default()
	}

	// the almanac trace is only wanted at debug level
	var traceLogger *log.Logger
	if config.LogLevel == "debug" {
		traceLogger = logger
	}

	direct, err := sun.NewCalculator(config.Strategy, traceLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create calculator: %w", err)
	}
	failSafe, err := sun.NewCalculator(config.FailSafeStrategy, traceLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create fail-safe calculator: %w", err)
	}

	relayOptions := config.RelayOptions()
	relayOptions.Logger = logger
	r, err := relayFactory(relayOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create relay: %w", err)
	}

	s := &LightScheduler{
		config:       config,
		relay:        r,
		failSafeCalc: failSafe,
		lastSaved:    make(map[string]lighting.Action),
		lastFailure:  make(map[string]string),
		stopChan:     make(chan struct{}),
		logger:       logger,
	}
	s.controller = lighting.NewController(config.ControllerConfig(), direct, failSafe, r, logger)
	s.controller.AddObserver(s)

	return s, nil
}

// GetConfig returns the current configuration
func (s *LightScheduler) GetConfig() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Controller returns the lighting controller
func (s *LightScheduler) Controller() *lighting.Controller {
	return s.controller
}

func (s *LightScheduler) getInitialDelay(now time.Time, delayInterval time.Duration) time.Duration {
	top := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
	delay := now.Sub(top)
	for delay > 0 {
		delay = delay - delayInterval
	}
	return -delay
}

// Start begins the scheduler's periodic tasks
func (s *LightScheduler) Start(ctx context.Context, serverOnly bool) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	config := s.GetConfig()

	if config.DryRun {
		s.logger.Printf("DRY-RUN MODE ENABLED: Relay commands will be logged only")
	}

	// Start web server if configured
	if s.webServer != nil {
		err := s.webServer.Start()
		if err != nil {
			s.logger.Printf("Failed to start web server: %v", err)
		} else {
			s.logger.Printf("Web server started on port %d", s.webServer.port)
		}
		if serverOnly {
			return err
		}
	}

	if config.PostgresConnString != "" {
		db, err := sql.Open("postgres", config.PostgresConnString)
		if err != nil {
			s.logger.Printf("Switch log: failed to connect to DB: %v", err)
		} else if err := ensureSchema(ctx, db); err != nil {
			s.logger.Printf("Switch log: failed to prepare schema: %v", err)
			db.Close()
		} else {
			s.mu.Lock()
			s.db = db
			s.mu.Unlock()
		}
	}

	// the lights must not wait for the broker
	go s.connectPublisher(config.MQTT)

	tasks := s.tasks(time.Now())
	if len(tasks) == 0 {
		s.logger.Printf("No lighting policy enabled for mode %q", config.Mode)
	}

	// Start each periodic task in its own goroutine
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.run(ctx, s.stopChan, s.logger)
		}()
	}

	wg.Wait()

	s.logger.Printf("All periodic tasks stopped")
	s.stop()
	return nil
}

// connectPublisher attaches the MQTT publisher once it is created. A
// publisher that arrives after Stop is closed right away.
func (s *LightScheduler) connectPublisher(cfg mqtt.PublisherConfig) {
	publisher, err := mqtt.NewPublisher(cfg, s.logger)
	if err != nil {
		s.logger.Printf("MQTT disabled: %v", err)
		return
	}

	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		publisher.Close()
		return
	}
	s.publisher = publisher
	s.mu.Unlock()
}

// tasks builds the periodic tasks for the configured mode. The fail-safe
// task ticks in the middle of its interval so clock jitter cannot move a
// tick across a minute boundary.
func (s *LightScheduler) tasks(now time.Time) []PeriodicTask {
	config := s.GetConfig()

	var tasks []PeriodicTask
	if config.RunsDirect() {
		tasks = append(tasks, PeriodicTask{
			name:         "DirectPolicy",
			initialDelay: s.getInitialDelay(now, config.DirectInterval),
			interval:     config.DirectInterval,
			runFunc: func(ctx context.Context) {
				_, _ = s.controller.RunDirect(ctx)
			},
		})
	}
	if config.RunsFailSafe() {
		delay := s.getInitialDelay(now, config.FailSafeInterval) + config.FailSafeInterval/2
		if delay >= config.FailSafeInterval {
			delay -= config.FailSafeInterval
		}
		tasks = append(tasks, PeriodicTask{
			name:         "FailSafePolicy",
			initialDelay: delay,
			interval:     config.FailSafeInterval,
			runFunc: func(ctx context.Context) {
				_, _ = s.controller.RunFailSafe(ctx)
			},
		})
	}
	return tasks
}

// RunOnce evaluates every enabled policy once
func (s *LightScheduler) RunOnce(ctx context.Context) ([]lighting.Decision, error) {
	config := s.GetConfig()

	var decisions []lighting.Decision
	var errs []error
	if config.RunsDirect() {
		d, err := s.controller.RunDirect(ctx)
		decisions = append(decisions, d)
		errs = append(errs, err)
	}
	if config.RunsFailSafe() {
		d, err := s.controller.RunFailSafe(ctx)
		decisions = append(decisions, d)
		errs = append(errs, err)
	}
	return decisions, errors.Join(errs...)
}

// OnDecision records a decision in the status, the switch log, the MQTT
// broker and the websocket clients.
func (s *LightScheduler) OnDecision(d lighting.Decision) {
	s.mu.Lock()
	s.cycles++
	if d.Error != "" {
		s.failures++
	}
	decision := d
	switch d.Policy {
	case lighting.PolicyDirect:
		s.lastDirect = &decision
	case lighting.PolicyFailSafe:
		s.lastFailSafe = &decision
	}
	db, publisher := s.db, s.publisher
	persist := s.shouldPersist(d)
	s.mu.Unlock()

	if db != nil && persist {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := saveSwitchEvent(ctx, db, d); err != nil {
			s.logger.Printf("Switch log: %v", err)
		}
		cancel()
	}

	if publisher != nil {
		publisher.OnDecision(d)
	}

	s.webServer.Notify()
}

// shouldPersist keeps the switch log small: direct decisions are stored
// when the action changes, fail-safe decisions when an edge fired, and
// failures when the error differs from the policy's previous one.
// Callers must hold s.mu.
func (s *LightScheduler) shouldPersist(d lighting.Decision) bool {
	if d.Error != "" {
		if s.lastFailure[d.Policy] == d.Error {
			return false
		}
		s.lastFailure[d.Policy] = d.Error
		return true
	}
	delete(s.lastFailure, d.Policy)

	if d.Action == lighting.ActionNone {
		return false
	}
	if d.Policy == lighting.PolicyFailSafe {
		return true
	}
	if s.lastSaved[d.Policy] == d.Action {
		return false
	}
	s.lastSaved[d.Policy] = d.Action
	return true
}

// Stop gracefully stops the scheduler
func (s *LightScheduler) Stop() {
	s.stop()
}

func (s *LightScheduler) stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}

	s.isRunning = false

	// Close stopChan if it's not already closed
	select {
	case <-s.stopChan:
		// Already closed
	default:
		close(s.stopChan)
	}

	webServer, publisher, db := s.webServer, s.publisher, s.db
	s.publisher = nil
	s.db = nil
	s.mu.Unlock()

	// Handlers take the read lock, so the server is shut down without it
	if webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := webServer.Stop(ctx); err != nil {
			s.logger.Printf("Error stopping web server: %v", err)
		}
	}

	if publisher != nil {
		publisher.Close()
	}

	if db != nil {
		db.Close()
	}
}

// Close releases the relay connection
func (s *LightScheduler) Close() error {
	s.Stop()
	return s.relay.Close()
}

// IsRunning returns whether the scheduler is currently running
func (s *LightScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus returns the current status of the scheduler
func (s *LightScheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		IsRunning:    s.isRunning,
		Mode:         s.config.Mode,
		DryRun:       s.config.DryRun,
		Relay:        s.relay.Name(),
		Cycles:       s.cycles,
		Failures:     s.failures,
		HasDatabase:  s.db != nil,
		MQTTEnabled:  s.publisher != nil && s.publisher.IsConnected(),
		LastDirect:   copyDecision(s.lastDirect),
		LastFailSafe: copyDecision(s.lastFailSafe),
	}
	return status
}

func copyDecision(d *lighting.Decision) *lighting.Decision {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// GetEvents returns the solar events and fail-safe targets for now's date
func (s *LightScheduler) GetEvents(now time.Time) (*EventsReport, error) {
	config := s.GetConfig()

	events, err := s.controller.Events(now)
	if err != nil {
		return nil, err
	}

	report := &EventsReport{
		Date:    utils.FormatDate(now),
		Events:  events,
		Minutes: events.Minutes(),
	}

	daylight, err := sun.BuildDaylight(s.failSafeCalc, now, config.Location(), config.Zeniths().Official)
	if err == nil {
		on, off := lighting.NewFailSafePolicy(config.OnOffsetMinutes, config.OffOffsetMinutes).Targets(daylight)
		report.FailSafeOn = utils.FormatMinute(on)
		report.FailSafeOff = utils.FormatMinute(off)
	}

	return report, nil
}

// SchedulerStatus represents the current status of the scheduler
type SchedulerStatus struct {
	IsRunning    bool               `json:"is_running"`
	Mode         string             `json:"mode"`
	DryRun       bool               `json:"dry_run"`
	Relay        string             `json:"relay"`
	Cycles       int                `json:"cycles"`
	Failures     int                `json:"failures"`
	HasDatabase  bool               `json:"has_database"`
	MQTTEnabled  bool               `json:"mqtt_connected"`
	LastDirect   *lighting.Decision `json:"last_direct,omitempty"`
	LastFailSafe *lighting.Decision `json:"last_failsafe,omitempty"`
}

// EventsReport lists the events used by both policies for one date
type EventsReport struct {
	Date        string           `json:"date"`
	Events      *sun.EventSet    `json:"events"`
	Minutes     sun.EventMinutes `json:"minutes"`
	FailSafeOn  string           `json:"failsafe_on,omitempty"`
	FailSafeOff string           `json:"failsafe_off,omitempty"`
}

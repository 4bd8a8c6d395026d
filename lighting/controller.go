package lighting

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/devskill-org/dusk-lights/sun"
	"github.com/devskill-org/dusk-lights/utils"
)

// Policy names used in decisions
const (
	PolicyDirect   = "direct"
	PolicyFailSafe = "failsafe"
)

// Config is the immutable controller configuration.
type Config struct {
	Location         sun.Location
	Zeniths          sun.Zeniths
	OnOffsetMinutes  int
	OffOffsetMinutes int
	ActuatorTimeout  time.Duration
	DryRun           bool
}

// Decision records the outcome of one evaluation cycle.
type Decision struct {
	Time      time.Time     `json:"time"`
	Policy    string        `json:"policy"`
	Strategy  string        `json:"strategy"`
	Action    Action        `json:"action"`
	Observed  *bool         `json:"observed,omitempty"`
	Commanded bool          `json:"commanded"`
	DryRun    bool          `json:"dry_run"`
	Events    *sun.EventSet `json:"events,omitempty"`
	Daylight  *sun.Daylight `json:"daylight,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Observer is notified of every decision.
type Observer interface {
	OnDecision(d Decision)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(d Decision)

// OnDecision calls f(d).
func (f ObserverFunc) OnDecision(d Decision) {
	f(d)
}

// Controller evaluates the lighting policies and drives the actuator.
type Controller struct {
	config   Config
	direct   sun.Calculator
	failSafe sun.Calculator
	actuator Actuator
	logger   *log.Logger

	directPolicy   DirectPolicy
	failSafePolicy *FailSafePolicy

	mu        sync.RWMutex
	observers []Observer
	now       func() time.Time
}

// NewController creates a controller. direct computes the civil twilight
// events for the direct policy, failSafe the sunrise/sunset pair for the
// fail-safe policy; both may be the same calculator.
func NewController(config Config, direct, failSafe sun.Calculator, actuator Actuator, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	if failSafe == nil {
		failSafe = direct
	}
	if config.Zeniths == (sun.Zeniths{}) {
		config.Zeniths = sun.DefaultZeniths()
	}

	return &Controller{
		config:         config,
		direct:         direct,
		failSafe:       failSafe,
		actuator:       actuator,
		logger:         logger,
		failSafePolicy: NewFailSafePolicy(config.OnOffsetMinutes, config.OffOffsetMinutes),
		now:            time.Now,
	}
}

// AddObserver registers o to receive every decision.
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// SetClock replaces the wall clock, for tests.
func (c *Controller) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Events returns the event set the direct policy would use at now.
func (c *Controller) Events(now time.Time) (*sun.EventSet, error) {
	return sun.BuildEventSet(c.direct, now, c.config.Location, c.config.Zeniths)
}

func (c *Controller) clock() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now()
}

func (c *Controller) notify(d Decision) {
	c.mu.RLock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.RUnlock()

	for _, o := range observers {
		o.OnDecision(d)
	}
}

// RunDirect runs one direct policy cycle: it builds the event set, decides
// and sends the command without looking at the current relay state.
func (c *Controller) RunDirect(ctx context.Context) (Decision, error) {
	now := c.clock()
	decision := Decision{
		Time:     now,
		Policy:   PolicyDirect,
		Strategy: c.direct.Name(),
		DryRun:   c.config.DryRun,
	}

	events, err := c.Events(now)
	if err != nil {
		return c.fail(decision, err, "Skipping cycle")
	}
	decision.Events = events

	c.logger.Printf("Current time: %s", utils.PrintDate(now))
	c.logger.Printf("Sunrise: %s", utils.PrintDate(events.Sunrise))
	c.logger.Printf("Sunset: %s", utils.PrintDate(events.Sunset))
	c.logger.Printf("Civil Dawn: %s", utils.PrintDate(events.CivilDawn))
	if events.DuskReanchored {
		c.logger.Printf("Civil Dusk Fixed: %s", utils.PrintDate(events.CivilDusk))
	} else {
		c.logger.Printf("Civil Dusk: %s", utils.PrintDate(events.CivilDusk))
	}

	decision.Action = c.directPolicy.Decide(now, events)
	switch decision.Action {
	case ActionOn:
		c.logger.Printf("Switch ON")
	case ActionOff:
		c.logger.Printf("Switch OFF")
	default:
		c.logger.Printf("No action at boundary %s", utils.PrintDate(now))
		c.notify(decision)
		return decision, nil
	}

	if err := c.command(ctx, decision.Action == ActionOn); err != nil {
		return c.fail(decision, err, "Command failed")
	}
	decision.Commanded = !c.config.DryRun

	c.notify(decision)
	return decision, nil
}

// RunFailSafe runs one fail-safe cycle. Outside the two target minutes it
// does nothing. At a target minute it reads the relay and only switches it
// when the state is wrong. A failed query or command leaves the edge open
// so the next tick in the same minute tries again.
func (c *Controller) RunFailSafe(ctx context.Context) (Decision, error) {
	now := c.clock()
	decision := Decision{
		Time:     now,
		Policy:   PolicyFailSafe,
		Strategy: c.failSafe.Name(),
		DryRun:   c.config.DryRun,
	}

	daylight, err := sun.BuildDaylight(c.failSafe, now, c.config.Location, c.config.Zeniths.Official)
	if err != nil {
		return c.fail(decision, err, "Skipping fail-safe check")
	}
	decision.Daylight = daylight

	want, fire := c.failSafePolicy.Decide(now, daylight)
	if !fire {
		c.notify(decision)
		return decision, nil
	}
	decision.Action = ActionFor(want)

	on, off := c.failSafePolicy.Targets(daylight)
	c.logger.Printf("Fail-safe check at %s (on %s, off %s)",
		utils.PrintDate(now), utils.FormatMinute(on), utils.FormatMinute(off))

	state, err := c.query(ctx)
	if err != nil {
		return c.fail(decision, err, "Fail-safe query failed")
	}
	decision.Observed = &state

	if state == want {
		c.logger.Printf("Relay already %s, no correction needed", decision.Action)
		c.failSafePolicy.Done(now, want)
		c.notify(decision)
		return decision, nil
	}

	if want {
		c.logger.Printf("FAIL-SAFE ACTIVATED: Light was OFF. Switching ON.")
	} else {
		c.logger.Printf("FAIL-SAFE ACTIVATED: Light was ON. Switching OFF.")
	}
	if err := c.command(ctx, want); err != nil {
		return c.fail(decision, err, "Fail-safe command failed")
	}
	decision.Commanded = !c.config.DryRun
	c.failSafePolicy.Done(now, want)

	c.notify(decision)
	return decision, nil
}

func (c *Controller) fail(decision Decision, err error, msg string) (Decision, error) {
	if errors.Is(err, sun.ErrNoEvent) {
		c.logger.Printf("%s, sun does not rise or set today: %v", msg, err)
	} else {
		c.logger.Printf("%s: %v", msg, err)
	}
	decision.Error = err.Error()
	c.notify(decision)
	return decision, err
}

func (c *Controller) actuatorContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.ActuatorTimeout > 0 {
		return context.WithTimeout(ctx, c.config.ActuatorTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *Controller) query(ctx context.Context) (bool, error) {
	ctx, cancel := c.actuatorContext(ctx)
	defer cancel()

	state, err := Await(ctx, Call(ctx, c.actuator.State))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrActuatorQuery, err)
	}
	return state, nil
}

func (c *Controller) command(ctx context.Context, on bool) error {
	if c.config.DryRun {
		c.logger.Printf("DRY-RUN: would switch %s", ActionFor(on))
		return nil
	}

	ctx, cancel := c.actuatorContext(ctx)
	defer cancel()

	_, err := Await(ctx, Call(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.actuator.Set(ctx, on)
	}))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrActuatorCommand, err)
	}
	return nil
}

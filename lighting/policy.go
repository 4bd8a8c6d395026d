package lighting

import (
	"fmt"
	"sync"
	"time"

	"github.com/devskill-org/dusk-lights/sun"
	"github.com/devskill-org/dusk-lights/utils"
)

// Action is the command a policy asks for.
type Action int

const (
	ActionNone Action = iota
	ActionOn
	ActionOff
)

// String returns the action name
func (a Action) String() string {
	switch a {
	case ActionOn:
		return "on"
	case ActionOff:
		return "off"
	default:
		return "none"
	}
}

// MarshalText encodes the action by name.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an action name.
func (a *Action) UnmarshalText(text []byte) error {
	switch string(text) {
	case "on":
		*a = ActionOn
	case "off":
		*a = ActionOff
	case "none", "":
		*a = ActionNone
	default:
		return fmt.Errorf("unknown action: %q", text)
	}
	return nil
}

// ActionFor maps a desired relay state to an action.
func ActionFor(on bool) Action {
	if on {
		return ActionOn
	}
	return ActionOff
}

// DirectPolicy keeps the light on between civil dusk and civil dawn. It has
// no state, so evaluating it again with the same inputs gives the same answer.
type DirectPolicy struct{}

// Decide returns ActionOn after dusk or before dawn, ActionOff between them
// and ActionNone when now equals one of the boundaries.
func (DirectPolicy) Decide(now time.Time, events *sun.EventSet) Action {
	switch {
	case now.After(events.CivilDusk) || now.Before(events.CivilDawn):
		return ActionOn
	case now.After(events.CivilDawn) && now.Before(events.CivilDusk):
		return ActionOff
	default:
		return ActionNone
	}
}

// Edge identifies one of the two daily fail-safe corrections.
type Edge int

const (
	EdgeOn Edge = iota
	EdgeOff
)

func (e Edge) String() string {
	if e == EdgeOn {
		return "on"
	}
	return "off"
}

// FailSafePolicy corrects the relay once a day at sunset + OnOffsetMinutes
// and at sunrise + OffOffsetMinutes. The only state it keeps is the date on
// which each edge was last handled.
type FailSafePolicy struct {
	OnOffsetMinutes  int
	OffOffsetMinutes int

	mu    sync.Mutex
	fired map[Edge]string
}

// NewFailSafePolicy creates a fail-safe policy with the given offsets in minutes.
func NewFailSafePolicy(onOffset, offOffset int) *FailSafePolicy {
	return &FailSafePolicy{
		OnOffsetMinutes:  onOffset,
		OffOffsetMinutes: offOffset,
		fired:            make(map[Edge]string),
	}
}

// Targets returns the minutes of the day at which the relay should be
// switched on and off.
func (p *FailSafePolicy) Targets(d *sun.Daylight) (on, off int) {
	on = utils.NormalizeMinute(d.SunsetMinute() + p.OnOffsetMinutes)
	off = utils.NormalizeMinute(d.SunriseMinute() + p.OffOffsetMinutes)
	return on, off
}

// Decide reports whether a correction is due at now's minute and which
// state the relay should be in. An edge already handled today is not due
// again until the next day. When both targets fall on the same minute only
// the on edge is handled that day; the relay is left on.
func (p *FailSafePolicy) Decide(now time.Time, d *sun.Daylight) (want bool, fire bool) {
	on, off := p.Targets(d)
	minute := utils.MinuteOfDay(now)

	var edge Edge
	switch minute {
	case on:
		edge = EdgeOn
	case off:
		edge = EdgeOff
	default:
		return false, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fired[edge] == utils.FormatDate(now) {
		return false, false
	}
	return edge == EdgeOn, true
}

// Done records that the edge for want was handled on now's date.
func (p *FailSafePolicy) Done(now time.Time, want bool) {
	edge := EdgeOff
	if want {
		edge = EdgeOn
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fired == nil {
		p.fired = make(map[Edge]string)
	}
	p.fired[edge] = utils.FormatDate(now)
}

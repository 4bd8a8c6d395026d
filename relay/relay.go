// Package relay provides the light relays the controller can drive: a
// Shelly Gen2 switch over HTTP RPC, a Modbus TCP coil and an in-process
// relay for dry runs.
package relay

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Relay types accepted by New
const (
	TypeShelly = "shelly"
	TypeModbus = "modbus"
	TypeMemory = "memory"
)

// Relay is a binary switch. Set is idempotent.
type Relay interface {
	Name() string
	State(ctx context.Context) (bool, error)
	Set(ctx context.Context, on bool) error
	Close() error
}

// Options selects and configures a relay
type Options struct {
	Type        string        `json:"type"`
	Address     string        `json:"address"`
	SwitchID    int           `json:"switch_id"`
	CoilAddress uint16        `json:"coil_address"`
	SlaveID     byte          `json:"slave_id"`
	Timeout     time.Duration `json:"-"`
	Logger      *log.Logger   `json:"-"`
}

// Validate checks the options for the selected type
func (o Options) Validate() error {
	switch o.Type {
	case TypeShelly:
		if o.Address == "" {
			return &ValidationError{Field: "address", Message: "required for shelly relays"}
		}
		if o.SwitchID < 0 {
			return &ValidationError{Field: "switch_id", Message: "must be non-negative"}
		}
	case TypeModbus:
		if o.Address == "" {
			return &ValidationError{Field: "address", Message: "required for modbus relays"}
		}
	case TypeMemory:
	default:
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown relay type %q", o.Type)}
	}
	return nil
}

// New creates the relay described by o
func New(o Options) (Relay, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}

	switch o.Type {
	case TypeShelly:
		r := NewShelly(o.Address, o.SwitchID)
		if o.Timeout > 0 {
			r.httpClient.Timeout = o.Timeout
		}
		return r, nil
	case TypeModbus:
		return NewModbusCoil(o.Address, o.SlaveID, o.CoilAddress, o.Timeout, o.Logger), nil
	default:
		return NewMemory(false), nil
	}
}

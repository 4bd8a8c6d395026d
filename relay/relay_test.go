package relay

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantField string
	}{
		{"memory", Options{Type: TypeMemory}, ""},
		{"shelly", Options{Type: TypeShelly, Address: "192.168.1.50"}, ""},
		{"shelly without address", Options{Type: TypeShelly}, "address"},
		{"shelly negative switch", Options{Type: TypeShelly, Address: "x", SwitchID: -1}, "switch_id"},
		{"modbus without address", Options{Type: TypeModbus}, "address"},
		{"unknown type", Options{Type: "zigbee"}, "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("expected field %q, got %q", tt.wantField, vErr.Field)
			}
		})
	}
}

func TestNew(t *testing.T) {
	r, err := New(Options{Type: TypeMemory})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name() != "memory" {
		t.Errorf("expected memory relay, got %s", r.Name())
	}

	r, err = New(Options{Type: TypeShelly, Address: "192.168.1.50", SwitchID: 1, Timeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, ok := r.(*Shelly)
	if !ok {
		t.Fatalf("expected *Shelly, got %T", r)
	}
	if s.httpClient.Timeout != 3*time.Second {
		t.Errorf("expected timeout 3s, got %v", s.httpClient.Timeout)
	}

	if _, err := New(Options{Type: "zigbee"}); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestNew_ModbusDeviceDown(t *testing.T) {
	var logs bytes.Buffer
	// nothing listens on port 1 of the loopback address
	r, err := New(Options{
		Type:    TypeModbus,
		Address: "127.0.0.1:1",
		Timeout: 200 * time.Millisecond,
		Logger:  log.New(&logs, "", 0),
	})
	if err != nil {
		t.Fatalf("expected the relay to be created, got %v", err)
	}
	defer r.Close()

	if !strings.Contains(logs.String(), "not reachable") {
		t.Errorf("expected the connect failure to be logged, got %q", logs.String())
	}

	ctx := context.Background()
	if _, err := r.State(ctx); err == nil {
		t.Error("expected State to fail while the device is down")
	}
	if err := r.Set(ctx, true); err == nil {
		t.Error("expected Set to fail while the device is down")
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory(false)
	ctx := context.Background()

	if err := m.Set(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Set(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	on, err := m.State(ctx)
	if err != nil || !on {
		t.Errorf("expected on, got %v (err %v)", on, err)
	}
	if m.Commands() != 2 {
		t.Errorf("expected 2 commands, got %d", m.Commands())
	}
}

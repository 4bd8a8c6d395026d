package relay

import (
	"context"
	"sync"
)

// Memory is an in-process relay. It is used in dry runs when no device is
// configured and in tests.
type Memory struct {
	mu       sync.Mutex
	on       bool
	commands int
}

// NewMemory creates an in-process relay in the given state
func NewMemory(on bool) *Memory {
	return &Memory{on: on}
}

// Name describes the relay for logs
func (m *Memory) Name() string {
	return "memory"
}

// State returns the current state
func (m *Memory) State(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.on, nil
}

// Set changes the state
func (m *Memory) Set(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.on = on
	m.commands++
	return nil
}

// Commands returns how many times Set was called
func (m *Memory) Commands() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commands
}

// Close is a no-op
func (m *Memory) Close() error {
	return nil
}

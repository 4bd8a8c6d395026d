package lighting

import (
	"context"
	"errors"
)

var (
	// ErrActuatorQuery is returned when the relay state could not be read.
	ErrActuatorQuery = errors.New("actuator query failed")

	// ErrActuatorCommand is returned when the relay could not be switched.
	ErrActuatorCommand = errors.New("actuator command failed")
)

// Actuator is the relay the controller drives. Set must be idempotent.
type Actuator interface {
	State(ctx context.Context) (bool, error)
	Set(ctx context.Context, on bool) error
}

// Result carries the outcome of an asynchronous actuator call.
type Result[T any] struct {
	Value T
	Err   error
}

// Call runs fn on its own goroutine and delivers its result on the returned
// channel. The channel is buffered so an abandoned call never blocks.
func Call[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		v, err := fn(ctx)
		ch <- Result[T]{Value: v, Err: err}
	}()
	return ch
}

// Await waits for a result or for ctx to be done, whichever comes first.
func Await[T any](ctx context.Context, ch <-chan Result[T]) (T, error) {
	select {
	case r := <-ch:
		return r.Value, r.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

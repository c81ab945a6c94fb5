// Package pooling drives pooled values through a two step lifecycle:
// a Manager creates values on demand and recycles them every time they
// are handed back. Capacity, waiting and checkout ordering are left to
// the underlying puddle pool.
package pooling

import (
	"context"
	"runtime"
	"time"
)

// Manager creates and health-checks the values held by a Pool.
//
// Create and Recycle may be called concurrently for different values.
type Manager[T any] interface {
	// Create opens a new value. The error is reported to the caller of
	// Pool.Get, the pool never retries on its own.
	Create(ctx context.Context) (T, error)
	// Recycle verifies a returned value before it is made available again.
	// Any error discards the value.
	Recycle(ctx context.Context, value T) error
}

// Timeouts bounds the three suspend points of a checkout. Zero means no
// timeout.
type Timeouts struct {
	Wait    time.Duration `json:"wait"`
	Create  time.Duration `json:"create"`
	Recycle time.Duration `json:"recycle"`
}

func (t Timeouts) isZero() bool {
	return t.Wait <= 0 && t.Create <= 0 && t.Recycle <= 0
}

type Config struct {
	MaxSize  int      `json:"max_size"`
	Timeouts Timeouts `json:"timeouts"`
}

// DefaultConfig sizes the pool at four values per CPU with no timeouts.
func DefaultConfig() Config {
	return Config{
		MaxSize: runtime.NumCPU() * 4,
	}
}

// Runtime applies timeouts. A pool configured with timeouts refuses to
// build without one.
type Runtime interface {
	Timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc)
}

type contextRuntime struct{}

func (contextRuntime) Timeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// ContextRuntime implements timeouts with context deadlines.
var ContextRuntime Runtime = contextRuntime{}

// Status is a snapshot of the pool counters.
type Status struct {
	MaxSize      int
	Size         int
	Available    int
	Acquired     int
	Constructing int
}

// Metrics describes the history of a single pooled value.
type Metrics struct {
	CreatedAt    time.Time
	RecycledAt   time.Time
	RecycleCount int
}

// LastUsed returns the time the value was last recycled, or its creation
// time if it never was.
func (m Metrics) LastUsed() time.Time {
	if m.RecycledAt.IsZero() {
		return m.CreatedAt
	}
	return m.RecycledAt
}

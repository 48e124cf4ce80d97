package orchestrator

import (
	"context"
	"sync"

	"github.com/mentorstack/mentor-engine/pkg/llm"
)

// Meter accumulates the token usage of one invocation. The orchestrator
// places a meter in the context before executing a capability; agents
// report provider usage through AddUsage.
type Meter struct {
	mu    sync.Mutex
	usage llm.Usage
}

// Add accumulates a usage record.
func (m *Meter) Add(u llm.Usage) {
	m.mu.Lock()
	m.usage.Add(u)
	m.mu.Unlock()
}

// Snapshot returns the accumulated usage.
func (m *Meter) Snapshot() llm.Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usage
}

type meterKey struct{}

// WithMeter attaches a fresh meter to the context.
func WithMeter(ctx context.Context) (context.Context, *Meter) {
	m := &Meter{}
	return context.WithValue(ctx, meterKey{}, m), m
}

// AddUsage reports provider usage to the invocation's meter. Safe to call
// with a context that carries no meter.
func AddUsage(ctx context.Context, u llm.Usage) {
	if m, ok := ctx.Value(meterKey{}).(*Meter); ok {
		m.Add(u)
	}
}

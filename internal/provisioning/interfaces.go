package provisioning

import (
	"context"

	"github.com/imamik/ocp-installer/internal/cluster"
)

// Phase defines the interface for a provisioning phase.
type Phase interface {
	// Name returns the human-readable name of this phase.
	Name() string

	// Provision executes the logic of this phase.
	Provision(ctx *Context) error
}

// Checkpointer persists a record snapshot.
// Implemented by internal/state.Store.
type Checkpointer interface {
	Save(ctx context.Context, rec *cluster.Record) error
}

// CheckpointFunc adapts a function to Checkpointer.
type CheckpointFunc func(ctx context.Context, rec *cluster.Record) error

// Save implements Checkpointer.
func (f CheckpointFunc) Save(ctx context.Context, rec *cluster.Record) error {
	return f(ctx, rec)
}

type phaseFunc struct {
	name string
	fn   func(ctx *Context) error
}

func (p phaseFunc) Name() string                 { return p.name }
func (p phaseFunc) Provision(ctx *Context) error { return p.fn(ctx) }

// NewPhase wraps fn as a named phase.
func NewPhase(name string, fn func(ctx *Context) error) Phase {
	return phaseFunc{name: name, fn: fn}
}

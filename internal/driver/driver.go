// Package driver defines the per-platform create and destroy contract and
// the phases shared by every platform family.
//
// A driver owns the record's phases between directory-prepared and
// provisioning: it resolves the version, performs the platform side
// effects, waits for readiness and fetches credentials. Entering
// provisioning marks the point from which the orchestrator will roll the
// cluster back; drivers enter it immediately before their first cloud side
// effect.
package driver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/provisioning"
)

// ErrNoDriver is returned for platforms without a registered driver.
var ErrNoDriver = errors.New("no driver registered for platform")

// Driver creates and destroys clusters of one platform family.
type Driver interface {
	// Create provisions ctx.Record and returns it once the cluster is usable.
	// Fields already set on the record are not redone.
	Create(ctx *provisioning.Context) (*cluster.Record, error)

	// Destroy tears the cluster down in reverse order of creation. It only
	// relies on persisted record fields.
	Destroy(ctx *provisioning.Context) error
}

// Registry maps platforms to drivers.
type Registry struct {
	mu      sync.RWMutex
	drivers map[cluster.Platform]Driver
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[cluster.Platform]Driver)}
}

// Register binds d to every platform in platforms.
func (r *Registry) Register(d Driver, platforms ...cluster.Platform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range platforms {
		r.drivers[p] = d
	}
}

// For returns the driver of platform.
func (r *Registry) For(platform cluster.Platform) (Driver, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.drivers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDriver, platform)
	}
	return d, nil
}

// Platforms lists the registered platforms, sorted.
func (r *Registry) Platforms() []cluster.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]cluster.Platform, 0, len(r.drivers))
	for p := range r.drivers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Call runs fn bounded by the remaining budget of ctx. Deadline errors and
// outcomes reached after the budget ran out become cluster.ErrTimeout.
func Call(ctx *provisioning.Context, fn func(context.Context) error) error {
	cctx, cancel := ctx.WithDeadline()
	defer cancel()
	return ctx.Budget.Classify(fn(cctx))
}

// Enter advances the record to phase unless it is already there, so a
// resumed lifecycle can replay its phases.
func Enter(ctx *provisioning.Context, phase cluster.Phase) error {
	if ctx.Record.Phase == phase {
		return nil
	}
	return ctx.Advance(phase)
}

// Wrap tags err with kind unless it is already a timeout, which keeps its
// own classification.
func Wrap(kind error, action string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, cluster.ErrTimeout) {
		return fmt.Errorf("%s: %w", action, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, action, err)
}

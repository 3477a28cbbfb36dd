package provisioning

import (
	"context"

	"github.com/imamik/ocp-installer/internal/cluster"
)

// Context wraps everything a driver phase needs for one cluster.
type Context struct {
	context.Context
	Record   *cluster.Record
	Budget   *cluster.Budget
	Observer Observer

	checkpointer Checkpointer
}

// NewContext creates a provisioning context for rec. The observer is scoped
// with the cluster's name, platform and region.
func NewContext(
	ctx context.Context,
	rec *cluster.Record,
	budget *cluster.Budget,
	observer Observer,
	checkpointer Checkpointer,
) *Context {
	if budget == nil {
		budget = cluster.NewBudget(rec.Timeout)
	}
	if observer == nil {
		observer = Discard()
	}
	return &Context{
		Context:      ctx,
		Record:       rec,
		Budget:       budget,
		Observer:     observer.WithFields(ClusterFields(rec)),
		checkpointer: checkpointer,
	}
}

// ClusterFields returns the log fields identifying rec.
func ClusterFields(rec *cluster.Record) map[string]string {
	return map[string]string{
		"cluster":  rec.Name,
		"platform": string(rec.Platform),
		"region":   rec.Region,
	}
}

// Checkpoint persists the record. Failures are fatal to the lifecycle.
func (c *Context) Checkpoint() error {
	if c.checkpointer == nil {
		return nil
	}
	if err := c.checkpointer.Save(c.Context, c.Record); err != nil {
		return err
	}
	c.Observer.Event(Event{
		Type:    EventCheckpointWritten,
		Message: "checkpoint written",
		Fields:  map[string]string{"phase": string(c.Record.Phase)},
	})
	return nil
}

// Advance moves the record to next and checkpoints it.
func (c *Context) Advance(next cluster.Phase) error {
	if err := c.Record.Advance(next); err != nil {
		return err
	}
	return c.Checkpoint()
}

// WithDeadline returns a child context bounded by the remaining budget.
func (c *Context) WithDeadline() (context.Context, context.CancelFunc) {
	return c.Budget.Context(c.Context)
}

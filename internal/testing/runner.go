package testing

import (
	"context"
	"sync"

	"github.com/imamik/ocp-installer/internal/platform/execrun"
)

// CommandRecorder is an execrun.Runner that records commands instead of
// running them. Respond decides the outcome of each call; nil means success
// with no output.
type CommandRecorder struct {
	mu       sync.Mutex
	commands []execrun.Command

	Respond func(cmd execrun.Command) (execrun.Result, error)
}

// Run implements execrun.Runner.
func (r *CommandRecorder) Run(ctx context.Context, cmd execrun.Command) (execrun.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	respond := r.Respond
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return execrun.Result{}, err
	}
	if respond == nil {
		return execrun.Result{}, nil
	}
	return respond(cmd)
}

// Calls returns a snapshot of the recorded commands.
func (r *CommandRecorder) Calls() []execrun.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]execrun.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

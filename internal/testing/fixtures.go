package testing

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/provisioning"
)

// RecordingObserver captures messages and events. Scoped observers returned
// by WithFields share the parent's recording.
type RecordingObserver struct {
	mu       *sync.Mutex
	messages *[]string
	events   *[]provisioning.Event
	fields   map[string]string
}

// NewRecordingObserver creates an empty recording observer.
func NewRecordingObserver() *RecordingObserver {
	return &RecordingObserver{
		mu:       &sync.Mutex{},
		messages: &[]string{},
		events:   &[]provisioning.Event{},
	}
}

// Printf implements provisioning.Observer.
func (o *RecordingObserver) Printf(format string, v ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*o.messages = append(*o.messages, fmt.Sprintf(format, v...))
}

// Event implements provisioning.Observer. The observer's fields are merged
// into the recorded event.
func (o *RecordingObserver) Event(event provisioning.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	merged := make(map[string]string, len(o.fields)+len(event.Fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range event.Fields {
		merged[k] = v
	}
	event.Fields = merged
	*o.events = append(*o.events, event)
}

// Progress implements provisioning.Observer.
func (o *RecordingObserver) Progress(phase string, current, total int) {
	o.Event(provisioning.Event{
		Type:    provisioning.EventProgress,
		Phase:   phase,
		Message: fmt.Sprintf("%d/%d", current, total),
	})
}

// WithFields implements provisioning.Observer.
func (o *RecordingObserver) WithFields(fields map[string]string) provisioning.Observer {
	merged := make(map[string]string, len(o.fields)+len(fields))
	for k, v := range o.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RecordingObserver{mu: o.mu, messages: o.messages, events: o.events, fields: merged}
}

// Messages returns the recorded messages.
func (o *RecordingObserver) Messages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), *o.messages...)
}

// Events returns the recorded events.
func (o *RecordingObserver) Events() []provisioning.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]provisioning.Event(nil), *o.events...)
}

// EventsOf returns the recorded events of type t.
func (o *RecordingObserver) EventsOf(t provisioning.EventType) []provisioning.Event {
	var out []provisioning.Event
	for _, e := range o.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// CheckpointRecorder keeps a copy of every checkpointed record.
type CheckpointRecorder struct {
	mu    sync.Mutex
	saved []*cluster.Record
	// Err, when set, fails every save.
	Err error
}

// Save implements provisioning.Checkpointer.
func (r *CheckpointRecorder) Save(_ context.Context, rec *cluster.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.saved = append(r.saved, rec.Clone())
	return nil
}

// Phases returns the phase of every checkpoint in order.
func (r *CheckpointRecorder) Phases() []cluster.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]cluster.Phase, 0, len(r.saved))
	for _, rec := range r.saved {
		out = append(out, rec.Phase)
	}
	return out
}

// Last returns the most recent checkpoint, or nil.
func (r *CheckpointRecorder) Last() *cluster.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.saved) == 0 {
		return nil
	}
	return r.saved[len(r.saved)-1]
}

// Harness is a provisioning context for one record with recorded
// checkpoints and observer output.
type Harness struct {
	Context     *provisioning.Context
	Observer    *RecordingObserver
	Checkpoints *CheckpointRecorder
}

// NewHarness builds a harness around rec with a budget of rec.Timeout.
func NewHarness(t *testing.T, rec *cluster.Record) *Harness {
	return NewHarnessWithBudget(t, rec, cluster.NewBudget(rec.Timeout))
}

// NewHarnessWithBudget builds a harness with a custom budget.
func NewHarnessWithBudget(t *testing.T, rec *cluster.Record, budget *cluster.Budget) *Harness {
	t.Helper()
	obs := NewRecordingObserver()
	cp := &CheckpointRecorder{}
	return &Harness{
		Context:     provisioning.NewContext(TestContext(t), rec, budget, obs, cp),
		Observer:    obs,
		Checkpoints: cp,
	}
}

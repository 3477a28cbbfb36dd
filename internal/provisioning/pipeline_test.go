package provisioning

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ocp-installer/internal/cluster"
)

// mockPhase implements the Phase interface for testing.
type mockPhase struct {
	name string
	err  error
	ran  *[]string
}

func (m *mockPhase) Name() string { return m.name }
func (m *mockPhase) Provision(_ *Context) error {
	if m.ran != nil {
		*m.ran = append(*m.ran, m.name)
	}
	return m.err
}

type recordingCheckpointer struct {
	phases []cluster.Phase
	err    error
}

func (r *recordingCheckpointer) Save(_ context.Context, rec *cluster.Record) error {
	if r.err != nil {
		return r.err
	}
	r.phases = append(r.phases, rec.Phase)
	return nil
}

func newTestContext(cp Checkpointer, budget *cluster.Budget) (*Context, *MockObserver) {
	rec := cluster.New("ci-1", cluster.AWS)
	rec.Region = "us-east-2"
	observer := NewMockObserver()
	return NewContext(context.Background(), rec, budget, observer, cp), observer
}

func TestRunPhases_Success(t *testing.T) {
	t.Parallel()

	var ran []string
	cp := &recordingCheckpointer{}
	ctx, observer := newTestContext(cp, nil)

	err := RunPhases(ctx, []Phase{
		&mockPhase{name: "extract", ran: &ran},
		&mockPhase{name: "install-config", ran: &ran},
		&mockPhase{name: "install", ran: &ran},
	})

	require.NoError(t, err)
	var progress []string
	for _, e := range observer.events {
		if e.Type == EventProgress {
			progress = append(progress, e.Phase)
		}
	}
	assert.Equal(t, []string{"extract", "install-config", "install"}, progress)
	assert.Equal(t, []string{"extract", "install-config", "install"}, ran)
	assert.Len(t, cp.phases, 3, "one checkpoint per phase")
	assert.Equal(t, "ci-1", observer.fields["cluster"])
	assert.Equal(t, "aws", observer.fields["platform"])
}

func TestRunPhases_StopsOnFailure(t *testing.T) {
	t.Parallel()

	var ran []string
	boom := errors.New("exit status 1")
	cp := &recordingCheckpointer{}
	ctx, observer := newTestContext(cp, nil)

	err := RunPhases(ctx, []Phase{
		&mockPhase{name: "extract", ran: &ran},
		&mockPhase{name: "install", err: boom, ran: &ran},
		&mockPhase{name: "never", ran: &ran},
	})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "install phase failed")
	assert.Equal(t, []string{"extract", "install"}, ran)
	assert.Len(t, cp.phases, 1)
	assert.Contains(t, observer.types(), EventPhaseFailed)
}

func TestRunPhases_ChecksBudgetBeforeEachPhase(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := func() time.Time { return now }
	budget := cluster.NewBudgetWithClock(time.Minute, clock)
	ctx, _ := newTestContext(nil, budget)

	var ran []string
	err := RunPhases(ctx, []Phase{
		NewPhase("slow", func(*Context) error {
			ran = append(ran, "slow")
			now = now.Add(2 * time.Minute)
			return nil
		}),
		&mockPhase{name: "wait-ready", ran: &ran},
	})

	require.ErrorIs(t, err, cluster.ErrTimeout)
	assert.Contains(t, err.Error(), "wait-ready")
	assert.Equal(t, []string{"slow"}, ran)
}

func TestRunPhases_CheckpointFailureIsFatal(t *testing.T) {
	t.Parallel()

	diskFull := errors.New("no space left on device")
	ctx, _ := newTestContext(&recordingCheckpointer{err: diskFull}, nil)

	var ran []string
	err := RunPhases(ctx, []Phase{
		&mockPhase{name: "extract", ran: &ran},
		&mockPhase{name: "install", ran: &ran},
	})

	require.ErrorIs(t, err, diskFull)
	assert.Equal(t, []string{"extract"}, ran)
}

func TestContext_Advance(t *testing.T) {
	t.Parallel()

	cp := &recordingCheckpointer{}
	ctx, _ := newTestContext(cp, nil)

	require.NoError(t, ctx.Advance(cluster.PhaseDirectoryPrepared))
	assert.Equal(t, []cluster.Phase{cluster.PhaseDirectoryPrepared}, cp.phases)

	err := ctx.Advance(cluster.PhaseReady)
	require.ErrorIs(t, err, cluster.ErrInvalidTransition)
	assert.Len(t, cp.phases, 1, "rejected transitions are not checkpointed")
}

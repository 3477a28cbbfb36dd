package orchestration

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/driver"
	"github.com/imamik/ocp-installer/internal/metrics"
	"github.com/imamik/ocp-installer/internal/provisioning"
	"github.com/imamik/ocp-installer/internal/state"
	testutil "github.com/imamik/ocp-installer/internal/testing"
)

type env struct {
	orch    *Orchestrator
	drv     *testutil.FakeDriver
	store   *state.Store
	objects *testutil.MemoryObjects
	obs     *testutil.RecordingObserver
	metrics *metrics.Recorder
	root    string
}

func newEnv(t *testing.T, mutate func(*Options)) *env {
	t.Helper()
	e := &env{
		drv:     &testutil.FakeDriver{},
		objects: testutil.NewMemoryObjects(),
		obs:     testutil.NewRecordingObserver(),
		metrics: metrics.NewRecorder(),
		root:    t.TempDir(),
	}
	e.store = state.NewStore(state.NewRemoteStore(e.objects, "ci"))

	drivers := driver.NewRegistry()
	drivers.Register(e.drv, cluster.ROSA, cluster.AWS)
	opts := Options{
		Drivers:  drivers,
		Store:    e.store,
		Observer: e.obs,
		Metrics:  e.metrics,
	}
	if mutate != nil {
		mutate(&opts)
	}
	e.orch = New(opts)
	return e
}

// pending builds a new record below the env's data directory.
func (e *env) pending(name string) *cluster.Record {
	return testutil.NewRecordBuilder(name, cluster.ROSA).
		WithPhase(cluster.PhasePending).
		WithBucket("clusters").
		InDir(e.root).
		Build()
}

// existing builds a ready record with a checkpoint and archive, as left by
// an earlier create.
func (e *env) existing(t *testing.T, name string) *cluster.Record {
	t.Helper()
	rec := testutil.NewRecordBuilder(name, cluster.ROSA).
		WithVersion("4.15.8").
		WithPhase(cluster.PhaseReady).
		WithClusterID("id-" + name).
		WithBucket("clusters").
		InDir(e.root).
		Build()
	ctx := context.Background()
	require.NoError(t, e.store.Prepare(rec))
	require.NoError(t, e.store.Save(ctx, rec))
	require.NoError(t, e.store.Backup(ctx, rec))
	return rec
}

func failFor(name string, err error) func(*provisioning.Context) error {
	return func(ctx *provisioning.Context) error {
		if ctx.Record.Name == name {
			return err
		}
		return nil
	}
}

func loadPhase(t *testing.T, rec *cluster.Record) cluster.Phase {
	t.Helper()
	loaded, err := state.NewLocalStore().Load(rec.Dir)
	require.NoError(t, err)
	return loaded.Phase
}

func TestCreate(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		e := newEnv(t, nil)
		records := []*cluster.Record{e.pending("alpha"), e.pending("beta")}

		got, err := e.orch.Create(context.Background(), records, parallel)
		require.NoError(t, err)
		require.Len(t, got, 2)

		for _, rec := range got {
			assert.Equal(t, cluster.PhaseReady, rec.Phase)
			assert.Equal(t, cluster.PhaseReady, loadPhase(t, rec))
			assert.Equal(t, "id-"+rec.Name, rec.ClusterID)
		}
		assert.Equal(t, []string{
			"clusters/ci/alpha-0123456789ab.zip",
			"clusters/ci/beta-0123456789ab.zip",
		}, e.objects.Keys())
		assert.Empty(t, e.drv.Destroyed())
	}
}

func TestCreate_CheckpointsEveryPhase(t *testing.T) {
	cp := &testutil.CheckpointRecorder{}
	e := newEnv(t, nil)
	e.orch.opts.Store = recordingStore{Store: e.store, cp: cp}

	_, err := e.orch.Create(context.Background(), []*cluster.Record{e.pending("alpha")}, false)
	require.NoError(t, err)
	assert.Equal(t, []cluster.Phase{
		cluster.PhaseDirectoryPrepared,
		cluster.PhaseVersionResolved,
		cluster.PhaseProvisioning,
		cluster.PhaseProvisioning,
		cluster.PhaseReady,
	}, cp.Phases())
}

func TestCreate_FailureRollsBackBatch(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		e := newEnv(t, nil)
		boom := errors.New("install failed")
		e.drv.CreateFunc = failFor("beta", boom)
		records := []*cluster.Record{e.pending("alpha"), e.pending("beta"), e.pending("gamma")}

		got, err := e.orch.Create(context.Background(), records, parallel)
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)

		var batchErr *BatchError
		require.ErrorAs(t, err, &batchErr)
		require.Len(t, batchErr.Failures, 1)
		assert.Equal(t, "beta", batchErr.Failures[0].Record.Name)
		assert.Empty(t, batchErr.Rollback)

		assert.Equal(t, []string{"alpha", "beta", "gamma"}, e.drv.Created())
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, e.drv.Destroyed())
		for _, rec := range got {
			assert.Equal(t, cluster.PhaseDestroyed, rec.Phase, rec.Name)
			assert.NoDirExists(t, rec.Dir)
		}
		assert.Empty(t, e.objects.Keys())
		assert.Len(t, e.obs.EventsOf(provisioning.EventRollbackStarted), 3)
	}
}

func TestCreate_FailureBeforeProvisioning(t *testing.T) {
	e := newEnv(t, nil)
	failing := &testutil.FakeDriver{ResolveErr: errors.New("catalog unavailable")}
	e.orch.opts.Drivers.Register(failing, cluster.AWS)

	ok := e.pending("alpha")
	broken := testutil.NewRecordBuilder("beta", cluster.AWS).
		WithPhase(cluster.PhasePending).
		InDir(e.root).
		Build()

	_, err := e.orch.Create(context.Background(), []*cluster.Record{ok, broken}, false)
	require.Error(t, err)

	assert.Equal(t, cluster.PhaseFailed, broken.Phase)
	assert.Equal(t, cluster.PhaseFailed, loadPhase(t, broken))
	assert.Empty(t, failing.Destroyed())

	assert.Equal(t, cluster.PhaseDestroyed, ok.Phase)
	assert.Equal(t, []string{"alpha"}, e.drv.Destroyed())
}

func TestCreate_SequentialAttemptsEveryCluster(t *testing.T) {
	e := newEnv(t, nil)
	e.drv.CreateFunc = failFor("alpha", errors.New("boom"))

	_, err := e.orch.Create(context.Background(), []*cluster.Record{e.pending("alpha"), e.pending("beta")}, false)
	require.Error(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, e.drv.Created())
	assert.Equal(t, []string{"alpha", "beta"}, e.drv.Destroyed())
}

func TestCreate_BudgetExhausted(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	e := newEnv(t, func(o *Options) { o.Clock = clock })
	e.drv.CreateFunc = func(*provisioning.Context) error {
		mu.Lock()
		now = now.Add(time.Hour)
		mu.Unlock()
		return nil
	}
	rec := e.pending("alpha")

	_, err := e.orch.Create(context.Background(), []*cluster.Record{rec}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrTimeout)
	assert.Equal(t, cluster.PhaseDestroyed, rec.Phase)
	assert.Equal(t, []string{"alpha"}, e.drv.Destroyed())
}

func TestCreate_DuplicateClusters(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.orch.Create(context.Background(), []*cluster.Record{e.pending("alpha"), e.pending("alpha")}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrInvalidRecord)
	assert.Empty(t, e.drv.Created())
}

func TestCreate_RegionValidation(t *testing.T) {
	invalid := errors.New("unknown region")
	e := newEnv(t, func(o *Options) {
		o.ValidateRegion = func(_ context.Context, rec *cluster.Record) error {
			if rec.Region == "mars-1" {
				return invalid
			}
			return nil
		}
	})
	rec := e.pending("alpha")
	rec.Region = "mars-1"

	_, err := e.orch.Create(context.Background(), []*cluster.Record{rec}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, invalid)
	assert.Equal(t, cluster.PhaseFailed, rec.Phase)
	assert.Empty(t, e.drv.Created())
	assert.NoDirExists(t, rec.Dir)
}

func TestCreate_UploadFailureIsNotFatal(t *testing.T) {
	e := newEnv(t, nil)
	e.store.Remote = state.NewRemoteStore(brokenObjects{}, "ci")
	rec := e.pending("alpha")

	_, err := e.orch.Create(context.Background(), []*cluster.Record{rec}, false)
	require.NoError(t, err)
	assert.Equal(t, cluster.PhaseReady, rec.Phase)
	assert.True(t, containsMessage(e.obs.Messages(), "failed to upload archive of alpha"))
}

func containsMessage(messages []string, substr string) bool {
	for _, m := range messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestCreate_RollbackFailure(t *testing.T) {
	e := newEnv(t, nil)
	e.drv.CreateFunc = failFor("beta", errors.New("boom"))
	e.drv.DestroyFunc = failFor("alpha", errors.New("quota"))
	alpha, beta := e.pending("alpha"), e.pending("beta")

	_, err := e.orch.Create(context.Background(), []*cluster.Record{alpha, beta}, true)
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	require.Len(t, batchErr.Rollback, 1)
	assert.Same(t, alpha, batchErr.Rollback[0].Record)

	assert.Equal(t, cluster.PhaseDestroyFailed, alpha.Phase)
	assert.Equal(t, cluster.PhaseDestroyFailed, loadPhase(t, alpha))
	assert.Equal(t, cluster.PhaseDestroyed, beta.Phase)
	assert.Contains(t, Failed(err, alpha).Error(), "rollback: quota")
}

func TestCreate_CheckpointFailureIsFatal(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.pending("alpha")
	e.orch.opts.Store = recordingStore{Store: e.store, cp: &testutil.CheckpointRecorder{Err: state.ErrCheckpointWriteFailed}}

	_, err := e.orch.Create(context.Background(), []*cluster.Record{rec}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, state.ErrCheckpointWriteFailed)
	assert.Empty(t, e.drv.Created())
}

func TestDestroy(t *testing.T) {
	e := newEnv(t, nil)
	records := []*cluster.Record{e.existing(t, "alpha"), e.existing(t, "beta")}

	got, err := e.orch.Destroy(context.Background(), records, true)
	require.NoError(t, err)
	for _, rec := range got {
		assert.Equal(t, cluster.PhaseDestroyed, rec.Phase)
		assert.NoDirExists(t, rec.Dir)
	}
	assert.Empty(t, e.objects.Keys())
}

func TestDestroy_AttemptsEveryCluster(t *testing.T) {
	e := newEnv(t, nil)
	e.drv.DestroyFunc = failFor("beta", errors.New("vpc in use"))
	alpha, beta, gamma := e.existing(t, "alpha"), e.existing(t, "beta"), e.existing(t, "gamma")

	_, err := e.orch.Destroy(context.Background(), []*cluster.Record{alpha, beta, gamma}, false)
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, OperationDestroy, batchErr.Operation)
	require.Len(t, batchErr.Failures, 1)
	assert.Same(t, beta, batchErr.Failures[0].Record)

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, e.drv.Destroyed())
	assert.Equal(t, cluster.PhaseDestroyed, alpha.Phase)
	assert.Equal(t, cluster.PhaseDestroyFailed, beta.Phase)
	assert.Equal(t, cluster.PhaseDestroyFailed, loadPhase(t, beta))
	assert.Equal(t, cluster.PhaseDestroyed, gamma.Phase)
	assert.Equal(t, []string{"clusters/ci/beta-0123456789ab.zip"}, e.objects.Keys())
}

func TestDestroy_RetryAfterFailure(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.existing(t, "alpha")
	rec.Phase = cluster.PhaseDestroyFailed

	_, err := e.orch.Destroy(context.Background(), []*cluster.Record{rec}, false)
	require.NoError(t, err)
	assert.Equal(t, cluster.PhaseDestroyed, rec.Phase)
}

func TestDestroy_KeepData(t *testing.T) {
	e := newEnv(t, func(o *Options) { o.KeepData = true })
	rec := e.existing(t, "alpha")

	_, err := e.orch.Destroy(context.Background(), []*cluster.Record{rec}, false)
	require.NoError(t, err)
	assert.Equal(t, cluster.PhaseDestroyed, loadPhase(t, rec))
	assert.Len(t, e.objects.Keys(), 1)
}

func TestDestroy_AlreadyDestroyed(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.existing(t, "alpha")
	rec.Phase = cluster.PhaseDestroyed

	_, err := e.orch.Destroy(context.Background(), []*cluster.Record{rec}, false)
	require.NoError(t, err)
	assert.Empty(t, e.drv.Destroyed())
}

func TestDestroy_UnknownPlatform(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.existing(t, "alpha")
	rec.Platform = cluster.GCP
	rec.Parameters = cluster.Parameters{IPI: &cluster.IPIParameters{}}

	_, err := e.orch.Destroy(context.Background(), []*cluster.Record{rec}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, driver.ErrNoDriver)
	assert.Equal(t, cluster.PhaseReady, rec.Phase)
}

func TestSummarize(t *testing.T) {
	a := cluster.New("a", cluster.ROSA)
	a.Phase = cluster.PhaseReady
	b := cluster.New("b", cluster.ROSA)
	b.Phase = cluster.PhaseDestroyed

	s := Summarize([]*cluster.Record{a, b})
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 1, s.Phases[cluster.PhaseReady])
	assert.False(t, s.Succeeded(cluster.PhaseReady))

	b.Phase = cluster.PhaseReady
	assert.True(t, Summarize([]*cluster.Record{a, b}).Succeeded(cluster.PhaseReady))
}

func TestFailed(t *testing.T) {
	a := cluster.New("a", cluster.ROSA)
	b := cluster.New("b", cluster.ROSA)
	err := &BatchError{Operation: OperationCreate, Failures: []Failure{{Record: a, Err: cluster.ErrTimeout}}}

	assert.ErrorIs(t, Failed(err, a), cluster.ErrTimeout)
	assert.NoError(t, Failed(err, b))
	assert.NoError(t, Failed(errors.New("other"), a))
	assert.Contains(t, err.Error(), "create failed for 1 cluster(s)")
}

// recordingStore checkpoints into cp instead of the local store.
type recordingStore struct {
	*state.Store
	cp *testutil.CheckpointRecorder
}

func (s recordingStore) Save(ctx context.Context, rec *cluster.Record) error {
	return s.cp.Save(ctx, rec)
}

type brokenObjects struct{}

func (brokenObjects) PutObject(context.Context, string, string, io.ReadSeeker, int64) error {
	return errors.New("access denied")
}

func (brokenObjects) GetObject(context.Context, string, string) (io.ReadCloser, error) {
	return nil, os.ErrNotExist
}

func (brokenObjects) DeleteObject(context.Context, string, string) error { return nil }

func (brokenObjects) ListObjects(context.Context, string, string) ([]string, error) {
	return nil, nil
}

// budgets records the destroy budget each record was given.
func budgets(mu *sync.Mutex, seen map[string]time.Duration) func(*provisioning.Context) error {
	return func(ctx *provisioning.Context) error {
		mu.Lock()
		defer mu.Unlock()
		seen[ctx.Record.Name] = ctx.Budget.Total()
		return nil
	}
}

func TestDestroy_BudgetFromRecordTimeout(t *testing.T) {
	tests := []struct {
		name  string
		limit time.Duration
		want  map[string]time.Duration
	}{
		{"record timeouts", 0, map[string]time.Duration{"alpha": 5 * time.Minute, "beta": 90 * time.Minute}},
		{"capped", time.Hour, map[string]time.Duration{"alpha": 5 * time.Minute, "beta": time.Hour}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, func(o *Options) { o.DestroyTimeout = tt.limit })
			alpha := e.existing(t, "alpha")
			alpha.Timeout = 5 * time.Minute
			beta := e.existing(t, "beta")
			beta.Timeout = 90 * time.Minute

			var mu sync.Mutex
			seen := map[string]time.Duration{}
			e.drv.DestroyFunc = budgets(&mu, seen)

			_, err := e.orch.Destroy(context.Background(), []*cluster.Record{alpha, beta}, true)
			require.NoError(t, err)
			assert.Equal(t, tt.want, seen)
		})
	}
}

func TestCreate_RollbackBudgetFromRecordTimeout(t *testing.T) {
	e := newEnv(t, nil)
	alpha := e.pending("alpha")
	alpha.Timeout = 5 * time.Minute
	beta := e.pending("beta")
	beta.Timeout = 20 * time.Minute
	e.drv.CreateFunc = failFor("beta", errors.New("install failed"))

	var mu sync.Mutex
	seen := map[string]time.Duration{}
	e.drv.DestroyFunc = budgets(&mu, seen)

	_, err := e.orch.Create(context.Background(), []*cluster.Record{alpha, beta}, false)
	require.Error(t, err)
	assert.Equal(t, map[string]time.Duration{"alpha": 5 * time.Minute, "beta": 20 * time.Minute}, seen)
}

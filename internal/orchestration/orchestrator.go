package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/driver"
	"github.com/imamik/ocp-installer/internal/metrics"
	"github.com/imamik/ocp-installer/internal/provisioning"
	"github.com/imamik/ocp-installer/internal/util/async"
)

// Operations reported in results and metrics.
const (
	OperationCreate   = "create"
	OperationDestroy  = "destroy"
	OperationRollback = "rollback"
)

// Store persists records between phases.
// Implemented by *state.Store.
type Store interface {
	provisioning.Checkpointer
	// Prepare creates the working directory of a new record.
	Prepare(rec *cluster.Record) error
	// Backup uploads the working directory of a ready record.
	Backup(ctx context.Context, rec *cluster.Record) error
	// Forget removes the archive and working directory of a destroyed record.
	Forget(ctx context.Context, rec *cluster.Record) error
}

// RegionValidator checks that a record's region exists before anything is
// created for it.
type RegionValidator func(ctx context.Context, rec *cluster.Record) error

// Options configures an Orchestrator.
type Options struct {
	Drivers  *driver.Registry
	Store    Store
	Observer provisioning.Observer
	Metrics  *metrics.Recorder

	// MaxConcurrency bounds the clusters handled at once in parallel mode.
	// Zero means no bound.
	MaxConcurrency int
	// DestroyTimeout caps the budget of a destroy or rollback. Each record
	// is otherwise destroyed within its own timeout.
	DestroyTimeout time.Duration
	// KeepData keeps the archive and working directory of destroyed clusters.
	KeepData bool
	// ValidateRegion is called for every record before create.
	ValidateRegion RegionValidator
	// Clock overrides time.Now for budgets.
	Clock func() time.Time
}

// Orchestrator runs create and destroy batches.
type Orchestrator struct {
	opts Options
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Observer == nil {
		opts.Observer = provisioning.Discard()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Orchestrator{opts: opts}
}

// lifecycle handles one record and reports its error.
type lifecycle func(ctx context.Context, rec *cluster.Record) error

// Create brings every record to ready. When any record fails, the batch is
// rolled back and a *BatchError describing the original failures is
// returned; the returned records then hold no ready cluster.
func (o *Orchestrator) Create(ctx context.Context, records []*cluster.Record, parallel bool) ([]*cluster.Record, error) {
	if err := checkBatch(records); err != nil {
		return records, err
	}

	failures := o.run(ctx, records, parallel, o.create)
	if len(failures) == 0 {
		o.opts.Metrics.Batch(records)
		return records, nil
	}

	batchErr := &BatchError{Operation: OperationCreate, Failures: failures}
	batchErr.Rollback = o.rollback(ctx, records, parallel)
	o.opts.Metrics.Batch(records)
	return records, batchErr
}

// Destroy tears every record down. Destroy never stops early: every record
// is attempted and all failures are returned in a *BatchError.
func (o *Orchestrator) Destroy(ctx context.Context, records []*cluster.Record, parallel bool) ([]*cluster.Record, error) {
	failures := o.run(ctx, records, parallel, func(ctx context.Context, rec *cluster.Record) error {
		return o.destroy(ctx, rec, cluster.PhaseDestroying, OperationDestroy)
	})
	o.opts.Metrics.Batch(records)
	if len(failures) == 0 {
		return records, nil
	}
	return records, &BatchError{Operation: OperationDestroy, Failures: failures}
}

// run applies fn to every record and collects the failures in input order.
// A batch of one is never dispatched to the worker pool.
func (o *Orchestrator) run(ctx context.Context, records []*cluster.Record, parallel bool, fn lifecycle) []Failure {
	errs := make([]error, len(records))

	if parallel && len(records) > 1 {
		tasks := make([]async.Task, len(records))
		for i, rec := range records {
			tasks[i] = async.Task{
				Name: rec.String(),
				Func: func(ctx context.Context) error {
					errs[i] = fn(ctx, rec)
					return errs[i]
				},
			}
		}
		// Failures are read back from errs, one per record.
		_ = async.Run(ctx, tasks, o.opts.MaxConcurrency)
	} else {
		for i, rec := range records {
			errs[i] = fn(ctx, rec)
		}
	}

	var failures []Failure
	for i, err := range errs {
		if err != nil {
			failures = append(failures, Failure{Record: records[i], Err: err})
		}
	}
	return failures
}

// create runs the create lifecycle of one record under its budget.
func (o *Orchestrator) create(ctx context.Context, rec *cluster.Record) error {
	start := o.opts.Clock()
	budget := cluster.NewBudgetWithClock(rec.Timeout, o.opts.Clock)
	pctx := provisioning.NewContext(ctx, rec, budget, o.opts.Observer, o.opts.Store)
	pctx.Observer.Printf("[Create] Creating %s %s in %s (budget %s)", rec.Platform, rec.Name, rec.Region, budget.Total())

	err := budget.Classify(o.createPhases(pctx))
	if err == nil {
		err = pctx.Advance(cluster.PhaseReady)
	}
	if err != nil {
		o.markFailed(pctx, err)
		o.opts.Metrics.Lifecycle(OperationCreate, rec.Platform, metrics.ResultOf(err), o.opts.Clock().Sub(start))
		return err
	}

	elapsed := o.opts.Clock().Sub(start)
	o.opts.Metrics.Phase(rec.Platform, cluster.PhaseReady, elapsed)
	o.opts.Metrics.Lifecycle(OperationCreate, rec.Platform, metrics.ResultSuccess, elapsed)
	pctx.Observer.Printf("[Create] Cluster %s is ready after %s", rec.Name, elapsed.Round(time.Second))

	if err := o.opts.Store.Backup(ctx, rec); err != nil {
		o.opts.Metrics.UploadFailed()
		pctx.Observer.Printf("[Create] Warning: failed to upload archive of %s: %v", rec.Name, err)
	}
	return nil
}

func (o *Orchestrator) createPhases(pctx *provisioning.Context) error {
	rec := pctx.Record
	drv, err := o.opts.Drivers.For(rec.Platform)
	if err != nil {
		return err
	}
	if rec.Phase == cluster.PhasePending {
		if o.opts.ValidateRegion != nil {
			if err := o.opts.ValidateRegion(pctx, rec); err != nil {
				return err
			}
		}
		if err := o.opts.Store.Prepare(rec); err != nil {
			return err
		}
		if err := pctx.Advance(cluster.PhaseDirectoryPrepared); err != nil {
			return err
		}
	}
	_, err = drv.Create(pctx)
	return err
}

// markFailed moves a record that never reached provisioning to failed.
// Records past that point stay put; the batch rollback takes them.
func (o *Orchestrator) markFailed(pctx *provisioning.Context, cause error) {
	rec := pctx.Record
	provisioning.LogPhaseFailed(pctx.Observer, OperationCreate, cause)
	if rec.ReachedProvisioning || !rec.Phase.CanTransition(cluster.PhaseFailed) {
		return
	}
	prepared := rec.Phase != cluster.PhasePending
	_ = rec.Advance(cluster.PhaseFailed)
	if !prepared {
		return
	}
	if err := pctx.Checkpoint(); err != nil {
		pctx.Observer.Printf("[Create] Warning: failed to checkpoint %s: %v", rec.Name, err)
	}
}

// rollback destroys every record of a failed batch that reached
// provisioning. It runs detached from ctx so an interrupted create still
// cleans up.
func (o *Orchestrator) rollback(ctx context.Context, records []*cluster.Record, parallel bool) []Failure {
	var targets []*cluster.Record
	for _, rec := range records {
		if rec.ReachedProvisioning && rec.Phase != cluster.PhaseDestroyed {
			targets = append(targets, rec)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	o.opts.Observer.Printf("[Rollback] Batch failed, destroying %d cluster(s)", len(targets))
	return o.run(context.WithoutCancel(ctx), targets, parallel, func(ctx context.Context, rec *cluster.Record) error {
		o.opts.Metrics.Rollback(rec.Platform)
		return o.destroy(ctx, rec, cluster.PhaseRollingBack, OperationRollback)
	})
}

// destroy runs the destroy lifecycle of one record, entering through entry.
func (o *Orchestrator) destroy(ctx context.Context, rec *cluster.Record, entry cluster.Phase, operation string) error {
	start := o.opts.Clock()
	budget := cluster.NewBudgetWithClock(o.destroyTimeout(rec), o.opts.Clock)
	pctx := provisioning.NewContext(ctx, rec, budget, o.opts.Observer, o.opts.Store)

	if rec.Phase == cluster.PhaseDestroyed {
		pctx.Observer.Printf("[Destroy] Cluster %s is already destroyed", rec.Name)
		return nil
	}
	if entry == cluster.PhaseRollingBack {
		provisioning.LogRollback(pctx.Observer, fmt.Errorf("batch failed while %s was %s", rec.Name, rec.Phase))
	}

	err := budget.Classify(o.destroyPhases(pctx, entry))
	if err == nil {
		err = pctx.Advance(cluster.PhaseDestroyed)
	}
	o.opts.Metrics.Lifecycle(operation, rec.Platform, metrics.ResultOf(err), o.opts.Clock().Sub(start))
	if err != nil {
		o.markDestroyFailed(pctx, err)
		return err
	}
	pctx.Observer.Printf("[Destroy] Cluster %s destroyed after %s", rec.Name, o.opts.Clock().Sub(start).Round(time.Second))

	if o.opts.KeepData {
		return nil
	}
	if err := o.opts.Store.Forget(ctx, rec); err != nil {
		pctx.Observer.Printf("[Destroy] Warning: failed to remove data of %s: %v", rec.Name, err)
	}
	return nil
}

// destroyTimeout is the record's timeout, capped by DestroyTimeout.
func (o *Orchestrator) destroyTimeout(rec *cluster.Record) time.Duration {
	limit := o.opts.DestroyTimeout
	if limit > 0 && (rec.Timeout <= 0 || limit < rec.Timeout) {
		return limit
	}
	return rec.Timeout
}

func (o *Orchestrator) destroyPhases(pctx *provisioning.Context, entry cluster.Phase) error {
	rec := pctx.Record
	if err := rec.ValidateForDestroy(); err != nil {
		return err
	}
	drv, err := o.opts.Drivers.For(rec.Platform)
	if err != nil {
		return err
	}
	if rec.Phase != entry {
		if err := pctx.Advance(entry); err != nil {
			return err
		}
	}
	return drv.Destroy(pctx)
}

func (o *Orchestrator) markDestroyFailed(pctx *provisioning.Context, cause error) {
	rec := pctx.Record
	provisioning.LogPhaseFailed(pctx.Observer, OperationDestroy, cause)
	if !rec.Phase.CanTransition(cluster.PhaseDestroyFailed) {
		return
	}
	_ = rec.Advance(cluster.PhaseDestroyFailed)
	if err := pctx.Checkpoint(); err != nil {
		pctx.Observer.Printf("[Destroy] Warning: failed to checkpoint %s: %v", rec.Name, err)
	}
}

// checkBatch rejects batches that would share a working directory.
func checkBatch(records []*cluster.Record) error {
	seen := make(map[string]bool, len(records))
	var errs []error
	for _, rec := range records {
		key := rec.String()
		if seen[key] {
			errs = append(errs, fmt.Errorf("%w: duplicate cluster %s", cluster.ErrInvalidRecord, key))
		}
		seen[key] = true
	}
	return errors.Join(errs...)
}

package handlers

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-logr/logr"
	"github.com/spf13/viper"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/config"
	"github.com/imamik/ocp-installer/internal/metrics"
	"github.com/imamik/ocp-installer/internal/orchestration"
	"github.com/imamik/ocp-installer/internal/provisioning"
	"github.com/imamik/ocp-installer/internal/state"
	"github.com/imamik/ocp-installer/internal/util/prerequisites"
)

var (
	// logOutput receives the log lines of a run.
	logOutput io.Writer = os.Stderr
	// lookPath finds the client tools a batch needs. nil searches PATH.
	lookPath prerequisites.LookPath
)

// run bundles what one create or destroy invocation works with.
type run struct {
	in      *config.Input
	log     logr.Logger
	metrics *metrics.Recorder
	regions func() (RegionService, error)
	color   bool
}

func newRun(ctx context.Context, in *config.Input) *run {
	return &run{
		in:      in,
		log:     newLogger(logOutput, in.Verbosity),
		metrics: metrics.NewRecorder(),
		regions: sync.OnceValues(func() (RegionService, error) { return newRegions(ctx, in) }),
		color:   isInteractiveTTY(),
	}
}

// pickRegion chooses the least crowded enabled region.
func (r *run) pickRegion(ctx context.Context) (string, error) {
	regions, err := r.regions()
	if err != nil {
		return "", err
	}
	return regions.LeastCrowded(ctx, nil)
}

// validateRegion checks the region of records running in an AWS account.
func (r *run) validateRegion(ctx context.Context, rec *cluster.Record) error {
	if !rec.Platform.OnAWS() {
		return nil
	}
	regions, err := r.regions()
	if err != nil {
		return err
	}
	if err := regions.Validate(ctx, rec.Region); err != nil {
		return fmt.Errorf("%w: %w", cluster.ErrInvalidRecord, err)
	}
	return nil
}

// orchestrator wires the drivers and stores of the run.
func (r *run) orchestrator(ctx context.Context, records []*cluster.Record, remote *state.RemoteStore) (*orchestration.Orchestrator, error) {
	if err := prerequisites.Check(prerequisites.ToolsForRecords(records), lookPath).Error(); err != nil {
		return nil, err
	}
	drivers, err := newDrivers(ctx, r.in, records, r.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create platform drivers: %w", err)
	}
	return orchestration.New(orchestration.Options{
		Drivers:        drivers,
		Store:          state.NewStore(remote),
		Observer:       provisioning.NewLogObserver(r.log),
		Metrics:        r.metrics,
		MaxConcurrency: r.in.MaxConcurrency,
		DestroyTimeout: config.LoadTimeouts().Destroy,
		KeepData:       r.in.KeepData,
		ValidateRegion: r.validateRegion,
	}), nil
}

// finish renders the outcome and writes the metrics file.
func (r *run) finish(out io.Writer, title string, records []*cluster.Record, err error) error {
	fmt.Fprint(out, renderSummary(title, records, err, r.color))
	if werr := r.metrics.WriteFile(r.in.MetricsFile); werr != nil {
		r.log.Error(werr, "Failed to write metrics file", "path", r.in.MetricsFile)
	}
	return err
}

// Create handles the create command.
//
// It builds one record per requested cluster and creates the batch. When
// any cluster fails, the clusters that reached provisioning are destroyed
// again and the command fails.
func Create(ctx context.Context, v *viper.Viper, out io.Writer) error {
	in, err := config.Load(v)
	if err != nil {
		return err
	}
	r := newRun(ctx, in)

	records, err := config.BuildRecords(ctx, in, config.BuildOptions{
		Action:     config.ActionCreate,
		PickRegion: r.pickRegion,
	})
	if err != nil {
		return err
	}
	if in.DryRun {
		fmt.Fprint(out, renderPlan(config.ActionCreate, records, r.color))
		return nil
	}

	remote, err := remoteStore(ctx, in)
	if err != nil {
		return err
	}
	orch, err := r.orchestrator(ctx, records, remote)
	if err != nil {
		return err
	}

	r.log.Info("Creating clusters", "count", len(records), "parallel", in.Parallel)
	results, err := orch.Create(ctx, records, in.Parallel)
	return r.finish(out, "ocp-installer create", results, err)
}

package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/viper"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/config"
	"github.com/imamik/ocp-installer/internal/state"
)

// DestroySource selects where destroy takes its clusters from. The zero
// value means the clusters of the input, like create.
type DestroySource struct {
	FromS3Bucket       bool
	S3Query            string
	FromDataDir        bool
	FromDataDirUsingS3 bool
	S3Objects          []string
}

func (s DestroySource) needsBucket() bool {
	return s.FromS3Bucket || s.S3Query != "" || s.FromDataDirUsingS3 || len(s.S3Objects) > 0
}

// Destroy handles the destroy command.
//
// Every cluster is attempted; failures are reported together once all
// clusters have been handled. Snapshots or archives that fail to load do
// not stop the clusters that did load from being destroyed; they are
// listed as failed in the summary.
func Destroy(ctx context.Context, v *viper.Viper, src DestroySource, out io.Writer) error {
	in, err := config.Load(v)
	if err != nil {
		return err
	}
	r := newRun(ctx, in)

	remote, err := remoteStore(ctx, in)
	if err != nil {
		return err
	}
	records, err := destroyRecords(ctx, in, src, remote)
	var unloaded state.LoadErrors
	if err != nil && !errors.As(err, &unloaded) {
		return err
	}
	var loadErr error
	if len(unloaded) > 0 {
		loadErr = unloaded
		r.log.Error(loadErr, "Some clusters could not be loaded", "count", len(unloaded))
	}
	if len(records) == 0 && loadErr == nil {
		r.log.Info("No clusters to destroy")
		return nil
	}
	if in.DryRun {
		fmt.Fprint(out, renderPlan(config.ActionDestroy, records, r.color))
		return loadErr
	}
	if len(records) == 0 {
		return r.finish(out, "ocp-installer destroy", nil, loadErr)
	}

	orch, err := r.orchestrator(ctx, records, remote)
	if err != nil {
		return err
	}

	r.log.Info("Destroying clusters", "count", len(records), "parallel", in.Parallel)
	results, err := orch.Destroy(ctx, records, in.Parallel)
	return r.finish(out, "ocp-installer destroy", results, errors.Join(err, loadErr))
}

// destroyRecords loads the records to destroy from the selected source.
// Records that fail to load are returned as a state.LoadErrors next to the
// records that loaded.
func destroyRecords(ctx context.Context, in *config.Input, src DestroySource, remote *state.RemoteStore) ([]*cluster.Record, error) {
	if src.needsBucket() && remote == nil {
		return nil, fmt.Errorf("%w: --s3-bucket-name is required to destroy clusters from archives", config.ErrInvalidInput)
	}
	local := state.NewLocalStore()

	switch {
	case src.FromS3Bucket:
		return remote.RestoreAll(ctx, in.S3BucketName, in.S3BucketPath, in.DataDir)

	case src.S3Query != "":
		return remote.RestoreMatching(ctx, in.S3BucketName, in.S3BucketPath, src.S3Query, in.DataDir)

	case len(src.S3Objects) > 0:
		var (
			records []*cluster.Record
			errs    []error
		)
		for _, key := range src.S3Objects {
			rec, err := remote.Restore(ctx, in.S3BucketName, key, in.DataDir)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			records = append(records, rec)
		}
		return records, joinLoadErrors(errs)

	case src.FromDataDir:
		return local.Discover(in.DataDir)

	case src.FromDataDirUsingS3:
		found, err := local.Discover(in.DataDir)
		var (
			records []*cluster.Record
			errs    []error
		)
		if err != nil {
			var unloaded state.LoadErrors
			if !errors.As(err, &unloaded) {
				return nil, err
			}
			errs = append(errs, unloaded...)
		}
		for _, rec := range found {
			if rec.BackupKey == "" {
				errs = append(errs, fmt.Errorf("%s: no archive recorded", rec.Name))
				continue
			}
			bucket := rec.Bucket
			if bucket == "" {
				bucket = in.S3BucketName
			}
			restored, err := remote.Restore(ctx, bucket, rec.BackupKey, in.DataDir)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			records = append(records, restored)
		}
		return records, joinLoadErrors(errs)
	}

	return inputRecords(ctx, in, local)
}

// inputRecords builds records from the clusters of the input. A cluster
// whose working directory holds a snapshot is destroyed from the snapshot.
func inputRecords(ctx context.Context, in *config.Input, local *state.LocalStore) ([]*cluster.Record, error) {
	built, err := config.BuildRecords(ctx, in, config.BuildOptions{Action: config.ActionDestroy})
	if err != nil {
		return nil, err
	}
	records := make([]*cluster.Record, 0, len(built))
	var errs []error
	for _, rec := range built {
		saved, err := local.Load(rec.Dir)
		switch {
		case err == nil:
			records = append(records, saved)
		case errors.Is(err, state.ErrSnapshotNotFound):
			records = append(records, rec)
		default:
			errs = append(errs, fmt.Errorf("%s: %w", rec.Name, err))
		}
	}
	return records, joinLoadErrors(errs)
}

// joinLoadErrors returns errs as a state.LoadErrors, or nil when empty.
func joinLoadErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return state.LoadErrors(errs)
}

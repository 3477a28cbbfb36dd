package state

import "errors"

var (
	// ErrCheckpointWriteFailed is returned when a snapshot could not be persisted.
	// Lifecycles must stop: continuing without a checkpoint risks an unrecoverable cluster.
	ErrCheckpointWriteFailed = errors.New("checkpoint write failed")

	// ErrSnapshotNotFound is returned when a directory holds no snapshot.
	ErrSnapshotNotFound = errors.New("cluster snapshot not found")

	// ErrUnsafeArchive is returned for archive entries escaping the extraction directory.
	ErrUnsafeArchive = errors.New("unsafe archive entry")
)

// LoadErrors lists the snapshots or archives that failed to load while the
// others were returned.
type LoadErrors []error

func (e LoadErrors) Error() string {
	return errors.Join(e...).Error()
}

// Unwrap exposes every load failure to errors.Is and errors.As.
func (e LoadErrors) Unwrap() []error {
	return e
}

// loadErrors returns errs as LoadErrors, or nil when there are none.
func loadErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return LoadErrors(errs)
}

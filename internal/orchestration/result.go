package orchestration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imamik/ocp-installer/internal/cluster"
)

// Failure is the error one record ended with.
type Failure struct {
	Record *cluster.Record
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Record, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// BatchError reports the failed records of a batch. For create batches,
// Rollback holds the records the following rollback failed to destroy.
type BatchError struct {
	Operation string
	Failures  []Failure
	Rollback  []Failure
}

func (e *BatchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s failed for %d cluster(s)", e.Operation, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "\n  %s", f.Error())
	}
	if len(e.Rollback) > 0 {
		fmt.Fprintf(&b, "\nrollback failed for %d cluster(s)", len(e.Rollback))
		for _, f := range e.Rollback {
			fmt.Fprintf(&b, "\n  %s", f.Error())
		}
	}
	return b.String()
}

// Unwrap exposes every failure to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+len(e.Rollback))
	for _, f := range e.Failures {
		errs = append(errs, f)
	}
	for _, f := range e.Rollback {
		errs = append(errs, f)
	}
	return errs
}

// Failed returns the error a record failed with in err, or nil.
func Failed(err error, rec *cluster.Record) error {
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		return nil
	}
	var errs []error
	for _, f := range batchErr.Failures {
		if f.Record == rec {
			errs = append(errs, f.Err)
		}
	}
	for _, f := range batchErr.Rollback {
		if f.Record == rec {
			errs = append(errs, fmt.Errorf("rollback: %w", f.Err))
		}
	}
	return errors.Join(errs...)
}

// Summary is a per-phase count of a finished batch.
type Summary struct {
	Total  int
	Phases map[cluster.Phase]int
}

// Summarize counts records by phase.
func Summarize(records []*cluster.Record) Summary {
	s := Summary{Total: len(records), Phases: map[cluster.Phase]int{}}
	for _, rec := range records {
		s.Phases[rec.Phase]++
	}
	return s
}

// Succeeded reports whether every record ended in want.
func (s Summary) Succeeded(want cluster.Phase) bool {
	return s.Phases[want] == s.Total
}

package cluster

import "errors"

var (
	// ErrTimeout is returned when a cluster exhausted its time budget.
	ErrTimeout = errors.New("timeout budget exhausted")

	// ErrProvisioningFailed is returned when a provisioning action failed.
	ErrProvisioningFailed = errors.New("provisioning failed")

	// ErrReadinessWaitFailed is returned when a cluster never reported ready.
	ErrReadinessWaitFailed = errors.New("readiness wait failed")

	// ErrDestroyFailed is returned when tearing a cluster down failed.
	ErrDestroyFailed = errors.New("destroy failed")

	// ErrInvalidTransition is returned for a phase change the state machine forbids.
	ErrInvalidTransition = errors.New("invalid phase transition")

	// ErrVersionAlreadySet is returned when a resolved version would be overwritten.
	ErrVersionAlreadySet = errors.New("version already set")

	// ErrInvalidRecord is returned when a record is missing required fields.
	ErrInvalidRecord = errors.New("invalid cluster record")
)

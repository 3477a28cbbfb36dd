// Package provisioning provides the shared types platform drivers build their
// create and destroy sequences from.
//
// # Core Types
//
// Context carries the cluster record, its time budget, an Observer and the
// checkpoint sink. Phase defines one step with Name() and Provision().
// RunPhases executes phases in order, checking the budget before each phase
// and checkpointing the record after each one.
package provisioning

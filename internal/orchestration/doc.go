// Package orchestration drives batches of cluster records through their
// create or destroy lifecycle.
//
// The Orchestrator owns everything around a platform driver: it prepares
// working directories, starts each cluster's time budget, checkpoints the
// record after every phase change, uploads archives of ready clusters and
// decides what happens after a failure.
//
// # Dispatch
//
// Records are processed in input order, one after the other, or on a
// bounded worker pool when parallel execution is requested. A failing
// cluster never stops its siblings; every failure is collected.
//
// # Batch rollback
//
// A create batch is all or nothing. When any cluster fails to become
// ready, every cluster of the batch that reached provisioning, ready ones
// included, is destroyed before the original failure is reported:
//
//	orch := orchestration.New(orchestration.Options{Drivers: drivers, Store: store})
//	records, err := orch.Create(ctx, records, true)
//	if err != nil {
//	    // no record in records is ready
//	}
package orchestration

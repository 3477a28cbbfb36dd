// Package testing provides test utilities, builders, and fakes shared by the
// driver and orchestration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - RecordBuilder: Fluent builder for cluster records of every platform
//   - Harness: A provisioning context with recorded checkpoints and events
//   - MockResolver: testify mock of the version resolver
//   - FakeDriver, MemoryObjects: in-memory platform driver and object store
//
// Usage:
//
//	rec := testutil.NewRecordBuilder("demo", cluster.ROSA).
//	    WithRegion("us-east-2").
//	    InDir(t.TempDir()).
//	    Build()
//
//	h := testutil.NewHarness(t, rec)
//	_, err := drv.Create(h.Context)
package testing

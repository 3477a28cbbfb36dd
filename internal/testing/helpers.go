package testing

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/imamik/ocp-installer/internal/cluster"
)

// TestContext returns a context with a reasonable timeout for tests.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// WithDir creates the working directory of rec, as the directory phase
// would, and returns rec.
func WithDir(t *testing.T, rec *cluster.Record) *cluster.Record {
	t.Helper()
	if rec.Dir == "" {
		t.Fatalf("record %s has no working directory", rec.Name)
	}
	if err := os.MkdirAll(rec.Dir, 0o700); err != nil {
		t.Fatalf("create working directory of %s: %v", rec.Name, err)
	}
	return rec
}

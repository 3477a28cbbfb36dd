package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/provisioning"
)

// FakeDriver is a platform driver that only moves records through their
// phases. The function fields inject failures.
type FakeDriver struct {
	mu        sync.Mutex
	created   []string
	destroyed []string

	// ResolveErr fails create before the record reaches provisioning.
	ResolveErr error
	// CreateFunc runs once the record is provisioning.
	CreateFunc func(ctx *provisioning.Context) error
	// DestroyFunc runs on destroy.
	DestroyFunc func(ctx *provisioning.Context) error
}

// Create resolves a fixed version, enters provisioning and assigns a
// cluster ID.
func (d *FakeDriver) Create(ctx *provisioning.Context) (*cluster.Record, error) {
	rec := ctx.Record
	d.mu.Lock()
	d.created = append(d.created, rec.Name)
	d.mu.Unlock()

	if d.ResolveErr != nil {
		return rec, d.ResolveErr
	}
	if err := rec.SetVersion("4.15.8", "fake"); err != nil {
		return rec, err
	}
	if rec.Phase == cluster.PhaseDirectoryPrepared {
		if err := ctx.Advance(cluster.PhaseVersionResolved); err != nil {
			return rec, err
		}
	}
	if rec.Phase != cluster.PhaseProvisioning {
		if err := ctx.Advance(cluster.PhaseProvisioning); err != nil {
			return rec, err
		}
	}
	if d.CreateFunc != nil {
		if err := d.CreateFunc(ctx); err != nil {
			return rec, err
		}
	}
	rec.ClusterID = "id-" + rec.Name
	return rec, ctx.Checkpoint()
}

// Destroy records the call and runs DestroyFunc.
func (d *FakeDriver) Destroy(ctx *provisioning.Context) error {
	d.mu.Lock()
	d.destroyed = append(d.destroyed, ctx.Record.Name)
	d.mu.Unlock()

	if d.DestroyFunc != nil {
		return d.DestroyFunc(ctx)
	}
	return nil
}

// Created returns the names passed to Create, sorted.
func (d *FakeDriver) Created() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sorted(d.created)
}

// Destroyed returns the names passed to Destroy, sorted.
func (d *FakeDriver) Destroyed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sorted(d.destroyed)
}

func sorted(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

// MemoryObjects is an in-memory S3-compatible object store.
type MemoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte

	// Missing lists buckets BucketExists reports as absent.
	Missing []string
}

// NewMemoryObjects creates an empty object store.
func NewMemoryObjects() *MemoryObjects {
	return &MemoryObjects{objects: map[string][]byte{}}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

// BucketExists reports whether bucket is not listed in Missing.
func (m *MemoryObjects) BucketExists(_ context.Context, bucket string) (bool, error) {
	return !slices.Contains(m.Missing, bucket), nil
}

// PutObject stores body under key.
func (m *MemoryObjects) PutObject(_ context.Context, bucket, key string, body io.ReadSeeker, size int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("short upload of %s: %d of %d bytes", key, len(data), size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[objectKey(bucket, key)] = data
	return nil
}

// GetObject returns the object at key.
func (m *MemoryObjects) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[objectKey(bucket, key)]
	if !ok {
		return nil, fmt.Errorf("no such key: %s", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// DeleteObject removes key.
func (m *MemoryObjects) DeleteObject(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, objectKey(bucket, key))
	return nil
}

// ListObjects lists the keys below prefix.
func (m *MemoryObjects) ListObjects(_ context.Context, bucket, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.objects {
		key, ok := strings.CutPrefix(k, bucket+"/")
		if ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Keys returns every stored bucket/key, sorted.
func (m *MemoryObjects) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

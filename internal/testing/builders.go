package testing

import (
	"time"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/util/naming"
)

// RecordBuilder provides a fluent interface for constructing test records.
// Each method returns a new builder (immutable) for chaining.
type RecordBuilder struct {
	rec *cluster.Record
}

// NewRecordBuilder creates a builder for a directory-prepared record with
// sensible defaults and the parameter set matching platform.
func NewRecordBuilder(name string, platform cluster.Platform) *RecordBuilder {
	rec := cluster.New(name, platform)
	rec.Region = "us-east-2"
	rec.RequestedVersion = "4.15"
	rec.Stream = "stable"
	rec.ShortID = "0123456789ab"
	rec.Timeout = 30 * time.Minute
	rec.Phase = cluster.PhaseDirectoryPrepared

	switch platform {
	case cluster.AWS:
		rec.Parameters.IPI = &cluster.IPIParameters{BaseDomain: "example.com"}
	case cluster.GCP:
		rec.Region = "us-east1"
		rec.Parameters.IPI = &cluster.IPIParameters{BaseDomain: "example.com", GCPProjectID: "demo-project"}
	case cluster.Hypershift:
		rec.Parameters.Hosted = &cluster.HostedParameters{CIDR: cluster.DefaultHostedCIDR}
	case cluster.GCPOSD:
		rec.Region = "us-east1"
		rec.Parameters.Managed = &cluster.ManagedParameters{GCPServiceAccountFile: "sa.json"}
	default:
		rec.Parameters.Managed = &cluster.ManagedParameters{}
	}
	return &RecordBuilder{rec: rec}
}

// WithRegion sets the region.
func (b *RecordBuilder) WithRegion(region string) *RecordBuilder {
	nb := b.clone()
	nb.rec.Region = region
	return nb
}

// WithVersion pins the resolved build, so version resolution is skipped.
func (b *RecordBuilder) WithVersion(build string) *RecordBuilder {
	nb := b.clone()
	nb.rec.Version = build
	return nb
}

// WithRequestedVersion sets the version specifier and stream.
func (b *RecordBuilder) WithRequestedVersion(spec, stream string) *RecordBuilder {
	nb := b.clone()
	nb.rec.RequestedVersion = spec
	nb.rec.Stream = stream
	return nb
}

// WithPhase sets the current phase.
func (b *RecordBuilder) WithPhase(phase cluster.Phase) *RecordBuilder {
	nb := b.clone()
	nb.rec.Phase = phase
	if phase == cluster.PhaseProvisioning || phase == cluster.PhaseReady {
		nb.rec.ReachedProvisioning = true
	}
	return nb
}

// WithTimeout sets the time budget.
func (b *RecordBuilder) WithTimeout(d time.Duration) *RecordBuilder {
	nb := b.clone()
	nb.rec.Timeout = d
	return nb
}

// WithClusterID sets the service side cluster id.
func (b *RecordBuilder) WithClusterID(id string) *RecordBuilder {
	nb := b.clone()
	nb.rec.ClusterID = id
	return nb
}

// WithParameters replaces the parameter set.
func (b *RecordBuilder) WithParameters(params cluster.Parameters) *RecordBuilder {
	nb := b.clone()
	nb.rec.Parameters = params
	return nb
}

// WithBucket sets the backup bucket.
func (b *RecordBuilder) WithBucket(bucket string) *RecordBuilder {
	nb := b.clone()
	nb.rec.Bucket = bucket
	return nb
}

// InDir places the record's working directory under root.
func (b *RecordBuilder) InDir(root string) *RecordBuilder {
	nb := b.clone()
	nb.rec.Dir = naming.ClusterDir(root, nb.rec.Platform.String(), nb.rec.Name)
	nb.rec.AuthDir = naming.AuthDir(nb.rec.Dir)
	return nb
}

// Build returns a copy of the configured record.
func (b *RecordBuilder) Build() *cluster.Record {
	return b.rec.Clone()
}

func (b *RecordBuilder) clone() *RecordBuilder {
	return &RecordBuilder{rec: b.rec.Clone()}
}

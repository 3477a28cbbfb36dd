package config

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"slices"
	"time"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/util/naming"
)

// Defaults applied to cluster input.
const (
	DefaultStream   = "stable"
	DefaultLogLevel = "error"

	OCMEnvProduction = "production"
	OCMEnvStage      = "stage"

	// maxGeneratedName bounds names built from a prefix.
	maxGeneratedName = 14
)

var (
	logLevels = []string{"debug", "info", "warn", "error"}
	ocmEnvs   = []string{OCMEnvProduction, OCMEnvStage}
)

// RegionPicker chooses a region for clusters requesting auto-region.
type RegionPicker func(ctx context.Context) (string, error)

// BuildOptions tunes BuildRecords.
type BuildOptions struct {
	Action string
	// PickRegion resolves auto-region on AWS platforms.
	PickRegion RegionPicker
	// Now and NewID default to time.Now and naming.ShortID.
	Now   func() time.Time
	NewID func() string
}

// BuildRecords validates the batch and builds one pending record per
// cluster. All problems are reported together.
func BuildRecords(ctx context.Context, in *Input, opts BuildOptions) ([]*cluster.Record, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = naming.ShortID
	}
	if len(in.Clusters) == 0 {
		return nil, fmt.Errorf("%w: at least one cluster is required", ErrInvalidInput)
	}
	if err := ValidateInput(in, opts.Action); err != nil {
		return nil, err
	}

	var (
		records []*cluster.Record
		errs    []error
	)
	for _, c := range in.Clusters {
		rec, err := buildRecord(ctx, in, c, opts)
		if err != nil {
			errs = append(errs, fmt.Errorf("cluster %s: %w", c.DisplayName(), err))
			continue
		}
		records = append(records, rec)
	}
	if opts.Action == ActionCreate {
		errs = append(errs, uniqueNames(records))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return records, nil
}

// ValidateInput checks the run-wide settings the batch depends on.
func ValidateInput(in *Input, action string) error {
	if action != ActionCreate && action != ActionDestroy {
		return fmt.Errorf("%w: unsupported action %q (supported: %s, %s)", ErrInvalidInput, action, ActionCreate, ActionDestroy)
	}

	var errs []error
	needsOCM, needsPullSecret := false, false
	for _, c := range in.Clusters {
		p := cluster.Platform(c.Platform)
		switch {
		case p == cluster.AWS || p == cluster.GCP:
			needsPullSecret = true
		case p.Valid():
			needsOCM = true
		}
	}
	if needsOCM && in.OCMToken == "" {
		errs = append(errs, fmt.Errorf("%w: --ocm-token is required for managed and hosted clusters", ErrInvalidInput))
	}
	if needsPullSecret && action == ActionCreate {
		errs = append(errs, fileExists("--registry-config-file", in.RegistryConfigFile, true))
		errs = append(errs, fileExists("--docker-config-file", in.DockerConfigFile, false))
		errs = append(errs, fileExists("--ssh-key-file", in.SSHKeyFile, false))
	}
	return errors.Join(errs...)
}

func fileExists(flag, path string, required bool) error {
	if path == "" {
		if required {
			return fmt.Errorf("%w: %s is required for installer provisioned clusters", ErrInvalidInput, flag)
		}
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidInput, flag, err)
	}
	return nil
}

func buildRecord(ctx context.Context, in *Input, c ClusterInput, opts BuildOptions) (*cluster.Record, error) {
	platform, err := cluster.ParsePlatform(c.Platform)
	if err != nil {
		return nil, err
	}

	id := opts.NewID()
	name, err := clusterName(c, id)
	if err != nil {
		return nil, err
	}
	rec := cluster.New(name, platform)
	rec.ShortID = id
	rec.Region = c.Region
	rec.RequestedVersion = c.Version
	rec.Bucket = in.S3BucketName
	rec.Dir = naming.ClusterDir(in.DataDir, string(platform), name)
	rec.AuthDir = naming.AuthDir(rec.Dir)

	if c.Timeout != "" {
		if rec.Timeout, err = ParseDuration(c.Timeout); err != nil {
			return nil, err
		}
	}

	ipi := platform == cluster.AWS || platform == cluster.GCP
	rec.Stream = c.ChannelGroup
	rec.OCMEnv = c.OCMEnv
	if ipi {
		rec.Stream = c.Stream
		if rec.OCMEnv == "" {
			rec.OCMEnv = OCMEnvProduction
		}
	}
	if rec.Stream == "" {
		rec.Stream = DefaultStream
	}
	if rec.OCMEnv == "" {
		rec.OCMEnv = OCMEnvStage
	}
	if !slices.Contains(ocmEnvs, rec.OCMEnv) {
		return nil, fmt.Errorf("%w: unsupported ocm-env %q (supported: %v)", ErrInvalidInput, rec.OCMEnv, ocmEnvs)
	}

	if c.AutoRegion && opts.Action == ActionCreate {
		if !platform.OnAWS() {
			return nil, fmt.Errorf("%w: auto-region is only supported on AWS platforms", ErrInvalidInput)
		}
		if opts.PickRegion == nil {
			return nil, fmt.Errorf("%w: auto-region requested but no region picker is available", ErrInvalidInput)
		}
		if rec.Region, err = opts.PickRegion(ctx); err != nil {
			return nil, fmt.Errorf("pick region: %w", err)
		}
	}

	if rec.Parameters, err = parameters(in, c, platform, opts.Now()); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// clusterName returns the requested name, or prefix-<id> cut to a
// generated name length.
func clusterName(c ClusterInput, id string) (string, error) {
	if c.Name != "" {
		return c.Name, nil
	}
	if c.NamePrefix == "" {
		return "", fmt.Errorf("%w: name or name-prefix is required", ErrInvalidInput)
	}
	room := maxGeneratedName - len(c.NamePrefix)
	if room < 1 {
		return "", fmt.Errorf("%w: name-prefix %q is longer than %d characters", ErrInvalidInput, c.NamePrefix, maxGeneratedName-2)
	}
	return c.NamePrefix + "-" + id[:min(room, len(id))], nil
}

func parameters(in *Input, c ClusterInput, platform cluster.Platform, now time.Time) (cluster.Parameters, error) {
	var p cluster.Parameters
	switch platform {
	case cluster.AWS, cluster.GCP:
		logLevel := c.LogLevel
		if logLevel == "" {
			logLevel = DefaultLogLevel
		}
		if !slices.Contains(logLevels, logLevel) {
			return p, fmt.Errorf("%w: unsupported log-level %q (supported: %v)", ErrInvalidInput, logLevel, logLevels)
		}
		p.IPI = &cluster.IPIParameters{
			BaseDomain:         c.BaseDomain,
			WorkerFlavor:       c.WorkerFlavor,
			WorkerRootDiskSize: c.WorkerRootDiskSize,
			WorkerReplicas:     c.WorkerReplicas,
			FIPS:               c.FIPS,
			GCPProjectID:       c.GCPProjectID,
			LogLevel:           logLevel,
		}

	case cluster.ROSA, cluster.AWSOSD, cluster.GCPOSD:
		managed := &cluster.ManagedParameters{
			ComputeMachineType:    c.ComputeMachineType,
			Replicas:              c.Replicas,
			MultiAZ:               c.MultiAZ,
			AWSAccountID:          c.AWSAccountID,
			GCPServiceAccountFile: c.GCPServiceAccountFile,
		}
		if managed.GCPServiceAccountFile == "" && platform == cluster.GCPOSD {
			managed.GCPServiceAccountFile = in.GCPServiceAccount
		}
		if c.ExpirationTime != "" {
			d, err := ParseDuration(c.ExpirationTime)
			if err != nil {
				return p, fmt.Errorf("expiration-time: %w", err)
			}
			managed.ExpirationTime = now.Add(d).UTC().Truncate(time.Second)
		}
		p.Managed = managed

	case cluster.Hypershift:
		cidr := c.CIDR
		if cidr == "" {
			cidr = cluster.DefaultHostedCIDR
		}
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil || !prefix.Addr().Is4() {
			return p, fmt.Errorf("%w: cidr %q is not an IPv4 prefix", ErrInvalidInput, cidr)
		}
		p.Hosted = &cluster.HostedParameters{
			ComputeMachineType: c.ComputeMachineType,
			Replicas:           c.Replicas,
			CIDR:               prefix.Masked().String(),
			AvailabilityZones:  c.AvailabilityZones,
		}
	}
	return p, nil
}

func uniqueNames(records []*cluster.Record) error {
	seen := make(map[string]bool, len(records))
	var dup []string
	for _, rec := range records {
		if seen[rec.Name] && !slices.Contains(dup, rec.Name) {
			dup = append(dup, rec.Name)
		}
		seen[rec.Name] = true
	}
	if len(dup) > 0 {
		return fmt.Errorf("%w: cluster names must be unique: %v", ErrInvalidInput, dup)
	}
	return nil
}

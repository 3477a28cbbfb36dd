package driver

import (
	"context"
	"fmt"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/provisioning"
	"github.com/imamik/ocp-installer/internal/version"
)

// VersionResolver resolves a version request. Implemented by *version.Resolver.
type VersionResolver interface {
	Resolve(ctx context.Context, req version.Request) (version.Resolution, error)
}

// ResolveVersion returns the phase that pins the record's build. Records
// that already carry a version skip resolution and only advance.
func ResolveVersion(resolver VersionResolver) provisioning.Phase {
	return provisioning.NewPhase("resolve-version", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		if rec.Version == "" {
			res, err := resolver.Resolve(ctx, version.Request{
				Version: rec.RequestedVersion,
				Stream:  rec.Stream,
				Family:  rec.Platform.Family(),
				Env:     rec.OCMEnv,
			})
			if err != nil {
				return fmt.Errorf("resolve %s (%s): %w", rec.RequestedVersion, rec.Stream, err)
			}
			if err := rec.SetVersion(res.Build, res.Source); err != nil {
				return err
			}
			ctx.Observer.Printf("resolved version %s to %s from %s", rec.RequestedVersion, res.Build, res.Source)
		}
		if rec.Phase == cluster.PhaseDirectoryPrepared {
			return rec.Advance(cluster.PhaseVersionResolved)
		}
		return nil
	})
}

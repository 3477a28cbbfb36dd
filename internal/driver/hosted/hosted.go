// Package hosted creates and destroys hosted control plane clusters.
//
// A hosted cluster needs two ancillary resources before it can be
// requested: an unmanaged OIDC config and a VPC applied with terraform.
// Failures while creating them are rolled back inside the driver, so a
// failed create never leaves ancillary resources behind that the record
// does not know about.
package hosted

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/driver"
	"github.com/imamik/ocp-installer/internal/driver/managed"
	"github.com/imamik/ocp-installer/internal/platform/ocm"
	"github.com/imamik/ocp-installer/internal/platform/rosa"
	"github.com/imamik/ocp-installer/internal/platform/terraform"
	"github.com/imamik/ocp-installer/internal/provisioning"
	"github.com/imamik/ocp-installer/internal/util/naming"
)

// DefaultRollbackTimeout bounds the nested rollback of ancillary resources.
const DefaultRollbackTimeout = 30 * time.Minute

// ClusterAPI is the management API surface hosted clusters need.
// Implemented by *ocm.Client.
type ClusterAPI interface {
	managed.Waiter
	FindCluster(ctx context.Context, name string) (*ocm.Cluster, error)
	WaitForDeletion(ctx context.Context, id string) error
}

// CLI is the rosa surface hosted clusters need. Implemented by *rosa.Client.
type CLI interface {
	Login(ctx context.Context) error
	CreateOIDCConfig(ctx context.Context, prefix string) (string, error)
	DeleteOIDCConfig(ctx context.Context, id string) error
	CreateCluster(ctx context.Context, spec rosa.ClusterSpec) error
	DeleteCluster(ctx context.Context, name string) (string, error)
	RemoveLeftovers(ctx context.Context, deleteOutput string) error
}

// Network applies and destroys the cluster VPC.
// Implemented by *terraform.Workspace.
type Network interface {
	Apply(ctx context.Context) (terraform.VPC, error)
	Destroy(ctx context.Context) error
}

// Options configures the driver. The factories build per-record
// collaborators.
type Options struct {
	Resolver driver.VersionResolver
	API      func(rec *cluster.Record) (ClusterAPI, error)
	CLI      func(rec *cluster.Record) (CLI, error)
	Network  func(rec *cluster.Record) (Network, error)
	// RollbackTimeout bounds the removal of ancillary resources after a
	// failed create step. Zero means DefaultRollbackTimeout.
	RollbackTimeout time.Duration
}

// Driver implements driver.Driver for hypershift.
type Driver struct {
	opts Options
}

// New creates a hosted driver.
func New(opts Options) *Driver {
	if opts.RollbackTimeout <= 0 {
		opts.RollbackTimeout = DefaultRollbackTimeout
	}
	return &Driver{opts: opts}
}

// Platforms lists the platforms this driver serves.
func Platforms() []cluster.Platform {
	return []cluster.Platform{cluster.Hypershift}
}

type collaborators struct {
	api     ClusterAPI
	cli     CLI
	network Network
}

func (d *Driver) collaborators(rec *cluster.Record) (*collaborators, error) {
	api, err := d.opts.API(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create management client: %w", err)
	}
	cli, err := d.opts.CLI(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create rosa client: %w", err)
	}
	network, err := d.opts.Network(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create terraform workspace: %w", err)
	}
	return &collaborators{api: api, cli: cli, network: network}, nil
}

// Create implements driver.Driver.
func (d *Driver) Create(ctx *provisioning.Context) (*cluster.Record, error) {
	rec := ctx.Record
	if rec.Parameters.Hosted == nil {
		return rec, fmt.Errorf("%w: %s: hosted parameters missing", cluster.ErrInvalidRecord, rec.Name)
	}
	c, err := d.collaborators(rec)
	if err != nil {
		return rec, err
	}

	phases := []provisioning.Phase{
		driver.ResolveVersion(d.opts.Resolver),
		d.login(c),
		d.createOIDCConfig(c),
		d.createVPC(c),
		d.requestCluster(c),
		managed.WaitReady(c.api),
		managed.FetchCredentials(c.api),
	}
	if err := provisioning.RunPhases(ctx, phases); err != nil {
		return rec, err
	}
	return rec, nil
}

func (d *Driver) login(c *collaborators) provisioning.Phase {
	return provisioning.NewPhase("rosa-login", func(ctx *provisioning.Context) error {
		if err := driver.Call(ctx, c.cli.Login); err != nil {
			return driver.Wrap(cluster.ErrProvisioningFailed, "rosa login", err)
		}
		return nil
	})
}

func (d *Driver) createOIDCConfig(c *collaborators) provisioning.Phase {
	return provisioning.NewPhase("create-oidc-config", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		if err := driver.Enter(ctx, cluster.PhaseProvisioning); err != nil {
			return err
		}
		params := rec.Parameters.Hosted
		if params.OIDCConfigID != "" {
			return nil
		}

		prefix := naming.OIDCPrefix(rec.Name)
		provisioning.LogResourceCreating(ctx.Observer, "oidc-config", prefix)
		var id string
		err := driver.Call(ctx, func(cc context.Context) error {
			var err error
			id, err = c.cli.CreateOIDCConfig(cc, prefix)
			return err
		})
		if err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "oidc-config", prefix, err)
			return driver.Wrap(cluster.ErrProvisioningFailed, "create oidc config", err)
		}
		params.OIDCConfigID = id
		provisioning.LogResourceCreated(ctx.Observer, "oidc-config", prefix, id)
		return nil
	})
}

func (d *Driver) createVPC(c *collaborators) provisioning.Phase {
	return provisioning.NewPhase("create-vpc", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		params := rec.Parameters.Hosted
		if params.VPCProvisioned {
			return nil
		}

		provisioning.LogResourceCreating(ctx.Observer, "vpc", rec.Name)
		var vpc terraform.VPC
		err := driver.Call(ctx, func(cc context.Context) error {
			var err error
			vpc, err = c.network.Apply(cc)
			return err
		})
		if err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "vpc", rec.Name, err)
			d.rollback(ctx, c, err, true)
			return driver.Wrap(cluster.ErrProvisioningFailed, "apply vpc", err)
		}
		params.VPCProvisioned = true
		params.SubnetIDs = vpc.SubnetIDs()
		provisioning.LogResourceCreated(ctx.Observer, "vpc", rec.Name, vpc.PrivateSubnet)
		return nil
	})
}

func (d *Driver) requestCluster(c *collaborators) provisioning.Phase {
	return provisioning.NewPhase("request-cluster", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		if rec.ClusterID != "" {
			ctx.Observer.Printf("[Cluster] %s already requested (id %s)", rec.Name, rec.ClusterID)
			return nil
		}
		params := rec.Parameters.Hosted
		cidr := params.CIDR
		if cidr == "" {
			cidr = cluster.DefaultHostedCIDR
		}
		spec := rosa.ClusterSpec{
			Name:               rec.Name,
			Version:            rec.Version,
			ChannelGroup:       rec.Stream,
			ComputeMachineType: params.ComputeMachineType,
			Replicas:           params.Replicas,
			Hosted:             true,
			OIDCConfigID:       params.OIDCConfigID,
			SubnetIDs:          params.SubnetIDs,
			MachineCIDR:        cidr,
		}

		provisioning.LogResourceCreating(ctx.Observer, "cluster", rec.Name)
		if err := driver.Call(ctx, func(cc context.Context) error { return c.cli.CreateCluster(cc, spec) }); err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "cluster", rec.Name, err)
			d.rollback(ctx, c, err, params.VPCProvisioned)
			return driver.Wrap(cluster.ErrProvisioningFailed, "request cluster", err)
		}

		var cl *ocm.Cluster
		err := driver.Call(ctx, func(cc context.Context) error {
			var err error
			cl, err = c.api.FindCluster(cc, rec.Name)
			return err
		})
		if err != nil {
			return driver.Wrap(cluster.ErrProvisioningFailed, "look up requested cluster", err)
		}
		rec.ClusterID = cl.ID
		provisioning.LogResourceCreated(ctx.Observer, "cluster", rec.Name, cl.ID)
		return nil
	})
}

// rollback removes the VPC (when vpc is set) and the OIDC config after a
// failed create step. It runs on its own timeout since the failure may have
// been the exhausted budget. Secondary failures are logged and leave the
// identifiers in the record for a later destroy.
func (d *Driver) rollback(ctx *provisioning.Context, c *collaborators, reason error, vpc bool) {
	rec := ctx.Record
	params := rec.Parameters.Hosted
	provisioning.LogRollback(ctx.Observer, reason)

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.opts.RollbackTimeout)
	defer cancel()

	if vpc {
		provisioning.LogResourceDeleting(ctx.Observer, "vpc", rec.Name)
		if err := c.network.Destroy(rctx); err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "vpc", rec.Name, err)
			// The VPC may still exist; keep it known to destroy.
			params.VPCProvisioned = true
		} else {
			params.VPCProvisioned = false
			params.SubnetIDs = nil
			provisioning.LogResourceDeleted(ctx.Observer, "vpc", rec.Name)
		}
	}

	if id := params.OIDCConfigID; id != "" {
		provisioning.LogResourceDeleting(ctx.Observer, "oidc-config", id)
		if err := c.cli.DeleteOIDCConfig(rctx, id); err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "oidc-config", id, err)
		} else {
			params.OIDCConfigID = ""
			provisioning.LogResourceDeleted(ctx.Observer, "oidc-config", id)
		}
	}

	if err := ctx.Checkpoint(); err != nil {
		ctx.Observer.Printf("[Rollback] failed to checkpoint %s: %v", rec.Name, err)
	}
}

// Destroy implements driver.Driver. The cluster goes first, then the VPC,
// then the OIDC config; steps whose identifiers are absent are skipped.
func (d *Driver) Destroy(ctx *provisioning.Context) error {
	rec := ctx.Record
	params := rec.Parameters.Hosted
	if params == nil {
		params = &cluster.HostedParameters{}
		rec.Parameters.Hosted = params
	}
	c, err := d.collaborators(rec)
	if err != nil {
		return fmt.Errorf("%w: %w", cluster.ErrDestroyFailed, err)
	}
	if err := driver.Call(ctx, c.cli.Login); err != nil {
		return driver.Wrap(cluster.ErrDestroyFailed, "rosa login", err)
	}

	// A cluster that is still there keeps using the VPC and OIDC config.
	if err := d.destroyCluster(ctx, c); err != nil {
		return driver.Wrap(cluster.ErrDestroyFailed, "delete cluster", err)
	}

	var errs []error
	if params.VPCProvisioned {
		provisioning.LogResourceDeleting(ctx.Observer, "vpc", rec.Name)
		if err := driver.Call(ctx, c.network.Destroy); err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "vpc", rec.Name, err)
			errs = append(errs, driver.Wrap(cluster.ErrDestroyFailed, "destroy vpc", err))
		} else {
			params.VPCProvisioned = false
			params.SubnetIDs = nil
			provisioning.LogResourceDeleted(ctx.Observer, "vpc", rec.Name)
		}
	}

	if id := params.OIDCConfigID; id != "" {
		provisioning.LogResourceDeleting(ctx.Observer, "oidc-config", id)
		if err := driver.Call(ctx, func(cc context.Context) error { return c.cli.DeleteOIDCConfig(cc, id) }); err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "oidc-config", id, err)
			errs = append(errs, driver.Wrap(cluster.ErrDestroyFailed, "delete oidc config", err))
		} else {
			params.OIDCConfigID = ""
			provisioning.LogResourceDeleted(ctx.Observer, "oidc-config", id)
		}
	}
	return errors.Join(errs...)
}

func (d *Driver) destroyCluster(ctx *provisioning.Context, c *collaborators) error {
	rec := ctx.Record
	id := rec.ClusterID
	if id == "" {
		err := driver.Call(ctx, func(cc context.Context) error {
			cl, err := c.api.FindCluster(cc, rec.Name)
			if err != nil {
				return err
			}
			id = cl.ID
			return nil
		})
		if errors.Is(err, ocm.ErrNotFound) {
			ctx.Observer.Printf("[Destroy] Cluster %s not found, skipping", rec.Name)
			return nil
		}
		if err != nil {
			return err
		}
	}

	provisioning.LogResourceDeleting(ctx.Observer, "cluster", rec.Name)
	var output string
	err := driver.Call(ctx, func(cc context.Context) error {
		var err error
		output, err = c.cli.DeleteCluster(cc, rec.Name)
		return err
	})
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, "cluster", rec.Name, err)
		return err
	}
	if err := driver.Call(ctx, func(cc context.Context) error { return c.api.WaitForDeletion(cc, id) }); err != nil {
		return fmt.Errorf("wait for deletion: %w", err)
	}
	provisioning.LogResourceDeleted(ctx.Observer, "cluster", rec.Name)

	if err := driver.Call(ctx, func(cc context.Context) error { return c.cli.RemoveLeftovers(cc, output) }); err != nil {
		return fmt.Errorf("remove leftover aws resources: %w", err)
	}
	return nil
}

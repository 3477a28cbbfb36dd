// Package managed creates and destroys clusters owned by the cluster
// management service: rosa clusters through the rosa CLI and OSD clusters on
// AWS or GCP through the management API.
package managed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/driver"
	"github.com/imamik/ocp-installer/internal/platform/ocm"
	"github.com/imamik/ocp-installer/internal/platform/rosa"
	"github.com/imamik/ocp-installer/internal/provisioning"
)

// ErrClusterExists is returned when a cluster with the record's name is
// already known to the management service.
var ErrClusterExists = errors.New("cluster already exists")

// Waiter follows a requested cluster until it is usable.
type Waiter interface {
	WaitForReady(ctx context.Context, id string) (*ocm.Cluster, error)
	Credentials(ctx context.Context, id string) (*ocm.Credentials, error)
}

// ClusterAPI is the management API surface managed clusters need.
// Implemented by *ocm.Client.
type ClusterAPI interface {
	Waiter
	FindCluster(ctx context.Context, name string) (*ocm.Cluster, error)
	CreateCluster(ctx context.Context, req ocm.ClusterRequest) (*ocm.Cluster, error)
	DeleteCluster(ctx context.Context, id string) error
	WaitForDeletion(ctx context.Context, id string) error
}

// CLI is the rosa surface managed clusters need. Implemented by *rosa.Client.
type CLI interface {
	Login(ctx context.Context) error
	CreateCluster(ctx context.Context, spec rosa.ClusterSpec) error
	DeleteCluster(ctx context.Context, name string) (string, error)
	RemoveLeftovers(ctx context.Context, deleteOutput string) error
}

// Account holds the AWS account OSD clusters are created in.
type Account struct {
	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
}

// Options configures the driver. API and CLI build per-record collaborators
// so each cluster talks to its own environment and region.
type Options struct {
	Resolver driver.VersionResolver
	API      func(rec *cluster.Record) (ClusterAPI, error)
	CLI      func(rec *cluster.Record) (CLI, error)
	Account  Account
}

// Driver implements driver.Driver for rosa, aws-osd and gcp-osd.
type Driver struct {
	opts Options
}

// New creates a managed driver.
func New(opts Options) *Driver {
	return &Driver{opts: opts}
}

// Platforms lists the platforms this driver serves.
func Platforms() []cluster.Platform {
	return []cluster.Platform{cluster.ROSA, cluster.AWSOSD, cluster.GCPOSD}
}

// Create implements driver.Driver.
func (d *Driver) Create(ctx *provisioning.Context) (*cluster.Record, error) {
	rec := ctx.Record
	if rec.Parameters.Managed == nil {
		return rec, fmt.Errorf("%w: %s: managed parameters missing", cluster.ErrInvalidRecord, rec.Name)
	}
	api, err := d.opts.API(rec)
	if err != nil {
		return rec, fmt.Errorf("failed to create management client: %w", err)
	}

	phases := []provisioning.Phase{
		d.checkAbsent(api),
		driver.ResolveVersion(d.opts.Resolver),
		d.requestCluster(api),
		WaitReady(api),
		FetchCredentials(api),
	}
	if err := provisioning.RunPhases(ctx, phases); err != nil {
		return rec, err
	}
	return rec, nil
}

// checkAbsent refuses to create a cluster whose name is already taken.
// Records that already carry a cluster id are resuming their own cluster.
func (d *Driver) checkAbsent(api ClusterAPI) provisioning.Phase {
	return provisioning.NewPhase("check-existing", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		if rec.ClusterID != "" {
			return nil
		}
		var existing *ocm.Cluster
		err := driver.Call(ctx, func(c context.Context) error {
			var err error
			existing, err = api.FindCluster(c, rec.Name)
			return err
		})
		switch {
		case errors.Is(err, ocm.ErrNotFound):
			return nil
		case err != nil:
			return driver.Wrap(cluster.ErrProvisioningFailed, "look up existing cluster", err)
		}
		return fmt.Errorf("%w: %s (id %s, state %s)", ErrClusterExists, rec.Name, existing.ID, existing.State)
	})
}

func (d *Driver) requestCluster(api ClusterAPI) provisioning.Phase {
	return provisioning.NewPhase("request-cluster", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		if err := driver.Enter(ctx, cluster.PhaseProvisioning); err != nil {
			return err
		}
		if rec.ClusterID != "" {
			ctx.Observer.Printf("[Cluster] %s already requested (id %s)", rec.Name, rec.ClusterID)
			return nil
		}

		provisioning.LogResourceCreating(ctx.Observer, "cluster", rec.Name)
		var (
			id  string
			err error
		)
		if rec.Platform == cluster.ROSA {
			id, err = d.requestROSA(ctx, api)
		} else {
			id, err = d.requestOSD(ctx, api)
		}
		if err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "cluster", rec.Name, err)
			return driver.Wrap(cluster.ErrProvisioningFailed, "request cluster", err)
		}
		rec.ClusterID = id
		provisioning.LogResourceCreated(ctx.Observer, "cluster", rec.Name, id)
		return nil
	})
}

func (d *Driver) requestROSA(ctx *provisioning.Context, api ClusterAPI) (string, error) {
	rec := ctx.Record
	cli, err := d.opts.CLI(rec)
	if err != nil {
		return "", fmt.Errorf("failed to create rosa client: %w", err)
	}
	params := rec.Parameters.Managed
	spec := rosa.ClusterSpec{
		Name:               rec.Name,
		Version:            rec.Version,
		ChannelGroup:       rec.Stream,
		ComputeMachineType: params.ComputeMachineType,
		Replicas:           params.Replicas,
		MultiAZ:            params.MultiAZ,
	}

	var id string
	err = driver.Call(ctx, func(c context.Context) error {
		if err := cli.Login(c); err != nil {
			return err
		}
		if err := cli.CreateCluster(c, spec); err != nil {
			return err
		}
		cl, err := api.FindCluster(c, rec.Name)
		if err != nil {
			return fmt.Errorf("look up created cluster: %w", err)
		}
		id = cl.ID
		return nil
	})
	return id, err
}

func (d *Driver) requestOSD(ctx *provisioning.Context, api ClusterAPI) (string, error) {
	rec := ctx.Record
	req, err := d.osdRequest(rec)
	if err != nil {
		return "", err
	}
	var id string
	err = driver.Call(ctx, func(c context.Context) error {
		cl, err := api.CreateCluster(c, req)
		if err != nil {
			return err
		}
		id = cl.ID
		return nil
	})
	return id, err
}

func (d *Driver) osdRequest(rec *cluster.Record) (ocm.ClusterRequest, error) {
	params := rec.Parameters.Managed
	req := ocm.ClusterRequest{
		Name:               rec.Name,
		Region:             rec.Region,
		Version:            rec.Version,
		ChannelGroup:       rec.Stream,
		ComputeMachineType: params.ComputeMachineType,
		Replicas:           params.Replicas,
		MultiAZ:            params.MultiAZ,
		ExpirationTime:     params.ExpirationTime,
	}
	switch rec.Platform {
	case cluster.AWSOSD:
		req.CloudProvider = "aws"
		req.AWSAccountID = d.opts.Account.AWSAccountID
		if params.AWSAccountID != "" {
			req.AWSAccountID = params.AWSAccountID
		}
		req.AWSAccessKeyID = d.opts.Account.AWSAccessKeyID
		req.AWSSecretAccessKey = d.opts.Account.AWSSecretAccessKey
	case cluster.GCPOSD:
		sa, err := readServiceAccount(params.GCPServiceAccountFile)
		if err != nil {
			return ocm.ClusterRequest{}, err
		}
		req.CloudProvider = "gcp"
		req.GCPServiceAccount = sa
	default:
		return ocm.ClusterRequest{}, fmt.Errorf("%w: %s is not an OSD platform", cluster.ErrInvalidRecord, rec.Platform)
	}
	return req, nil
}

func readServiceAccount(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gcp service account: %w", err)
	}
	var sa map[string]any
	if err := json.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("failed to parse gcp service account %s: %w", path, err)
	}
	return sa, nil
}

// WaitReady returns the phase that blocks until the management service
// reports the record's cluster ready, bounded by what is left of the budget.
func WaitReady(api Waiter) provisioning.Phase {
	return provisioning.NewPhase("wait-ready", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		ctx.Observer.Printf("[Cluster] Waiting for %s to become ready (%s left)", rec.Name, ctx.Budget.Remaining().Round(time.Second))
		var ready *ocm.Cluster
		err := driver.Call(ctx, func(c context.Context) error {
			var err error
			ready, err = api.WaitForReady(c, rec.ClusterID)
			return err
		})
		if err != nil {
			return driver.Wrap(cluster.ErrReadinessWaitFailed, "wait for cluster", err)
		}
		rec.APIURL = ready.API.URL
		rec.ConsoleURL = ready.Console.URL
		return nil
	})
}

// FetchCredentials returns the phase that stores the cluster's admin
// kubeconfig and password in the auth directory.
func FetchCredentials(api Waiter) provisioning.Phase {
	return provisioning.NewPhase("fetch-credentials", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		var creds *ocm.Credentials
		err := driver.Call(ctx, func(c context.Context) error {
			var err error
			creds, err = api.Credentials(c, rec.ClusterID)
			return err
		})
		if err != nil {
			return driver.Wrap(cluster.ErrProvisioningFailed, "fetch credentials", err)
		}
		if err := driver.SaveCredentials(rec, creds.Kubeconfig, creds.Admin.Password); err != nil {
			return fmt.Errorf("%w: %w", cluster.ErrProvisioningFailed, err)
		}
		return nil
	})
}

// Destroy implements driver.Driver. A cluster the service no longer knows
// is treated as already deleted.
func (d *Driver) Destroy(ctx *provisioning.Context) error {
	rec := ctx.Record
	api, err := d.opts.API(rec)
	if err != nil {
		return fmt.Errorf("%w: failed to create management client: %w", cluster.ErrDestroyFailed, err)
	}

	id := rec.ClusterID
	if id == "" {
		err := driver.Call(ctx, func(c context.Context) error {
			cl, err := api.FindCluster(c, rec.Name)
			if err != nil {
				return err
			}
			id = cl.ID
			return nil
		})
		if errors.Is(err, ocm.ErrNotFound) {
			ctx.Observer.Printf("[Destroy] Cluster %s not found, nothing to delete", rec.Name)
			return nil
		}
		if err != nil {
			return driver.Wrap(cluster.ErrDestroyFailed, "look up cluster", err)
		}
	}

	provisioning.LogResourceDeleting(ctx.Observer, "cluster", rec.Name)
	var cli CLI
	var deleteOutput string
	if rec.Platform == cluster.ROSA {
		if cli, err = d.opts.CLI(rec); err != nil {
			return fmt.Errorf("%w: failed to create rosa client: %w", cluster.ErrDestroyFailed, err)
		}
	}
	err = driver.Call(ctx, func(c context.Context) error {
		if cli == nil {
			return api.DeleteCluster(c, id)
		}
		if err := cli.Login(c); err != nil {
			return err
		}
		var err error
		deleteOutput, err = cli.DeleteCluster(c, rec.Name)
		return err
	})
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, "cluster", rec.Name, err)
		return driver.Wrap(cluster.ErrDestroyFailed, "delete cluster", err)
	}

	if err := driver.Call(ctx, func(c context.Context) error { return api.WaitForDeletion(c, id) }); err != nil {
		return driver.Wrap(cluster.ErrDestroyFailed, "wait for deletion", err)
	}
	provisioning.LogResourceDeleted(ctx.Observer, "cluster", rec.Name)

	if cli != nil {
		if err := driver.Call(ctx, func(c context.Context) error { return cli.RemoveLeftovers(c, deleteOutput) }); err != nil {
			return driver.Wrap(cluster.ErrDestroyFailed, "remove leftover aws resources", err)
		}
	}
	return nil
}

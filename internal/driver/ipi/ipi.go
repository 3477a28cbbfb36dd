// Package ipi creates and destroys installer provisioned clusters on AWS
// and GCP with an openshift-install binary extracted from the release
// payload of the resolved build.
package ipi

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/driver"
	"github.com/imamik/ocp-installer/internal/platform/installer"
	"github.com/imamik/ocp-installer/internal/platform/kube"
	"github.com/imamik/ocp-installer/internal/provisioning"
	"github.com/imamik/ocp-installer/internal/util/keygen"
	"github.com/imamik/ocp-installer/internal/util/naming"
	"github.com/imamik/ocp-installer/internal/version"
)

// Installer runs an extracted openshift-install binary.
// Implemented by *installer.Installer.
type Installer interface {
	CreateCluster(ctx context.Context, dir, logLevel string) error
	WaitForInstall(ctx context.Context, dir, logLevel string) error
	DestroyCluster(ctx context.Context, dir, logLevel string) error
}

// InfoReader reads the identity of an installed cluster.
// Implemented by *kube.Reader.
type InfoReader interface {
	Info(ctx context.Context) (kube.ClusterInfo, error)
}

// Options configures the driver.
type Options struct {
	Resolver driver.VersionResolver
	// Extract obtains the installer of releaseImage into dest for rec.
	Extract func(ctx context.Context, rec *cluster.Record, releaseImage, dest string) (Installer, error)
	// Reader opens the installed cluster with its admin kubeconfig.
	Reader func(kubeconfigPath string) (InfoReader, error)
	// PullSecrets are docker config files merged into the pull secret.
	PullSecrets []string
	// SSHPublicKey is an authorized_keys file for the nodes. A key pair is
	// generated into the cluster directory when empty.
	SSHPublicKey string
}

// Driver implements driver.Driver for aws and gcp.
type Driver struct {
	opts Options
}

// New creates an installer provisioned driver.
func New(opts Options) *Driver {
	if opts.Reader == nil {
		opts.Reader = func(path string) (InfoReader, error) { return kube.NewReader(path) }
	}
	return &Driver{opts: opts}
}

// Platforms lists the platforms this driver serves.
func Platforms() []cluster.Platform {
	return []cluster.Platform{cluster.AWS, cluster.GCP}
}

// run carries the installer handle between the phases of one create.
type run struct {
	installer Installer
}

// Create implements driver.Driver.
func (d *Driver) Create(ctx *provisioning.Context) (*cluster.Record, error) {
	rec := ctx.Record
	if rec.Parameters.IPI == nil {
		return rec, fmt.Errorf("%w: %s: ipi parameters missing", cluster.ErrInvalidRecord, rec.Name)
	}

	r := &run{}
	phases := []provisioning.Phase{
		driver.ResolveVersion(d.opts.Resolver),
		d.extractInstaller(r),
		d.renderInstallConfig(),
		d.installCluster(r),
		d.readClusterInfo(),
	}
	if err := provisioning.RunPhases(ctx, phases); err != nil {
		return rec, err
	}
	return rec, nil
}

// ReleaseImage returns the payload the record's installer comes from.
func ReleaseImage(rec *cluster.Record) string {
	if rec.Parameters.IPI != nil && rec.Parameters.IPI.ReleaseImage != "" {
		return rec.Parameters.IPI.ReleaseImage
	}
	if rec.Version == "" {
		return ""
	}
	return version.ReleaseImage(rec.Version)
}

func (d *Driver) extractInstaller(r *run) provisioning.Phase {
	return provisioning.NewPhase("extract-installer", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		image := ReleaseImage(rec)
		ctx.Observer.Printf("[Installer] Extracting %s from %s", installer.Binary, image)

		err := driver.Call(ctx, func(c context.Context) error {
			inst, err := d.opts.Extract(c, rec, image, naming.InstallerDir(rec.Dir))
			if err != nil {
				return err
			}
			r.installer = inst
			return nil
		})
		if err != nil {
			return driver.Wrap(cluster.ErrProvisioningFailed, "extract installer", err)
		}
		rec.Parameters.IPI.ReleaseImage = image
		return nil
	})
}

// renderInstallConfig writes install-config.yaml. The installer consumes
// the file, so a record that already entered provisioning skips it.
func (d *Driver) renderInstallConfig() provisioning.Phase {
	return provisioning.NewPhase("render-install-config", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		if rec.Phase == cluster.PhaseProvisioning {
			return nil
		}
		if err := d.writeInstallConfig(rec); err != nil {
			return fmt.Errorf("%w: %w", cluster.ErrProvisioningFailed, err)
		}
		return nil
	})
}

func (d *Driver) writeInstallConfig(rec *cluster.Record) error {
	params := rec.Parameters.IPI

	sshKey, err := d.sshKey(rec)
	if err != nil {
		return err
	}
	pullSecret, err := installer.MergePullSecrets(d.opts.PullSecrets...)
	if err != nil {
		return err
	}
	cfg, err := installer.NewInstallConfig(installer.ConfigInput{
		Name:               rec.Name,
		Platform:           rec.Platform.String(),
		Region:             rec.Region,
		BaseDomain:         params.BaseDomain,
		WorkerFlavor:       params.WorkerFlavor,
		WorkerRootDiskSize: params.WorkerRootDiskSize,
		WorkerReplicas:     params.WorkerReplicas,
		FIPS:               params.FIPS,
		GCPProjectID:       params.GCPProjectID,
		PullSecret:         pullSecret,
		SSHKey:             sshKey,
	})
	if err != nil {
		return err
	}
	return cfg.WriteFile(installer.InstallConfigPath(rec.Dir))
}

func (d *Driver) sshKey(rec *cluster.Record) (string, error) {
	if d.opts.SSHPublicKey != "" {
		data, err := os.ReadFile(d.opts.SSHPublicKey)
		if err != nil {
			return "", fmt.Errorf("failed to read ssh public key: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	pair, err := keygen.Generate(rec.Name)
	if err != nil {
		return "", err
	}
	if _, err := pair.WriteTo(naming.SSHDir(rec.Dir)); err != nil {
		return "", err
	}
	return strings.TrimSpace(string(pair.PublicKey)), nil
}

// installCluster runs the installer. A record resumed in provisioning
// waits for the install it started earlier instead of starting a new one.
func (d *Driver) installCluster(r *run) provisioning.Phase {
	return provisioning.NewPhase("install-cluster", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		resumed := rec.Phase == cluster.PhaseProvisioning
		if err := driver.Enter(ctx, cluster.PhaseProvisioning); err != nil {
			return err
		}
		if rec.ClusterID != "" {
			return nil
		}

		provisioning.LogResourceCreating(ctx.Observer, "cluster", rec.Name)
		logLevel := rec.Parameters.IPI.LogLevel
		err := driver.Call(ctx, func(c context.Context) error {
			if resumed {
				return r.installer.WaitForInstall(c, rec.Dir, logLevel)
			}
			return r.installer.CreateCluster(c, rec.Dir, logLevel)
		})
		if err != nil {
			provisioning.LogResourceFailed(ctx.Observer, "cluster", rec.Name, err)
			return driver.Wrap(cluster.ErrProvisioningFailed, "install cluster", err)
		}
		return nil
	})
}

func (d *Driver) readClusterInfo() provisioning.Phase {
	return provisioning.NewPhase("read-cluster-info", func(ctx *provisioning.Context) error {
		rec := ctx.Record
		reader, err := d.opts.Reader(naming.Kubeconfig(rec.Dir))
		if err != nil {
			return fmt.Errorf("%w: %w", cluster.ErrReadinessWaitFailed, err)
		}
		var info kube.ClusterInfo
		err = driver.Call(ctx, func(c context.Context) error {
			var err error
			info, err = reader.Info(c)
			return err
		})
		if err != nil {
			return driver.Wrap(cluster.ErrReadinessWaitFailed, "read cluster info", err)
		}
		rec.ClusterID = info.ID
		rec.APIURL = info.APIURL
		rec.ConsoleURL = info.ConsoleURL
		provisioning.LogResourceCreated(ctx.Observer, "cluster", rec.Name, info.ID)
		return nil
	})
}

// Destroy implements driver.Driver. The installer is re-extracted from the
// persisted release image. Clusters whose install never started, so no
// metadata was written, have nothing to destroy.
func (d *Driver) Destroy(ctx *provisioning.Context) error {
	rec := ctx.Record
	if _, err := os.Stat(installer.MetadataPath(rec.Dir)); errors.Is(err, os.ErrNotExist) {
		ctx.Observer.Printf("[Destroy] No installer metadata in %s, nothing to destroy", rec.Dir)
		return nil
	}
	image := ReleaseImage(rec)
	if image == "" {
		return fmt.Errorf("%w: %s: no release image to extract the installer from", cluster.ErrDestroyFailed, rec.Name)
	}

	var inst Installer
	err := driver.Call(ctx, func(c context.Context) error {
		var err error
		inst, err = d.opts.Extract(c, rec, image, naming.InstallerDir(rec.Dir))
		return err
	})
	if err != nil {
		return driver.Wrap(cluster.ErrDestroyFailed, "extract installer", err)
	}

	logLevel := ""
	if rec.Parameters.IPI != nil {
		logLevel = rec.Parameters.IPI.LogLevel
	}
	provisioning.LogResourceDeleting(ctx.Observer, "cluster", rec.Name)
	if err := driver.Call(ctx, func(c context.Context) error { return inst.DestroyCluster(c, rec.Dir, logLevel) }); err != nil {
		provisioning.LogResourceFailed(ctx.Observer, "cluster", rec.Name, err)
		return driver.Wrap(cluster.ErrDestroyFailed, "destroy cluster", err)
	}
	provisioning.LogResourceDeleted(ctx.Observer, "cluster", rec.Name)
	return nil
}

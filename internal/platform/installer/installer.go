// Package installer wraps the openshift-install binary used for installer
// provisioned clusters, including extracting it from a release payload.
package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/imamik/ocp-installer/internal/platform/execrun"
)

const (
	// Binary is the installer binary name inside a release payload.
	Binary = "openshift-install"
	// OC is the client used to extract the installer.
	OC = "oc"

	defaultLogLevel = "error"
)

// Installer runs one extracted openshift-install binary.
type Installer struct {
	runner execrun.Runner
	path   string
	env    map[string]string
	output io.Writer
}

// Extract pulls openshift-install out of releaseImage into dest and returns
// an installer for it. env is passed to every installer invocation.
func Extract(ctx context.Context, runner execrun.Runner, releaseImage, dest, registryConfig string, env map[string]string, output io.Writer) (*Installer, error) {
	if err := os.MkdirAll(dest, 0o700); err != nil {
		return nil, fmt.Errorf("create installer directory: %w", err)
	}
	args := []string{"adm", "release", "extract", releaseImage, "--command=" + Binary, "--to=" + dest}
	if registryConfig != "" {
		args = append(args, "--registry-config="+registryConfig)
	}
	if _, err := runner.Run(ctx, execrun.Command{Name: OC, Args: args, Output: output}); err != nil {
		return nil, fmt.Errorf("extract %s from %s: %w", Binary, releaseImage, err)
	}
	return &Installer{runner: runner, path: filepath.Join(dest, Binary), env: env, output: output}, nil
}

// Path returns the location of the extracted binary.
func (i *Installer) Path() string {
	return i.path
}

func (i *Installer) cluster(ctx context.Context, action, dir, logLevel string) error {
	if logLevel == "" {
		logLevel = defaultLogLevel
	}
	_, err := i.runner.Run(ctx, execrun.Command{
		Name:   i.path,
		Args:   []string{action, "cluster", "--dir", dir, "--log-level", logLevel},
		Env:    i.env,
		Output: i.output,
	})
	if err != nil {
		return fmt.Errorf("%s %s cluster: %w", Binary, action, err)
	}
	return nil
}

// CreateCluster installs the cluster described by dir/install-config.yaml.
func (i *Installer) CreateCluster(ctx context.Context, dir, logLevel string) error {
	return i.cluster(ctx, "create", dir, logLevel)
}

// WaitForInstall waits for an install started earlier in dir to complete.
func (i *Installer) WaitForInstall(ctx context.Context, dir, logLevel string) error {
	if logLevel == "" {
		logLevel = defaultLogLevel
	}
	_, err := i.runner.Run(ctx, execrun.Command{
		Name:   i.path,
		Args:   []string{"wait-for", "install-complete", "--dir", dir, "--log-level", logLevel},
		Env:    i.env,
		Output: i.output,
	})
	if err != nil {
		return fmt.Errorf("%s wait-for install-complete: %w", Binary, err)
	}
	return nil
}

// DestroyCluster removes every resource recorded in dir.
func (i *Installer) DestroyCluster(ctx context.Context, dir, logLevel string) error {
	return i.cluster(ctx, "destroy", dir, logLevel)
}

// MetadataPath returns the location of the metadata the installer writes
// once it starts creating resources. Destroy needs it.
func MetadataPath(dir string) string {
	return filepath.Join(dir, "metadata.json")
}

// InstallConfigPath returns the install config location inside a cluster directory.
func InstallConfigPath(dir string) string {
	return filepath.Join(dir, "install-config.yaml")
}

package installer

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"
	"sigs.k8s.io/yaml"
)

// ErrInvalidInstallConfig is returned when install-config inputs are unusable.
var ErrInvalidInstallConfig = errors.New("invalid install config")

// InstallConfig is the subset of install-config.yaml this tool renders.
type InstallConfig struct {
	APIVersion   string         `json:"apiVersion"`
	BaseDomain   string         `json:"baseDomain"`
	Metadata     Metadata       `json:"metadata"`
	ControlPlane MachinePool    `json:"controlPlane"`
	Compute      []MachinePool  `json:"compute"`
	Networking   Networking     `json:"networking"`
	Platform     PlatformConfig `json:"platform"`
	FIPS         bool           `json:"fips,omitempty"`
	PullSecret   string         `json:"pullSecret"`
	SSHKey       string         `json:"sshKey"`
}

type Metadata struct {
	Name string `json:"name"`
}

type MachinePool struct {
	Name     string               `json:"name"`
	Replicas int                  `json:"replicas"`
	Platform *MachinePoolPlatform `json:"platform,omitempty"`
}

type MachinePoolPlatform struct {
	AWS *AWSMachinePool `json:"aws,omitempty"`
	GCP *GCPMachinePool `json:"gcp,omitempty"`
}

type AWSMachinePool struct {
	Type       string      `json:"type,omitempty"`
	RootVolume *RootVolume `json:"rootVolume,omitempty"`
}

type RootVolume struct {
	Size int `json:"size"`
}

type GCPMachinePool struct {
	Type   string  `json:"type,omitempty"`
	OSDisk *OSDisk `json:"osDisk,omitempty"`
}

type OSDisk struct {
	DiskSizeGB int `json:"diskSizeGB"`
}

type Networking struct {
	NetworkType    string        `json:"networkType"`
	ClusterNetwork []ClusterCIDR `json:"clusterNetwork"`
	MachineNetwork []MachineCIDR `json:"machineNetwork"`
	ServiceNetwork []string      `json:"serviceNetwork"`
}

type ClusterCIDR struct {
	CIDR       string `json:"cidr"`
	HostPrefix int    `json:"hostPrefix"`
}

type MachineCIDR struct {
	CIDR string `json:"cidr"`
}

type PlatformConfig struct {
	AWS *AWSPlatform `json:"aws,omitempty"`
	GCP *GCPPlatform `json:"gcp,omitempty"`
}

type AWSPlatform struct {
	Region string `json:"region"`
}

type GCPPlatform struct {
	ProjectID string `json:"projectID"`
	Region    string `json:"region"`
}

// ConfigInput collects everything an install config is built from.
type ConfigInput struct {
	Name               string
	Platform           string // "aws" or "gcp"
	Region             string
	BaseDomain         string
	WorkerFlavor       string
	WorkerRootDiskSize int
	WorkerReplicas     int
	FIPS               bool
	GCPProjectID       string
	PullSecret         string
	SSHKey             string
}

const defaultWorkerReplicas = 3

// NewInstallConfig builds an install config for an installer provisioned cluster.
func NewInstallConfig(in ConfigInput) (*InstallConfig, error) {
	if err := ValidateSSHKey(in.SSHKey); err != nil {
		return nil, err
	}
	if in.PullSecret == "" {
		return nil, fmt.Errorf("%w: pull secret is required", ErrInvalidInstallConfig)
	}
	if in.BaseDomain == "" {
		return nil, fmt.Errorf("%w: base domain is required", ErrInvalidInstallConfig)
	}

	replicas := in.WorkerReplicas
	if replicas == 0 {
		replicas = defaultWorkerReplicas
	}
	worker := MachinePool{Name: "worker", Replicas: replicas}
	cfg := &InstallConfig{
		APIVersion:   "v1",
		BaseDomain:   in.BaseDomain,
		Metadata:     Metadata{Name: in.Name},
		ControlPlane: MachinePool{Name: "master", Replicas: 3},
		Networking: Networking{
			NetworkType:    "OVNKubernetes",
			ClusterNetwork: []ClusterCIDR{{CIDR: "10.128.0.0/14", HostPrefix: 23}},
			MachineNetwork: []MachineCIDR{{CIDR: "10.0.0.0/16"}},
			ServiceNetwork: []string{"172.30.0.0/16"},
		},
		FIPS:       in.FIPS,
		PullSecret: in.PullSecret,
		SSHKey:     strings.TrimSpace(in.SSHKey),
	}

	switch in.Platform {
	case "aws":
		cfg.Platform.AWS = &AWSPlatform{Region: in.Region}
		if in.WorkerFlavor != "" || in.WorkerRootDiskSize > 0 {
			pool := &AWSMachinePool{Type: in.WorkerFlavor}
			if in.WorkerRootDiskSize > 0 {
				pool.RootVolume = &RootVolume{Size: in.WorkerRootDiskSize}
			}
			worker.Platform = &MachinePoolPlatform{AWS: pool}
		}
	case "gcp":
		if in.GCPProjectID == "" {
			return nil, fmt.Errorf("%w: gcp project id is required", ErrInvalidInstallConfig)
		}
		cfg.Platform.GCP = &GCPPlatform{ProjectID: in.GCPProjectID, Region: in.Region}
		if in.WorkerFlavor != "" || in.WorkerRootDiskSize > 0 {
			pool := &GCPMachinePool{Type: in.WorkerFlavor}
			if in.WorkerRootDiskSize > 0 {
				pool.OSDisk = &OSDisk{DiskSizeGB: in.WorkerRootDiskSize}
			}
			worker.Platform = &MachinePoolPlatform{GCP: pool}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported platform %q", ErrInvalidInstallConfig, in.Platform)
	}
	cfg.Compute = []MachinePool{worker}
	return cfg, nil
}

// Marshal renders the config as YAML.
func (c *InstallConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// WriteFile writes the config to path. openshift-install consumes the file,
// so it is rewritten on every create.
func (c *InstallConfig) WriteFile(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return fmt.Errorf("render install config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write install config: %w", err)
	}
	return nil
}

// ValidateSSHKey checks that key is a single authorized_keys entry.
func ValidateSSHKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: ssh key is required", ErrInvalidInstallConfig)
	}
	if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
		return fmt.Errorf("%w: ssh key: %w", ErrInvalidInstallConfig, err)
	}
	return nil
}

type dockerConfig struct {
	Auths map[string]json.RawMessage `json:"auths"`
}

// MergePullSecrets combines the registry auths of several docker config
// files into one pull secret. Later files override earlier ones per registry.
func MergePullSecrets(paths ...string) (string, error) {
	merged := dockerConfig{Auths: map[string]json.RawMessage{}}
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read pull secret %s: %w", path, err)
		}
		var cfg dockerConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return "", fmt.Errorf("%w: parse pull secret %s: %w", ErrInvalidInstallConfig, path, err)
		}
		for registry, auth := range cfg.Auths {
			merged.Auths[registry] = auth
		}
	}
	if len(merged.Auths) == 0 {
		return "", fmt.Errorf("%w: pull secret has no registry auths", ErrInvalidInstallConfig)
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

package cluster

import (
	"fmt"
	"time"
)

// Parameters carries the platform specific settings of a record. Exactly one
// variant is set, selected by the record's platform family.
type Parameters struct {
	IPI     *IPIParameters     `yaml:"ipi,omitempty"`
	Managed *ManagedParameters `yaml:"managed,omitempty"`
	Hosted  *HostedParameters  `yaml:"hosted,omitempty"`
}

// IPIParameters configures installer provisioned clusters.
type IPIParameters struct {
	BaseDomain         string `yaml:"base-domain"`
	WorkerFlavor       string `yaml:"worker-flavor,omitempty"`
	WorkerRootDiskSize int    `yaml:"worker-root-disk-size,omitempty"`
	WorkerReplicas     int    `yaml:"worker-replicas,omitempty"`
	FIPS               bool   `yaml:"fips,omitempty"`
	GCPProjectID       string `yaml:"gcp-project-id,omitempty"`
	LogLevel           string `yaml:"log-level,omitempty"`

	// ReleaseImage is the payload the installer binary is extracted from.
	// Persisted so destroy can re-extract the same installer.
	ReleaseImage string `yaml:"release-image,omitempty"`
}

// ManagedParameters configures clusters owned by the management service.
type ManagedParameters struct {
	ComputeMachineType    string    `yaml:"compute-machine-type,omitempty"`
	Replicas              int       `yaml:"replicas,omitempty"`
	MultiAZ               bool      `yaml:"multi-az,omitempty"`
	ExpirationTime        time.Time `yaml:"expiration-time,omitempty"`
	AWSAccountID          string    `yaml:"aws-account-id,omitempty"`
	GCPServiceAccountFile string    `yaml:"gcp-service-account-file,omitempty"`
}

// HostedParameters configures hosted control plane clusters and the
// ancillary resources created for them.
type HostedParameters struct {
	ComputeMachineType string   `yaml:"compute-machine-type,omitempty"`
	Replicas           int      `yaml:"replicas,omitempty"`
	CIDR               string   `yaml:"cidr,omitempty"`
	AvailabilityZones  []string `yaml:"availability-zones,omitempty"`

	// Ancillary resource identifiers, filled in as they are created.
	OIDCConfigID   string   `yaml:"oidc-config-id,omitempty"`
	VPCProvisioned bool     `yaml:"vpc-provisioned,omitempty"`
	SubnetIDs      []string `yaml:"subnet-ids,omitempty"`
}

// DefaultHostedCIDR is the machine network of hosted clusters.
const DefaultHostedCIDR = "10.0.0.0/16"

func (p Parameters) variants() int {
	n := 0
	if p.IPI != nil {
		n++
	}
	if p.Managed != nil {
		n++
	}
	if p.Hosted != nil {
		n++
	}
	return n
}

// validateFor checks that exactly the variant matching platform is set.
func (p Parameters) validateFor(platform Platform) error {
	if p.variants() != 1 {
		return fmt.Errorf("%w: exactly one parameter set expected, got %d", ErrInvalidRecord, p.variants())
	}
	switch platform {
	case AWS, GCP:
		if p.IPI == nil {
			return fmt.Errorf("%w: %s requires ipi parameters", ErrInvalidRecord, platform)
		}
		if p.IPI.BaseDomain == "" {
			return fmt.Errorf("%w: %s requires base-domain", ErrInvalidRecord, platform)
		}
		if platform == GCP && p.IPI.GCPProjectID == "" {
			return fmt.Errorf("%w: gcp requires gcp-project-id", ErrInvalidRecord)
		}
	case ROSA, AWSOSD, GCPOSD:
		if p.Managed == nil {
			return fmt.Errorf("%w: %s requires managed parameters", ErrInvalidRecord, platform)
		}
		if platform == GCPOSD && p.Managed.GCPServiceAccountFile == "" {
			return fmt.Errorf("%w: gcp-osd requires gcp-service-account-file", ErrInvalidRecord)
		}
	case Hypershift:
		if p.Hosted == nil {
			return fmt.Errorf("%w: %s requires hosted parameters", ErrInvalidRecord, platform)
		}
	}
	return nil
}

func (p Parameters) clone() Parameters {
	var out Parameters
	if p.IPI != nil {
		ipi := *p.IPI
		out.IPI = &ipi
	}
	if p.Managed != nil {
		m := *p.Managed
		out.Managed = &m
	}
	if p.Hosted != nil {
		h := *p.Hosted
		h.AvailabilityZones = append([]string(nil), p.Hosted.AvailabilityZones...)
		h.SubnetIDs = append([]string(nil), p.Hosted.SubnetIDs...)
		out.Hosted = &h
	}
	return out
}

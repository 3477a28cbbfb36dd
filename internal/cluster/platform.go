package cluster

import (
	"fmt"

	"github.com/imamik/ocp-installer/internal/version"
)

// Platform is the backend a cluster runs on.
type Platform string

const (
	// AWS is a self-hosted installer provisioned cluster on AWS.
	AWS Platform = "aws"
	// GCP is a self-hosted installer provisioned cluster on GCP.
	GCP Platform = "gcp"
	// ROSA is a managed cluster on AWS created with the rosa CLI.
	ROSA Platform = "rosa"
	// AWSOSD is a managed cluster on AWS created through the management API.
	AWSOSD Platform = "aws-osd"
	// GCPOSD is a managed cluster on GCP created through the management API.
	GCPOSD Platform = "gcp-osd"
	// Hypershift is a hosted control plane cluster on AWS.
	Hypershift Platform = "hypershift"
)

// Platforms returns every supported platform.
func Platforms() []Platform {
	return []Platform{AWS, GCP, ROSA, AWSOSD, GCPOSD, Hypershift}
}

// ParsePlatform validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unsupported platform %q (supported: %v)", ErrInvalidRecord, s, Platforms())
	}
	return p, nil
}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case AWS, GCP, ROSA, AWSOSD, GCPOSD, Hypershift:
		return true
	}
	return false
}

// Family returns the release family of the platform.
func (p Platform) Family() version.Family {
	switch p {
	case AWS, GCP:
		return version.FamilyIPI
	case AWSOSD, GCPOSD:
		return version.FamilyOSD
	case ROSA:
		return version.FamilyROSA
	case Hypershift:
		return version.FamilyHosted
	}
	return ""
}

// OnAWS reports whether the cluster lives in an AWS account.
func (p Platform) OnAWS() bool {
	return p == AWS || p == ROSA || p == AWSOSD || p == Hypershift
}

func (p Platform) String() string {
	return string(p)
}

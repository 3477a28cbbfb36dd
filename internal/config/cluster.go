package config

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// ClusterInput is one requested cluster before validation.
type ClusterInput struct {
	Name       string `mapstructure:"name"`
	NamePrefix string `mapstructure:"name-prefix"`
	Platform   string `mapstructure:"platform"`
	Region     string `mapstructure:"region"`
	AutoRegion bool   `mapstructure:"auto-region"`

	Version string `mapstructure:"version"`
	// Stream selects IPI builds; ChannelGroup is its managed counterpart.
	Stream       string `mapstructure:"stream"`
	ChannelGroup string `mapstructure:"channel-group"`

	Timeout        string `mapstructure:"timeout"`
	OCMEnv         string `mapstructure:"ocm-env"`
	ExpirationTime string `mapstructure:"expiration-time"`

	// Installer provisioned.
	BaseDomain         string `mapstructure:"base-domain"`
	WorkerFlavor       string `mapstructure:"worker-flavor"`
	WorkerRootDiskSize int    `mapstructure:"worker-root-disk-size"`
	WorkerReplicas     int    `mapstructure:"worker-replicas"`
	FIPS               bool   `mapstructure:"fips"`
	LogLevel           string `mapstructure:"log-level"`
	GCPProjectID       string `mapstructure:"gcp-project-id"`

	// Managed and hosted.
	ComputeMachineType    string   `mapstructure:"compute-machine-type"`
	Replicas              int      `mapstructure:"replicas"`
	MultiAZ               bool     `mapstructure:"multi-az"`
	AWSAccountID          string   `mapstructure:"aws-account-id"`
	GCPServiceAccountFile string   `mapstructure:"gcp-service-account-file"`
	CIDR                  string   `mapstructure:"cidr"`
	AvailabilityZones     []string `mapstructure:"availability-zones"`
}

// legacyKeys are accepted spellings of current keys.
var legacyKeys = map[string]string{
	"log_level": "log-level",
}

// DecodeCluster decodes one cluster mapping. Values are weakly typed, so
// "true" and "3" from --cluster flags become bool and int; unknown keys
// are rejected.
func DecodeCluster(raw map[string]any) (ClusterInput, error) {
	m := make(map[string]any, len(raw))
	for k, v := range raw {
		if renamed, ok := legacyKeys[k]; ok {
			k = renamed
		}
		m[k] = v
	}

	var c ClusterInput
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return c, err
	}
	if err := dec.Decode(m); err != nil {
		return c, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return c, nil
}

// DisplayName names the cluster in errors before its name is final.
func (c ClusterInput) DisplayName() string {
	switch {
	case c.Name != "":
		return c.Name
	case c.NamePrefix != "":
		return c.NamePrefix + "-*"
	}
	return "<unnamed>"
}

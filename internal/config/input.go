package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Actions.
const (
	ActionCreate  = "create"
	ActionDestroy = "destroy"
)

// DefaultDataDir is where cluster working directories are created.
const DefaultDataDir = "/openshift-cli-installer/clusters-install-data"

// Keys of the input settings. Flags share these names.
const (
	KeyClustersFile       = "clusters-yaml-config-file"
	KeyClusters           = "clusters"
	KeyCluster            = "cluster"
	KeyParallel           = "parallel"
	KeyMaxConcurrency     = "max-concurrency"
	KeyDataDir            = "clusters-install-data-directory"
	KeyDryRun             = "dry-run"
	KeyKeepData           = "keep-data"
	KeyOCMToken           = "ocm-token"
	KeyAWSAccessKeyID     = "aws-access-key-id"
	KeyAWSSecretAccessKey = "aws-secret-access-key"
	KeyAWSAccountID       = "aws-account-id"
	KeyGCPServiceAccount  = "gcp-service-account-file"
	KeyS3BucketName       = "s3-bucket-name"
	KeyS3BucketPath       = "s3-bucket-path"
	KeyS3Endpoint         = "s3-endpoint"
	KeyRegistryConfigFile = "registry-config-file"
	KeyDockerConfigFile   = "docker-config-file"
	KeySSHKeyFile         = "ssh-key-file"
	KeyMetricsFile        = "metrics-file"
	KeyVerbosity          = "verbosity"
)

// envBindings maps settings to the environment variables read for them.
var envBindings = map[string]string{
	KeyOCMToken:           "OCM_TOKEN",
	KeyAWSAccessKeyID:     "AWS_ACCESS_KEY_ID",
	KeyAWSSecretAccessKey: "AWS_SECRET_ACCESS_KEY",
	KeyAWSAccountID:       "AWS_ACCOUNT_ID",
	KeyS3BucketName:       "S3_BUCKET_NAME",
	KeyS3BucketPath:       "S3_BUCKET_PATH",
	KeyS3Endpoint:         "S3_ENDPOINT",
	KeyGCPServiceAccount:  "GCP_SERVICE_ACCOUNT_FILE",
	KeyRegistryConfigFile: "REGISTRY_CONFIG_FILE",
	KeyDockerConfigFile:   "DOCKER_CONFIG_FILE",
	KeySSHKeyFile:         "SSH_KEY_FILE",
	KeyDataDir:            "CLUSTERS_INSTALL_DATA_DIRECTORY",
}

// Input is the run-wide user input.
type Input struct {
	Clusters       []ClusterInput `mapstructure:"-"`
	Parallel       bool           `mapstructure:"parallel"`
	MaxConcurrency int            `mapstructure:"max-concurrency"`
	DataDir        string         `mapstructure:"clusters-install-data-directory"`
	DryRun         bool           `mapstructure:"dry-run"`
	KeepData       bool           `mapstructure:"keep-data"`
	MetricsFile    string         `mapstructure:"metrics-file"`
	Verbosity      int            `mapstructure:"verbosity"`

	OCMToken           string `mapstructure:"ocm-token"`
	AWSAccessKeyID     string `mapstructure:"aws-access-key-id"`
	AWSSecretAccessKey string `mapstructure:"aws-secret-access-key"`
	AWSAccountID       string `mapstructure:"aws-account-id"`
	GCPServiceAccount  string `mapstructure:"gcp-service-account-file"`

	S3BucketName string `mapstructure:"s3-bucket-name"`
	S3BucketPath string `mapstructure:"s3-bucket-path"`
	S3Endpoint   string `mapstructure:"s3-endpoint"`

	RegistryConfigFile string `mapstructure:"registry-config-file"`
	DockerConfigFile   string `mapstructure:"docker-config-file"`
	SSHKeyFile         string `mapstructure:"ssh-key-file"`
}

// NewViper returns a viper instance with the environment bindings and
// defaults of the installer.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	v.SetDefault(KeyDataDir, DefaultDataDir)
	return v
}

// Load reads the input from v. When the clusters file setting is set, the
// file is merged below flags and environment.
func Load(v *viper.Viper) (*Input, error) {
	if file := v.GetString(KeyClustersFile); file != "" {
		v.SetConfigFile(file)
		v.SetConfigType(strings.TrimPrefix(filepath.Ext(file), "."))
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrInvalidInput, file, err)
		}
	}

	var in Input
	if err := v.Unmarshal(&in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	raw, err := clusterMaps(v)
	if err != nil {
		return nil, err
	}
	for i, m := range raw {
		c, err := DecodeCluster(m)
		if err != nil {
			return nil, fmt.Errorf("cluster %d: %w", i+1, err)
		}
		in.Clusters = append(in.Clusters, c)
	}
	// A single cluster never runs in parallel.
	if len(in.Clusters) <= 1 {
		in.Parallel = false
	}
	return &in, nil
}

// clusterMaps returns the clusters given as flags, or else the ones of the file.
func clusterMaps(v *viper.Viper) ([]map[string]any, error) {
	if flags := v.GetStringSlice(KeyCluster); len(flags) > 0 {
		out := make([]map[string]any, 0, len(flags))
		for _, f := range flags {
			m, err := ParseClusterFlag(f)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}

	var out []map[string]any
	if err := mapstructure.Decode(v.Get(KeyClusters), &out); err != nil {
		return nil, fmt.Errorf("%w: clusters must be a list of mappings: %w", ErrInvalidInput, err)
	}
	return out, nil
}

// ParseClusterFlag parses a --cluster value of the form
// "name=a;platform=rosa;region=us-east-2".
func ParseClusterFlag(s string) (map[string]any, error) {
	out := map[string]any{}
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: cluster option %q is not key=value", ErrInvalidInput, pair)
		}
		out[key] = strings.TrimSpace(value)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty cluster option", ErrInvalidInput)
	}
	return out, nil
}

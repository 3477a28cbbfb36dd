//go:build e2e

package e2e

import (
	"os"
	"strings"
)

// E2EConfig controls which clusters the lifecycle tests create.
type E2EConfig struct {
	// Platforms lists the platforms to run, one cluster each.
	Platforms    []string
	Region       string
	Version      string
	ChannelGroup string

	// KeepClusters skips the destroy step so the clusters can be inspected.
	KeepClusters bool
	// DataDir keeps the install data outside the test temp dir when set.
	DataDir string
}

// LoadE2EConfig loads configuration from environment variables.
func LoadE2EConfig() *E2EConfig {
	return &E2EConfig{
		Platforms:    getEnvList("E2E_PLATFORMS", "rosa"),
		Region:       getEnv("E2E_REGION", "us-east-2"),
		Version:      getEnv("E2E_VERSION", "4.15"),
		ChannelGroup: getEnv("E2E_CHANNEL_GROUP", "stable"),
		KeepClusters: getEnvBool("E2E_KEEP_CLUSTERS"),
		DataDir:      os.Getenv("E2E_DATA_DIR"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	return strings.Split(getEnv(key, fallback), ",")
}

// getEnvBool returns true if the environment variable is set to "true" (case-insensitive).
func getEnvBool(key string) bool {
	val := strings.ToLower(os.Getenv(key))
	return val == "true" || val == "1" || val == "yes"
}

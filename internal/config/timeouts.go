package config

import (
	"os"
	"strconv"
	"time"
)

// Timeouts holds the tunable waits of the external collaborators.
// These values can be customized via environment variables.
type Timeouts struct {
	PollInterval      time.Duration // Interval between cluster state polls
	CatalogFetch      time.Duration // Timeout for one release catalog fetch
	Destroy           time.Duration // Cap on the budget of a rollback or destroy; zero keeps each cluster's timeout
	RetryMaxAttempts  int           // Maximum number of retry attempts
	RetryInitialDelay time.Duration // Initial delay between retries
}

// LoadTimeouts loads timeout configuration from environment variables.
// If an environment variable is not set or invalid, a default value is used.
//
// Environment Variables:
//   - OCP_INSTALLER_POLL_INTERVAL (default: 30s)
//   - OCP_INSTALLER_TIMEOUT_CATALOG_FETCH (default: 2m)
//   - OCP_INSTALLER_TIMEOUT_DESTROY (default: unset, the cluster's own timeout)
//   - OCP_INSTALLER_RETRY_MAX_ATTEMPTS (default: 5)
//   - OCP_INSTALLER_RETRY_INITIAL_DELAY (default: 1s)
func LoadTimeouts() *Timeouts {
	return &Timeouts{
		PollInterval:      parseDuration("OCP_INSTALLER_POLL_INTERVAL", 30*time.Second),
		CatalogFetch:      parseDuration("OCP_INSTALLER_TIMEOUT_CATALOG_FETCH", 2*time.Minute),
		Destroy:           parseDuration("OCP_INSTALLER_TIMEOUT_DESTROY", 0),
		RetryMaxAttempts:  parseInt("OCP_INSTALLER_RETRY_MAX_ATTEMPTS", 5),
		RetryInitialDelay: parseDuration("OCP_INSTALLER_RETRY_INITIAL_DELAY", 1*time.Second),
	}
}

// parseDuration parses a duration from an environment variable.
// Bare integers are taken as seconds. If the variable is not set or
// parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}

package config

import (
	"testing"
	"time"
)

func clearTimeoutEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OCP_INSTALLER_POLL_INTERVAL",
		"OCP_INSTALLER_TIMEOUT_CATALOG_FETCH",
		"OCP_INSTALLER_TIMEOUT_DESTROY",
		"OCP_INSTALLER_RETRY_MAX_ATTEMPTS",
		"OCP_INSTALLER_RETRY_INITIAL_DELAY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadTimeouts_Defaults(t *testing.T) {
	clearTimeoutEnvVars(t)

	timeouts := LoadTimeouts()

	if timeouts.PollInterval != 30*time.Second {
		t.Errorf("Expected PollInterval default 30s, got %v", timeouts.PollInterval)
	}
	if timeouts.CatalogFetch != 2*time.Minute {
		t.Errorf("Expected CatalogFetch default 2m, got %v", timeouts.CatalogFetch)
	}
	if timeouts.Destroy != 0 {
		t.Errorf("Expected Destroy unset by default, got %v", timeouts.Destroy)
	}
	if timeouts.RetryMaxAttempts != 5 {
		t.Errorf("Expected RetryMaxAttempts default 5, got %d", timeouts.RetryMaxAttempts)
	}
	if timeouts.RetryInitialDelay != 1*time.Second {
		t.Errorf("Expected RetryInitialDelay default 1s, got %v", timeouts.RetryInitialDelay)
	}
}

func TestLoadTimeouts_EnvVars(t *testing.T) {
	clearTimeoutEnvVars(t)

	t.Setenv("OCP_INSTALLER_POLL_INTERVAL", "5s")
	t.Setenv("OCP_INSTALLER_TIMEOUT_CATALOG_FETCH", "90")
	t.Setenv("OCP_INSTALLER_TIMEOUT_DESTROY", "2h")
	t.Setenv("OCP_INSTALLER_RETRY_MAX_ATTEMPTS", "10")
	t.Setenv("OCP_INSTALLER_RETRY_INITIAL_DELAY", "2s")

	timeouts := LoadTimeouts()

	if timeouts.PollInterval != 5*time.Second {
		t.Errorf("Expected PollInterval 5s, got %v", timeouts.PollInterval)
	}
	if timeouts.CatalogFetch != 90*time.Second {
		t.Errorf("Expected CatalogFetch 90s, got %v", timeouts.CatalogFetch)
	}
	if timeouts.Destroy != 2*time.Hour {
		t.Errorf("Expected Destroy 2h, got %v", timeouts.Destroy)
	}
	if timeouts.RetryMaxAttempts != 10 {
		t.Errorf("Expected RetryMaxAttempts 10, got %d", timeouts.RetryMaxAttempts)
	}
	if timeouts.RetryInitialDelay != 2*time.Second {
		t.Errorf("Expected RetryInitialDelay 2s, got %v", timeouts.RetryInitialDelay)
	}
}

func TestLoadTimeouts_InvalidEnvVars(t *testing.T) {
	clearTimeoutEnvVars(t)

	t.Setenv("OCP_INSTALLER_POLL_INTERVAL", "soon")
	t.Setenv("OCP_INSTALLER_TIMEOUT_DESTROY", "-5m")
	t.Setenv("OCP_INSTALLER_RETRY_MAX_ATTEMPTS", "many")

	timeouts := LoadTimeouts()

	if timeouts.PollInterval != 30*time.Second {
		t.Errorf("Expected PollInterval fallback 30s, got %v", timeouts.PollInterval)
	}
	if timeouts.Destroy != 0 {
		t.Errorf("Expected Destroy fallback to unset, got %v", timeouts.Destroy)
	}
	if timeouts.RetryMaxAttempts != 5 {
		t.Errorf("Expected RetryMaxAttempts fallback 5, got %d", timeouts.RetryMaxAttempts)
	}
}

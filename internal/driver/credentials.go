package driver

import (
	"fmt"
	"os"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/util/naming"
)

// SaveCredentials writes the admin kubeconfig and password into the
// record's auth directory.
func SaveCredentials(rec *cluster.Record, kubeconfig, password string) error {
	if err := os.MkdirAll(naming.AuthDir(rec.Dir), 0o700); err != nil {
		return fmt.Errorf("create auth directory: %w", err)
	}
	if kubeconfig != "" {
		if err := os.WriteFile(naming.Kubeconfig(rec.Dir), []byte(kubeconfig), 0o600); err != nil {
			return fmt.Errorf("write kubeconfig: %w", err)
		}
	}
	if password != "" {
		if err := os.WriteFile(naming.KubeadminPassword(rec.Dir), []byte(password), 0o600); err != nil {
			return fmt.Errorf("write kubeadmin password: %w", err)
		}
	}
	return nil
}

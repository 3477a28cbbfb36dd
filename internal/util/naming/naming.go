package naming

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SnapshotFile is the name of the record snapshot inside a cluster directory.
const SnapshotFile = "cluster_data.yaml"

// ArchiveExt is the extension of remote cluster archives.
const ArchiveExt = ".zip"

func ClusterDir(dataDir, platform, cluster string) string {
	return filepath.Join(dataDir, platform, cluster)
}

func AuthDir(clusterDir string) string {
	return filepath.Join(clusterDir, "auth")
}

func Kubeconfig(clusterDir string) string {
	return filepath.Join(AuthDir(clusterDir), "kubeconfig")
}

func KubeadminPassword(clusterDir string) string {
	return filepath.Join(AuthDir(clusterDir), "kubeadmin-password")
}

func Snapshot(clusterDir string) string {
	return filepath.Join(clusterDir, SnapshotFile)
}

// ShortID returns a short random identifier.
func ShortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// BackupKey returns the object key of a cluster archive.
func BackupKey(prefix, cluster, id string) string {
	return path.Join(prefix, cluster+"-"+id+ArchiveExt)
}

// IsBackupKey reports whether key names a cluster archive.
func IsBackupKey(key string) bool {
	return strings.HasSuffix(key, ArchiveExt)
}

// OIDCPrefix is the prefix of the OIDC config created for a hosted cluster.
func OIDCPrefix(cluster string) string {
	return cluster
}

// TerraformDir is where the hosted cluster VPC module runs.
func TerraformDir(clusterDir string) string {
	return filepath.Join(clusterDir, "terraform")
}

// InstallerDirName holds the extracted installer binary inside a cluster
// directory. It is re-extracted from the release image and never archived.
const InstallerDirName = ".installer"

// InstallerDir is where the installer binary of a cluster is extracted.
func InstallerDir(clusterDir string) string {
	return filepath.Join(clusterDir, InstallerDirName)
}

// SSHDir holds the generated node key pair of a cluster.
func SSHDir(clusterDir string) string {
	return filepath.Join(clusterDir, "ssh")
}

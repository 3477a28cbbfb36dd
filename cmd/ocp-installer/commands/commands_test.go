package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ocp-installer/internal/config"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "ocp-installer", cmd.Use)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}
	for _, expected := range []string{"create", "destroy", "version", "completion"} {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
	assert.Len(t, cmd.Commands(), 4)
}

func TestRoot_RunFlags(t *testing.T) {
	cmd := Root()

	for _, name := range []string{
		config.KeyClustersFile, config.KeyCluster, config.KeyParallel, config.KeyMaxConcurrency,
		config.KeyDataDir, config.KeyDryRun, config.KeyKeepData, config.KeyMetricsFile,
		config.KeyOCMToken, config.KeyS3BucketName, config.KeyS3Endpoint, config.KeyRegistryConfigFile,
	} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), "flag %s", name)
	}

	flag := cmd.PersistentFlags().Lookup(config.KeyCluster)
	assert.Equal(t, "c", flag.Shorthand)
	assert.Equal(t, "stringArray", flag.Value.Type())
	assert.Equal(t, config.DefaultDataDir, cmd.PersistentFlags().Lookup(config.KeyDataDir).DefValue)
}

func TestCreate_DryRun(t *testing.T) {
	root := Root()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"create", "--dry-run",
		"--ocm-token", "offline-token",
		"--" + config.KeyDataDir, t.TempDir(),
		"-c", "name=ci-rosa;platform=rosa;region=us-east-2;version=4.15;channel-group=candidate",
		"-c", "name=ci-hcp;platform=hypershift;region=us-east-2;version=4.15",
	})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Dry run: create 2 cluster(s)")
	assert.Contains(t, out.String(), "ci-rosa")
	assert.Contains(t, out.String(), "candidate")
	assert.Contains(t, out.String(), "ci-hcp")
}

func TestCreate_InvalidClusterFlag(t *testing.T) {
	root := Root()
	root.SetArgs([]string{"create", "--dry-run", "-c", "name"})

	err := root.Execute()
	assert.ErrorIs(t, err, config.ErrInvalidInput)
}

func TestDestroy_SourceFlags(t *testing.T) {
	cmd := Destroy(config.NewViper())

	for _, name := range []string{
		"destroy-clusters-from-s3-bucket",
		"destroy-clusters-from-s3-bucket-query",
		"destroy-clusters-from-install-data-directory",
		"destroy-clusters-from-install-data-directory-using-s3-bucket",
		"s3-bucket-object-name",
	} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestDestroy_SourcesAreExclusive(t *testing.T) {
	root := Root()
	root.SetArgs([]string{
		"destroy",
		"--destroy-clusters-from-s3-bucket",
		"--destroy-clusters-from-install-data-directory",
	})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestDestroy_DryRunFromDataDir(t *testing.T) {
	root := Root()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{
		"destroy", "--dry-run",
		"--destroy-clusters-from-install-data-directory",
		"--" + config.KeyDataDir, t.TempDir(),
	})

	require.NoError(t, root.Execute())
	assert.Empty(t, out.String())
}

func TestVersion(t *testing.T) {
	origVersion, origCommit, origDate := version, commit, date
	defer func() {
		version, commit, date = origVersion, origCommit, origDate
	}()

	SetVersionInfo("1.2.3", "abc123", "2026-01-01")

	cmd := Version()
	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())

	assert.Contains(t, out.String(), "ocp-installer 1.2.3")
	assert.Contains(t, out.String(), "commit: abc123")
	assert.Contains(t, out.String(), "built:  2026-01-01")
}

func TestCompletion(t *testing.T) {
	cmd := Completion()

	assert.Equal(t, []string{"bash", "zsh", "fish", "powershell"}, cmd.ValidArgs)
	assert.True(t, cmd.DisableFlagsInUseLine)

	root := Root()
	root.SetArgs([]string{"completion", "bash"})
	assert.NoError(t, root.Execute())
}

package ipi

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sigs.k8s.io/yaml"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/platform/installer"
	"github.com/imamik/ocp-installer/internal/platform/kube"
	testutil "github.com/imamik/ocp-installer/internal/testing"
	"github.com/imamik/ocp-installer/internal/util/keygen"
	"github.com/imamik/ocp-installer/internal/util/naming"
)

type fakeInstaller struct {
	calls     []string
	CreateErr error
	// OnCreate runs during create, before the result is returned.
	OnCreate func(dir string)
}

func (f *fakeInstaller) CreateCluster(_ context.Context, dir, logLevel string) error {
	f.calls = append(f.calls, "create "+logLevel)
	if f.OnCreate != nil {
		f.OnCreate(dir)
	}
	return f.CreateErr
}

func (f *fakeInstaller) WaitForInstall(_ context.Context, _, logLevel string) error {
	f.calls = append(f.calls, "wait "+logLevel)
	return nil
}

func (f *fakeInstaller) DestroyCluster(_ context.Context, _, logLevel string) error {
	f.calls = append(f.calls, "destroy "+logLevel)
	return nil
}

type fakeReader struct {
	info kube.ClusterInfo
	err  error
}

func (f fakeReader) Info(context.Context) (kube.ClusterInfo, error) {
	return f.info, f.err
}

func readInstallConfig(t *testing.T, dir string) installer.InstallConfig {
	t.Helper()
	data, err := os.ReadFile(installer.InstallConfigPath(dir))
	require.NoError(t, err)
	var cfg installer.InstallConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	return cfg
}

type harness struct {
	inst      *fakeInstaller
	extracted []string
	drv       *Driver
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	dir := t.TempDir()
	pull := filepath.Join(dir, "pull.json")
	require.NoError(t, os.WriteFile(pull, []byte(`{"auths":{"quay.io":{"auth":"eA=="}}}`), 0o600))

	h := &harness{inst: &fakeInstaller{}}
	opts.Resolver = testutil.StaticResolver{Build: "4.15.8", Source: "amd64.ocp.releases.ci.openshift.org"}
	opts.Extract = func(_ context.Context, _ *cluster.Record, image, _ string) (Installer, error) {
		h.extracted = append(h.extracted, image)
		return h.inst, nil
	}
	if opts.Reader == nil {
		opts.Reader = func(string) (InfoReader, error) {
			return fakeReader{info: kube.ClusterInfo{
				ID:         "c0ffee",
				APIURL:     "https://api.demo.example.com:6443",
				ConsoleURL: "https://console-openshift-console.apps.demo.example.com",
			}}, nil
		}
	}
	opts.PullSecrets = append([]string{pull}, opts.PullSecrets...)
	h.drv = New(opts)
	return h
}

func TestCreate(t *testing.T) {
	pair, err := keygen.Generate("ci")
	require.NoError(t, err)
	sshKey := strings.TrimSpace(string(pair.PublicKey))
	keyFile := filepath.Join(t.TempDir(), "id.pub")
	require.NoError(t, os.WriteFile(keyFile, pair.PublicKey, 0o600))

	rec := testutil.WithDir(t, testutil.NewRecordBuilder("demo", cluster.AWS).InDir(t.TempDir()).Build())
	th := testutil.NewHarness(t, rec)
	h := newHarness(t, Options{SSHPublicKey: keyFile})

	h.inst.OnCreate = func(dir string) {
		cfg := readInstallConfig(t, dir)
		assert.Equal(t, "example.com", cfg.BaseDomain)
		assert.Equal(t, sshKey, cfg.SSHKey)
		assert.Equal(t, cluster.PhaseProvisioning, th.Checkpoints.Last().Phase)
	}

	got, err := h.drv.Create(th.Context)
	require.NoError(t, err)

	assert.Equal(t, []string{"quay.io/openshift-release-dev/ocp-release:4.15.8-x86_64"}, h.extracted)
	assert.Equal(t, []string{"create "}, h.inst.calls)
	assert.Equal(t, "quay.io/openshift-release-dev/ocp-release:4.15.8-x86_64", got.Parameters.IPI.ReleaseImage)
	assert.Equal(t, "c0ffee", got.ClusterID)
	assert.Equal(t, "https://api.demo.example.com:6443", got.APIURL)
	assert.Equal(t, "https://console-openshift-console.apps.demo.example.com", got.ConsoleURL)
	assert.True(t, got.ReachedProvisioning)
}

func TestCreate_GeneratesSSHKey(t *testing.T) {
	rec := testutil.WithDir(t, testutil.NewRecordBuilder("demo", cluster.GCP).InDir(t.TempDir()).Build())
	th := testutil.NewHarness(t, rec)
	h := newHarness(t, Options{})

	_, err := h.drv.Create(th.Context)
	require.NoError(t, err)

	pub, err := os.ReadFile(filepath.Join(naming.SSHDir(rec.Dir), "id_ed25519.pub"))
	require.NoError(t, err)
	cfg := readInstallConfig(t, rec.Dir)
	assert.Equal(t, strings.TrimSpace(string(pub)), cfg.SSHKey)
	require.NotNil(t, cfg.Platform.GCP)
	assert.Equal(t, "demo-project", cfg.Platform.GCP.ProjectID)
}

func TestCreate_InvalidConfigFailsBeforeProvisioning(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "id.pub")
	require.NoError(t, os.WriteFile(keyFile, []byte("not a key"), 0o600))

	rec := testutil.WithDir(t, testutil.NewRecordBuilder("demo", cluster.AWS).InDir(t.TempDir()).Build())
	th := testutil.NewHarness(t, rec)
	h := newHarness(t, Options{SSHPublicKey: keyFile})

	_, err := h.drv.Create(th.Context)
	require.Error(t, err)
	assert.ErrorIs(t, err, installer.ErrInvalidInstallConfig)
	assert.False(t, rec.ReachedProvisioning)
	assert.Empty(t, h.inst.calls)
}

func TestCreate_InstallFailure(t *testing.T) {
	rec := testutil.WithDir(t, testutil.NewRecordBuilder("demo", cluster.AWS).InDir(t.TempDir()).Build())
	th := testutil.NewHarness(t, rec)
	h := newHarness(t, Options{})
	h.inst.CreateErr = errors.New("bootstrap failed")

	_, err := h.drv.Create(th.Context)
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrProvisioningFailed)
	assert.True(t, rec.ReachedProvisioning)
	assert.Equal(t, cluster.PhaseProvisioning, rec.Phase)
}

func TestCreate_ClusterInfoFailure(t *testing.T) {
	rec := testutil.WithDir(t, testutil.NewRecordBuilder("demo", cluster.AWS).InDir(t.TempDir()).Build())
	th := testutil.NewHarness(t, rec)
	h := newHarness(t, Options{Reader: func(string) (InfoReader, error) {
		return fakeReader{err: kube.ErrMissingField}, nil
	}})

	_, err := h.drv.Create(th.Context)
	require.Error(t, err)
	assert.ErrorIs(t, err, cluster.ErrReadinessWaitFailed)
	assert.ErrorIs(t, err, kube.ErrMissingField)
}

func TestCreate_ResumeWaitsForInstall(t *testing.T) {
	rec := testutil.NewRecordBuilder("demo", cluster.AWS).
		WithVersion("4.16.0-0.nightly-2024-05-01-111315").
		WithPhase(cluster.PhaseProvisioning).
		InDir(t.TempDir()).
		Build()
	th := testutil.NewHarness(t, rec)
	h := newHarness(t, Options{})

	_, err := h.drv.Create(th.Context)
	require.NoError(t, err)
	assert.Equal(t, []string{"registry.ci.openshift.org/ocp/release:4.16.0-0.nightly-2024-05-01-111315"}, h.extracted)
	assert.Equal(t, []string{"wait "}, h.inst.calls)
	assert.NoFileExists(t, installer.InstallConfigPath(rec.Dir))
}

func TestDestroy(t *testing.T) {
	rec := testutil.NewRecordBuilder("demo", cluster.AWS).
		WithVersion("4.15.8").
		WithPhase(cluster.PhaseReady).
		InDir(t.TempDir()).
		Build()
	rec.Parameters.IPI.ReleaseImage = "quay.io/openshift-release-dev/ocp-release:4.15.7-x86_64"
	rec.Parameters.IPI.LogLevel = "debug"
	require.NoError(t, os.MkdirAll(rec.Dir, 0o700))
	require.NoError(t, os.WriteFile(installer.MetadataPath(rec.Dir), []byte(`{"clusterName":"demo"}`), 0o600))
	th := testutil.NewHarness(t, rec)
	h := newHarness(t, Options{})

	require.NoError(t, h.drv.Destroy(th.Context))
	assert.Equal(t, []string{"quay.io/openshift-release-dev/ocp-release:4.15.7-x86_64"}, h.extracted)
	assert.Equal(t, []string{"destroy debug"}, h.inst.calls)
}

func TestDestroy_NothingInstalled(t *testing.T) {
	rec := testutil.NewRecordBuilder("demo", cluster.AWS).InDir(t.TempDir()).Build()
	th := testutil.NewHarness(t, rec)
	h := newHarness(t, Options{})

	require.NoError(t, h.drv.Destroy(th.Context))
	assert.Empty(t, h.extracted)
	assert.Empty(t, h.inst.calls)
}

func TestReleaseImage(t *testing.T) {
	rec := testutil.NewRecordBuilder("demo", cluster.AWS).Build()
	assert.Empty(t, ReleaseImage(rec))

	rec.Version = "4.15.8"
	assert.Equal(t, "quay.io/openshift-release-dev/ocp-release:4.15.8-x86_64", ReleaseImage(rec))

	rec.Parameters.IPI.ReleaseImage = "example.com/release:custom"
	assert.Equal(t, "example.com/release:custom", ReleaseImage(rec))
}

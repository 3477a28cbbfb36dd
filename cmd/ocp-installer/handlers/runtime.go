// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/imamik/ocp-installer/internal/cluster"
	"github.com/imamik/ocp-installer/internal/config"
	"github.com/imamik/ocp-installer/internal/driver"
	"github.com/imamik/ocp-installer/internal/driver/hosted"
	"github.com/imamik/ocp-installer/internal/driver/ipi"
	"github.com/imamik/ocp-installer/internal/driver/managed"
	"github.com/imamik/ocp-installer/internal/platform/aws"
	"github.com/imamik/ocp-installer/internal/platform/execrun"
	"github.com/imamik/ocp-installer/internal/platform/installer"
	"github.com/imamik/ocp-installer/internal/platform/minio"
	"github.com/imamik/ocp-installer/internal/platform/ocm"
	"github.com/imamik/ocp-installer/internal/platform/rosa"
	"github.com/imamik/ocp-installer/internal/platform/s3"
	"github.com/imamik/ocp-installer/internal/platform/terraform"
	"github.com/imamik/ocp-installer/internal/state"
	"github.com/imamik/ocp-installer/internal/util/naming"
	"github.com/imamik/ocp-installer/internal/version"
)

// defaultS3Region is the region of the archive bucket client.
const defaultS3Region = "us-east-1"

// RegionService looks up AWS regions for validation and auto-region.
// Implemented by *aws.Regions.
type RegionService interface {
	Validate(ctx context.Context, region string) error
	LeastCrowded(ctx context.Context, candidates []string) (string, error)
}

// Factory function variables - can be replaced in tests.
var (
	newRegions = func(ctx context.Context, in *config.Input) (RegionService, error) {
		clients, err := aws.NewClientFactory(ctx, aws.Credentials{
			AccessKeyID:     in.AWSAccessKeyID,
			SecretAccessKey: in.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return aws.NewRegions(clients), nil
	}

	newObjectStore = defaultObjectStore

	newDrivers = defaultDrivers
)

// defaultObjectStore returns a MinIO client when an endpoint is configured
// and an AWS S3 client otherwise.
func defaultObjectStore(ctx context.Context, in *config.Input) (state.ObjectStore, error) {
	if in.S3Endpoint != "" {
		endpoint, secure := splitEndpoint(in.S3Endpoint)
		client, err := minio.NewClient(minio.Config{
			Endpoint:  endpoint,
			AccessKey: in.AWSAccessKeyID,
			SecretKey: in.AWSSecretAccessKey,
			Region:    defaultS3Region,
			UseSSL:    secure,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	client, err := s3.NewClient(ctx, s3.Options{
		Region:    defaultS3Region,
		AccessKey: in.AWSAccessKeyID,
		SecretKey: in.AWSSecretAccessKey,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// splitEndpoint strips the scheme of endpoint. Endpoints without a scheme
// use TLS.
func splitEndpoint(endpoint string) (string, bool) {
	if host, ok := strings.CutPrefix(endpoint, "http://"); ok {
		return strings.TrimRight(host, "/"), false
	}
	return strings.TrimRight(strings.TrimPrefix(endpoint, "https://"), "/"), true
}

// bucketChecker is implemented by object stores that can tell a missing
// bucket from an empty one.
type bucketChecker interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
}

// remoteStore returns the archive store of the run, or nil when no bucket
// is configured.
func remoteStore(ctx context.Context, in *config.Input) (*state.RemoteStore, error) {
	if in.S3BucketName == "" {
		return nil, nil
	}
	objects, err := newObjectStore(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}
	if checker, ok := objects.(bucketChecker); ok {
		exists, err := checker.BucketExists(ctx, in.S3BucketName)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: bucket %s does not exist", config.ErrInvalidInput, in.S3BucketName)
		}
	}
	return state.NewRemoteStore(objects, in.S3BucketPath), nil
}

// clients hands out collaborators shared by the clusters of one run.
type clients struct {
	ctx      context.Context
	in       *config.Input
	runner   execrun.Runner
	timeouts *config.Timeouts

	mu  sync.Mutex
	ocm map[string]*ocm.Client
}

func newClients(ctx context.Context, in *config.Input) *clients {
	return &clients{
		ctx:      ctx,
		in:       in,
		runner:   execrun.NewExec(),
		timeouts: config.LoadTimeouts(),
		ocm:      make(map[string]*ocm.Client),
	}
}

// ocmClient returns the management API client of env, one per environment.
func (c *clients) ocmClient(env string) (*ocm.Client, error) {
	base, err := ocm.BaseURL(env)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.ocm[env]; ok {
		return client, nil
	}
	client := ocm.NewClient(c.ctx, ocm.Options{BaseURL: base, Token: c.in.OCMToken}, c.timeouts)
	c.ocm[env] = client
	return client, nil
}

// rosaClient returns a rosa client logged into env and scoped to region.
// configDir keeps the login state apart from other sessions.
func (c *clients) rosaClient(env, region, configDir string) (*rosa.Client, error) {
	base, err := ocm.BaseURL(env)
	if err != nil {
		return nil, err
	}
	return rosa.NewClient(c.runner, rosa.Session{
		Region:             region,
		OCMToken:           c.in.OCMToken,
		OCMURL:             base,
		AWSAccessKeyID:     c.in.AWSAccessKeyID,
		AWSSecretAccessKey: c.in.AWSSecretAccessKey,
		ConfigDir:          configDir,
	}, nil), nil
}

// installerEnv is the environment openshift-install runs with for rec.
func (c *clients) installerEnv(rec *cluster.Record) map[string]string {
	env := map[string]string{}
	switch rec.Platform {
	case cluster.AWS:
		if c.in.AWSAccessKeyID != "" {
			env["AWS_ACCESS_KEY_ID"] = c.in.AWSAccessKeyID
			env["AWS_SECRET_ACCESS_KEY"] = c.in.AWSSecretAccessKey
		}
	case cluster.GCP:
		if c.in.GCPServiceAccount != "" {
			env["GOOGLE_APPLICATION_CREDENTIALS"] = c.in.GCPServiceAccount
		}
	}
	return env
}

// catalogs resolves versions against the catalogs of the requesting
// cluster's management environment. The public release feed serves every
// environment; managed and hosted catalogs are fetched once per environment.
type catalogs struct {
	public *version.Resolver
	feeds  func(env string) (map[version.Family]version.Feed, error)
	log    logr.Logger

	mu    sync.Mutex
	byEnv map[string]*version.Resolver
}

func newCatalogs(public version.Feed, feeds func(env string) (map[version.Family]version.Feed, error), log logr.Logger) *catalogs {
	return &catalogs{
		public: version.NewResolver(newCatalogCache(map[version.Family]version.Feed{version.FamilyIPI: public}, log)),
		feeds:  feeds,
		log:    log,
		byEnv:  make(map[string]*version.Resolver),
	}
}

// Resolve implements driver.VersionResolver.
func (r *catalogs) Resolve(ctx context.Context, req version.Request) (version.Resolution, error) {
	if req.Family == version.FamilyIPI {
		return r.public.Resolve(ctx, req)
	}
	resolver, err := r.forEnv(req.Env)
	if err != nil {
		return version.Resolution{}, err
	}
	return resolver.Resolve(ctx, req)
}

func (r *catalogs) forEnv(env string) (*version.Resolver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if resolver, ok := r.byEnv[env]; ok {
		return resolver, nil
	}
	feeds, err := r.feeds(env)
	if err != nil {
		return nil, err
	}
	resolver := version.NewResolver(newCatalogCache(feeds, r.log.WithValues("ocmEnv", env)))
	r.byEnv[env] = resolver
	return resolver, nil
}

func newCatalogCache(feeds map[version.Family]version.Feed, log logr.Logger) *version.Cache {
	return version.NewCache(feeds, version.WithFetchHook(func(family version.Family, stream string, err error) {
		if err != nil {
			log.Error(err, "Release catalog unavailable", "family", family, "stream", stream)
			return
		}
		log.V(1).Info("Fetched release catalog", "family", family, "stream", stream)
	}))
}

// catalogRegions maps each management environment to the region of its
// first managed or hosted cluster. rosa lists versions from that region.
func catalogRegions(records []*cluster.Record) map[string]string {
	regions := map[string]string{}
	for _, rec := range records {
		if rec.Platform.Family() == version.FamilyIPI || rec.Region == "" {
			continue
		}
		if _, ok := regions[rec.OCMEnv]; !ok {
			regions[rec.OCMEnv] = rec.Region
		}
	}
	return regions
}

// managedFeeds returns the managed and hosted catalog feeds of env.
func (c *clients) managedFeeds(env, region string) (map[version.Family]version.Feed, error) {
	if region == "" {
		return nil, fmt.Errorf("%w: no managed cluster in ocm-env %s to list versions for", config.ErrInvalidInput, env)
	}
	osd, err := c.ocmClient(env)
	if err != nil {
		return nil, err
	}
	rosaClient, err := c.rosaClient(env, region, filepath.Join(c.in.DataDir, ".rosa", env))
	if err != nil {
		return nil, err
	}
	return map[version.Family]version.Feed{
		version.FamilyOSD:    version.ChannelFeed{Lister: osd},
		version.FamilyROSA:   version.ChannelFeed{Lister: rosa.NewLister(rosaClient, false)},
		version.FamilyHosted: version.ChannelFeed{Lister: rosa.NewLister(rosaClient, true)},
	}, nil
}

// newResolver builds the version resolver of the run. Catalogs are fetched
// lazily, once per environment, family and stream.
func (c *clients) newResolver(records []*cluster.Record, log logr.Logger) *catalogs {
	regions := catalogRegions(records)
	return newCatalogs(
		version.NewReleaseControllerFeed(&http.Client{Timeout: c.timeouts.CatalogFetch}),
		func(env string) (map[version.Family]version.Feed, error) { return c.managedFeeds(env, regions[env]) },
		log,
	)
}

// defaultDrivers registers the driver of every platform family.
func defaultDrivers(ctx context.Context, in *config.Input, records []*cluster.Record, log logr.Logger) (*driver.Registry, error) {
	c := newClients(ctx, in)
	resolver := c.newResolver(records, log)

	managementAPI := func(rec *cluster.Record) (*ocm.Client, error) { return c.ocmClient(rec.OCMEnv) }
	rosaCLI := func(rec *cluster.Record) (*rosa.Client, error) {
		return c.rosaClient(rec.OCMEnv, rec.Region, rec.Dir)
	}

	pullSecrets := []string{in.RegistryConfigFile}
	if in.DockerConfigFile != "" {
		pullSecrets = append(pullSecrets, in.DockerConfigFile)
	}

	registry := driver.NewRegistry()
	registry.Register(ipi.New(ipi.Options{
		Resolver: resolver,
		Extract: func(ctx context.Context, rec *cluster.Record, image, dest string) (ipi.Installer, error) {
			inst, err := installer.Extract(ctx, c.runner, image, dest, in.RegistryConfigFile, c.installerEnv(rec), nil)
			if err != nil {
				return nil, err
			}
			return inst, nil
		},
		PullSecrets:  pullSecrets,
		SSHPublicKey: in.SSHKeyFile,
	}), ipi.Platforms()...)

	registry.Register(managed.New(managed.Options{
		Resolver: resolver,
		API: func(rec *cluster.Record) (managed.ClusterAPI, error) {
			api, err := managementAPI(rec)
			if err != nil {
				return nil, err
			}
			return api, nil
		},
		CLI: func(rec *cluster.Record) (managed.CLI, error) {
			cli, err := rosaCLI(rec)
			if err != nil {
				return nil, err
			}
			return cli, nil
		},
		Account: managed.Account{
			AWSAccountID:       in.AWSAccountID,
			AWSAccessKeyID:     in.AWSAccessKeyID,
			AWSSecretAccessKey: in.AWSSecretAccessKey,
		},
	}), managed.Platforms()...)

	registry.Register(hosted.New(hosted.Options{
		Resolver: resolver,
		API: func(rec *cluster.Record) (hosted.ClusterAPI, error) {
			api, err := managementAPI(rec)
			if err != nil {
				return nil, err
			}
			return api, nil
		},
		CLI: func(rec *cluster.Record) (hosted.CLI, error) {
			cli, err := rosaCLI(rec)
			if err != nil {
				return nil, err
			}
			return cli, nil
		},
		Network: func(rec *cluster.Record) (hosted.Network, error) {
			params := rec.Parameters.Hosted
			if params == nil {
				return nil, errors.New("hosted parameters missing")
			}
			return terraform.NewWorkspace(c.runner, naming.TerraformDir(rec.Dir), terraform.VPCSpec{
				ClusterName:       rec.Name,
				Region:            rec.Region,
				CIDR:              params.CIDR,
				AvailabilityZones: params.AvailabilityZones,
				AccessKeyID:       in.AWSAccessKeyID,
				SecretAccessKey:   in.AWSSecretAccessKey,
			}, nil), nil
		},
	}), hosted.Platforms()...)

	return registry, nil
}

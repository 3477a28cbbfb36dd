package version

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Feed queries an external release listing.
type Feed interface {
	Fetch(ctx context.Context, stream string) (*Catalog, error)
}

// FeedFunc adapts a function to the Feed interface.
type FeedFunc func(ctx context.Context, stream string) (*Catalog, error)

// Fetch implements Feed.
func (f FeedFunc) Fetch(ctx context.Context, stream string) (*Catalog, error) {
	return f(ctx, stream)
}

// Release controller mirrors serving the accepted-release API.
const (
	ReleaseControllerPrimary = "https://openshift-release.apps.ci.l2s4.p1.openshiftapps.com"
	ReleaseControllerMirror  = "https://amd64.ocp.releases.ci.openshift.org"
)

const acceptedPath = "/api/v1/releasestreams/accepted"

// ReleaseControllerFeed reads accepted builds from independent release-controller
// mirrors. Each reachable mirror becomes one catalog source, in mirror order.
// The stream is not part of the query; raw feeds carry every stream and the
// resolver filters by identifier token.
type ReleaseControllerFeed struct {
	mirrors []string
	client  *http.Client
}

// NewReleaseControllerFeed creates a feed over mirrors. A nil client uses a
// client with a 30 second timeout; no mirrors means the two public ones.
func NewReleaseControllerFeed(client *http.Client, mirrors ...string) *ReleaseControllerFeed {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if len(mirrors) == 0 {
		mirrors = []string{ReleaseControllerPrimary, ReleaseControllerMirror}
	}
	return &ReleaseControllerFeed{mirrors: mirrors, client: client}
}

// Fetch implements Feed. It fails only when no mirror returned any build.
func (f *ReleaseControllerFeed) Fetch(ctx context.Context, _ string) (*Catalog, error) {
	var (
		sources []Source
		errs    []error
	)
	for _, mirror := range f.mirrors {
		builds, err := f.accepted(ctx, mirror)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", mirror, err))
			continue
		}
		if len(builds) == 0 {
			continue
		}
		sources = append(sources, Source{Name: sourceName(mirror), Builds: builds})
	}
	if len(sources) == 0 {
		if len(errs) == 0 {
			errs = append(errs, errors.New("no accepted releases"))
		}
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, errors.Join(errs...))
	}
	return NewCatalog(sources...), nil
}

func (f *ReleaseControllerFeed) accepted(ctx context.Context, mirror string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(mirror, "/")+acceptedPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	// {"4-stable": ["4.15.8", ...], "4.16.0-0.nightly": [...], ...}
	var streams map[string][]string
	if err := json.NewDecoder(resp.Body).Decode(&streams); err != nil {
		return nil, fmt.Errorf("decode accepted releases: %w", err)
	}

	names := make([]string, 0, len(streams))
	for name := range streams {
		names = append(names, name)
	}
	sort.Strings(names)

	var builds []string
	for _, name := range names {
		builds = append(builds, streams[name]...)
	}
	return builds, nil
}

func sourceName(mirror string) string {
	u, err := url.Parse(mirror)
	if err != nil || u.Host == "" {
		return mirror
	}
	return u.Host
}

// VersionLister lists the builds offered on one channel group.
type VersionLister interface {
	ListVersions(ctx context.Context, channel string) ([]string, error)
}

// ChannelFeed turns a per-channel lister into a single-source catalog keyed
// by the channel, the shape managed platforms resolve against.
type ChannelFeed struct {
	Lister VersionLister
}

// Fetch implements Feed.
func (f ChannelFeed) Fetch(ctx context.Context, channel string) (*Catalog, error) {
	builds, err := f.Lister.ListVersions(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("%w: list %s versions: %w", ErrCatalogUnavailable, channel, err)
	}
	if len(builds) == 0 {
		return nil, fmt.Errorf("%w: channel %s offers no versions", ErrCatalogUnavailable, channel)
	}
	return NewCatalog(Source{Name: channel, Builds: builds}), nil
}

// Release image repositories.
const (
	ReleaseRepository   = "quay.io/openshift-release-dev/ocp-release"
	CIReleaseRepository = "registry.ci.openshift.org/ocp/release"
)

// ReleaseImage returns the release payload pull spec for a raw-feed build.
// Nightly and CI builds live in the CI registry; everything else is published
// with an architecture suffix.
func ReleaseImage(build string) string {
	id := Normalize(build)
	if pre, ok := prerelease(id); ok && (hasToken(pre, StreamNightly) || hasToken(pre, StreamCI)) {
		return CIReleaseRepository + ":" + id
	}
	return ReleaseRepository + ":" + id + "-x86_64"
}

package version

import (
	"context"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Resolution is the outcome of resolving a specifier against a catalog.
type Resolution struct {
	// Build is the raw catalog identifier.
	Build string
	// Source is the catalog source that offered Build.
	Source string
}

// Request asks for one build for one platform family.
type Request struct {
	Version string
	Stream  string
	Family  Family
	// Env is the management environment of the cluster. Managed and
	// hosted catalogs differ per environment.
	Env string
}

// Resolve parses the request and resolves it against catalog.
// Invalid specifiers fail before the catalog is consulted.
func Resolve(req Request, catalog *Catalog) (Resolution, error) {
	spec, err := ParseSpecifier(req.Version, req.Stream)
	if err != nil {
		return Resolution{}, err
	}
	return spec.Resolve(req.Family, catalog)
}

// Resolve selects one build for s from catalog.
//
// Exact specifiers match verbatim (after normalization) and are never upgraded;
// the first eligible source wins when mirrors carry the same build. Minor
// specifiers select the maximum semantic version among eligible builds sharing
// the major.minor prefix.
func (s Specifier) Resolve(family Family, catalog *Catalog) (Resolution, error) {
	sources := eligibleSources(family, s.Stream, catalog)
	accepts := func(id string) bool {
		return family.Partitioned() || StreamAccepts(s.Stream, id)
	}

	if s.Kind == KindExact {
		for _, src := range sources {
			for _, build := range src.Builds {
				id := Normalize(build)
				if id == s.normalized && accepts(id) {
					return Resolution{Build: build, Source: src.Name}, nil
				}
			}
		}
		return Resolution{}, s.notFound()
	}

	var (
		best   *semver.Version
		winner Resolution
	)
	for _, src := range sources {
		for _, build := range src.Builds {
			id := Normalize(build)
			if minor, ok := minorOf(id); !ok || minor != s.Minor {
				continue
			}
			if !accepts(id) {
				continue
			}
			v, err := semver.StrictNewVersion(id)
			if err != nil {
				continue
			}
			if best == nil || v.GreaterThan(best) {
				best = v
				winner = Resolution{Build: build, Source: src.Name}
			}
		}
	}
	if best == nil {
		return Resolution{}, s.notFound()
	}
	return winner, nil
}

func (s Specifier) notFound() error {
	return fmt.Errorf("%w: %s for stream %s", ErrVersionNotFound, s.Raw, s.Stream)
}

// eligibleSources restricts partitioned families to the source named after the stream.
func eligibleSources(family Family, stream string, catalog *Catalog) []Source {
	if !family.Partitioned() {
		return catalog.Sources()
	}
	src, ok := catalog.Source(stream)
	if !ok {
		return nil
	}
	return []Source{src}
}

// Resolver resolves requests against per-run cached catalogs.
type Resolver struct {
	cache *Cache
}

// NewResolver creates a resolver backed by cache.
func NewResolver(cache *Cache) *Resolver {
	return &Resolver{cache: cache}
}

// Resolve validates the specifier, acquires the catalog for (family, stream)
// and resolves the request against it.
func (r *Resolver) Resolve(ctx context.Context, req Request) (Resolution, error) {
	spec, err := ParseSpecifier(req.Version, req.Stream)
	if err != nil {
		return Resolution{}, err
	}
	catalog, err := r.cache.Catalog(ctx, req.Family, spec.Stream)
	if err != nil {
		return Resolution{}, err
	}
	return spec.Resolve(req.Family, catalog)
}

package version

// Source is one release feed and the build identifiers it offers.
type Source struct {
	Name   string
	Builds []string
}

// Catalog is an ordered, read-only set of release sources.
// It is built once and never mutated afterwards, so it is safe to share
// between goroutines.
type Catalog struct {
	sources []Source
}

// NewCatalog builds a catalog from sources, preserving their order.
// The input slices are copied.
func NewCatalog(sources ...Source) *Catalog {
	c := &Catalog{sources: make([]Source, 0, len(sources))}
	for _, s := range sources {
		builds := make([]string, len(s.Builds))
		copy(builds, s.Builds)
		c.sources = append(c.sources, Source{Name: s.Name, Builds: builds})
	}
	return c
}

// Sources returns the catalog sources in iteration order.
func (c *Catalog) Sources() []Source {
	if c == nil {
		return nil
	}
	out := make([]Source, len(c.sources))
	copy(out, c.sources)
	return out
}

// Source returns the source with the given name.
func (c *Catalog) Source(name string) (Source, bool) {
	if c == nil {
		return Source{}, false
	}
	for _, s := range c.sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// Names returns the source names in iteration order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name)
	}
	return names
}

// Len returns the total number of build identifiers across all sources.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, s := range c.sources {
		n += len(s.Builds)
	}
	return n
}

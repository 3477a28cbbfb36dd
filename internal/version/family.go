package version

// Family groups platforms that share a release feed and stream semantics.
type Family string

const (
	// FamilyIPI covers self-hosted installer provisioned clusters (raw release feeds).
	FamilyIPI Family = "ipi"
	// FamilyOSD covers managed clusters created through the cluster management API.
	FamilyOSD Family = "osd"
	// FamilyROSA covers managed clusters created with the rosa CLI.
	FamilyROSA Family = "rosa"
	// FamilyHosted covers hosted control plane clusters.
	FamilyHosted Family = "hosted"
)

// Partitioned reports whether the stream of this family is the catalog
// partition key rather than a token inside the build identifier.
func (f Family) Partitioned() bool {
	return f != FamilyIPI
}

// Well-known streams.
const (
	StreamStable    = "stable"
	StreamCandidate = "candidate"
	StreamFast      = "fast"
	StreamNightly   = "nightly"
	StreamCI        = "ci"
	StreamEC        = "ec"
	StreamRC        = "rc"
)

package version

import "strings"

// archSuffixes are architecture markers release feeds append to identifiers.
var archSuffixes = []string{
	"-x86_64",
	"-amd64",
	"-aarch64",
	"-arm64",
	"-ppc64le",
	"-s390x",
	"-multi",
}

// Normalize prepares a build identifier for semantic-version comparison.
// It trims whitespace and a leading "v" and strips trailing architecture
// markers. The comparator only ever sees normalized identifiers; callers
// always get the raw catalog string back.
func Normalize(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "v")
	for {
		stripped := false
		for _, suffix := range archSuffixes {
			if strings.HasSuffix(id, suffix) {
				id = strings.TrimSuffix(id, suffix)
				stripped = true
			}
		}
		if !stripped {
			return id
		}
	}
}

// prerelease returns the part of a normalized identifier after the first "-".
func prerelease(id string) (string, bool) {
	_, pre, ok := strings.Cut(id, "-")
	return pre, ok
}

// minorOf returns "major.minor" for a normalized identifier.
func minorOf(id string) (string, bool) {
	core, _, _ := strings.Cut(id, "-")
	parts := strings.SplitN(core, ".", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "." + parts[1], true
}

// hasToken reports whether token appears as a "."/"-" separated component.
func hasToken(s, token string) bool {
	for _, field := range strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == '-' }) {
		if field == token {
			return true
		}
	}
	return false
}

// StreamAccepts reports whether a normalized raw-feed identifier belongs to stream.
//
// stable and fast accept only released builds, candidate additionally accepts
// release and engineering candidates, any other stream requires its token in the
// pre-release part (4.16.0-ec.5, 4.16.0-0.nightly-2024-04-16-195622).
func StreamAccepts(stream, id string) bool {
	pre, hasPre := prerelease(id)
	switch stream {
	case StreamStable, StreamFast, "":
		return !hasPre
	case StreamCandidate:
		return !hasPre || (!hasToken(pre, StreamNightly) && !hasToken(pre, StreamCI))
	default:
		return hasPre && hasToken(pre, stream)
	}
}

package version

import (
	"fmt"
	"strings"
)

// Kind classifies a version specifier.
type Kind int

const (
	// KindMinor is a major.minor request, resolved to the newest eligible build.
	KindMinor Kind = iota + 1
	// KindExact is a major.minor.patch[-suffix] request, matched verbatim.
	KindExact
)

func (k Kind) String() string {
	switch k {
	case KindMinor:
		return "minor"
	case KindExact:
		return "exact"
	default:
		return "unknown"
	}
}

// Specifier is a parsed version request paired with its stream.
type Specifier struct {
	Raw    string
	Stream string
	Kind   Kind
	// Minor is the major.minor prefix the request is restricted to.
	Minor string

	normalized string
}

// ParseSpecifier validates a requested version without touching any catalog.
// An empty stream means stable.
func ParseSpecifier(raw, stream string) (Specifier, error) {
	if stream == "" {
		stream = StreamStable
	}
	id := Normalize(raw)
	if strings.Count(id, ".") < 1 {
		return Specifier{}, fmt.Errorf("%w: %q must be at least major.minor", ErrInvalidSpecifier, raw)
	}

	core, suffix, hasSuffix := strings.Cut(id, "-")
	parts := strings.Split(core, ".")
	for _, p := range parts {
		if !isNumeric(p) {
			return Specifier{}, fmt.Errorf("%w: %q has a non-numeric component", ErrInvalidSpecifier, raw)
		}
	}

	spec := Specifier{
		Raw:        raw,
		Stream:     stream,
		Minor:      parts[0] + "." + parts[1],
		normalized: id,
	}
	switch {
	case len(parts) == 2 && !hasSuffix:
		spec.Kind = KindMinor
	case len(parts) == 3 && (!hasSuffix || suffix != ""):
		spec.Kind = KindExact
	default:
		return Specifier{}, fmt.Errorf("%w: %q is neither major.minor nor major.minor.patch", ErrInvalidSpecifier, raw)
	}
	return spec, nil
}

func (s Specifier) String() string {
	return fmt.Sprintf("%s (%s)", s.Raw, s.Stream)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"4.15.8":             "4.15.8",
		" 4.15.8\n":          "4.15.8",
		"v4.15.8":            "4.15.8",
		"4.15.8-x86_64":      "4.15.8",
		"4.15.8-aarch64":     "4.15.8",
		"4.15.8-multi":       "4.15.8",
		"4.16.0-ec.5-x86_64": "4.16.0-ec.5",
		"4.16.0-rc.1-multi":  "4.16.0-rc.1",
		"4.16.0-0.nightly-a": "4.16.0-0.nightly-a",
	}
	for in, want := range tests {
		assert.Equal(t, want, Normalize(in), in)
	}
}

func TestStreamAccepts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stream string
		id     string
		want   bool
	}{
		{"stable", "4.15.8", true},
		{"stable", "4.15.0-rc.8", false},
		{"candidate", "4.15.0-rc.8", true},
		{"candidate", "4.15.8", true},
		{"candidate", "4.16.0-0.nightly-2024-04-16-195622", false},
		{"nightly", "4.16.0-0.nightly-2024-04-16-195622", true},
		{"nightly", "4.16.0-0.ci-2024-04-16-195622", false},
		{"ci", "4.16.0-0.ci-2024-04-17-034741", true},
		{"ec", "4.16.0-ec.5", true},
		{"ec", "4.16.0", false},
		{"rc", "4.15.0-rc.8", true},
		{"rc", "4.15.0-ec.8", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StreamAccepts(tt.stream, tt.id), "%s %s", tt.stream, tt.id)
	}
}

func TestReleaseImage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "quay.io/openshift-release-dev/ocp-release:4.15.8-x86_64", ReleaseImage("4.15.8"))
	assert.Equal(t, "quay.io/openshift-release-dev/ocp-release:4.16.0-ec.5-x86_64", ReleaseImage("4.16.0-ec.5"))
	assert.Equal(t, "quay.io/openshift-release-dev/ocp-release:4.17.1-x86_64", ReleaseImage("4.17.1-x86_64"))
	assert.Equal(t,
		"registry.ci.openshift.org/ocp/release:4.16.0-0.nightly-2024-04-16-195622",
		ReleaseImage("4.16.0-0.nightly-2024-04-16-195622"))
	assert.Equal(t,
		"registry.ci.openshift.org/ocp/release:4.16.0-0.ci-2024-04-17-034741",
		ReleaseImage("4.16.0-0.ci-2024-04-17-034741"))
}

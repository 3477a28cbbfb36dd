package prerequisites

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ocp-installer/internal/cluster"
)

func installed(names ...string) LookPath {
	return func(name string) (string, error) {
		for _, n := range names {
			if n == name {
				return "/usr/local/bin/" + name, nil
			}
		}
		return "", errors.New("not found")
	}
}

func names(tools []Tool) []string {
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Name)
	}
	return out
}

func TestToolsFor(t *testing.T) {
	tests := []struct {
		platform cluster.Platform
		want     []string
	}{
		{cluster.AWS, []string{"oc"}},
		{cluster.GCP, []string{"oc"}},
		{cluster.ROSA, []string{"rosa"}},
		{cluster.Hypershift, []string{"rosa", "terraform"}},
		{cluster.AWSOSD, []string{}},
		{cluster.GCPOSD, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.platform.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, names(ToolsFor(tt.platform)))
		})
	}
}

func TestToolsForRecords(t *testing.T) {
	records := []*cluster.Record{
		{Name: "a", Platform: cluster.Hypershift},
		{Name: "b", Platform: cluster.ROSA},
		{Name: "c", Platform: cluster.AWS},
		{Name: "d", Platform: cluster.GCP},
	}
	assert.Equal(t, []string{"rosa", "terraform", "oc"}, names(ToolsForRecords(records)))
	assert.Empty(t, ToolsForRecords(nil))
}

func TestCheck(t *testing.T) {
	results := Check(ToolsFor(cluster.Hypershift), installed("rosa", "terraform"))
	require.Len(t, results.Results, 2)
	assert.True(t, results.Results[0].Found)
	assert.Equal(t, "/usr/local/bin/rosa", results.Results[0].Path)
	assert.False(t, results.HasErrors())
	assert.NoError(t, results.Error())
}

func TestCheck_Missing(t *testing.T) {
	results := Check(ToolsFor(cluster.Hypershift), installed("rosa"))
	assert.True(t, results.HasErrors())
	assert.Equal(t, []string{"terraform"}, names(results.Missing))

	err := results.Error()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required tools")
	assert.Contains(t, err.Error(), "terraform (https://developer.hashicorp.com/terraform/install)")
	assert.NotContains(t, err.Error(), "rosa (")
}

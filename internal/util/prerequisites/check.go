// Package prerequisites checks that the client tools a batch shells out to
// are installed before any cluster is touched.
package prerequisites

import (
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/imamik/ocp-installer/internal/cluster"
)

// Tool is a client binary that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

var (
	oc = Tool{
		Name:        "oc",
		Description: "Extracts openshift-install from the release payload",
		InstallURL:  "https://mirror.openshift.com/pub/openshift-v4/clients/ocp/",
	}
	rosa = Tool{
		Name:        "rosa",
		Description: "Creates and deletes ROSA clusters and their operator roles",
		InstallURL:  "https://console.redhat.com/openshift/downloads",
	}
	terraform = Tool{
		Name:        "terraform",
		Description: "Provisions the VPC of hosted control plane clusters",
		InstallURL:  "https://developer.hashicorp.com/terraform/install",
	}
)

// ToolsFor returns the tools needed to provision clusters on platform.
func ToolsFor(p cluster.Platform) []Tool {
	switch p {
	case cluster.AWS, cluster.GCP:
		return []Tool{oc}
	case cluster.ROSA:
		return []Tool{rosa}
	case cluster.Hypershift:
		return []Tool{rosa, terraform}
	default:
		return nil
	}
}

// ToolsForRecords returns the distinct tools needed by records, in first
// use order.
func ToolsForRecords(records []*cluster.Record) []Tool {
	var tools []Tool
	for _, rec := range records {
		for _, t := range ToolsFor(rec.Platform) {
			if !slices.ContainsFunc(tools, func(have Tool) bool { return have.Name == t.Name }) {
				tools = append(tools, t)
			}
		}
	}
	return tools
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool  Tool
	Found bool
	Path  string
}

// CheckResults contains the results of checking multiple tools.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any tool is missing.
func (r *CheckResults) HasErrors() bool {
	return len(r.Missing) > 0
}

// Error returns an error naming every missing tool.
func (r *CheckResults) Error() error {
	if !r.HasErrors() {
		return nil
	}
	missing := make([]string, 0, len(r.Missing))
	for _, tool := range r.Missing {
		missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// LookPath resolves a binary name. Replaced in tests.
type LookPath func(name string) (string, error)

// Check verifies that tools are available through lookPath. A nil lookPath
// searches PATH.
func Check(tools []Tool, lookPath LookPath) *CheckResults {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	results := &CheckResults{}
	for _, tool := range tools {
		result := CheckResult{Tool: tool}
		if path, err := lookPath(tool.Name); err == nil {
			result.Found = true
			result.Path = path
		} else {
			results.Missing = append(results.Missing, tool)
		}
		results.Results = append(results.Results, result)
	}
	return results
}

// Package terraform provisions the network of hosted control plane clusters
// with the terraform command line tool.
package terraform

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/imamik/ocp-installer/internal/platform/execrun"
)

// Binary is the terraform executable looked up on PATH.
const Binary = "terraform"

//go:embed modules/setup-vpc.tf
var vpcModule []byte

// ErrInvalidRegion is returned for region names availability zone ids cannot be derived from.
var ErrInvalidRegion = errors.New("cannot derive availability zones from region")

// VPCSpec describes the network created for a hosted cluster.
type VPCSpec struct {
	ClusterName string
	Region      string
	CIDR        string
	// AvailabilityZones overrides the zones derived from the region.
	AvailabilityZones []string
	AccessKeyID       string
	SecretAccessKey   string
}

// VPC is the outcome of a successful apply.
type VPC struct {
	PublicSubnet  string
	PrivateSubnet string
}

// SubnetIDs returns the subnets in the order the cluster request expects.
func (v VPC) SubnetIDs() []string {
	return []string{v.PublicSubnet, v.PrivateSubnet}
}

var regionRe = regexp.MustCompile(`^([a-z]+)-([a-z])[a-z]*-(\d+)$`)

// ZoneIDs derives the first two availability zone ids of region,
// e.g. us-east-2 -> use2-az1, use2-az2.
func ZoneIDs(region string) ([]string, error) {
	m := regionRe.FindStringSubmatch(region)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, region)
	}
	prefix := m[1] + m[2] + m[3]
	return []string{prefix + "-az1", prefix + "-az2"}, nil
}

// Workspace runs terraform in one directory.
type Workspace struct {
	runner execrun.Runner
	dir    string
	spec   VPCSpec
	output io.Writer
}

// NewWorkspace creates a workspace in dir for spec.
func NewWorkspace(runner execrun.Runner, dir string, spec VPCSpec, output io.Writer) *Workspace {
	return &Workspace{runner: runner, dir: dir, spec: spec, output: output}
}

func (w *Workspace) run(ctx context.Context, args ...string) (execrun.Result, error) {
	env := map[string]string{
		"AWS_REGION":       w.spec.Region,
		"TF_IN_AUTOMATION": "1",
	}
	if w.spec.AccessKeyID != "" {
		env["AWS_ACCESS_KEY_ID"] = w.spec.AccessKeyID
		env["AWS_SECRET_ACCESS_KEY"] = w.spec.SecretAccessKey
	}
	res, err := w.runner.Run(ctx, execrun.Command{
		Name:   Binary,
		Args:   args,
		Dir:    w.dir,
		Env:    env,
		Output: w.output,
	})
	if err != nil {
		return res, fmt.Errorf("terraform %s: %w", args[0], err)
	}
	return res, nil
}

func (w *Workspace) varArgs() ([]string, error) {
	zones := w.spec.AvailabilityZones
	if len(zones) == 0 {
		var err error
		if zones, err = ZoneIDs(w.spec.Region); err != nil {
			return nil, err
		}
	}
	zonesJSON, err := json.Marshal(zones)
	if err != nil {
		return nil, err
	}
	args := []string{
		"-var", "aws_region=" + w.spec.Region,
		"-var", "cluster_name=" + w.spec.ClusterName,
		"-var", "az_ids=" + string(zonesJSON),
	}
	if w.spec.CIDR != "" {
		args = append(args, "-var", "cidr="+w.spec.CIDR)
	}
	return args, nil
}

// Init writes the VPC module into the workspace and initializes it.
func (w *Workspace) Init(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("create terraform directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(w.dir, "setup-vpc.tf"), vpcModule, 0o600); err != nil {
		return fmt.Errorf("write terraform module: %w", err)
	}
	_, err := w.run(ctx, "init", "-input=false", "-no-color")
	return err
}

// Apply creates the VPC and returns its subnets.
func (w *Workspace) Apply(ctx context.Context) (VPC, error) {
	vars, err := w.varArgs()
	if err != nil {
		return VPC{}, err
	}
	if err := w.Init(ctx); err != nil {
		return VPC{}, err
	}
	if _, err := w.run(ctx, append([]string{"apply", "-input=false", "-no-color", "-auto-approve"}, vars...)...); err != nil {
		return VPC{}, err
	}
	return w.Output(ctx)
}

type outputValue struct {
	Value string `json:"value"`
}

// Output reads the subnet outputs of an applied workspace.
func (w *Workspace) Output(ctx context.Context) (VPC, error) {
	res, err := w.run(ctx, "output", "-json")
	if err != nil {
		return VPC{}, err
	}
	var outputs map[string]outputValue
	if err := json.Unmarshal([]byte(res.Stdout), &outputs); err != nil {
		return VPC{}, fmt.Errorf("parse terraform output: %w", err)
	}
	vpc := VPC{
		PublicSubnet:  outputs["cluster-public-subnet"].Value,
		PrivateSubnet: outputs["cluster-private-subnet"].Value,
	}
	if vpc.PublicSubnet == "" || vpc.PrivateSubnet == "" {
		return VPC{}, fmt.Errorf("terraform output is missing subnets: %s", strings.TrimSpace(res.Stdout))
	}
	return vpc, nil
}

// Destroy removes everything the workspace created.
func (w *Workspace) Destroy(ctx context.Context) error {
	vars, err := w.varArgs()
	if err != nil {
		return err
	}
	if err := w.Init(ctx); err != nil {
		return err
	}
	_, err = w.run(ctx, append([]string{"destroy", "-input=false", "-no-color", "-auto-approve"}, vars...)...)
	return err
}

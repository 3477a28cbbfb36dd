// Package rosa drives the rosa command line tool.
package rosa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/imamik/ocp-installer/internal/platform/execrun"
)

// Binary is the rosa executable looked up on PATH.
const Binary = "rosa"

// ErrUnexpectedOutput is returned when rosa output cannot be parsed.
var ErrUnexpectedOutput = errors.New("unexpected rosa output")

// Session scopes rosa invocations to one account and region.
type Session struct {
	Region             string
	OCMToken           string
	OCMURL             string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	// ConfigDir holds the rosa login state of this session.
	ConfigDir string
}

func (s Session) env() map[string]string {
	env := map[string]string{"AWS_REGION": s.Region}
	if s.AWSAccessKeyID != "" {
		env["AWS_ACCESS_KEY_ID"] = s.AWSAccessKeyID
		env["AWS_SECRET_ACCESS_KEY"] = s.AWSSecretAccessKey
	}
	if s.ConfigDir != "" {
		env["OCM_CONFIG"] = filepath.Join(s.ConfigDir, "ocm.json")
	}
	return env
}

// Client runs rosa commands for one session.
type Client struct {
	runner  execrun.Runner
	session Session
	output  io.Writer
}

// NewClient creates a rosa client. output, when set, receives the live
// command output.
func NewClient(runner execrun.Runner, session Session, output io.Writer) *Client {
	return &Client{runner: runner, session: session, output: output}
}

func (c *Client) run(ctx context.Context, args ...string) (execrun.Result, error) {
	res, err := c.runner.Run(ctx, execrun.Command{
		Name:   Binary,
		Args:   args,
		Env:    c.session.env(),
		Output: c.output,
	})
	if err != nil {
		return res, fmt.Errorf("rosa %s: %w", strings.Join(args[:min(2, len(args))], " "), err)
	}
	return res, nil
}

// Login stores the session's credentials in its config directory.
func (c *Client) Login(ctx context.Context) error {
	args := []string{"login", "--token=" + c.session.OCMToken}
	if c.session.OCMURL != "" {
		args = append(args, "--env="+c.session.OCMURL)
	}
	_, err := c.run(ctx, args...)
	return err
}

type versionEntry struct {
	RawID string `json:"raw_id"`
}

// ListVersions returns the raw version ids offered on a channel group.
func (c *Client) ListVersions(ctx context.Context, channel string, hosted bool) ([]string, error) {
	args := []string{"list", "versions", "--channel-group=" + channel, "-o", "json"}
	if hosted {
		args = append(args, "--hosted-cp")
	}
	res, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var entries []versionEntry
	if err := json.Unmarshal([]byte(res.Stdout), &entries); err != nil {
		return nil, fmt.Errorf("%w: list versions: %w", ErrUnexpectedOutput, err)
	}
	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.RawID != "" {
			versions = append(versions, e.RawID)
		}
	}
	return versions, nil
}

// Lister adapts a client to a per-channel version lister. The client logs
// in once, before the first listing.
type Lister struct {
	client *Client
	hosted bool

	once sync.Once
	err  error
}

// NewLister lists the classic versions of client, or the hosted control
// plane versions when hosted is set.
func NewLister(client *Client, hosted bool) *Lister {
	return &Lister{client: client, hosted: hosted}
}

// ListVersions lists the versions of one channel group.
func (l *Lister) ListVersions(ctx context.Context, channel string) ([]string, error) {
	l.once.Do(func() { l.err = l.client.Login(ctx) })
	if l.err != nil {
		return nil, fmt.Errorf("rosa login: %w", l.err)
	}
	return l.client.ListVersions(ctx, channel, l.hosted)
}

// ClusterSpec describes a cluster to create.
type ClusterSpec struct {
	Name               string
	Version            string
	ChannelGroup       string
	ComputeMachineType string
	Replicas           int
	MultiAZ            bool

	// Hosted control plane settings.
	Hosted       bool
	OIDCConfigID string
	SubnetIDs    []string
	MachineCIDR  string
}

// Args renders the create command line.
func (s ClusterSpec) Args() []string {
	args := []string{
		"create", "cluster", "--sts", "--mode=auto", "--yes",
		"--cluster-name=" + s.Name,
		"--version=" + s.Version,
	}
	if s.ChannelGroup != "" {
		args = append(args, "--channel-group="+s.ChannelGroup)
	}
	if s.ComputeMachineType != "" {
		args = append(args, "--compute-machine-type="+s.ComputeMachineType)
	}
	if s.Replicas > 0 {
		args = append(args, "--replicas="+strconv.Itoa(s.Replicas))
	}
	if s.MultiAZ {
		args = append(args, "--multi-az")
	}
	if s.Hosted {
		args = append(args, "--hosted-cp", "--tags=dns:external")
		if s.OIDCConfigID != "" {
			args = append(args, "--oidc-config-id="+s.OIDCConfigID)
		}
		if len(s.SubnetIDs) > 0 {
			args = append(args, "--subnet-ids="+strings.Join(s.SubnetIDs, ","))
		}
		if s.MachineCIDR != "" {
			args = append(args, "--machine-cidr="+s.MachineCIDR)
		}
	}
	return args
}

// CreateCluster requests a new cluster. It returns once the request is accepted.
func (c *Client) CreateCluster(ctx context.Context, spec ClusterSpec) error {
	_, err := c.run(ctx, spec.Args()...)
	return err
}

// DeleteCluster requests deletion of a cluster and returns rosa's output,
// which lists follow-up cleanup commands.
func (c *Client) DeleteCluster(ctx context.Context, name string) (string, error) {
	res, err := c.run(ctx, "delete", "cluster", "--cluster="+name, "--yes")
	return res.Stdout + res.Stderr, err
}

var oidcIDRe = regexp.MustCompile(`"id":\s*"([a-z0-9]+)"`)

// CreateOIDCConfig creates an unmanaged OIDC config and returns its id.
func (c *Client) CreateOIDCConfig(ctx context.Context, prefix string) (string, error) {
	res, err := c.run(ctx, "create", "oidc-config", "--managed=false", "--prefix="+prefix, "--mode=auto", "--yes", "-o", "json")
	if err != nil {
		return "", err
	}
	m := oidcIDRe.FindStringSubmatch(res.Stdout)
	if m == nil {
		return "", fmt.Errorf("%w: oidc config id missing", ErrUnexpectedOutput)
	}
	return m[1], nil
}

// DeleteOIDCConfig deletes an OIDC config.
func (c *Client) DeleteOIDCConfig(ctx context.Context, id string) error {
	_, err := c.run(ctx, "delete", "oidc-config", "--oidc-config-id="+id, "--mode=auto", "--yes")
	return err
}

var leftoverBlockRe = regexp.MustCompile(`(?s)Once the cluster is uninstalled use the following commands to remove the above aws resources(.*?)INFO:`)

// LeftoverCommands extracts the cleanup commands rosa advertises after a
// cluster deletion. Each entry holds the arguments following "rosa".
func LeftoverCommands(output string) [][]string {
	m := leftoverBlockRe.FindStringSubmatch(output)
	if m == nil {
		return nil
	}
	var cmds [][]string
	for _, line := range strings.Split(m[1], "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 || fields[0] != Binary {
			continue
		}
		cmds = append(cmds, normalizeLeftover(fields[1:]))
	}
	return cmds
}

func normalizeLeftover(args []string) []string {
	out := make([]string, 0, len(args)+2)
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-c" && i+1 < len(args):
			out = append(out, "--cluster="+args[i+1])
			i++
		case (args[i] == "--prefix" || args[i] == "--oidc-config-id") && i+1 < len(args):
			out = append(out, args[i]+"="+args[i+1])
			i++
		default:
			out = append(out, args[i])
		}
	}
	if !slices.Contains(out, "--yes") {
		out = append(out, "--mode=auto", "--yes")
	}
	return out
}

// RemoveLeftovers runs every advertised cleanup command. All commands are
// attempted; failures are joined.
func (c *Client) RemoveLeftovers(ctx context.Context, deleteOutput string) error {
	var errs []error
	for _, args := range LeftoverCommands(deleteOutput) {
		if _, err := c.run(ctx, args...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

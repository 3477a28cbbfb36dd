package ocm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Cluster states reported by the API.
const (
	StateReady        = "ready"
	StateError        = "error"
	StateUninstalling = "uninstalling"
)

// Cluster is the subset of the cluster resource this tool reads.
type Cluster struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	API   struct {
		URL string `json:"url"`
	} `json:"api"`
	Console struct {
		URL string `json:"url"`
	} `json:"console"`
}

type clusterList struct {
	Items []Cluster `json:"items"`
	Total int       `json:"total"`
}

// FindCluster looks a cluster up by name. It returns ErrNotFound when no
// cluster has that name.
func (c *Client) FindCluster(ctx context.Context, name string) (*Cluster, error) {
	var list clusterList
	query := url.Values{"search": {fmt.Sprintf("name = '%s'", name)}}
	if err := c.do(ctx, http.MethodGet, clustersPath, query, nil, &list); err != nil {
		return nil, err
	}
	switch len(list.Items) {
	case 0:
		return nil, fmt.Errorf("%w: cluster %s", ErrNotFound, name)
	case 1:
		return &list.Items[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousMatch, name)
	}
}

// GetCluster fetches a cluster by id.
func (c *Client) GetCluster(ctx context.Context, id string) (*Cluster, error) {
	var cl Cluster
	if err := c.do(ctx, http.MethodGet, clustersPath+"/"+id, nil, nil, &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// ClusterRequest describes a customer cloud subscription cluster.
type ClusterRequest struct {
	Name               string
	CloudProvider      string // "aws" or "gcp"
	Region             string
	Version            string
	ChannelGroup       string
	ComputeMachineType string
	Replicas           int
	MultiAZ            bool
	ExpirationTime     time.Time

	AWSAccountID       string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	// GCPServiceAccount is the parsed service account key file.
	GCPServiceAccount map[string]any
}

type idRef struct {
	ID string `json:"id"`
}

type clusterBody struct {
	Name                string         `json:"name"`
	Product             idRef          `json:"product"`
	CloudProvider       idRef          `json:"cloud_provider"`
	Region              idRef          `json:"region"`
	Version             versionRef     `json:"version"`
	MultiAZ             bool           `json:"multi_az"`
	CCS                 ccs            `json:"ccs"`
	Nodes               *nodes         `json:"nodes,omitempty"`
	AWS                 *awsCreds      `json:"aws,omitempty"`
	GCP                 map[string]any `json:"gcp,omitempty"`
	ExpirationTimestamp string         `json:"expiration_timestamp,omitempty"`
}

type versionRef struct {
	ID           string `json:"id"`
	ChannelGroup string `json:"channel_group,omitempty"`
}

type ccs struct {
	Enabled bool `json:"enabled"`
}

type nodes struct {
	Compute            int    `json:"compute,omitempty"`
	ComputeMachineType *idRef `json:"compute_machine_type,omitempty"`
}

type awsCreds struct {
	AccountID       string `json:"account_id"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
}

// VersionID returns the API version id of a build on a channel group.
// Builds outside the stable group carry the group as a suffix.
func VersionID(build, channelGroup string) string {
	id := "openshift-v" + build
	if channelGroup != "" && channelGroup != "stable" {
		id += "-" + channelGroup
	}
	return id
}

func (r ClusterRequest) body() clusterBody {
	b := clusterBody{
		Name:          r.Name,
		Product:       idRef{ID: "osd"},
		CloudProvider: idRef{ID: r.CloudProvider},
		Region:        idRef{ID: r.Region},
		Version:       versionRef{ID: VersionID(r.Version, r.ChannelGroup), ChannelGroup: r.ChannelGroup},
		MultiAZ:       r.MultiAZ,
		CCS:           ccs{Enabled: true},
	}
	if r.Replicas > 0 || r.ComputeMachineType != "" {
		b.Nodes = &nodes{Compute: r.Replicas}
		if r.ComputeMachineType != "" {
			b.Nodes.ComputeMachineType = &idRef{ID: r.ComputeMachineType}
		}
	}
	if r.CloudProvider == "aws" {
		b.AWS = &awsCreds{AccountID: r.AWSAccountID, AccessKeyID: r.AWSAccessKeyID, SecretAccessKey: r.AWSSecretAccessKey}
	}
	if r.CloudProvider == "gcp" {
		b.GCP = r.GCPServiceAccount
	}
	if !r.ExpirationTime.IsZero() {
		b.ExpirationTimestamp = r.ExpirationTime.UTC().Format(time.RFC3339)
	}
	return b
}

// CreateCluster submits a cluster request and returns the accepted cluster.
func (c *Client) CreateCluster(ctx context.Context, req ClusterRequest) (*Cluster, error) {
	var cl Cluster
	if err := c.do(ctx, http.MethodPost, clustersPath, nil, req.body(), &cl); err != nil {
		return nil, err
	}
	return &cl, nil
}

// DeleteCluster requests deletion of a cluster.
func (c *Client) DeleteCluster(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, clustersPath+"/"+id, nil, nil, nil)
}

// WaitForReady polls until the cluster is ready, fails, or ctx ends.
func (c *Client) WaitForReady(ctx context.Context, id string) (*Cluster, error) {
	var ready *Cluster
	err := c.poll(ctx, func() (bool, error) {
		cl, err := c.GetCluster(ctx, id)
		if err != nil {
			return false, err
		}
		switch cl.State {
		case StateReady:
			ready = cl
			return true, nil
		case StateError:
			return false, fmt.Errorf("%w: %s", ErrClusterFailed, cl.Name)
		}
		return false, nil
	})
	return ready, err
}

// WaitForDeletion polls until the cluster is gone or ctx ends.
func (c *Client) WaitForDeletion(ctx context.Context, id string) error {
	return c.poll(ctx, func() (bool, error) {
		_, err := c.GetCluster(ctx, id)
		if isNotFound(err) {
			return true, nil
		}
		return false, err
	})
}

func (c *Client) poll(ctx context.Context, check func() (bool, error)) error {
	ticker := time.NewTicker(c.timeouts.PollInterval)
	defer ticker.Stop()
	for {
		done, err := check()
		if err != nil || done {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Credentials are the admin credentials of a cluster.
type Credentials struct {
	Kubeconfig string `json:"kubeconfig"`
	Admin      struct {
		User     string `json:"user"`
		Password string `json:"password"`
	} `json:"admin"`
}

// Credentials fetches the kubeconfig and admin password of a cluster.
func (c *Client) Credentials(ctx context.Context, id string) (*Credentials, error) {
	var creds Credentials
	if err := c.do(ctx, http.MethodGet, clustersPath+"/"+id+"/credentials", nil, nil, &creds); err != nil {
		return nil, err
	}
	return &creds, nil
}

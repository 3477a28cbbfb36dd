// Package ocm is a small client for the OpenShift cluster management API,
// covering the calls managed and hosted cluster lifecycles need.
package ocm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/imamik/ocp-installer/internal/config"
	"github.com/imamik/ocp-installer/internal/util/retry"
)

// Environments and their API endpoints.
const (
	EnvProduction = "production"
	EnvStage      = "stage"

	ProductionURL = "https://api.openshift.com"
	StageURL      = "https://api.stage.openshift.com"

	// TokenURL exchanges offline tokens for access tokens.
	TokenURL = "https://sso.redhat.com/auth/realms/redhat-external/protocol/openid-connect/token"
	clientID = "cloud-services"

	clustersPath = "/api/clusters_mgmt/v1/clusters"
	versionsPath = "/api/clusters_mgmt/v1/versions"
)

var (
	ErrUnknownEnv     = errors.New("unknown ocm environment")
	ErrNotFound       = errors.New("ocm resource not found")
	ErrClusterFailed  = errors.New("cluster entered error state")
	ErrAPI            = errors.New("ocm api error")
	ErrAmbiguousMatch = errors.New("more than one cluster matches")
)

// BaseURL returns the API endpoint of env.
func BaseURL(env string) (string, error) {
	switch env {
	case EnvProduction:
		return ProductionURL, nil
	case EnvStage:
		return StageURL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEnv, env)
	}
}

// Options configures a client.
type Options struct {
	BaseURL string
	// Token is the offline (refresh) token issued to the user.
	Token    string
	TokenURL string
	// HTTPClient is used for both the token exchange and API calls.
	HTTPClient *http.Client
}

// Client talks to one cluster management API endpoint.
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts *config.Timeouts
}

// NewClient creates a client authenticating with an offline token.
func NewClient(ctx context.Context, opts Options, timeouts *config.Timeouts) *Client {
	if opts.TokenURL == "" {
		opts.TokenURL = TokenURL
	}
	if opts.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, opts.HTTPClient)
	}
	if timeouts == nil {
		timeouts = config.LoadTimeouts()
	}
	cfg := oauth2.Config{
		ClientID: clientID,
		Endpoint: oauth2.Endpoint{TokenURL: opts.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: opts.Token})
	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		http:     oauth2.NewClient(ctx, ts),
		timeouts: timeouts,
	}
}

type apiError struct {
	Status int
	Reason string `json:"reason"`
	Code   string `json:"code"`
}

func (e *apiError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("status %d", e.Status)
}

// do performs one API call, decoding the response into out when non-nil.
// Server errors are retried; client errors are not.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	return retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return retry.Fatal(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := c.http.Do(req)
		if err != nil {
			var retrieveErr *oauth2.RetrieveError
			if errors.As(err, &retrieveErr) {
				return retry.Fatal(fmt.Errorf("%w: token exchange: %w", ErrAPI, err))
			}
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode == http.StatusNotFound {
			return retry.Fatal(fmt.Errorf("%w: %s %s", ErrNotFound, method, path))
		}
		if resp.StatusCode >= 300 {
			apiErr := &apiError{Status: resp.StatusCode}
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			_ = json.Unmarshal(data, apiErr)
			err := fmt.Errorf("%w: %s %s: %w", ErrAPI, method, path, apiErr)
			if resp.StatusCode >= 500 {
				return err
			}
			return retry.Fatal(err)
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Fatal(fmt.Errorf("decode %s response: %w", path, err))
		}
		return nil
	},
		retry.WithMaxRetries(c.timeouts.RetryMaxAttempts),
		retry.WithInitialDelay(c.timeouts.RetryInitialDelay))
}

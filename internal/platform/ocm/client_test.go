package ocm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/ocp-installer/internal/config"
)

func testTimeouts() *config.Timeouts {
	return &config.Timeouts{
		PollInterval:      time.Millisecond,
		RetryMaxAttempts:  2,
		RetryInitialDelay: time.Millisecond,
	}
}

// newTestServer serves a token endpoint and the handlers in routes. Every
// API request must carry the exchanged access token.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("refresh_token") != "offline" || r.Form.Get("client_id") != clientID {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"access","token_type":"Bearer","expires_in":900}`))
	})
	for pattern, h := range routes {
		mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer access" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			h(w, r)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c := NewClient(context.Background(), Options{
		BaseURL:    srv.URL,
		Token:      "offline",
		TokenURL:   srv.URL + "/token",
		HTTPClient: srv.Client(),
	}, testTimeouts())
	return c, srv
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestBaseURL(t *testing.T) {
	t.Parallel()

	u, err := BaseURL(EnvProduction)
	require.NoError(t, err)
	assert.Equal(t, ProductionURL, u)

	u, err = BaseURL(EnvStage)
	require.NoError(t, err)
	assert.Equal(t, StageURL, u)

	_, err = BaseURL("integration")
	assert.ErrorIs(t, err, ErrUnknownEnv)
}

func TestClient_FindCluster(t *testing.T) {
	t.Parallel()

	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		clustersPath: func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("search") {
			case "name = 'ci-osd'":
				writeJSON(w, map[string]any{"items": []map[string]any{{"id": "abc", "name": "ci-osd", "state": "ready"}}})
			default:
				writeJSON(w, map[string]any{"items": []any{}})
			}
		},
	})

	cl, err := c.FindCluster(context.Background(), "ci-osd")
	require.NoError(t, err)
	assert.Equal(t, "abc", cl.ID)

	_, err = c.FindCluster(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_CreateCluster(t *testing.T) {
	t.Parallel()

	var body map[string]any
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		clustersPath: func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, map[string]any{"id": "new-id", "name": "ci-osd", "state": "pending"})
		},
	})

	cl, err := c.CreateCluster(context.Background(), ClusterRequest{
		Name:               "ci-osd",
		CloudProvider:      "aws",
		Region:             "us-east-1",
		Version:            "4.15.9",
		ChannelGroup:       "candidate",
		ComputeMachineType: "m5.xlarge",
		Replicas:           3,
		ExpirationTime:     time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC),
		AWSAccountID:       "123",
		AWSAccessKeyID:     "AKIA",
		AWSSecretAccessKey: "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-id", cl.ID)

	assert.Equal(t, map[string]any{"id": "openshift-v4.15.9-candidate", "channel_group": "candidate"}, body["version"])
	assert.Equal(t, map[string]any{"id": "aws"}, body["cloud_provider"])
	assert.Equal(t, "2026-10-20T08:00:00Z", body["expiration_timestamp"])
	assert.Equal(t, "123", body["aws"].(map[string]any)["account_id"])
	assert.Nil(t, body["gcp"])
}

func TestVersionID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "openshift-v4.15.8", VersionID("4.15.8", "stable"))
	assert.Equal(t, "openshift-v4.15.8", VersionID("4.15.8", ""))
	assert.Equal(t, "openshift-v4.16.0-rc.1-candidate", VersionID("4.16.0-rc.1", "candidate"))
}

func TestClient_WaitForReady(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		clustersPath + "/abc": func(w http.ResponseWriter, _ *http.Request) {
			state := "installing"
			if polls.Add(1) >= 3 {
				state = StateReady
			}
			writeJSON(w, map[string]any{
				"id": "abc", "name": "ci-osd", "state": state,
				"api":     map[string]any{"url": "https://api.ci-osd.example.com:6443"},
				"console": map[string]any{"url": "https://console.ci-osd.example.com"},
			})
		},
	})

	cl, err := c.WaitForReady(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://api.ci-osd.example.com:6443", cl.API.URL)
	assert.Equal(t, "https://console.ci-osd.example.com", cl.Console.URL)
	assert.Equal(t, int32(3), polls.Load())
}

func TestClient_WaitForReadyErrorState(t *testing.T) {
	t.Parallel()

	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		clustersPath + "/abc": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"id": "abc", "name": "ci-osd", "state": StateError})
		},
	})
	_, err := c.WaitForReady(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrClusterFailed)
}

func TestClient_WaitForReadyHonorsContext(t *testing.T) {
	t.Parallel()

	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		clustersPath + "/abc": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, map[string]any{"id": "abc", "state": "installing"})
		},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.WaitForReady(ctx, "abc")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_DeleteAndWaitForDeletion(t *testing.T) {
	t.Parallel()

	var deleted atomic.Bool
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		clustersPath + "/abc": func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodDelete {
				deleted.Store(true)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if deleted.Load() {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeJSON(w, map[string]any{"id": "abc", "state": StateUninstalling})
		},
	})

	require.NoError(t, c.DeleteCluster(context.Background(), "abc"))
	require.NoError(t, c.WaitForDeletion(context.Background(), "abc"))
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		clustersPath + "/abc/credentials": func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			writeJSON(w, map[string]any{"kubeconfig": "apiVersion: v1", "admin": map[string]any{"user": "kubeadmin", "password": "pw"}})
		},
	})

	creds, err := c.Credentials(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "apiVersion: v1", creds.Kubeconfig)
	assert.Equal(t, "pw", creds.Admin.Password)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_ClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		clustersPath: func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"reason":"name already taken"}`))
		},
	})

	_, err := c.CreateCluster(context.Background(), ClusterRequest{Name: "dup", CloudProvider: "aws"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAPI)
	assert.True(t, strings.Contains(err.Error(), "name already taken"))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ListVersionsPaginates(t *testing.T) {
	t.Parallel()

	c, _ := newTestServer(t, map[string]http.HandlerFunc{
		versionsPath: func(w http.ResponseWriter, r *http.Request) {
			assert.Contains(t, r.URL.Query().Get("search"), "channel_group = 'stable'")
			var items []map[string]any
			if r.URL.Query().Get("page") == "1" {
				for i := 0; i < versionsPageSize; i++ {
					items = append(items, map[string]any{"raw_id": "4.14." + strconv.Itoa(i)})
				}
			} else {
				items = []map[string]any{{"raw_id": "4.15.8"}}
			}
			writeJSON(w, map[string]any{"items": items, "total": versionsPageSize + 1})
		},
	})

	versions, err := c.ListVersions(context.Background(), "stable")
	require.NoError(t, err)
	assert.Len(t, versions, versionsPageSize+1)
	assert.Equal(t, "4.15.8", versions[len(versions)-1])
}

// Package kube reads the identity of a freshly installed cluster through
// its API server.
package kube

import (
	"context"
	"errors"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/tools/clientcmd"
)

var (
	clusterVersionGVR = schema.GroupVersionResource{Group: "config.openshift.io", Version: "v1", Resource: "clusterversions"}
	routeGVR          = schema.GroupVersionResource{Group: "route.openshift.io", Version: "v1", Resource: "routes"}
)

// ErrMissingField is returned when a resource lacks an expected field.
var ErrMissingField = errors.New("resource field missing")

// ClusterInfo identifies an installed cluster.
type ClusterInfo struct {
	ID         string
	APIURL     string
	ConsoleURL string
}

// Reader queries one cluster.
type Reader struct {
	dynamic dynamic.Interface
	host    string
}

// NewReader creates a reader from a kubeconfig file.
func NewReader(kubeconfigPath string) (*Reader, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}
	return &Reader{dynamic: dynamicClient, host: config.Host}, nil
}

// NewReaderFromClient wraps an existing dynamic client.
func NewReaderFromClient(client dynamic.Interface, host string) *Reader {
	return &Reader{dynamic: client, host: host}
}

// Info reads the cluster id and the console URL.
func (r *Reader) Info(ctx context.Context) (ClusterInfo, error) {
	cv, err := r.dynamic.Resource(clusterVersionGVR).Get(ctx, "version", metav1.GetOptions{})
	if err != nil {
		return ClusterInfo{}, fmt.Errorf("failed to get clusterversion: %w", err)
	}
	id, found, err := unstructured.NestedString(cv.Object, "spec", "clusterID")
	if err != nil || !found || id == "" {
		return ClusterInfo{}, fmt.Errorf("%w: clusterversion spec.clusterID", ErrMissingField)
	}

	route, err := r.dynamic.Resource(routeGVR).Namespace("openshift-console").Get(ctx, "console", metav1.GetOptions{})
	if err != nil {
		return ClusterInfo{}, fmt.Errorf("failed to get console route: %w", err)
	}
	host, found, err := unstructured.NestedString(route.Object, "spec", "host")
	if err != nil || !found || host == "" {
		return ClusterInfo{}, fmt.Errorf("%w: console route spec.host", ErrMissingField)
	}

	return ClusterInfo{ID: id, APIURL: r.host, ConsoleURL: "https://" + host}, nil
}

// Package cluster defines ClusterRecord, the persisted unit of lifecycle state
// for one cluster, and the phase state machine it moves through.
//
// # Create path
//
//	pending -> directory-prepared -> version-resolved -> provisioning -> ready
//
// A record that fails before provisioning ends in failed. A record that reached
// provisioning is rolled back instead:
//
//	provisioning|ready -> rolling-back -> destroyed|destroy-failed
//
// # Destroy path
//
//	pending -> destroying -> destroyed|destroy-failed
//
// Records rehydrated from a snapshot may enter destroying from any phase other
// than destroyed.
//
// Platform specific settings live in a typed Parameters union selected by the
// platform, so each driver only sees the fields relevant to it.
package cluster

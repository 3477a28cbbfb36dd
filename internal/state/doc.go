// Package state persists cluster records.
//
// Each record lives as a YAML snapshot (cluster_data.yaml) inside the
// cluster's working directory. After a successful create the whole working
// directory is zipped and uploaded to an object store; a later process can
// download it and destroy the cluster from the snapshot alone. Records only
// ever touch their own directory and object key, so concurrent saves need
// no coordination beyond the atomic rename of the snapshot file.
package state

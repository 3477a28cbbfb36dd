// Package s3 provides a client for AWS S3 and S3-compatible object storage.
//
// It stores the zipped working directories of created clusters so a later,
// possibly separate, process can rehydrate and destroy them.
package s3

// Package config turns user input into cluster records.
//
// Input comes from three layers, merged by viper in order of precedence:
// command-line flags, environment variables (OCM_TOKEN, AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY, AWS_ACCOUNT_ID, S3_BUCKET_NAME, ...) and an
// optional YAML batch file. Clusters are given either as a "clusters" list
// in the file or as repeated --cluster "key=value;key=value" flags; each
// entry is decoded into a [ClusterInput] with mapstructure.
//
// [BuildRecords] validates the batch and produces one pending
// cluster.Record per entry. [LoadTimeouts] reads the tunable waits of the
// external collaborators from the environment.
package config

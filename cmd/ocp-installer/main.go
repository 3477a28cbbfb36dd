// Package main is the entry point for the ocp-installer CLI.
//
// ocp-installer creates and destroys batches of OpenShift clusters on
// several platforms: installer provisioned clusters on AWS and GCP, managed
// clusters (rosa, aws-osd, gcp-osd) and hosted control plane clusters
// (hypershift). Every cluster keeps a resumable snapshot in its working
// directory, optionally archived to an S3 bucket.
//
// Commands: create, destroy, version, completion.
//
// For detailed usage information, run:
//
//	ocp-installer --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/ocp-installer/cmd/ocp-installer/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

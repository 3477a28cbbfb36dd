// Package commands defines the CLI command structure and flag bindings.
//
// Commands parse flags into a viper instance shared with the environment
// and the clusters file. Execution is delegated to the handlers package.
package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imamik/ocp-installer/internal/config"
)

// Root returns the root command for the ocp-installer CLI.
func Root() *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:           "ocp-installer",
		Short:         "Create and destroy OpenShift clusters on AWS, GCP, ROSA, OSD and Hypershift",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	bindRunFlags(cmd, v)

	cmd.AddCommand(Create(v))
	cmd.AddCommand(Destroy(v))
	cmd.AddCommand(Version())
	cmd.AddCommand(Completion())

	return cmd
}

// bindRunFlags registers the flags shared by create and destroy and binds
// them to v, so flags win over the environment and the clusters file.
func bindRunFlags(cmd *cobra.Command, v *viper.Viper) {
	f := cmd.PersistentFlags()
	f.String(config.KeyClustersFile, "", "YAML file listing the clusters and run options")
	f.StringArrayP(config.KeyCluster, "c", nil, "Cluster to handle, as 'name=c1;platform=rosa;region=us-east-2;version=4.15' (repeatable)")
	f.Bool(config.KeyParallel, false, "Handle the clusters of the batch in parallel")
	f.Int(config.KeyMaxConcurrency, 0, "Maximum clusters handled at once in parallel mode (0 = no limit)")
	f.String(config.KeyDataDir, config.DefaultDataDir, "Directory holding the working directory of every cluster")
	f.Bool(config.KeyDryRun, false, "Validate the input and print the plan without touching any cluster")
	f.Bool(config.KeyKeepData, false, "Keep the working directory and archive of destroyed clusters")
	f.String(config.KeyMetricsFile, "", "Write run metrics in Prometheus text format to this file")
	f.IntP(config.KeyVerbosity, "v", 0, "Log verbosity; 1 adds checkpoints and catalog fetches")

	f.String(config.KeyOCMToken, "", "OCM offline token (env OCM_TOKEN)")
	f.String(config.KeyAWSAccessKeyID, "", "AWS access key id (env AWS_ACCESS_KEY_ID)")
	f.String(config.KeyAWSSecretAccessKey, "", "AWS secret access key (env AWS_SECRET_ACCESS_KEY)")
	f.String(config.KeyAWSAccountID, "", "AWS account id for aws-osd and hypershift clusters (env AWS_ACCOUNT_ID)")
	f.String(config.KeyGCPServiceAccount, "", "GCP service account JSON file for gcp-osd clusters")

	f.String(config.KeyS3BucketName, "", "S3 bucket archiving cluster working directories")
	f.String(config.KeyS3BucketPath, "", "Key prefix of the archives in the bucket")
	f.String(config.KeyS3Endpoint, "", "S3 compatible endpoint; archives go to a MinIO server when set")

	f.String(config.KeyRegistryConfigFile, "", "Pull secret for installer provisioned clusters")
	f.String(config.KeyDockerConfigFile, "", "Additional docker config merged into the pull secret")
	f.String(config.KeySSHKeyFile, "", "Public SSH key for installer provisioned nodes; generated when empty")

	_ = v.BindPFlags(f)
}

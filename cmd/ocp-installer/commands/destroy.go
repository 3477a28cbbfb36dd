package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imamik/ocp-installer/cmd/ocp-installer/handlers"
)

// Destroy returns the destroy command.
func Destroy(v *viper.Viper) *cobra.Command {
	var src handlers.DestroySource

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Destroy OpenShift clusters and their working data",
		Long: `Destroy tears clusters down on their platform.

The clusters are taken from exactly one source:
  - the --cluster flags or clusters file, like create
  - every snapshot below --clusters-install-data-directory
  - every archive below --s3-bucket-path in --s3-bucket-name
  - the archives named with --s3-bucket-object-name

Every cluster is attempted even when others fail. The working directory
and archive of each destroyed cluster are removed unless --keep-data is set.

Example:
  ocp-installer destroy --destroy-clusters-from-s3-bucket --s3-bucket-name ci-clusters

WARNING: This operation is irreversible.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), v, src, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.BoolVar(&src.FromS3Bucket, "destroy-clusters-from-s3-bucket", false, "Destroy every cluster archived in --s3-bucket-name")
	f.StringVar(&src.S3Query, "destroy-clusters-from-s3-bucket-query", "", "Destroy the archived clusters whose object name contains this text")
	f.BoolVar(&src.FromDataDir, "destroy-clusters-from-install-data-directory", false, "Destroy every cluster with a snapshot in the data directory")
	f.BoolVar(&src.FromDataDirUsingS3, "destroy-clusters-from-install-data-directory-using-s3-bucket", false,
		"Like --destroy-clusters-from-install-data-directory, restoring each cluster from its archive first")
	f.StringArrayVar(&src.S3Objects, "s3-bucket-object-name", nil, "Destroy the cluster archived under this object key (repeatable)")
	cmd.MarkFlagsMutuallyExclusive(
		"destroy-clusters-from-s3-bucket",
		"destroy-clusters-from-s3-bucket-query",
		"destroy-clusters-from-install-data-directory",
		"destroy-clusters-from-install-data-directory-using-s3-bucket",
		"s3-bucket-object-name",
	)

	return cmd
}

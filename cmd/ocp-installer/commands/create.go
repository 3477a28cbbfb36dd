package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imamik/ocp-installer/cmd/ocp-installer/handlers"
)

// Create returns the create command.
func Create(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a batch of OpenShift clusters",
		Long: `Create provisions every cluster of the batch.

Clusters come from repeated --cluster flags or from the clusters list of
--clusters-yaml-config-file. Each cluster is resolved to a concrete build,
provisioned on its platform and checkpointed in its working directory under
--clusters-install-data-directory. With --s3-bucket-name the working
directory of every ready cluster is archived to the bucket.

When any cluster fails, every cluster of the batch that reached
provisioning is destroyed again.

Example:
  ocp-installer create \
    -c 'name=ci-rosa;platform=rosa;region=us-east-2;version=4.15;channel-group=candidate' \
    -c 'name=ci-ipi;platform=aws;region=us-west-2;version=4.16;base-domain=example.com' \
    --parallel --registry-config-file pull-secret.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Create(cmd.Context(), v, cmd.OutOrStdout())
		},
	}
}

package commands

import (
	"os"

	"github.com/spf13/cobra"
)

// Completion returns the completion command for shell autocompletion.
func Completion() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for ocp-installer.

To load completions:

Bash:
  $ source <(ocp-installer completion bash)
  # To load completions for each session, execute once:
  # Linux:
  $ ocp-installer completion bash > /etc/bash_completion.d/ocp-installer
  # macOS:
  $ ocp-installer completion bash > $(brew --prefix)/etc/bash_completion.d/ocp-installer

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. Execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc
  # To load completions for each session, execute once:
  $ ocp-installer completion zsh > "${fpath[1]}/_ocp-installer"
  # You will need to start a new shell for this setup to take effect.

Fish:
  $ ocp-installer completion fish | source
  # To load completions for each session, execute once:
  $ ocp-installer completion fish > ~/.config/fish/completions/ocp-installer.fish

PowerShell:
  PS> ocp-installer completion powershell | Out-String | Invoke-Expression
  # To load completions for every new session, run:
  PS> ocp-installer completion powershell > ocp-installer.ps1
  # and source this file from your PowerShell profile.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return nil
		},
	}
	return cmd
}

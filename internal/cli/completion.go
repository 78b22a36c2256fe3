package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// completionCommand generates shell completion scripts.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for sqltree.

To load completions:

Bash:
  $ source <(sqltree completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ sqltree completion bash > /etc/bash_completion.d/sqltree
  # macOS:
  $ sqltree completion bash > $(brew --prefix)/etc/bash_completion.d/sqltree

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it. You can execute the following once:
  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ sqltree completion zsh > "${fpath[1]}/_sqltree"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ sqltree completion fish | source

  # To load completions for each session, execute once:
  $ sqltree completion fish > ~/.config/fish/completions/sqltree.fish

PowerShell:
  PS> sqltree completion powershell | Out-String | Invoke-Expression

  # To load completions for every new session, run:
  PS> sqltree completion powershell > sqltree.ps1
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

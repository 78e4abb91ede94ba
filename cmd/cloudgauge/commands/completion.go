package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate completion script",
	Long: `To load completions:

Bash:
  $ source <(cloudgauge completion bash)

  # To load completions for each session, execute once:
  # Linux:
  $ cloudgauge completion bash > /etc/bash_completion.d/cloudgauge
  # macOS:
  $ cloudgauge completion bash > /usr/local/etc/bash_completion.d/cloudgauge

Zsh:
  # If shell completion is not already enabled in your environment,
  # you will need to enable it.  You can execute the following once:

  $ echo "autoload -U compinit; compinit" >> ~/.zshrc

  # To load completions for each session, execute once:
  $ cloudgauge completion zsh > "${fpath[1]}/_cloudgauge"

  # You will need to start a new shell for this setup to take effect.

Fish:
  $ cloudgauge completion fish | source

  # To load completions for each session, execute once:
  $ cloudgauge completion fish > ~/.config/fish/completions/cloudgauge.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.ExactValidArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		switch args[0] {
		case "bash":
			fmt.Print(humanBashCompletion)
		case "zsh":
			rootCmd.GenZshCompletion(os.Stdout)
		case "fish":
			rootCmd.GenFishCompletion(os.Stdout, true)
		case "powershell":
			rootCmd.GenPowerShellCompletion(os.Stdout)
		}
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// humanBashCompletion is a handcrafted, minimal bash completion script
// that avoids the robotic verbosity of auto-generated ones.
const humanBashCompletion = `
# cloudgauge bash completion

_cloudgauge_completion() {
    local cur prev opts
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"
    opts="scan cost completion help"

    case "${prev}" in
        scan)
            COMPREPLY=( $(compgen -W "--regions --types --tag --period --lookback-days --output --format --interactive --rules --rates --strict --mock --help" -- ${cur}) )
            return 0
            ;;
        cost)
            COMPREPLY=( $(compgen -W "--regions --days --by-region --mock --help" -- ${cur}) )
            return 0
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh fish powershell" -- ${cur}) )
            return 0
            ;;
        --regions)
            # Common regions
            local regions="us-east-1 us-east-2 us-west-1 us-west-2 eu-central-1 eu-west-1 ap-southeast-1"
            COMPREPLY=( $(compgen -W "${regions}" -- ${cur}) )
            return 0
            ;;
        --format)
            COMPREPLY=( $(compgen -W "json csv json,csv" -- ${cur}) )
            return 0
            ;;
        *)
            ;;
    esac

    # Global Flags
    if [[ ${cur} == -* ]] ; then
        COMPREPLY=( $(compgen -W "--help --version --regions --profile --concurrency --verbose" -- ${cur}) )
        return 0
    fi

    # Subcommands
    COMPREPLY=( $(compgen -W "${opts}" -- ${cur}) )
}

complete -F _cloudgauge_completion cloudgauge
`

package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	configFile string
	logLevel   string
}

// NewRootCmd builds the command tree. Each call returns a fresh tree so
// flag values never leak between invocations.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "promptchain",
		Short: "Promptchain - LLM prompt chain runner",
		Long: `Promptchain executes chains of LLM prompts declared in workflow files.
Each prompt's structured response decides the next step, tools are invoked
on the model's behalf, and failing providers fall back to the next one.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is ./promptchain.yaml or $HOME/.promptchain/promptchain.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.AddCommand(
		newRunCmd(opts),
		newValidateCmd(opts),
		newWatchCmd(opts),
		newConfigureCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the root command. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetRootCmd returns a root command for testing
func GetRootCmd() *cobra.Command {
	return NewRootCmd()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

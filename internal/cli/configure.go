package cli

import (
	"fmt"
	"os"

	"github.com/harun/promptchain/internal/config"
	"github.com/harun/promptchain/pkg/provider"
	"github.com/spf13/cobra"
)

var defaultModels = map[provider.Type]string{
	provider.TypeAnthropic:       "claude-sonnet-4-5",
	provider.TypeAnthropicVertex: "claude-sonnet-4-5@20250929",
	provider.TypeOpenAI:          "gpt-4o",
}

type configureOptions struct {
	name      string
	typ       string
	model     string
	apiKeyEnv string
	region    string
	project   string
	workflow  string
	cycle     bool
	force     bool
}

func newConfigureCmd(global *globalOptions) *cobra.Command {
	opts := &configureOptions{}

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Write a configuration file",
		Long: `Write a configuration file with runner defaults and one provider.
API keys are never written; the provider reads its key from the environment
variable named by --api-key-env (or the provider type's usual variable).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, global, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "provider-name", "default", "provider name")
	cmd.Flags().StringVar(&opts.typ, "provider-type", string(provider.TypeAnthropic), "provider type (anthropic, anthropic-vertex, openai)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name (default depends on the provider type)")
	cmd.Flags().StringVar(&opts.apiKeyEnv, "api-key-env", "", "environment variable holding the API key")
	cmd.Flags().StringVar(&opts.region, "region", "", "Vertex AI region")
	cmd.Flags().StringVar(&opts.project, "project", "", "Vertex AI project")
	cmd.Flags().StringVar(&opts.workflow, "workflow", "", "default workflow file")
	cmd.Flags().BoolVar(&opts.cycle, "cycle-providers", false, "fall back to other providers on failure")
	cmd.Flags().BoolVar(&opts.force, "force", false, "overwrite an existing config file")

	return cmd
}

func runConfigure(cmd *cobra.Command, global *globalOptions, opts *configureOptions) error {
	loader := config.NewLoader(global.configFile)
	configPath := loader.GetConfigPath()

	if _, err := os.Stat(configPath); err == nil && !opts.force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", configPath)
	}

	typ := provider.Type(opts.typ)
	model := opts.model
	if model == "" {
		model = defaultModels[typ]
	}

	cfg := config.DefaultConfig()
	cfg.Runner.DefaultProvider = opts.name
	cfg.Runner.CycleProviders = opts.cycle
	cfg.Workflow.Path = opts.workflow
	cfg.Providers = []config.ProviderConfig{{
		Name:      opts.name,
		Type:      typ,
		Model:     model,
		APIKeyEnv: opts.apiKeyEnv,
		Region:    opts.region,
		Project:   opts.project,
	}}
	if global.logLevel != "" {
		cfg.Logging.Level = global.logLevel
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := loader.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Configuration saved to: %s\n", configPath)
	fmt.Fprintln(out, "You can now run a chain with: promptchain run <prompt> --workflow <file>")

	return nil
}

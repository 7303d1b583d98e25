package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/harun/promptchain/internal/tracing"
	"github.com/harun/promptchain/pkg/chain"
	"github.com/harun/promptchain/pkg/workflow"
	"github.com/spf13/cobra"
)

// runOptions holds the flags of run and watch
type runOptions struct {
	workflow string
	args     []string
	argsJSON string
	provider string
	state    string
	auditLog string
}

func (o *runOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.workflow, "workflow", "w", "", "workflow file (default is workflow.path from the config)")
	cmd.Flags().StringArrayVar(&o.args, "arg", nil, "prompt argument as key=value; JSON values are decoded (repeatable)")
	cmd.Flags().StringVar(&o.argsJSON, "args-json", "", "prompt arguments as a JSON object")
	cmd.Flags().StringVar(&o.provider, "provider", "", "provider to try first")
	cmd.Flags().StringVar(&o.state, "state", "", "initial run state as a JSON object, or @file to read it from a file")
	cmd.Flags().StringVar(&o.auditLog, "audit-log", "", "append run audit events to this file")
}

func newRunCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run a prompt chain",
		Long: `Run a prompt chain from a workflow file, starting at the named prompt.
The result is printed as JSON; failures exit non-zero with the error code
and details.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChain(cmd, global, opts, args[0])
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runChain(cmd *cobra.Command, global *globalOptions, opts *runOptions, promptName string) error {
	promptArgs, err := parseArgs(opts.args, opts.argsJSON)
	if err != nil {
		return err
	}
	state, err := parseState(opts.state)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, global, opts.auditLog)
	if err != nil {
		return err
	}
	defer s.close()

	def, err := s.loadWorkflow(opts.workflow)
	if err != nil {
		return err
	}

	result, err := executeChain(cmd.Context(), s, def, promptName, promptArgs, state, opts.provider)
	if err != nil {
		return describeError(err)
	}
	return writeResult(cmd.OutOrStdout(), result)
}

// executeChain builds a runner for def and runs it once
func executeChain(ctx context.Context, s *session, def *workflow.Definition, promptName string, args, state map[string]interface{}, providerOverride string) (*chain.Result, error) {
	cfg, err := s.build(def)
	if err != nil {
		return nil, err
	}

	runnerOpts := s.runnerOptions()
	runnerOpts.State = state
	if !hasProvider(cfg, runnerOpts.DefaultProvider) {
		runnerOpts.DefaultProvider = ""
	}

	runner, err := chain.NewRunner(cfg, runnerOpts)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("workflow", def.Name).
		Str("prompt", promptName).
		Str("run_id", runner.RunID()).
		Msg("Running chain")

	ctx = tracing.WithWorkflow(ctx, def.Name)
	return chain.Run(ctx, runner, promptName, args, providerOverride)
}

// hasProvider reports whether name is empty or one of cfg's providers. The
// configured default does not apply to workflows with their own providers.
func hasProvider(cfg chain.Config, name string) bool {
	if name == "" {
		return true
	}
	for _, p := range cfg.Providers {
		if p.Name() == name {
			return true
		}
	}
	return false
}

func writeResult(w io.Writer, result *chain.Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// parseArgs merges --args-json with --arg pairs; pairs win on conflicts
func parseArgs(pairs []string, argsJSON string) (map[string]interface{}, error) {
	args := map[string]interface{}{}

	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, fmt.Errorf("invalid --args-json: %w", err)
		}
	}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --arg %q: expected key=value", pair)
		}
		args[strings.TrimSpace(key)] = parseValue(raw)
	}

	return args, nil
}

// parseValue decodes raw as JSON when it is valid JSON, else keeps the string
func parseValue(raw string) interface{} {
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return value
	}
	return raw
}

func parseState(value string) (map[string]interface{}, error) {
	if value == "" {
		return nil, nil
	}

	data := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read state file: %w", err)
		}
	}

	var state map[string]interface{}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("invalid --state: %w", err)
	}
	return state, nil
}

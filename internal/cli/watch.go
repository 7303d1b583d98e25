package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/promptchain/pkg/workflow"
	"github.com/spf13/cobra"
)

func newWatchCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "watch <prompt>",
		Short: "Re-run a prompt chain whenever its workflow file changes",
		Long: `Run a prompt chain, then watch the workflow file and run it again after
every change. Invalid edits are reported and the previous run is kept.
Stop with Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchChain(cmd, global, opts, args[0])
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func watchChain(cmd *cobra.Command, global *globalOptions, opts *runOptions, promptName string) error {
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

	path := opts.workflow
	if path == "" {
		path = s.cfg.Workflow.Path
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	watcher, err := workflow.NewWatcher(workflow.WatcherConfig{
		Path: path,
		OnReload: func(def *workflow.Definition) {
			s.logger.Info().Str("workflow", def.Path).Str("hash", def.Hash[:12]).Msg("Workflow loaded")

			result, err := executeChain(ctx, s, def, promptName, promptArgs, state, opts.provider)
			if err != nil {
				s.logger.Error().Err(describeError(err)).Msg("Chain failed")
				return
			}
			if err := writeResult(out, result); err != nil {
				s.logger.Error().Err(err).Msg("Failed to write result")
			}
		},
		OnError: func(err error) {
			s.logger.Error().Err(err).Msg("Workflow reload failed")
		},
	})
	if err != nil {
		return err
	}

	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	s.logger.Info().Str("workflow", path).Msg("Watching for changes")
	<-ctx.Done()
	return nil
}

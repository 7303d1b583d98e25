package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(global *globalOptions) *cobra.Command {
	var workflowPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a workflow file for errors",
		Long: `Check a workflow file without calling any provider: prompt names must be
unique, transitions and tool lists must reference known prompts and tools,
conditions must parse and response schemas must compile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, global, "")
			if err != nil {
				return err
			}
			defer s.close()

			def, err := s.loadWorkflow(workflowPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result := def.Validate()
			for _, w := range result.Warnings {
				fmt.Fprintf(out, "warning: %s: %s\n", w.Field, w.Message)
			}
			for _, e := range result.Errors {
				fmt.Fprintf(out, "error: %s: %s\n", e.Field, e.Message)
			}
			if !result.Valid {
				return fmt.Errorf("workflow %s is invalid: %d error(s)", def.Path, len(result.Errors))
			}

			fmt.Fprintf(out, "Workflow %s is valid (%d prompts, %d tools, %d providers)\n",
				def.Name, len(def.Prompts), len(def.Tools), len(def.Providers))
			return nil
		},
	}

	cmd.Flags().StringVarP(&workflowPath, "workflow", "w", "", "workflow file (default is workflow.path from the config)")

	return cmd
}

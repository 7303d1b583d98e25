// Package chain executes declarative, multi-step LLM prompt chains.
//
// A chain is a set of named prompts. Each prompt renders system and user
// templates, calls a provider, parses the response as JSON, validates it
// against the prompt's response schema and merges it into the run state.
// The model may call tools mid-turn; the prompt is then re-sent with the
// tool result. When the turn ends, the prompt's ordered transition table
// picks the next prompt, a function to call, or ends the run.
//
// Invariants:
// - Prompt and provider names are unique within a Config.
// - Depth grows by one per prompt-to-prompt transition and the run fails
//   with MaxDepthReached once it reaches Options.MaxDepth. Tool calls do
//   not count toward depth.
// - Each prompt turn, including its tool re-prompts, is bounded by
//   Options.Timeout.
// - Transport failures are retried up to Options.RetryAttempts times with a
//   fixed Options.RetryDelay; parse and schema failures are not retried.
// - State only grows during a run: outputs are shallow-merged, tool calls
//   are appended as work products.
// - state.taskCompleted becomes true only when completeTask is invoked.
// - Every failure is returned as *AIError.
//
// Usage:
//
//	runner, err := chain.NewRunner(chain.Config{
//		Providers: []provider.Adapter{provider.NewAnthropicDirect("claude", provider.AnthropicConfig{APIKey: key, Model: model})},
//		Prompts:   prompts,
//	}, chain.Options{MaxDepth: 5})
//	if err != nil {
//		return err
//	}
//	result, err := runner.Run(ctx, "main", map[string]interface{}{"query": "hi"}, "")
package chain

package chain

import (
	"context"

	"github.com/harun/promptchain/pkg/provider"
)

// runWithDepth steps from prompt to prompt until a prompt ends without a
// matching transition, a function action runs, or completeTask is called.
// Each prompt-to-prompt transition increases depth by one; tool calls inside
// a prompt turn do not.
func (r *Runner) runWithDepth(ctx context.Context, adapter provider.Adapter, promptName string, args map[string]interface{}, depth int) (interface{}, string, error) {
	logger := r.loggerFor(ctx).With().Str("provider", adapter.Name()).Logger()

	for {
		r.emit(Event{Type: EventRunWithDepthStart, Prompt: promptName, Provider: adapter.Name(), Depth: depth})

		if depth >= r.opts.MaxDepth {
			r.emit(Event{Type: EventMaxDepthReached, Prompt: promptName, Provider: adapter.Name(), Depth: depth})
			logger.Error().Int("max_depth", r.opts.MaxDepth).Str("prompt", promptName).Msg("Max depth reached")
			return nil, promptName, newError(CodeMaxDepthReached, "Max depth reached: %d", r.opts.MaxDepth)
		}

		prompt, ok := r.prompts[promptName]
		if !ok {
			r.emit(Event{Type: EventPromptNotFound, Prompt: promptName, Provider: adapter.Name(), Depth: depth})
			return nil, promptName, newError(CodePromptNotFound, "Prompt not found: %s", promptName)
		}

		s := &step{prompt: prompt, adapter: adapter, depth: depth}
		r.emit(s.event(EventExecutePrompt))
		logger.Debug().Str("prompt", promptName).Int("depth", depth).Msg("Executing prompt")

		out, err := r.executePromptWithTimeout(ctx, s, args)
		if err != nil {
			return nil, promptName, err
		}
		r.emit(s.event(EventPromptExecutionComplete))

		switch {
		case out.completed, out.next == nil:
			return out.output, promptName, nil

		case out.next.Prompt != "":
			logger.Debug().
				Str("from", promptName).
				Str("to", out.next.Prompt).
				Int("depth", depth+1).
				Msg("Transitioning to prompt")
			promptName = out.next.Prompt
			args = out.next.Arguments
			depth++

		default:
			result, err := r.invokeTool(ctx, s, out.next.Function, out.next.Arguments, SourceTransition)
			if err != nil {
				return nil, promptName, err
			}
			return result, promptName, nil
		}
	}
}

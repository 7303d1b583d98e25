package chain

import (
	"context"
	"time"

	"github.com/harun/promptchain/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
)

// Run executes promptName on runner. It is shorthand for runner.Run.
func Run(ctx context.Context, runner *Runner, promptName string, args map[string]interface{}, providerOverride string) (*Result, error) {
	return runner.Run(ctx, promptName, args, providerOverride)
}

// Run executes the chain starting at promptName. The override provider (or
// DefaultProvider, or the first configured provider) is tried first. When a
// provider attempt fails and CycleProviders is set, the next provider is
// tried unless the FallbackPolicy vetoes it or the error is a configuration
// error. Failure of the final attempt is reported as AllProvidersFailed
// wrapping the last error.
func (r *Runner) Run(ctx context.Context, promptName string, args map[string]interface{}, providerOverride string) (result *Result, err error) {
	if args == nil {
		args = map[string]interface{}{}
	}

	ctx = tracing.NewRunContext(ctx, r.runID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "chain.run",
		attribute.String("prompt", promptName),
	)
	defer func() { tracing.EndSpan(span, err) }()

	logger := r.loggerFor(ctx)
	start := time.Now()

	r.emit(Event{Type: EventRunStart, Prompt: promptName, Data: map[string]interface{}{"args": args}})

	order, err := r.providerList(providerOverride)
	if err != nil {
		aiErr, _ := normalizeError(err)
		r.emit(Event{Type: EventAIError, Prompt: promptName, Err: aiErr})
		logger.Error().Err(aiErr).Msg("Run failed")
		return nil, aiErr
	}

	var lastErr *AIError
	for i, name := range order {
		adapter := r.providers[name]
		attempt := i + 1
		remaining := len(order) - attempt

		r.emit(Event{Type: EventProviderAttempt, Prompt: promptName, Provider: name, Attempt: attempt})
		logger.Info().Str("provider", name).Int("attempt", attempt).Str("prompt", promptName).Msg("Trying provider")

		output, lastPrompt, runErr := r.runWithDepth(ctx, adapter, promptName, args, 0)
		if runErr == nil {
			result = &Result{
				Output:        output,
				Prompt:        lastPrompt,
				Provider:      name,
				TaskCompleted: r.state.TaskCompleted(),
				State:         r.state.Snapshot(),
				WorkProducts:  r.state.WorkProducts(),
			}
			r.emit(Event{
				Type:     EventRunComplete,
				Prompt:   lastPrompt,
				Provider: name,
				Attempt:  attempt,
				Duration: time.Since(start),
				Data:     map[string]interface{}{"taskCompleted": result.TaskCompleted},
			})
			logger.Info().
				Str("provider", name).
				Str("prompt", lastPrompt).
				Bool("task_completed", result.TaskCompleted).
				Dur("duration", time.Since(start)).
				Msg("Run completed")
			return result, nil
		}

		aiErr, unexpected := normalizeError(runErr)
		lastErr = aiErr

		evType := EventAIError
		if unexpected {
			evType = EventUnexpectedError
		}
		r.emit(Event{Type: evType, Prompt: promptName, Provider: name, Attempt: attempt, Err: aiErr})

		failure := Failure{
			Provider:   name,
			Attempt:    attempt,
			Remaining:  remaining,
			Err:        aiErr,
			Unexpected: unexpected,
		}
		if isFatalConfigError(aiErr) || !r.policy(ctx, failure) {
			logger.Error().Err(aiErr).Str("provider", name).Str("code", string(aiErr.Code)).Msg("Run failed")
			return nil, aiErr
		}

		r.emit(Event{Type: EventProviderFailed, Prompt: promptName, Provider: name, Attempt: attempt, Err: aiErr})
		logger.Warn().Err(aiErr).Str("provider", name).Int("remaining", remaining).Msg("Provider failed")

		if remaining == 0 {
			break
		}
		if !r.opts.CycleProviders {
			// Remaining providers are only tried when cycling is enabled.
			logger.Warn().
				Int("untried_providers", remaining).
				Msg("Provider cycling disabled; not trying remaining providers")
			break
		}
	}

	r.emit(Event{Type: EventAllProvidersFailed, Prompt: promptName, Err: lastErr, Duration: time.Since(start)})
	logger.Error().Err(lastErr).Msg("All providers failed")

	return nil, wrapError(CodeAllProvidersFailed, lastErr, "All providers failed")
}

// providerList orders providers: override or default first, then the rest
// in configuration order.
func (r *Runner) providerList(override string) ([]string, error) {
	first := override
	if first == "" {
		first = r.opts.DefaultProvider
	}
	if first == "" {
		first = r.providerOrder[0]
	}
	if _, ok := r.providers[first]; !ok {
		return nil, newError(CodeProviderNotFound, "Provider not found: %s", first)
	}

	order := make([]string, 0, len(r.providerOrder))
	order = append(order, first)
	for _, name := range r.providerOrder {
		if name != first {
			order = append(order, name)
		}
	}
	return order, nil
}

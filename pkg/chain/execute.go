package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harun/promptchain/internal/tracing"
	"github.com/harun/promptchain/pkg/provider"
	"github.com/harun/promptchain/pkg/toolexecutor"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel/attribute"
)

// step is one prompt executed against one provider at a given depth
type step struct {
	prompt  *Prompt
	adapter provider.Adapter
	depth   int
}

func (s *step) event(t EventType, fns ...func(*Event)) Event {
	ev := Event{Type: t, Prompt: s.prompt.Name, Provider: s.adapter.Name(), Depth: s.depth}
	for _, fn := range fns {
		fn(&ev)
	}
	return ev
}

// phase is a state of the prompt execution loop
type phase int

const (
	phaseAwaitingProvider phase = iota
	phaseValidatingResponse
	phaseExecutingTool
	phaseEvaluatingTransition
)

func (p phase) String() string {
	switch p {
	case phaseAwaitingProvider:
		return "AwaitingProvider"
	case phaseValidatingResponse:
		return "ValidatingResponse"
	case phaseExecutingTool:
		return "ExecutingTool"
	case phaseEvaluatingTransition:
		return "EvaluatingTransition"
	}
	return "Terminal"
}

// stepOutcome is how a prompt turn ended
type stepOutcome struct {
	output interface{}
	// next is the interpolated action of the matching transition, nil when terminal
	next *Action
	// completed is set when the model called completeTask
	completed bool
}

type toolReturn struct {
	name   string
	result interface{}
}

// executePromptWithTimeout bounds a whole prompt turn, including any tool
// re-prompts, by Options.Timeout.
func (r *Runner) executePromptWithTimeout(ctx context.Context, s *step, args map[string]interface{}) (*stepOutcome, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "chain.prompt",
		attribute.String("prompt", s.prompt.Name),
		attribute.String("provider", s.adapter.Name()),
		attribute.Int("depth", s.depth),
	)

	stepCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	type result struct {
		out *stepOutcome
		err error
	}
	done := make(chan result, 1)
	start := time.Now()

	go func() {
		out, err := r.executePrompt(stepCtx, s, args)
		done <- result{out: out, err: err}
	}()

	var (
		out *stepOutcome
		err error
	)
	select {
	case res := <-done:
		out, err = res.out, res.err
		if err != nil && ctx.Err() == nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			err = r.timeoutError(ctx, s, start)
		}
	case <-stepCtx.Done():
		if ctx.Err() != nil {
			err, _ = normalizeError(ctx.Err())
		} else {
			err = r.timeoutError(ctx, s, start)
		}
	}

	if err != nil {
		r.emit(s.event(EventExecutionError, func(ev *Event) {
			ev.Err = err
			ev.Duration = time.Since(start)
		}))
	} else {
		r.emit(s.event(EventExecutionComplete, func(ev *Event) { ev.Duration = time.Since(start) }))
	}

	tracing.EndSpan(span, err)
	return out, err
}

func (r *Runner) timeoutError(ctx context.Context, s *step, start time.Time) error {
	r.emit(s.event(EventExecutionTimeout, func(ev *Event) { ev.Duration = time.Since(start) }))
	logger := r.loggerFor(ctx)
	logger.Error().
		Str("prompt", s.prompt.Name).
		Str("provider", s.adapter.Name()).
		Dur("timeout", r.opts.Timeout).
		Msg("Prompt execution timed out")
	return newError(CodeExecutionTimeout, "Prompt %s timed out after %v", s.prompt.Name, r.opts.Timeout)
}

// executePrompt runs one prompt turn as a state loop. Tool calls requested by
// the model re-enter AwaitingProvider with the tool result; the loop ends when
// the transition table has been evaluated or completeTask was called.
func (r *Runner) executePrompt(ctx context.Context, s *step, args map[string]interface{}) (*stepOutcome, error) {
	logger := r.loggerFor(ctx).With().
		Str("prompt", s.prompt.Name).
		Str("provider", s.adapter.Name()).
		Int("depth", s.depth).
		Logger()

	r.emit(s.event(EventExecutePromptStart))
	r.seedPrimaryTask(args)

	tools, err := r.formatTools(s)
	if err != nil {
		return nil, err
	}

	var (
		content  string
		call     *provider.ToolCall
		parsed   interface{}
		lastTool *toolReturn
		rounds   int
	)

	ph := phaseAwaitingProvider
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug().Stringer("phase", ph).Int("round", rounds).Msg("Prompt phase")

		switch ph {
		case phaseAwaitingProvider:
			rounds++
			raw, err := r.makeRequestWithRetry(ctx, s, r.renderMessages(s, args, lastTool), tools)
			if err != nil {
				return nil, err
			}

			content, err = s.adapter.Content(raw)
			if err != nil {
				r.emit(s.event(EventResponseParseError, func(ev *Event) { ev.Err = err }))
				return nil, wrapError(CodeInvalidJSONResponse, err, "Invalid response from provider %s", s.adapter.Name())
			}

			call, err = s.adapter.ToolCall(raw)
			if err != nil {
				return nil, wrapError(CodeInvalidToolCallStructure, err, "Invalid tool call from provider %s", s.adapter.Name())
			}
			ph = phaseValidatingResponse

		case phaseValidatingResponse:
			if call != nil && strings.TrimSpace(content) == "" {
				// A tool-only turn is an empty object and still faces the schema.
				content = "{}"
			}

			parsed, err = parseContent(content)
			if err != nil {
				r.emit(s.event(EventResponseParseError, func(ev *Event) {
					ev.Err = err
					ev.Data = map[string]interface{}{"content": content}
				}))
				logger.Warn().Err(err).Msg("Response is not valid JSON")
				return nil, &AIError{
					Code:    CodeInvalidJSONResponse,
					Message: fmt.Sprintf("Invalid JSON response for prompt %s", s.prompt.Name),
					Details: content,
					Cause:   err,
				}
			}

			violations, err := validateAgainst(r.schemas[s.prompt.Name], parsed)
			if err != nil {
				return nil, wrapError(CodeResponseValidationFailed, err, "Response validation failed for prompt %s", s.prompt.Name)
			}
			if len(violations) > 0 {
				r.emit(s.event(EventResponseValidationError, func(ev *Event) {
					ev.Data = map[string]interface{}{"errors": violations}
				}))
				logger.Warn().Strs("errors", violations).Msg("Response failed schema validation")
				return nil, &AIError{
					Code:    CodeResponseValidationFailed,
					Message: fmt.Sprintf("Response validation failed for prompt %s", s.prompt.Name),
					Details: violations,
				}
			}

			if m, ok := parsed.(map[string]interface{}); ok {
				r.state.Merge(m)
			}

			if call != nil {
				ph = phaseExecutingTool
			} else {
				ph = phaseEvaluatingTransition
			}

		case phaseExecutingTool:
			r.emit(s.event(EventToolCallDetected, func(ev *Event) {
				ev.Data = map[string]interface{}{"tool": call.Name}
			}))

			name, toolArgs, err := r.parseToolCall(call)
			if err != nil {
				return nil, err
			}

			result, err := r.invokeTool(ctx, s, name, toolArgs, SourceModel)
			if err != nil {
				return nil, err
			}

			if name == CompleteTaskTool {
				logger.Info().Msg("Task completed by model")
				return &stepOutcome{output: result, completed: true}, nil
			}

			lastTool = &toolReturn{name: name, result: result}
			args = withToolResult(args, result)
			call = nil
			ph = phaseAwaitingProvider

		case phaseEvaluatingTransition:
			next, err := r.evaluateTransitions(s, parsed)
			if err != nil {
				return nil, err
			}
			r.emit(s.event(EventNextStepEvaluated, func(ev *Event) {
				ev.Data = map[string]interface{}{"terminal": next == nil}
				if next != nil {
					ev.Data["prompt"] = next.Prompt
					ev.Data["function"] = next.Function
				}
			}))
			return &stepOutcome{output: parsed, next: next}, nil
		}
	}
}

func (r *Runner) seedPrimaryTask(args map[string]interface{}) {
	for _, key := range []string{"query", keyPrimaryTask} {
		if v, ok := args[key]; ok && v != nil {
			r.state.SetIfAbsent(keyPrimaryTask, v)
			return
		}
	}
}

func (r *Runner) formatTools(s *step) (interface{}, error) {
	if len(s.prompt.Tools) == 0 {
		return nil, nil
	}

	defs, missing := r.tools.Specs(s.prompt.Tools)
	if len(missing) > 0 {
		return nil, newError(CodeToolNotFound, "Tool not found: %s (prompt %s)", strings.Join(missing, ", "), s.prompt.Name)
	}

	specs := make([]provider.ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, provider.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		})
	}
	return s.adapter.FormatTools(specs), nil
}

// renderMessages builds the chat for one round. Templates see the arguments
// both at the top level and under args, and the run state under state.
func (r *Runner) renderMessages(s *step, args map[string]interface{}, lastTool *toolReturn) []provider.Message {
	vars := make(map[string]interface{}, len(args)+2)
	for k, v := range args {
		vars[k] = v
	}
	vars["args"] = args
	vars["state"] = r.state.Snapshot()

	var messages []provider.Message
	if s.prompt.System != "" {
		messages = append(messages, s.adapter.Message(provider.RoleSystem, Interpolate(s.prompt.System, vars)))
	}
	if s.prompt.User != "" {
		messages = append(messages, s.adapter.Message(provider.RoleUser, Interpolate(s.prompt.User, vars)))
	}
	if lastTool != nil {
		messages = append(messages, s.adapter.Message(provider.RoleUser,
			fmt.Sprintf("Tool %s returned: %s", lastTool.name, encodeJSON(lastTool.result))))
	}
	return messages
}

func (r *Runner) parseToolCall(call *provider.ToolCall) (string, map[string]interface{}, error) {
	if call == nil || strings.TrimSpace(call.Name) == "" {
		return "", nil, newError(CodeInvalidToolCallStructure, "Tool call has no function name")
	}
	if !r.tools.HasTool(call.Name) {
		return "", nil, newError(CodeInvalidToolCallStructure, "Tool call names unknown function: %s", call.Name)
	}
	if strings.TrimSpace(call.Arguments) == "" {
		return "", nil, newError(CodeInvalidToolCallStructure, "Tool call %s has no arguments", call.Name)
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return "", nil, &AIError{
			Code:    CodeInvalidToolCallStructure,
			Message: fmt.Sprintf("Tool call %s has malformed arguments", call.Name),
			Details: call.Arguments,
			Cause:   err,
		}
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return call.Name, args, nil
}

// invokeTool runs a tool and records it as a work product. Calling
// completeTask marks the run as completed.
func (r *Runner) invokeTool(ctx context.Context, s *step, name string, args map[string]interface{}, source string) (interface{}, error) {
	if !r.tools.HasTool(name) {
		return nil, newError(CodeToolNotFound, "Tool not found: %s", name)
	}

	start := time.Now()
	result, err := r.tools.Invoke(ctx, name, args, &toolexecutor.ExecutionContext{
		RunID:   r.runID,
		Prompt:  s.prompt.Name,
		Timeout: r.opts.Timeout,
		Shared:  r.opts.Context,
	})
	duration := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		r.emit(s.event(EventToolExecutionError, func(ev *Event) {
			ev.Err = err
			ev.Duration = duration
			ev.Data = map[string]interface{}{"tool": name, "source": source}
		}))
		logger := r.loggerFor(ctx)
		logger.Error().Err(err).Str("tool", name).Str("prompt", s.prompt.Name).Msg("Tool execution failed")

		if errors.Is(err, context.DeadlineExceeded) {
			return nil, wrapError(CodeExecutionTimeout, err, "Tool %s timed out after %v", name, r.opts.Timeout)
		}

		aiErr := wrapError(CodeToolExecutionError, err, "Tool %s failed", name)
		var vErr *toolexecutor.ValidationError
		if errors.As(err, &vErr) {
			aiErr.Details = vErr.Errors
		}
		return nil, aiErr
	}

	id, _ := gonanoid.New()
	r.state.AppendWorkProduct(WorkProduct{
		ID:        id,
		Tool:      name,
		Arguments: args,
		Result:    result,
		Prompt:    s.prompt.Name,
		Source:    source,
	})

	if name == CompleteTaskTool {
		r.state.setTaskCompleted()
		r.emit(s.event(EventTaskCompleted, func(ev *Event) {
			ev.Data = map[string]interface{}{"source": source}
		}))
	}

	return result, nil
}

// evaluateTransitions returns the action of the first condition that holds,
// or nil when none does.
func (r *Runner) evaluateTransitions(s *step, parsed interface{}) (*Action, error) {
	if len(s.prompt.Then) == 0 {
		return nil, nil
	}

	vars := make(map[string]interface{})
	if m, ok := parsed.(map[string]interface{}); ok {
		for k, v := range m {
			vars[k] = v
		}
	}
	vars["result"] = parsed
	vars["state"] = r.state.Snapshot()

	for _, tr := range s.prompt.Then {
		expr := interpolateCondition(tr.Condition, vars)
		ok, err := EvaluateCondition(expr, vars)
		if err != nil {
			return nil, &AIError{
				Code:    CodeInvalidCondition,
				Message: fmt.Sprintf("Invalid condition %q in prompt %s", tr.Condition, s.prompt.Name),
				Details: expr,
				Cause:   err,
			}
		}
		if !ok {
			continue
		}

		if (tr.Action.Prompt == "") == (tr.Action.Function == "") {
			return nil, newError(CodeInvalidTransition,
				"Transition %q in prompt %s must name exactly one of prompt or function", tr.Condition, s.prompt.Name)
		}
		return &Action{
			Prompt:    tr.Action.Prompt,
			Function:  tr.Action.Function,
			Arguments: interpolateArguments(tr.Action.Arguments, vars),
		}, nil
	}
	return nil, nil
}

func withToolResult(args map[string]interface{}, result interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args)+1)
	for k, v := range args {
		out[k] = v
	}
	out["toolResult"] = result
	return out
}

// parseContent decodes model output as JSON, unwrapping a markdown code fence
func parseContent(content string) (interface{}, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
	}

	var value interface{}
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return nil, err
	}
	return value, nil
}

func encodeJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}

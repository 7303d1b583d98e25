package chain

import (
	"context"
	"strings"
	"time"

	"github.com/harun/promptchain/internal/tracing"
	"github.com/harun/promptchain/pkg/provider"
	"github.com/harun/promptchain/pkg/toolexecutor"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

const tracerName = "promptchain/chain"

// Runner executes one chain run. It owns the run's State and must not be
// shared between concurrent runs; build one Runner per Run call.
type Runner struct {
	opts Options

	providers     map[string]provider.Adapter
	providerOrder []string
	prompts       map[string]*Prompt
	schemas       map[string]*gojsonschema.Schema
	tools         *toolexecutor.Executor

	state      *State
	httpClient provider.HTTPClient
	logger     zerolog.Logger
	observer   Observer
	policy     FallbackPolicy
	runID      string
}

// NewRunner validates cfg and prepares a Runner for a single run
func NewRunner(cfg Config, opts Options) (*Runner, error) {
	opts = opts.withDefaults()

	r := &Runner{
		opts:      opts,
		providers: make(map[string]provider.Adapter, len(cfg.Providers)),
		prompts:   make(map[string]*Prompt, len(cfg.Prompts)),
		schemas:   make(map[string]*gojsonschema.Schema, len(cfg.Prompts)),
		tools:     toolexecutor.New(),
		state:     NewState(opts.State),
		runID:     tracing.NewRunID(),
	}

	if len(cfg.Providers) == 0 {
		return nil, newError(CodeInvalidConfig, "at least one provider is required")
	}
	for _, p := range cfg.Providers {
		if p == nil {
			return nil, newError(CodeInvalidConfig, "provider cannot be nil")
		}
		name := p.Name()
		if strings.TrimSpace(name) == "" {
			return nil, newError(CodeInvalidConfig, "provider name cannot be empty")
		}
		if _, exists := r.providers[name]; exists {
			return nil, newError(CodeInvalidConfig, "duplicate provider name: %s", name)
		}
		r.providers[name] = p
		r.providerOrder = append(r.providerOrder, name)
	}

	for i := range cfg.Prompts {
		prompt := cfg.Prompts[i]
		if strings.TrimSpace(prompt.Name) == "" {
			return nil, newError(CodeInvalidConfig, "prompt %d has no name", i)
		}
		if _, exists := r.prompts[prompt.Name]; exists {
			return nil, newError(CodeInvalidConfig, "duplicate prompt name: %s", prompt.Name)
		}
		schema, err := CompileSchema(prompt.ResponseFormat)
		if err != nil {
			return nil, wrapError(CodeInvalidConfig, err, "prompt %s has an invalid response schema", prompt.Name)
		}
		r.prompts[prompt.Name] = &prompt
		r.schemas[prompt.Name] = schema
	}

	if err := r.tools.RegisterTool(completeTaskBuiltin()); err != nil {
		return nil, wrapError(CodeInvalidConfig, err, "failed to register %s", CompleteTaskTool)
	}
	for _, defs := range [][]toolexecutor.ToolDefinition{cfg.Tools, opts.Tools} {
		for _, def := range defs {
			if err := r.tools.RegisterTool(def); err != nil {
				return nil, wrapError(CodeInvalidConfig, err, "failed to register tool %s", def.Name)
			}
		}
	}

	r.httpClient = opts.HTTPClient
	if r.httpClient == nil {
		r.httpClient = provider.NewHTTPClient(0)
	}

	if opts.Logger != nil {
		r.logger = *opts.Logger
	} else {
		r.logger = log.Logger
	}
	r.logger = r.logger.With().Str("component", "chain").Logger()
	r.tools.WithLogger(r.logger)

	r.observer = opts.Observer
	r.policy = opts.FallbackPolicy
	if r.policy == nil {
		r.policy = AlwaysFallback
	}

	return r, nil
}

// RunID identifies this runner's run in events and logs
func (r *Runner) RunID() string {
	return r.runID
}

// State returns the run state
func (r *Runner) State() *State {
	return r.state
}

// Options returns the effective options after defaults
func (r *Runner) Options() Options {
	return r.opts
}

func (r *Runner) emit(ev Event) {
	if r.observer == nil {
		return
	}
	ev.RunID = r.runID
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	r.observer.Observe(ev)
}

func (r *Runner) loggerFor(ctx context.Context) zerolog.Logger {
	return tracing.LoggerFromContext(ctx, r.logger)
}

func completeTaskBuiltin() toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        CompleteTaskTool,
		Description: "Mark the task as complete and return the final answer",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return params, nil
		},
	}
}

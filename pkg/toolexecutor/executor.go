package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ErrToolNotFound is returned when invoking a tool that is not registered
var ErrToolNotFound = errors.New("tool not found")

// ToolHandler is the function signature for tool execution.
// The run's ExecutionContext is available through ExecutionContextFrom.
type ToolHandler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// ToolDefinition defines a tool's metadata and handler.
// Parameters is a JSON Schema object describing the arguments.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
	Handler     ToolHandler            `json:"-"`
}

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	RunID   string
	Prompt  string
	Timeout time.Duration
	// Shared is the caller-supplied context handed to every tool in a run
	Shared map[string]interface{}
}

// ValidationError reports tool arguments that do not satisfy the tool's schema
type ValidationError struct {
	Tool   string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, strings.Join(e.Errors, "; "))
}

// Executor registers tools and invokes them by name
type Executor struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	logger  zerolog.Logger
	mu      sync.RWMutex
}

// New creates a new Executor
func New() *Executor {
	return &Executor{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  log.Logger.With().Str("component", "toolexecutor").Logger(),
	}
}

// WithLogger replaces the executor's logger
func (te *Executor) WithLogger(logger zerolog.Logger) *Executor {
	te.mu.Lock()
	defer te.mu.Unlock()
	te.logger = logger.With().Str("component", "toolexecutor").Logger()
	return te
}

// RegisterTool registers a new tool, replacing any tool with the same name
func (te *Executor) RegisterTool(def ToolDefinition) error {
	if err := validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := compileSchema(def.Parameters)
	if err != nil {
		return fmt.Errorf("failed to compile schema for tool %s: %w", def.Name, err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	te.tools[def.Name] = &def
	te.schemas[def.Name] = schema

	te.logger.Debug().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// UnregisterTool removes a tool
func (te *Executor) UnregisterTool(name string) {
	te.mu.Lock()
	defer te.mu.Unlock()

	delete(te.tools, name)
	delete(te.schemas, name)
}

// GetTool returns a tool definition by name
func (te *Executor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return te.tools[name]
}

// HasTool reports whether a tool is registered
func (te *Executor) HasTool(name string) bool {
	return te.GetTool(name) != nil
}

// ListTools returns all registered tool names in sorted order
func (te *Executor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	tools := make([]string, 0, len(te.tools))
	for name := range te.tools {
		tools = append(tools, name)
	}
	sort.Strings(tools)

	return tools
}

// Invoke validates params against the tool schema and runs its handler.
// A positive execCtx.Timeout bounds the handler; the caller's context
// deadline applies otherwise.
func (te *Executor) Invoke(ctx context.Context, name string, params map[string]interface{}, execCtx *ExecutionContext) (interface{}, error) {
	te.mu.RLock()
	tool := te.tools[name]
	schema := te.schemas[name]
	logger := te.logger
	te.mu.RUnlock()

	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if params == nil {
		params = map[string]interface{}{}
	}

	if err := validateParameters(name, schema, params); err != nil {
		logger.Warn().Str("tool", name).Err(err).Msg("Parameter validation failed")
		return nil, err
	}

	runCtx := ctx
	if execCtx != nil {
		runCtx = WithExecutionContext(ctx, execCtx)
		if execCtx.Timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, execCtx.Timeout)
			defer cancel()
		}
	}

	startTime := time.Now()
	logger.Debug().Str("tool", name).Msg("Executing tool")

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := tool.Handler(runCtx, params)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		duration := time.Since(startTime)
		if out.err != nil {
			logger.Debug().Str("tool", name).Dur("duration", duration).Err(out.err).Msg("Tool execution failed")
			return nil, out.err
		}
		logger.Debug().Str("tool", name).Dur("duration", duration).Msg("Tool execution completed")
		return out.result, nil

	case <-runCtx.Done():
		logger.Warn().Str("tool", name).Dur("duration", time.Since(startTime)).Msg("Tool execution interrupted")
		return nil, fmt.Errorf("tool %s: %w", name, runCtx.Err())
	}
}

func validateToolDefinition(def ToolDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}
	if def.Parameters != nil {
		if t, ok := def.Parameters["type"]; ok && t != "object" {
			return fmt.Errorf("tool %s parameters must be an object schema, got %v", def.Name, t)
		}
	}
	return nil
}

func compileSchema(parameters map[string]interface{}) (*gojsonschema.Schema, error) {
	if len(parameters) == 0 {
		return nil, nil
	}
	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(parameters))
}

func validateParameters(tool string, schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return &ValidationError{Tool: tool, Errors: []string{err.Error()}}
	}

	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return &ValidationError{Tool: tool, Errors: errs}
	}

	return nil
}

// Specs returns name, description and parameters for the named tools in
// the given order. Unknown names are reported in missing.
func (te *Executor) Specs(names []string) (defs []ToolDefinition, missing []string) {
	te.mu.RLock()
	defer te.mu.RUnlock()

	for _, name := range names {
		tool, ok := te.tools[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		defs = append(defs, ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
		})
	}
	return defs, missing
}

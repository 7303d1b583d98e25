package workflow

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/harun/promptchain/pkg/chain"
	"github.com/harun/promptchain/pkg/provider"
	"github.com/harun/promptchain/pkg/toolexecutor"
)

// BuildOptions supplies what a workflow file cannot carry
type BuildOptions struct {
	// Providers replaces the file's providers when set
	Providers []provider.Adapter

	// Handlers binds tools declared without a command
	Handlers map[string]toolexecutor.ToolHandler

	// ResolveSpec fills in secrets (API keys) before an adapter is built
	ResolveSpec func(provider.Spec) provider.Spec
}

// Build validates the definition and turns it into an engine config
func (d *Definition) Build(opts BuildOptions) (chain.Config, error) {
	if err := d.Validate().Err(); err != nil {
		return chain.Config{}, err
	}

	providers := opts.Providers
	if len(providers) == 0 {
		for _, spec := range d.Providers {
			if opts.ResolveSpec != nil {
				spec = opts.ResolveSpec(spec)
			}
			adapter, err := provider.New(spec)
			if err != nil {
				return chain.Config{}, fmt.Errorf("failed to build provider: %w", err)
			}
			providers = append(providers, adapter)
		}
	}
	if len(providers) == 0 {
		return chain.Config{}, fmt.Errorf("workflow %s has no providers", d.Name)
	}

	tools := make([]toolexecutor.ToolDefinition, 0, len(d.Tools))
	for _, def := range d.Tools {
		handler, err := d.toolHandler(def, opts.Handlers)
		if err != nil {
			return chain.Config{}, err
		}
		tools = append(tools, toolexecutor.ToolDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
			Handler:     handler,
		})
	}

	return chain.Config{
		Providers: providers,
		Tools:     tools,
		Prompts:   d.Prompts,
	}, nil
}

func (d *Definition) toolHandler(def ToolDef, handlers map[string]toolexecutor.ToolHandler) (toolexecutor.ToolHandler, error) {
	if h, ok := handlers[def.Name]; ok {
		return h, nil
	}
	if len(def.Command) == 0 {
		return nil, fmt.Errorf("tool %s has no command and no handler was bound", def.Name)
	}

	workDir := def.WorkingDir
	if d.Path != "" && (workDir == "" || !filepath.IsAbs(workDir)) {
		workDir = filepath.Join(filepath.Dir(d.Path), workDir)
	}

	handler, err := toolexecutor.CommandHandler(toolexecutor.CommandSpec{
		Command:    def.Command,
		WorkingDir: workDir,
		Env:        def.Env,
		Timeout:    time.Duration(def.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", def.Name, err)
	}
	return handler, nil
}

package workflow

import (
	"github.com/harun/promptchain/pkg/chain"
	"github.com/harun/promptchain/pkg/provider"
)

// Format is the encoding of a workflow file
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Definition is a workflow file: the prompts of a chain plus the providers
// and tools it runs with.
type Definition struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Providers   []provider.Spec `json:"providers,omitempty" yaml:"providers,omitempty"`
	Tools       []ToolDef       `json:"tools,omitempty" yaml:"tools,omitempty"`
	Prompts     []chain.Prompt  `json:"prompts" yaml:"prompts"`

	// Set by the loader
	Path   string `json:"-" yaml:"-"`
	Format Format `json:"-" yaml:"-"`
	Hash   string `json:"-" yaml:"-"`
}

// ToolDef declares a tool. A tool with a Command is run as an external
// process; a tool without one must be bound to a Go handler at build time.
type ToolDef struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Command     []string               `json:"command,omitempty" yaml:"command,omitempty"`
	WorkingDir  string                 `json:"workingDir,omitempty" yaml:"workingDir,omitempty"`
	Env         map[string]string      `json:"env,omitempty" yaml:"env,omitempty"`
	TimeoutMs   int                    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// ValidationResult holds the problems found in a definition
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// ValidationError is a problem that makes the workflow unusable
type ValidationError struct {
	Field   string
	Message string
}

// ValidationWarning is a problem worth reporting that does not block a run
type ValidationWarning struct {
	Field   string
	Message string
}

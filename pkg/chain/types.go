package chain

import (
	"time"

	"github.com/harun/promptchain/pkg/provider"
	"github.com/harun/promptchain/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// CompleteTaskTool is the reserved tool name that marks a run as finished
const CompleteTaskTool = "completeTask"

// Default runner options
const (
	DefaultMaxDepth      = 10
	DefaultTimeout       = 60 * time.Second
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = time.Second
)

// Config is an immutable workflow: the providers it may call, the tools the
// model or transitions can invoke, and the prompts forming the chain.
type Config struct {
	Providers []provider.Adapter
	Tools     []toolexecutor.ToolDefinition
	Prompts   []Prompt
}

// Prompt is one step of a chain
type Prompt struct {
	Name   string `json:"name" yaml:"name"`
	System string `json:"system,omitempty" yaml:"system,omitempty"`
	User   string `json:"user,omitempty" yaml:"user,omitempty"`

	// RequestFormat overrides the provider's base request options
	RequestFormat map[string]interface{} `json:"requestFormat,omitempty" yaml:"requestFormat,omitempty"`

	// ResponseFormat is the JSON Schema the parsed response must satisfy
	ResponseFormat map[string]interface{} `json:"responseFormat,omitempty" yaml:"responseFormat,omitempty"`

	Tools []string    `json:"tools,omitempty" yaml:"tools,omitempty"`
	Then  Transitions `json:"then,omitempty" yaml:"then,omitempty"`
}

// Action is what a matching transition does next.
// Exactly one of Prompt or Function is set.
type Action struct {
	Prompt    string                 `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Function  string                 `json:"function,omitempty" yaml:"function,omitempty"`
	Arguments map[string]interface{} `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Transition pairs a condition expression with an action
type Transition struct {
	Condition string
	Action    Action
}

// WorkProduct records one tool invocation
type WorkProduct struct {
	ID        string                 `json:"id"`
	Tool      string                 `json:"tool"`
	Arguments map[string]interface{} `json:"arguments"`
	Result    interface{}            `json:"result"`
	Prompt    string                 `json:"prompt"`
	Source    string                 `json:"source"`
}

// Work product sources
const (
	SourceModel      = "model"
	SourceTransition = "transition"
)

// Result is the outcome of a successful run
type Result struct {
	Output        interface{}            `json:"output"`
	Prompt        string                 `json:"prompt"`
	Provider      string                 `json:"provider"`
	TaskCompleted bool                   `json:"taskCompleted"`
	State         map[string]interface{} `json:"state"`
	WorkProducts  []WorkProduct          `json:"workProducts"`
}

// Options tune a Runner. Zero values fall back to the defaults above;
// a negative RetryDelay disables the delay between attempts.
type Options struct {
	MaxDepth        int
	Timeout         time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	DefaultProvider string
	CycleProviders  bool

	// State seeds the run state
	State map[string]interface{}

	// Context is handed to every tool invocation
	Context map[string]interface{}

	HTTPClient     provider.HTTPClient
	Logger         *zerolog.Logger
	Observer       Observer
	FallbackPolicy FallbackPolicy

	// Tools registers extra handlers, replacing config tools of the same name
	Tools []toolexecutor.ToolDefinition
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	return o
}

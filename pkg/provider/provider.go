package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message in the vendor-neutral envelope.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Endpoint is where a provider request is posted.
type Endpoint struct {
	URL     string
	Headers map[string]string
}

// RequestBody is the vendor-neutral request handed to Adapter.Request.
type RequestBody struct {
	Options  map[string]interface{}
	Messages []Message
	// Tools holds the value returned by Adapter.FormatTools, or nil.
	Tools interface{}
}

// ToolSpec describes a callable tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Adapter shapes requests and responses for one LLM vendor.
// Implementations hold no per-request state and are safe to share.
type Adapter interface {
	// Name returns the configured provider name.
	Name() string

	// Endpoint returns the URL and headers for requests.
	Endpoint() Endpoint

	// Message builds a chat message in the vendor envelope.
	Message(role Role, content string) Message

	// Options returns the base request options (model, token limits, sampling).
	Options() map[string]interface{}

	// Request encodes the body, reshaping it for vendor-specific needs.
	Request(body RequestBody) ([]byte, error)

	// FormatTools converts tool specs to the vendor tool format.
	FormatTools(tools []ToolSpec) interface{}

	// Content extracts the text content from a raw response.
	Content(raw []byte) (string, error)

	// ToolCall extracts the first tool call from a raw response, or nil.
	ToolCall(raw []byte) (*ToolCall, error)
}

// Type names a built-in adapter implementation.
type Type string

const (
	TypeAnthropic       Type = "anthropic"
	TypeAnthropicVertex Type = "anthropic-vertex"
	TypeOpenAI          Type = "openai"
)

// Spec declares a provider in configuration or workflow files.
type Spec struct {
	Name        string  `json:"name" yaml:"name" mapstructure:"name"`
	Type        Type    `json:"type" yaml:"type" mapstructure:"type"`
	Model       string  `json:"model" yaml:"model" mapstructure:"model"`
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	URL         string  `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	Region      string  `json:"region,omitempty" yaml:"region,omitempty" mapstructure:"region"`
	Project     string  `json:"project,omitempty" yaml:"project,omitempty" mapstructure:"project"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`
}

// New creates an adapter from a spec
func New(spec Spec) (Adapter, error) {
	if strings.TrimSpace(spec.Name) == "" {
		return nil, fmt.Errorf("provider name is required")
	}
	if spec.Model == "" {
		return nil, fmt.Errorf("provider %s: model is required", spec.Name)
	}

	switch spec.Type {
	case TypeAnthropic, "":
		return NewAnthropicDirect(spec.Name, AnthropicConfig{
			APIKey:      spec.APIKey,
			Model:       spec.Model,
			URL:         spec.URL,
			MaxTokens:   spec.MaxTokens,
			Temperature: spec.Temperature,
		}), nil
	case TypeAnthropicVertex:
		if spec.URL == "" && (spec.Region == "" || spec.Project == "") {
			return nil, fmt.Errorf("provider %s: region and project are required for %s", spec.Name, spec.Type)
		}
		return NewAnthropicVertex(spec.Name, VertexConfig{
			AccessToken: spec.APIKey,
			Model:       spec.Model,
			Region:      spec.Region,
			ProjectID:   spec.Project,
			URL:         spec.URL,
			MaxTokens:   spec.MaxTokens,
			Temperature: spec.Temperature,
		}), nil
	case TypeOpenAI:
		return NewOpenAI(spec.Name, OpenAIConfig{
			APIKey:      spec.APIKey,
			Model:       spec.Model,
			URL:         spec.URL,
			MaxTokens:   spec.MaxTokens,
			Temperature: spec.Temperature,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", spec.Type)
	}
}

// IsSupportedType reports whether t names a built-in adapter.
func IsSupportedType(t Type) bool {
	switch t {
	case TypeAnthropic, TypeAnthropicVertex, TypeOpenAI:
		return true
	}
	return false
}

func copyOptions(opts map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(opts))
	for k, v := range opts {
		out[k] = v
	}
	return out
}

// mappedOptions are the option keys the adapters translate themselves, plus
// the body fields an option may never replace.
var mappedOptions = map[string]bool{
	"model":       true,
	"max_tokens":  true,
	"temperature": true,
	"messages":    true,
	"tools":       true,
	"system":      true,
}

// encodeWithOptions encodes SDK params and copies every option the params do
// not model (top_p, stop_sequences, response_format, ...) into the result.
func encodeWithOptions(params interface{}, opts map[string]interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}
	for k, v := range opts {
		if mappedOptions[k] || v == nil {
			continue
		}
		envelope[k] = v
	}
	return envelope, nil
}

func stringOption(opts map[string]interface{}, key, fallback string) string {
	if v, ok := opts[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func intOption(opts map[string]interface{}, key string, fallback int) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return fallback
}

func floatOption(opts map[string]interface{}, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

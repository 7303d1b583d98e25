package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

const (
	defaultAnthropicURL     = "https://api.anthropic.com/v1/messages"
	defaultAnthropicVersion = "2023-06-01"
	defaultMaxTokens        = 4096
)

// AnthropicConfig configures direct access to the Anthropic Messages API
type AnthropicConfig struct {
	APIKey      string
	Model       string
	URL         string
	Version     string
	MaxTokens   int
	Temperature float64
}

// AnthropicDirect implements Adapter for the Anthropic Messages API
type AnthropicDirect struct {
	anthropicFormat
	name string
	cfg  AnthropicConfig
}

// NewAnthropicDirect creates an adapter for the Anthropic Messages API
func NewAnthropicDirect(name string, cfg AnthropicConfig) *AnthropicDirect {
	if cfg.URL == "" {
		cfg.URL = defaultAnthropicURL
	}
	if cfg.Version == "" {
		cfg.Version = defaultAnthropicVersion
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &AnthropicDirect{name: name, cfg: cfg}
}

// Name returns the provider name
func (p *AnthropicDirect) Name() string {
	return p.name
}

// Endpoint returns the Messages API URL and auth headers
func (p *AnthropicDirect) Endpoint() Endpoint {
	return Endpoint{
		URL: p.cfg.URL,
		Headers: map[string]string{
			"x-api-key":         p.cfg.APIKey,
			"anthropic-version": p.cfg.Version,
		},
	}
}

// Options returns the base request options
func (p *AnthropicDirect) Options() map[string]interface{} {
	opts := map[string]interface{}{
		"model":      p.cfg.Model,
		"max_tokens": p.cfg.MaxTokens,
	}
	if p.cfg.Temperature > 0 {
		opts["temperature"] = p.cfg.Temperature
	}
	return opts
}

// Request encodes the body as a Messages API request. Options beyond model,
// max_tokens and temperature are passed through as top-level fields.
func (p *AnthropicDirect) Request(body RequestBody) ([]byte, error) {
	params, err := buildAnthropicParams(body, p.cfg.Model)
	if err != nil {
		return nil, err
	}

	envelope, err := encodeWithOptions(params, body.Options)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// anthropicFormat holds the message, tool and response shaping shared by
// every Anthropic-style endpoint.
type anthropicFormat struct{}

func (anthropicFormat) Message(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

func (anthropicFormat) FormatTools(tools []ToolSpec) interface{} {
	if len(tools) == 0 {
		return nil
	}

	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		toolParam := anthropic.ToolParam{
			Name: tool.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: tool.Parameters["properties"],
			},
		}
		if tool.Description != "" {
			toolParam.Description = anthropic.String(tool.Description)
		}
		if required := requiredFields(tool.Parameters); len(required) > 0 {
			toolParam.InputSchema.Required = required
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return out
}

func (anthropicFormat) Content(raw []byte) (string, error) {
	msg, err := decodeAnthropicMessage(raw)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

func (anthropicFormat) ToolCall(raw []byte) (*ToolCall, error) {
	msg, err := decodeAnthropicMessage(raw)
	if err != nil {
		return nil, err
	}

	for _, block := range msg.Content {
		if b, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
			return &ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: b.JSON.Input.Raw(),
			}, nil
		}
	}
	return nil, nil
}

func decodeAnthropicMessage(raw []byte) (*anthropic.Message, error) {
	var msg anthropic.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode anthropic response: %w", err)
	}
	return &msg, nil
}

// buildAnthropicParams converts a neutral body to SDK params. System messages
// are hoisted out of the message list into the top-level system field.
func buildAnthropicParams(body RequestBody, defaultModel string) (anthropic.MessageNewParams, error) {
	var system []string
	messages := make([]anthropic.MessageParam, 0, len(body.Messages))

	for _, msg := range body.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Content)
		case RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{
					anthropic.NewTextBlock(msg.Content),
				},
			})
		default:
			return anthropic.MessageNewParams{}, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}

	if len(messages) == 0 {
		return anthropic.MessageNewParams{}, fmt.Errorf("at least one user message is required")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(stringOption(body.Options, "model", defaultModel)),
		Messages:  messages,
		MaxTokens: int64(intOption(body.Options, "max_tokens", defaultMaxTokens)),
	}

	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{
			{Text: strings.Join(system, "\n\n")},
		}
	}

	if temperature, ok := floatOption(body.Options, "temperature"); ok {
		params.Temperature = anthropic.Float(temperature)
	}

	if tools, ok := body.Tools.([]anthropic.ToolUnionParam); ok && len(tools) > 0 {
		params.Tools = tools
	}

	return params, nil
}

func requiredFields(schema map[string]interface{}) []string {
	switch required := schema["required"].(type) {
	case []string:
		return required
	case []interface{}:
		out := make([]string, 0, len(required))
		for _, v := range required {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

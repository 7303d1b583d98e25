package provider

import (
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
)

const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// OpenAIConfig configures the OpenAI Chat Completions API
type OpenAIConfig struct {
	APIKey      string
	Model       string
	URL         string
	MaxTokens   int
	Temperature float64
}

// OpenAI implements Adapter for the Chat Completions API
type OpenAI struct {
	name string
	cfg  OpenAIConfig
}

// NewOpenAI creates an adapter for the Chat Completions API
func NewOpenAI(name string, cfg OpenAIConfig) *OpenAI {
	if cfg.URL == "" {
		cfg.URL = defaultOpenAIURL
	}
	return &OpenAI{name: name, cfg: cfg}
}

// Name returns the provider name
func (p *OpenAI) Name() string {
	return p.name
}

// Endpoint returns the completions URL and bearer auth header
func (p *OpenAI) Endpoint() Endpoint {
	return Endpoint{
		URL: p.cfg.URL,
		Headers: map[string]string{
			"Authorization": "Bearer " + p.cfg.APIKey,
		},
	}
}

// Message builds a chat message
func (p *OpenAI) Message(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// Options returns the base request options
func (p *OpenAI) Options() map[string]interface{} {
	opts := map[string]interface{}{
		"model": p.cfg.Model,
	}
	if p.cfg.MaxTokens > 0 {
		opts["max_tokens"] = p.cfg.MaxTokens
	}
	if p.cfg.Temperature > 0 {
		opts["temperature"] = p.cfg.Temperature
	}
	return opts
}

// Request encodes the body as a Chat Completions request. Unmodelled options
// such as response_format or top_p are sent as they are.
func (p *OpenAI) Request(body RequestBody) ([]byte, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(body.Messages))
	for _, msg := range body.Messages {
		switch msg.Role {
		case RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case RoleUser:
			messages = append(messages, openai.UserMessage(msg.Content))
		case RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			return nil, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(stringOption(body.Options, "model", p.cfg.Model)),
		Messages: messages,
	}

	if maxTokens := intOption(body.Options, "max_tokens", 0); maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	if temperature, ok := floatOption(body.Options, "temperature"); ok {
		params.Temperature = openai.Float(temperature)
	}

	if tools, ok := body.Tools.([]openai.ChatCompletionToolParam); ok && len(tools) > 0 {
		params.Tools = tools
	}

	envelope, err := encodeWithOptions(params, body.Options)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope)
}

// FormatTools converts tool specs to function tools
func (p *OpenAI) FormatTools(tools []ToolSpec) interface{} {
	if len(tools) == 0 {
		return nil
	}

	out := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, tool := range tools {
		parameters := tool.Parameters
		if parameters == nil {
			parameters = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(parameters),
			},
		})
	}
	return out
}

// Content extracts the first choice's message content
func (p *OpenAI) Content(raw []byte) (string, error) {
	completion, err := decodeCompletion(raw)
	if err != nil {
		return "", err
	}
	return completion.Choices[0].Message.Content, nil
}

// ToolCall extracts the first function call of the first choice
func (p *OpenAI) ToolCall(raw []byte) (*ToolCall, error) {
	completion, err := decodeCompletion(raw)
	if err != nil {
		return nil, err
	}

	calls := completion.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return nil, nil
	}

	return &ToolCall{
		ID:        calls[0].ID,
		Name:      calls[0].Function.Name,
		Arguments: calls[0].Function.Arguments,
	}, nil
}

func decodeCompletion(raw []byte) (*openai.ChatCompletion, error) {
	var completion openai.ChatCompletion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, fmt.Errorf("failed to decode openai response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}
	return &completion, nil
}

package provider

import (
	"encoding/json"
	"fmt"
)

const vertexAnthropicVersion = "vertex-2023-10-16"

// VertexConfig configures Anthropic models served through Vertex AI.
// AccessToken is an OAuth bearer token obtained by the caller.
type VertexConfig struct {
	AccessToken string
	Model       string
	Region      string
	ProjectID   string
	URL         string
	MaxTokens   int
	Temperature float64
}

// AnthropicVertex implements Adapter for Anthropic models behind the Vertex AI gateway.
// It differs from AnthropicDirect only in URL, headers and body envelope.
type AnthropicVertex struct {
	anthropicFormat
	name string
	cfg  VertexConfig
}

// NewAnthropicVertex creates an adapter for Anthropic on Vertex AI
func NewAnthropicVertex(name string, cfg VertexConfig) *AnthropicVertex {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.URL == "" {
		cfg.URL = fmt.Sprintf(
			"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/anthropic/models/%s:rawPredict",
			cfg.Region, cfg.ProjectID, cfg.Region, cfg.Model,
		)
	}
	return &AnthropicVertex{name: name, cfg: cfg}
}

// Name returns the provider name
func (p *AnthropicVertex) Name() string {
	return p.name
}

// Endpoint returns the rawPredict URL and bearer auth header
func (p *AnthropicVertex) Endpoint() Endpoint {
	return Endpoint{
		URL: p.cfg.URL,
		Headers: map[string]string{
			"Authorization": "Bearer " + p.cfg.AccessToken,
		},
	}
}

// Options returns the base request options
func (p *AnthropicVertex) Options() map[string]interface{} {
	opts := map[string]interface{}{
		"model":      p.cfg.Model,
		"max_tokens": p.cfg.MaxTokens,
	}
	if p.cfg.Temperature > 0 {
		opts["temperature"] = p.cfg.Temperature
	}
	return opts
}

// Request encodes the body. Vertex takes the model from the URL, so the model
// field is dropped and the Vertex anthropic_version is added.
func (p *AnthropicVertex) Request(body RequestBody) ([]byte, error) {
	params, err := buildAnthropicParams(body, p.cfg.Model)
	if err != nil {
		return nil, err
	}

	envelope, err := encodeWithOptions(params, body.Options)
	if err != nil {
		return nil, err
	}
	delete(envelope, "model")
	envelope["anthropic_version"] = vertexAnthropicVersion

	return json.Marshal(envelope)
}

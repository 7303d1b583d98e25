package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/harun/promptchain/internal/logger"
	"github.com/harun/promptchain/pkg/chain"
	"github.com/harun/promptchain/pkg/provider"
)

// Config represents the promptchain configuration
type Config struct {
	// Runner holds engine defaults applied to every run
	Runner RunnerConfig `json:"runner" yaml:"runner" mapstructure:"runner"`

	// Providers available to workflows that do not declare their own
	Providers []ProviderConfig `json:"providers" yaml:"providers" mapstructure:"providers"`

	Logging  LoggingConfig  `json:"logging" yaml:"logging" mapstructure:"logging"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing" mapstructure:"tracing"`
	Workflow WorkflowConfig `json:"workflow" yaml:"workflow" mapstructure:"workflow"`
}

// RunnerConfig holds chain.Options defaults
type RunnerConfig struct {
	MaxDepth        int    `json:"max_depth" yaml:"max_depth" mapstructure:"max_depth"`
	TimeoutMs       int    `json:"timeout_ms" yaml:"timeout_ms" mapstructure:"timeout_ms"`
	RetryAttempts   int    `json:"retry_attempts" yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryDelayMs    int    `json:"retry_delay_ms" yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"` // negative disables the delay
	DefaultProvider string `json:"default_provider" yaml:"default_provider" mapstructure:"default_provider"`
	CycleProviders  bool   `json:"cycle_providers" yaml:"cycle_providers" mapstructure:"cycle_providers"`
}

// ProviderConfig describes one LLM provider
type ProviderConfig struct {
	Name        string        `json:"name" yaml:"name" mapstructure:"name"`
	Type        provider.Type `json:"type" yaml:"type" mapstructure:"type"` // anthropic, anthropic-vertex, openai
	Model       string        `json:"model" yaml:"model" mapstructure:"model"`
	APIKey      string        `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`
	APIKeyEnv   string        `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty" mapstructure:"api_key_env"`
	URL         string        `json:"url,omitempty" yaml:"url,omitempty" mapstructure:"url"`
	Region      string        `json:"region,omitempty" yaml:"region,omitempty" mapstructure:"region"`
	Project     string        `json:"project,omitempty" yaml:"project,omitempty" mapstructure:"project"`
	MaxTokens   int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" mapstructure:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty" yaml:"temperature,omitempty" mapstructure:"temperature"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" yaml:"level" mapstructure:"level"`
	File      string `json:"file" yaml:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" yaml:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" yaml:"redaction" mapstructure:"redaction"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" yaml:"addr" mapstructure:"addr"`
}

// TracingConfig controls OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	ServiceName string  `json:"service_name" yaml:"service_name" mapstructure:"service_name"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio" mapstructure:"sample_ratio"`
}

// WorkflowConfig points at the default workflow file
type WorkflowConfig struct {
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Runner: RunnerConfig{
			MaxDepth:      chain.DefaultMaxDepth,
			TimeoutMs:     int(chain.DefaultTimeout / time.Millisecond),
			RetryAttempts: chain.DefaultRetryAttempts,
			RetryDelayMs:  int(chain.DefaultRetryDelay / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Tracing: TracingConfig{
			ServiceName: "promptchain",
			SampleRatio: 1,
		},
	}
}

// RunnerOptions maps the runner section onto engine options
func (c *Config) RunnerOptions() chain.Options {
	return chain.Options{
		MaxDepth:        c.Runner.MaxDepth,
		Timeout:         time.Duration(c.Runner.TimeoutMs) * time.Millisecond,
		RetryAttempts:   c.Runner.RetryAttempts,
		RetryDelay:      time.Duration(c.Runner.RetryDelayMs) * time.Millisecond,
		DefaultProvider: c.Runner.DefaultProvider,
		CycleProviders:  c.Runner.CycleProviders,
	}
}

// LoggerConfig maps the logging section onto the logger package
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:     c.Logging.Level,
		File:      c.Logging.File,
		Console:   true,
		Pretty:    c.Logging.Pretty,
		Redaction: c.Logging.Redaction,
	}
}

// Spec converts the provider config to an adapter spec, resolving the API key
// from api_key_env or the provider's conventional variable when unset.
func (p ProviderConfig) Spec() provider.Spec {
	spec := provider.Spec{
		Name:        p.Name,
		Type:        p.Type,
		Model:       p.Model,
		APIKey:      p.APIKey,
		URL:         p.URL,
		Region:      p.Region,
		Project:     p.Project,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	}
	if spec.APIKey == "" && p.APIKeyEnv != "" {
		spec.APIKey = os.Getenv(p.APIKeyEnv)
	}
	if spec.APIKey == "" {
		spec.APIKey = os.Getenv(defaultKeyEnv(p.Type))
	}
	return spec
}

// Adapters builds every configured provider
func (c *Config) Adapters() ([]provider.Adapter, error) {
	adapters := make([]provider.Adapter, 0, len(c.Providers))
	for _, p := range c.Providers {
		adapter, err := provider.New(p.Spec())
		if err != nil {
			return nil, fmt.Errorf("failed to build provider %s: %w", p.Name, err)
		}
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}

// ResolveSpec fills secrets into a provider spec declared by a workflow file.
// A configured provider with the same name supplies its key; otherwise the
// provider type's conventional environment variable is used.
func (c *Config) ResolveSpec(spec provider.Spec) provider.Spec {
	if spec.APIKey != "" {
		return spec
	}
	for _, p := range c.Providers {
		if p.Name == spec.Name {
			spec.APIKey = p.Spec().APIKey
			return spec
		}
	}
	spec.APIKey = os.Getenv(defaultKeyEnv(spec.Type))
	return spec
}

func defaultKeyEnv(t provider.Type) string {
	switch t {
	case provider.TypeOpenAI:
		return "OPENAI_API_KEY"
	case provider.TypeAnthropicVertex:
		return "VERTEX_ACCESS_TOKEN"
	default:
		return "ANTHROPIC_API_KEY"
	}
}

// String returns a JSON representation with secrets masked
func (c *Config) String() string {
	masked := *c
	masked.Providers = make([]ProviderConfig, len(c.Providers))
	for i, p := range c.Providers {
		if p.APIKey != "" {
			p.APIKey = "***"
		}
		masked.Providers[i] = p
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

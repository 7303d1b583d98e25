package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harun/promptchain/pkg/provider"
	"github.com/rs/zerolog"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks ranges, provider definitions and logging settings
func (v *Validator) Validate(cfg *Config) error {
	var errs []error

	if cfg.Runner.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("runner.max_depth cannot be negative"))
	}
	if cfg.Runner.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("runner.timeout_ms cannot be negative"))
	}
	if cfg.Runner.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("runner.retry_attempts cannot be negative"))
	}

	names := make(map[string]bool, len(cfg.Providers))
	for i, p := range cfg.Providers {
		if err := v.ValidateProvider(p); err != nil {
			errs = append(errs, fmt.Errorf("providers[%d]: %w", i, err))
		}
		if names[p.Name] {
			errs = append(errs, fmt.Errorf("providers[%d]: duplicate provider name %s", i, p.Name))
		}
		names[p.Name] = true
	}
	if cfg.Runner.DefaultProvider != "" && len(cfg.Providers) > 0 && !names[cfg.Runner.DefaultProvider] {
		errs = append(errs, fmt.Errorf("runner.default_provider %s is not a configured provider", cfg.Runner.DefaultProvider))
	}

	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sample_ratio must be between 0 and 1"))
	}
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		errs = append(errs, fmt.Errorf("metrics.addr is required when metrics are enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ValidateProvider validates one provider entry
func (v *Validator) ValidateProvider(p ProviderConfig) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if p.Model == "" {
		return fmt.Errorf("provider %s: model cannot be empty", p.Name)
	}

	switch p.Type {
	case "", provider.TypeAnthropic, provider.TypeOpenAI:
	case provider.TypeAnthropicVertex:
		if p.URL == "" && (p.Region == "" || p.Project == "") {
			return fmt.Errorf("provider %s: region and project are required for %s", p.Name, p.Type)
		}
	default:
		return fmt.Errorf("provider %s: unsupported type %q", p.Name, p.Type)
	}

	if p.APIKey != "" {
		if err := v.ValidateAPIKey(p.APIKey, p.Type); err != nil {
			return fmt.Errorf("provider %s: %w", p.Name, err)
		}
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("provider %s: temperature must be between 0 and 2", p.Name)
	}
	return nil
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, t provider.Type) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", t)
	}

	switch t {
	case provider.TypeAnthropic, "":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case provider.TypeOpenAI:
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateLogLevel validates a zerolog level name
func (v *Validator) ValidateLogLevel(level string) error {
	if level == "" {
		return nil
	}
	if _, err := zerolog.ParseLevel(level); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	return nil
}

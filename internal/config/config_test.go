package config

import (
	"testing"
	"time"

	"github.com/harun/promptchain/pkg/chain"
	"github.com/harun/promptchain/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, chain.DefaultMaxDepth, cfg.Runner.MaxDepth)
	assert.Equal(t, 60000, cfg.Runner.TimeoutMs)
	assert.Equal(t, chain.DefaultRetryAttempts, cfg.Runner.RetryAttempts)
	assert.Equal(t, 1000, cfg.Runner.RetryDelayMs)
	assert.False(t, cfg.Runner.CycleProviders)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.NoError(t, NewValidator().Validate(cfg))
}

func TestRunnerOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Runner = RunnerConfig{
		MaxDepth:        4,
		TimeoutMs:       1500,
		RetryAttempts:   2,
		RetryDelayMs:    -1,
		DefaultProvider: "claude",
		CycleProviders:  true,
	}

	opts := cfg.RunnerOptions()
	assert.Equal(t, 4, opts.MaxDepth)
	assert.Equal(t, 1500*time.Millisecond, opts.Timeout)
	assert.Equal(t, 2, opts.RetryAttempts)
	assert.Equal(t, -time.Millisecond, opts.RetryDelay)
	assert.Equal(t, "claude", opts.DefaultProvider)
	assert.True(t, opts.CycleProviders)
}

func TestProviderConfig_Spec(t *testing.T) {
	t.Run("should prefer the inline key", func(t *testing.T) {
		t.Setenv("CUSTOM_KEY", "from-env")
		spec := ProviderConfig{Name: "claude", Model: "m", APIKey: "inline", APIKeyEnv: "CUSTOM_KEY"}.Spec()
		assert.Equal(t, "inline", spec.APIKey)
	})

	t.Run("should read api_key_env", func(t *testing.T) {
		t.Setenv("CUSTOM_KEY", "from-env")
		spec := ProviderConfig{Name: "claude", Model: "m", APIKeyEnv: "CUSTOM_KEY"}.Spec()
		assert.Equal(t, "from-env", spec.APIKey)
	})

	t.Run("should fall back to the conventional variable", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-openai")
		spec := ProviderConfig{Name: "gpt", Type: provider.TypeOpenAI, Model: "gpt-4o"}.Spec()
		assert.Equal(t, "sk-openai", spec.APIKey)
		assert.Equal(t, provider.TypeOpenAI, spec.Type)
	})
}

func TestConfig_ResolveSpec(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = []ProviderConfig{{Name: "claude", Model: "m", APIKey: "sk-ant-configured"}}
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	t.Run("should keep explicit keys", func(t *testing.T) {
		spec := cfg.ResolveSpec(provider.Spec{Name: "claude", APIKey: "mine"})
		assert.Equal(t, "mine", spec.APIKey)
	})

	t.Run("should use the configured provider with the same name", func(t *testing.T) {
		spec := cfg.ResolveSpec(provider.Spec{Name: "claude"})
		assert.Equal(t, "sk-ant-configured", spec.APIKey)
	})

	t.Run("should use the environment otherwise", func(t *testing.T) {
		spec := cfg.ResolveSpec(provider.Spec{Name: "other", Type: provider.TypeAnthropic})
		assert.Equal(t, "sk-ant-env", spec.APIKey)
	})
}

func TestConfig_Adapters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = []ProviderConfig{
		{Name: "claude", Type: provider.TypeAnthropic, Model: "claude-sonnet-4-5"},
		{Name: "gpt", Type: provider.TypeOpenAI, Model: "gpt-4o"},
	}

	adapters, err := cfg.Adapters()
	require.NoError(t, err)
	require.Len(t, adapters, 2)
	assert.Equal(t, "claude", adapters[0].Name())
	assert.Equal(t, "gpt", adapters[1].Name())

	cfg.Providers = append(cfg.Providers, ProviderConfig{Name: "bad", Type: "cohere", Model: "m"})
	_, err = cfg.Adapters()
	assert.Error(t, err)
}

func TestConfig_String(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = []ProviderConfig{{Name: "claude", Model: "m", APIKey: "sk-ant-secret"}}

	out := cfg.String()
	assert.NotContains(t, out, "sk-ant-secret")
	assert.Contains(t, out, "***")
	assert.Equal(t, "sk-ant-secret", cfg.Providers[0].APIKey)
}

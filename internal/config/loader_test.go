package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harun/promptchain/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoader(t *testing.T) {
	loader := NewLoader("/path/to/promptchain.yaml")
	assert.NotNil(t, loader)
	assert.Equal(t, "/path/to/promptchain.yaml", loader.GetConfigPath())
}

func TestLoaderLoad(t *testing.T) {
	t.Run("should return defaults when the file does not exist", func(t *testing.T) {
		cfg, err := NewLoader(filepath.Join(t.TempDir(), "missing.yaml")).Load()
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Runner, cfg.Runner)
	})

	t.Run("should load YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "promptchain.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
runner:
  max_depth: 5
  cycle_providers: true
providers:
  - name: claude
    type: anthropic
    model: claude-sonnet-4-5
    api_key_env: MY_KEY
  - name: gpt
    type: openai
    model: gpt-4o
    temperature: 0.3
workflow:
  path: flows/support.yaml
`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, 5, cfg.Runner.MaxDepth)
		assert.True(t, cfg.Runner.CycleProviders)
		assert.Equal(t, 60000, cfg.Runner.TimeoutMs)
		require.Len(t, cfg.Providers, 2)
		assert.Equal(t, "MY_KEY", cfg.Providers[0].APIKeyEnv)
		assert.Equal(t, provider.TypeOpenAI, cfg.Providers[1].Type)
		assert.Equal(t, 0.3, cfg.Providers[1].Temperature)
		assert.Equal(t, "flows/support.yaml", cfg.Workflow.Path)
	})

	t.Run("should load JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "promptchain.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"runner":{"retry_attempts":7},"logging":{"level":"debug"}}`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Runner.RetryAttempts)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("should apply environment overrides", func(t *testing.T) {
		t.Setenv("PROMPTCHAIN_RUNNER_MAX_DEPTH", "3")
		t.Setenv("PROMPTCHAIN_METRICS_ENABLED", "true")

		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Runner.MaxDepth)
		assert.True(t, cfg.Metrics.Enabled)
	})

	t.Run("should reject invalid config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "promptchain.yaml")
		require.NoError(t, os.WriteFile(path, []byte("providers:\n  - name: x\n    type: cohere\n    model: m\n"), 0644))

		_, err := Load(path)
		assert.ErrorContains(t, err, "unsupported type")
	})

	t.Run("should fail on malformed files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "promptchain.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestLoaderSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "promptchain.yaml")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Runner.MaxDepth = 6
	cfg.Providers = []ProviderConfig{{Name: "claude", Type: provider.TypeAnthropic, Model: "claude-sonnet-4-5"}}
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.Runner.MaxDepth)
	require.Len(t, loaded.Providers, 1)
	assert.Equal(t, "claude", loaded.Providers[0].Name)
}

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCommand(t *testing.T) {
	t.Run("should accept a valid workflow", func(t *testing.T) {
		dir := t.TempDir()

		stdout, _, err := execute(t, "validate",
			"--config", writeConfig(t, dir),
			"--workflow", writeWorkflow(t, dir, "http://localhost:1"),
		)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Workflow greet is valid (1 prompts, 0 tools, 1 providers)")
	})

	t.Run("should list errors of an invalid workflow", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
name: broken
prompts:
  - name: main
    user: hi
    then:
      "status ==": { prompt: ghost }
`), 0644))

		stdout, _, err := execute(t, "validate", "--config", writeConfig(t, dir), "--workflow", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is invalid")
		assert.Contains(t, stdout, "Unknown prompt: ghost")
		assert.Contains(t, stdout, "Invalid condition")
	})

	t.Run("should fail for unreadable files", func(t *testing.T) {
		dir := t.TempDir()
		_, _, err := execute(t, "validate", "--config", writeConfig(t, dir), "--workflow", filepath.Join(dir, "missing.yaml"))
		assert.Error(t, err)
	})
}

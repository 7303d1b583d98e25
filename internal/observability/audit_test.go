package observability

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harun/promptchain/pkg/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, data []byte) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		out = append(out, line)
	}
	return out
}

func TestAuditLogger_Observe(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(&buf)

	a.Observe(chain.Event{Type: chain.EventRunStart, RunID: "r1", Prompt: "main"})
	a.Observe(chain.Event{Type: chain.EventMakeRequestStart, RunID: "r1"})
	a.Observe(chain.Event{Type: chain.EventProviderFailed, RunID: "r1", Provider: "claude", Err: errors.New("boom")})
	a.Observe(chain.Event{Type: chain.EventToolExecutionError, RunID: "r1", Data: map[string]interface{}{"tool": "search"}})
	a.Observe(chain.Event{Type: chain.EventTaskCompleted, RunID: "r1", Data: map[string]interface{}{"source": "model"}})
	a.Observe(chain.Event{Type: chain.EventRunComplete, RunID: "r1", Duration: 1500 * time.Millisecond})

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 5)

	t.Run("should record run start", func(t *testing.T) {
		assert.Equal(t, "run:start", lines[0]["action"])
		assert.Equal(t, "r1", lines[0]["run_id"])
	})

	t.Run("should record fallbacks with the error", func(t *testing.T) {
		assert.Equal(t, "provider:fallback", lines[1]["action"])
		meta := lines[1]["metadata"].(map[string]interface{})
		assert.Equal(t, "claude", meta["provider"])
		assert.Equal(t, "boom", meta["error"])
	})

	t.Run("should record tool failures", func(t *testing.T) {
		assert.Equal(t, "tool:search", lines[2]["action"])
		assert.Equal(t, "failure", lines[2]["status"])
	})

	t.Run("should record completion", func(t *testing.T) {
		assert.Equal(t, "task:complete", lines[3]["action"])
		assert.Equal(t, "run:complete", lines[4]["action"])
		assert.Equal(t, float64(1500), lines[4]["metadata"].(map[string]interface{})["duration_ms"])
	})
}

func TestOpenAuditLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.log")

	a, err := OpenAuditLogger(path)
	require.NoError(t, err)

	a.Record(AuditEvent{Type: "run", Action: "run:start", Status: "pending"})
	require.NoError(t, a.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := decodeLines(t, data)
	require.Len(t, lines, 1)
	assert.Equal(t, "run:start", lines[0]["action"])
	assert.NotEmpty(t, lines[0]["timestamp"])
}

func TestAuditLogger_Subscribe(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLogger(&buf)

	e := chain.NewEmitter()
	a.Subscribe(e)

	e.Observe(chain.Event{Type: chain.EventRunStart, RunID: "r1"})
	e.Observe(chain.Event{Type: chain.EventMakeRequestSuccess, RunID: "r1"})
	e.Observe(chain.Event{Type: chain.EventAllProvidersFailed, RunID: "r1"})

	lines := decodeLines(t, buf.Bytes())
	require.Len(t, lines, 2)
	assert.Equal(t, "run:start", lines[0]["action"])
	assert.Equal(t, "run:complete", lines[1]["action"])
	assert.Equal(t, "failure", lines[1]["status"])
}

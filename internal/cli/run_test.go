package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/harun/promptchain/pkg/chain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fastConfig = `
runner:
  retry_attempts: 1
  retry_delay_ms: -1
logging:
  level: error
  pretty: false
`

// completionServer answers every chat completion with content and records
// the user messages it was sent
type completionServer struct {
	*httptest.Server
	mu       sync.Mutex
	messages []string
}

func newCompletionServer(t *testing.T, status int, content string) *completionServer {
	t.Helper()
	s := &completionServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.Unmarshal(body, &req)

		s.mu.Lock()
		for _, m := range req.Messages {
			if m.Role == "user" {
				s.messages = append(s.messages, m.Content)
			}
		}
		s.mu.Unlock()

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}

		encoded, _ := json.Marshal(content)
		fmt.Fprintf(w, `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %s}}]
}`, encoded)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *completionServer) userMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

func writeWorkflow(t *testing.T, dir, url string) string {
	t.Helper()
	content := fmt.Sprintf(`
name: greet
providers:
  - name: gpt
    type: openai
    model: gpt-4o
    api_key: sk-test
    url: %s
prompts:
  - name: main
    user: "Hello {name}, you are {age}"
    responseFormat:
      type: object
      required: [status]
    then:
      "status == 'done'":
        function: completeTask
        arguments:
          response: "{answer}"
`, url)
	path := filepath.Join(dir, "greet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "promptchain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fastConfig), 0644))
	return path
}

func TestRunCommand(t *testing.T) {
	t.Run("should print the chain result", func(t *testing.T) {
		server := newCompletionServer(t, http.StatusOK, `{"status":"done","answer":"hi Ada"}`)
		dir := t.TempDir()

		stdout, _, err := execute(t, "run", "main",
			"--config", writeConfig(t, dir),
			"--workflow", writeWorkflow(t, dir, server.URL),
			"--arg", "name=Ada",
			"--args-json", `{"age": 36, "name": "ignored"}`,
		)
		require.NoError(t, err)

		var result chain.Result
		require.NoError(t, json.Unmarshal([]byte(stdout), &result))
		assert.True(t, result.TaskCompleted)
		assert.Equal(t, "gpt", result.Provider)
		assert.Equal(t, "main", result.Prompt)
		assert.Equal(t, map[string]interface{}{"response": "hi Ada"}, result.Output)

		assert.Equal(t, []string{"Hello Ada, you are 36"}, server.userMessages())
	})

	t.Run("should seed state", func(t *testing.T) {
		server := newCompletionServer(t, http.StatusOK, `{"status":"done","answer":"ok"}`)
		dir := t.TempDir()
		statePath := filepath.Join(dir, "state.json")
		require.NoError(t, os.WriteFile(statePath, []byte(`{"primaryTask":"greet"}`), 0644))

		stdout, _, err := execute(t, "run", "main",
			"--config", writeConfig(t, dir),
			"--workflow", writeWorkflow(t, dir, server.URL),
			"--state", "@"+statePath,
		)
		require.NoError(t, err)

		var result chain.Result
		require.NoError(t, json.Unmarshal([]byte(stdout), &result))
		assert.Equal(t, "greet", result.State["primaryTask"])
	})

	t.Run("should write an audit log", func(t *testing.T) {
		server := newCompletionServer(t, http.StatusOK, `{"status":"done","answer":"ok"}`)
		dir := t.TempDir()
		auditPath := filepath.Join(dir, "audit.log")

		_, _, err := execute(t, "run", "main",
			"--config", writeConfig(t, dir),
			"--workflow", writeWorkflow(t, dir, server.URL),
			"--audit-log", auditPath,
		)
		require.NoError(t, err)

		data, err := os.ReadFile(auditPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"action":"run:start"`)
		assert.Contains(t, string(data), `"action":"task:complete"`)
		assert.Contains(t, string(data), `"action":"run:complete"`)
	})

	t.Run("should report provider failures with their code", func(t *testing.T) {
		server := newCompletionServer(t, http.StatusInternalServerError, "")
		dir := t.TempDir()

		_, _, err := execute(t, "run", "main",
			"--config", writeConfig(t, dir),
			"--workflow", writeWorkflow(t, dir, server.URL),
		)
		require.Error(t, err)
		assert.True(t, errors.Is(err, chain.ErrAllProvidersFailed))
		assert.Contains(t, err.Error(), "[AllProvidersFailed]")
	})

	t.Run("should report schema violations with details", func(t *testing.T) {
		server := newCompletionServer(t, http.StatusOK, `{"answer":"no status"}`)
		dir := t.TempDir()

		_, _, err := execute(t, "run", "main",
			"--config", writeConfig(t, dir),
			"--workflow", writeWorkflow(t, dir, server.URL),
		)
		require.Error(t, err)
		assert.True(t, errors.Is(err, chain.ErrAllProvidersFailed))
	})

	t.Run("should fall back to configured providers", func(t *testing.T) {
		server := newCompletionServer(t, http.StatusOK, `{"status":"done","answer":"from config"}`)
		dir := t.TempDir()

		configPath := filepath.Join(dir, "promptchain.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte(fastConfig+fmt.Sprintf(`
providers:
  - name: configured
    type: openai
    model: gpt-4o
    api_key: sk-test
    url: %s
`, server.URL)), 0644))

		workflowPath := filepath.Join(dir, "bare.json")
		require.NoError(t, os.WriteFile(workflowPath, []byte(`{
  "name": "bare",
  "prompts": [{"name": "main", "user": "hi", "then": {"true": {"function": "completeTask", "arguments": {"response": "{answer}"}}}}]
}`), 0644))

		stdout, _, err := execute(t, "run", "main", "--config", configPath, "--workflow", workflowPath)
		require.NoError(t, err)

		var result chain.Result
		require.NoError(t, json.Unmarshal([]byte(stdout), &result))
		assert.Equal(t, "configured", result.Provider)
		assert.Equal(t, map[string]interface{}{"response": "from config"}, result.Output)
	})

	t.Run("should reject unknown providers", func(t *testing.T) {
		server := newCompletionServer(t, http.StatusOK, `{"status":"done"}`)
		dir := t.TempDir()

		_, _, err := execute(t, "run", "main",
			"--config", writeConfig(t, dir),
			"--workflow", writeWorkflow(t, dir, server.URL),
			"--provider", "ghost",
		)
		require.Error(t, err)
		assert.True(t, errors.Is(err, chain.ErrProviderNotFound))
		assert.Empty(t, server.userMessages())
	})

	t.Run("should require a workflow", func(t *testing.T) {
		dir := t.TempDir()
		_, _, err := execute(t, "run", "main", "--config", writeConfig(t, dir))
		assert.ErrorContains(t, err, "no workflow file given")
	})

	t.Run("should require a prompt name", func(t *testing.T) {
		_, _, err := execute(t, "run")
		assert.Error(t, err)
	})

	t.Run("should reject bad arguments before running", func(t *testing.T) {
		_, _, err := execute(t, "run", "main", "--arg", "novalue")
		assert.ErrorContains(t, err, "expected key=value")

		_, _, err = execute(t, "run", "main", "--args-json", "[1]")
		assert.ErrorContains(t, err, "invalid --args-json")

		_, _, err = execute(t, "run", "main", "--state", "{")
		assert.ErrorContains(t, err, "invalid --state")
	})
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		pairs    []string
		argsJSON string
		want     map[string]interface{}
		wantErr  bool
	}{
		{
			name:  "strings",
			pairs: []string{"name=Ada", "greeting=hello world"},
			want:  map[string]interface{}{"name": "Ada", "greeting": "hello world"},
		},
		{
			name:  "json values",
			pairs: []string{"n=3", "ok=true", "list=[1,2]"},
			want:  map[string]interface{}{"n": float64(3), "ok": true, "list": []interface{}{float64(1), float64(2)}},
		},
		{
			name:  "value containing equals",
			pairs: []string{"expr=a=b"},
			want:  map[string]interface{}{"expr": "a=b"},
		},
		{
			name:     "pairs override json",
			pairs:    []string{"a=2"},
			argsJSON: `{"a":1,"b":"x"}`,
			want:     map[string]interface{}{"a": float64(2), "b": "x"},
		},
		{
			name: "empty",
			want: map[string]interface{}{},
		},
		{
			name:    "missing equals",
			pairs:   []string{"a"},
			wantErr: true,
		},
		{
			name:    "empty key",
			pairs:   []string{"=1"},
			wantErr: true,
		},
		{
			name:     "json array",
			argsJSON: `[1]`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.pairs, tt.argsJSON)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseState(t *testing.T) {
	t.Run("should return nil without a value", func(t *testing.T) {
		state, err := parseState("")
		require.NoError(t, err)
		assert.Nil(t, state)
	})

	t.Run("should parse inline JSON", func(t *testing.T) {
		state, err := parseState(`{"primaryTask":"x"}`)
		require.NoError(t, err)
		assert.Equal(t, "x", state["primaryTask"])
	})

	t.Run("should read files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "state.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"k":1}`), 0644))

		state, err := parseState("@" + path)
		require.NoError(t, err)
		assert.Equal(t, float64(1), state["k"])
	})

	t.Run("should fail for missing files", func(t *testing.T) {
		_, err := parseState("@" + filepath.Join(t.TempDir(), "missing.json"))
		assert.ErrorContains(t, err, "failed to read state file")
	})
}

func TestDescribeError(t *testing.T) {
	t.Run("should pass plain errors through", func(t *testing.T) {
		err := errors.New("plain")
		assert.Equal(t, err, describeError(err))
	})

	t.Run("should add code and details", func(t *testing.T) {
		err := &chain.AIError{Code: chain.CodeResponseValidationFailed, Message: "bad response", Details: []string{"status is required"}}

		described := describeError(err)
		assert.True(t, errors.Is(described, chain.ErrResponseValidationFailed))
		assert.True(t, strings.HasPrefix(described.Error(), "[ResponseValidationFailed] bad response"))
		assert.Contains(t, described.Error(), `details: ["status is required"]`)
	})
}

package chain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func conditions(t Transitions) []string {
	out := make([]string, 0, len(t))
	for _, tr := range t {
		out = append(out, tr.Condition)
	}
	return out
}

func TestTransitions_JSON(t *testing.T) {
	t.Run("should preserve key order", func(t *testing.T) {
		var p Prompt
		err := json.Unmarshal([]byte(`{
			"name": "classify",
			"then": {
				"z == 1": {"prompt": "last"},
				"a == 1": {"function": "completeTask", "arguments": {"response": "{answer}"}},
				"true":   {"prompt": "fallback"}
			}
		}`), &p)
		require.NoError(t, err)

		assert.Equal(t, []string{"z == 1", "a == 1", "true"}, conditions(p.Then))
		assert.Equal(t, "last", p.Then[0].Action.Prompt)
		assert.Equal(t, CompleteTaskTool, p.Then[1].Action.Function)
		assert.Equal(t, "{answer}", p.Then[1].Action.Arguments["response"])
	})

	t.Run("should round trip in order", func(t *testing.T) {
		in := then("b", Action{Prompt: "x"}, "a", Action{Prompt: "y"})
		data, err := json.Marshal(in)
		require.NoError(t, err)
		assert.JSONEq(t, `{"b":{"prompt":"x"},"a":{"prompt":"y"}}`, string(data))

		var out Transitions
		require.NoError(t, json.Unmarshal(data, &out))
		assert.Equal(t, in, out)
	})

	t.Run("should reject arrays", func(t *testing.T) {
		var out Transitions
		assert.Error(t, json.Unmarshal([]byte(`[{"prompt":"x"}]`), &out))
	})

	t.Run("should accept null", func(t *testing.T) {
		var out Transitions
		require.NoError(t, json.Unmarshal([]byte(`null`), &out))
		assert.Nil(t, out)
	})
}

func TestTransitions_YAML(t *testing.T) {
	t.Run("should preserve key order", func(t *testing.T) {
		var p Prompt
		err := yaml.Unmarshal([]byte(`
name: classify
then:
  "score > 0.5": { prompt: good }
  "true":
    function: completeTask
    arguments:
      response: "{answer}"
`), &p)
		require.NoError(t, err)

		assert.Equal(t, []string{"score > 0.5", "true"}, conditions(p.Then))
		assert.Equal(t, "good", p.Then[0].Action.Prompt)
		assert.Equal(t, "{answer}", p.Then[1].Action.Arguments["response"])
	})

	t.Run("should round trip in order", func(t *testing.T) {
		in := then("z", Action{Prompt: "x"}, "a", Action{Function: "f"})
		data, err := yaml.Marshal(in)
		require.NoError(t, err)

		var out Transitions
		require.NoError(t, yaml.Unmarshal(data, &out))
		assert.Equal(t, []string{"z", "a"}, conditions(out))
		assert.Equal(t, "f", out[1].Action.Function)
	})

	t.Run("should reject sequences", func(t *testing.T) {
		var out Transitions
		assert.Error(t, yaml.Unmarshal([]byte("- prompt: x\n"), &out))
	})
}

package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	vars := map[string]interface{}{
		"name":  "ada",
		"count": float64(3),
		"none":  nil,
		"user": map[string]interface{}{
			"tags": []interface{}{"admin", "ops"},
		},
		"state": map[string]interface{}{"primaryTask": "write a poem"},
	}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{name: "plain text", template: "hello", want: "hello"},
		{name: "single placeholder", template: "hello {name}", want: "hello ada"},
		{name: "number", template: "{count} items", want: "3 items"},
		{name: "nil renders empty", template: "[{none}]", want: "[]"},
		{name: "nested path", template: "{state.primaryTask}", want: "write a poem"},
		{name: "slice index", template: "{user.tags.0}", want: "admin"},
		{name: "map renders as JSON", template: "{user}", want: `{"tags":["admin","ops"]}`},
		{name: "unknown is kept", template: "{missing} and {name}", want: "{missing} and ada"},
		{name: "braces without identifier are kept", template: `{"json": true}`, want: `{"json": true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.template, vars))
		})
	}
}

func TestInterpolateValue(t *testing.T) {
	vars := map[string]interface{}{
		"items": []interface{}{"x", "y"},
		"score": 0.5,
		"name":  "ada",
	}

	t.Run("should keep the type of a whole placeholder", func(t *testing.T) {
		assert.Equal(t, []interface{}{"x", "y"}, InterpolateValue("{items}", vars))
		assert.Equal(t, 0.5, InterpolateValue("{score}", vars))
	})

	t.Run("should render embedded placeholders as text", func(t *testing.T) {
		assert.Equal(t, "score=0.5", InterpolateValue("score={score}", vars))
	})

	t.Run("should walk maps and slices", func(t *testing.T) {
		got := InterpolateValue(map[string]interface{}{
			"who":   "{name}",
			"list":  []interface{}{"{name}", float64(1)},
			"fixed": true,
		}, vars)

		assert.Equal(t, map[string]interface{}{
			"who":   "ada",
			"list":  []interface{}{"ada", float64(1)},
			"fixed": true,
		}, got)
	})

	t.Run("should keep unresolved whole placeholders", func(t *testing.T) {
		assert.Equal(t, "{nope}", InterpolateValue("{nope}", vars))
	})
}

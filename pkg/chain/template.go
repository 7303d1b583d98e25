package chain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_.\-]*)\}`)

// Interpolate replaces {path} placeholders with values looked up in vars.
// Paths are dotted (state.primaryTask, items.0.name). Unresolved
// placeholders are left as written; nil renders as the empty string and
// maps or slices render as JSON.
func Interpolate(template string, vars map[string]interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := match[1 : len(match)-1]
		value, ok := lookupPath(vars, path)
		if !ok {
			return match
		}
		return stringify(value)
	})
}

// InterpolateValue interpolates every string inside v. A string that is
// exactly one placeholder is replaced by the referenced value itself, so
// "{items}" yields the list rather than its JSON text.
func InterpolateValue(v interface{}, vars map[string]interface{}) interface{} {
	switch val := v.(type) {
	case string:
		if m := placeholderPattern.FindStringSubmatch(val); m != nil && m[0] == val {
			if resolved, ok := lookupPath(vars, m[1]); ok {
				return resolved
			}
			return val
		}
		return Interpolate(val, vars)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = InterpolateValue(item, vars)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = InterpolateValue(item, vars)
		}
		return out
	default:
		return v
	}
}

// interpolateArguments interpolates an action's argument map
func interpolateArguments(args map[string]interface{}, vars map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(args))
	for k, v := range args {
		out[k] = InterpolateValue(v, vars)
	}
	return out
}

// interpolateCondition substitutes placeholders in a condition as
// expression literals: strings are quoted, numbers and booleans are written
// bare and nil or unresolved paths become null. A placeholder already
// wrapped in quotes ('{status}') receives the escaped raw text instead, or
// nothing when it does not resolve.
func interpolateCondition(expr string, vars map[string]interface{}) string {
	locs := placeholderPattern.FindAllStringSubmatchIndex(expr, -1)
	if len(locs) == 0 {
		return expr
	}

	var sb strings.Builder
	last := 0
	for _, loc := range locs {
		start, end := loc[0], loc[1]
		path := expr[loc[2]:loc[3]]
		sb.WriteString(expr[last:start])
		last = end

		quoted := start > 0 && end < len(expr) && isQuote(expr[start-1]) && expr[end] == expr[start-1]
		value, ok := lookupPath(vars, path)
		switch {
		case !ok && quoted:
		case !ok:
			sb.WriteString("null")
		case quoted:
			sb.WriteString(escapeQuoted(stringify(value), expr[start-1]))
		default:
			sb.WriteString(conditionLiteral(value))
		}
	}
	sb.WriteString(expr[last:])
	return sb.String()
}

func isQuote(c byte) bool {
	return c == '"' || c == '\''
}

func escapeQuoted(s string, quote byte) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, string(quote), `\`+string(quote))
}

func conditionLiteral(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(val)
	case float64, float32, int, int64, int32, json.Number:
		return fmt.Sprint(val)
	case string:
		return strconv.Quote(val)
	default:
		return strconv.Quote(stringify(val))
	}
}

// lookupPath resolves a dotted path through nested maps and slices
func lookupPath(vars map[string]interface{}, path string) (interface{}, bool) {
	var current interface{} = vars
	for _, part := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}

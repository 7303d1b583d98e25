package chain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Transitions is a prompt's ordered transition table. It is authored as an
// object mapping condition expressions to actions; key order is preserved
// because the first matching condition wins.
type Transitions []Transition

// UnmarshalJSON decodes an object while keeping its key order
func (t *Transitions) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*t = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("then must be an object of condition to action, got %v", tok)
	}

	var out Transitions
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("then key must be a string, got %v", keyTok)
		}

		var action Action
		if err := dec.Decode(&action); err != nil {
			return fmt.Errorf("then[%q]: %w", key, err)
		}
		out = append(out, Transition{Condition: key, Action: action})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*t = out
	return nil
}

// MarshalJSON encodes the table as an object in table order
func (t Transitions) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, tr := range t {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(tr.Condition)
		if err != nil {
			return nil, err
		}
		action, err := json.Marshal(tr.Action)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(action)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a mapping while keeping its key order
func (t *Transitions) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!null" {
		*t = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: then must be a mapping of condition to action", node.Line)
	}

	out := make(Transitions, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valueNode := node.Content[i], node.Content[i+1]

		var action Action
		if err := valueNode.Decode(&action); err != nil {
			return fmt.Errorf("line %d: then[%q]: %w", valueNode.Line, keyNode.Value, err)
		}
		out = append(out, Transition{Condition: keyNode.Value, Action: action})
	}

	*t = out
	return nil
}

// MarshalYAML encodes the table as a mapping in table order
func (t Transitions) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, tr := range t {
		var value yaml.Node
		if err := value.Encode(tr.Action); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: tr.Condition},
			&value,
		)
	}
	return node, nil
}

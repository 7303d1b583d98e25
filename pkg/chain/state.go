package chain

import (
	"encoding/json"
	"sync"
)

// Reserved state keys
const (
	keyWorkProducts  = "work_products"
	keyPrimaryTask   = "primaryTask"
	keyTaskCompleted = "taskCompleted"
)

// State is the mutable memory of one run. Prompt outputs are shallow-merged
// into it and tool invocations are appended as work products. A State
// belongs to exactly one Runner.
type State struct {
	mu            sync.RWMutex
	values        map[string]interface{}
	workProducts  []WorkProduct
	taskCompleted bool
}

// NewState creates a state seeded with a copy of seed
func NewState(seed map[string]interface{}) *State {
	s := &State{values: make(map[string]interface{}, len(seed))}
	for k, v := range seed {
		switch k {
		case keyWorkProducts:
			s.workProducts = seedWorkProducts(v)
		case keyTaskCompleted:
			s.taskCompleted, _ = v.(bool)
		default:
			s.values[k] = v
		}
	}
	return s
}

// Merge shallow-merges values into the state. Reserved keys are owned by
// the engine and skipped.
func (s *State) Merge(values map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		if k == keyWorkProducts || k == keyTaskCompleted {
			continue
		}
		s.values[k] = v
	}
}

// Get returns a state value
func (s *State) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	return v, ok
}

// SetIfAbsent stores value unless key is already present
func (s *State) SetIfAbsent(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		s.values[key] = value
	}
}

// AppendWorkProduct records a tool invocation
func (s *State) AppendWorkProduct(wp WorkProduct) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workProducts = append(s.workProducts, wp)
}

// WorkProducts returns a copy of the recorded tool invocations in order
func (s *State) WorkProducts() []WorkProduct {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]WorkProduct, len(s.workProducts))
	copy(out, s.workProducts)
	return out
}

// TaskCompleted reports whether completeTask has been invoked
func (s *State) TaskCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.taskCompleted
}

func (s *State) setTaskCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.taskCompleted = true
}

// Snapshot returns a copy of the state as a plain map, including
// work_products and taskCompleted, for templates, conditions and results.
func (s *State) Snapshot() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]interface{}, len(s.values)+2)
	for k, v := range s.values {
		out[k] = v
	}

	products := make([]interface{}, 0, len(s.workProducts))
	for _, wp := range s.workProducts {
		products = append(products, map[string]interface{}{
			"id":        wp.ID,
			"tool":      wp.Tool,
			"arguments": wp.Arguments,
			"result":    wp.Result,
			"prompt":    wp.Prompt,
			"source":    wp.Source,
		})
	}
	out[keyWorkProducts] = products
	out[keyTaskCompleted] = s.taskCompleted

	return out
}

func seedWorkProducts(v interface{}) []WorkProduct {
	switch products := v.(type) {
	case []WorkProduct:
		out := make([]WorkProduct, len(products))
		copy(out, products)
		return out
	case []interface{}:
		data, err := json.Marshal(products)
		if err != nil {
			return nil
		}
		var out []WorkProduct
		if err := json.Unmarshal(data, &out); err != nil {
			return nil
		}
		return out
	}
	return nil
}

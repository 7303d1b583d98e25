// Package toolexecutor registers and invokes the named tools a prompt chain
// can call, either because the model requested them or because a transition
// routes to them.
//
// Invariants:
// - Tool names are unique; registering a name again replaces the tool.
// - Arguments are validated against the tool's JSON Schema before the handler runs.
// - Handlers see the run's ExecutionContext through ExecutionContextFrom.
//
// Usage:
//
//	exec := toolexecutor.New()
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name:        "echo",
//		Description: "Echo input",
//		Parameters: map[string]interface{}{
//			"type":       "object",
//			"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
//			"required":   []interface{}{"text"},
//		},
//		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return params["text"], nil },
//	})
//	out, err := exec.Invoke(ctx, "echo", map[string]interface{}{"text": "hi"}, nil)
package toolexecutor

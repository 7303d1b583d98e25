// Package provider adapts LLM vendor APIs to the prompt-chain engine.
//
// Invariants:
// - Adapters are stateless; the engine owns transport through HTTPClient.
// - Request bodies are built with the vendor SDK parameter types and decoded
//   with the SDK response types, so wire shapes follow the SDKs.
//
// Usage:
//
//	adapter, _ := provider.New(provider.Spec{Name: "claude", Type: provider.TypeAnthropic, Model: "claude-sonnet-4-0"})
//	body, _ := adapter.Request(provider.RequestBody{Options: adapter.Options(), Messages: msgs})
//	raw, _ := provider.NewHTTPClient(0).Post(ctx, adapter.Endpoint().URL, adapter.Endpoint().Headers, body)
//	text, _ := adapter.Content(raw)
package provider

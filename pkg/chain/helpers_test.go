package chain

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/harun/promptchain/pkg/provider"
)

// mockResponse is the wire format understood by mockAdapter
type mockResponse struct {
	Content  string             `json:"content"`
	ToolCall *provider.ToolCall `json:"tool_call,omitempty"`
}

// mockAdapter is a provider whose responses are mockResponse documents
type mockAdapter struct {
	name string
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Endpoint() provider.Endpoint {
	return provider.Endpoint{URL: "mock://" + m.name, Headers: map[string]string{"x-mock": m.name}}
}

func (m *mockAdapter) Message(role provider.Role, content string) provider.Message {
	return provider.Message{Role: role, Content: content}
}

func (m *mockAdapter) Options() map[string]interface{} {
	return map[string]interface{}{"model": "mock-" + m.name}
}

func (m *mockAdapter) Request(body provider.RequestBody) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"options":  body.Options,
		"messages": body.Messages,
		"tools":    body.Tools,
	})
}

func (m *mockAdapter) FormatTools(tools []provider.ToolSpec) interface{} {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
	}
	return names
}

func (m *mockAdapter) Content(raw []byte) (string, error) {
	var resp mockResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (m *mockAdapter) ToolCall(raw []byte) (*provider.ToolCall, error) {
	var resp mockResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return resp.ToolCall, nil
}

func reply(content string) []byte {
	data, _ := json.Marshal(mockResponse{Content: content})
	return data
}

func toolReply(content, tool, args string) []byte {
	data, _ := json.Marshal(mockResponse{Content: content, ToolCall: &provider.ToolCall{ID: "call_1", Name: tool, Arguments: args}})
	return data
}

// sentRequest is one request observed by scriptedClient
type sentRequest struct {
	URL      string
	Messages []provider.Message
	Options  map[string]interface{}
	Tools    []string
}

// responder produces the reply for the n-th call (1-based) to a provider
type responder func(ctx context.Context, n int) ([]byte, error)

// scriptedClient answers per provider URL and records every request
type scriptedClient struct {
	mu         sync.Mutex
	responders map[string]responder
	calls      map[string]int
	requests   []sentRequest
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{
		responders: make(map[string]responder),
		calls:      make(map[string]int),
	}
}

// on scripts the provider with the given name
func (c *scriptedClient) on(name string, fn responder) *scriptedClient {
	c.responders["mock://"+name] = fn
	return c
}

// sequence replies with the given bodies in order, repeating the last one
func sequence(bodies ...[]byte) responder {
	return func(ctx context.Context, n int) ([]byte, error) {
		if n > len(bodies) {
			return bodies[len(bodies)-1], nil
		}
		return bodies[n-1], nil
	}
}

func failing(err error) responder {
	return func(ctx context.Context, n int) ([]byte, error) {
		return nil, err
	}
}

func blocking() responder {
	return func(ctx context.Context, n int) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

func (c *scriptedClient) Post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	var decoded struct {
		Options  map[string]interface{} `json:"options"`
		Messages []provider.Message     `json:"messages"`
		Tools    []string               `json:"tools"`
	}
	_ = json.Unmarshal(body, &decoded)

	c.mu.Lock()
	c.calls[url]++
	n := c.calls[url]
	c.requests = append(c.requests, sentRequest{URL: url, Messages: decoded.Messages, Options: decoded.Options, Tools: decoded.Tools})
	fn := c.responders[url]
	c.mu.Unlock()

	if fn == nil {
		return nil, errors.New("no response scripted for " + url)
	}
	return fn(ctx, n)
}

func (c *scriptedClient) callCount(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls["mock://"+name]
}

func (c *scriptedClient) sent() []sentRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]sentRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// eventLog collects events from a run
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) Observe(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(t EventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == t {
			n++
		}
	}
	return n
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func adapters(names ...string) []provider.Adapter {
	out := make([]provider.Adapter, 0, len(names))
	for _, name := range names {
		out = append(out, &mockAdapter{name: name})
	}
	return out
}

// testOptions returns fast options wired to client and events
func testOptions(client provider.HTTPClient, events *eventLog) Options {
	opts := Options{
		RetryAttempts: 1,
		RetryDelay:    -1,
		HTTPClient:    client,
	}
	if events != nil {
		opts.Observer = events
	}
	return opts
}

func then(pairs ...interface{}) Transitions {
	var out Transitions
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Transition{Condition: pairs[i].(string), Action: pairs[i+1].(Action)})
	}
	return out
}

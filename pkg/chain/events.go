package chain

import (
	"context"
	"sync"
	"time"
)

// EventType names a point in a run's lifecycle
type EventType string

const (
	EventRunStart           EventType = "runStart"
	EventProviderAttempt    EventType = "providerAttempt"
	EventRunComplete        EventType = "runComplete"
	EventAIError            EventType = "aiError"
	EventUnexpectedError    EventType = "unexpectedError"
	EventProviderFailed     EventType = "providerFailed"
	EventAllProvidersFailed EventType = "allProvidersFailed"

	EventRunWithDepthStart       EventType = "runWithDepthStart"
	EventMaxDepthReached         EventType = "maxDepthReached"
	EventPromptNotFound          EventType = "promptNotFound"
	EventExecutePrompt           EventType = "executePrompt"
	EventPromptExecutionComplete EventType = "promptExecutionCompleted"
	EventNextStepEvaluated       EventType = "nextStepEvaluated"

	EventExecutePromptStart      EventType = "executePromptStart"
	EventExecutionComplete       EventType = "executionComplete"
	EventExecutionError          EventType = "executionError"
	EventExecutionTimeout        EventType = "executionTimeout"
	EventResponseParseError      EventType = "responseParseError"
	EventResponseValidationError EventType = "responseValidationError"
	EventToolCallDetected        EventType = "toolCallDetected"
	EventToolExecutionError      EventType = "toolExecutionError"
	EventTaskCompleted           EventType = "taskCompleted"

	EventMakeRequestAttempt         EventType = "makeRequestAttempt"
	EventMakeRequestRetry           EventType = "makeRequestRetry"
	EventMakeRequestMaxRetryReached EventType = "makeRequestMaxRetryReached"
	EventMakeRequestStart           EventType = "makeRequestStart"
	EventMakeRequestSuccess         EventType = "makeRequestSuccess"
	EventMakeRequestError           EventType = "makeRequestError"
)

// Event is one structured telemetry record
type Event struct {
	Type     EventType
	Time     time.Time
	RunID    string
	Prompt   string
	Provider string
	Depth    int
	Attempt  int
	Duration time.Duration
	Err      error
	Data     map[string]interface{}
}

// Observer receives events synchronously, in the order they occur.
// Observers must not block for long; the run waits for them.
type Observer interface {
	Observe(ev Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(ev Event)

// Observe calls f
func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}

// Emitter routes events to handlers registered per event type
type Emitter struct {
	mu        sync.RWMutex
	listeners map[EventType][]func(Event)
	any       []func(Event)
}

// NewEmitter creates an empty Emitter
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[EventType][]func(Event))}
}

// On registers a handler for one event type
func (e *Emitter) On(event EventType, handler func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners[event] = append(e.listeners[event], handler)
}

// OnAny registers a handler for every event
func (e *Emitter) OnAny(handler func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.any = append(e.any, handler)
}

// Observe delivers ev to matching handlers on the caller's goroutine
func (e *Emitter) Observe(ev Event) {
	e.mu.RLock()
	handlers := append([]func(Event){}, e.listeners[ev.Type]...)
	handlers = append(handlers, e.any...)
	e.mu.RUnlock()

	for _, handler := range handlers {
		handler(ev)
	}
}

// RemoveAllListeners removes all handlers
func (e *Emitter) RemoveAllListeners() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.listeners = make(map[EventType][]func(Event))
	e.any = nil
}

// Failure describes a failed provider attempt handed to a FallbackPolicy
type Failure struct {
	Provider   string
	Attempt    int
	Remaining  int
	Err        *AIError
	Unexpected bool
}

// FallbackPolicy decides whether a failed provider attempt may fall back to
// the next provider. Returning false stops the run with the original error.
type FallbackPolicy func(ctx context.Context, f Failure) bool

// AlwaysFallback allows every fallback
func AlwaysFallback(context.Context, Failure) bool {
	return true
}

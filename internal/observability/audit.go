package observability

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/harun/promptchain/pkg/chain"
	"github.com/rs/zerolog"
)

// AuditEvent is one line of the audit log
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	RunID     string                 `json:"run_id,omitempty"`
	Action    string                 `json:"action"` // e.g. "run:complete", "tool:search"
	Status    string                 `json:"status"` // "success", "failure"
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// AuditLogger writes run boundaries, fallbacks, completions and tool
// failures as JSON lines. It implements chain.Observer.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	file   *os.File
}

// NewAuditLogger writes audit lines to w
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{logger: zerolog.New(w)}
}

// OpenAuditLogger appends audit lines to the file at path
func OpenAuditLogger(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &AuditLogger{logger: zerolog.New(file), file: file}, nil
}

// Record writes an audit event
func (a *AuditLogger) Record(event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Str("event_type", event.Type).
		Time("timestamp", event.Timestamp).
		Str("run_id", event.RunID).
		Str("action", event.Action).
		Str("status", event.Status)

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Observe maps chain events onto audit events; other events are ignored
func (a *AuditLogger) Observe(ev chain.Event) {
	audit := AuditEvent{Timestamp: ev.Time, RunID: ev.RunID, Metadata: map[string]interface{}{}}
	if ev.Prompt != "" {
		audit.Metadata["prompt"] = ev.Prompt
	}
	if ev.Provider != "" {
		audit.Metadata["provider"] = ev.Provider
	}
	if ev.Err != nil {
		audit.Metadata["error"] = ev.Err.Error()
	}

	switch ev.Type {
	case chain.EventRunStart:
		audit.Type, audit.Action, audit.Status = "run", "run:start", "pending"
	case chain.EventRunComplete:
		audit.Type, audit.Action, audit.Status = "run", "run:complete", "success"
		audit.Metadata["duration_ms"] = ev.Duration.Milliseconds()
	case chain.EventAllProvidersFailed:
		audit.Type, audit.Action, audit.Status = "run", "run:complete", "failure"
	case chain.EventProviderFailed:
		audit.Type, audit.Action, audit.Status = "provider", "provider:fallback", "failure"
	case chain.EventTaskCompleted:
		audit.Type, audit.Action, audit.Status = "task", "task:complete", "success"
		if source, ok := ev.Data["source"]; ok {
			audit.Metadata["source"] = source
		}
	case chain.EventToolExecutionError:
		tool, _ := ev.Data["tool"].(string)
		audit.Type, audit.Action, audit.Status = "tool", "tool:"+tool, "failure"
	default:
		return
	}

	a.Record(audit)
}

// auditedEvents are the event types Observe records
var auditedEvents = []chain.EventType{
	chain.EventRunStart,
	chain.EventRunComplete,
	chain.EventAllProvidersFailed,
	chain.EventProviderFailed,
	chain.EventTaskCompleted,
	chain.EventToolExecutionError,
}

// Subscribe registers the audit logger on e for the event types it records
func (a *AuditLogger) Subscribe(e *chain.Emitter) {
	for _, t := range auditedEvents {
		e.On(t, a.Observe)
	}
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

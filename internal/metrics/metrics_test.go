package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harun/promptchain/pkg/chain"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.registry == nil {
		t.Error("Registry is nil")
	}
	if m.RunsTotal == nil || m.ProviderAttemptsTotal == nil || m.RequestsTotal == nil {
		t.Error("Run, provider or request metrics are nil")
	}
	if m.ToolCallsTotal == nil || m.ToolErrorsTotal == nil {
		t.Error("Tool metrics are nil")
	}
}

func TestObserve_Run(t *testing.T) {
	m := NewMetrics()

	m.Observe(chain.Event{Type: chain.EventProviderAttempt, Provider: "claude"})
	m.Observe(chain.Event{Type: chain.EventProviderFailed, Provider: "claude"})
	m.Observe(chain.Event{Type: chain.EventProviderAttempt, Provider: "gpt"})
	m.Observe(chain.Event{
		Type:     chain.EventRunComplete,
		Provider: "gpt",
		Duration: 2 * time.Second,
		Data:     map[string]interface{}{"taskCompleted": true},
	})
	m.Observe(chain.Event{Type: chain.EventAllProvidersFailed, Duration: time.Second})

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 successful run, got %v", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("Expected 1 failed run, got %v", got)
	}
	if got := testutil.ToFloat64(m.ProviderAttemptsTotal.WithLabelValues("claude")); got != 1 {
		t.Errorf("Expected 1 claude attempt, got %v", got)
	}
	if got := testutil.ToFloat64(m.ProviderFailuresTotal.WithLabelValues("claude")); got != 1 {
		t.Errorf("Expected 1 claude failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.TasksCompletedTotal); got != 1 {
		t.Errorf("Expected 1 completed task, got %v", got)
	}
}

func TestObserve_Steps(t *testing.T) {
	m := NewMetrics()

	m.Observe(chain.Event{Type: chain.EventExecutionComplete, Prompt: "main", Duration: 100 * time.Millisecond})
	m.Observe(chain.Event{Type: chain.EventExecutionError, Prompt: "main"})
	m.Observe(chain.Event{Type: chain.EventExecutionTimeout, Prompt: "main"})
	m.Observe(chain.Event{Type: chain.EventMakeRequestSuccess, Provider: "claude", Duration: 50 * time.Millisecond})
	m.Observe(chain.Event{Type: chain.EventMakeRequestError, Provider: "claude"})
	m.Observe(chain.Event{Type: chain.EventMakeRequestRetry, Provider: "claude"})
	m.Observe(chain.Event{Type: chain.EventToolCallDetected, Data: map[string]interface{}{"tool": "search"}})
	m.Observe(chain.Event{Type: chain.EventToolExecutionError, Data: map[string]interface{}{"tool": "search"}})

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"successful steps", testutil.ToFloat64(m.PromptStepsTotal.WithLabelValues("main", "success")), 1},
		{"failed steps", testutil.ToFloat64(m.PromptStepsTotal.WithLabelValues("main", "failure")), 1},
		{"timeouts", testutil.ToFloat64(m.PromptTimeoutsTotal.WithLabelValues("main")), 1},
		{"successful requests", testutil.ToFloat64(m.RequestsTotal.WithLabelValues("claude", "success")), 1},
		{"failed requests", testutil.ToFloat64(m.RequestsTotal.WithLabelValues("claude", "failure")), 1},
		{"retries", testutil.ToFloat64(m.RetriesTotal.WithLabelValues("claude")), 1},
		{"tool calls", testutil.ToFloat64(m.ToolCallsTotal.WithLabelValues("search")), 1},
		{"tool errors", testutil.ToFloat64(m.ToolErrorsTotal.WithLabelValues("search")), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, tt.got)
			}
		})
	}
}

func TestObserve_ErrorCodes(t *testing.T) {
	m := NewMetrics()

	m.Observe(chain.Event{Type: chain.EventAIError, Err: chain.ErrMaxDepthReached})
	m.Observe(chain.Event{Type: chain.EventUnexpectedError, Err: errors.New("boom")})

	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(string(chain.CodeMaxDepthReached))); got != 1 {
		t.Errorf("Expected 1 MaxDepthReached error, got %v", got)
	}
	if got := testutil.ToFloat64(m.ErrorsTotal.WithLabelValues(string(chain.CodeUnexpected))); got != 1 {
		t.Errorf("Expected 1 unexpected error, got %v", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	m.Observe(chain.Event{Type: chain.EventProviderAttempt, Provider: "claude"})
	m.Observe(chain.Event{Type: chain.EventRunComplete, Duration: time.Second})

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	for _, metric := range []string{
		"promptchain_runs_total",
		"promptchain_run_duration_seconds",
		"promptchain_provider_attempts_total",
		"promptchain_tasks_completed_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}

func TestMetricsIsolation(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.Observe(chain.Event{Type: chain.EventProviderAttempt, Provider: "claude"})

	if got := testutil.ToFloat64(m2.ProviderAttemptsTotal.WithLabelValues("claude")); got != 0 {
		t.Errorf("Expected isolated registries, got %v", got)
	}
	if m1.Registry() == m2.Registry() {
		t.Error("Registries should be distinct")
	}
}

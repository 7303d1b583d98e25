package metrics

import (
	"net/http"

	"github.com/harun/promptchain/pkg/chain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of chain runs. It implements
// chain.Observer and is safe to share between concurrent runs.
type Metrics struct {
	registry *prometheus.Registry

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec

	// Provider metrics
	ProviderAttemptsTotal *prometheus.CounterVec
	ProviderFailuresTotal *prometheus.CounterVec

	// Prompt metrics
	PromptStepsTotal    *prometheus.CounterVec
	PromptStepDuration  *prometheus.HistogramVec
	PromptTimeoutsTotal *prometheus.CounterVec

	// Dispatch metrics
	RequestsTotal   *prometheus.CounterVec
	RetriesTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Tool metrics
	ToolCallsTotal      *prometheus.CounterVec
	ToolErrorsTotal     *prometheus.CounterVec
	TasksCompletedTotal prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_runs_total",
				Help: "Total number of chain runs by outcome",
			},
			[]string{"status"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptchain_run_duration_seconds",
				Help:    "Duration of chain runs in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		),

		ProviderAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_provider_attempts_total",
				Help: "Total number of provider attempts",
			},
			[]string{"provider"},
		),
		ProviderFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_provider_failures_total",
				Help: "Total number of provider attempts that fell back",
			},
			[]string{"provider"},
		),

		PromptStepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_prompt_steps_total",
				Help: "Total number of prompt executions by outcome",
			},
			[]string{"prompt", "status"},
		),
		PromptStepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptchain_prompt_step_duration_seconds",
				Help:    "Duration of prompt executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"prompt"},
		),
		PromptTimeoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_prompt_timeouts_total",
				Help: "Total number of prompt executions that timed out",
			},
			[]string{"prompt"},
		),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_requests_total",
				Help: "Total number of provider requests by outcome",
			},
			[]string{"provider", "status"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_request_retries_total",
				Help: "Total number of provider request retries",
			},
			[]string{"provider"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "promptchain_request_duration_seconds",
				Help:    "Duration of provider requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),

		ToolCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_tool_calls_total",
				Help: "Total number of tool calls requested by models",
			},
			[]string{"tool"},
		),
		ToolErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_tool_errors_total",
				Help: "Total number of failed tool executions",
			},
			[]string{"tool"},
		),
		TasksCompletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "promptchain_tasks_completed_total",
				Help: "Total number of runs ended by completeTask",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptchain_errors_total",
				Help: "Total number of engine errors by code",
			},
			[]string{"code"},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.ProviderAttemptsTotal,
		m.ProviderFailuresTotal,
		m.PromptStepsTotal,
		m.PromptStepDuration,
		m.PromptTimeoutsTotal,
		m.RequestsTotal,
		m.RetriesTotal,
		m.RequestDuration,
		m.ToolCallsTotal,
		m.ToolErrorsTotal,
		m.TasksCompletedTotal,
		m.ErrorsTotal,
	)
}

// Observe records a chain event
func (m *Metrics) Observe(ev chain.Event) {
	switch ev.Type {
	case chain.EventRunComplete:
		m.RunsTotal.WithLabelValues("success").Inc()
		m.RunDuration.WithLabelValues("success").Observe(ev.Duration.Seconds())
		if completed, _ := ev.Data["taskCompleted"].(bool); completed {
			m.TasksCompletedTotal.Inc()
		}

	case chain.EventAllProvidersFailed:
		m.RunsTotal.WithLabelValues("failure").Inc()
		m.RunDuration.WithLabelValues("failure").Observe(ev.Duration.Seconds())

	case chain.EventProviderAttempt:
		m.ProviderAttemptsTotal.WithLabelValues(ev.Provider).Inc()

	case chain.EventProviderFailed:
		m.ProviderFailuresTotal.WithLabelValues(ev.Provider).Inc()

	case chain.EventExecutionComplete:
		m.PromptStepsTotal.WithLabelValues(ev.Prompt, "success").Inc()
		m.PromptStepDuration.WithLabelValues(ev.Prompt).Observe(ev.Duration.Seconds())

	case chain.EventExecutionError:
		m.PromptStepsTotal.WithLabelValues(ev.Prompt, "failure").Inc()
		m.PromptStepDuration.WithLabelValues(ev.Prompt).Observe(ev.Duration.Seconds())

	case chain.EventExecutionTimeout:
		m.PromptTimeoutsTotal.WithLabelValues(ev.Prompt).Inc()

	case chain.EventMakeRequestSuccess:
		m.RequestsTotal.WithLabelValues(ev.Provider, "success").Inc()
		m.RequestDuration.WithLabelValues(ev.Provider).Observe(ev.Duration.Seconds())

	case chain.EventMakeRequestError:
		m.RequestsTotal.WithLabelValues(ev.Provider, "failure").Inc()
		m.RequestDuration.WithLabelValues(ev.Provider).Observe(ev.Duration.Seconds())

	case chain.EventMakeRequestRetry:
		m.RetriesTotal.WithLabelValues(ev.Provider).Inc()

	case chain.EventToolCallDetected:
		tool, _ := ev.Data["tool"].(string)
		m.ToolCallsTotal.WithLabelValues(tool).Inc()

	case chain.EventToolExecutionError:
		tool, _ := ev.Data["tool"].(string)
		m.ToolErrorsTotal.WithLabelValues(tool).Inc()

	case chain.EventAIError, chain.EventUnexpectedError:
		code := string(chain.CodeUnexpected)
		if aiErr, ok := chain.AsAIError(ev.Err); ok {
			code = string(aiErr.Code)
		}
		m.ErrorsTotal.WithLabelValues(code).Inc()
	}
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

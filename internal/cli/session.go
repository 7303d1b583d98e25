package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harun/promptchain/internal/config"
	"github.com/harun/promptchain/internal/logger"
	"github.com/harun/promptchain/internal/metrics"
	"github.com/harun/promptchain/internal/observability"
	"github.com/harun/promptchain/internal/tracing"
	"github.com/harun/promptchain/pkg/chain"
	"github.com/harun/promptchain/pkg/workflow"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// session holds the process-level services a command runs with
type session struct {
	cfg     *config.Config
	log     *logger.Logger
	logger  zerolog.Logger
	metrics *metrics.Metrics
	audit   *observability.AuditLogger
	events  *chain.Emitter

	metricsServer *http.Server
	tracing       bool
}

// openSession loads config and starts logging, metrics, tracing and the
// optional audit log
func openSession(cmd *cobra.Command, opts *globalOptions, auditPath string) (*session, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		if err := config.NewValidator().ValidateLogLevel(opts.logLevel); err != nil {
			return nil, err
		}
		cfg.Logging.Level = opts.logLevel
	}

	logCfg := cfg.LoggerConfig()
	logCfg.Output = cmd.ErrOrStderr()
	log, err := logger.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	s := &session{
		cfg:     cfg,
		log:     log,
		logger:  log.Component("cli"),
		metrics: metrics.NewMetrics(),
		events:  chain.NewEmitter(),
	}
	s.events.OnAny(s.metrics.Observe)

	if auditPath != "" {
		audit, err := observability.OpenAuditLogger(auditPath)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		s.audit = audit
		s.audit.Subscribe(s.events)
	}

	if cfg.Tracing.Enabled {
		if err := tracing.Setup(cfg.Tracing.ServiceName, cfg.Tracing.SampleRatio); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to initialize tracing")
		} else {
			s.tracing = true
		}
	}

	if cfg.Metrics.Enabled {
		s.startMetricsServer()
	}

	return s, nil
}

func (s *session) startMetricsServer() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())

	s.metricsServer = &http.Server{
		Addr:              s.cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", s.cfg.Metrics.Addr).Msg("Serving metrics")
		if err := s.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
}

// observer routes engine events to metrics and, when enabled, the audit log
func (s *session) observer() chain.Observer {
	return s.events
}

// loadWorkflow loads path, falling back to the configured workflow file
func (s *session) loadWorkflow(path string) (*workflow.Definition, error) {
	if path == "" {
		path = s.cfg.Workflow.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no workflow file given; use --workflow or set workflow.path in the config")
	}
	return workflow.Load(path)
}

// build turns a workflow into an engine config. Workflows that declare no
// providers run on the providers from the config file.
func (s *session) build(def *workflow.Definition) (chain.Config, error) {
	opts := workflow.BuildOptions{ResolveSpec: s.cfg.ResolveSpec}
	if len(def.Providers) == 0 {
		adapters, err := s.cfg.Adapters()
		if err != nil {
			return chain.Config{}, err
		}
		opts.Providers = adapters
	}
	return def.Build(opts)
}

// runnerOptions returns the configured engine options with this session's
// logger and observers attached
func (s *session) runnerOptions() chain.Options {
	opts := s.cfg.RunnerOptions()
	chainLogger := s.log.Component("chain")
	opts.Logger = &chainLogger
	opts.Observer = s.observer()
	return opts
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to stop metrics server")
		}
	}
	if s.tracing {
		if err := tracing.Shutdown(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
	s.events.RemoveAllListeners()
	if s.audit != nil {
		_ = s.audit.Close()
	}
	_ = s.log.Close()
}

// describeError appends an AIError's code and details to its message
func describeError(err error) error {
	aiErr, ok := chain.AsAIError(err)
	if !ok {
		return err
	}
	if aiErr.Details == nil {
		return fmt.Errorf("[%s] %w", aiErr.Code, err)
	}
	details, jsonErr := json.Marshal(aiErr.Details)
	if jsonErr != nil {
		details = []byte(fmt.Sprintf("%v", aiErr.Details))
	}
	return fmt.Errorf("[%s] %w\ndetails: %s", aiErr.Code, err, details)
}

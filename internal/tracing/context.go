package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Info identifies a chain run in logs and spans
type Info struct {
	TraceID  string
	RunID    string
	Workflow string
}

type infoKey struct{}

// NewRunID returns a fresh run id
func NewRunID() string {
	return uuid.NewString()
}

// InfoFrom returns the run identity carried by ctx; fields are empty when unset
func InfoFrom(ctx context.Context) Info {
	info, _ := ctx.Value(infoKey{}).(Info)
	return info
}

func withInfo(ctx context.Context, info Info) context.Context {
	return context.WithValue(ctx, infoKey{}, info)
}

// WithWorkflow records the workflow name for the runs started under ctx
func WithWorkflow(ctx context.Context, workflow string) context.Context {
	info := InfoFrom(ctx)
	info.Workflow = workflow
	return withInfo(ctx, info)
}

// NewRunContext starts a run under ctx. An existing trace id is kept so runs
// started by one command share a trace; missing ids are generated.
func NewRunContext(ctx context.Context, runID string) context.Context {
	info := InfoFrom(ctx)
	if info.TraceID == "" {
		info.TraceID = uuid.NewString()
	}
	if runID == "" {
		runID = NewRunID()
	}
	info.RunID = runID
	return withInfo(ctx, info)
}

// LoggerFromContext tags base with the trace_id, run_id and workflow in ctx
func LoggerFromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	info := InfoFrom(ctx)
	if info == (Info{}) {
		return base
	}

	lc := base.With()
	if info.TraceID != "" {
		lc = lc.Str("trace_id", info.TraceID)
	}
	if info.RunID != "" {
		lc = lc.Str("run_id", info.RunID)
	}
	if info.Workflow != "" {
		lc = lc.Str("workflow", info.Workflow)
	}
	return lc.Logger()
}

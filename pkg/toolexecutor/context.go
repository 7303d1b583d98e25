package toolexecutor

import "context"

type execContextKey struct{}

// WithExecutionContext returns a copy of ctx carrying execCtx. A nil execCtx
// leaves ctx unchanged.
func WithExecutionContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	if execCtx == nil {
		return ctx
	}
	return context.WithValue(ctx, execContextKey{}, execCtx)
}

// ExecutionContextFrom returns the run's execution context, or nil outside a
// tool invocation
func ExecutionContextFrom(ctx context.Context) *ExecutionContext {
	execCtx, _ := ctx.Value(execContextKey{}).(*ExecutionContext)
	return execCtx
}

package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var (
	mu       sync.Mutex
	provider *sdktrace.TracerProvider
)

// Setup installs the process-wide tracer provider, sampling sampleRatio of
// new traces (values outside (0, 1] sample everything). A second call is a
// no-op until Shutdown.
func Setup(serviceName string, sampleRatio float64) error {
	mu.Lock()
	defer mu.Unlock()

	if provider != nil {
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", serviceName)),
	)
	if err != nil {
		return err
	}

	if sampleRatio <= 0 || sampleRatio > 1 {
		sampleRatio = 1
	}

	provider = sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	return nil
}

// Shutdown flushes pending spans and uninstalls the provider from Setup
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	mu.Unlock()

	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span tagged with the run_id and workflow carried by ctx.
// A context without a trace id adopts the span's.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	info := InfoFrom(ctx)
	if info.RunID != "" {
		attrs = append(attrs, attribute.String("run_id", info.RunID))
	}
	if info.Workflow != "" {
		attrs = append(attrs, attribute.String("workflow", info.Workflow))
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, spanName, trace.WithAttributes(attrs...))

	if sc := span.SpanContext(); info.TraceID == "" && sc.IsValid() {
		info.TraceID = sc.TraceID().String()
		ctx = withInfo(ctx, info)
	}
	return ctx, span
}

// EndSpan marks the span failed when err is non-nil and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

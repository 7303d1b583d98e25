package chain

import (
	"context"
	"time"

	"github.com/harun/promptchain/internal/tracing"
	"github.com/harun/promptchain/pkg/provider"
	"go.opentelemetry.io/otel/attribute"
)

// requestOptions merges the prompt's request format over the adapter's base options
func requestOptions(adapter provider.Adapter, prompt *Prompt) map[string]interface{} {
	opts := make(map[string]interface{})
	for k, v := range adapter.Options() {
		opts[k] = v
	}
	for k, v := range prompt.RequestFormat {
		opts[k] = v
	}
	return opts
}

// makeRequestWithRetry performs one provider round trip, retrying every
// failure with a fixed delay until RetryAttempts attempts have been made.
func (r *Runner) makeRequestWithRetry(ctx context.Context, s *step, messages []provider.Message, tools interface{}) ([]byte, error) {
	body, err := s.adapter.Request(provider.RequestBody{
		Options:  requestOptions(s.adapter, s.prompt),
		Messages: messages,
		Tools:    tools,
	})
	if err != nil {
		return nil, wrapError(CodeRequestFailed, err, "failed to build request for provider %s", s.adapter.Name())
	}

	logger := r.loggerFor(ctx)
	maxAttempts := r.opts.RetryAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		r.emit(s.event(EventMakeRequestAttempt, func(ev *Event) { ev.Attempt = attempt }))

		raw, err := r.makeRequest(ctx, s, body, attempt)
		if err == nil {
			return raw, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt >= maxAttempts {
			r.emit(s.event(EventMakeRequestMaxRetryReached, func(ev *Event) {
				ev.Attempt = attempt
				ev.Err = err
			}))
			logger.Error().
				Err(err).
				Str("provider", s.adapter.Name()).
				Int("attempts", attempt).
				Msg("Request failed after max retries")
			return nil, wrapError(CodeRequestFailed, err, "request to provider %s failed after %d attempts", s.adapter.Name(), attempt)
		}

		r.emit(s.event(EventMakeRequestRetry, func(ev *Event) {
			ev.Attempt = attempt
			ev.Err = err
		}))
		logger.Warn().
			Err(err).
			Str("provider", s.adapter.Name()).
			Int("attempt", attempt).
			Dur("delay", r.opts.RetryDelay).
			Msg("Request failed, retrying")

		if err := sleepContext(ctx, r.opts.RetryDelay); err != nil {
			return nil, err
		}
	}
}

// makeRequest posts one encoded body to the provider endpoint
func (r *Runner) makeRequest(ctx context.Context, s *step, body []byte, attempt int) ([]byte, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "chain.dispatch",
		attribute.String("provider", s.adapter.Name()),
		attribute.String("prompt", s.prompt.Name),
		attribute.Int("attempt", attempt),
	)

	r.emit(s.event(EventMakeRequestStart, func(ev *Event) { ev.Attempt = attempt }))

	start := time.Now()
	endpoint := s.adapter.Endpoint()
	raw, err := r.httpClient.Post(ctx, endpoint.URL, endpoint.Headers, body)
	duration := time.Since(start)

	tracing.EndSpan(span, err)

	if err != nil {
		r.emit(s.event(EventMakeRequestError, func(ev *Event) {
			ev.Attempt = attempt
			ev.Err = err
			ev.Duration = duration
		}))
		return nil, err
	}

	r.emit(s.event(EventMakeRequestSuccess, func(ev *Event) {
		ev.Attempt = attempt
		ev.Duration = duration
	}))
	logger := r.loggerFor(ctx)
	logger.Debug().
		Str("provider", s.adapter.Name()).
		Str("prompt", s.prompt.Name).
		Int("attempt", attempt).
		Dur("duration", duration).
		Msg("Request completed")

	return raw, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

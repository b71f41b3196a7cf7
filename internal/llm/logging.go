package llm

import (
	"context"
	"time"

	"linkloom/internal/logging"
	"linkloom/internal/metrics"
)

type loggingProvider struct {
	inner   Provider
	purpose string
}

// WithLogging logs every call as a JSON line and counts it in metrics.
// purpose labels the call site, e.g. "align" or "seed".
func WithLogging(p Provider, purpose string) Provider {
	return &loggingProvider{inner: p, purpose: purpose}
}

func (l *loggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := l.inner.Generate(ctx, req)
	fields := map[string]any{
		"model":      l.inner.ModelID(),
		"purpose":    l.purpose,
		"latency_ms": time.Since(start).Milliseconds(),
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		fields["error"] = err.Error()
		logging.Warn("llm_call", fields)
	} else {
		fields["input_tokens"] = resp.Usage.InputTokens
		fields["output_tokens"] = resp.Usage.OutputTokens
		fields["stop_reason"] = resp.StopReason
		logging.Debug("llm_call", fields)
	}
	metrics.IncLLMCall(l.inner.ModelID(), outcome)
	return resp, err
}

func (l *loggingProvider) ModelID() string { return l.inner.ModelID() }

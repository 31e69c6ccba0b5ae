package tracing

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "goalsectors-backend/coach"

// OTelExporter maps each turn trace onto a root span. Events become span
// events and evals become attributes. Evals arriving after the span ended
// (user feedback) are recorded as a child span of the remote trace.
type OTelExporter struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

func NewOTelExporter(tp trace.TracerProvider) *OTelExporter {
	return &OTelExporter{
		tracer: tp.Tracer(instrumentationName),
		spans:  make(map[string]trace.Span),
	}
}

func (e *OTelExporter) Enabled() bool { return true }

func (e *OTelExporter) StartTrace(ctx context.Context, name string, meta map[string]any) (string, error) {
	_, span := e.tracer.Start(ctx, name,
		trace.WithNewRoot(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(toAttributes("meta.", meta)...),
	)
	id := span.SpanContext().TraceID().String()
	if !span.SpanContext().TraceID().IsValid() {
		span.End()
		return "", fmt.Errorf("tracer produced an invalid trace id")
	}
	e.mu.Lock()
	e.spans[id] = span
	e.mu.Unlock()
	return id, nil
}

func (e *OTelExporter) Event(_ context.Context, traceID, name string, payload map[string]any) error {
	span, ok := e.lookup(traceID)
	if !ok {
		return fmt.Errorf("event %s: unknown trace %s", name, traceID)
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes("", payload)...))
	return nil
}

func (e *OTelExporter) EndTrace(_ context.Context, traceID string, result map[string]any) error {
	e.mu.Lock()
	span, ok := e.spans[traceID]
	delete(e.spans, traceID)
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("end: unknown trace %s", traceID)
	}
	span.SetAttributes(toAttributes("result.", result)...)
	if success, ok := result["success"].(bool); ok && !success {
		span.SetStatus(codes.Error, "turn failed validation")
	}
	span.End()
	return nil
}

func (e *OTelExporter) LogEval(ctx context.Context, traceID, name string, value float64, reason string) error {
	attrs := []attribute.KeyValue{
		attribute.String("eval.name", name),
		attribute.Float64("eval.value", value),
	}
	if reason != "" {
		attrs = append(attrs, attribute.String("eval.reason", reason))
	}

	if span, ok := e.lookup(traceID); ok {
		span.AddEvent("eval", trace.WithAttributes(attrs...))
		return nil
	}

	tid, err := trace.TraceIDFromHex(traceID)
	if err != nil {
		return fmt.Errorf("eval %s: %w", name, err)
	}
	var sid trace.SpanID
	random := uuid.New()
	copy(sid[:], random[:8])
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	_, span := e.tracer.Start(trace.ContextWithRemoteSpanContext(ctx, parent), "eval",
		trace.WithAttributes(attrs...),
	)
	span.End()
	return nil
}

func (e *OTelExporter) lookup(traceID string) (trace.Span, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	span, ok := e.spans[traceID]
	return span, ok
}

func toAttributes(prefix string, values map[string]any) []attribute.KeyValue {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		key := prefix + k
		switch v := values[k].(type) {
		case string:
			out = append(out, attribute.String(key, v))
		case bool:
			out = append(out, attribute.Bool(key, v))
		case int:
			out = append(out, attribute.Int(key, v))
		case int64:
			out = append(out, attribute.Int64(key, v))
		case float64:
			out = append(out, attribute.Float64(key, v))
		case []string:
			out = append(out, attribute.StringSlice(key, v))
		case nil:
		default:
			out = append(out, attribute.String(key, fmt.Sprint(v)))
		}
	}
	return out
}

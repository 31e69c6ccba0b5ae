package tracing

import "context"

// Exporter writes turn traces to an observability backend. Implementations
// may block; the Sink bounds and serializes calls.
type Exporter interface {
	Enabled() bool
	StartTrace(ctx context.Context, name string, meta map[string]any) (traceID string, err error)
	Event(ctx context.Context, traceID, name string, payload map[string]any) error
	EndTrace(ctx context.Context, traceID string, result map[string]any) error
	// LogEval attaches a named score to a trace. The trace may already be ended.
	LogEval(ctx context.Context, traceID, name string, value float64, reason string) error
}

// NopExporter drops everything.
type NopExporter struct{}

func (NopExporter) Enabled() bool { return false }

func (NopExporter) StartTrace(context.Context, string, map[string]any) (string, error) {
	return "", nil
}

func (NopExporter) Event(context.Context, string, string, map[string]any) error { return nil }

func (NopExporter) EndTrace(context.Context, string, map[string]any) error { return nil }

func (NopExporter) LogEval(context.Context, string, string, float64, string) error { return nil }

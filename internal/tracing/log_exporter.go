package tracing

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LogExporter writes trace records as structured log lines.
type LogExporter struct {
	logger *zap.Logger
}

func NewLogExporter(logger *zap.Logger) *LogExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogExporter{logger: logger.Named("trace")}
}

func (e *LogExporter) Enabled() bool { return true }

func (e *LogExporter) StartTrace(_ context.Context, name string, meta map[string]any) (string, error) {
	id := uuid.NewString()
	e.logger.Info("trace.start",
		zap.String("trace_id", id),
		zap.String("name", name),
		zap.Any("meta", meta),
	)
	return id, nil
}

func (e *LogExporter) Event(_ context.Context, traceID, name string, payload map[string]any) error {
	e.logger.Info("trace.event",
		zap.String("trace_id", traceID),
		zap.String("name", name),
		zap.Any("payload", payload),
	)
	return nil
}

func (e *LogExporter) EndTrace(_ context.Context, traceID string, result map[string]any) error {
	e.logger.Info("trace.end",
		zap.String("trace_id", traceID),
		zap.Any("result", result),
	)
	return nil
}

func (e *LogExporter) LogEval(_ context.Context, traceID, name string, value float64, reason string) error {
	e.logger.Info("trace.eval",
		zap.String("trace_id", traceID),
		zap.String("name", name),
		zap.Float64("value", value),
		zap.String("reason", reason),
	)
	return nil
}

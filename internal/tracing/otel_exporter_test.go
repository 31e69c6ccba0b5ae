package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordedExporter(t *testing.T) (*OTelExporter, *tracetest.SpanRecorder) {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelExporter(tp), sr
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOTelExporterRecordsTurnSpan(t *testing.T) {
	exp, sr := newRecordedExporter(t)
	ctx := context.Background()

	id, err := exp.StartTrace(ctx, "coach-turn", map[string]any{"user_id": "u1", "mode": "coach"})
	require.NoError(t, err)
	require.Len(t, id, 32)

	require.NoError(t, exp.Event(ctx, id, "prompt_built", map[string]any{"message_count": 2}))
	require.NoError(t, exp.LogEval(ctx, id, "Total Score", 85, ""))
	require.NoError(t, exp.EndTrace(ctx, id, map[string]any{"success": false, "actions_applied": 0}))

	ended := sr.Ended()
	require.Len(t, ended, 1)
	span := ended[0]
	assert.Equal(t, "coach-turn", span.Name())
	assert.Equal(t, id, span.SpanContext().TraceID().String())
	assert.Equal(t, codes.Error, span.Status().Code)

	v, ok := attrValue(span.Attributes(), "meta.user_id")
	require.True(t, ok)
	assert.Equal(t, "u1", v.AsString())
	v, ok = attrValue(span.Attributes(), "result.actions_applied")
	require.True(t, ok)
	assert.Equal(t, int64(0), v.AsInt64())

	events := span.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "prompt_built", events[0].Name)
	assert.Equal(t, "eval", events[1].Name)

	assert.Error(t, exp.Event(ctx, id, "late", nil))
}

func TestOTelExporterLogsFeedbackAgainstEndedTrace(t *testing.T) {
	exp, sr := newRecordedExporter(t)
	ctx := context.Background()

	id, err := exp.StartTrace(ctx, "coach-turn", nil)
	require.NoError(t, err)
	require.NoError(t, exp.EndTrace(ctx, id, nil))

	require.NoError(t, exp.LogEval(ctx, id, "User Feedback", 1, "User liked"))

	ended := sr.Ended()
	require.Len(t, ended, 2)
	feedback := ended[1]
	assert.Equal(t, "eval", feedback.Name())
	assert.Equal(t, id, feedback.SpanContext().TraceID().String())
	assert.True(t, feedback.Parent().IsRemote())
	v, ok := attrValue(feedback.Attributes(), "eval.reason")
	require.True(t, ok)
	assert.Equal(t, "User liked", v.AsString())
}

func TestOTelExporterRejectsMalformedTraceID(t *testing.T) {
	exp, _ := newRecordedExporter(t)
	assert.Error(t, exp.LogEval(context.Background(), "not-hex", "User Feedback", 0, ""))
}

func TestToAttributesSortsAndConverts(t *testing.T) {
	attrs := toAttributes("p.", map[string]any{
		"b":    true,
		"a":    "x",
		"c":    3.5,
		"list": []string{"Habits"},
		"skip": nil,
		"obj":  struct{ N int }{N: 1},
	})
	keys := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		keys = append(keys, string(kv.Key))
	}
	assert.Equal(t, []string{"p.a", "p.b", "p.c", "p.list", "p.obj"}, keys)
}

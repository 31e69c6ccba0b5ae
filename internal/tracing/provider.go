package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

const serviceName = "goalsectors-backend"

// Config selects the exporter: none, log or otlp.
type Config struct {
	Exporter string
	Endpoint string
	Insecure bool
	Project  string
	Timeout  time.Duration
}

// Build returns the sink described by cfg. Unknown exporters are an error so
// a typo does not silently disable tracing.
func Build(ctx context.Context, cfg Config, logger *zap.Logger) (*Sink, error) {
	opts := []Option{
		WithLogger(logger),
		WithProject(cfg.Project),
		WithTimeout(cfg.Timeout),
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Exporter)) {
	case "", "none":
		return NewSink(NopExporter{}, opts...), nil
	case "log":
		return NewSink(NewLogExporter(logger), opts...), nil
	case "otlp":
		tp, err := newTracerProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithCloser(tp.Shutdown))
		return NewSink(NewOTelExporter(tp), opts...), nil
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}
}

func newTracerProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("otlp trace exporter requires an endpoint")
	}
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(stripScheme(cfg.Endpoint)),
	}
	if cfg.Insecure || strings.HasPrefix(cfg.Endpoint, "http://") {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}

	project := cfg.Project
	if project == "" {
		project = "goalsectors"
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		attribute.String("goalsectors.project", project),
	)
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// stripScheme removes http:// or https:// since the exporter wants host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}

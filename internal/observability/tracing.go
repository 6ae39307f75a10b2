package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/formbricks/collections/internal/config"
)

const (
	defaultServiceName = "collections"
	tracerScope        = "github.com/formbricks/collections"
)

// traceExporters maps OTEL_TRACES_EXPORTER values to exporter constructors.
// The OTLP exporter reads its endpoint from the standard OTEL_EXPORTER_OTLP_* variables.
var traceExporters = map[string]func(context.Context) (sdktrace.SpanExporter, error){
	"otlp": func(ctx context.Context) (sdktrace.SpanExporter, error) {
		return otlptracehttp.New(ctx)
	},
	"stdout": func(context.Context) (sdktrace.SpanExporter, error) {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	},
}

// Tracer returns the pipeline tracer. It is a no-op until a provider is installed globally.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerScope)
}

// EndSpan marks the span failed when err is non-nil and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}

func newResource(serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	// resource.Default() carries its own schema URL; merging with semconv's keeps one.
	res, err := resource.Merge(resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("merge resource: %w", err)
	}

	return res, nil
}

// NewTracerProvider builds a batching TracerProvider for cfg.OtelTracesExporter.
// An empty or unrecognised exporter disables tracing and returns (nil, nil).
func NewTracerProvider(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if cfg == nil {
		//nolint:nilnil // tracing disabled
		return nil, nil
	}

	newExporter, ok := traceExporters[cfg.OtelTracesExporter]
	if !ok {
		//nolint:nilnil // tracing disabled
		return nil, nil
	}

	res, err := newResource(defaultServiceName)
	if err != nil {
		return nil, err
	}

	exp, err := newExporter(context.Background())
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", cfg.OtelTracesExporter, err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(os.Getenv("OTEL_TRACES_SAMPLER"), os.Getenv("OTEL_TRACES_SAMPLER_ARG"))),
		sdktrace.WithBatcher(exp),
	), nil
}

// ShutdownTracerProvider flushes pending spans. A nil provider is a no-op.
func ShutdownTracerProvider(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer provider shutdown: %w", err)
	}

	return nil
}

// samplerFor understands always_on, always_off and traceidratio, each optionally prefixed
// with parentbased_. Anything else samples every batch unless a remote parent says otherwise.
func samplerFor(name, arg string) sdktrace.Sampler {
	var root sdktrace.Sampler

	switch strings.TrimPrefix(name, "parentbased_") {
	case "always_on":
		root = sdktrace.AlwaysSample()
	case "always_off":
		root = sdktrace.NeverSample()
	case "traceidratio":
		root = sdktrace.TraceIDRatioBased(traceRatio(arg))
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}

	if strings.HasPrefix(name, "parentbased_") {
		return sdktrace.ParentBased(root)
	}

	return root
}

// traceRatio parses a sampling ratio in [0, 1], falling back to 1.
func traceRatio(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return 1
	}

	return f
}

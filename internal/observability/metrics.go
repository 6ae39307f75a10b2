package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	prometheusexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	meterScope       = "github.com/formbricks/collections/internal/observability"
	cardinalityLimit = 2000
)

// Image inference ranges from milliseconds (local features) to tens of seconds (remote vision models).
var durationBuckets = []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Metrics bundles the pipeline and cache instruments. A nil *Metrics means metrics are off.
type Metrics struct {
	Pipeline PipelineMetrics
	Cache    CacheMetrics
}

// NewMetrics registers every instrument on meter. A nil meter yields (nil, nil).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // metrics disabled
		return nil, nil
	}

	pipeline, err := NewPipelineMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("pipeline metrics: %w", err)
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	return &Metrics{Pipeline: pipeline, Cache: cache}, nil
}

// MeterProviderConfig configures NewMeterProvider.
type MeterProviderConfig struct {
	ServiceName string
}

// NewMeterProvider wires an OpenTelemetry MeterProvider to a private Prometheus registry.
// It returns the provider, the scrape handler for that registry and the instruments.
// Callers shut the provider down with ShutdownMeterProvider.
func NewMeterProvider(_ context.Context, cfg MeterProviderConfig) (*sdkmetric.MeterProvider, http.Handler, *Metrics, error) {
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, nil, nil, err
	}

	reg := prometheus.NewRegistry()

	exporter, err := prometheusexporter.New(prometheusexporter.WithRegisterer(reg))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	durations := sdkmetric.NewView(
		sdkmetric.Instrument{Name: "collections_*_duration_seconds"},
		sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: durationBuckets}},
	)

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
		sdkmetric.WithCardinalityLimit(cardinalityLimit),
		sdkmetric.WithView(durations),
	)

	metrics, err := NewMetrics(mp.Meter(meterScope))
	if err != nil {
		return nil, nil, nil, errors.Join(fmt.Errorf("create instruments: %w", err),
			ShutdownMeterProvider(context.Background(), mp))
	}

	return mp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics, nil
}

// ShutdownMeterProvider flushes and stops the provider. A nil provider is a no-op.
func ShutdownMeterProvider(ctx context.Context, provider *sdkmetric.MeterProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("meter provider shutdown: %w", err)
	}

	return nil
}

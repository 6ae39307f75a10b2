package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PipelineMetrics records clustering pipeline metrics (per image, per batch, model init).
// Methods accept ctx for future exemplar support.
type PipelineMetrics interface {
	RecordImage(ctx context.Context, status string, duration time.Duration)
	RecordBatch(ctx context.Context, outcome string)
	RecordClusters(ctx context.Context, strategy string, count int)
	RecordKMeansFallback(ctx context.Context)
	RecordModelInit(ctx context.Context, kind string, duration time.Duration)
}

// pipelineMetrics implements PipelineMetrics.
type pipelineMetrics struct {
	images        metric.Int64Counter
	imageDuration metric.Float64Histogram
	batches       metric.Int64Counter
	clusters      metric.Int64Counter
	fallbacks     metric.Int64Counter
	modelInit     metric.Float64Histogram
}

// NewPipelineMetrics creates PipelineMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewPipelineMetrics(meter metric.Meter) (PipelineMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	images, err := meter.Int64Counter(
		MetricNameImagesProcessed,
		metric.WithDescription("Images processed by terminal status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create images processed counter: %w", err)
	}

	imageDuration, err := meter.Float64Histogram(
		MetricNameImageDuration,
		metric.WithDescription("Per-image decode, embed and tag duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create image duration histogram: %w", err)
	}

	batches, err := meter.Int64Counter(
		MetricNameBatches,
		metric.WithDescription("Batches by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create batches counter: %w", err)
	}

	clusters, err := meter.Int64Counter(
		MetricNameClustersCreated,
		metric.WithDescription("Cluster records emitted by strategy"),
	)
	if err != nil {
		return nil, fmt.Errorf("create clusters counter: %w", err)
	}

	fallbacks, err := meter.Int64Counter(
		MetricNameKMeansFallbacks,
		metric.WithDescription("Oversized groups kept whole because k-means failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kmeans fallbacks counter: %w", err)
	}

	modelInit, err := meter.Float64Histogram(
		MetricNameModelInitDuration,
		metric.WithDescription("Model backend initialisation duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create model init histogram: %w", err)
	}

	return &pipelineMetrics{
		images:        images,
		imageDuration: imageDuration,
		batches:       batches,
		clusters:      clusters,
		fallbacks:     fallbacks,
		modelInit:     modelInit,
	}, nil
}

func (p *pipelineMetrics) RecordImage(ctx context.Context, status string, duration time.Duration) {
	status = NormalizeReason(status, AllowedImageStatuses)
	attrs := metric.WithAttributes(attribute.String(AttrStatus, status))
	p.images.Add(ctx, 1, attrs)
	p.imageDuration.Record(ctx, duration.Seconds(), attrs)
}

func (p *pipelineMetrics) RecordBatch(ctx context.Context, outcome string) {
	outcome = NormalizeReason(outcome, AllowedBatchOutcomes)
	p.batches.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrOutcome, outcome)))
}

func (p *pipelineMetrics) RecordClusters(ctx context.Context, strategy string, count int) {
	strategy = NormalizeReason(strategy, AllowedStrategies)
	p.clusters.Add(ctx, int64(count), metric.WithAttributes(attribute.String(AttrStrategy, strategy)))
}

func (p *pipelineMetrics) RecordKMeansFallback(ctx context.Context) {
	p.fallbacks.Add(ctx, 1)
}

func (p *pipelineMetrics) RecordModelInit(ctx context.Context, kind string, duration time.Duration) {
	kind = NormalizeReason(kind, AllowedModelKinds)
	p.modelInit.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String(AttrModel, kind)))
}

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheMetrics counts feature cache lookups. The cache label is bounded by AllowedCacheNames.
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
}

type cacheCounters struct {
	hit  metric.Int64Counter
	miss metric.Int64Counter
}

// NewCacheMetrics registers the hit and miss counters. A nil meter yields (nil, nil).
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // metrics disabled
		return nil, nil
	}

	var c cacheCounters

	specs := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&c.hit, MetricNameCacheHits, "Image lookups answered from the feature cache"},
		{&c.miss, MetricNameCacheMisses, "Image lookups that had to run model inference"},
	}

	for _, s := range specs {
		counter, err := meter.Int64Counter(s.name, metric.WithDescription(s.desc))
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", s.name, err)
		}

		*s.dst = counter
	}

	return &c, nil
}

func cacheAttr(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String("cache", NormalizeCacheName(name)))
}

func (c *cacheCounters) RecordHit(ctx context.Context, cacheName string) {
	c.hit.Add(ctx, 1, cacheAttr(cacheName))
}

func (c *cacheCounters) RecordMiss(ctx context.Context, cacheName string) {
	c.miss.Add(ctx, 1, cacheAttr(cacheName))
}

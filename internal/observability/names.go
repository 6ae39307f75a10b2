// Package observability provides OpenTelemetry metrics and tracing for the clustering pipeline.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameImagesProcessed   = "collections_images_processed_total"
	MetricNameImageDuration     = "collections_image_duration_seconds"
	MetricNameBatches           = "collections_batches_total"
	MetricNameClustersCreated   = "collections_clusters_created_total"
	MetricNameKMeansFallbacks   = "collections_kmeans_fallbacks_total"
	MetricNameModelInitDuration = "collections_model_init_duration_seconds"
	MetricNameCacheHits         = "collections_cache_hits_total"
	MetricNameCacheMisses       = "collections_cache_misses_total"
)

// Attribute keys.
const (
	AttrStatus   = "status"
	AttrReason   = "reason"
	AttrOutcome  = "outcome"
	AttrStrategy = "strategy"
	AttrModel    = "model"
)

// AllowedImageStatuses for collections_images_processed_total and collections_image_duration_seconds.
var AllowedImageStatuses = map[string]bool{
	"success":          true,
	"cached":           true,
	"decode_error":     true,
	"inference_error":  true,
	"cancelled":        true,
	"unsupported_mime": true,
}

// AllowedBatchOutcomes for collections_batches_total.
var AllowedBatchOutcomes = map[string]bool{
	"clustered":  true,
	"no_images":  true,
	"all_failed": true,
	"cancelled":  true,
	"init_error": true,
}

// AllowedStrategies for collections_clusters_created_total.
var AllowedStrategies = map[string]bool{
	"hybrid":     true,
	"similarity": true,
}

// AllowedModelKinds for collections_model_init_duration_seconds.
var AllowedModelKinds = map[string]bool{
	"extractor": true,
	"matcher":   true,
}

// AllowedCacheNames for the cache hit/miss counters.
var AllowedCacheNames = map[string]bool{
	"features": true,
}

// NormalizeReason returns reason if in allowed, otherwise "other".
func NormalizeReason(reason string, allowed map[string]bool) string {
	if allowed[reason] {
		return reason
	}

	return "other"
}

// NormalizeCacheName returns name if it is a known cache, otherwise "other".
func NormalizeCacheName(name string) string {
	return NormalizeReason(name, AllowedCacheNames)
}

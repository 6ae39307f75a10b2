// Package registry owns the process-wide model backends. Backends are built lazily on
// first use, shared across batches, and built at most once at a time.
package registry

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/formbricks/collections/internal/clustererrors"
	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/observability"
	"github.com/formbricks/collections/internal/tagging"
)

// ExtractorFactory builds the embedding backend. It may block on network or model loading.
type ExtractorFactory func(ctx context.Context) (embeddings.Extractor, error)

// MatcherFactory builds the zero-shot backend. A nil Matcher with a nil error disables tagging.
type MatcherFactory func(ctx context.Context) (tagging.Matcher, error)

// Registry hands out the shared backends. Reads after initialisation are lock-free.
type Registry struct {
	newExtractor ExtractorFactory
	newMatcher   MatcherFactory
	metrics      observability.PipelineMetrics

	group     singleflight.Group
	extractor atomic.Pointer[slot[embeddings.Extractor]]
	matcher   atomic.Pointer[slot[tagging.Matcher]]
}

type slot[T any] struct{ value T }

var errNoFactory = errors.New("no backend configured")

// Option configures a Registry.
type Option func(*Registry)

// WithMetrics records model initialisation durations.
func WithMetrics(m observability.PipelineMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// New creates a registry. Nothing is built until first use.
func New(newExtractor ExtractorFactory, newMatcher MatcherFactory, opts ...Option) *Registry {
	r := &Registry{newExtractor: newExtractor, newMatcher: newMatcher}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Extractor returns the embedding backend, building it on first use.
func (r *Registry) Extractor(ctx context.Context) (embeddings.Extractor, error) {
	return load(ctx, r, "extractor", &r.extractor, func(ctx context.Context) (embeddings.Extractor, error) {
		if r.newExtractor == nil {
			return nil, clustererrors.NewModelInitError("extractor", errNoFactory)
		}

		return r.newExtractor(ctx)
	})
}

// Matcher returns the zero-shot backend, building it on first use. The result is nil
// when tagging is disabled.
func (r *Registry) Matcher(ctx context.Context) (tagging.Matcher, error) {
	return load(ctx, r, "matcher", &r.matcher, func(ctx context.Context) (tagging.Matcher, error) {
		if r.newMatcher == nil {
			return nil, nil
		}

		return r.newMatcher(ctx)
	})
}

// Warm builds both backends. The engine calls it before any per-image work so a
// backend that cannot start fails the batch up front.
func (r *Registry) Warm(ctx context.Context) error {
	if _, err := r.Extractor(ctx); err != nil {
		return err
	}

	_, err := r.Matcher(ctx)

	return err
}

func load[T any](ctx context.Context, r *Registry, kind string, dst *atomic.Pointer[slot[T]], build func(context.Context) (T, error)) (T, error) {
	if s := dst.Load(); s != nil {
		return s.value, nil
	}

	v, err, _ := r.group.Do(kind, func() (any, error) {
		if s := dst.Load(); s != nil {
			return s.value, nil
		}

		start := time.Now()

		value, err := build(ctx)
		if r.metrics != nil {
			r.metrics.RecordModelInit(ctx, kind, time.Since(start))
		}

		if err != nil {
			slog.ErrorContext(ctx, "model initialisation failed", "model", kind, "error", err)

			return nil, wrapInit(kind, err)
		}

		dst.Store(&slot[T]{value: value})
		slog.InfoContext(ctx, "model ready", "model", kind, "duration", time.Since(start))

		return value, nil
	})
	if err != nil {
		var zero T

		return zero, err
	}

	if v == nil {
		var zero T

		return zero, nil
	}

	return v.(T), nil
}

func wrapInit(kind string, err error) error {
	if errors.Is(err, clustererrors.ErrModelInit) {
		return err
	}

	return clustererrors.NewModelInitError(kind, err)
}

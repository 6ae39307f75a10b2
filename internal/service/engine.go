package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/formbricks/collections/internal/blobs"
	"github.com/formbricks/collections/internal/clustererrors"
	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/governor"
	"github.com/formbricks/collections/internal/imagedecode"
	"github.com/formbricks/collections/internal/models"
	"github.com/formbricks/collections/internal/observability"
	"github.com/formbricks/collections/internal/palette"
	"github.com/formbricks/collections/internal/tagging"
	"github.com/formbricks/collections/internal/vocabulary"
	"github.com/formbricks/collections/pkg/cache"
)

// featureCacheName labels the feature cache in metrics.
const featureCacheName = "features"

// ErrNoRegistry is returned by NewEngine when no model registry is supplied.
var ErrNoRegistry = errors.New("engine: model registry is required")

// ModelRegistry hands out the shared model backends.
type ModelRegistry interface {
	Warm(ctx context.Context) error
	Extractor(ctx context.Context) (embeddings.Extractor, error)
	Matcher(ctx context.Context) (tagging.Matcher, error)
}

// Features are the model outputs for one image, cached by content.
type Features struct {
	Embedding []float32
	Tags      []models.Tag
}

// EngineDeps are the collaborators of the engine.
type EngineDeps struct {
	Registry   ModelRegistry
	Vocabulary *vocabulary.Vocabulary
	Blobs      *blobs.Store
	Strategy   ClusteringStrategy
	// Cache is optional; nil disables feature reuse across images.
	Cache   *cache.ContentCache[Features]
	Metrics *observability.Metrics
}

// EngineConfig tunes the engine.
type EngineConfig struct {
	TagThreshold float64
	// MaxConcurrency overrides the adaptive per-batch concurrency when positive.
	MaxConcurrency int
	PaletteSize    int
	// MaxFileBytes skips larger files before decoding; 0 disables the check.
	MaxFileBytes int64
	// MaxPixels rejects images whose header declares more pixels; 0 uses imagedecode.DefaultMaxPixels.
	MaxPixels int64
	Seed      uint64
}

// Engine runs batches through decode, embedding, tagging, grouping and synthesis.
type Engine struct {
	registry  ModelRegistry
	vocab     *vocabulary.Vocabulary
	blobs     *blobs.Store
	strategy  ClusteringStrategy
	cache     *cache.ContentCache[Features]
	metrics   *observability.Metrics
	quantizer *palette.Quantizer
	cfg       EngineConfig
}

// NewEngine creates an engine. Missing optional deps get defaults: the built-in
// vocabulary, a fresh blob store and the tag hybrid strategy.
func NewEngine(deps EngineDeps, cfg EngineConfig) (*Engine, error) {
	if deps.Registry == nil {
		return nil, ErrNoRegistry
	}

	if deps.Vocabulary == nil {
		deps.Vocabulary = vocabulary.Default()
	}

	if deps.Blobs == nil {
		deps.Blobs = blobs.NewStore()
	}

	if deps.Strategy == nil {
		deps.Strategy = NewTagHybridStrategy(cfg.Seed)
	}

	if cfg.TagThreshold <= 0 {
		cfg.TagThreshold = tagging.DefaultThreshold
	}

	if cfg.PaletteSize <= 0 || cfg.PaletteSize > models.MaxPaletteSize {
		cfg.PaletteSize = models.MaxPaletteSize
	}

	return &Engine{
		registry:  deps.Registry,
		vocab:     deps.Vocabulary,
		blobs:     deps.Blobs,
		strategy:  deps.Strategy,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		quantizer: palette.NewQuantizer(cfg.Seed),
		cfg:       cfg,
	}, nil
}

// Blobs returns the handle store the engine registers image URLs in.
func (e *Engine) Blobs() *blobs.Store {
	return e.blobs
}

// Batch is a submitted batch. Progress is closed once the batch has finished.
type Batch struct {
	ID uuid.UUID

	progress chan models.ProgressEvent
	stage    atomic.Value
	done     chan struct{}

	records []models.ClusterRecord
	summary models.BatchSummary
	err     error
}

func newBatch(files int) *Batch {
	b := &Batch{
		ID: uuid.Must(uuid.NewV7()),
		// Each image emits at most two events, so sends never block.
		progress: make(chan models.ProgressEvent, 2*files),
		done:     make(chan struct{}),
	}
	b.stage.Store(models.StageIdle)

	return b
}

// Progress streams per-image progress events.
func (b *Batch) Progress() <-chan models.ProgressEvent {
	return b.progress
}

// Stage returns the current state of the batch.
func (b *Batch) Stage() models.BatchStage {
	return b.stage.Load().(models.BatchStage)
}

// Done is closed when the batch has finished.
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Result blocks until the batch has finished. On cancellation the error matches
// clustererrors.ErrBatchCancelled and no records are returned.
func (b *Batch) Result() ([]models.ClusterRecord, models.BatchSummary, error) {
	<-b.done

	return b.records, b.summary, b.err
}

func (b *Batch) emit(imageID string, progress int) {
	b.progress <- models.ProgressEvent{ImageID: imageID, Progress: progress}
}

func (b *Batch) advance(ctx context.Context) func(models.BatchStage) {
	return func(stage models.BatchStage) {
		b.stage.Store(stage)
		slog.DebugContext(ctx, "batch stage", "stage", string(stage))
	}
}

// Submit starts a batch in the background and returns immediately.
func (e *Engine) Submit(ctx context.Context, files []models.RawImageInput) *Batch {
	b := newBatch(len(files))

	go func() {
		defer close(b.done)
		defer close(b.progress)

		b.records, b.summary, b.err = e.run(ctx, b, files)
	}()

	return b
}

// Cluster runs a batch to completion, discarding progress events.
func (e *Engine) Cluster(ctx context.Context, files []models.RawImageInput) ([]models.ClusterRecord, models.BatchSummary, error) {
	b := e.Submit(ctx, files)
	for range b.Progress() {
	}

	return b.Result()
}

type processed struct {
	image  models.ProcessedImage
	pixels image.Image
}

func (e *Engine) run(ctx context.Context, b *Batch, files []models.RawImageInput) (records []models.ClusterRecord, summary models.BatchSummary, err error) {
	ctx = observability.WithBatchID(ctx, b.ID.String())
	ctx, span := observability.Tracer().Start(ctx, "batch", trace.WithAttributes(
		attribute.Int("batch.files", len(files)),
		attribute.String("batch.strategy", e.strategy.Name()),
	))

	advance := b.advance(ctx)
	summary = models.BatchSummary{BatchID: b.ID, Submitted: len(files)}

	defer func() {
		advance(models.StageDone)
		e.recordBatch(ctx, summary, err)
		observability.EndSpan(span, err)
	}()

	inputs := e.admit(ctx, files, &summary)
	if len(inputs) == 0 {
		summary.Outcome = models.OutcomeNoImages
		slog.InfoContext(ctx, "no images to cluster", "submitted", len(files))

		return []models.ClusterRecord{}, summary, nil
	}

	if err := e.registry.Warm(ctx); err != nil {
		return nil, summary, err
	}

	extractor, err := e.registry.Extractor(ctx)
	if err != nil {
		return nil, summary, err
	}

	matcher, err := e.registry.Matcher(ctx)
	if err != nil {
		return nil, summary, err
	}

	classifier := tagging.NewClassifier(matcher, e.vocab, e.cfg.TagThreshold)
	width := &embeddingWidth{}

	advance(models.StageExtracting)

	urls := make([]string, len(inputs))
	tasks := make([]governor.Task[processed], len(inputs))

	for i, in := range inputs {
		urls[i] = e.blobs.Create(in.Bytes, in.MIMEType)
		tasks[i] = func(ctx context.Context) (processed, error) {
			return e.processImage(ctx, b, extractor, classifier, width, in, i, urls[i])
		}
	}

	concurrency := governor.Adaptive(len(inputs), e.cfg.MaxConcurrency)
	slog.InfoContext(ctx, "processing batch",
		"images", len(inputs), "skipped", summary.Skipped, "concurrency", concurrency,
		"extractor", extractor.Name(), "tagger", classifier.Name())

	results := governor.RunBounded(ctx, tasks, concurrency)

	if ctx.Err() != nil {
		e.blobs.RevokeAll(urls)
		slog.InfoContext(ctx, "batch cancelled before grouping")

		return nil, summary, clustererrors.Cancelled(context.Cause(ctx))
	}

	images := make([]models.ProcessedImage, 0, len(results))
	pixels := make(PixelMap, len(results))

	for _, r := range results {
		if r.Err != nil {
			summary.Failed++

			continue
		}

		images = append(images, r.Value.image)
		pixels[r.Value.image.ID] = r.Value.pixels
	}

	summary.Succeeded = len(images)

	if len(images) == 0 {
		summary.Outcome = models.OutcomeAllFailed
		slog.WarnContext(ctx, "every image failed", "failed", summary.Failed)

		return []models.ClusterRecord{}, summary, nil
	}

	partition := e.strategy.Partition(ctx, images, advance)
	summary.Fallbacks = partition.Fallbacks

	if ctx.Err() != nil {
		e.blobs.RevokeAll(urls)

		return nil, summary, clustererrors.Cancelled(context.Cause(ctx))
	}

	advance(models.StageSynthesizing)

	records = e.synthesize(ctx, partition, pixels)
	summary.Clusters = len(records)
	summary.Outcome = models.OutcomeClustered

	slog.InfoContext(ctx, "batch clustered",
		"clusters", summary.Clusters, "succeeded", summary.Succeeded,
		"failed", summary.Failed, "kmeans_fallbacks", summary.Fallbacks)

	return records, summary, nil
}

// admit drops non-image and oversized files and assigns every remaining file a unique id.
func (e *Engine) admit(ctx context.Context, files []models.RawImageInput, summary *models.BatchSummary) []models.RawImageInput {
	inputs := make([]models.RawImageInput, 0, len(files))
	seen := make(map[string]bool, len(files))

	for _, f := range files {
		if !imagedecode.IsImageMIME(f.MIMEType) {
			slog.InfoContext(ctx, "skipping non-image file", "filename", f.Filename, "mime_type", f.MIMEType)
			summary.Skipped++

			continue
		}

		if e.cfg.MaxFileBytes > 0 && int64(len(f.Bytes)) > e.cfg.MaxFileBytes {
			slog.WarnContext(ctx, "skipping oversized file",
				"filename", f.Filename, "size_bytes", len(f.Bytes), "max_bytes", e.cfg.MaxFileBytes)
			summary.Skipped++

			continue
		}

		if f.ID == "" {
			f.ID = fmt.Sprintf("%s-%d", f.Filename, len(inputs))
		}

		base := f.ID
		for n := len(inputs); seen[f.ID]; n++ {
			f.ID = fmt.Sprintf("%s-%d", base, n)
		}

		seen[f.ID] = true
		inputs = append(inputs, f)
	}

	return inputs
}

// processImage decodes one image and runs it through the models. On any failure,
// including a panic, it emits the failed progress value and revokes the image handle.
func (e *Engine) processImage(
	ctx context.Context,
	b *Batch,
	extractor embeddings.Extractor,
	classifier *tagging.Classifier,
	width *embeddingWidth,
	in models.RawImageInput,
	index int,
	url string,
) (out processed, err error) {
	start := time.Now()
	status := "success"
	finished := false

	ctx, span := observability.Tracer().Start(ctx, "image", trace.WithAttributes(
		attribute.String("image.id", in.ID),
		attribute.Int("image.bytes", len(in.Bytes)),
	))

	defer func() {
		if !finished {
			status = failureStatus(err)
			b.emit(in.ID, models.ProgressFailed)
			e.blobs.Revoke(url)
			slog.WarnContext(ctx, "image failed",
				"image_id", in.ID,
				"filename", in.Filename,
				"mime_type", in.MIMEType,
				"size_bytes", len(in.Bytes),
				"error", err,
			)
		}

		if e.metrics != nil {
			e.metrics.Pipeline.RecordImage(ctx, status, time.Since(start))
		}

		observability.EndSpan(span, err)
	}()

	decoded, err := imagedecode.Decode(in, e.cfg.MaxPixels)
	if err != nil {
		return processed{}, err
	}

	// In-flight model calls run to completion even if the batch is cancelled.
	callCtx := context.WithoutCancel(ctx)

	embedded := false
	markEmbedded := func() {
		if !embedded {
			embedded = true
			b.emit(in.ID, models.ProgressEmbedded)
		}
	}

	load := func(ctx context.Context) (Features, error) {
		return e.extract(ctx, extractor, classifier, decoded, markEmbedded)
	}

	var (
		features Features
		hit      bool
	)

	if e.cache != nil {
		features, hit, err = e.cache.Get(callCtx, in.Bytes, load)
		e.recordCache(ctx, hit)
	} else {
		features, err = load(callCtx)
	}

	if err != nil {
		return processed{}, err
	}

	if err := width.check(len(features.Embedding)); err != nil {
		if e.cache != nil {
			e.cache.Invalidate(in.Bytes)
		}

		return processed{}, clustererrors.NewModelInferenceError(in.ID, extractor.Name(), err)
	}

	if hit {
		status = "cached"
	}

	markEmbedded()
	b.emit(in.ID, models.ProgressDone)

	finished = true

	return processed{
		image: models.ProcessedImage{
			ID:        in.ID,
			URL:       url,
			Filename:  in.Filename,
			Embedding: features.Embedding,
			Tags:      features.Tags,
			Index:     index,
		},
		pixels: decoded.Image,
	}, nil
}

// embeddingWidth pins the embedding width of a batch to the first accepted vector.
type embeddingWidth struct {
	n atomic.Int64
}

func (w *embeddingWidth) check(n int) error {
	if w.n.CompareAndSwap(0, int64(n)) {
		return nil
	}

	if pinned := w.n.Load(); pinned != int64(n) {
		return fmt.Errorf("%w: embedding width %d, batch width %d", embeddings.ErrMalformedTensor, n, pinned)
	}

	return nil
}

func (e *Engine) extract(
	ctx context.Context,
	extractor embeddings.Extractor,
	classifier *tagging.Classifier,
	img *imagedecode.DecodedImage,
	onEmbedded func(),
) (Features, error) {
	tensor, err := extractor.Extract(ctx, img)
	if err != nil {
		return Features{}, clustererrors.NewModelInferenceError(img.ID, extractor.Name(), err)
	}

	if err := tensor.Validate(extractor.Dimensions()); err != nil {
		return Features{}, clustererrors.NewModelInferenceError(img.ID, extractor.Name(), err)
	}

	vector, err := embeddings.Pool(tensor)
	if err != nil {
		return Features{}, clustererrors.NewModelInferenceError(img.ID, extractor.Name(), err)
	}

	onEmbedded()

	tags, err := classifier.Tags(ctx, img)
	if err != nil {
		return Features{}, clustererrors.NewModelInferenceError(img.ID, classifier.Name(), err)
	}

	return Features{Embedding: vector, Tags: tags}, nil
}

func (e *Engine) synthesize(ctx context.Context, partition Partition, pixels PixelSource) []models.ClusterRecord {
	_, span := observability.Tracer().Start(ctx, "synthesize", trace.WithAttributes(
		attribute.Int("synthesize.groups", len(partition.Groups)),
	))
	defer span.End()

	synth := NewSynthesizer(e.quantizer, e.cfg.PaletteSize, pixels)

	records := make([]models.ClusterRecord, 0, len(partition.Groups))
	for _, g := range partition.Groups {
		if len(g.Images) == 0 {
			continue
		}

		records = append(records, synth.Synthesize(g.Images, g.Title))
	}

	models.SortBySize(records)

	return records
}

func (e *Engine) recordBatch(ctx context.Context, summary models.BatchSummary, err error) {
	if e.metrics == nil {
		return
	}

	outcome := string(summary.Outcome)

	switch {
	case errors.Is(err, clustererrors.ErrBatchCancelled):
		outcome = "cancelled"
	case errors.Is(err, clustererrors.ErrModelInit):
		outcome = "init_error"
	}

	e.metrics.Pipeline.RecordBatch(ctx, outcome)

	if summary.Clusters > 0 {
		e.metrics.Pipeline.RecordClusters(ctx, e.strategy.Name(), summary.Clusters)
	}

	for range summary.Fallbacks {
		e.metrics.Pipeline.RecordKMeansFallback(ctx)
	}
}

func (e *Engine) recordCache(ctx context.Context, hit bool) {
	if e.metrics == nil || e.metrics.Cache == nil {
		return
	}

	if hit {
		e.metrics.Cache.RecordHit(ctx, featureCacheName)
	} else {
		e.metrics.Cache.RecordMiss(ctx, featureCacheName)
	}
}

func failureStatus(err error) string {
	switch {
	case errors.Is(err, clustererrors.ErrDecode):
		return "decode_error"
	case errors.Is(err, clustererrors.ErrModelInference):
		return "inference_error"
	default:
		return "other"
	}
}

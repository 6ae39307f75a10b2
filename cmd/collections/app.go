package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/formbricks/collections/internal/config"
	"github.com/formbricks/collections/internal/observability"
	"github.com/formbricks/collections/internal/registry"
	"github.com/formbricks/collections/internal/repository"
	"github.com/formbricks/collections/internal/service"
	"github.com/formbricks/collections/internal/vocabulary"
	"github.com/formbricks/collections/pkg/cache"
	"github.com/formbricks/collections/pkg/database"
)

const metricsReadHeaderTimeout = 5 * time.Second

// App holds the pipeline and its collaborators and coordinates shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	engine         *service.Engine
	collections    *service.CollectionsService
	metricsServer  *http.Server
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// setupMetrics creates the meter provider and serves /metrics on cfg.MetricsAddr.
func setupMetrics(ctx context.Context, cfg *config.Config) (*sdkmetric.MeterProvider, *observability.Metrics, *http.Server, error) {
	mp, handler, metrics, err := observability.NewMeterProvider(ctx, observability.MeterProviderConfig{ServiceName: "collections"})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create meter provider: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: metricsReadHeaderTimeout,
	}

	go func() {
		slog.Info("serving metrics", "addr", cfg.MetricsAddr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "error", err)
		}
	}()

	return mp, metrics, server, nil
}

func newStrategy(cfg *config.Config) service.ClusteringStrategy {
	if cfg.ClusterStrategy == config.StrategySimilarity {
		return &service.SimilarityStrategy{Seed: cfg.KMeansSeed}
	}

	return &service.TagHybridStrategy{
		Threshold:      cfg.SubclusterThreshold,
		MaxSubclusters: cfg.MaxSubclusters,
		Seed:           cfg.KMeansSeed,
	}
}

// NewApp builds and wires all components. Models are loaded lazily on the first batch.
func NewApp(ctx context.Context, cfg *config.Config) (app *App, err error) {
	app = &App{cfg: cfg}

	defer func() {
		if err != nil {
			if shutdownErr := app.Shutdown(context.Background()); shutdownErr != nil {
				slog.Error("shutdown after setup failure", "error", shutdownErr)
			}
		}
	}()

	var metrics *observability.Metrics

	if cfg.MetricsAddr == "" {
		slog.Debug("metrics not enabled (METRICS_ADDR empty or unset)")
	} else {
		app.meterProvider, metrics, app.metricsServer, err = setupMetrics(ctx, cfg)
		if err != nil {
			return app, err
		}

		otel.SetMeterProvider(app.meterProvider)
	}

	app.tracerProvider, err = observability.NewTracerProvider(cfg)
	if err != nil {
		return app, fmt.Errorf("create tracer provider: %w", err)
	}

	if app.tracerProvider != nil {
		otel.SetTracerProvider(app.tracerProvider)
	}

	vocab := vocabulary.Default()
	if cfg.VocabularyFile != "" {
		vocab, err = vocabulary.Load(cfg.VocabularyFile)
		if err != nil {
			return app, err
		}
	}

	var registryOpts []registry.Option
	if metrics != nil {
		registryOpts = append(registryOpts, registry.WithMetrics(metrics.Pipeline))
	}

	deps := service.EngineDeps{
		Registry:   registry.FromConfig(cfg, registryOpts...),
		Vocabulary: vocab,
		Strategy:   newStrategy(cfg),
		Metrics:    metrics,
	}

	if cfg.FeatureCacheSize > 0 {
		deps.Cache, err = cache.New[service.Features](cfg.FeatureCacheSize)
		if err != nil {
			return app, fmt.Errorf("create feature cache: %w", err)
		}
	}

	app.engine, err = service.NewEngine(deps, service.EngineConfig{
		TagThreshold:   cfg.TagThreshold,
		MaxConcurrency: cfg.MaxConcurrency,
		PaletteSize:    cfg.PaletteSize,
		MaxFileBytes:   cfg.MaxFileBytes,
		MaxPixels:      cfg.MaxPixels,
		Seed:           cfg.KMeansSeed,
	})
	if err != nil {
		return app, fmt.Errorf("create engine: %w", err)
	}

	var repo service.CollectionsRepository

	if cfg.DatabaseURL == "" {
		repo = repository.NewMemoryCollections()
	} else {
		app.db, err = database.NewVectorPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return app, err
		}

		pg := repository.NewPostgresCollections(app.db)
		if err = pg.Migrate(ctx); err != nil {
			return app, err
		}

		repo = pg
	}

	app.collections = service.NewCollectionsService(repo, app.engine.Blobs(), cfg.CollectionLimit)

	return app, nil
}

// shutdownObservability shuts down tracer and meter providers. Logs secondary errors, returns the first.
func shutdownObservability(ctx context.Context, tracer *sdktrace.TracerProvider, meter *sdkmetric.MeterProvider) error {
	var first error

	if err := observability.ShutdownTracerProvider(ctx, tracer); err != nil {
		first = err
	}

	if err := observability.ShutdownMeterProvider(ctx, meter); err != nil {
		if first == nil {
			first = err
		} else {
			slog.Error("shutdown meter provider", "error", err)
		}
	}

	return first
}

// Shutdown stops the metrics server, closes the database and flushes telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server shutdown", "error", err)
		}
	}

	if a.db != nil {
		a.db.Close()
	}

	return shutdownObservability(ctx, a.tracerProvider, a.meterProvider)
}

package registry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/collections/internal/clustererrors"
	"github.com/formbricks/collections/internal/config"
	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/tagging"
)

func TestConcurrentFirstUseBuildsOnce(t *testing.T) {
	var calls atomic.Int32

	release := make(chan struct{})

	r := New(func(context.Context) (embeddings.Extractor, error) {
		calls.Add(1)
		<-release

		return embeddings.NewMockExtractor(), nil
	}, nil)

	var wg sync.WaitGroup

	got := make([]embeddings.Extractor, 10)

	for i := range got {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			e, err := r.Extractor(context.Background())
			assert.NoError(t, err)

			got[i] = e
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())

	for _, e := range got {
		assert.Same(t, got[0], e)
	}

	// Reuse after initialisation does not call the factory again.
	_, err := r.Extractor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFailedInitIsNotCached(t *testing.T) {
	var calls atomic.Int32

	boom := errors.New("weights missing")

	r := New(func(context.Context) (embeddings.Extractor, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}

		return embeddings.NewMockExtractor(), nil
	}, nil)

	_, err := r.Extractor(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, clustererrors.ErrModelInit)
	assert.ErrorIs(t, err, boom)

	e, err := r.Extractor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock", e.Name())
	assert.Equal(t, int32(2), calls.Load())
}

func TestNilMatcherDisablesTagging(t *testing.T) {
	r := New(func(context.Context) (embeddings.Extractor, error) {
		return embeddings.NewMockExtractor(), nil
	}, func(context.Context) (tagging.Matcher, error) {
		return nil, nil
	})

	require.NoError(t, r.Warm(context.Background()))

	m, err := r.Matcher(context.Background())
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestWarmWithoutExtractorFactory(t *testing.T) {
	err := New(nil, nil).Warm(context.Background())
	assert.ErrorIs(t, err, clustererrors.ErrModelInit)
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{EmbeddingBackend: config.EmbeddingBackendLocal, TagBackend: config.TagBackendMock}
	r := FromConfig(cfg)

	e, err := r.Extractor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local", e.Name())

	m, err := r.Matcher(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mock", m.Name())
}

func TestFromConfigCLIPUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		EmbeddingBackend: config.EmbeddingBackendCLIP,
		TagBackend:       config.TagBackendNone,
		CLIPServiceURL:   srv.URL,
		CLIPEmbedModel:   "clip-vit-base-patch32",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := FromConfig(cfg).Warm(ctx)
	assert.ErrorIs(t, err, clustererrors.ErrModelInit)
}

func TestFromConfigCLIPReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		EmbeddingBackend: config.EmbeddingBackendCLIP,
		TagBackend:       config.TagBackendCLIP,
		CLIPServiceURL:   srv.URL,
		CLIPEmbedModel:   "clip-vit-base-patch32",
	}

	r := FromConfig(cfg)
	require.NoError(t, r.Warm(context.Background()))

	m, err := r.Matcher(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "clip:clip-vit-base-patch32", m.Name())
}

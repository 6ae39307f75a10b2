package tagging

import (
	"context"
	"crypto/sha256"

	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/imagedecode"
)

// StaticMatcher returns scripted scores. Scores are looked up by image filename, then by
// image id, then in Default; labels without a score get 0.
type StaticMatcher struct {
	ByImage map[string]map[string]float32
	Default map[string]float32
}

// Name implements Matcher.
func (m *StaticMatcher) Name() string { return "static" }

// Scores implements Matcher.
func (m *StaticMatcher) Scores(ctx context.Context, img *imagedecode.DecodedImage, labels []string) (embeddings.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return embeddings.Tensor{}, err
	}

	table := m.Default
	if t, ok := m.ByImage[img.Filename]; ok {
		table = t
	} else if t, ok := m.ByImage[img.ID]; ok {
		table = t
	}

	data := make([]float32, len(labels))
	for i, l := range labels {
		data[i] = table[l]
	}

	return embeddings.Tensor{Data: data, Shape: []int{len(labels)}}, nil
}

// HashMatcher derives pseudo-random but deterministic scores from the image bytes and label.
// It stands in for a real model in offline runs.
type HashMatcher struct{}

// Name implements Matcher.
func (HashMatcher) Name() string { return "mock" }

// Scores implements Matcher.
func (HashMatcher) Scores(ctx context.Context, img *imagedecode.DecodedImage, labels []string) (embeddings.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return embeddings.Tensor{}, err
	}

	data := make([]float32, len(labels))

	for i, l := range labels {
		h := sha256.New()
		h.Write(img.Bytes)
		h.Write([]byte(l))
		sum := h.Sum(nil)
		data[i] = float32(sum[0]) / 255
	}

	return embeddings.Tensor{Data: data, Shape: []int{len(labels)}}, nil
}

var (
	_ Matcher = (*StaticMatcher)(nil)
	_ Matcher = HashMatcher{}
)

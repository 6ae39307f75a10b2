package embeddings

import (
	"context"
	"crypto/sha256"
	"errors"

	"github.com/formbricks/collections/internal/imagedecode"
)

// MockExtractor implements Extractor for tests and offline runs.
// It derives a deterministic vector from the hash of the image bytes.
type MockExtractor struct {
	dimensions int
}

// NewMockExtractor creates a mock extractor with 64 dimensions.
func NewMockExtractor() *MockExtractor {
	return &MockExtractor{dimensions: 64}
}

// NewMockExtractorWithDimensions creates a mock extractor with custom dimensions.
func NewMockExtractorWithDimensions(dimensions int) *MockExtractor {
	return &MockExtractor{dimensions: dimensions}
}

// Name implements Extractor.
func (m *MockExtractor) Name() string { return "mock" }

// Dimensions implements Extractor.
func (m *MockExtractor) Dimensions() int { return m.dimensions }

// Extract implements Extractor. Images without bytes are hashed by id.
func (m *MockExtractor) Extract(ctx context.Context, img *imagedecode.DecodedImage) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}

	seed := img.Bytes
	if len(seed) == 0 {
		if img.ID == "" {
			return Tensor{}, errors.New("image has neither bytes nor id")
		}

		seed = []byte(img.ID)
	}

	hash := sha256.Sum256(seed)
	data := make([]float32, m.dimensions)

	for i := range data {
		// Use hash bytes cyclically, mapped to [-1, 1].
		data[i] = (float32(hash[i%len(hash)]) / 127.5) - 1.0
	}

	return Tensor{Data: data, Shape: []int{m.dimensions}}, nil
}

var _ Extractor = (*MockExtractor)(nil)

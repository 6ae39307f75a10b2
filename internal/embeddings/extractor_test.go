package embeddings

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/collections/internal/imagedecode"
	vec "github.com/formbricks/collections/pkg/embeddings"
)

func TestTensorValidate(t *testing.T) {
	nan := float32(math.NaN())

	tests := []struct {
		name    string
		tensor  Tensor
		lastDim int
		wantErr bool
	}{
		{"flat ok", Tensor{Data: []float32{1, 2, 3}, Shape: []int{3}}, 3, false},
		{"tokens ok", Tensor{Data: make([]float32, 6), Shape: []int{2, 3}}, 3, false},
		{"any width", Tensor{Data: []float32{1, 2}, Shape: []int{2}}, 0, false},
		{"empty", Tensor{}, 0, true},
		{"shape mismatch", Tensor{Data: []float32{1, 2, 3}, Shape: []int{2, 2}}, 0, true},
		{"wrong width", Tensor{Data: []float32{1, 2, 3}, Shape: []int{3}}, 4, true},
		{"zero dim", Tensor{Data: []float32{1}, Shape: []int{0, 1}}, 0, true},
		{"nan", Tensor{Data: []float32{1, nan}, Shape: []int{2}}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tensor.Validate(tt.lastDim)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedTensor)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPool(t *testing.T) {
	t.Run("flat vector is normalised", func(t *testing.T) {
		out, err := Pool(Tensor{Data: []float32{3, 4}, Shape: []int{2}})
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{0.6, 0.8}, out, 1e-6)
	})

	t.Run("token rows are mean pooled", func(t *testing.T) {
		out, err := Pool(Tensor{Data: []float32{2, 0, 0, 2}, Shape: []int{1, 2, 2}})
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float32{float32(math.Sqrt2 / 2), float32(math.Sqrt2 / 2)}, out, 1e-6)
	})

	t.Run("zero vector rejected", func(t *testing.T) {
		_, err := Pool(Tensor{Data: []float32{0, 0}, Shape: []int{2}})
		assert.ErrorIs(t, err, ErrMalformedTensor)
	})

	t.Run("rank four rejected", func(t *testing.T) {
		_, err := Pool(Tensor{Data: []float32{1, 1}, Shape: []int{1, 1, 1, 2}})
		assert.ErrorIs(t, err, ErrMalformedTensor)
	})
}

func filled(c color.Color) *imagedecode.DecodedImage {
	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for y := range 48 {
		for x := range 48 {
			img.Set(x, y, c)
		}
	}

	return imagedecode.FromImage("img", img)
}

func gradient(reverse bool) *imagedecode.DecodedImage {
	img := image.NewNRGBA(image.Rect(0, 0, 48, 48))
	for y := range 48 {
		for x := range 48 {
			v := uint8(x * 5)
			if reverse {
				v = 255 - v
			}

			img.Set(x, y, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	return imagedecode.FromImage("grad", img)
}

func TestLocalExtractor(t *testing.T) {
	ctx := context.Background()
	e := NewLocalExtractor()

	embed := func(img *imagedecode.DecodedImage) []float32 {
		tensor, err := e.Extract(ctx, img)
		require.NoError(t, err)
		require.NoError(t, tensor.Validate(e.Dimensions()))

		out, err := Pool(tensor)
		require.NoError(t, err)

		return out
	}

	red := embed(filled(color.NRGBA{R: 220, G: 20, B: 20, A: 255}))
	nearRed := embed(filled(color.NRGBA{R: 226, G: 14, B: 18, A: 255}))
	blue := embed(filled(color.NRGBA{R: 20, G: 20, B: 220, A: 255}))

	assert.Len(t, red, LocalDimensions)
	assert.Equal(t, red, embed(filled(color.NRGBA{R: 220, G: 20, B: 20, A: 255})), "deterministic")
	assert.Less(t, vec.CosineDistance(red, nearRed), vec.CosineDistance(red, blue))

	left := embed(gradient(false))
	right := embed(gradient(true))
	assert.Greater(t, vec.CosineDistance(left, right), 0.0)
}

func TestLocalExtractorHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocalExtractor().Extract(ctx, filled(color.White))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockExtractor(t *testing.T) {
	ctx := context.Background()
	m := NewMockExtractorWithDimensions(16)

	a := &imagedecode.DecodedImage{ID: "a", Bytes: []byte("same bytes")}
	b := &imagedecode.DecodedImage{ID: "b", Bytes: []byte("same bytes")}
	c := &imagedecode.DecodedImage{ID: "c", Bytes: []byte("other bytes")}

	ta, err := m.Extract(ctx, a)
	require.NoError(t, err)
	require.NoError(t, ta.Validate(16))

	tb, err := m.Extract(ctx, b)
	require.NoError(t, err)

	tc, err := m.Extract(ctx, c)
	require.NoError(t, err)

	assert.Equal(t, ta.Data, tb.Data, "content addressed")
	assert.NotEqual(t, ta.Data, tc.Data)

	_, err = m.Extract(ctx, &imagedecode.DecodedImage{})
	assert.Error(t, err)
}

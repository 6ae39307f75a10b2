// Package embeddings defines the image embedding contract and its in-process implementations.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/formbricks/collections/internal/imagedecode"
	vec "github.com/formbricks/collections/pkg/embeddings"
)

// ErrMalformedTensor is returned when model output does not have the expected shape or values.
var ErrMalformedTensor = errors.New("malformed model output")

// Tensor is raw model output: a flat buffer plus its shape.
type Tensor struct {
	Data  []float32 `json:"data"`
	Shape []int     `json:"shape"`
}

// Validate checks that the shape matches the buffer, every value is finite and, when
// lastDim is positive, that the innermost dimension equals it.
func (t Tensor) Validate(lastDim int) error {
	if len(t.Data) == 0 || len(t.Shape) == 0 {
		return fmt.Errorf("%w: empty tensor", ErrMalformedTensor)
	}

	size := 1

	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: non-positive dimension in shape %v", ErrMalformedTensor, t.Shape)
		}

		size *= d
	}

	if size != len(t.Data) {
		return fmt.Errorf("%w: shape %v does not match %d values", ErrMalformedTensor, t.Shape, len(t.Data))
	}

	if lastDim > 0 && t.Shape[len(t.Shape)-1] != lastDim {
		return fmt.Errorf("%w: expected last dimension %d, got shape %v", ErrMalformedTensor, lastDim, t.Shape)
	}

	if !vec.IsFinite(t.Data) {
		return fmt.Errorf("%w: NaN or Inf values", ErrMalformedTensor)
	}

	return nil
}

// Pool reduces a validated tensor to one unit-length vector. Shapes [D] and [1,D] are taken
// as is; [T,D] and [1,T,D] are mean-pooled over T.
func Pool(t Tensor) ([]float32, error) {
	if err := t.Validate(0); err != nil {
		return nil, err
	}

	shape := t.Shape
	if len(shape) == 3 && shape[0] == 1 {
		shape = shape[1:]
	}

	var out []float32

	switch len(shape) {
	case 1:
		out = make([]float32, len(t.Data))
		copy(out, t.Data)
	case 2:
		pooled, err := vec.MeanPool(t.Data, shape[0], shape[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedTensor, err)
		}

		out = pooled
	default:
		return nil, fmt.Errorf("%w: unsupported shape %v", ErrMalformedTensor, t.Shape)
	}

	vec.NormalizeL2(out)

	if vec.Dot(out, out) == 0 {
		return nil, fmt.Errorf("%w: zero vector", ErrMalformedTensor)
	}

	return out, nil
}

// Extractor turns a decoded image into raw embedding output.
// Implementations must be deterministic and safe for concurrent use.
type Extractor interface {
	Extract(ctx context.Context, img *imagedecode.DecodedImage) (Tensor, error)
	// Dimensions is the embedding width, or 0 when only known after the first call.
	Dimensions() int
	Name() string
}

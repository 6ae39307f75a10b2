// Package palette extracts dominant colours from an image and classifies palettes by mood.
package palette

import (
	"image"
	"log/slog"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/formbricks/collections/internal/kmeans"
	"github.com/formbricks/collections/internal/models"
)

// Quantizer defaults.
const (
	DefaultGridSize       = 20
	DefaultAlphaThreshold = 128
)

// Quantizer computes colour palettes with k-means over downsampled pixels.
type Quantizer struct {
	// GridSize is the side of the square the image is resampled to before clustering.
	GridSize int
	// AlphaThreshold drops pixels whose alpha (0-255) is below it.
	AlphaThreshold uint8
	Seed           uint64
}

// NewQuantizer returns a Quantizer with the default grid and alpha threshold.
func NewQuantizer(seed uint64) *Quantizer {
	return &Quantizer{GridSize: DefaultGridSize, AlphaThreshold: DefaultAlphaThreshold, Seed: seed}
}

// Palette returns up to k lowercase #rrggbb colours for img. It never fails:
// a nil image, a fully transparent image or a clustering error yields an empty palette.
func (q *Quantizer) Palette(img image.Image, k int) []string {
	if img == nil || img.Bounds().Empty() || k < 1 {
		return []string{}
	}

	if k > models.MaxPaletteSize {
		k = models.MaxPaletteSize
	}

	pixels := q.samplePixels(img)
	if len(pixels) == 0 {
		return []string{}
	}

	if distinct := countDistinct(pixels); distinct < k {
		k = distinct
	}

	res, err := kmeans.Run(pixels, kmeans.Options{K: k, Seed: q.Seed, Distance: kmeans.SquaredEuclidean})
	if err != nil {
		slog.Debug("palette quantization failed", "error", err, "pixels", len(pixels), "k", k)

		return []string{}
	}

	palette := make([]string, 0, len(res.Centroids))
	for _, c := range res.Centroids {
		palette = append(palette, toHex(c))
	}

	return palette
}

func (q *Quantizer) samplePixels(img image.Image) [][]float32 {
	size := q.GridSize
	if size <= 0 {
		size = DefaultGridSize
	}

	small := imaging.Resize(img, size, size, imaging.Box)

	pixels := make([][]float32, 0, size*size)

	for i := 0; i+3 < len(small.Pix); i += 4 {
		if small.Pix[i+3] < q.AlphaThreshold {
			continue
		}

		pixels = append(pixels, []float32{float32(small.Pix[i]), float32(small.Pix[i+1]), float32(small.Pix[i+2])})
	}

	return pixels
}

func countDistinct(pixels [][]float32) int {
	seen := make(map[[3]float32]struct{}, len(pixels))
	for _, p := range pixels {
		seen[[3]float32{p[0], p[1], p[2]}] = struct{}{}
	}

	return len(seen)
}

// toHex rounds each channel to the nearest integer and formats #rrggbb.
func toHex(c []float32) string {
	channel := func(v float32) float64 {
		return math.Max(0, math.Min(255, math.Round(float64(v)))) / 255
	}

	return colorful.Color{R: channel(c[0]), G: channel(c[1]), B: channel(c[2])}.Hex()
}

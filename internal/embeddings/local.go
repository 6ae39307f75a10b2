package embeddings

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"

	"github.com/formbricks/collections/internal/imagedecode"
)

const (
	localSampleSide = 32
	labBinsPerAxis  = 4
	lumaGridSide    = 8
	edgeGridSide    = 4

	// LocalDimensions is the width of LocalExtractor output.
	LocalDimensions = labBinsPerAxis*labBinsPerAxis*labBinsPerAxis + 3 + lumaGridSide*lumaGridSide + edgeGridSide*edgeGridSide
)

// Per-block weights, applied after each block is normalised.
const (
	histogramWeight = 0.8
	meanLabWeight   = 0.8
	lumaWeight      = 0.6
	edgeWeight      = 0.4
)

// LocalExtractor computes perceptual features in process: a Lab colour histogram with the
// mean Lab colour, a coarse luminance layout and edge energy per region.
// It needs no model download and is deterministic.
type LocalExtractor struct{}

// NewLocalExtractor creates a LocalExtractor.
func NewLocalExtractor() *LocalExtractor {
	return &LocalExtractor{}
}

// Name implements Extractor.
func (e *LocalExtractor) Name() string { return "local" }

// Dimensions implements Extractor.
func (e *LocalExtractor) Dimensions() int { return LocalDimensions }

// Extract implements Extractor.
func (e *LocalExtractor) Extract(ctx context.Context, img *imagedecode.DecodedImage) (Tensor, error) {
	if err := ctx.Err(); err != nil {
		return Tensor{}, err
	}

	sample := flatten(img.Image, localSampleSide)

	features := make([]float32, 0, LocalDimensions)
	hist, mean := labFeatures(sample)
	features = appendBlock(features, hist, histogramWeight)
	features = appendBlock(features, mean, meanLabWeight)

	luma := luminance(sample)
	features = appendBlock(features, lumaGrid(luma), lumaWeight)
	features = appendBlock(features, edgeEnergy(luma), edgeWeight)

	return Tensor{Data: features, Shape: []int{len(features)}}, nil
}

// flatten scales src onto a white side x side canvas.
func flatten(src image.Image, side int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(dst, dst.Rect, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Over, nil)

	return dst
}

// labFeatures returns the Lab histogram and the mean (L, a, b) of img.
func labFeatures(img *image.RGBA) (hist, mean []float64) {
	hist = make([]float64, labBinsPerAxis*labBinsPerAxis*labBinsPerAxis)
	mean = make([]float64, 3)
	b := img.Rect

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			l, a, bb := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}.Lab()

			li := bin(l, 0, 1)
			ai := bin(a, -1, 1)
			bi := bin(bb, -1, 1)
			hist[(li*labBinsPerAxis+ai)*labBinsPerAxis+bi]++

			mean[0] += l
			mean[1] += a
			mean[2] += bb
		}
	}

	n := float64(b.Dx() * b.Dy())
	for i := range mean {
		mean[i] /= n
	}

	return hist, mean
}

func bin(v, lo, hi float64) int {
	i := int((v - lo) / (hi - lo) * labBinsPerAxis)

	return max(0, min(labBinsPerAxis-1, i))
}

func luminance(img *image.RGBA) [][]float64 {
	side := img.Rect.Dx()
	out := make([][]float64, side)

	for y := range side {
		out[y] = make([]float64, side)
		for x := range side {
			c := img.RGBAAt(img.Rect.Min.X+x, img.Rect.Min.Y+y)
			out[y][x] = (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
		}
	}

	return out
}

// lumaGrid averages luminance over an 8x8 grid and centres it on its mean.
func lumaGrid(luma [][]float64) []float64 {
	cells := regionMeans(luma, lumaGridSide)

	var mean float64
	for _, v := range cells {
		mean += v
	}

	mean /= float64(len(cells))

	for i := range cells {
		cells[i] -= mean
	}

	return cells
}

// edgeEnergy is the mean gradient magnitude per region of a 4x4 grid.
func edgeEnergy(luma [][]float64) []float64 {
	side := len(luma)
	grad := make([][]float64, side)

	for y := range side {
		grad[y] = make([]float64, side)
		for x := range side {
			dx := luma[y][min(x+1, side-1)] - luma[y][max(x-1, 0)]
			dy := luma[min(y+1, side-1)][x] - luma[max(y-1, 0)][x]
			grad[y][x] = math.Hypot(dx, dy)
		}
	}

	return regionMeans(grad, edgeGridSide)
}

func regionMeans(values [][]float64, cellsPerSide int) []float64 {
	side := len(values)
	step := side / cellsPerSide
	out := make([]float64, 0, cellsPerSide*cellsPerSide)

	for cy := range cellsPerSide {
		for cx := range cellsPerSide {
			var sum float64

			for y := cy * step; y < (cy+1)*step; y++ {
				for x := cx * step; x < (cx+1)*step; x++ {
					sum += values[y][x]
				}
			}

			out = append(out, sum/float64(step*step))
		}
	}

	return out
}

// appendBlock L2-normalises block, scales it by weight and appends it to dst.
func appendBlock(dst []float32, block []float64, weight float64) []float32 {
	var norm float64
	for _, v := range block {
		norm += v * v
	}

	norm = math.Sqrt(norm)

	for _, v := range block {
		if norm == 0 {
			dst = append(dst, 0)

			continue
		}

		dst = append(dst, float32(v/norm*weight))
	}

	return dst
}

var _ Extractor = (*LocalExtractor)(nil)

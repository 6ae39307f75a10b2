package service

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/formbricks/collections/internal/models"
	"github.com/formbricks/collections/internal/palette"
	vec "github.com/formbricks/collections/pkg/embeddings"
)

// PixelSource returns the decoded pixels of an image in the current batch.
type PixelSource interface {
	Pixels(imageID string) (image.Image, bool)
}

// PixelMap is a PixelSource backed by a map.
type PixelMap map[string]image.Image

// Pixels implements PixelSource.
func (m PixelMap) Pixels(imageID string) (image.Image, bool) {
	img, ok := m[imageID]

	return img, ok
}

// Synthesizer turns a finished group into a ClusterRecord.
type Synthesizer struct {
	quantizer   *palette.Quantizer
	paletteSize int
	pixels      PixelSource
	newID       func() string
}

// NewSynthesizer creates a synthesizer. paletteSize is clamped to [1, 5].
func NewSynthesizer(quantizer *palette.Quantizer, paletteSize int, pixels PixelSource) *Synthesizer {
	if paletteSize <= 0 || paletteSize > models.MaxPaletteSize {
		paletteSize = models.MaxPaletteSize
	}

	if pixels == nil {
		pixels = PixelMap{}
	}

	return &Synthesizer{
		quantizer:   quantizer,
		paletteSize: paletteSize,
		pixels:      pixels,
		newID:       newClusterID,
	}
}

func newClusterID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Synthesize builds the record for images. The palette comes from the first image only.
// suggestedTitle wins over the dominant tag when set.
func (s *Synthesizer) Synthesize(images []models.ProcessedImage, suggestedTitle string) models.ClusterRecord {
	tags := TopTags(images, models.MaxClusterTags)

	title := suggestedTitle
	if title == "" {
		title = "Untitled Collection"
		if len(tags) > 0 {
			title = collectionTitle(tags[0])
		}
	}

	refs := make([]models.ImageRef, len(images))
	for i, img := range images {
		refs[i] = img.Ref()
	}

	record := models.ClusterRecord{
		ID:          s.newID(),
		Title:       title,
		Description: describe(len(images), tags),
		Images:      refs,
		Palette:     []string{},
		Tags:        tags,
		Centroid:    centroid(images),
	}

	if len(images) > 0 {
		if px, ok := s.pixels.Pixels(images[0].ID); ok && s.quantizer != nil {
			record.Palette = s.quantizer.Palette(px, s.paletteSize)
		}
	}

	record.Moods = palette.Moods(record.Palette)

	return record
}

// TopTags returns up to limit labels ordered by how many images carry them.
// Equal counts keep the order in which the labels were first seen.
func TopTags(images []models.ProcessedImage, limit int) []string {
	counts := make(map[string]int)
	order := make([]string, 0)

	for _, img := range images {
		for _, t := range img.Tags {
			if _, ok := counts[t.Label]; !ok {
				order = append(order, t.Label)
			}

			counts[t.Label]++
		}
	}

	sort.SliceStable(order, func(a, b int) bool {
		return counts[order[a]] > counts[order[b]]
	})

	if len(order) > limit {
		order = order[:limit]
	}

	return order
}

func describe(n int, tags []string) string {
	noun := "images"
	if n == 1 {
		noun = "image"
	}

	if len(tags) == 0 {
		return fmt.Sprintf("A collection of %d visually similar %s.", n, noun)
	}

	return fmt.Sprintf("A collection of %d %s related to: %s", n, noun, strings.Join(tags, ", "))
}

// centroid is the normalised mean embedding, or nil when the members disagree on width.
func centroid(images []models.ProcessedImage) []float32 {
	if len(images) == 0 || len(images[0].Embedding) == 0 {
		return nil
	}

	dim := len(images[0].Embedding)
	flat := make([]float32, 0, dim*len(images))

	for _, img := range images {
		if len(img.Embedding) != dim {
			return nil
		}

		flat = append(flat, img.Embedding...)
	}

	mean, err := vec.MeanPool(flat, len(images), dim)
	if err != nil {
		return nil
	}

	vec.NormalizeL2(mean)

	return mean
}

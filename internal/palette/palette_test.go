package palette

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/collections/internal/models"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}

	return img
}

// halves paints the left half with left and the right half with right.
func halves(left, right color.NRGBA) *image.NRGBA {
	img := solid(40, 40, left)
	for y := range 40 {
		for x := 20; x < 40; x++ {
			img.SetNRGBA(x, y, right)
		}
	}

	return img
}

func TestPaletteSolidImage(t *testing.T) {
	q := NewQuantizer(1)

	got := q.Palette(solid(64, 64, color.NRGBA{R: 0x12, G: 0x34, B: 0x56, A: 255}), 5)

	assert.Equal(t, []string{"#123456"}, got)
}

func TestPaletteTwoColours(t *testing.T) {
	q := NewQuantizer(1)

	got := q.Palette(halves(color.NRGBA{R: 255, A: 255}, color.NRGBA{B: 255, A: 255}), 5)

	assert.ElementsMatch(t, []string{"#ff0000", "#0000ff"}, got)
}

func TestPaletteIgnoresTransparentPixels(t *testing.T) {
	q := NewQuantizer(1)

	got := q.Palette(halves(color.NRGBA{R: 255, A: 255}, color.NRGBA{G: 255, A: 10}), 5)

	assert.Equal(t, []string{"#ff0000"}, got)
}

func TestPaletteDegenerateCases(t *testing.T) {
	q := NewQuantizer(1)

	assert.Empty(t, q.Palette(nil, 5))
	assert.Empty(t, q.Palette(solid(10, 10, color.NRGBA{}), 5))
	assert.Empty(t, q.Palette(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 5))
	assert.Empty(t, q.Palette(solid(10, 10, color.NRGBA{A: 255}), 0))
}

func TestPaletteIsValidAndBounded(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 50, 50))
	for y := range 50 {
		for x := range 50 {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 5), G: uint8(y * 5), B: uint8((x + y) * 2), A: 255})
		}
	}

	q := NewQuantizer(9)
	got := q.Palette(img, 8)

	require.Len(t, got, models.MaxPaletteSize)

	for _, hex := range got {
		assert.True(t, models.ValidPaletteColor(hex), hex)
	}

	assert.Equal(t, got, q.Palette(img, 8), "same seed and image give the same palette")
}

func TestMoods(t *testing.T) {
	tests := []struct {
		name    string
		palette []string
		want    []string
	}{
		{"empty", nil, []string{}},
		{"single colour", []string{"#ff0000"}, []string{MoodWarm, MoodMonochromatic, MoodVibrant}},
		{"warm reds and oranges", []string{"#ff0000", "#ff8000", "#ffcc00"}, []string{MoodWarm, MoodVibrant}},
		{"cool blues and greens", []string{"#0000ff", "#00ff80", "#0080ff"}, []string{MoodCool, MoodVibrant}},
		{"muted greys", []string{"#808080", "#909090", "#a0a0a0"}, []string{MoodWarm, MoodMonochromatic}},
		{"mixed", []string{"#ff0000", "#0000ff", "#00ff00", "#ffff00"}, []string{MoodVibrant}},
		{"invalid ignored", []string{"nope", "#0000ff"}, []string{MoodCool, MoodMonochromatic, MoodVibrant}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Moods(tt.palette))
		})
	}
}

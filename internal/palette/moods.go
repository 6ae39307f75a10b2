package palette

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// Mood names.
const (
	MoodWarm          = "Warm Tones"
	MoodCool          = "Cool Tones"
	MoodMonochromatic = "Monochromatic"
	MoodVibrant       = "Vibrant"
)

const (
	dominantShare         = 0.6
	monochromeHueRange    = 25
	vibrantMeanSaturation = 55
)

// Moods classifies a palette. Hue is in whole degrees and saturation in whole percent.
// Unparseable colours are ignored; an empty palette has no moods.
func Moods(palette []string) []string {
	hues := make([]float64, 0, len(palette))
	sats := make([]float64, 0, len(palette))

	for _, hex := range palette {
		c, err := colorful.Hex(hex)
		if err != nil {
			continue
		}

		h, s, _ := c.Hsl()
		hues = append(hues, math.Mod(math.Round(h), 360))
		sats = append(sats, math.Round(s*100))
	}

	if len(hues) == 0 {
		return []string{}
	}

	var warm, cool int

	for _, h := range hues {
		if h <= 60 || h >= 330 {
			warm++
		}

		if h >= 100 && h <= 280 {
			cool++
		}
	}

	moods := make([]string, 0, 4)
	n := float64(len(hues))

	if float64(warm)/n > dominantShare {
		moods = append(moods, MoodWarm)
	}

	if float64(cool)/n > dominantShare {
		moods = append(moods, MoodCool)
	}

	if isMonochromatic(hues) {
		moods = append(moods, MoodMonochromatic)
	}

	var satSum float64
	for _, s := range sats {
		satSum += s
	}

	if satSum/n > vibrantMeanSaturation {
		moods = append(moods, MoodVibrant)
	}

	return moods
}

func isMonochromatic(hues []float64) bool {
	if len(hues) < 2 {
		return true
	}

	lo, hi := hues[0], hues[0]
	for _, h := range hues[1:] {
		lo = math.Min(lo, h)
		hi = math.Max(hi, h)
	}

	return hi-lo < monochromeHueRange
}

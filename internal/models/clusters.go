package models

import (
	"regexp"
	"sort"
)

// MaxPaletteSize is the upper bound on colours in a cluster palette.
const MaxPaletteSize = 5

// MaxClusterTags is the number of most frequent tags kept on a cluster.
const MaxClusterTags = 5

var hexColorPattern = regexp.MustCompile(`^#[0-9a-f]{6}$`)

// ClusterRecord is one finished collection produced by the pipeline.
type ClusterRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Images      []ImageRef `json:"images"`
	Palette     []string   `json:"palette"`
	Tags        []string   `json:"tags"`
	Moods       []string   `json:"moods,omitempty"`

	// Centroid is the normalised mean embedding of the members; not exposed in JSON.
	Centroid []float32 `json:"-"`
}

// Size returns the number of images in the cluster.
func (c ClusterRecord) Size() int {
	return len(c.Images)
}

// ImageIDs returns the member image ids in cluster order.
func (c ClusterRecord) ImageIDs() []string {
	ids := make([]string, len(c.Images))
	for i, img := range c.Images {
		ids[i] = img.ID
	}

	return ids
}

// SortBySize orders records by descending image count. Ties keep their existing order.
func SortBySize(records []ClusterRecord) {
	sort.SliceStable(records, func(a, b int) bool {
		return records[a].Size() > records[b].Size()
	})
}

// ValidPaletteColor reports whether s is a lowercase #rrggbb colour.
func ValidPaletteColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

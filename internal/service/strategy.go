package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/formbricks/collections/internal/clustererrors"
	"github.com/formbricks/collections/internal/kmeans"
	"github.com/formbricks/collections/internal/models"
)

// Group is one set of images that will become a single cluster record.
type Group struct {
	Title  string
	Images []models.ProcessedImage
}

// Partition is the output of a clustering strategy.
type Partition struct {
	Groups []Group
	// Fallbacks counts buckets kept whole because k-means failed on them.
	Fallbacks int
}

// ClusteringStrategy splits processed images into groups. Every image must land in exactly one group.
// advance is called when the strategy moves between the grouping and subclustering stages.
type ClusteringStrategy interface {
	Name() string
	Partition(ctx context.Context, images []models.ProcessedImage, advance func(models.BatchStage)) Partition
}

// Hybrid strategy defaults.
const (
	DefaultSubclusterThreshold = 4
	DefaultMaxSubclusters      = 3
	imagesPerSubcluster        = 5
	untaggedTitle              = "Miscellaneous"
)

// TagHybridStrategy buckets images by their top tag and splits oversized buckets with
// k-means on the embeddings. Images without tags share one residual bucket.
type TagHybridStrategy struct {
	// Threshold is the largest bucket kept whole without k-means.
	Threshold int
	// MaxSubclusters caps k for an oversized bucket.
	MaxSubclusters int
	Seed           uint64
}

// NewTagHybridStrategy returns the strategy with the default threshold (4) and cap (3).
func NewTagHybridStrategy(seed uint64) *TagHybridStrategy {
	return &TagHybridStrategy{Threshold: DefaultSubclusterThreshold, MaxSubclusters: DefaultMaxSubclusters, Seed: seed}
}

// Name implements ClusteringStrategy.
func (s *TagHybridStrategy) Name() string { return "hybrid" }

type bucket struct {
	tag    string // empty for the untagged bucket
	images []models.ProcessedImage
}

// Partition implements ClusteringStrategy.
func (s *TagHybridStrategy) Partition(ctx context.Context, images []models.ProcessedImage, advance func(models.BatchStage)) Partition {
	advance(models.StageGrouping)

	buckets := bucketByTopTag(images)

	advance(models.StageSubclustering)

	var out Partition

	for _, b := range buckets {
		base := untaggedTitle
		if b.tag != "" {
			base = collectionTitle(b.tag)
		}

		parts, fellBack := s.split(ctx, b)
		if fellBack {
			out.Fallbacks++
		}

		for i, members := range parts {
			out.Groups = append(out.Groups, Group{Title: numbered(base, i), Images: members})
		}
	}

	return out
}

// SubclusterCount returns how many clusters a bucket of n images is split into.
func (s *TagHybridStrategy) SubclusterCount(n int) int {
	if n <= s.threshold() {
		return 1
	}

	k := (n + imagesPerSubcluster - 1) / imagesPerSubcluster

	return max(1, min(k, s.maxSubclusters()))
}

func (s *TagHybridStrategy) split(ctx context.Context, b bucket) ([][]models.ProcessedImage, bool) {
	k := s.SubclusterCount(len(b.images))
	if len(b.images) <= s.threshold() || k == 1 {
		return [][]models.ProcessedImage{b.images}, false
	}

	groups, err := kmeansGroups(b.images, k, s.Seed)
	if err != nil {
		slog.WarnContext(ctx, "subclustering failed, keeping bucket whole",
			"bucket", bucketName(b), "size", len(b.images), "k", k,
			"error", clustererrors.NewClusteringAlgorithmError(bucketName(b), err))

		return [][]models.ProcessedImage{b.images}, true
	}

	return groups, false
}

func (s *TagHybridStrategy) threshold() int {
	if s.Threshold <= 0 {
		return DefaultSubclusterThreshold
	}

	return s.Threshold
}

func (s *TagHybridStrategy) maxSubclusters() int {
	if s.MaxSubclusters <= 0 {
		return DefaultMaxSubclusters
	}

	return s.MaxSubclusters
}

// bucketByTopTag groups images by tags[0]. Tagged buckets come in first-seen order,
// the untagged bucket last. Images keep their input order inside a bucket.
func bucketByTopTag(images []models.ProcessedImage) []bucket {
	var (
		tagged   []bucket
		untagged bucket
	)

	index := make(map[string]int)

	for _, img := range images {
		tag, ok := img.TopTag()
		if !ok {
			untagged.images = append(untagged.images, img)

			continue
		}

		i, seen := index[tag]
		if !seen {
			i = len(tagged)
			index[tag] = i
			tagged = append(tagged, bucket{tag: tag})
		}

		tagged[i].images = append(tagged[i].images, img)
	}

	if len(untagged.images) > 0 {
		tagged = append(tagged, untagged)
	}

	return tagged
}

func bucketName(b bucket) string {
	if b.tag == "" {
		return "untagged"
	}

	return b.tag
}

// kmeansGroups runs k-means on the image embeddings and returns the members of each
// cluster in centroid order. Images keep their input order inside a group.
func kmeansGroups(images []models.ProcessedImage, k int, seed uint64) ([][]models.ProcessedImage, error) {
	points := make([][]float32, len(images))
	for i, img := range images {
		points[i] = img.Embedding
	}

	res, err := kmeans.Run(points, kmeans.Options{K: k, Seed: seed, Distance: kmeans.Cosine})
	if err != nil {
		return nil, err
	}

	members := res.Members()
	groups := make([][]models.ProcessedImage, 0, len(members))

	for _, idx := range members {
		if len(idx) == 0 {
			continue
		}

		group := make([]models.ProcessedImage, len(idx))
		for j, i := range idx {
			group[j] = images[i]
		}

		groups = append(groups, group)
	}

	return groups, nil
}

// SimilarityStrategy ignores tags and clusters every image by embedding alone.
type SimilarityStrategy struct {
	Seed uint64
}

// Similarity strategy bounds.
const (
	minSimilarityClusters = 2
	maxSimilarityClusters = 10
	imagesPerSmartCluster = 4
)

// Name implements ClusteringStrategy.
func (s *SimilarityStrategy) Name() string { return "similarity" }

// ClusterCount returns k = min(max(2, ceil(n/4)), 10, n).
func (s *SimilarityStrategy) ClusterCount(n int) int {
	k := (n + imagesPerSmartCluster - 1) / imagesPerSmartCluster

	return min(max(minSimilarityClusters, k), maxSimilarityClusters, n)
}

// Partition implements ClusteringStrategy.
func (s *SimilarityStrategy) Partition(ctx context.Context, images []models.ProcessedImage, advance func(models.BatchStage)) Partition {
	advance(models.StageGrouping)

	if len(images) == 0 {
		return Partition{}
	}

	if len(images) == 1 {
		return Partition{Groups: []Group{{Title: "Single Image", Images: images}}}
	}

	advance(models.StageSubclustering)

	k := s.ClusterCount(len(images))

	groups, err := kmeansGroups(images, k, s.Seed)
	if err != nil {
		slog.WarnContext(ctx, "similarity clustering failed, keeping batch whole",
			"size", len(images), "k", k,
			"error", clustererrors.NewClusteringAlgorithmError("all", err))

		return Partition{Groups: []Group{{Title: smartTitle(0), Images: images}}, Fallbacks: 1}
	}

	out := Partition{Groups: make([]Group, len(groups))}
	for i, g := range groups {
		out.Groups[i] = Group{Title: smartTitle(i), Images: g}
	}

	return out
}

func smartTitle(i int) string {
	return fmt.Sprintf("Smart Cluster %d", i+1)
}

// collectionTitle renders a tag as "<Tag> Collection", upper-casing the first letter.
func collectionTitle(tag string) string {
	return capitalize(tag) + " Collection"
}

// numbered appends " #n" to every part after the first.
func numbered(base string, i int) string {
	if i == 0 {
		return base
	}

	return fmt.Sprintf("%s #%d", base, i+1)
}

func capitalize(s string) string {
	s = strings.TrimSpace(s)

	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}

	return string(unicode.ToUpper(r)) + s[size:]
}

var (
	_ ClusteringStrategy = (*TagHybridStrategy)(nil)
	_ ClusteringStrategy = (*SimilarityStrategy)(nil)
)

// Package tagging implements zero-shot tag classification over a categorised vocabulary.
package tagging

import (
	"context"
	"fmt"
	"sort"

	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/imagedecode"
	"github.com/formbricks/collections/internal/models"
	"github.com/formbricks/collections/internal/vocabulary"
)

// DefaultThreshold is the confidence a best match must exceed to become a tag.
const DefaultThreshold = 0.5

// Matcher scores an image against candidate labels. The result has one value in [0,1]
// per label, in label order. Implementations must be safe for concurrent use.
type Matcher interface {
	Scores(ctx context.Context, img *imagedecode.DecodedImage, labels []string) (embeddings.Tensor, error)
	Name() string
}

// CategoryMatch is the best label of one category.
type CategoryMatch struct {
	Label string
	Score float32
}

// Classifier picks the best label per vocabulary category and keeps confident matches.
type Classifier struct {
	matcher   Matcher
	vocab     *vocabulary.Vocabulary
	threshold float32
}

// NewClassifier creates a Classifier. A nil matcher yields a classifier that never tags.
func NewClassifier(matcher Matcher, vocab *vocabulary.Vocabulary, threshold float64) *Classifier {
	if vocab == nil {
		vocab = vocabulary.Default()
	}

	return &Classifier{matcher: matcher, vocab: vocab, threshold: float32(threshold)}
}

// Name returns the underlying matcher name, or "none".
func (c *Classifier) Name() string {
	if c.matcher == nil {
		return "none"
	}

	return c.matcher.Name()
}

// Classify runs one zero-shot query per category and returns the best match of each
// category whose score exceeds the threshold. Equal scores keep the earlier label.
func (c *Classifier) Classify(ctx context.Context, img *imagedecode.DecodedImage) (map[string]CategoryMatch, error) {
	out := make(map[string]CategoryMatch)
	if c.matcher == nil {
		return out, nil
	}

	for _, category := range c.vocab.Categories {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		scores, err := c.matcher.Scores(ctx, img, category.Labels)
		if err != nil {
			return nil, fmt.Errorf("category %s: %w", category.Name, err)
		}

		if err := validateScores(scores, len(category.Labels)); err != nil {
			return nil, fmt.Errorf("category %s: %w", category.Name, err)
		}

		best := 0
		for i, s := range scores.Data {
			if s > scores.Data[best] {
				best = i
			}
		}

		if scores.Data[best] > c.threshold {
			out[category.Name] = CategoryMatch{Label: category.Labels[best], Score: scores.Data[best]}
		}
	}

	return out, nil
}

// Tags classifies img and flattens the per-category matches: duplicate labels keep the
// higher score, and the result is sorted by descending score with category order breaking ties.
func (c *Classifier) Tags(ctx context.Context, img *imagedecode.DecodedImage) ([]models.Tag, error) {
	matches, err := c.Classify(ctx, img)
	if err != nil {
		return nil, err
	}

	tags := make([]models.Tag, 0, len(matches))
	index := make(map[string]int)

	for _, category := range c.vocab.Categories {
		m, ok := matches[category.Name]
		if !ok {
			continue
		}

		if i, seen := index[m.Label]; seen {
			if m.Score > tags[i].Score {
				tags[i].Score = m.Score
			}

			continue
		}

		index[m.Label] = len(tags)
		tags = append(tags, models.Tag{Label: m.Label, Score: m.Score})
	}

	sort.SliceStable(tags, func(a, b int) bool {
		return tags[a].Score > tags[b].Score
	})

	return tags, nil
}

func validateScores(t embeddings.Tensor, labels int) error {
	if err := t.Validate(labels); err != nil {
		return err
	}

	if len(t.Data) != labels {
		return fmt.Errorf("%w: %d scores for %d labels", embeddings.ErrMalformedTensor, len(t.Data), labels)
	}

	for _, s := range t.Data {
		if s < 0 || s > 1 {
			return fmt.Errorf("%w: score %v outside [0,1]", embeddings.ErrMalformedTensor, s)
		}
	}

	return nil
}

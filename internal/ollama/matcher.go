// Package ollama provides a zero-shot label matcher backed by a local vision model served by Ollama.
package ollama

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/imagedecode"
	"github.com/formbricks/collections/internal/tagging"
)

// ErrEmptyResponse is returned when the model produced no choices.
var ErrEmptyResponse = errors.New("ollama: empty response")

// Config holds the Ollama server and model settings.
type Config struct {
	BaseURL string
	Model   string
}

// Matcher prompts a llava-style model for per-label confidences.
type Matcher struct {
	llm   llms.Model
	model string
}

// NewMatcher connects to an Ollama server.
func NewMatcher(cfg Config) (*Matcher, error) {
	llm, err := ollama.New(ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &Matcher{llm: llm, model: cfg.Model}, nil
}

// NewMatcherWithModel wraps any langchaingo model.
func NewMatcherWithModel(llm llms.Model, name string) *Matcher {
	return &Matcher{llm: llm, model: name}
}

// Name implements tagging.Matcher.
func (m *Matcher) Name() string { return "ollama:" + m.model }

// Scores implements tagging.Matcher.
func (m *Matcher) Scores(ctx context.Context, img *imagedecode.DecodedImage, labels []string) (embeddings.Tensor, error) {
	jpeg, err := img.JPEG()
	if err != nil {
		return embeddings.Tensor{}, err
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, tagging.SystemPrompt),
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart("image/jpeg", jpeg),
				llms.TextPart(tagging.Prompt(labels)),
			},
		},
	}

	resp, err := m.llm.GenerateContent(ctx, content, llms.WithJSONMode(), llms.WithTemperature(0))
	if err != nil {
		return embeddings.Tensor{}, fmt.Errorf("ollama generate: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return embeddings.Tensor{}, ErrEmptyResponse
	}

	return tagging.ParseScores(resp.Choices[0].Content, labels)
}

var _ tagging.Matcher = (*Matcher)(nil)

// Package openai provides a zero-shot label matcher backed by an OpenAI vision chat model.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/shared"

	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/imagedecode"
	"github.com/formbricks/collections/internal/tagging"
)

var (
	// ErrNoLabels is returned when Scores is called without candidate labels.
	ErrNoLabels = errors.New("openai: no candidate labels")
	// ErrNoChoiceInResponse is returned when the API response contains no choices.
	ErrNoChoiceInResponse = errors.New("openai: no choice in response")
)

const defaultModel = "gpt-4o-mini"

// Matcher asks a vision chat model for per-label confidences.
type Matcher struct {
	sdk   openaisdk.Client
	model string
}

// MatcherOption configures the Matcher.
type MatcherOption func(*matcherConfig)

type matcherConfig struct {
	model      string
	sdkOptions []option.RequestOption
}

// WithModel sets the chat model (default gpt-4o-mini).
func WithModel(model string) MatcherOption {
	return func(c *matcherConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL points the client at a compatible endpoint.
func WithBaseURL(url string) MatcherOption {
	return func(c *matcherConfig) {
		c.sdkOptions = append(c.sdkOptions, option.WithBaseURL(url))
	}
}

// WithMaxRetries sets the SDK retry budget.
func WithMaxRetries(n int) MatcherOption {
	return func(c *matcherConfig) {
		c.sdkOptions = append(c.sdkOptions, option.WithMaxRetries(n))
	}
}

// NewMatcher creates an OpenAI-backed matcher using the official SDK.
func NewMatcher(apiKey string, opts ...MatcherOption) *Matcher {
	cfg := &matcherConfig{model: defaultModel}
	for _, opt := range opts {
		opt(cfg)
	}

	sdkOptions := append([]option.RequestOption{option.WithAPIKey(apiKey)}, cfg.sdkOptions...)

	return &Matcher{
		sdk:   openaisdk.NewClient(sdkOptions...),
		model: cfg.model,
	}
}

// Name implements tagging.Matcher.
func (m *Matcher) Name() string { return "openai:" + m.model }

// Scores implements tagging.Matcher.
func (m *Matcher) Scores(ctx context.Context, img *imagedecode.DecodedImage, labels []string) (embeddings.Tensor, error) {
	if len(labels) == 0 {
		return embeddings.Tensor{}, ErrNoLabels
	}

	jpeg, err := img.JPEG()
	if err != nil {
		return embeddings.Tensor{}, err
	}

	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpeg)

	resp, err := m.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(m.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(tagging.SystemPrompt),
			openaisdk.UserMessage([]openaisdk.ChatCompletionContentPartUnionParam{
				openaisdk.TextContentPart(tagging.Prompt(labels)),
				openaisdk.ImageContentPart(openaisdk.ChatCompletionContentPartImageImageURLParam{URL: dataURI}),
			}),
		},
		ResponseFormat: openaisdk.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
		Temperature: param.NewOpt(0.0),
	})
	if err != nil {
		return embeddings.Tensor{}, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return embeddings.Tensor{}, ErrNoChoiceInResponse
	}

	return tagging.ParseScores(resp.Choices[0].Message.Content, labels)
}

var _ tagging.Matcher = (*Matcher)(nil)

package registry

import (
	"context"
	"fmt"

	"github.com/formbricks/collections/internal/clip"
	"github.com/formbricks/collections/internal/config"
	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/ollama"
	"github.com/formbricks/collections/internal/openai"
	"github.com/formbricks/collections/internal/tagging"
)

// FromConfig creates a registry whose factories follow EMBEDDING_BACKEND and TAG_BACKEND.
func FromConfig(cfg *config.Config, opts ...Option) *Registry {
	return New(ExtractorFromConfig(cfg), MatcherFromConfig(cfg), opts...)
}

// ExtractorFromConfig returns the factory for cfg.EmbeddingBackend.
func ExtractorFromConfig(cfg *config.Config) ExtractorFactory {
	return func(ctx context.Context) (embeddings.Extractor, error) {
		switch cfg.EmbeddingBackend {
		case config.EmbeddingBackendLocal:
			return embeddings.NewLocalExtractor(), nil
		case config.EmbeddingBackendMock:
			return embeddings.NewMockExtractor(), nil
		case config.EmbeddingBackendCLIP:
			client := newCLIPClient(cfg)
			if err := client.Ping(ctx); err != nil {
				return nil, err
			}

			return client, nil
		default:
			return nil, fmt.Errorf("unsupported embedding backend %q", cfg.EmbeddingBackend)
		}
	}
}

// MatcherFromConfig returns the factory for cfg.TagBackend.
func MatcherFromConfig(cfg *config.Config) MatcherFactory {
	return func(ctx context.Context) (tagging.Matcher, error) {
		switch cfg.TagBackend {
		case config.TagBackendNone:
			return nil, nil
		case config.TagBackendMock:
			return tagging.HashMatcher{}, nil
		case config.TagBackendCLIP:
			client := newCLIPClient(cfg)
			if err := client.Ping(ctx); err != nil {
				return nil, err
			}

			return client, nil
		case config.TagBackendOpenAI:
			return openai.NewMatcher(cfg.OpenAIAPIKey, openai.WithModel(cfg.OpenAIModel)), nil
		case config.TagBackendOllama:
			m, err := ollama.NewMatcher(ollama.Config{BaseURL: cfg.OllamaBaseURL, Model: cfg.OllamaModel})
			if err != nil {
				return nil, err
			}

			return m, nil
		default:
			return nil, fmt.Errorf("unsupported tag backend %q", cfg.TagBackend)
		}
	}
}

func newCLIPClient(cfg *config.Config) *clip.Client {
	return clip.NewClient(clip.ClientOptions{
		BaseURL:   cfg.CLIPServiceURL,
		Model:     cfg.CLIPEmbedModel,
		RateLimit: cfg.CLIPRateLimit,
	})
}

package openai

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/imagedecode"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 0,
			"model":   "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	return srv
}

func testImage() *imagedecode.DecodedImage {
	return imagedecode.FromImage("a.png-0", image.NewNRGBA(image.Rect(0, 0, 4, 4)))
}

func TestScores(t *testing.T) {
	srv := chatServer(t, `{"cat": 0.85, "dog": 0.15}`)
	m := NewMatcher("test-key", WithBaseURL(srv.URL), WithMaxRetries(0))

	tensor, err := m.Scores(context.Background(), testImage(), []string{"cat", "dog", "bird"})
	require.NoError(t, err)

	assert.Equal(t, []float32{0.85, 0.15, 0}, tensor.Data)
	assert.Equal(t, "openai:gpt-4o-mini", m.Name())
}

func TestScoresMalformedReply(t *testing.T) {
	srv := chatServer(t, "a cat, probably")
	m := NewMatcher("test-key", WithBaseURL(srv.URL), WithMaxRetries(0))

	_, err := m.Scores(context.Background(), testImage(), []string{"cat"})
	assert.ErrorIs(t, err, embeddings.ErrMalformedTensor)
}

func TestScoresAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	m := NewMatcher("bad", WithBaseURL(srv.URL), WithMaxRetries(0))

	_, err := m.Scores(context.Background(), testImage(), []string{"cat"})
	assert.Error(t, err)
}

func TestScoresNeedsLabels(t *testing.T) {
	_, err := NewMatcher("k").Scores(context.Background(), testImage(), nil)
	assert.ErrorIs(t, err, ErrNoLabels)
}

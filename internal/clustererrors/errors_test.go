package clustererrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels(t *testing.T) {
	cause := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{"decode", NewDecodeError("a.png-0", cause), ErrDecode, "decode image a.png-0: boom"},
		{"inference", NewModelInferenceError("a.png-0", "clip", cause), ErrModelInference, "clip inference failed for image a.png-0: boom"},
		{"clustering", NewClusteringAlgorithmError("cat", cause), ErrClusteringAlgorithm, `clustering bucket "cat" failed: boom`},
		{"init", NewModelInitError("extractor", cause), ErrModelInit, "initialise extractor: boom"},
		{"invalid input", NewInvalidInputError("files", "no files"), ErrInvalidInput, "no files"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)

			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Contains(t, wrapped.Error(), tt.contains)
		})
	}
}

func TestSentinelsDoNotCrossMatch(t *testing.T) {
	err := NewDecodeError("x", nil)

	assert.NotErrorIs(t, err, ErrModelInference)
	assert.NotErrorIs(t, err, ErrClusteringAlgorithm)
}

func TestUnwrapReachesCause(t *testing.T) {
	err := NewModelInferenceError("x", "tagger", context.DeadlineExceeded)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCancelled(t *testing.T) {
	err := Cancelled(context.Canceled)

	assert.ErrorIs(t, err, ErrBatchCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrBatchCancelled, Cancelled(nil))
}

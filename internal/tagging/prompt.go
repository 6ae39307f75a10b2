package tagging

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/formbricks/collections/internal/embeddings"
)

// SystemPrompt instructs a vision language model to act as a zero-shot classifier.
const SystemPrompt = "You are an image classifier. You only answer with a JSON object " +
	"mapping each candidate label to your confidence between 0 and 1 that the label describes the image."

// Prompt renders the user instruction for a set of candidate labels.
func Prompt(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = fmt.Sprintf("%q", l)
	}

	return "Candidate labels: [" + strings.Join(quoted, ", ") + "]. " +
		"Return a JSON object with every candidate label as a key and a confidence between 0 and 1 as the value. " +
		"The confidences should sum to roughly 1."
}

// ParseScores extracts label confidences from a model reply. Keys match labels case-insensitively,
// missing labels score 0 and percentages (values in (1,100]) are scaled down.
func ParseScores(reply string, labels []string) (embeddings.Tensor, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")

	if start < 0 || end <= start {
		return embeddings.Tensor{}, fmt.Errorf("%w: no JSON object in reply", embeddings.ErrMalformedTensor)
	}

	var raw map[string]float64
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return embeddings.Tensor{}, fmt.Errorf("%w: %w", embeddings.ErrMalformedTensor, err)
	}

	byLabel := make(map[string]float64, len(raw))
	for k, v := range raw {
		byLabel[strings.ToLower(strings.TrimSpace(k))] = v
	}

	data := make([]float32, len(labels))

	for i, l := range labels {
		v := byLabel[strings.ToLower(l)]

		switch {
		case v < 0:
			return embeddings.Tensor{}, fmt.Errorf("%w: negative confidence for %q", embeddings.ErrMalformedTensor, l)
		case v > 100:
			return embeddings.Tensor{}, fmt.Errorf("%w: confidence %v for %q out of range", embeddings.ErrMalformedTensor, v, l)
		case v > 1:
			v /= 100
		}

		data[i] = float32(v)
	}

	return embeddings.Tensor{Data: data, Shape: []int{len(labels)}}, nil
}

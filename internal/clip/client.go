// Package clip is a client for a CLIP inference service exposing image embeddings
// and zero-shot label scores over HTTP.
package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/formbricks/collections/internal/embeddings"
	"github.com/formbricks/collections/internal/imagedecode"
)

// ClientOptions configures the CLIP service client.
type ClientOptions struct {
	// BaseURL is the service root, e.g. http://localhost:8000.
	BaseURL string
	// Model is the model identifier sent with every request.
	Model string
	// Dimensions is the expected embedding width; 0 accepts whatever the service returns.
	Dimensions int
	// RetryMax is the maximum number of retries (default: 3).
	RetryMax int
	// Timeout is the HTTP client timeout (default: 30 seconds).
	Timeout time.Duration
	// RateLimit caps requests per second; 0 disables limiting.
	RateLimit float64
}

// Client talks to the CLIP service. It implements embeddings.Extractor and tagging.Matcher.
type Client struct {
	baseURL    string
	model      string
	dimensions int
	httpClient *retryablehttp.Client
	limiter    *rate.Limiter
}

// NewClient creates a CLIP service client.
func NewClient(opts ClientOptions) *Client {
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")

	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 3
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // errors are logged by the pipeline with image context

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &Client{
		baseURL:    opts.BaseURL,
		model:      opts.Model,
		dimensions: opts.Dimensions,
		httpClient: retryClient,
		limiter:    limiter,
	}
}

// Name identifies the backend in logs and errors.
func (c *Client) Name() string { return "clip:" + c.model }

// Dimensions returns the configured embedding width.
func (c *Client) Dimensions() int { return c.dimensions }

type embedRequest struct {
	Model string `json:"model"`
	Image string `json:"image"`
}

type zeroShotRequest struct {
	Model  string   `json:"model"`
	Image  string   `json:"image"`
	Labels []string `json:"labels"`
}

type zeroShotResponse struct {
	Scores []float32 `json:"scores"`
}

// Ping checks that the service is reachable and ready.
func (c *Client) Ping(ctx context.Context) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clip service unreachable: %w", err)
	}

	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip service not ready: status %d", resp.StatusCode)
	}

	return nil
}

// Extract returns the image embedding as reported by the service.
func (c *Client) Extract(ctx context.Context, img *imagedecode.DecodedImage) (embeddings.Tensor, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return embeddings.Tensor{}, err
	}

	var tensor embeddings.Tensor
	if err := c.post(ctx, "/v1/embed", embedRequest{Model: c.model, Image: encoded}, &tensor); err != nil {
		return embeddings.Tensor{}, err
	}

	if err := tensor.Validate(c.dimensions); err != nil {
		return embeddings.Tensor{}, err
	}

	return tensor, nil
}

// Scores returns one probability per label, in label order.
func (c *Client) Scores(ctx context.Context, img *imagedecode.DecodedImage, labels []string) (embeddings.Tensor, error) {
	encoded, err := encodeImage(img)
	if err != nil {
		return embeddings.Tensor{}, err
	}

	var out zeroShotResponse
	if err := c.post(ctx, "/v1/zero-shot", zeroShotRequest{Model: c.model, Image: encoded, Labels: labels}, &out); err != nil {
		return embeddings.Tensor{}, err
	}

	tensor := embeddings.Tensor{Data: out.Scores, Shape: []int{len(out.Scores)}}
	if err := tensor.Validate(len(labels)); err != nil {
		return embeddings.Tensor{}, err
	}

	return tensor, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}

	defer closeBody(resp)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip request %s failed with status %d: %s", path, resp.StatusCode, string(bytes.TrimSpace(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

func encodeImage(img *imagedecode.DecodedImage) (string, error) {
	data, err := img.JPEG()
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Error("Failed to close response body", "error", err)
	}
}

var _ embeddings.Extractor = (*Client)(nil)

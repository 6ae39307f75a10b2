// Package clustererrors provides sentinel and custom error types for the clustering pipeline.
package clustererrors

import (
	"errors"
	"fmt"
)

// ErrBatchCancelled is returned when a batch observed cooperative cancellation.
// It wraps the context cause so callers can tell an aborted batch from one that produced nothing.
var ErrBatchCancelled = errors.New("batch cancelled")

// ErrDecode is the sentinel for per-image decode failures.
var ErrDecode = &DecodeError{}

// DecodeError is returned when image bytes could not be decoded.
type DecodeError struct {
	ImageID string
	Err     error
}

// NewDecodeError creates a DecodeError for imageID wrapping cause.
func NewDecodeError(imageID string, cause error) *DecodeError {
	return &DecodeError{ImageID: imageID, Err: cause}
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image %s: %v", e.ImageID, e.Err)
	}

	if e.ImageID != "" {
		return "decode image " + e.ImageID
	}

	return "decode error"
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *DecodeError) Is(target error) bool {
	_, ok := target.(*DecodeError)

	return ok
}

// ErrModelInference is the sentinel for embedding or tag model failures.
var ErrModelInference = &ModelInferenceError{}

// ModelInferenceError is returned when an embedding or tag model call failed
// or returned output that did not pass validation.
type ModelInferenceError struct {
	ImageID string
	Model   string
	Err     error
}

// NewModelInferenceError creates a ModelInferenceError.
func NewModelInferenceError(imageID, model string, cause error) *ModelInferenceError {
	return &ModelInferenceError{ImageID: imageID, Model: model, Err: cause}
}

// Error implements the error interface.
func (e *ModelInferenceError) Error() string {
	msg := "model inference failed"
	if e.Model != "" {
		msg = e.Model + " inference failed"
	}

	if e.ImageID != "" {
		msg += " for image " + e.ImageID
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *ModelInferenceError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *ModelInferenceError) Is(target error) bool {
	_, ok := target.(*ModelInferenceError)

	return ok
}

// ErrClusteringAlgorithm is the sentinel for k-means failures on a bucket.
var ErrClusteringAlgorithm = &ClusteringAlgorithmError{}

// ClusteringAlgorithmError is returned when k-means cannot partition a bucket.
// The engine recovers from it by keeping the bucket as one cluster.
type ClusteringAlgorithmError struct {
	Bucket string
	Err    error
}

// NewClusteringAlgorithmError creates a ClusteringAlgorithmError.
func NewClusteringAlgorithmError(bucket string, cause error) *ClusteringAlgorithmError {
	return &ClusteringAlgorithmError{Bucket: bucket, Err: cause}
}

// Error implements the error interface.
func (e *ClusteringAlgorithmError) Error() string {
	msg := "clustering failed"
	if e.Bucket != "" {
		msg = fmt.Sprintf("clustering bucket %q failed", e.Bucket)
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *ClusteringAlgorithmError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *ClusteringAlgorithmError) Is(target error) bool {
	_, ok := target.(*ClusteringAlgorithmError)

	return ok
}

// ErrModelInit is the sentinel for model initialisation failures.
// This is the only fatal error class: it surfaces before any per-image work starts.
var ErrModelInit = &ModelInitError{}

// ModelInitError is returned when a model backend could not be constructed.
type ModelInitError struct {
	Model string
	Err   error
}

// NewModelInitError creates a ModelInitError.
func NewModelInitError(model string, cause error) *ModelInitError {
	return &ModelInitError{Model: model, Err: cause}
}

// Error implements the error interface.
func (e *ModelInitError) Error() string {
	msg := "model initialisation failed"
	if e.Model != "" {
		msg = "initialise " + e.Model
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying cause.
func (e *ModelInitError) Unwrap() error { return e.Err }

// Is implements the error interface for error comparison.
func (e *ModelInitError) Is(target error) bool {
	_, ok := target.(*ModelInitError)

	return ok
}

// ErrInvalidInput is the sentinel for caller input that cannot be processed at all.
var ErrInvalidInput = &InvalidInputError{}

// InvalidInputError is a sentinel error for invalid input data.
type InvalidInputError struct {
	Field   string
	Message string
}

// NewInvalidInputError creates a new InvalidInputError with a custom message.
func NewInvalidInputError(field, message string) *InvalidInputError {
	return &InvalidInputError{Field: field, Message: message}
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	if e.Field != "" {
		return "invalid input for field: " + e.Field
	}

	return "invalid input"
}

// Is implements the error interface for error comparison.
func (e *InvalidInputError) Is(target error) bool {
	_, ok := target.(*InvalidInputError)

	return ok
}

// Cancelled wraps cause (usually a context error) so that errors.Is matches both
// ErrBatchCancelled and the cause.
func Cancelled(cause error) error {
	if cause == nil {
		return ErrBatchCancelled
	}

	return fmt.Errorf("%w: %w", ErrBatchCancelled, cause)
}

package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Progress values emitted per image.
const (
	ProgressQueued   = 0
	ProgressEmbedded = 50
	ProgressDone     = 100
	ProgressFailed   = -1
)

// ProgressEvent reports per-image progress. Progress is in [0,100] or ProgressFailed.
type ProgressEvent struct {
	ImageID  string `json:"image_id"`
	Progress int    `json:"progress"`
}

// Terminal reports whether the event is the last one for its image.
func (e ProgressEvent) Terminal() bool {
	return e.Progress == ProgressDone || e.Progress == ProgressFailed
}

// BatchStage is the state of a batch in the clustering state machine.
type BatchStage string

const (
	StageIdle          BatchStage = "idle"
	StageExtracting    BatchStage = "extracting"
	StageGrouping      BatchStage = "grouping"
	StageSubclustering BatchStage = "subclustering"
	StageSynthesizing  BatchStage = "synthesizing"
	StageDone          BatchStage = "done"
)

// BatchOutcome distinguishes the legitimate terminal results of a batch.
type BatchOutcome string

const (
	// OutcomeClustered means at least one cluster was produced.
	OutcomeClustered BatchOutcome = "clustered"
	// OutcomeNoImages means no submitted file was an image.
	OutcomeNoImages BatchOutcome = "no_images"
	// OutcomeAllFailed means every image failed to decode or run through the models.
	OutcomeAllFailed BatchOutcome = "all_failed"
)

// BatchSummary is the user-facing account of a finished batch.
type BatchSummary struct {
	BatchID   uuid.UUID    `json:"batch_id"`
	Submitted int          `json:"submitted"`
	Skipped   int          `json:"skipped"` // not an image, or over the size limit
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Clusters  int          `json:"clusters"`
	Fallbacks int          `json:"kmeans_fallbacks"`
	Outcome   BatchOutcome `json:"outcome"`
}

// Message renders the summary for display.
func (s BatchSummary) Message() string {
	switch s.Outcome {
	case OutcomeNoImages:
		return "No images to cluster: none of the submitted files is an image."
	case OutcomeAllFailed:
		return fmt.Sprintf("No collections created: all %d image(s) failed to process.", s.Failed)
	default:
		return fmt.Sprintf("%d collection(s) created from %d image(s) (%d failed).", s.Clusters, s.Succeeded, s.Failed)
	}
}

package models

// RawImageInput is one uploaded file as handed to the pipeline. It is consumed once and never persisted.
type RawImageInput struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    []byte `json:"-"`
	MIMEType string `json:"mime_type"`
}

// Tag is a label matched by the tag classifier with its confidence in [0,1].
type Tag struct {
	Label string  `json:"label"`
	Score float32 `json:"score"`
}

// ProcessedImage is an image that made it through decode, embedding and tagging.
// Embedding is L2-normalised; Tags are unique by label and sorted by descending score.
type ProcessedImage struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Embedding []float32 `json:"-"`
	Tags      []Tag     `json:"tags"`

	// Index is the position of the image in the submitted batch, used for deterministic ordering.
	Index int `json:"-"`
}

// TopTag returns the label of the highest scoring tag, if any.
func (p ProcessedImage) TopTag() (string, bool) {
	if len(p.Tags) == 0 {
		return "", false
	}

	return p.Tags[0].Label, true
}

// Ref returns the externally visible reference to the image.
func (p ProcessedImage) Ref() ImageRef {
	return ImageRef{ID: p.ID, URL: p.URL, Alt: p.Filename}
}

// ImageRef is the image entry of a ClusterRecord.
type ImageRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
	Alt string `json:"alt"`
}

package model

import "time"

type SelectedImage struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

type GenerationRequest struct {
	ID    string
	Form  FormState
	Image *SelectedImage
}

type GenerationResult struct {
	RequestID   string    `json:"request_id"`
	ArtifactURI string    `json:"artifact_uri"`
	CompletedAt time.Time `json:"completed_at"`
}

// Generation is one recorded attempt in the local history.
type Generation struct {
	ID           int64     `json:"id"`
	RequestID    string    `json:"request_id"`
	Category     string    `json:"category"`
	Platform     string    `json:"platform"`
	Focus        string    `json:"focus"`
	ArtifactURI  string    `json:"artifact_uri"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

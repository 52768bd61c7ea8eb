package dto

import "github.com/google/uuid"

type CreateSourceRequest struct {
	Kind        string   `json:"kind" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	URL         string   `json:"url"`
}

type UpdateSourceRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	URL         *string  `json:"url,omitempty"`
}

type SourceResponse struct {
	ID           uuid.UUID `json:"id"`
	Kind         string    `json:"kind"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Location     string    `json:"location,omitempty"`
	Latitude     *float64  `json:"latitude,omitempty"`
	Longitude    *float64  `json:"longitude,omitempty"`
	Status       string    `json:"status"`
	URL          string    `json:"url,omitempty"`
	Duration     float64   `json:"duration,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
	FPS          float64   `json:"fps,omitempty"`
	Codec        string    `json:"codec,omitempty"`
	AudioCodec   string    `json:"audio_codec,omitempty"`
	SizeBytes    int64     `json:"size_bytes,omitempty"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
}

type SourceQuery struct {
	Kind string `form:"kind"`
}

type JobResponse struct {
	ID            uuid.UUID `json:"id"`
	SourceID      uuid.UUID `json:"source_id"`
	ExternalJobID string    `json:"external_job_id,omitempty"`
	Status        string    `json:"status"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	SubmittedAt   string    `json:"submitted_at"`
	CompletedAt   *string   `json:"completed_at,omitempty"`
}

// ProcessingCallbackRequest is posted by the processing service when a job
// finishes.
type ProcessingCallbackRequest struct {
	Status string `json:"status" binding:"required"`
	Error  string `json:"error"`
}

// WSSourceEvent is a WebSocket message for real-time source status delivery.
type WSSourceEvent struct {
	Type     string    `json:"type"` // source_status
	SourceID uuid.UUID `json:"source_id"`
	Status   string    `json:"status"`
	Error    string    `json:"error,omitempty"`
}

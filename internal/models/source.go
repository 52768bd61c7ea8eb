package models

import (
	"time"

	"github.com/google/uuid"
)

type SourceKind string

const (
	SourceKindFile   SourceKind = "file"
	SourceKindCamera SourceKind = "camera"
	SourceKindStream SourceKind = "stream"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindFile, SourceKindCamera, SourceKindStream:
		return true
	}
	return false
}

type SourceStatus string

const (
	SourceStatusUploading  SourceStatus = "uploading"
	SourceStatusProcessing SourceStatus = "processing"
	SourceStatusReady      SourceStatus = "ready"
	SourceStatusFailed     SourceStatus = "failed"
)

// Source is a managed media input. File sources carry an access token used
// by unauthenticated integration endpoints (streaming, download, callbacks).
type Source struct {
	ID          uuid.UUID    `json:"id" db:"id"`
	Kind        SourceKind   `json:"kind" db:"kind"`
	Name        string       `json:"name" db:"name"`
	Description string       `json:"description" db:"description"`
	Location    string       `json:"location" db:"location"`
	Latitude    *float64     `json:"latitude,omitempty" db:"latitude"`
	Longitude   *float64     `json:"longitude,omitempty" db:"longitude"`
	Status      SourceStatus `json:"status" db:"status"`
	URL         string       `json:"url,omitempty" db:"url"`
	AccessToken string       `json:"-" db:"access_token"`
	ObjectKey   string       `json:"object_key,omitempty" db:"object_key"`
	ThumbKey    string       `json:"thumb_key,omitempty" db:"thumb_key"`

	// Probed video metadata, populated by the media worker.
	Duration   float64 `json:"duration,omitempty" db:"duration"`
	Width      int     `json:"width,omitempty" db:"width"`
	Height     int     `json:"height,omitempty" db:"height"`
	FPS        float64 `json:"fps,omitempty" db:"fps"`
	Codec      string  `json:"codec,omitempty" db:"codec"`
	AudioCodec string  `json:"audio_codec,omitempty" db:"audio_codec"`
	SizeBytes  int64   `json:"size_bytes,omitempty" db:"size_bytes"`

	ErrorMessage string    `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// MediaTask is the message published to NATS for the media worker.
type MediaTask struct {
	SourceID    uuid.UUID `json:"source_id"`
	ObjectKey   string    `json:"object_key"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SourceEvent is published on the EVENTS stream whenever a source changes
// state; the API broadcasts it to WebSocket clients.
type SourceEvent struct {
	SourceID  uuid.UUID    `json:"source_id"`
	Status    SourceStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

package dto

import "github.com/google/uuid"

type CreateCaseRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type UpdateCaseRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CaseResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

type CreateTargetRequest struct {
	CaseID uuid.UUID `json:"case_id" binding:"required"`
	Name   string    `json:"name" binding:"required"`
	Gender string    `json:"gender"`
	Notes  string    `json:"notes"`
}

type UpdateTargetRequest struct {
	Name   *string `json:"name,omitempty"`
	Gender *string `json:"gender,omitempty"`
	Status *string `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

type TargetResponse struct {
	ID         uuid.UUID `json:"id"`
	CaseID     uuid.UUID `json:"case_id"`
	Name       string    `json:"name"`
	Gender     string    `json:"gender"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
	PhotoCount int       `json:"photo_count"`
	CreatedAt  string    `json:"created_at"`
	UpdatedAt  string    `json:"updated_at"`
}

type PhotoResponse struct {
	ID          uuid.UUID `json:"id"`
	TargetID    uuid.UUID `json:"target_id"`
	ContentType string    `json:"content_type"`
	TakenAt     *string   `json:"taken_at,omitempty"`
	UploadedAt  string    `json:"uploaded_at"`
	URL         string    `json:"url,omitempty"`
}

type SearchQuery struct {
	Limit     int     `form:"limit"`
	Threshold float64 `form:"threshold"`
}

type SearchMatch struct {
	TargetID   uuid.UUID `json:"target_id"`
	TargetName string    `json:"target_name"`
	CaseID     uuid.UUID `json:"case_id"`
	PhotoID    uuid.UUID `json:"photo_id"`
	Score      float64   `json:"score"`
	PhotoURL   string    `json:"photo_url,omitempty"`
}

type SearchResponse struct {
	Matches []SearchMatch `json:"matches"`
	Total   int           `json:"total"`
}

type DetectedFace struct {
	BBox             [4]float32 `json:"bbox"`
	Confidence       float32    `json:"confidence"`
	Gender           string     `json:"gender"`
	GenderConfidence float32    `json:"gender_confidence"`
	Age              int        `json:"age"`
	AgeRange         string     `json:"age_range"`
}

type DetectResponse struct {
	Faces []DetectedFace `json:"faces"`
	Total int            `json:"total"`
}

type EmbedResponse struct {
	Face      DetectedFace `json:"face"`
	Embedding []float32    `json:"embedding"`
	Dimension int          `json:"dimension"`
}

type VerifyResponse struct {
	Similarity float32      `json:"similarity"`
	Match      bool         `json:"match"`
	FaceA      DetectedFace `json:"face_a"`
	FaceB      DetectedFace `json:"face_b"`
}

type IndexStatusResponse struct {
	Records   int `json:"records"`
	Targets   int `json:"targets"`
	Dimension int `json:"dimension"`
}

package handlers

import (
	"fmt"

	"github.com/your-org/watchtower/internal/models"
	"github.com/your-org/watchtower/internal/vision"
	"github.com/your-org/watchtower/pkg/dto"
)

const timeFormat = "2006-01-02T15:04:05Z"

func caseResponse(c *models.Case) dto.CaseResponse {
	return dto.CaseResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		CreatedAt:   c.CreatedAt.Format(timeFormat),
		UpdatedAt:   c.UpdatedAt.Format(timeFormat),
	}
}

func targetResponse(t *models.Target, photoCount int) dto.TargetResponse {
	return dto.TargetResponse{
		ID:         t.ID,
		CaseID:     t.CaseID,
		Name:       t.Name,
		Gender:     string(t.Gender),
		Status:     string(t.Status),
		Notes:      t.Notes,
		PhotoCount: photoCount,
		CreatedAt:  t.CreatedAt.Format(timeFormat),
		UpdatedAt:  t.UpdatedAt.Format(timeFormat),
	}
}

func photoResponse(p *models.TargetPhoto, baseURL string) dto.PhotoResponse {
	resp := dto.PhotoResponse{
		ID:          p.ID,
		TargetID:    p.TargetID,
		ContentType: p.ContentType,
		UploadedAt:  p.UploadedAt.Format(timeFormat),
	}
	if p.TakenAt != nil {
		taken := p.TakenAt.Format(timeFormat)
		resp.TakenAt = &taken
	}
	if baseURL != "" {
		resp.URL = photoURL(baseURL, p)
	}
	return resp
}

func photoURL(baseURL string, p *models.TargetPhoto) string {
	return fmt.Sprintf("%s/v1/targets/%s/photos/%s/image", baseURL, p.TargetID, p.ID)
}

func sourceResponse(src *models.Source, baseURL string) dto.SourceResponse {
	resp := dto.SourceResponse{
		ID:           src.ID,
		Kind:         string(src.Kind),
		Name:         src.Name,
		Description:  src.Description,
		Location:     src.Location,
		Latitude:     src.Latitude,
		Longitude:    src.Longitude,
		Status:       string(src.Status),
		URL:          src.URL,
		Duration:     src.Duration,
		Width:        src.Width,
		Height:       src.Height,
		FPS:          src.FPS,
		Codec:        src.Codec,
		AudioCodec:   src.AudioCodec,
		SizeBytes:    src.SizeBytes,
		ErrorMessage: src.ErrorMessage,
		CreatedAt:    src.CreatedAt.Format(timeFormat),
		UpdatedAt:    src.UpdatedAt.Format(timeFormat),
	}
	if src.ThumbKey != "" && baseURL != "" {
		resp.ThumbnailURL = fmt.Sprintf("%s/v1/sources/%s/thumbnail", baseURL, src.ID)
	}
	return resp
}

func jobResponse(j *models.ProcessingJob) dto.JobResponse {
	resp := dto.JobResponse{
		ID:            j.ID,
		SourceID:      j.SourceID,
		ExternalJobID: j.ExternalJobID,
		Status:        string(j.Status),
		ErrorMessage:  j.ErrorMessage,
		SubmittedAt:   j.SubmittedAt.Format(timeFormat),
	}
	if j.CompletedAt != nil {
		completed := j.CompletedAt.Format(timeFormat)
		resp.CompletedAt = &completed
	}
	return resp
}

func faceResponse(f *vision.Face) dto.DetectedFace {
	return dto.DetectedFace{
		BBox:             f.BBox,
		Confidence:       f.Confidence,
		Gender:           f.Gender,
		GenderConfidence: f.GenderConfidence,
		Age:              f.Age,
		AgeRange:         f.AgeRange,
	}
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/watchtower/internal/enroll"
	"github.com/your-org/watchtower/internal/models"
	"github.com/your-org/watchtower/internal/storage"
	"github.com/your-org/watchtower/internal/vision"
	"github.com/your-org/watchtower/pkg/dto"
)

type TargetHandler struct {
	db      *storage.PostgresStore
	minio   *storage.MinIOStore
	enroll  *enroll.Service
	baseURL string
}

func NewTargetHandler(db *storage.PostgresStore, minio *storage.MinIOStore, enrollSvc *enroll.Service, baseURL string) *TargetHandler {
	return &TargetHandler{db: db, minio: minio, enroll: enrollSvc, baseURL: baseURL}
}

func (h *TargetHandler) Create(c *gin.Context) {
	var req dto.CreateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Verify case exists
	cs, err := h.db.GetCase(c.Request.Context(), req.CaseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if cs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "case not found"})
		return
	}

	gender := models.Gender(req.Gender)
	if req.Gender != "" && !gender.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gender"})
		return
	}

	target := &models.Target{
		CaseID: req.CaseID,
		Name:   req.Name,
		Gender: gender,
		Notes:  req.Notes,
	}
	if err := h.db.CreateTarget(c.Request.Context(), target); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, targetResponse(target, 0))
}

func (h *TargetHandler) List(c *gin.Context) {
	var caseID *uuid.UUID
	if caseStr := c.Query("case_id"); caseStr != "" {
		id, err := uuid.Parse(caseStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid case_id"})
			return
		}
		caseID = &id
	}

	targets, err := h.db.ListTargets(c.Request.Context(), caseID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.TargetResponse, 0, len(targets))
	for i := range targets {
		count, _ := h.db.CountPhotos(c.Request.Context(), targets[i].ID)
		resp = append(resp, targetResponse(&targets[i], count))
	}
	c.JSON(http.StatusOK, gin.H{"targets": resp, "total": len(resp)})
}

func (h *TargetHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	target, err := h.db.GetTarget(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
		return
	}

	count, _ := h.db.CountPhotos(c.Request.Context(), id)
	c.JSON(http.StatusOK, targetResponse(target, count))
}

func (h *TargetHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	var req dto.UpdateTargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	target, err := h.db.GetTarget(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
		return
	}

	if req.Name != nil {
		target.Name = *req.Name
	}
	if req.Gender != nil {
		gender := models.Gender(*req.Gender)
		if !gender.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gender"})
			return
		}
		target.Gender = gender
	}
	if req.Status != nil {
		status := models.TargetStatus(*req.Status)
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		target.Status = status
	}
	if req.Notes != nil {
		target.Notes = *req.Notes
	}

	if err := h.db.UpdateTarget(c.Request.Context(), target); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	count, _ := h.db.CountPhotos(c.Request.Context(), id)
	c.JSON(http.StatusOK, targetResponse(target, count))
}

// Delete removes a target with its photos and index records.
func (h *TargetHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	target, err := h.db.GetTarget(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
		return
	}

	if err := h.enroll.RemoveTarget(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.DeleteTarget(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// UploadPhoto accepts a multipart image upload and enrolls it into the
// target's gallery. The photo must contain a detectable face.
func (h *TargetHandler) UploadPhoto(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	photo, err := h.enroll.AddPhoto(c.Request.Context(), targetID, imageData, contentType)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
		case errors.Is(err, vision.ErrNoFace):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no face detected in image"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, photoResponse(photo, h.baseURL))
}

// ReplacePhoto swaps the image bytes of an existing gallery photo. Like an
// upload, the new image must contain a detectable face.
func (h *TargetHandler) ReplacePhoto(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}
	photoID, err := uuid.Parse(c.Param("photoId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	photo, err := h.enroll.ReplacePhoto(c.Request.Context(), targetID, photoID, imageData, contentType)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		case errors.Is(err, vision.ErrNoFace):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no face detected in image"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, photoResponse(photo, h.baseURL))
}

func (h *TargetHandler) ListPhotos(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	photos, err := h.db.ListPhotos(c.Request.Context(), targetID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PhotoResponse, 0, len(photos))
	for i := range photos {
		resp = append(resp, photoResponse(&photos[i], h.baseURL))
	}
	c.JSON(http.StatusOK, gin.H{"photos": resp, "total": len(resp)})
}

// GetPhotoImage serves the photo bytes from object storage.
func (h *TargetHandler) GetPhotoImage(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}
	photoID, err := uuid.Parse(c.Param("photoId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	photo, err := h.db.GetPhoto(c.Request.Context(), targetID, photoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if photo == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), photo.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch image failed"})
		return
	}
	c.Data(http.StatusOK, photo.ContentType, data)
}

// DeletePhoto removes one gallery photo. The last photo of a target cannot
// be deleted; delete the target instead.
func (h *TargetHandler) DeletePhoto(c *gin.Context) {
	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}
	photoID, err := uuid.Parse(c.Param("photoId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid photo id"})
		return
	}

	if err := h.enroll.DeletePhoto(c.Request.Context(), targetID, photoID); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "photo not found"})
		case errors.Is(err, enroll.ErrLastPhoto):
			c.JSON(http.StatusConflict, gin.H{"error": "cannot delete the last photo of a target; delete the target instead"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/watchtower/internal/enroll"
	"github.com/your-org/watchtower/internal/index"
	"github.com/your-org/watchtower/internal/storage"
	"github.com/your-org/watchtower/internal/vision"
	"github.com/your-org/watchtower/pkg/dto"
)

type SearchHandler struct {
	enroll  *enroll.Service
	index   *index.Client
	baseURL string
}

func NewSearchHandler(enrollSvc *enroll.Service, idx *index.Client, baseURL string) *SearchHandler {
	return &SearchHandler{enroll: enrollSvc, index: idx, baseURL: baseURL}
}

// Search runs an identity search against the watchlist using an uploaded
// probe image.
func (h *SearchHandler) Search(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
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

	var query dto.SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	matches, err := h.enroll.Search(c.Request.Context(), imageData, query.Limit, query.Threshold)
	if err != nil {
		if errors.Is(err, vision.ErrNoFace) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no face detected in image"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.SearchMatch, 0, len(matches))
	for _, m := range matches {
		match := dto.SearchMatch{
			TargetID:   m.Target.ID,
			TargetName: m.Target.Name,
			CaseID:     m.Target.CaseID,
			PhotoID:    m.Photo.ID,
			Score:      m.Score,
		}
		if h.baseURL != "" {
			match.PhotoURL = photoURL(h.baseURL, m.Photo)
		}
		resp = append(resp, match)
	}
	c.JSON(http.StatusOK, dto.SearchResponse{Matches: resp, Total: len(resp)})
}

// Status reports what the vector index currently holds.
func (h *SearchHandler) Status(c *gin.Context) {
	status, err := h.index.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.IndexStatusResponse{
		Records:   status.Records,
		Targets:   status.Targets,
		Dimension: status.Dimension,
	})
}

// ReconcileTarget repairs drift between a target's gallery and its index
// records: orphaned records are removed, unindexed photos enrolled.
func (h *SearchHandler) ReconcileTarget(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	added, removed, err := h.enroll.Reconcile(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reconciled", "records_added": added, "records_removed": removed})
}

// PurgeTarget drops a target's index records without touching its gallery.
func (h *SearchHandler) PurgeTarget(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	removed, err := h.enroll.PurgeIndex(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "target not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "purged", "records_removed": removed})
}

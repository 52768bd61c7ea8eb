package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/watchtower/internal/models"
	"github.com/your-org/watchtower/internal/queue"
	"github.com/your-org/watchtower/internal/storage"
	"github.com/your-org/watchtower/pkg/dto"
)

// IntegrationHandler serves the endpoints that sibling services call with a
// per-resource access token instead of an API key: video streaming and
// download, and processing-completion callbacks.
type IntegrationHandler struct {
	db       *storage.PostgresStore
	minio    *storage.MinIOStore
	producer *queue.Producer
}

func NewIntegrationHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer) *IntegrationHandler {
	return &IntegrationHandler{db: db, minio: minio, producer: producer}
}

func (h *IntegrationHandler) resolveSource(c *gin.Context) *models.Source {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil
	}

	src, err := h.db.GetSourceByToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil
	}
	// Unknown tokens look identical to missing resources.
	if src == nil || src.ObjectKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil
	}
	return src
}

// Metadata describes the media behind a token so callers can decide how to
// consume it before streaming.
func (h *IntegrationHandler) Metadata(c *gin.Context) {
	src := h.resolveSource(c)
	if src == nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"source_id":   src.ID,
		"name":        src.Name,
		"kind":        src.Kind,
		"status":      src.Status,
		"duration":    src.Duration,
		"width":       src.Width,
		"height":      src.Height,
		"fps":         src.FPS,
		"codec":       src.Codec,
		"audio_codec": src.AudioCodec,
		"size_bytes":  src.SizeBytes,
	})
}

// Stream serves the source's media with HTTP Range support so video players
// can seek.
func (h *IntegrationHandler) Stream(c *gin.Context) {
	src := h.resolveSource(c)
	if src == nil {
		return
	}

	size, contentType, err := h.minio.StatObject(c.Request.Context(), src.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stat media failed"})
		return
	}
	if contentType == "" {
		contentType = "video/mp4"
	}

	start, end, partial, err := parseRangeHeader(c.GetHeader("Range"), size)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	var reader io.ReadCloser
	if partial {
		reader, err = h.minio.OpenObjectRange(c.Request.Context(), src.ObjectKey, start, end)
	} else {
		reader, err = h.minio.OpenObject(c.Request.Context(), src.ObjectKey)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open media failed"})
		return
	}
	defer reader.Close()

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(end-start+1, 10))

	if partial {
		c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		c.Status(http.StatusPartialContent)
	} else {
		c.Status(http.StatusOK)
	}

	_, _ = io.Copy(c.Writer, reader)
}

// Download serves the full media file as an attachment.
func (h *IntegrationHandler) Download(c *gin.Context) {
	src := h.resolveSource(c)
	if src == nil {
		return
	}

	size, contentType, err := h.minio.StatObject(c.Request.Context(), src.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stat media failed"})
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	reader, err := h.minio.OpenObject(c.Request.Context(), src.ObjectKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open media failed"})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", src.Name))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, reader)
}

// ProcessingCallback records the outcome of an external processing job and
// publishes the resulting source status change.
func (h *IntegrationHandler) ProcessingCallback(c *gin.Context) {
	token := c.Param("token")

	job, err := h.db.GetJobByToken(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if job.CompletedAt != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "job already completed"})
		return
	}

	var req dto.ProcessingCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobStatus := models.JobStatusCompleted
	sourceStatus := models.SourceStatusReady
	if req.Status != "completed" {
		jobStatus = models.JobStatusFailed
		sourceStatus = models.SourceStatusFailed
		if req.Error == "" {
			req.Error = "processing failed"
		}
	}

	if err := h.db.CompleteJob(c.Request.Context(), job.ID, jobStatus, req.Error); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.UpdateSourceStatus(c.Request.Context(), job.SourceID, sourceStatus, req.Error); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	event := models.SourceEvent{
		SourceID:  job.SourceID,
		Status:    sourceStatus,
		Error:     req.Error,
		Timestamp: time.Now().UTC(),
	}
	_ = h.producer.PublishEvent(c.Request.Context(), job.SourceID.String(), event)

	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}

// parseRangeHeader handles single-range "bytes=start-end" headers. Returns
// the absolute byte span (end inclusive) and whether the response is partial.
func parseRangeHeader(header string, size int64) (start, end int64, partial bool, err error) {
	if header == "" {
		return 0, size - 1, false, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return 0, 0, false, fmt.Errorf("unsupported range %q", header)
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false, fmt.Errorf("malformed range %q", header)
	}

	if startStr == "" {
		// Suffix range: last N bytes.
		n, perr := strconv.ParseInt(endStr, 10, 64)
		if perr != nil || n <= 0 {
			return 0, 0, false, fmt.Errorf("malformed range %q", header)
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true, nil
	}

	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false, fmt.Errorf("range start out of bounds %q", header)
	}

	end = size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return 0, 0, false, fmt.Errorf("malformed range %q", header)
		}
		if end >= size {
			end = size - 1
		}
	}
	return start, end, true, nil
}

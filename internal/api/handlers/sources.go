package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/watchtower/internal/models"
	"github.com/your-org/watchtower/internal/notify"
	"github.com/your-org/watchtower/internal/queue"
	"github.com/your-org/watchtower/internal/storage"
	"github.com/your-org/watchtower/pkg/dto"
)

type SourceHandler struct {
	db        *storage.PostgresStore
	minio     *storage.MinIOStore
	producer  *queue.Producer
	ingestion *notify.IngestionClient
	processor *notify.ProcessorClient
	baseURL   string
}

func NewSourceHandler(db *storage.PostgresStore, minio *storage.MinIOStore, producer *queue.Producer,
	ingestion *notify.IngestionClient, processor *notify.ProcessorClient, baseURL string) *SourceHandler {
	return &SourceHandler{
		db:        db,
		minio:     minio,
		producer:  producer,
		ingestion: ingestion,
		processor: processor,
		baseURL:   baseURL,
	}
}

// newAccessToken mints an unguessable token for integration endpoints.
func newAccessToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Create registers a new source. File sources start in "uploading" and wait
// for the media upload; camera/stream sources are ready immediately and the
// ingestion service is notified.
func (h *SourceHandler) Create(c *gin.Context) {
	var req dto.CreateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := models.SourceKind(req.Kind)
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source kind"})
		return
	}
	if (kind == models.SourceKindCamera || kind == models.SourceKindStream) && req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url required for camera and stream sources"})
		return
	}

	token, err := newAccessToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	src := &models.Source{
		Kind:        kind,
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		URL:         req.URL,
		AccessToken: token,
		Status:      models.SourceStatusReady,
	}
	if kind == models.SourceKindFile {
		src.Status = models.SourceStatusUploading
	}

	if err := h.db.CreateSource(c.Request.Context(), src); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Live sources are consumable right away; tell the ingestion service.
	if kind != models.SourceKindFile {
		h.ingestion.NotifySourceCreated(c.Request.Context(), src.ID, string(kind), src.Name,
			src.URL, "", src.AccessToken)
	}

	c.JSON(http.StatusCreated, sourceResponse(src, h.baseURL))
}

func (h *SourceHandler) List(c *gin.Context) {
	var kind *models.SourceKind
	if kindStr := c.Query("kind"); kindStr != "" {
		k := models.SourceKind(kindStr)
		if !k.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source kind"})
			return
		}
		kind = &k
	}

	sources, err := h.db.ListSources(c.Request.Context(), kind)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.SourceResponse, 0, len(sources))
	for i := range sources {
		resp = append(resp, sourceResponse(&sources[i], h.baseURL))
	}
	c.JSON(http.StatusOK, gin.H{"sources": resp, "total": len(resp)})
}

func (h *SourceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}

	src, err := h.db.GetSource(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	c.JSON(http.StatusOK, sourceResponse(src, h.baseURL))
}

func (h *SourceHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}

	var req dto.UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, err := h.db.GetSource(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}

	if req.Name != nil {
		src.Name = *req.Name
	}
	if req.Description != nil {
		src.Description = *req.Description
	}
	if req.Location != nil {
		src.Location = *req.Location
	}
	if req.Latitude != nil {
		src.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		src.Longitude = req.Longitude
	}
	if req.URL != nil {
		if src.Kind == models.SourceKindFile {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url is not settable on file sources"})
			return
		}
		src.URL = *req.URL
	}

	if err := h.db.UpdateSource(c.Request.Context(), src); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sourceResponse(src, h.baseURL))
}

// Delete removes a source with its stored media and thumbnail.
func (h *SourceHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}

	src, err := h.db.GetSource(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}

	if err := h.db.DeleteSource(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if err := h.minio.DeletePrefix(c.Request.Context(), fmt.Sprintf("sources/%s/", id)); err != nil {
		// Rows are gone; leftover objects are an operator cleanup problem.
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "warning": "media cleanup incomplete"})
		return
	}

	if src.Kind != models.SourceKindFile {
		h.ingestion.NotifySourceDeleted(c.Request.Context(), id)
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Upload receives the media file for a file source, stores it and queues a
// media inspection task. Moves the source from "uploading" to "processing".
func (h *SourceHandler) Upload(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}

	src, err := h.db.GetSource(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	if src.Kind != models.SourceKindFile {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only file sources accept uploads"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media file required"})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := fmt.Sprintf("sources/%s/media%s", id, filepath.Ext(header.Filename))
	if err := h.minio.PutObjectStream(c.Request.Context(), key, file, header.Size, contentType); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store media failed"})
		return
	}

	src.ObjectKey = key
	src.SizeBytes = header.Size
	if err := h.db.UpdateSourceMedia(c.Request.Context(), src); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.UpdateSourceStatus(c.Request.Context(), id, models.SourceStatusProcessing, ""); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	task := models.MediaTask{SourceID: id, ObjectKey: key, SubmittedAt: time.Now().UTC()}
	if err := h.producer.PublishMediaTask(c.Request.Context(), id.String(), task); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue media task failed"})
		return
	}

	event := models.SourceEvent{SourceID: id, Status: models.SourceStatusProcessing, Timestamp: time.Now().UTC()}
	_ = h.producer.PublishEvent(c.Request.Context(), id.String(), event)

	// Downloadable now; tell the ingestion service where to fetch it.
	h.ingestion.NotifySourceCreated(c.Request.Context(), id, string(src.Kind), src.Name,
		h.integrationURL(src.AccessToken, "stream"),
		h.integrationURL(src.AccessToken, "download"),
		src.AccessToken)

	src.Status = models.SourceStatusProcessing
	c.JSON(http.StatusAccepted, sourceResponse(src, h.baseURL))
}

// Process submits the source's media to the processing service and records
// the job. The callback token authenticates the completion report.
func (h *SourceHandler) Process(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}

	src, err := h.db.GetSource(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if src == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "source not found"})
		return
	}
	if src.ObjectKey == "" {
		c.JSON(http.StatusConflict, gin.H{"error": "source has no uploaded media"})
		return
	}

	callbackToken, err := newAccessToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	job := &models.ProcessingJob{
		SourceID:      id,
		CallbackToken: callbackToken,
		Status:        models.JobStatusPending,
	}
	if err := h.db.CreateJob(c.Request.Context(), job); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	callbackURL := fmt.Sprintf("%s/integration/processing-callback/%s", h.baseURL, callbackToken)
	externalID, err := h.processor.SubmitJob(c.Request.Context(), id,
		h.integrationURL(src.AccessToken, "download"), callbackURL)
	if err != nil {
		_ = h.db.CompleteJob(c.Request.Context(), job.ID, models.JobStatusFailed, err.Error())
		c.JSON(http.StatusBadGateway, gin.H{"error": "processing service unavailable: " + err.Error()})
		return
	}

	if err := h.db.UpdateJobExternalID(c.Request.Context(), job.ID, externalID, models.JobStatusProcessing); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	job.ExternalJobID = externalID
	job.Status = models.JobStatusProcessing
	c.JSON(http.StatusAccepted, jobResponse(job))
}

func (h *SourceHandler) ListJobs(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}

	jobs, err := h.db.ListJobs(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.JobResponse, 0, len(jobs))
	for i := range jobs {
		resp = append(resp, jobResponse(&jobs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": resp, "total": len(resp)})
}

// Thumbnail serves the worker-generated preview frame.
func (h *SourceHandler) Thumbnail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source id"})
		return
	}

	src, err := h.db.GetSource(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if src == nil || src.ThumbKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "thumbnail not found"})
		return
	}

	data, err := h.minio.GetObject(c.Request.Context(), src.ThumbKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch thumbnail failed"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *SourceHandler) integrationURL(token, action string) string {
	return fmt.Sprintf("%s/integration/video/%s/%s", h.baseURL, token, action)
}

package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/watchtower/internal/vision"
	"github.com/your-org/watchtower/pkg/dto"
)

type FaceHandler struct {
	engine          *vision.Engine
	verifyThreshold float32
}

func NewFaceHandler(engine *vision.Engine, verifyThreshold float32) *FaceHandler {
	return &FaceHandler{engine: engine, verifyThreshold: verifyThreshold}
}

// Detect finds every face in an uploaded image and returns boxes and
// demographics. No watchlist involvement.
func (h *FaceHandler) Detect(c *gin.Context) {
	imageData, ok := readFormImage(c, "image")
	if !ok {
		return
	}

	faces, err := h.engine.DetectFaces(imageData)
	if err != nil {
		if errors.Is(err, vision.ErrNoFace) {
			c.JSON(http.StatusOK, dto.DetectResponse{Faces: []dto.DetectedFace{}, Total: 0})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.DetectedFace, 0, len(faces))
	for i := range faces {
		resp = append(resp, faceResponse(&faces[i]))
	}
	c.JSON(http.StatusOK, dto.DetectResponse{Faces: resp, Total: len(resp)})
}

// Embed returns the identity embedding of the highest-confidence face in an
// uploaded image, for callers that run their own similarity logic.
func (h *FaceHandler) Embed(c *gin.Context) {
	imageData, ok := readFormImage(c, "image")
	if !ok {
		return
	}

	face, err := h.engine.EmbedLargest(imageData)
	if err != nil {
		if errors.Is(err, vision.ErrNoFace) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "no face detected in image"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.EmbedResponse{
		Face:      faceResponse(face),
		Embedding: face.Embedding,
		Dimension: len(face.Embedding),
	})
}

// Verify compares the largest face in two uploaded images.
func (h *FaceHandler) Verify(c *gin.Context) {
	imageA, ok := readFormImage(c, "image_a")
	if !ok {
		return
	}
	imageB, ok := readFormImage(c, "image_b")
	if !ok {
		return
	}

	result, err := h.engine.Verify(imageA, imageB, h.verifyThreshold)
	if err != nil {
		if errors.Is(err, vision.ErrNoFace) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.VerifyResponse{
		Similarity: result.Similarity,
		Match:      result.Match,
		FaceA:      faceResponse(&result.FaceA),
		FaceB:      faceResponse(&result.FaceB),
	})
}

func readFormImage(c *gin.Context, field string) ([]byte, bool) {
	file, _, err := c.Request.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": field + " file required"})
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return nil, false
	}
	return data, true
}

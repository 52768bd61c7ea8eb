package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/watchtower/internal/config"
	"github.com/your-org/watchtower/internal/observability"
)

// ErrNoFace is returned when an image contains no detectable face.
// Callers decide whether that is an error for their operation.
var ErrNoFace = errors.New("no face detected")

// Face is one detected face: location, demographics and identity vector.
type Face struct {
	BBox             [4]float32 `json:"bbox"`
	Confidence       float32    `json:"confidence"`
	Gender           string     `json:"gender"`
	GenderConfidence float32    `json:"gender_confidence"`
	Age              int        `json:"age"`
	AgeRange         string     `json:"age_range"`
	Embedding        []float32  `json:"-"`
}

// VerifyResult is the outcome of a pairwise face comparison.
type VerifyResult struct {
	Similarity float32
	Match      bool
	FaceA      Face
	FaceB      Face
}

// Engine bundles the detection, embedding and attribute models into the
// face adapter used by enrollment, search and verification. One model call
// per image, no retries.
type Engine struct {
	detector   *Detector
	embedder   *Embedder
	attributor *Attributor
}

// NewEngine loads all ONNX models from cfg.ModelsDir.
func NewEngine(cfg config.VisionConfig) (*Engine, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	embPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")
	attrPath := filepath.Join(cfg.ModelsDir, "genderage.onnx")

	slog.Info("loading detection model", "path", detPath)
	det, err := NewDetector(detPath, float32(cfg.DetectionThreshold))
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embPath)
	emb, err := NewEmbedder(embPath)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("loading attribute model", "path", attrPath)
	attr, err := NewAttributor(attrPath)
	if err != nil {
		det.Close()
		emb.Close()
		return nil, fmt.Errorf("load attributor: %w", err)
	}

	slog.Info("face engine ready")

	return &Engine{detector: det, embedder: emb, attributor: attr}, nil
}

// DetectFaces returns every detectable face in the image with bounding box,
// demographics and identity embedding. An image with zero faces yields
// ErrNoFace.
func (e *Engine) DetectFaces(imageData []byte) ([]Face, error) {
	img, err := decodeImage(imageData)
	if err != nil {
		return nil, err
	}

	dets, err := e.detect(img)
	if err != nil {
		return nil, err
	}
	if len(dets) == 0 {
		return nil, ErrNoFace
	}

	faces := make([]Face, 0, len(dets))
	for _, det := range dets {
		face, err := e.describe(img, det)
		if err != nil {
			slog.Warn("describe face", "error", err)
			continue
		}
		faces = append(faces, *face)
	}
	if len(faces) == 0 {
		return nil, ErrNoFace
	}
	return faces, nil
}

// EmbedLargest returns the highest-confidence face in the image, or
// ErrNoFace when none is found. Used for enrollment and query embedding.
func (e *Engine) EmbedLargest(imageData []byte) (*Face, error) {
	img, err := decodeImage(imageData)
	if err != nil {
		return nil, err
	}

	dets, err := e.detect(img)
	if err != nil {
		return nil, err
	}
	if len(dets) == 0 {
		return nil, ErrNoFace
	}

	best := dets[0]
	for _, d := range dets[1:] {
		if d.Confidence > best.Confidence {
			best = d
		}
	}

	return e.describe(img, best)
}

// Verify embeds both images and compares identity vectors. threshold is a
// 0..1 cosine similarity cutoff for declaring a match.
func (e *Engine) Verify(imageA, imageB []byte, threshold float32) (*VerifyResult, error) {
	faceA, err := e.EmbedLargest(imageA)
	if err != nil {
		return nil, fmt.Errorf("first image: %w", err)
	}
	faceB, err := e.EmbedLargest(imageB)
	if err != nil {
		return nil, fmt.Errorf("second image: %w", err)
	}

	sim := Cosine(faceA.Embedding, faceB.Embedding)

	return &VerifyResult{
		Similarity: sim,
		Match:      sim >= threshold,
		FaceA:      *faceA,
		FaceB:      *faceB,
	}, nil
}

func (e *Engine) detect(img image.Image) ([]Detection, error) {
	bounds := img.Bounds()

	start := time.Now()
	input := preprocessForDetection(img, e.detector.inputW, e.detector.inputH)
	dets, err := e.detector.Detect(input, bounds.Dx(), bounds.Dy())
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	return dets, nil
}

// describe crops one detection and runs the embedding and attribute models.
func (e *Engine) describe(img image.Image, det Detection) (*Face, error) {
	crop := cropFace(img, det.BBox)
	if crop == nil {
		return nil, fmt.Errorf("degenerate face box")
	}

	start := time.Now()
	embInput := preprocessForEmbedding(crop, e.embedder.inputW, e.embedder.inputH)
	embedding, err := e.embedder.Embed(embInput)
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	face := &Face{
		BBox:       det.BBox,
		Confidence: det.Confidence,
		Embedding:  embedding,
	}

	start = time.Now()
	attrInput := preprocessForAttributes(crop, e.attributor.inputW, e.attributor.inputH)
	attrs, err := e.attributor.Predict(attrInput)
	observability.InferenceDuration.WithLabelValues("attrs").Observe(time.Since(start).Seconds())
	if err != nil {
		slog.Warn("attribute prediction", "error", err)
	} else {
		face.Gender = attrs.Gender
		face.GenderConfidence = attrs.GenderConfidence
		face.Age = attrs.Age
		face.AgeRange = attrs.AgeRange
	}

	return face, nil
}

// Close releases all ONNX sessions.
func (e *Engine) Close() {
	if e.detector != nil {
		e.detector.Close()
	}
	if e.embedder != nil {
		e.embedder.Close()
	}
	if e.attributor != nil {
		e.attributor.Close()
	}
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

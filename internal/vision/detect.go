package vision

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection is one detected face in original-image pixel coordinates.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2
	Confidence float32
	Landmarks  [5][2]float32 // eyes, nose, mouth corners
}

// detLevel describes one feature-map level of the RetinaFace det_10g model.
// The model emits scores/boxes/landmarks per anchor at three strides, with
// two anchors per feature-map cell and no batch dimension.
type detLevel struct {
	stride  int
	anchors int64 // total anchors at this stride for 640x640 input
	score   string
	bbox    string
	kps     string
}

var detLevels = []detLevel{
	{stride: 8, anchors: 12800, score: "448", bbox: "451", kps: "454"},
	{stride: 16, anchors: 3200, score: "471", bbox: "474", kps: "477"},
	{stride: 32, anchors: 800, score: "494", bbox: "497", kps: "500"},
}

const anchorsPerCell = 2

// Detector runs RetinaFace face detection via ONNX Runtime.
type Detector struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	scores    []*ort.Tensor[float32]
	bboxes    []*ort.Tensor[float32]
	kps       []*ort.Tensor[float32]
	threshold float32
	inputW    int
	inputH    int
}

// NewDetector loads the RetinaFace ONNX model.
func NewDetector(modelPath string, threshold float32) (*Detector, error) {
	const inputW, inputH = 640, 640

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, inputH, inputW))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	d := &Detector{
		input:     input,
		threshold: threshold,
		inputW:    inputW,
		inputH:    inputH,
	}

	var names []string
	var values []ort.Value

	alloc := func(name string, shape ort.Shape) (*ort.Tensor[float32], error) {
		t, err := ort.NewEmptyTensor[float32](shape)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create output tensor %s: %w", name, err)
		}
		names = append(names, name)
		values = append(values, t)
		return t, nil
	}

	for _, lvl := range detLevels {
		t, err := alloc(lvl.score, ort.NewShape(lvl.anchors, 1))
		if err != nil {
			return nil, err
		}
		d.scores = append(d.scores, t)
	}
	for _, lvl := range detLevels {
		t, err := alloc(lvl.bbox, ort.NewShape(lvl.anchors, 4))
		if err != nil {
			return nil, err
		}
		d.bboxes = append(d.bboxes, t)
	}
	for _, lvl := range detLevels {
		t, err := alloc(lvl.kps, ort.NewShape(lvl.anchors, 10))
		if err != nil {
			return nil, err
		}
		d.kps = append(d.kps, t)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		names,
		[]ort.Value{input},
		values,
		nil,
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create detector session: %w", err)
	}
	d.session = session

	return d, nil
}

// Detect runs face detection on a preprocessed image in CHW float32 form.
// origW/origH are the source image dimensions used to scale coordinates back.
func (d *Detector) Detect(imgData []float32, origW, origH int) ([]Detection, error) {
	copy(d.input.GetData(), imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	return suppressOverlaps(d.decode(origW, origH), 0.4), nil
}

// decode converts anchor-relative distances into pixel-space boxes and
// landmarks. Distances are emitted in stride units.
func (d *Detector) decode(origW, origH int) []Detection {
	var dets []Detection

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	for li, lvl := range detLevels {
		scores := d.scores[li].GetData()
		boxes := d.bboxes[li].GetData()
		marks := d.kps[li].GetData()

		cellsW := d.inputW / lvl.stride
		cellsH := d.inputH / lvl.stride
		st := float32(lvl.stride)

		idx := 0
		for cy := 0; cy < cellsH; cy++ {
			for cx := 0; cx < cellsW; cx++ {
				for a := 0; a < anchorsPerCell; a++ {
					score := scores[idx]
					if score < d.threshold {
						idx++
						continue
					}

					ax := float32(cx) * st
					ay := float32(cy) * st

					x1 := clamp((ax-boxes[idx*4+0]*st)*scaleW, 0, float32(origW))
					y1 := clamp((ay-boxes[idx*4+1]*st)*scaleH, 0, float32(origH))
					x2 := clamp((ax+boxes[idx*4+2]*st)*scaleW, 0, float32(origW))
					y2 := clamp((ay+boxes[idx*4+3]*st)*scaleH, 0, float32(origH))

					var lm [5][2]float32
					for k := 0; k < 5; k++ {
						lm[k][0] = (ax + marks[idx*10+k*2]*st) * scaleW
						lm[k][1] = (ay + marks[idx*10+k*2+1]*st) * scaleH
					}

					dets = append(dets, Detection{
						BBox:       [4]float32{x1, y1, x2, y2},
						Confidence: score,
						Landmarks:  lm,
					})
					idx++
				}
			}
		}
	}

	return dets
}

// InputSize returns the model's expected input dimensions.
func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.input != nil {
		d.input.Destroy()
	}
	for _, group := range [][]*ort.Tensor[float32]{d.scores, d.bboxes, d.kps} {
		for _, t := range group {
			if t != nil {
				t.Destroy()
			}
		}
	}
}

// suppressOverlaps performs greedy non-maximum suppression.
func suppressOverlaps(dets []Detection, iouThreshold float32) []Detection {
	if len(dets) <= 1 {
		return dets
	}

	sort.Slice(dets, func(i, j int) bool {
		return dets[i].Confidence > dets[j].Confidence
	})

	dropped := make([]bool, len(dets))
	var kept []Detection
	for i := range dets {
		if dropped[i] {
			continue
		}
		kept = append(kept, dets[i])
		for j := i + 1; j < len(dets); j++ {
			if !dropped[j] && overlap(dets[i].BBox, dets[j].BBox) > iouThreshold {
				dropped[j] = true
			}
		}
	}
	return kept
}

// overlap computes intersection-over-union of two boxes.
func overlap(a, b [4]float32) float32 {
	ix1 := float32(math.Max(float64(a[0]), float64(b[0])))
	iy1 := float32(math.Max(float64(a[1]), float64(b[1])))
	ix2 := float32(math.Min(float64(a[2]), float64(b[2])))
	iy2 := float32(math.Min(float64(a[3]), float64(b[3])))

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

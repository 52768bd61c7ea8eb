package vision

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b [4]float32
		want float32
	}{
		{"identical", [4]float32{0, 0, 10, 10}, [4]float32{0, 0, 10, 10}, 1},
		{"disjoint", [4]float32{0, 0, 10, 10}, [4]float32{20, 20, 30, 30}, 0},
		{"touching edges", [4]float32{0, 0, 10, 10}, [4]float32{10, 0, 20, 10}, 0},
		{"half overlap", [4]float32{0, 0, 10, 10}, [4]float32{5, 0, 15, 10}, 50.0 / 150.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, overlap(tc.a, tc.b), 1e-5)
		})
	}
}

func TestSuppressOverlaps(t *testing.T) {
	dets := []Detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.9},
		{BBox: [4]float32{1, 1, 11, 11}, Confidence: 0.8}, // heavy overlap with first
		{BBox: [4]float32{50, 50, 60, 60}, Confidence: 0.7},
	}

	kept := suppressOverlaps(dets, 0.4)
	require.Len(t, kept, 2)
	assert.Equal(t, float32(0.9), kept[0].Confidence)
	assert.Equal(t, float32(0.7), kept[1].Confidence)
}

func TestSuppressOverlapsKeepsHighestConfidence(t *testing.T) {
	// Input deliberately unsorted: the lower-confidence box comes first.
	dets := []Detection{
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.5},
		{BBox: [4]float32{0, 0, 10, 10}, Confidence: 0.95},
	}

	kept := suppressOverlaps(dets, 0.4)
	require.Len(t, kept, 1)
	assert.Equal(t, float32(0.95), kept[0].Confidence)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(0), clamp(-5, 0, 10))
	assert.Equal(t, float32(10), clamp(15, 0, 10))
	assert.Equal(t, float32(7), clamp(7, 0, 10))
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	l2normalize(v)

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	assert.InDelta(t, 0.6, v[0], 1e-5)
	assert.InDelta(t, 0.8, v[1], 1e-5)
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, Cosine(a, b), 1e-5)
	assert.InDelta(t, 0.0, Cosine(a, c), 1e-5)
}

func TestAgeBucket(t *testing.T) {
	tests := []struct {
		age  int
		want string
	}{
		{0, "0-5"},
		{23, "20-25"},
		{25, "25-30"},
		{67, "65-70"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, ageBucket(tc.age), "age %d", tc.age)
	}
}

func TestCropFace(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))

	crop := cropFace(img, [4]float32{20, 20, 60, 60})
	require.NotNil(t, crop)

	// 10% padding on each side of a 40px box.
	bounds := crop.Bounds()
	assert.Equal(t, 48, bounds.Dx())
	assert.Equal(t, 48, bounds.Dy())
}

func TestCropFaceDegenerateBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	assert.Nil(t, cropFace(img, [4]float32{60, 60, 60, 60}))
	assert.Nil(t, cropFace(img, [4]float32{80, 10, 20, 50}))
}

func TestToCHWShape(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	data := toCHW(img, 4, 4, [3]float32{127.5, 127.5, 127.5}, [3]float32{128, 128, 128})
	assert.Len(t, data, 3*4*4)
}

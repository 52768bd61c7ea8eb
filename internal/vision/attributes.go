package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Attributes holds predicted demographic attributes for a face.
type Attributes struct {
	Gender           string
	GenderConfidence float32
	Age              int
	AgeRange         string
}

// Attributor predicts gender and age with the InsightFace genderage model.
type Attributor struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	inputW  int
	inputH  int
}

// NewAttributor loads the gender/age ONNX model (96x96 input).
func NewAttributor(modelPath string) (*Attributor, error) {
	const inputW, inputH = 96, 96

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, inputH, inputW))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// Output: [1, 3] — gender probability followed by raw age.
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"data"},
		[]string{"fc1"},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create attribute session: %w", err)
	}

	return &Attributor{
		session: session,
		input:   input,
		output:  output,
		inputW:  inputW,
		inputH:  inputH,
	}, nil
}

// Predict runs gender/age estimation on a preprocessed face crop.
func (a *Attributor) Predict(faceData []float32) (*Attributes, error) {
	copy(a.input.GetData(), faceData)

	if err := a.session.Run(); err != nil {
		return nil, fmt.Errorf("run attributes: %w", err)
	}

	out := a.output.GetData()
	if len(out) < 2 {
		return nil, fmt.Errorf("unexpected output size: %d", len(out))
	}

	genderScore := out[0]
	gender := "female"
	genderConf := 1 - genderScore
	if genderScore > 0.5 {
		gender = "male"
		genderConf = genderScore
	}

	age := int(out[1])
	if age < 0 {
		age = 0
	}
	if age > 100 {
		age = 100
	}

	return &Attributes{
		Gender:           gender,
		GenderConfidence: genderConf,
		Age:              age,
		AgeRange:         ageBucket(age),
	}, nil
}

// ageBucket maps an age estimate to a 5-year display range.
func ageBucket(age int) string {
	lower := (age / 5) * 5
	return fmt.Sprintf("%d-%d", lower, lower+5)
}

// InputSize returns the expected face crop dimensions.
func (a *Attributor) InputSize() (int, int) {
	return a.inputW, a.inputH
}

func (a *Attributor) Close() {
	if a.session != nil {
		a.session.Destroy()
	}
	if a.input != nil {
		a.input.Destroy()
	}
	if a.output != nil {
		a.output.Destroy()
	}
}

package media

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTakenAtNonImageData(t *testing.T) {
	assert.Nil(t, TakenAt(strings.NewReader("not an image")))
	assert.Nil(t, TakenAt(bytes.NewReader(nil)))
}

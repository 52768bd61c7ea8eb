package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProbeOutput = `{
  "streams": [
    {
      "codec_type": "video",
      "codec_name": "h264",
      "width": 1920,
      "height": 1080,
      "avg_frame_rate": "30000/1001",
      "r_frame_rate": "30000/1001"
    },
    {
      "codec_type": "audio",
      "codec_name": "aac"
    }
  ],
  "format": {
    "duration": "132.480000",
    "size": "27345021"
  }
}`

func TestParseProbeOutput(t *testing.T) {
	result, err := parseProbeOutput([]byte(sampleProbeOutput))
	require.NoError(t, err)

	assert.InDelta(t, 132.48, result.Duration, 1e-6)
	assert.Equal(t, int64(27345021), result.SizeBytes)
	assert.Equal(t, 1920, result.Width)
	assert.Equal(t, 1080, result.Height)
	assert.Equal(t, "h264", result.Codec)
	assert.Equal(t, "aac", result.AudioCodec)
	assert.InDelta(t, 29.97, result.FPS, 0.01)
}

func TestParseProbeOutputNoVideoStream(t *testing.T) {
	_, err := parseProbeOutput([]byte(`{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"10"}}`))
	require.Error(t, err)
}

func TestParseProbeOutputInvalidJSON(t *testing.T) {
	_, err := parseProbeOutput([]byte("not json"))
	require.Error(t, err)
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 29.97},
		{"25", 25},
		{"0/0", 0},
		{"garbage", 0},
		{"", 0},
	}

	for _, tc := range tests {
		assert.InDelta(t, tc.want, parseFrameRate(tc.in), 0.01, "input %q", tc.in)
	}
}

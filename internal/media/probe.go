package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeResult holds the technical metadata of a media file.
type ProbeResult struct {
	Duration   float64
	SizeBytes  int64
	Width      int
	Height     int
	FPS        float64
	Codec      string
	AudioCodec string
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		RFrameRate   string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe inspects a media file with ffprobe and returns its metadata.
func Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	if raw.Format.Duration != "" {
		result.Duration, _ = strconv.ParseFloat(raw.Format.Duration, 64)
	}
	if raw.Format.Size != "" {
		result.SizeBytes, _ = strconv.ParseInt(raw.Format.Size, 10, 64)
	}

	for _, s := range raw.Streams {
		switch s.CodecType {
		case "video":
			if result.Codec != "" {
				continue
			}
			result.Codec = s.CodecName
			result.Width = s.Width
			result.Height = s.Height
			result.FPS = parseFrameRate(s.AvgFrameRate)
			if result.FPS == 0 {
				result.FPS = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			if result.AudioCodec == "" {
				result.AudioCodec = s.CodecName
			}
		}
	}

	if result.Codec == "" {
		return nil, fmt.Errorf("no video stream found")
	}
	return result, nil
}

// parseFrameRate converts ffprobe's fractional rate ("30000/1001") to fps.
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

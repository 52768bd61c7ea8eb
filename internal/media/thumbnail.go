package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"os/exec"

	"github.com/disintegration/imaging"
)

// Thumbnail grabs a single frame from a media file at the given offset and
// returns it as a JPEG scaled down to width pixels. Offset is in seconds;
// pass 0 for the first frame.
func Thumbnail(ctx context.Context, path string, offsetSeconds float64, width int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", fmt.Sprintf("%.2f", offsetSeconds),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame grab: %w", err)
	}

	frame, _, err := image.Decode(&out)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if frame.Bounds().Dx() > width {
		frame = imaging.Resize(frame, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

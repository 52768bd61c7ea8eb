package media

import (
	"io"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// TakenAt extracts the capture timestamp from EXIF metadata. Best effort:
// images without usable EXIF yield nil.
func TakenAt(r io.Reader) *time.Time {
	x, err := exif.Decode(r)
	if err != nil {
		return nil
	}
	t, err := x.DateTime()
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

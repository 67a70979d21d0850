package storage

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// =============================================================================
// Photo Preparation
// =============================================================================

const (
	// PhotoMaxWidth and PhotoMaxHeight bound the dimensions of stored
	// inspection photos. Camera originals are downscaled before upload so
	// offline queues and object storage stay small.
	PhotoMaxWidth  = 1600
	PhotoMaxHeight = 1600

	// PhotoJPEGQuality is the JPEG encoding quality for prepared photos.
	PhotoJPEGQuality = 85
)

// PreparePhoto decodes an uploaded image, downscales it to fit within
// PhotoMaxWidth x PhotoMaxHeight (preserving aspect ratio, never upscaling),
// and re-encodes it as JPEG. It returns the encoded bytes ready for Put.
func PreparePhoto(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > PhotoMaxWidth || bounds.Dy() > PhotoMaxHeight {
		img = imaging.Fit(img, PhotoMaxWidth, PhotoMaxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(PhotoJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

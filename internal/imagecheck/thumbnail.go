package imagecheck

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// DefaultThumbnailMaxDimension is the maximum dimension (width or height)
// for review-step thumbnails.
const DefaultThumbnailMaxDimension = 640

// Thumbnail creates a low-resolution JPEG preview of a validated screenshot
// for the review display. Resizing uses pure Go (golang.org/x/image/draw).
func Thumbnail(path string, maxDimension int) ([]byte, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultThumbnailMaxDimension
	}

	log.Debug().
		Str("path", path).
		Int("max_dimension", maxDimension).
		Msg("Generating review thumbnail")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var img image.Image
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".png":
		img, err = png.Decode(f)
	default:
		// Extension is unreliable; fall back to sniffing.
		img, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	origWidth := bounds.Dx()
	origHeight := bounds.Dy()

	newWidth, newHeight := scaleDimensions(origWidth, origHeight, maxDimension)

	var out image.Image = img
	if origWidth > maxDimension || origHeight > maxDimension {
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	log.Debug().
		Str("path", path).
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("output_size", buf.Len()).
		Msg("Review thumbnail generated")

	return buf.Bytes(), nil
}

// scaleDimensions computes thumbnail dimensions preserving aspect ratio,
// with the longer side capped at maxDimension.
func scaleDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}
	if width >= height {
		return maxDimension, height * maxDimension / width
	}
	return width * maxDimension / height, maxDimension
}

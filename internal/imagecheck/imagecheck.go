// Package imagecheck validates candidate scoreboard screenshots before upload.
//
// The extraction engine only accepts full-HD captures, so validation is a
// strict pre-flight gate: JPEG or PNG, exactly 1920×1080 pixels. The check
// reads only the image header (image.DecodeConfig), never the full pixel data.
package imagecheck

import (
	"fmt"
	"image"
	"os"
	"strings"

	// Registered so DecodeConfig can sniff the format from file headers.
	// gif/webp/bmp are registered purely to classify rejected formats as
	// "unsupported type" instead of "decode error".
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// The extraction engine is trained on full-HD scoreboard captures and rejects
// anything else, so the gate is exact: no scaling, no tolerance band.
const (
	RequiredWidth  = 1920
	RequiredHeight = 1080
)

// Accepted describes a screenshot that passed validation and is eligible
// for upload.
type Accepted struct {
	Path     string
	Format   string // "jpeg" or "png"
	MIMEType string
	Width    int
	Height   int
	Size     int64
}

// UnsupportedTypeError is returned when the file decodes as a format other
// than JPEG or PNG.
type UnsupportedTypeError struct {
	Format string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported image type %q: scoreboard screenshots must be JPEG or PNG", e.Format)
}

// WrongDimensionsError is returned when the image is not exactly 1920×1080.
type WrongDimensionsError struct {
	Width  int
	Height int
}

func (e *WrongDimensionsError) Error() string {
	return fmt.Sprintf("image is %d×%d: scoreboard screenshots must be exactly %d×%d",
		e.Width, e.Height, RequiredWidth, RequiredHeight)
}

// DecodeError is returned when the file cannot be decoded as an image at all.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("file could not be read as an image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Validate checks a candidate screenshot against the type and dimension
// constraints of the extraction engine. It reads only the image header and
// closes the file on every exit path.
func Validate(path string) (*Accepted, error) {
	log.Debug().Str("path", path).Msg("Validating candidate screenshot")

	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	if format != "jpeg" && format != "png" {
		log.Debug().Str("path", path).Str("format", format).Msg("Rejected screenshot: unsupported type")
		return nil, &UnsupportedTypeError{Format: format}
	}

	if cfg.Width != RequiredWidth || cfg.Height != RequiredHeight {
		log.Debug().
			Str("path", path).
			Int("width", cfg.Width).
			Int("height", cfg.Height).
			Msg("Rejected screenshot: wrong dimensions")
		return nil, &WrongDimensionsError{Width: cfg.Width, Height: cfg.Height}
	}

	info, err := f.Stat()
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	accepted := &Accepted{
		Path:     path,
		Format:   format,
		MIMEType: "image/" + format,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Size:     info.Size(),
	}

	log.Debug().
		Str("path", path).
		Str("format", format).
		Int64("size", accepted.Size).
		Msg("Screenshot accepted")

	return accepted, nil
}

// FileName returns the base name of the accepted file, lowercased extension
// included, for display and object-key derivation.
func (a *Accepted) FileName() string {
	name := a.Path
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

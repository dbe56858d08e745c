package export

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/matzehuels/collage/pkg/errors"
)

// Format is the output encoding of an export.
type Format string

// Supported formats.
const (
	// Lossless encodes PNG.
	Lossless Format = "png"

	// Lossy encodes JPEG at a fixed high quality.
	Lossy Format = "jpeg"
)

// DefaultJPEGQuality is the quality used for Lossy exports.
const DefaultJPEGQuality = 90

// ParseFormat accepts a format name or its lossless/lossy hint.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png", "lossless":
		return Lossless, nil
	case "jpeg", "jpg", "lossy":
		return Lossy, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "invalid format %q (must be one of: png, jpeg)", s)
}

// Extension returns the file extension without the dot.
func (f Format) Extension() string {
	if f == Lossy {
		return "jpg"
	}
	return "png"
}

// MediaType returns the MIME type of the encoding.
func (f Format) MediaType() string {
	if f == Lossy {
		return "image/jpeg"
	}
	return "image/png"
}

// Artifact is an encoded composite ready for delivery.
type Artifact struct {
	Format Format
	Data   []byte
}

// MediaType returns the artifact's MIME type.
func (a *Artifact) MediaType() string { return a.Format.MediaType() }

// Size returns the encoded length in bytes.
func (a *Artifact) Size() int { return len(a.Data) }

// Encode serializes img in format f. quality applies to Lossy only; values
// outside 1..100 use [DefaultJPEGQuality].
func Encode(img image.Image, f Format, quality int) (*Artifact, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New(errors.ErrCodeDeliveryFailure, "nothing to encode")
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	var err error
	switch f {
	case Lossless:
		err = imaging.Encode(&buf, img, imaging.PNG)
	case Lossy:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "invalid format %q", f)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDeliveryFailure, fmt.Errorf("encode %s: %w", f, err), "could not create the image file")
	}
	return &Artifact{Format: f, Data: buf.Bytes()}, nil
}

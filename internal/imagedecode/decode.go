// Package imagedecode turns raw upload bytes into decoded images for the model backends.
package imagedecode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // register webp with image.Decode

	"github.com/formbricks/collections/internal/clustererrors"
	"github.com/formbricks/collections/internal/models"
)

// MaxRenditionSide bounds the longest side of the JPEG sent to remote backends.
const MaxRenditionSide = 512

// DefaultMaxPixels bounds width x height when the caller sets no limit (64 megapixels).
const DefaultMaxPixels int64 = 64 << 20

const renditionQuality = 85

var (
	// ErrEmptyImage is returned for images without any pixels.
	ErrEmptyImage = errors.New("image has no pixels")
	// ErrTooManyPixels is returned when the header declares more pixels than allowed.
	ErrTooManyPixels = errors.New("image dimensions exceed pixel limit")
)

// DecodedImage is a decoded upload. It is read-only after Decode and safe for concurrent use.
type DecodedImage struct {
	ID       string
	Filename string
	MIMEType string
	Format   string
	Bytes    []byte
	Image    image.Image

	renditionOnce sync.Once
	rendition     []byte
	renditionErr  error
}

// IsImageMIME reports whether a declared MIME type names an image.
func IsImageMIME(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
}

// DetectMIME guesses the MIME type of a file from its extension, falling back to content sniffing.
func DetectMIME(filename string, data []byte) string {
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}

	return http.DetectContentType(data)
}

// Decode decodes the input bytes, applying EXIF orientation. The header is checked against
// maxPixels before any pixel buffer is allocated; a non-positive maxPixels uses DefaultMaxPixels.
// Failures are DecodeErrors.
func Decode(in models.RawImageInput, maxPixels int64) (*DecodedImage, error) {
	if len(in.Bytes) == 0 {
		return nil, clustererrors.NewDecodeError(in.ID, ErrEmptyImage)
	}

	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	header, format, err := image.DecodeConfig(bytes.NewReader(in.Bytes))
	if err != nil {
		return nil, clustererrors.NewDecodeError(in.ID, err)
	}

	if pixels := int64(header.Width) * int64(header.Height); pixels > maxPixels {
		return nil, clustererrors.NewDecodeError(in.ID,
			fmt.Errorf("%w: %dx%d is more than %d", ErrTooManyPixels, header.Width, header.Height, maxPixels))
	}

	img, err := imaging.Decode(bytes.NewReader(in.Bytes), imaging.AutoOrientation(true))
	if err != nil {
		return nil, clustererrors.NewDecodeError(in.ID, err)
	}

	if img.Bounds().Empty() {
		return nil, clustererrors.NewDecodeError(in.ID, ErrEmptyImage)
	}

	return &DecodedImage{
		ID:       in.ID,
		Filename: in.Filename,
		MIMEType: in.MIMEType,
		Format:   format,
		Bytes:    in.Bytes,
		Image:    img,
	}, nil
}

// FromImage wraps an already decoded image. Used by tests and callers that generate pixels.
func FromImage(id string, img image.Image) *DecodedImage {
	return &DecodedImage{ID: id, Filename: id, MIMEType: "image/png", Format: "png", Image: img}
}

// JPEG returns a JPEG rendition whose longest side is at most MaxRenditionSide.
// The rendition is computed once.
func (d *DecodedImage) JPEG() ([]byte, error) {
	d.renditionOnce.Do(func() {
		img := d.Image

		b := img.Bounds()
		if b.Dx() > MaxRenditionSide || b.Dy() > MaxRenditionSide {
			img = imaging.Fit(img, MaxRenditionSide, MaxRenditionSide, imaging.Lanczos)
		}

		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(renditionQuality)); err != nil {
			d.renditionErr = fmt.Errorf("encode jpeg rendition: %w", err)

			return
		}

		d.rendition = buf.Bytes()
	})

	return d.rendition, d.renditionErr
}

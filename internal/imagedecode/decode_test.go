package imagedecode

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/collections/internal/clustererrors"
	"github.com/formbricks/collections/internal/models"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	return buf.Bytes()
}

func TestIsImageMIME(t *testing.T) {
	tests := []struct {
		mime string
		want bool
	}{
		{"image/png", true},
		{"IMAGE/JPEG", true},
		{" image/webp", true},
		{"application/pdf", false},
		{"text/plain", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, IsImageMIME(tt.mime))
		})
	}
}

func TestDetectMIME(t *testing.T) {
	data := encodePNG(t, 2, 2, color.White)

	assert.Equal(t, "image/png", DetectMIME("a.png", nil))
	assert.Equal(t, "image/png", DetectMIME("noext", data))
}

func TestDecode(t *testing.T) {
	data := encodePNG(t, 30, 20, color.NRGBA{R: 200, A: 255})

	img, err := Decode(models.RawImageInput{ID: "a.png-0", Filename: "a.png", Bytes: data, MIMEType: "image/png"}, 0)
	require.NoError(t, err)

	assert.Equal(t, "png", img.Format)
	assert.Equal(t, 30, img.Image.Bounds().Dx())
	assert.Equal(t, 20, img.Image.Bounds().Dy())
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not an image")},
		{"truncated png", encodePNG(t, 10, 10, color.Black)[:40]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(models.RawImageInput{ID: "bad-1", Bytes: tt.data, MIMEType: "image/png"}, 0)
			require.Error(t, err)

			var decodeErr *clustererrors.DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, "bad-1", decodeErr.ImageID)
		})
	}
}

func TestJPEGRenditionIsBounded(t *testing.T) {
	data := encodePNG(t, 1200, 600, color.NRGBA{G: 120, A: 255})

	img, err := Decode(models.RawImageInput{ID: "big", Bytes: data, MIMEType: "image/png"}, 0)
	require.NoError(t, err)

	out, err := img.JPEG()
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, MaxRenditionSide, cfg.Width)
	assert.Equal(t, MaxRenditionSide/2, cfg.Height)

	again, err := img.JPEG()
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

// pngHeader returns a PNG signature and IHDR chunk declaring an 8-bit RGB image of w x h,
// with no pixel data behind it.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 2 // truecolour

	chunk := append([]byte("IHDR"), ihdr...)

	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))

	return buf.Bytes()
}

func TestDecodeRejectsOversizedHeader(t *testing.T) {
	data := pngHeader(50000, 50000)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, "png", format)
	require.Equal(t, 50000, cfg.Width)

	_, err = Decode(models.RawImageInput{ID: "huge", Bytes: data, MIMEType: "image/png"}, 1<<20)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyPixels)
	assert.ErrorIs(t, err, clustererrors.ErrDecode)

	_, err = Decode(models.RawImageInput{ID: "huge", Bytes: data, MIMEType: "image/png"}, 0)
	assert.ErrorIs(t, err, ErrTooManyPixels, "the default limit applies when none is set")
}

func TestDecodeAllowsImagesAtLimit(t *testing.T) {
	data := encodePNG(t, 10, 10, color.White)

	_, err := Decode(models.RawImageInput{ID: "ok", Bytes: data, MIMEType: "image/png"}, 100)
	require.NoError(t, err)

	_, err = Decode(models.RawImageInput{ID: "over", Bytes: data, MIMEType: "image/png"}, 99)
	assert.ErrorIs(t, err, ErrTooManyPixels)
}

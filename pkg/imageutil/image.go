// Package imageutil decodes request images and prepares them for detection,
// classification and debug output.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage is returned when image data cannot be decoded.
var ErrInvalidImage = errors.New("invalid image data")

var (
	// Green marks an accepted detection.
	Green = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	// Red marks a rejected or unknown face.
	Red = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
)

// StripDataURI removes a "data:image/...;base64," prefix if present.
func StripDataURI(payload string) string {
	payload = strings.TrimSpace(payload)
	if strings.HasPrefix(payload, "data:") {
		if idx := strings.Index(payload, ","); idx >= 0 {
			return payload[idx+1:]
		}
	}
	return payload
}

// DecodeBase64 decodes a base64 payload, with or without data-URI prefix, into an image.
func DecodeBase64(payload string) (image.Image, error) {
	encoded := StripDataURI(payload)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		// Browsers occasionally drop the padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
	}

	return Decode(data)
}

// Decode decodes JPEG, PNG, GIF, BMP or WebP bytes.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data", ErrInvalidImage)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", ErrInvalidImage)
	}

	return img, nil
}

// Open reads and decodes an image file.
func Open(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ToGray converts an image to 8-bit grayscale with its origin at (0,0).
func ToGray(img image.Image) *image.Gray {
	src := imaging.Grayscale(img)
	bounds := src.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+bounds.Dx()*4]
		for x := 0; x < bounds.Dx(); x++ {
			gray.Pix[y*gray.Stride+x] = row[x*4]
		}
	}
	return gray
}

// CanonicalFace crops rect out of img, resizes it to size×size and converts it to grayscale.
// rect is relative to the image origin.
func CanonicalFace(img image.Image, rect image.Rectangle, size int) *image.Gray {
	cropped := imaging.Crop(img, rect.Add(img.Bounds().Min))
	return Canonical(cropped, size)
}

// Canonical resizes a whole image to size×size grayscale.
func Canonical(img image.Image, size int) *image.Gray {
	return ToGray(imaging.Resize(img, size, size, imaging.Linear))
}

// Annotate returns a copy of img with rect outlined and caption written above it.
func Annotate(img image.Image, rect image.Rectangle, caption string, c color.Color) *image.NRGBA {
	dst := imaging.Clone(img)
	drawRect(dst, rect, c, 2)

	if caption != "" {
		face := basicfont.Face7x13
		baseline := rect.Min.Y - 10
		if baseline < face.Ascent {
			baseline = rect.Max.Y + face.Ascent + 4
		}
		d := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(c),
			Face: face,
			Dot:  fixed.P(rect.Min.X, baseline),
		}
		d.DrawString(caption)
	}

	return dst
}

func drawRect(dst draw.Image, rect image.Rectangle, c color.Color, thickness int) {
	src := image.NewUniform(c)
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}

	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+thickness),
		image.Rect(rect.Min.X, rect.Max.Y-thickness, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+thickness, rect.Max.Y),
		image.Rect(rect.Max.X-thickness, rect.Min.Y, rect.Max.X, rect.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(rect), src, image.Point{}, draw.Src)
	}
}

// EncodeJPEG encodes img as JPEG.
func EncodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveJPEG writes img as a JPEG file, creating the parent directory.
func SaveJPEG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	if err := imaging.Save(img, path, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	return nil
}

// Channels reports the channel count of img as (gray 1, color 3, color with alpha 4).
func Channels(img image.Image) int {
	switch src := img.(type) {
	case *image.Gray, *image.Gray16:
		return 1
	case *image.NRGBA:
		if !src.Opaque() {
			return 4
		}
	case *image.RGBA:
		if !src.Opaque() {
			return 4
		}
	}
	return 3
}

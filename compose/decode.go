package compose

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels caps the decoded size of a single photo at 40
// megapixels, well above any phone camera frame.
const DefaultMaxPixels = 40_000_000

// flattenBackground is the colour transparent pixels are composited onto.
var flattenBackground = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Decode turns an encoded photo (optionally prefixed with a data-URL
// header) into an opaque bitmap. Everything before the first comma is
// treated as the header.
func Decode(photo string) (*image.NRGBA, error) {
	return DecodeLimit(photo, DefaultMaxPixels)
}

// DecodeLimit is Decode with an explicit pixel cap. The image header is
// checked before any pixel data is allocated.
func DecodeLimit(photo string, maxPixels int) (*image.NRGBA, error) {
	payload := photo
	if i := strings.IndexByte(photo, ','); i >= 0 {
		payload = photo[i+1:]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return nil, newError(KindDecode, "empty image payload")
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, wrapError(KindDecode, err, "invalid base64 payload")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, wrapError(KindDecode, err, "unrecognized image data")
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, newError(KindDecode, "photo too large (%dx%d)", cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, wrapError(KindDecode, err, "unrecognized image data")
	}
	return flatten(img), nil
}

// flatten drops the alpha channel by compositing img over a white canvas.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), flattenBackground)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

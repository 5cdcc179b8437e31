package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	// DefaultFontSize is the caption point size.
	DefaultFontSize = 28

	// captionBias lifts the caption block so the two lines look centred.
	captionBias = 4

	accentHeight = 4
)

// Annotator draws the event caption into the footer band.
type Annotator struct {
	Title  string
	Date   string
	Text   color.Color
	Accent color.Color

	font    *opentype.Font
	size    float64
	loadErr error
}

// NewAnnotator loads the caption font. A missing fontPath falls back to
// the built-in Go Regular font; an unreadable or corrupt one is remembered
// and reported by every Annotate call.
func NewAnnotator(title, date string, text, accent color.Color, fontPath string, size float64) *Annotator {
	if size <= 0 {
		size = DefaultFontSize
	}
	a := &Annotator{Title: title, Date: date, Text: text, Accent: accent, size: size}
	a.font, a.loadErr = loadFont(fontPath)
	return a
}

func loadFont(path string) (*opentype.Font, error) {
	data := goregular.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			data = b
		case errors.Is(err, fs.ErrNotExist):
			// built-in font
		default:
			return nil, fmt.Errorf("read font %s: %w", path, err)
		}
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return f, nil
}

// Annotate draws the accent stripe and the title/date caption onto canvas.
// Any failure leaves the caption out; callers treat the error as cosmetic.
func (a *Annotator) Annotate(canvas draw.Image, footerStart, footerHeight int) (err error) {
	if footerHeight <= 0 {
		return nil
	}
	if a.loadErr != nil {
		return a.loadErr
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render caption: %v", r)
		}
	}()

	b := canvas.Bounds()
	if a.Accent != nil && footerHeight >= accentHeight {
		stripe := image.Rect(b.Min.X, footerStart, b.Max.X, footerStart+accentHeight)
		draw.Draw(canvas, stripe, image.NewUniform(a.Accent), image.Point{}, draw.Src)
	}

	face, err := opentype.NewFace(a.font, &opentype.FaceOptions{
		Size:    a.size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("create font face: %w", err)
	}
	defer face.Close()

	lines := make([]string, 0, 2)
	for _, s := range []string{a.Title, a.Date} {
		if s != "" {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	m := face.Metrics()
	lineHeight := m.Height.Ceil()
	center := footerStart + footerHeight/2 - captionBias
	baseline := center - len(lines)*lineHeight/2 + m.Ascent.Ceil()
	midX := b.Min.X + b.Dx()/2

	d := &font.Drawer{Dst: canvas, Src: image.NewUniform(a.Text), Face: face}
	for _, line := range lines {
		w := d.MeasureString(line).Ceil()
		d.Dot = fixed.P(midX-w/2, baseline)
		d.DrawString(line)
		baseline += lineHeight
	}
	return nil
}

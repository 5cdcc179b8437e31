package compose

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
)

// Layout stacks photos vertically on a fixed-width canvas.
//
// The canvas height is sum(photo heights) + Padding*(N+1) + FooterHeight:
// one padding above the first photo, one between neighbours and one after
// the last photo. The footer band starts right after that trailing gap.
type Layout struct {
	CanvasWidth  int
	Padding      int
	FooterHeight int
	Background   color.Color
}

// TargetWidth is the width every photo is scaled to.
func (l Layout) TargetWidth() int {
	return l.CanvasWidth - 2*l.Padding
}

// Validate checks the geometry once, at construction time.
func (l Layout) Validate() error {
	if l.TargetWidth() <= 0 {
		return newError(KindLayout, "canvas width %d too small for padding %d", l.CanvasWidth, l.Padding)
	}
	if l.Padding < 0 {
		return newError(KindLayout, "padding must not be negative")
	}
	if l.FooterHeight < 0 {
		return newError(KindLayout, "footer height must not be negative")
	}
	return nil
}

// ValidCount reports whether n photos can be composed.
func ValidCount(n int) bool {
	return n == 1 || n == 3
}

// ScaledHeight returns the height of a w x h photo scaled to targetW,
// rounded to the nearest pixel.
func ScaledHeight(w, h, targetW int) int {
	return int(math.Round(float64(targetW) * float64(h) / float64(w)))
}

// Normalize scales img to the target width, preserving aspect ratio.
func (l Layout) Normalize(img image.Image) (*image.NRGBA, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, newError(KindLayout, "photo has zero size (%dx%d)", b.Dx(), b.Dy())
	}
	tw := l.TargetWidth()
	if tw <= 0 {
		return nil, newError(KindLayout, "target width %d is not positive", tw)
	}
	th := ScaledHeight(b.Dx(), b.Dy(), tw)
	if th < 1 {
		th = 1
	}
	return imaging.Resize(img, tw, th, imaging.Lanczos), nil
}

// Height returns the canvas height for photos of the given scaled heights.
func (l Layout) Height(heights []int) int {
	total := l.Padding*(len(heights)+1) + l.FooterHeight
	for _, h := range heights {
		total += h
	}
	return total
}

// Arrange normalizes photos and pastes them onto a new canvas. It returns
// the canvas and the row at which the footer band begins.
func (l Layout) Arrange(photos []image.Image) (*image.NRGBA, int, error) {
	if !ValidCount(len(photos)) {
		return nil, 0, newError(KindLayout, "cannot lay out %d photos", len(photos))
	}

	scaled := make([]*image.NRGBA, 0, len(photos))
	heights := make([]int, 0, len(photos))
	for i, p := range photos {
		s, err := l.Normalize(p)
		if err != nil {
			return nil, 0, wrapError(KindLayout, err, "photo %d", i+1)
		}
		scaled = append(scaled, s)
		heights = append(heights, s.Bounds().Dy())
	}

	canvas := imaging.New(l.CanvasWidth, l.Height(heights), l.Background)

	y := l.Padding
	for _, s := range scaled {
		w, h := s.Bounds().Dx(), s.Bounds().Dy()
		x := (l.CanvasWidth - w) / 2
		draw.Draw(canvas, image.Rect(x, y, x+w, y+h), s, s.Bounds().Min, draw.Src)
		y += h + l.Padding
	}
	return canvas, y, nil
}

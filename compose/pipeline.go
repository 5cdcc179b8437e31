// Package compose turns captured photos into branded photo strips.
//
// A composition runs four stages in order: decode the encoded photos,
// lay them out on a canvas, draw the event caption into the footer and
// persist the result as a PNG in the content directory. Nothing is kept
// between calls except the files in that directory.
package compose

import (
	"context"
	"image"
	"image/color"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Config is the immutable layout and branding configuration.
type Config struct {
	ContentDir   string
	CanvasWidth  int
	Padding      int
	FooterHeight int
	Background   color.Color
	TextColor    color.Color
	AccentColor  color.Color
	Title        string
	Date         string
	FontPath     string
	FontSize     float64
	// MaxPixels bounds width*height of each decoded photo. Zero means
	// DefaultMaxPixels.
	MaxPixels int
}

// Result describes a persisted image.
type Result struct {
	Filename string
	Width    int
	Height   int
	Bytes    int64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for degraded-mode warnings.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline composes photo strips. It is safe for concurrent use.
type Pipeline struct {
	layout    Layout
	annotator *Annotator
	sink      *Sink
	maxPixels int
	logger    *log.Logger
}

// New validates cfg and prepares the content directory.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if cfg.Background == nil {
		cfg.Background = color.White
	}
	if cfg.TextColor == nil {
		cfg.TextColor = color.Black
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	l := Layout{
		CanvasWidth:  cfg.CanvasWidth,
		Padding:      cfg.Padding,
		FooterHeight: cfg.FooterHeight,
		Background:   cfg.Background,
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	sink, err := NewSink(cfg.ContentDir)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		layout:    l,
		annotator: NewAnnotator(cfg.Title, cfg.Date, cfg.TextColor, cfg.AccentColor, cfg.FontPath, cfg.FontSize),
		sink:      sink,
		maxPixels: cfg.MaxPixels,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.annotator.loadErr != nil {
		p.logger.Warn("caption font unusable, strips will have no caption", "path", cfg.FontPath, "err", p.annotator.loadErr)
	}
	return p, nil
}

// Dir returns the content directory.
func (p *Pipeline) Dir() string {
	return p.sink.Dir
}

// Compose decodes 1 or 3 encoded photos and persists the composed strip.
func (p *Pipeline) Compose(ctx context.Context, photos []string) (Result, error) {
	if !ValidCount(len(photos)) {
		return Result{}, newError(KindCount, "expected 1 or 3 photos, got %d", len(photos))
	}

	imgs := make([]image.Image, len(photos))
	g, gctx := errgroup.WithContext(ctx)
	for i, photo := range photos {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := DecodeLimit(photo, p.maxPixels)
			if err != nil {
				return wrapError(KindDecode, err, "photo %d", i+1)
			}
			imgs[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	return p.ComposeImages(ctx, imgs)
}

// ComposeImages lays out already-decoded photos, captions and persists them.
func (p *Pipeline) ComposeImages(ctx context.Context, imgs []image.Image) (Result, error) {
	if !ValidCount(len(imgs)) {
		return Result{}, newError(KindCount, "expected 1 or 3 photos, got %d", len(imgs))
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	canvas, footerStart, err := p.layout.Arrange(imgs)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if err := p.annotator.Annotate(canvas, footerStart, p.layout.FooterHeight); err != nil {
		p.logger.Warn("caption skipped", "err", err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	return p.persist(canvas)
}

// Store decodes a single photo and persists it without composition.
func (p *Pipeline) Store(ctx context.Context, photo string) (Result, error) {
	img, err := DecodeLimit(photo, p.maxPixels)
	if err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return p.persist(img)
}

func (p *Pipeline) persist(img image.Image) (Result, error) {
	name, size, err := p.sink.Write(img)
	if err != nil {
		return Result{}, err
	}
	b := img.Bounds()
	p.logger.Debug("image written", "file", name, "width", b.Dx(), "height", b.Dy(), "bytes", size)
	return Result{Filename: name, Width: b.Dx(), Height: b.Dy(), Bytes: size}, nil
}

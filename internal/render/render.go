// Package render composes backdrop surfaces: a solid or gradient canvas with
// an optional image fitted onto it.
package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"
)

// DefaultChunkSize is the read size used while streaming an image file.
const DefaultChunkSize = 64 * 1024

// ErrCancelled is returned when the request context ends before the render
// completes. It is never paired with a surface.
var ErrCancelled = errors.New("render cancelled")

// DecodeError reports an image that could not be opened, read or decoded.
// Render returns it together with the bare canvas.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to load image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Request describes one surface to render.
type Request struct {
	ColorStyle ColorStyle
	Color1     RGBA
	Color2     RGBA
	ImageStyle ImageStyle
	ImagePath  string
	Width      int
	Height     int
}

// Result is a rendered surface.
type Result struct {
	Image    *image.NRGBA
	Width    int
	Height   int
	Filename string
}

// OpenFunc opens an image file for streaming.
type OpenFunc func(path string) (io.ReadCloser, error)

// Options configures a Renderer.
type Options struct {
	// ChunkSize is the streaming read size; 0 means DefaultChunkSize.
	ChunkSize int
	// Open replaces os.Open, mainly for tests.
	Open OpenFunc
	// Seed fixes the dithering noise; 0 picks a random seed per render.
	Seed   uint64
	Logger *slog.Logger
}

// Renderer turns Requests into surfaces. It is safe for concurrent use.
type Renderer struct {
	chunkSize int
	open      OpenFunc
	seed      uint64
	logger    *slog.Logger
}

func New(opts Options) *Renderer {
	r := &Renderer{
		chunkSize: opts.ChunkSize,
		open:      opts.Open,
		seed:      opts.Seed,
		logger:    opts.Logger,
	}
	if r.chunkSize <= 0 {
		r.chunkSize = DefaultChunkSize
	}
	if r.open == nil {
		r.open = func(path string) (io.ReadCloser, error) { return os.Open(path) }
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Render produces the surface for req.
//
// A nil error means the full composition succeeded. A *DecodeError comes
// with the bare canvas as a usable fallback. ErrCancelled always comes with
// a nil Result.
func (r *Renderer) Render(ctx context.Context, req Request) (*Result, error) {
	if req.Width <= 0 || req.Height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", req.Width, req.Height)
	}
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	start := time.Now()

	seed := r.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	canvas := NewCanvas(req.ColorStyle, req.Color1, req.Color2, req.Width, req.Height,
		rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))

	result := &Result{Image: canvas, Width: req.Width, Height: req.Height}
	if req.ImageStyle == ImageNone || req.ImagePath == "" {
		return result, nil
	}
	result.Filename = filepath.Base(req.ImagePath)

	canvasSize := image.Pt(req.Width, req.Height)
	img, target, err := r.load(ctx, req.ImagePath, func(natural image.Point) image.Point {
		return TargetSize(req.ImageStyle, natural, canvasSize)
	})
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return nil, ErrCancelled
		}
		r.logger.Warn("image decode failed, using canvas", "path", req.ImagePath, "error", err)
		return result, err
	}
	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	if target != img.Bounds().Size() && target.X > 0 && target.Y > 0 {
		img = Resize(img, target)
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
	}
	Composite(canvas, img, req.ImageStyle)

	r.logger.Debug("render finished",
		"path", req.ImagePath,
		"style", req.ImageStyle.String(),
		"size", fmt.Sprintf("%dx%d", req.Width, req.Height),
		"elapsed", time.Since(start))
	return result, nil
}

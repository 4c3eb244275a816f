package render

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/anthonynsimon/bild/transform"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// load streams path in chunks, checking ctx before every read. Once the
// header yields the natural size (orientation applied), sizeFn picks the
// target size the image should be delivered at.
func (r *Renderer) load(ctx context.Context, path string, sizeFn func(natural image.Point) image.Point) (image.Image, image.Point, error) {
	if ctx.Err() != nil {
		return nil, image.Point{}, ErrCancelled
	}
	f, err := r.open(path)
	if err != nil {
		return nil, image.Point{}, &DecodeError{Path: path, Err: err}
	}
	closed := false
	defer func() {
		if !closed {
			f.Close()
		}
	}()

	var (
		buf         bytes.Buffer
		chunk       = make([]byte, r.chunkSize)
		sizeKnown   bool
		orientation = 1
		target      image.Point
	)
	for {
		if ctx.Err() != nil {
			return nil, image.Point{}, ErrCancelled
		}
		n, err := f.Read(chunk)
		buf.Write(chunk[:n])

		if !sizeKnown && n > 0 {
			if cfg, _, cerr := image.DecodeConfig(bytes.NewReader(buf.Bytes())); cerr == nil {
				sizeKnown = true
				orientation = readOrientation(buf.Bytes())
				natural := image.Pt(cfg.Width, cfg.Height)
				if orientation >= 5 {
					natural = image.Pt(cfg.Height, cfg.Width)
				}
				target = sizeFn(natural)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, image.Point{}, &DecodeError{Path: path, Err: err}
		}
	}

	if ctx.Err() != nil {
		return nil, image.Point{}, ErrCancelled
	}
	closed = true
	if err := f.Close(); err != nil {
		return nil, image.Point{}, &DecodeError{Path: path, Err: err}
	}
	if ctx.Err() != nil {
		return nil, image.Point{}, ErrCancelled
	}

	img, _, err := image.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, image.Point{}, &DecodeError{Path: path, Err: err}
	}
	img = applyOrientation(img, orientation)
	if !sizeKnown {
		target = sizeFn(img.Bounds().Size())
	}
	return img, target, nil
}

// readOrientation returns the EXIF orientation tag, or 1 when absent.
func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}

// applyOrientation rotates and flips img so that it displays upright.
func applyOrientation(img image.Image, orientation int) image.Image {
	rot := &transform.RotationOptions{ResizeBounds: true}
	switch orientation {
	case 2:
		return transform.FlipH(img)
	case 3:
		return transform.Rotate(img, 180, rot)
	case 4:
		return transform.FlipV(img)
	case 5:
		return transform.FlipH(transform.Rotate(img, 90, rot))
	case 6:
		return transform.Rotate(img, 90, rot)
	case 7:
		return transform.FlipV(transform.Rotate(img, 90, rot))
	case 8:
		return transform.Rotate(img, 270, rot)
	}
	return img
}

// IsImage reports whether path starts with a header one of the registered
// decoders recognises.
func IsImage(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, _, err = image.DecodeConfig(f)
	return err == nil
}

package render

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// TargetSize returns the size an image of natural size should be scaled to
// before it is placed on a canvas of the given size.
func TargetSize(style ImageStyle, natural, canvas image.Point) image.Point {
	if natural.X <= 0 || natural.Y <= 0 {
		return natural
	}
	sx := float64(canvas.X) / float64(natural.X)
	sy := float64(canvas.Y) / float64(natural.Y)

	switch style {
	case ImageStretched:
		return canvas
	case ImageScaled:
		return scaleSize(natural, math.Min(sx, sy))
	case ImageZoomed, ImageSpanning:
		return scaleSize(natural, math.Max(sx, sy))
	}
	return natural
}

func scaleSize(p image.Point, s float64) image.Point {
	return image.Pt(
		max(1, int(math.Round(float64(p.X)*s))),
		max(1, int(math.Round(float64(p.Y)*s))),
	)
}

// Resize scales img to size with bilinear filtering.
func Resize(img image.Image, size image.Point) *image.NRGBA {
	dst := image.NewNRGBA(image.Rectangle{Max: size})
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Composite draws img, already at its target size, onto canvas according to
// style. An image the size of the canvas is always placed centered.
func Composite(canvas *image.NRGBA, img image.Image, style ImageStyle) {
	size := img.Bounds().Size()
	if style == ImageNone || size.X <= 0 || size.Y <= 0 {
		return
	}
	cb := canvas.Bounds()
	if size == cb.Size() {
		style = ImageCentered
	}

	switch style {
	case ImageTiled:
		src := img.Bounds()
		for y := cb.Min.Y; y < cb.Max.Y; y += src.Dy() {
			for x := cb.Min.X; x < cb.Max.X; x += src.Dx() {
				dr := image.Rect(x, y, x+src.Dx(), y+src.Dy())
				draw.NearestNeighbor.Scale(canvas, dr, img, src, draw.Over, nil)
			}
		}
	case ImageCentered:
		draw.NearestNeighbor.Scale(canvas, centeredRect(cb, size), img, img.Bounds(), draw.Over, nil)
	default:
		draw.BiLinear.Scale(canvas, centeredRect(cb, size), img, img.Bounds(), draw.Over, nil)
	}
}

// centeredRect returns a rectangle of size sz centered in b. It may extend
// past b, in which case drawing crops it.
func centeredRect(b image.Rectangle, sz image.Point) image.Rectangle {
	x := b.Min.X + (b.Dx()-sz.X)/2
	y := b.Min.Y + (b.Dy()-sz.Y)/2
	return image.Rect(x, y, x+sz.X, y+sz.Y)
}

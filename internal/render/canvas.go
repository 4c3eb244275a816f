package render

import (
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
)

const gamma = 2.2

// RGBA is a color with straight (non-premultiplied) components in [0, 1].
type RGBA struct {
	R, G, B, A float64
}

// RGBAFromSlice converts a 4-element list; ok is false for any other length.
func RGBAFromSlice(v []float64) (RGBA, bool) {
	if len(v) != 4 {
		return RGBA{}, false
	}
	return RGBA{R: clamp01(v[0]), G: clamp01(v[1]), B: clamp01(v[2]), A: clamp01(v[3])}, true
}

// Slice returns c as a 4-element list.
func (c RGBA) Slice() []float64 {
	return []float64{c.R, c.G, c.B, c.A}
}

// ParseRGBA parses "r,g,b,a" with components in [0, 1].
func ParseRGBA(s string) (RGBA, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return RGBA{}, fmt.Errorf("invalid color %q: want r,g,b,a", s)
	}
	v := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
		}
		v[i] = f
	}
	c, _ := RGBAFromSlice(v)
	return c, nil
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}

// NewCanvas generates the base surface for a color style. Gradients are
// interpolated in linear light and dithered back to 8 bits using rng.
func NewCanvas(style ColorStyle, c1, c2 RGBA, width, height int, rng *rand.Rand) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	switch style {
	case ColorTransparent:
		return img
	case ColorHorizontal:
		ramp := gradientRamp(c1, c2, width)
		for y := 0; y < height; y++ {
			row := img.Pix[y*img.Stride:]
			for x := 0; x < width; x++ {
				ditherPixel(row[x*4:x*4+4], ramp[x], rng)
			}
		}
	case ColorVertical:
		ramp := gradientRamp(c1, c2, height)
		for y := 0; y < height; y++ {
			row := img.Pix[y*img.Stride:]
			for x := 0; x < width; x++ {
				ditherPixel(row[x*4:x*4+4], ramp[y], rng)
			}
		}
	default:
		px := [4]uint8{to8(c1.R), to8(c1.G), to8(c1.B), to8(c1.A)}
		for i := 0; i < len(img.Pix); i += 4 {
			copy(img.Pix[i:i+4], px[:])
		}
	}
	return img
}

// gradientRamp returns n colors from c1 to c2, scaled to [0, 255] but not
// yet rounded.
func gradientRamp(c1, c2 RGBA, n int) [][4]float64 {
	lin1 := [3]float64{toLinear(c1.R), toLinear(c1.G), toLinear(c1.B)}
	lin2 := [3]float64{toLinear(c2.R), toLinear(c2.G), toLinear(c2.B)}

	ramp := make([][4]float64, n)
	for i := range ramp {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		for ch := 0; ch < 3; ch++ {
			ramp[i][ch] = fromLinear(lin1[ch]+(lin2[ch]-lin1[ch])*t) * 255
		}
		ramp[i][3] = (c1.A + (c2.A-c1.A)*t) * 255
	}
	return ramp
}

// ditherPixel rounds each channel up or down at random, weighted by its
// fractional part.
func ditherPixel(dst []uint8, v [4]float64, rng *rand.Rand) {
	for ch := 0; ch < 4; ch++ {
		f := math.Floor(v[ch] + rng.Float64())
		dst[ch] = uint8(math.Max(0, math.Min(255, f)))
	}
}

func toLinear(v float64) float64 {
	return math.Pow(clamp01(v), gamma)
}

func fromLinear(v float64) float64 {
	return math.Pow(clamp01(v), 1/gamma)
}

func to8(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

package render

import (
	"fmt"
	"strconv"
	"strings"
)

// ColorStyle selects how the canvas is filled.
type ColorStyle int

const (
	ColorSolid ColorStyle = iota
	ColorHorizontal
	ColorVertical
	ColorTransparent
)

var colorStyleNames = []string{"solid", "horizontal", "vertical", "transparent"}

func (s ColorStyle) String() string {
	if s < 0 || int(s) >= len(colorStyleNames) {
		return fmt.Sprintf("ColorStyle(%d)", int(s))
	}
	return colorStyleNames[s]
}

// Valid reports whether s is a known color style.
func (s ColorStyle) Valid() bool {
	return s >= 0 && int(s) < len(colorStyleNames)
}

// ImageStyle selects how the image is fitted onto the canvas.
type ImageStyle int

const (
	ImageNone ImageStyle = iota
	ImageCentered
	ImageTiled
	ImageStretched
	ImageScaled
	ImageZoomed
	ImageSpanning
)

var imageStyleNames = []string{"none", "centered", "tiled", "stretched", "scaled", "zoomed", "spanning"}

func (s ImageStyle) String() string {
	if s < 0 || int(s) >= len(imageStyleNames) {
		return fmt.Sprintf("ImageStyle(%d)", int(s))
	}
	return imageStyleNames[s]
}

// Valid reports whether s is a known image style.
func (s ImageStyle) Valid() bool {
	return s >= 0 && int(s) < len(imageStyleNames)
}

// ParseColorStyle accepts a style name or its numeric value.
func ParseColorStyle(s string) (ColorStyle, error) {
	i, err := parseEnum(s, colorStyleNames)
	if err != nil {
		return 0, fmt.Errorf("invalid color style %q", s)
	}
	return ColorStyle(i), nil
}

// ParseImageStyle accepts a style name or its numeric value.
func ParseImageStyle(s string) (ImageStyle, error) {
	i, err := parseEnum(s, imageStyleNames)
	if err != nil {
		return 0, fmt.Errorf("invalid image style %q", s)
	}
	return ImageStyle(i), nil
}

func parseEnum(s string, names []string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range names {
		if s == name {
			return i, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 || n >= len(names) {
		return 0, fmt.Errorf("out of range")
	}
	return n, nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/1broseidon/backdrop/internal/backdrop"
	"github.com/1broseidon/backdrop/internal/render"
)

func runRender(args []string) int {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	width := fs.Int("width", 1920, "Surface width in pixels")
	height := fs.Int("height", 1080, "Surface height in pixels")
	colorStyle := fs.String("color-style", "solid", "Canvas style: solid, horizontal, vertical, transparent")
	rgba1 := fs.String("rgba1", "", "First canvas color as r,g,b,a in 0..1")
	rgba2 := fs.String("rgba2", "", "Second canvas color as r,g,b,a in 0..1")
	imageStyle := fs.String("image-style", "zoomed", "Image style: none, centered, tiled, stretched, scaled, zoomed, spanning")
	imagePath := fs.String("image", "", "Image file to place on the canvas")
	out := fs.String("o", "", "Output file (.png, .bmp or .tiff)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: backdrop render [options] -o OUT")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Render one backdrop surface to a file without a running daemon.")
		fs.PrintDefaults()
	}
	if code, ok := parseFlags(fs, args, 0); !ok {
		return code
	}
	if *out == "" {
		fmt.Fprintln(os.Stderr, "render requires -o OUT")
		fs.Usage()
		return 2
	}

	req, err := buildRenderRequest(*width, *height, *colorStyle, *rgba1, *rgba2, *imageStyle, *imagePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	result, err := render.New(render.Options{}).Render(context.Background(), req)
	var decodeErr *render.DecodeError
	if err != nil && !errors.As(err, &decodeErr) {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if decodeErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v (writing canvas only)\n", decodeErr)
	}

	if err := writeImage(*out, result.Image); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("wrote %s (%dx%d)\n", *out, result.Width, result.Height)
	return 0
}

func buildRenderRequest(width, height int, colorStyle, rgba1, rgba2, imageStyle, imagePath string) (render.Request, error) {
	req := render.Request{
		Color1:    backdrop.DefaultColor1,
		Color2:    backdrop.DefaultColor2,
		ImagePath: imagePath,
		Width:     width,
		Height:    height,
	}
	if width <= 0 || height <= 0 {
		return req, fmt.Errorf("invalid size %dx%d", width, height)
	}

	var err error
	if req.ColorStyle, err = render.ParseColorStyle(colorStyle); err != nil {
		return req, fmt.Errorf("--color-style: %w", err)
	}
	if req.ImageStyle, err = render.ParseImageStyle(imageStyle); err != nil {
		return req, fmt.Errorf("--image-style: %w", err)
	}
	if rgba1 != "" {
		if req.Color1, err = render.ParseRGBA(rgba1); err != nil {
			return req, fmt.Errorf("--rgba1: %w", err)
		}
	}
	if rgba2 != "" {
		if req.Color2, err = render.ParseRGBA(rgba2); err != nil {
			return req, fmt.Errorf("--rgba2: %w", err)
		}
	}
	return req, nil
}

func writeImage(path string, img image.Image) error {
	var encode func(io.Writer, image.Image) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		encode = png.Encode
	case ".bmp":
		encode = bmp.Encode
	case ".tif", ".tiff":
		encode = func(w io.Writer, img image.Image) error { return tiff.Encode(w, img, nil) }
	default:
		return fmt.Errorf("unsupported output format %q (use .png, .bmp or .tiff)", filepath.Ext(path))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

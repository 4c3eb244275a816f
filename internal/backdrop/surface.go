package backdrop

import (
	"context"
	"image"

	"github.com/1broseidon/backdrop/internal/config"
	"github.com/1broseidon/backdrop/internal/monitor"
	"github.com/1broseidon/backdrop/internal/platform"
	"github.com/1broseidon/backdrop/internal/propkey"
	"github.com/1broseidon/backdrop/internal/render"
)

// AllWorkspaces in a Change means every workspace of the monitor.
const AllWorkspaces = -1

// Default canvas colors for keys without rgba properties.
var (
	DefaultColor1 = render.RGBA{R: 0.08, G: 0.2, B: 0.33, A: 1}
	DefaultColor2 = render.RGBA{R: 0.6, G: 0.66, B: 0.72, A: 1}
)

// Renderer produces surfaces; *render.Renderer implements it.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
}

// Surface is a rendered backdrop as delivered to one caller.
type Surface struct {
	Image *image.NRGBA
	// Paint is the part of Image that belongs to the requested monitor: the
	// whole image normally, the monitor's offset into the shared canvas when
	// spanning.
	Paint    platform.Rect
	Filename string
	Spanning bool
}

// Callback receives the outcome of GetImageSurface. A *render.DecodeError
// comes with a fallback surface; render.ErrCancelled never does.
type Callback func(*Surface, error)

// Change tells observers that the backdrop of a monitor must be fetched
// again.
type Change struct {
	Monitor   string
	Workspace int
}

// EntryInfo describes one cache entry.
type EntryInfo struct {
	Key          propkey.Key
	Filename     string
	Width        int
	Height       int
	Spanning     bool
	Cached       bool
	CycleEnabled bool
}

func paintRect(mon *monitor.Monitor, spanning bool, union platform.Rect) platform.Rect {
	g := mon.Geometry
	if spanning {
		return platform.Rect{X: g.X - union.X, Y: g.Y - union.Y, Width: g.Width, Height: g.Height}
	}
	return platform.Rect{Width: g.Width, Height: g.Height}
}

// requestFor reads the render properties of key.
func requestFor(store *config.Store, resolver *propkey.Resolver, key propkey.Key, width, height int) render.Request {
	color1, ok := render.RGBAFromSlice(store.GetDoubleArray(key.Property(propkey.RGBA1), nil))
	if !ok {
		color1 = DefaultColor1
	}
	color2, ok := render.RGBAFromSlice(store.GetDoubleArray(key.Property(propkey.RGBA2), nil))
	if !ok {
		color2 = DefaultColor2
	}
	colorStyle := render.ColorStyle(store.GetInt(key.Property(propkey.ColorStyle), int(render.ColorSolid)))
	if !colorStyle.Valid() {
		colorStyle = render.ColorSolid
	}
	return render.Request{
		ColorStyle: colorStyle,
		Color1:     color1,
		Color2:     color2,
		ImageStyle: resolver.ImageStyle(key),
		ImagePath:  store.GetString(key.Property(propkey.LastImage), ""),
		Width:      width,
		Height:     height,
	}
}

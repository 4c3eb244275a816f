package platform

import "image"

// OutputID is the platform handle of a display output (the RandR output XID
// on X11). It is only meaningful for the lifetime of one display connection.
type OutputID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rectangle containing r and o. An empty operand
// is ignored.
func (r Rect) Union(o Rect) Rect {
	if r.Empty() {
		return o
	}
	if o.Empty() {
		return r
	}
	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.X+r.Width, o.X+o.Width)
	y2 := max(r.Y+r.Height, o.Y+o.Height)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Output describes one physical display as reported by the platform.
type Output struct {
	Handle OutputID
	// Name is the stable identifier used in property keys (the connector
	// name on X11, e.g. "DP-1").
	Name   string
	Bounds Rect
	Scale  float64
}

// Workspace is a virtual desktop.
type Workspace struct {
	Number int
	Name   string
}

// TopologyProvider enumerates monitors and workspaces.
type TopologyProvider interface {
	Outputs() ([]Output, error)
	Workspaces() ([]Workspace, error)
	CurrentWorkspace() (int, error)
}

// EventSource delivers topology and active-workspace change notifications.
// Callbacks run on the platform's event goroutine.
type EventSource interface {
	OnTopologyChanged(fn func())
	OnWorkspaceChanged(fn func(workspace int))
}

// Painter displays a composed background covering the whole screen.
type Painter interface {
	ScreenSize() (width, height int)
	SetBackground(img image.Image) error
}

// Backend abstracts the display-server operations the daemon needs.
type Backend interface {
	TopologyProvider
	EventSource
	Painter
	EventLoop()
	Disconnect()
}

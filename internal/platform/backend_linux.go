//go:build linux

package platform

import (
	"fmt"
	"image"
	"log"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"

	"github.com/1broseidon/backdrop/internal/x11"
)

// LinuxBackend wraps an X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn    *x11.Connection
	painter *x11.RootPainter

	mu         sync.Mutex
	onTopology []func()
	onDesktop  []func(int)
	watching   bool
}

var _ Backend = (*LinuxBackend)(nil)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{
		conn:    conn,
		painter: x11.NewRootPainter(conn),
	}
}

// NewLinuxBackendFromDisplay opens a fresh X11 connection to display
// (empty: $DISPLAY).
func NewLinuxBackendFromDisplay(display string) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Disconnect releases the root pixmap and closes the X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b == nil || b.conn == nil {
		return
	}
	b.painter.Release()
	b.conn.Quit()
	b.conn.Close()
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// Outputs returns all active outputs, primary first.
func (b *LinuxBackend) Outputs() ([]Output, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	outputs := make([]Output, 0, len(monitors))
	for _, m := range monitors {
		outputs = append(outputs, outputFromMonitor(m))
	}
	return outputs, nil
}

// Workspaces returns one entry per EWMH desktop.
func (b *LinuxBackend) Workspaces() ([]Workspace, error) {
	conn, err := b.connection()
	if err != nil {
		return nil, err
	}

	count, err := conn.GetDesktopCount()
	if err != nil {
		return nil, err
	}
	names := conn.GetDesktopNames()

	workspaces := make([]Workspace, count)
	for i := range workspaces {
		workspaces[i].Number = i
		if i < len(names) {
			workspaces[i].Name = names[i]
		}
	}
	return workspaces, nil
}

// CurrentWorkspace returns the active EWMH desktop.
func (b *LinuxBackend) CurrentWorkspace() (int, error) {
	conn, err := b.connection()
	if err != nil {
		return 0, err
	}
	return conn.GetCurrentDesktop()
}

func (b *LinuxBackend) OnTopologyChanged(fn func()) {
	b.mu.Lock()
	b.onTopology = append(b.onTopology, fn)
	b.mu.Unlock()
	b.ensureWatching()
}

func (b *LinuxBackend) OnWorkspaceChanged(fn func(workspace int)) {
	b.mu.Lock()
	b.onDesktop = append(b.onDesktop, fn)
	b.mu.Unlock()
	b.ensureWatching()
}

func (b *LinuxBackend) ensureWatching() {
	b.mu.Lock()
	if b.watching || b.conn == nil {
		b.mu.Unlock()
		return
	}
	b.watching = true
	b.mu.Unlock()

	if err := b.conn.WatchScreenChanges(b.emitTopology); err != nil {
		// Without RandR events the daemon's reconciler still notices changes.
		log.Printf("Warning: %v", err)
	}
	err := b.conn.WatchRootProperties(func(name string) {
		switch name {
		case "_NET_CURRENT_DESKTOP":
			if ws, err := b.conn.GetCurrentDesktop(); err == nil {
				b.emitDesktop(ws)
			}
		case "_NET_NUMBER_OF_DESKTOPS":
			b.emitTopology()
		}
	}, "_NET_CURRENT_DESKTOP", "_NET_NUMBER_OF_DESKTOPS")
	if err != nil {
		log.Printf("Warning: %v", err)
	}
}

func (b *LinuxBackend) emitTopology() {
	b.mu.Lock()
	fns := append([]func(){}, b.onTopology...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (b *LinuxBackend) emitDesktop(ws int) {
	b.mu.Lock()
	fns := append([]func(int){}, b.onDesktop...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ws)
	}
}

// ScreenSize returns the root window size.
func (b *LinuxBackend) ScreenSize() (int, int) {
	if b == nil || b.conn == nil {
		return 0, 0
	}
	return b.conn.ScreenSize()
}

// SetBackground installs img as the root window background.
func (b *LinuxBackend) SetBackground(img image.Image) error {
	if _, err := b.connection(); err != nil {
		return err
	}
	return b.painter.SetBackground(img)
}

// XUtil exposes the underlying X connection for X-specific helpers such as
// global hotkeys.
func (b *LinuxBackend) XUtil() *xgbutil.XUtil {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.XUtil
}

// RootWindow returns the root window of the connected screen.
func (b *LinuxBackend) RootWindow() xproto.Window {
	if b == nil || b.conn == nil {
		return 0
	}
	return b.conn.Root
}

func (b *LinuxBackend) connection() (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	return b.conn, nil
}

func outputFromMonitor(m x11.Monitor) Output {
	return Output{
		Handle: OutputID(m.Output),
		Name:   m.Name,
		Bounds: Rect{
			X:      m.X,
			Y:      m.Y,
			Width:  m.Width,
			Height: m.Height,
		},
		// X11 has no per-output scale; RandR geometry is in device pixels.
		Scale: 1,
	}
}

package x11

import (
	"fmt"
	"image"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/BurntSushi/xgbutil/xprop"
)

// RootPainter sets the root window background pixmap and publishes it via
// _XROOTPMAP_ID / ESETROOT_PMAP_ID so compositors and pseudo-transparent
// clients pick it up.
type RootPainter struct {
	conn *Connection

	mu      sync.Mutex
	current *xgraphics.Image
}

func NewRootPainter(conn *Connection) *RootPainter {
	return &RootPainter{conn: conn}
}

// SetBackground uploads img to a new pixmap and installs it on the root
// window. The previously installed pixmap is freed afterwards.
func (p *RootPainter) SetBackground(img image.Image) error {
	xu := p.conn.XUtil

	ximg := xgraphics.NewConvert(xu, img)
	if err := ximg.CreatePixmap(); err != nil {
		ximg.Destroy()
		return fmt.Errorf("failed to create root pixmap: %w", err)
	}
	if err := ximg.XDrawChecked(); err != nil {
		ximg.Destroy()
		return fmt.Errorf("failed to draw root pixmap: %w", err)
	}

	err := xproto.ChangeWindowAttributesChecked(xu.Conn(), p.conn.Root,
		xproto.CwBackPixmap, []uint32{uint32(ximg.Pixmap)}).Check()
	if err != nil {
		ximg.Destroy()
		return fmt.Errorf("failed to set root background: %w", err)
	}
	xproto.ClearArea(xu.Conn(), false, p.conn.Root, 0, 0, 0, 0)

	for _, prop := range []string{"_XROOTPMAP_ID", "ESETROOT_PMAP_ID"} {
		if err := xprop.ChangeProp32(xu, p.conn.Root, prop, "PIXMAP", uint(ximg.Pixmap)); err != nil {
			return fmt.Errorf("failed to set %s: %w", prop, err)
		}
	}

	p.mu.Lock()
	prev := p.current
	p.current = ximg
	p.mu.Unlock()

	if prev != nil {
		prev.Destroy()
	}
	return nil
}

// Release frees the installed pixmap.
func (p *RootPainter) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil {
		p.current.Destroy()
		p.current = nil
	}
}

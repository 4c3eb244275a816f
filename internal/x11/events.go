package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// WatchScreenChanges calls fn for every RandR screen, CRTC or output change.
// fn runs on the event loop goroutine.
func (c *Connection) WatchScreenChanges(fn func()) error {
	mask := uint16(randr.NotifyMaskScreenChange | randr.NotifyMaskCrtcChange | randr.NotifyMaskOutputChange)
	if err := randr.SelectInputChecked(c.XUtil.Conn(), c.Root, mask).Check(); err != nil {
		return fmt.Errorf("randr select input failed: %w", err)
	}

	xevent.HookFun(func(xu *xgbutil.XUtil, ev interface{}) bool {
		switch ev.(type) {
		case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
			fn()
		}
		return true
	}).Connect(c.XUtil)
	return nil
}

// WatchRootProperties calls fn with the atom name of every root window
// property change in names (e.g. _NET_CURRENT_DESKTOP).
func (c *Connection) WatchRootProperties(fn func(name string), names ...string) error {
	root := xwindow.New(c.XUtil, c.Root)
	if err := root.Listen(xproto.EventMaskPropertyChange); err != nil {
		return fmt.Errorf("failed to listen on root window: %w", err)
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		name, err := xprop.AtomName(xu, ev.Atom)
		if err != nil {
			return
		}
		if len(wanted) == 0 || wanted[name] {
			fn(name)
		}
	}).Connect(c.XUtil, c.Root)
	return nil
}

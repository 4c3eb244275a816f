package hotkeys

import (
	"fmt"
	"log"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"

	"github.com/1broseidon/backdrop/internal/platform"
)

// x11Accessor is an optional interface for backends that expose X11 internals.
type x11Accessor interface {
	XUtil() *xgbutil.XUtil
	RootWindow() xproto.Window
}

// Handler manages global keyboard shortcuts
type Handler struct {
	xu   *xgbutil.XUtil
	root xproto.Window
}

var ignoreModsOnce sync.Once

// NewHandler creates a new hotkey handler. Backends without X11 access
// yield a handler whose registrations fail.
func NewHandler(backend platform.Backend) *Handler {
	var xu *xgbutil.XUtil
	var root xproto.Window
	if accessor, ok := backend.(x11Accessor); ok {
		xu = accessor.XUtil()
		root = accessor.RootWindow()
	}

	if xu != nil {
		ignoreModsOnce.Do(func() {
			configureIgnoreMods(xu)
		})
	}

	return &Handler{
		xu:   xu,
		root: root,
	}
}

// RegisterFunc registers an arbitrary hotkey callback. An empty key
// sequence is a no-op.
func (h *Handler) RegisterFunc(keySequence string, callback func()) error {
	if keySequence == "" {
		return nil
	}
	if h.xu == nil {
		return fmt.Errorf("hotkeys need an X11 backend")
	}
	return keybind.KeyPressFun(func(xu *xgbutil.XUtil, ev xevent.KeyPressEvent) {
		callback()
	}).Connect(h.xu, h.root, keySequence, true)
}

// Actions are the daemon operations bound to hotkeys.
type Actions struct {
	Next    func() error
	Refresh func() error
}

// Bindings maps key sequences (e.g. "Mod4-Shift-n") to actions.
type Bindings struct {
	Next    string
	Refresh string
}

// RegisterAll binds every non-empty key sequence. Failures are logged and
// do not stop the remaining registrations.
func (h *Handler) RegisterAll(b Bindings, a Actions) {
	register := func(name, seq string, fn func() error) {
		if seq == "" || fn == nil {
			return
		}
		err := h.RegisterFunc(seq, func() {
			if err := fn(); err != nil {
				log.Printf("%s hotkey failed: %v", name, err)
			}
		})
		if err != nil {
			log.Printf("Warning: Failed to register %s hotkey %q: %v", name, seq, err)
			return
		}
		log.Printf("%s hotkey registered: %s", name, seq)
	}
	register("next", b.Next, a.Next)
	register("refresh", b.Refresh, a.Refresh)
}

func configureIgnoreMods(xu *xgbutil.XUtil) {
	// Always ignore CapsLock.
	caps := uint16(xproto.ModMaskLock)

	numLock := modMaskForKeysym(xu, "Num_Lock")
	scrollLock := modMaskForKeysym(xu, "Scroll_Lock")

	unique := make(map[uint16]struct{})
	add := func(mask uint16) {
		unique[mask] = struct{}{}
	}

	add(0)
	base := []uint16{caps}
	if numLock != 0 && numLock != caps {
		base = append(base, numLock)
	}
	if scrollLock != 0 && scrollLock != caps && scrollLock != numLock {
		base = append(base, scrollLock)
	}

	for subset := 1; subset < (1 << len(base)); subset++ {
		var mask uint16
		for bit := range base {
			if subset&(1<<bit) != 0 {
				mask |= base[bit]
			}
		}
		add(mask)
	}

	ignore := make([]uint16, 0, len(unique))
	for mask := range unique {
		ignore = append(ignore, mask)
	}

	xevent.IgnoreMods = ignore
}

func modMaskForKeysym(xu *xgbutil.XUtil, keysym string) uint16 {
	for _, keycode := range keybind.StrToKeycodes(xu, keysym) {
		if mask := keybind.ModGet(xu, keycode); mask != 0 {
			return mask
		}
	}
	return 0
}

package propkey

import (
	"fmt"

	"github.com/1broseidon/backdrop/internal/config"
	"github.com/1broseidon/backdrop/internal/monitor"
	"github.com/1broseidon/backdrop/internal/render"
)

// DefaultImageStyle applies when a key has no image-style property.
const DefaultImageStyle = render.ImageZoomed

// Resolved is the outcome of resolving a (monitor, workspace) pair.
type Resolved struct {
	Key Key
	// Monitor is the monitor whose configuration applies: the first monitor
	// when spanning, the requested one otherwise.
	Monitor  *monitor.Monitor
	Spanning bool
}

// Resolver maps (monitor, workspace) pairs to backdrop keys. It holds no
// state of its own; every call reads the store and registry afresh.
type Resolver struct {
	store    *config.Store
	registry *monitor.Registry
	screen   int
}

func NewResolver(store *config.Store, registry *monitor.Registry, screen int) *Resolver {
	return &Resolver{store: store, registry: registry, screen: screen}
}

// Screen returns the X screen number used in keys.
func (r *Resolver) Screen() int {
	return r.screen
}

// Workspace applies single-workspace mode to ws.
func (r *Resolver) Workspace(ws int) int {
	if r.store.GetBool(SingleWorkspaceMode, false) {
		return r.store.GetInt(SingleWorkspaceNumber, 0)
	}
	return ws
}

// Resolve returns the key that configures monitorID on workspace ws. The
// first monitor's image-style is re-read on every call so that switching it
// to spanning takes effect without extra bookkeeping.
func (r *Resolver) Resolve(monitorID string, ws int) (Resolved, error) {
	mon := r.registry.ByID(monitorID)
	if mon == nil {
		return Resolved{}, fmt.Errorf("%w: %s", ErrMonitorNotFound, monitorID)
	}
	ws = r.Workspace(ws)

	if first := r.registry.First(); first != nil {
		firstKey := Key{Screen: r.screen, Monitor: first.ID, Workspace: ws}
		if r.ImageStyle(firstKey) == render.ImageSpanning {
			return Resolved{Key: firstKey, Monitor: first, Spanning: true}, nil
		}
	}

	return Resolved{
		Key:     Key{Screen: r.screen, Monitor: mon.ID, Workspace: ws},
		Monitor: mon,
	}, nil
}

// ImageStyle reads the image-style property of k.
func (r *Resolver) ImageStyle(k Key) render.ImageStyle {
	style := render.ImageStyle(r.store.GetInt(k.Property(ImageStyle), int(DefaultImageStyle)))
	if !style.Valid() {
		return DefaultImageStyle
	}
	return style
}

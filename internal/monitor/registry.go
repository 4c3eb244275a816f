package monitor

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/1broseidon/backdrop/internal/platform"
)

// Monitor is the registry's record of one physical display.
//
// A Monitor is never mutated after creation. When an output's geometry or
// scale changes a new record replaces the old one, so renders still holding
// the old pointer keep a consistent view.
type Monitor struct {
	// ID is the stable identifier used in property keys.
	ID       string
	Handle   platform.OutputID
	Geometry platform.Rect
	Scale    float64
}

func (m *Monitor) String() string {
	return fmt.Sprintf("%s %dx%d+%d+%d", m.ID, m.Geometry.Width, m.Geometry.Height, m.Geometry.X, m.Geometry.Y)
}

// Registry tracks the current display topology.
type Registry struct {
	mu       sync.RWMutex
	monitors []*Monitor
	byHandle map[platform.OutputID]*Monitor
	union    platform.Rect
	logger   *slog.Logger
}

// NewRegistry creates an empty registry. A nil logger uses slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		byHandle: make(map[platform.OutputID]*Monitor),
		logger:   logger,
	}
}

// Refresh reconciles the registry against outputs, matching existing records
// by platform handle. It returns the records that were dropped. Refresh is
// idempotent.
func (r *Registry) Refresh(outputs []platform.Output) []*Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make([]*Monitor, 0, len(outputs))
	nextByHandle := make(map[platform.OutputID]*Monitor, len(outputs))
	seenIDs := make(map[string]bool, len(outputs))
	var union platform.Rect

	for _, out := range outputs {
		if _, dup := nextByHandle[out.Handle]; dup {
			r.logger.Warn("duplicate output handle in topology", "handle", out.Handle, "name", out.Name)
			continue
		}

		id := out.Name
		if id == "" || seenIDs[id] {
			id = fmt.Sprintf("%s-%d", out.Name, out.Handle)
		}
		seenIDs[id] = true

		scale := out.Scale
		if scale <= 0 {
			scale = 1
		}

		mon := r.byHandle[out.Handle]
		if mon == nil || mon.ID != id || mon.Geometry != out.Bounds || mon.Scale != scale {
			mon = &Monitor{
				ID:       id,
				Handle:   out.Handle,
				Geometry: out.Bounds,
				Scale:    scale,
			}
		}

		next = append(next, mon)
		nextByHandle[out.Handle] = mon
		union = union.Union(out.Bounds)
	}

	var removed []*Monitor
	for _, old := range r.monitors {
		cur, ok := r.byHandle[old.Handle]
		if !ok {
			r.logger.Warn("monitor missing from handle table", "monitor", old.ID, "handle", old.Handle)
		} else if cur != old {
			r.logger.Warn("monitor handle table out of sync", "monitor", old.ID, "handle", old.Handle)
		}
		if repl, ok := nextByHandle[old.Handle]; !ok || repl.ID != old.ID {
			removed = append(removed, old)
		}
	}

	r.monitors = next
	r.byHandle = nextByHandle
	r.union = union

	if len(removed) > 0 {
		r.logger.Info("monitors removed", "count", len(removed))
	}
	return removed
}

// Len returns the number of monitors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.monitors)
}

// At returns the monitor at index i, or nil when out of range.
func (r *Registry) At(i int) *Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.monitors) {
		return nil
	}
	return r.monitors[i]
}

// First returns the first (primary) monitor, or nil when there are none.
func (r *Registry) First() *Monitor {
	return r.At(0)
}

// ByID returns the monitor with the given identifier, or nil.
func (r *Registry) ByID(id string) *Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.monitors {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// ByHandle returns the monitor for a platform output handle, or nil.
func (r *Registry) ByHandle(h platform.OutputID) *Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byHandle[h]
}

// All returns a copy of the monitor list in topology order.
func (r *Registry) All() []*Monitor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Monitor, len(r.monitors))
	copy(out, r.monitors)
	return out
}

// Union returns the bounding rectangle of all monitors.
func (r *Registry) Union() platform.Rect {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.union
}

// Matches reports whether outputs describe exactly the current topology.
func (r *Registry) Matches(outputs []platform.Output) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(outputs) != len(r.monitors) {
		return false
	}
	for i, out := range outputs {
		m := r.monitors[i]
		if m.Handle != out.Handle || m.Geometry != out.Bounds {
			return false
		}
	}
	return true
}

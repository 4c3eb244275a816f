// Package daemon wires the backdrop manager to the display: topology and
// workspace events in, composed root backgrounds out, IPC on the side.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/backdrop/internal/backdrop"
	"github.com/1broseidon/backdrop/internal/config"
	"github.com/1broseidon/backdrop/internal/cycler"
	"github.com/1broseidon/backdrop/internal/ipc"
	"github.com/1broseidon/backdrop/internal/platform"
	"github.com/1broseidon/backdrop/internal/propkey"
)

// Options configures a Daemon.
type Options struct {
	Backend  platform.Backend
	Store    *config.Store
	Renderer backdrop.Renderer
	Screen   int
	// PaintRoot false keeps rendering (and the cache) alive without setting
	// the root window background.
	PaintRoot         bool
	ReconcileInterval time.Duration
	// WatchConfig reloads the store when its file changes on disk.
	WatchConfig bool
	Logger      *slog.Logger
	Cycler      cycler.Options
}

// Daemon owns the manager, painter and reconciler for one display.
type Daemon struct {
	backend    platform.Backend
	store      *config.Store
	manager    *backdrop.Manager
	painter    *Painter
	reconciler *Reconciler
	interval   time.Duration
	watch      bool
	logger     *slog.Logger

	mu        sync.Mutex
	workspace int
}

// New creates a daemon. Nothing touches the display until Run.
func New(opts Options) *Daemon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	d := &Daemon{
		backend:  opts.Backend,
		store:    opts.Store,
		interval: opts.ReconcileInterval,
		watch:    opts.WatchConfig,
		logger:   logger,
	}
	d.manager = backdrop.NewManager(backdrop.Options{
		Store:    opts.Store,
		Topology: opts.Backend,
		Renderer: opts.Renderer,
		Screen:   opts.Screen,
		Logger:   logger,
		Cycler:   opts.Cycler,
	})

	var target platform.Painter
	if opts.PaintRoot {
		target = opts.Backend
	}
	d.painter = NewPainter(d.manager, target, d.CurrentWorkspace, logger)
	d.reconciler = NewReconciler(ReconcilerConfig{
		Interval: opts.ReconcileInterval,
		Logger:   logger,
	}, opts.Backend, d.manager.Registry(), d.manager.OnMonitorsChanged)
	return d
}

// Manager returns the backdrop manager.
func (d *Daemon) Manager() *backdrop.Manager {
	return d.manager
}

// Run loads the topology, paints every monitor and keeps the background
// current until ctx is done. The platform event loop must run separately.
func (d *Daemon) Run(ctx context.Context) error {
	if ws, err := d.backend.CurrentWorkspace(); err != nil {
		d.logger.Warn("failed to read current workspace, using 0", "error", err)
	} else {
		d.setWorkspace(ws)
	}

	if err := d.manager.OnMonitorsChanged(); err != nil {
		return fmt.Errorf("failed to load monitors: %w", err)
	}
	for _, mon := range d.manager.Registry().All() {
		d.logger.Info("monitor", "id", mon.ID, "geometry", mon.String())
	}

	unsubscribe := d.manager.Subscribe(d.onChange)
	defer unsubscribe()
	defer d.manager.Close()

	d.backend.OnTopologyChanged(d.onTopologyChanged)
	d.backend.OnWorkspaceChanged(d.onWorkspaceChanged)

	var wg sync.WaitGroup
	if d.watch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := config.Watch(ctx, d.store, d.logger); err != nil {
				d.logger.Warn("config watch unavailable", "error", err)
			}
		}()
	}
	if d.interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.reconciler.Run(ctx)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.painter.Run(ctx)
	}()

	d.painter.Request()
	d.logger.Info("backdrop daemon running", "monitors", d.manager.Registry().Len(), "workspace", d.CurrentWorkspace())

	<-ctx.Done()
	wg.Wait()
	d.logger.Info("backdrop daemon stopped")
	return nil
}

// CurrentWorkspace returns the last active workspace reported by the
// platform.
func (d *Daemon) CurrentWorkspace() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.workspace
}

func (d *Daemon) setWorkspace(ws int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workspace = ws
}

func (d *Daemon) onTopologyChanged() {
	if err := d.manager.OnMonitorsChanged(); err != nil {
		d.logger.Warn("failed to apply monitor change", "error", err)
	}
}

func (d *Daemon) onWorkspaceChanged(ws int) {
	d.setWorkspace(ws)
	d.logger.Debug("workspace changed", "workspace", ws)
	d.painter.Request()
}

// onChange repaints when a backdrop visible on the current workspace has
// changed.
func (d *Daemon) onChange(c backdrop.Change) {
	if c.Workspace != backdrop.AllWorkspaces &&
		c.Workspace != d.manager.Resolver().Workspace(d.CurrentWorkspace()) {
		return
	}
	d.painter.Request()
}

// Reload re-reads the config file into the store.
func (d *Daemon) Reload() error {
	if _, err := d.store.Reload(); err != nil {
		return err
	}
	return nil
}

// Status implements ipc.Handler.
func (d *Daemon) Status() ipc.StatusData {
	entries, inflight := d.manager.Stats()
	current := d.CurrentWorkspace()
	return ipc.StatusData{
		MonitorCount:     d.manager.Registry().Len(),
		CachedBackdrops:  entries,
		InFlightRenders:  inflight,
		CurrentWorkspace: current,
		ConfigPath:       d.store.Path(),
		Workspaces:       d.workspaces(current),
	}
}

// workspaces lists the platform's desktops. A failed query yields none.
func (d *Daemon) workspaces(current int) []ipc.WorkspaceInfo {
	list, err := d.backend.Workspaces()
	if err != nil {
		d.logger.Debug("failed to list workspaces", "error", err)
		return nil
	}
	infos := make([]ipc.WorkspaceInfo, 0, len(list))
	for _, ws := range list {
		infos = append(infos, ipc.WorkspaceInfo{
			Number:  ws.Number,
			Name:    ws.Name,
			Current: ws.Number == current,
		})
	}
	return infos
}

// Monitors implements ipc.Handler.
func (d *Daemon) Monitors() []ipc.MonitorInfo {
	monitors := d.manager.Registry().All()
	infos := make([]ipc.MonitorInfo, 0, len(monitors))
	for _, mon := range monitors {
		infos = append(infos, ipc.MonitorInfo{
			ID:     mon.ID,
			X:      mon.Geometry.X,
			Y:      mon.Geometry.Y,
			Width:  mon.Geometry.Width,
			Height: mon.Geometry.Height,
			Scale:  mon.Scale,
		})
	}
	return infos
}

// Backdrops implements ipc.Handler.
func (d *Daemon) Backdrops() []ipc.BackdropInfo {
	entries := d.manager.Snapshot()
	infos := make([]ipc.BackdropInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, ipc.BackdropInfo{
			Key:          e.Key.String(),
			Monitor:      e.Key.Monitor,
			Workspace:    e.Key.Workspace,
			Filename:     e.Filename,
			Width:        e.Width,
			Height:       e.Height,
			Spanning:     e.Spanning,
			Cached:       e.Cached,
			CycleEnabled: e.CycleEnabled,
		})
	}
	return infos
}

// Cycle advances the cyclers of the targeted backdrops. Monitors sharing a
// spanning backdrop advance it once.
func (d *Daemon) Cycle(target ipc.TargetPayload) error {
	ws := d.targetWorkspace(target)
	monitors, err := d.targetMonitors(target)
	if err != nil {
		return err
	}

	seen := make(map[propkey.Key]bool)
	var errs []error
	for _, id := range monitors {
		res, err := d.manager.Resolver().Resolve(id, ws)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[res.Key] {
			continue
		}
		seen[res.Key] = true
		if err := d.manager.Cycle(id, ws); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Invalidate drops the targeted backdrops from the cache. An empty target
// drops everything.
func (d *Daemon) Invalidate(target ipc.TargetPayload) error {
	if target.Monitor == "" && target.Workspace == nil {
		d.manager.InvalidateAll()
		return nil
	}
	ws := d.targetWorkspace(target)
	monitors, err := d.targetMonitors(target)
	if err != nil {
		return err
	}
	for _, id := range monitors {
		d.manager.Invalidate(id, ws)
	}
	return nil
}

func (d *Daemon) targetWorkspace(target ipc.TargetPayload) int {
	if target.Workspace != nil {
		return *target.Workspace
	}
	return d.CurrentWorkspace()
}

func (d *Daemon) targetMonitors(target ipc.TargetPayload) ([]string, error) {
	registry := d.manager.Registry()
	if target.Monitor != "" {
		if registry.ByID(target.Monitor) == nil {
			return nil, fmt.Errorf("%w: %s", propkey.ErrMonitorNotFound, target.Monitor)
		}
		return []string{target.Monitor}, nil
	}
	all := registry.All()
	ids := make([]string, 0, len(all))
	for _, mon := range all {
		ids = append(ids, mon.ID)
	}
	return ids, nil
}

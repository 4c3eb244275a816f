// Package backdrop caches rendered backdrops per key, deduplicates
// concurrent renders and invalidates on configuration or topology changes.
package backdrop

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/1broseidon/backdrop/internal/config"
	"github.com/1broseidon/backdrop/internal/cycler"
	"github.com/1broseidon/backdrop/internal/monitor"
	"github.com/1broseidon/backdrop/internal/platform"
	"github.com/1broseidon/backdrop/internal/propkey"
	"github.com/1broseidon/backdrop/internal/render"
)

// ErrNoBackdrop is returned by Cycle for a key that has never rendered.
var ErrNoBackdrop = errors.New("no backdrop for key")

type entry struct {
	key      propkey.Key
	image    *image.NRGBA
	// err is the DecodeError a degraded image was rendered with.
	err      error
	width    int
	height   int
	filename string
	spanning bool
	cycler   *cycler.Cycler
}

type waiter struct {
	monitor *monitor.Monitor
	cb      Callback
	stop    func() bool
	done    bool
}

type request struct {
	key      propkey.Key
	gen      uint64
	spanning bool
	union    platform.Rect
	cancel   context.CancelFunc
	waiters  []*waiter
	started  time.Time
}

// Options configures a Manager.
type Options struct {
	Store    *config.Store
	Topology platform.TopologyProvider
	Registry *monitor.Registry
	Renderer Renderer
	Screen   int
	Logger   *slog.Logger
	// Cycler is passed to every cycler the manager creates.
	Cycler cycler.Options
}

// Manager owns the cache and in-flight tables. All table mutations happen
// under mu; callbacks and observers always run with mu released.
type Manager struct {
	store     *config.Store
	topology  platform.TopologyProvider
	registry  *monitor.Registry
	resolver  *propkey.Resolver
	renderer  Renderer
	logger    *slog.Logger
	cycleOpts cycler.Options

	mu        sync.Mutex
	entries   map[propkey.Key]*entry
	inflight  map[propkey.Key]*request
	gens      map[propkey.Key]uint64
	observers map[int]func(Change)
	nextObs   int
	closed    bool

	unsubscribe func()
}

// NewManager creates a manager and subscribes it to backdrop property
// changes in the store.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := opts.Registry
	if registry == nil {
		registry = monitor.NewRegistry(logger)
	}
	cycleOpts := opts.Cycler
	if cycleOpts.Logger == nil {
		cycleOpts.Logger = logger
	}

	m := &Manager{
		store:     opts.Store,
		topology:  opts.Topology,
		registry:  registry,
		resolver:  propkey.NewResolver(opts.Store, registry, opts.Screen),
		renderer:  opts.Renderer,
		logger:    logger,
		cycleOpts: cycleOpts,
		entries:   make(map[propkey.Key]*entry),
		inflight:  make(map[propkey.Key]*request),
		gens:      make(map[propkey.Key]uint64),
		observers: make(map[int]func(Change)),
	}
	m.unsubscribe = opts.Store.Subscribe(propkey.Root+"/", m.OnPropertyChanged)
	return m
}

// Registry returns the monitor registry the manager resolves against.
func (m *Manager) Registry() *monitor.Registry {
	return m.registry
}

// Resolver returns the key resolver.
func (m *Manager) Resolver() *propkey.Resolver {
	return m.resolver
}

// Subscribe registers fn for backdrop changes. The returned func removes it.
func (m *Manager) Subscribe(fn func(Change)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextObs++
	id := m.nextObs
	m.observers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.observers, id)
	}
}

func (m *Manager) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}
	m.mu.Lock()
	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.observers[id])
	}
	m.mu.Unlock()

	for _, ch := range changes {
		for _, fn := range fns {
			fn(ch)
		}
	}
}

// GetImageSurface delivers the backdrop of (monitorID, workspace) to cb. A
// cached surface is delivered before GetImageSurface returns; otherwise cb
// runs once the render finishes. Cancelling ctx detaches this caller only:
// cb then receives render.ErrCancelled, and the shared render is aborted
// once every caller waiting on it has cancelled.
func (m *Manager) GetImageSurface(ctx context.Context, monitorID string, workspace int, cb Callback) {
	res, err := m.resolver.Resolve(monitorID, workspace)
	if err != nil {
		cb(nil, err)
		return
	}
	requested := m.registry.ByID(monitorID)
	if requested == nil {
		cb(nil, fmt.Errorf("%w: %s", propkey.ErrMonitorNotFound, monitorID))
		return
	}
	union := m.registry.Union()

	m.mu.Lock()
	if m.closed || ctx.Err() != nil {
		m.mu.Unlock()
		cb(nil, render.ErrCancelled)
		return
	}

	if e := m.entries[res.Key]; e != nil && e.image != nil {
		s := &Surface{
			Image:    e.image,
			Paint:    paintRect(requested, e.spanning, union),
			Filename: e.filename,
			Spanning: e.spanning,
		}
		cacheErr := e.err
		m.mu.Unlock()
		m.logger.Debug("backdrop cache hit", "key", res.Key.String())
		cb(s, cacheErr)
		return
	}

	req := m.inflight[res.Key]
	if req == nil {
		req = m.startLocked(res, union)
	}

	w := &waiter{monitor: requested, cb: cb}
	req.waiters = append(req.waiters, w)
	w.stop = context.AfterFunc(ctx, func() { m.cancelWaiter(req, w) })
	m.mu.Unlock()
}

// startLocked launches the render for res and registers it as in flight.
func (m *Manager) startLocked(res propkey.Resolved, union platform.Rect) *request {
	width, height := res.Monitor.Geometry.Width, res.Monitor.Geometry.Height
	if res.Spanning {
		width, height = union.Width, union.Height
	}
	rr := requestFor(m.store, m.resolver, res.Key, width, height)

	ctx, cancel := context.WithCancel(context.Background())
	req := &request{
		key:      res.Key,
		gen:      m.gens[res.Key],
		spanning: res.Spanning,
		union:    union,
		cancel:   cancel,
		started:  time.Now(),
	}
	m.inflight[res.Key] = req

	m.logger.Debug("render started", "key", res.Key.String(), "spanning", res.Spanning,
		"size", fmt.Sprintf("%dx%d", width, height), "image", rr.ImagePath)
	go m.run(ctx, req, rr)
	return req
}

func (m *Manager) cancelWaiter(req *request, w *waiter) {
	m.mu.Lock()
	if w.done {
		m.mu.Unlock()
		return
	}
	w.done = true
	req.waiters = slices.DeleteFunc(req.waiters, func(o *waiter) bool { return o == w })
	if len(req.waiters) == 0 {
		req.cancel()
		if m.inflight[req.key] == req {
			delete(m.inflight, req.key)
		}
		m.logger.Debug("render cancelled", "key", req.key.String())
	}
	m.mu.Unlock()

	w.cb(nil, render.ErrCancelled)
}

type delivery struct {
	cb Callback
	s  *Surface
}

func (m *Manager) run(ctx context.Context, req *request, rr render.Request) {
	result, err := m.renderer.Render(ctx, rr)
	defer req.cancel()

	if result == nil && err == nil {
		err = fmt.Errorf("renderer returned no surface")
	}
	var decodeErr *render.DecodeError
	if err != nil && !errors.As(err, &decodeErr) {
		result = nil
	}

	var newCycler *cycler.Cycler
	m.mu.Lock()
	if m.inflight[req.key] == req {
		delete(m.inflight, req.key)
	}

	if result != nil && !m.closed {
		newCycler = m.storeResultLocked(req, result, err)
	}

	deliveries := make([]delivery, 0, len(req.waiters))
	for _, w := range req.waiters {
		w.done = true
		w.stop()
		d := delivery{cb: w.cb}
		if result != nil {
			d.s = &Surface{
				Image:    result.Image,
				Paint:    paintRect(w.monitor, req.spanning, req.union),
				Filename: result.Filename,
				Spanning: req.spanning,
			}
		}
		deliveries = append(deliveries, d)
	}
	req.waiters = nil
	m.mu.Unlock()

	if newCycler != nil {
		newCycler.Start()
	}

	if err != nil && errors.Is(err, render.ErrCancelled) {
		m.logger.Debug("render aborted", "key", req.key.String())
	} else if err != nil && decodeErr == nil {
		m.logger.Warn("render failed", "key", req.key.String(), "error", err)
	} else {
		m.logger.Debug("render finished", "key", req.key.String(), "waiters", len(deliveries),
			"elapsed", time.Since(req.started))
	}

	for _, d := range deliveries {
		d.cb(d.s, err)
	}
}

// storeResultLocked records a finished render. The entry, and with it the
// key's cycler, exists as soon as any surface was produced. The surface is
// cached unless an invalidation happened in the meantime; a degraded canvas
// is cached together with its DecodeError. It returns a cycler that still
// has to be started.
func (m *Manager) storeResultLocked(req *request, result *render.Result, err error) *cycler.Cycler {
	if m.registry.ByID(req.key.Monitor) == nil {
		m.logger.Warn("render finished for a monitor that no longer exists", "key", req.key.String())
		return nil
	}

	var created *cycler.Cycler
	e := m.entries[req.key]
	if e == nil {
		e = &entry{key: req.key}
		e.cycler = cycler.NewStopped(m.store, req.key, m.cycleOpts)
		created = e.cycler
		m.entries[req.key] = e
	}
	if req.gen != m.gens[req.key] {
		m.logger.Debug("discarding stale render", "key", req.key.String())
		return created
	}

	e.width, e.height = result.Width, result.Height
	e.filename = result.Filename
	e.spanning = req.spanning
	e.image = result.Image
	e.err = err
	return created
}

// Invalidate drops the cached surface of the key (monitorID, workspace)
// resolves to and notifies observers. The key's cycler survives.
func (m *Manager) Invalidate(monitorID string, workspace int) {
	res, err := m.resolver.Resolve(monitorID, workspace)
	if err != nil {
		m.invalidateKey(propkey.Key{Screen: m.resolver.Screen(), Monitor: monitorID, Workspace: m.resolver.Workspace(workspace)})
		return
	}
	m.invalidateKey(res.Key)
}

func (m *Manager) invalidateKey(key propkey.Key) {
	m.mu.Lock()
	spanning := m.dropLocked(key)
	m.mu.Unlock()

	if !spanning {
		m.notify([]Change{{Monitor: key.Monitor, Workspace: key.Workspace}})
		return
	}
	var changes []Change
	for _, mon := range m.registry.All() {
		changes = append(changes, Change{Monitor: mon.ID, Workspace: key.Workspace})
	}
	m.notify(changes)
}

// dropLocked clears the surface of key and detaches any in-flight render
// so later requests start afresh. It reports whether the entry was
// spanning.
func (m *Manager) dropLocked(key propkey.Key) bool {
	m.gens[key]++
	spanning := false
	if e := m.entries[key]; e != nil {
		e.image = nil
		e.err = nil
		spanning = e.spanning
	}
	if req := m.inflight[key]; req != nil {
		spanning = spanning || req.spanning
		delete(m.inflight, key)
	}
	return spanning
}

// InvalidateAll drops every cached surface.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	for key := range m.entries {
		m.dropLocked(key)
	}
	for key := range m.inflight {
		m.dropLocked(key)
	}
	m.mu.Unlock()

	m.notifyAllMonitors()
}

func (m *Manager) notifyAllMonitors() {
	var changes []Change
	for _, mon := range m.registry.All() {
		changes = append(changes, Change{Monitor: mon.ID, Workspace: AllWorkspaces})
	}
	m.notify(changes)
}

// OnPropertyChanged invalidates the key a changed property belongs to.
// Unparseable keys are ignored. Changes that only affect the cycle schedule
// leave the surface alone.
func (m *Manager) OnPropertyChanged(property string) {
	if propkey.IsGlobal(property) {
		m.logger.Debug("global backdrop setting changed", "property", property)
		m.InvalidateAll()
		return
	}

	key, err := propkey.ParseProperty(property)
	if err != nil {
		m.logger.Debug("ignoring property change", "property", property, "error", err)
		return
	}
	name := property[strings.LastIndexByte(property, '/')+1:]
	if strings.HasPrefix(name, "backdrop-cycle-") {
		return
	}

	// The first monitor's image-style decides spanning for every monitor.
	if name == propkey.ImageStyle {
		if first := m.registry.First(); first != nil && first.ID == key.Monitor {
			m.invalidateWorkspace(key.Workspace)
			return
		}
	}
	m.invalidateKey(key)
}

func (m *Manager) invalidateWorkspace(ws int) {
	m.mu.Lock()
	for key := range m.entries {
		if key.Workspace == ws {
			m.dropLocked(key)
		}
	}
	for key := range m.inflight {
		if key.Workspace == ws {
			m.dropLocked(key)
		}
	}
	m.mu.Unlock()

	var changes []Change
	for _, mon := range m.registry.All() {
		changes = append(changes, Change{Monitor: mon.ID, Workspace: ws})
	}
	m.notify(changes)
}

// OnMonitorsChanged refreshes the registry from the topology provider,
// purges entries of removed monitors and invalidates everything else.
func (m *Manager) OnMonitorsChanged() error {
	outputs, err := m.topology.Outputs()
	if err != nil {
		return fmt.Errorf("failed to read outputs: %w", err)
	}
	removed := m.registry.Refresh(outputs)

	var closing []*cycler.Cycler
	m.mu.Lock()
	for key, e := range m.entries {
		if m.registry.ByID(key.Monitor) == nil {
			closing = append(closing, e.cycler)
			delete(m.entries, key)
			m.gens[key]++
			continue
		}
		m.dropLocked(key)
	}
	for key := range m.inflight {
		m.dropLocked(key)
	}
	m.mu.Unlock()

	for _, c := range closing {
		c.Close()
	}
	if len(removed) > 0 || len(closing) > 0 {
		m.logger.Info("monitors changed", "removed", len(removed), "purged", len(closing))
	}
	m.notifyAllMonitors()
	return nil
}

// Cycle fires the cycler of the key (monitorID, workspace) resolves to.
func (m *Manager) Cycle(monitorID string, workspace int) error {
	res, err := m.resolver.Resolve(monitorID, workspace)
	if err != nil {
		return err
	}
	m.mu.Lock()
	e := m.entries[res.Key]
	m.mu.Unlock()
	if e == nil {
		return fmt.Errorf("%w: %s", ErrNoBackdrop, res.Key)
	}
	e.cycler.Fire()
	return nil
}

// Snapshot lists the cache entries ordered by key.
func (m *Manager) Snapshot() []EntryInfo {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	infos := make([]EntryInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, EntryInfo{
			Key:      e.key,
			Filename: e.filename,
			Width:    e.width,
			Height:   e.height,
			Spanning: e.spanning,
			Cached:   e.image != nil,
		})
	}
	m.mu.Unlock()

	for i, e := range entries {
		infos[i].CycleEnabled = e.cycler.Enabled()
	}
	slices.SortFunc(infos, func(a, b EntryInfo) int {
		return strings.Compare(a.Key.String(), b.Key.String())
	})
	return infos
}

// Stats returns the number of cache entries and in-flight renders.
func (m *Manager) Stats() (entries, inflight int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), len(m.inflight)
}

// Close aborts in-flight renders and stops every cycler. Waiting callers
// receive render.ErrCancelled.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, req := range m.inflight {
		req.cancel()
	}
	var cyclers []*cycler.Cycler
	for _, e := range m.entries {
		cyclers = append(cyclers, e.cycler)
	}
	m.entries = make(map[propkey.Key]*entry)
	m.mu.Unlock()

	m.unsubscribe()
	for _, c := range cyclers {
		c.Close()
	}
}

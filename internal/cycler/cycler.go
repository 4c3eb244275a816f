// Package cycler rotates the image of one backdrop key through the images in
// its directory on a schedule.
package cycler

import (
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/collate"

	"github.com/1broseidon/backdrop/internal/config"
	"github.com/1broseidon/backdrop/internal/propkey"
	"github.com/1broseidon/backdrop/internal/render"
)

// Defaults for unset cycle properties.
const (
	DefaultPeriod = PeriodMinutes
	DefaultTimer  = 10
)

// Settings are the cycle properties of one key.
type Settings struct {
	Enabled    bool
	ImageStyle render.ImageStyle
	Period     Period
	Timer      uint
	Random     bool
	Current    string
}

// ReadSettings reads the cycle properties of key from store.
func ReadSettings(store *config.Store, key propkey.Key) Settings {
	style := render.ImageStyle(store.GetInt(key.Property(propkey.ImageStyle), int(propkey.DefaultImageStyle)))
	if !style.Valid() {
		style = propkey.DefaultImageStyle
	}
	period := Period(store.GetInt(key.Property(propkey.CyclePeriod), int(DefaultPeriod)))
	if !period.Valid() {
		period = DefaultPeriod
	}
	return Settings{
		Enabled:    store.GetBool(key.Property(propkey.CycleEnable), false),
		ImageStyle: style,
		Period:     period,
		Timer:      store.GetUint(key.Property(propkey.CycleTimer), DefaultTimer),
		Random:     store.GetBool(key.Property(propkey.CycleRandom), false),
		Current:    store.GetString(key.Property(propkey.LastImage), ""),
	}
}

func (s Settings) active() bool {
	return s.Enabled && s.ImageStyle != render.ImageNone
}

// Options configures a Cycler.
type Options struct {
	Clock  Clock
	Logger *slog.Logger
	// Rand drives random-order selection; nil uses a random seed.
	Rand *rand.Rand
	// Collator orders the listing; nil uses the user's locale.
	Collator *collate.Collator
	// SettleDelay is how long writes to the current image must pause before
	// it is reloaded. Zero uses DefaultSettleDelay.
	SettleDelay time.Duration
}

// DefaultSettleDelay is the quiet period after the last write to the current
// image before it is reloaded.
const DefaultSettleDelay = 300 * time.Millisecond

// Cycler owns the rotation policy and directory listing of one key. It reads
// its settings from the store and writes the chosen image back to it.
type Cycler struct {
	store  *config.Store
	key    propkey.Key
	clock  Clock
	logger *slog.Logger
	rng    *rand.Rand

	mu          sync.Mutex
	settings    Settings
	collator    *collate.Collator
	list        *listing
	watcher     *fsnotify.Watcher
	settle      time.Duration
	reloadTimer *time.Timer
	prevRandom  int
	timer       Timer
	timerGen    uint64
	startupDone bool
	started     bool
	closed      bool
	unsubscribe func()
}

// New creates a cycler for key and arms its first timer.
func New(store *config.Store, key propkey.Key, opts Options) *Cycler {
	c := NewStopped(store, key, opts)
	c.Start()
	return c
}

// NewStopped creates a cycler that neither follows the store nor schedules
// anything until Start is called.
func NewStopped(store *config.Store, key propkey.Key, opts Options) *Cycler {
	c := &Cycler{
		store:      store,
		key:        key,
		clock:      opts.Clock,
		logger:     opts.Logger,
		rng:        opts.Rand,
		collator:   opts.Collator,
		prevRandom: -1,
		settle:     opts.SettleDelay,
	}
	if c.settle <= 0 {
		c.settle = DefaultSettleDelay
	}
	if c.clock == nil {
		c.clock = realClock{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("key", key.String())
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.collator == nil {
		c.collator = userCollator()
	}
	c.settings = ReadSettings(store, key)
	return c
}

// Start subscribes to the key's properties and arms the first timer. Only
// the first call has an effect.
func (c *Cycler) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.settings = ReadSettings(c.store, c.key)
	c.scheduleLocked(true)
	c.mu.Unlock()

	unsubscribe := c.store.Subscribe(c.key.String()+"/", func(string) { c.applyConfig() })
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	closed := c.closed
	c.mu.Unlock()
	if closed {
		unsubscribe()
	}
}

// Key returns the key this cycler rotates.
func (c *Cycler) Key() propkey.Key {
	return c.key
}

// Settings returns the current cycle settings.
func (c *Cycler) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// Enabled reports whether the cycler is actively rotating.
func (c *Cycler) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings.active()
}

// Listing returns the current directory listing, building it if needed.
func (c *Cycler) Listing() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.settings.active() {
		return nil
	}
	c.ensureListingLocked()
	if c.list == nil {
		return nil
	}
	return c.list.paths()
}

// applyConfig re-reads the key's properties after a store change.
func (c *Cycler) applyConfig() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	old := c.settings
	next := ReadSettings(c.store, c.key)
	c.settings = next

	if !next.active() {
		c.dropListingLocked()
	} else if next.Random != old.Random {
		c.dropListingLocked()
	} else if next.Current != "" && c.list != nil && filepath.Dir(next.Current) != c.list.dir {
		c.dropListingLocked()
	}

	if next.active() != old.active() || next.Period != old.Period || next.Timer != old.Timer {
		c.scheduleLocked(next.Period == PeriodChronological)
	}
}

// scheduleLocked replaces the pending timer according to the current
// settings. immediate arms a zero-delay fire for startup and chronological
// periods.
func (c *Cycler) scheduleLocked(immediate bool) {
	c.stopTimerLocked()
	if c.closed || !c.settings.active() {
		return
	}

	switch c.settings.Period {
	case PeriodStartup:
		if immediate && !c.startupDone {
			c.startupDone = true
			c.armLocked(0)
		}
		return
	case PeriodChronological:
		if immediate {
			c.armLocked(0)
			return
		}
	}

	if d, ok := NextDelay(c.settings.Period, c.settings.Timer, c.clock.Now()); ok {
		c.armLocked(d)
	}
}

func (c *Cycler) armLocked(d time.Duration) {
	c.timerGen++
	gen := c.timerGen
	c.timer = c.clock.AfterFunc(d, func() { c.timerFired(gen) })
	c.logger.Debug("cycle timer armed", "delay", d, "period", c.settings.Period.String())
}

func (c *Cycler) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.timerGen++
}

func (c *Cycler) timerFired(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if d, ok := NextDelay(c.settings.Period, c.settings.Timer, c.clock.Now()); ok && c.settings.Period != PeriodStartup {
		c.armLocked(d)
	}
	c.mu.Unlock()

	c.Fire()
}

// Fire selects the next image now and writes it back if it differs from the
// current one. It is a no-op while disabled or with an empty listing.
func (c *Cycler) Fire() {
	c.mu.Lock()
	if c.closed || !c.settings.active() {
		c.mu.Unlock()
		return
	}
	c.ensureListingLocked()
	next := c.selectLocked()
	current := c.settings.Current
	c.mu.Unlock()

	if next == "" || next == current {
		return
	}
	c.logger.Info("cycling backdrop", "image", next)
	if err := c.store.SetString(c.key.Property(propkey.LastImage), next); err != nil {
		c.logger.Warn("failed to store cycled image", "error", err)
	}
}

func (c *Cycler) selectLocked() string {
	if c.list == nil || c.list.len() == 0 {
		return ""
	}
	n := c.list.len()

	if c.settings.Period == PeriodChronological {
		return c.list.at(chronologicalIndex(c.clock.Now().Hour(), n))
	}

	if c.settings.Random {
		if n == 1 {
			c.prevRandom = 0
			return c.list.at(0)
		}
		prev := c.prevRandom
		if prev < 0 || prev >= n {
			prev = c.list.index(c.settings.Current)
		}
		var i int
		if prev < 0 {
			i = c.rng.IntN(n)
		} else {
			i = c.rng.IntN(n - 1)
			if i >= prev {
				i++
			}
		}
		c.prevRandom = i
		return c.list.at(i)
	}

	i := c.list.index(c.settings.Current)
	return c.list.at((i + 1) % n)
}

// Close stops the timer and the directory watch.
func (c *Cycler) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimerLocked()
	c.dropListingLocked()
	unsubscribe := c.unsubscribe
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

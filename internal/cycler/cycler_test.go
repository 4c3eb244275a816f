package cycler

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/1broseidon/backdrop/internal/config"
	"github.com/1broseidon/backdrop/internal/propkey"
	"github.com/1broseidon/backdrop/internal/render"
)

type fakeTimer struct {
	clock   *fakeClock
	delay   time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, delay: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// pending returns the timers that were armed and not stopped or fired.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// fire runs a pending timer as if it expired.
func (c *fakeClock) fire(t *fakeTimer) {
	c.mu.Lock()
	t.stopped = true
	c.mu.Unlock()
	t.f()
}

var testKey = propkey.Key{Screen: 0, Monitor: "DP-1", Workspace: 0}

func writeImage(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func imageDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		writeImage(t, filepath.Join(dir, name))
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return dir
}

func newTestCycler(t *testing.T, store *config.Store, clock *fakeClock) *Cycler {
	t.Helper()
	return newTestCyclerWith(t, store, Options{Clock: clock})
}

func newTestCyclerWith(t *testing.T, store *config.Store, opts Options) *Cycler {
	t.Helper()
	opts.Rand = rand.New(rand.NewPCG(1, 2))
	opts.Collator = collate.New(language.English, collate.Numeric)
	c := New(store, testKey, opts)
	t.Cleanup(c.Close)
	return c
}

func cycleProps(period Period, current string) map[string]any {
	return map[string]any{
		testKey.Property(propkey.CycleEnable): true,
		testKey.Property(propkey.CyclePeriod): int(period),
		testKey.Property(propkey.ImageStyle):  int(render.ImageZoomed),
		testKey.Property(propkey.LastImage):   current,
	}
}

func TestNextDelay(t *testing.T) {
	at := func(h, m, s int) time.Time {
		return time.Date(2024, 3, 10, h, m, s, 0, time.Local)
	}
	tests := []struct {
		name   string
		period Period
		timer  uint
		now    time.Time
		want   time.Duration
		ok     bool
	}{
		{"seconds", PeriodSeconds, 15, at(12, 0, 0), 15 * time.Second, true},
		{"zero timer", PeriodSeconds, 0, at(12, 0, 0), time.Second, true},
		{"minutes", PeriodMinutes, 5, at(12, 0, 0), 5 * time.Minute, true},
		{"hours", PeriodHours, 2, at(12, 0, 0), 2 * time.Hour, true},
		{"hourly", PeriodHourly, 0, at(12, 45, 0), 15 * time.Minute, true},
		{"chronological", PeriodChronological, 0, at(7, 59, 59), time.Second, true},
		{"daily", PeriodDaily, 0, at(23, 59, 30), 30 * time.Second, true},
		{"startup", PeriodStartup, 0, at(12, 0, 0), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NextDelay(tt.period, tt.timer, tt.now)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("NextDelay() = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestChronologicalIndex(t *testing.T) {
	if got := chronologicalIndex(12, 3); got != 1 {
		t.Fatalf("chronologicalIndex(12, 3) = %d, want 1", got)
	}
	if got := chronologicalIndex(23, 100); got != 23 {
		t.Fatalf("chronologicalIndex(23, 100) = %d, want 23", got)
	}
	if got := chronologicalIndex(5, 0); got != -1 {
		t.Fatalf("chronologicalIndex(5, 0) = %d, want -1", got)
	}
}

func TestDailyArmsUntilMidnight(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 10, 23, 59, 30, 0, time.Local)}
	store := config.NewMemoryStore(cycleProps(PeriodDaily, ""))
	newTestCycler(t, store, clock)

	pending := clock.pending()
	if len(pending) != 1 {
		t.Fatalf("pending timers = %d, want 1", len(pending))
	}
	if pending[0].delay != 30*time.Second {
		t.Fatalf("delay = %v, want 30s", pending[0].delay)
	}
}

func TestStartupFiresOnce(t *testing.T) {
	dir := imageDir(t, "a.png", "b.png")
	clock := &fakeClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)}
	store := config.NewMemoryStore(cycleProps(PeriodStartup, filepath.Join(dir, "a.png")))
	newTestCycler(t, store, clock)

	pending := clock.pending()
	if len(pending) != 1 || pending[0].delay != 0 {
		t.Fatalf("pending = %+v, want one immediate timer", pending)
	}
	clock.fire(pending[0])

	if got := store.GetString(testKey.Property(propkey.LastImage), ""); got != filepath.Join(dir, "b.png") {
		t.Fatalf("last-image = %q, want b.png", got)
	}
	if n := len(clock.pending()); n != 0 {
		t.Fatalf("pending timers after startup fire = %d, want 0", n)
	}
	if n := len(clock.timers); n != 1 {
		t.Fatalf("timers armed = %d, want exactly 1", n)
	}
}

func TestPeriodicRearms(t *testing.T) {
	dir := imageDir(t, "a.png", "b.png")
	clock := &fakeClock{now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.Local)}
	props := cycleProps(PeriodSeconds, filepath.Join(dir, "a.png"))
	props[testKey.Property(propkey.CycleTimer)] = 30
	store := config.NewMemoryStore(props)
	newTestCycler(t, store, clock)

	first := clock.pending()
	if len(first) != 1 || first[0].delay != 30*time.Second {
		t.Fatalf("pending = %+v, want one 30s timer", first)
	}
	clock.fire(first[0])
	next := clock.pending()
	if len(next) != 1 || next[0].delay != 30*time.Second {
		t.Fatalf("pending after fire = %+v, want one re-armed 30s timer", next)
	}
}

func TestSequentialWraparound(t *testing.T) {
	dir := imageDir(t, "c.png", "a.png", "b.png")
	clock := &fakeClock{now: time.Now()}
	store := config.NewMemoryStore(cycleProps(PeriodMinutes, filepath.Join(dir, "c.png")))
	c := newTestCycler(t, store, clock)

	want := []string{"a.png", "b.png", "c.png"}
	listing := c.Listing()
	if len(listing) != len(want) {
		t.Fatalf("listing = %v, want %v", listing, want)
	}
	for i, name := range want {
		if filepath.Base(listing[i]) != name {
			t.Fatalf("listing = %v, want sorted %v", listing, want)
		}
	}

	c.Fire()
	if got := store.GetString(testKey.Property(propkey.LastImage), ""); filepath.Base(got) != "a.png" {
		t.Fatalf("after wraparound last-image = %q, want a.png", got)
	}
	c.Fire()
	if got := store.GetString(testKey.Property(propkey.LastImage), ""); filepath.Base(got) != "b.png" {
		t.Fatalf("after second fire last-image = %q, want b.png", got)
	}
}

func TestNumericCollation(t *testing.T) {
	dir := imageDir(t, "img10.png", "img2.png", "img1.png")
	store := config.NewMemoryStore(cycleProps(PeriodMinutes, filepath.Join(dir, "img1.png")))
	c := newTestCycler(t, store, &fakeClock{now: time.Now()})

	listing := c.Listing()
	got := []string{filepath.Base(listing[0]), filepath.Base(listing[1]), filepath.Base(listing[2])}
	if got[0] != "img1.png" || got[1] != "img2.png" || got[2] != "img10.png" {
		t.Fatalf("listing = %v, want numeric order", got)
	}
}

func TestRandomAvoidsRepeat(t *testing.T) {
	dir := imageDir(t, "a.png", "b.png")
	props := cycleProps(PeriodMinutes, filepath.Join(dir, "a.png"))
	props[testKey.Property(propkey.CycleRandom)] = true
	store := config.NewMemoryStore(props)
	c := newTestCycler(t, store, &fakeClock{now: time.Now()})

	prev := store.GetString(testKey.Property(propkey.LastImage), "")
	for i := 0; i < 6; i++ {
		c.Fire()
		got := store.GetString(testKey.Property(propkey.LastImage), "")
		if got == prev {
			t.Fatalf("fire %d repeated %q", i, got)
		}
		prev = got
	}
}

func TestChronologicalSelectsByHour(t *testing.T) {
	dir := imageDir(t, "a.png", "b.png", "c.png", "d.png")
	clock := &fakeClock{now: time.Date(2024, 3, 10, 13, 20, 0, 0, time.Local)}
	store := config.NewMemoryStore(cycleProps(PeriodChronological, filepath.Join(dir, "a.png")))
	newTestCycler(t, store, clock)

	pending := clock.pending()
	if len(pending) != 1 || pending[0].delay != 0 {
		t.Fatalf("pending = %+v, want immediate fire", pending)
	}
	clock.fire(pending[0])

	// 13 * 4 / 24 = 2
	if got := store.GetString(testKey.Property(propkey.LastImage), ""); filepath.Base(got) != "c.png" {
		t.Fatalf("last-image = %q, want c.png", got)
	}
	next := clock.pending()
	if len(next) != 1 || next[0].delay != 40*time.Minute {
		t.Fatalf("pending = %+v, want re-arm at next hour", next)
	}
}

func TestDisabledDoesNothing(t *testing.T) {
	dir := imageDir(t, "a.png", "b.png")
	props := cycleProps(PeriodMinutes, filepath.Join(dir, "a.png"))
	props[testKey.Property(propkey.CycleEnable)] = false
	store := config.NewMemoryStore(props)
	clock := &fakeClock{now: time.Now()}
	c := newTestCycler(t, store, clock)

	if len(clock.pending()) != 0 {
		t.Fatalf("disabled cycler armed a timer")
	}
	c.Fire()
	if got := store.GetString(testKey.Property(propkey.LastImage), ""); filepath.Base(got) != "a.png" {
		t.Fatalf("disabled cycler changed image to %q", got)
	}

	if err := store.SetBool(testKey.Property(propkey.CycleEnable), true); err != nil {
		t.Fatalf("SetBool() error: %v", err)
	}
	if len(clock.pending()) != 1 {
		t.Fatalf("enabling the cycler should arm a timer")
	}
}

func TestMissingDirectoryIsEmpty(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "gone", "a.png")
	store := config.NewMemoryStore(cycleProps(PeriodMinutes, missing))
	c := newTestCycler(t, store, &fakeClock{now: time.Now()})

	if got := c.Listing(); len(got) != 0 {
		t.Fatalf("listing = %v, want empty", got)
	}
	c.Fire()
	if got := store.GetString(testKey.Property(propkey.LastImage), ""); got != missing {
		t.Fatalf("last-image = %q, want unchanged", got)
	}
}

func TestParentDirectoryChangeRebuildsListing(t *testing.T) {
	dir1 := imageDir(t, "a.png", "b.png")
	dir2 := imageDir(t, "x.png", "y.png", "z.png")
	store := config.NewMemoryStore(cycleProps(PeriodMinutes, filepath.Join(dir1, "a.png")))
	c := newTestCycler(t, store, &fakeClock{now: time.Now()})

	if n := len(c.Listing()); n != 2 {
		t.Fatalf("listing len = %d, want 2", n)
	}
	if err := store.SetString(testKey.Property(propkey.LastImage), filepath.Join(dir2, "x.png")); err != nil {
		t.Fatalf("SetString() error: %v", err)
	}
	if n := len(c.Listing()); n != 3 {
		t.Fatalf("listing len after directory change = %d, want 3", n)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestWatchTracksDirectory(t *testing.T) {
	dir := imageDir(t, "a.png", "c.png")
	store := config.NewMemoryStore(cycleProps(PeriodMinutes, filepath.Join(dir, "a.png")))
	c := newTestCycler(t, store, &fakeClock{now: time.Now()})
	c.Listing()

	writeImage(t, filepath.Join(dir, "b.png"))
	waitFor(t, "b.png to be listed", func() bool {
		l := c.Listing()
		return len(l) == 3 && filepath.Base(l[1]) == "b.png"
	})

	if err := os.Remove(filepath.Join(dir, "c.png")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	waitFor(t, "c.png to be removed", func() bool {
		return len(c.Listing()) == 2
	})
}

func TestRewriteOfCurrentReloads(t *testing.T) {
	dir := imageDir(t, "a.png", "b.png")
	current := filepath.Join(dir, "a.png")
	store := config.NewMemoryStore(cycleProps(PeriodMinutes, current))
	c := newTestCycler(t, store, &fakeClock{now: time.Now()})
	c.Listing()

	var mu sync.Mutex
	var seen []string
	store.Subscribe(testKey.Property(propkey.LastImage), func(key string) {
		mu.Lock()
		seen = append(seen, store.GetString(key, "?"))
		mu.Unlock()
	})

	writeImage(t, current)
	waitFor(t, "reload notifications", func() bool {
		mu.Lock()
		defer mu.Unlock()
		for i := 0; i+1 < len(seen); i++ {
			if seen[i] == "" && seen[i+1] == current {
				return true
			}
		}
		return false
	})
	if got := store.GetString(testKey.Property(propkey.LastImage), ""); got != current {
		t.Fatalf("last-image = %q, want %q", got, current)
	}
}

func TestRandomListingKeepsDirectoryOrder(t *testing.T) {
	dir := imageDir(t, "img1.png", "img2.png", "img10.png")
	props := cycleProps(PeriodMinutes, filepath.Join(dir, "img1.png"))
	props[testKey.Property(propkey.CycleRandom)] = true
	store := config.NewMemoryStore(props)
	c := newTestCycler(t, store, &fakeClock{now: time.Now()})

	// Directory order, not the numeric collation order img1, img2, img10.
	listing := c.Listing()
	got := []string{filepath.Base(listing[0]), filepath.Base(listing[1]), filepath.Base(listing[2])}
	if got[0] != "img1.png" || got[1] != "img10.png" || got[2] != "img2.png" {
		t.Fatalf("listing = %v, want unsorted directory order", got)
	}

	writeImage(t, filepath.Join(dir, "img5.png"))
	waitFor(t, "img5.png to be prepended", func() bool {
		l := c.Listing()
		return len(l) == 4 && filepath.Base(l[0]) == "img5.png"
	})
}

func TestChunkedRewriteReloadsOnce(t *testing.T) {
	dir := imageDir(t, "a.png", "b.png")
	current := filepath.Join(dir, "a.png")
	store := config.NewMemoryStore(cycleProps(PeriodMinutes, current))
	settle := 200 * time.Millisecond
	c := newTestCyclerWith(t, store, Options{
		Clock:       &fakeClock{now: time.Now()},
		SettleDelay: settle,
	})
	c.Listing()

	var mu sync.Mutex
	resets := 0
	store.Subscribe(testKey.Property(propkey.LastImage), func(key string) {
		if store.GetString(key, "?") == "" {
			mu.Lock()
			resets++
			mu.Unlock()
		}
	})

	var data bytes.Buffer
	if err := png.Encode(&data, image.NewNRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := os.OpenFile(current, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	raw := data.Bytes()
	step := (len(raw) + 4) / 5
	for off := 0; off < len(raw); off += step {
		if _, err := f.Write(raw[off:min(off+step, len(raw))]); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	waitFor(t, "reload after rewrite", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return resets > 0
	})
	time.Sleep(3 * settle)
	mu.Lock()
	defer mu.Unlock()
	if resets != 1 {
		t.Fatalf("one rewrite produced %d reloads, want 1", resets)
	}
	if got := store.GetString(testKey.Property(propkey.LastImage), ""); got != current {
		t.Fatalf("last-image = %q, want %q", got, current)
	}
}

package cycler

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/1broseidon/backdrop/internal/propkey"
	"github.com/1broseidon/backdrop/internal/render"
)

// ensureListingLocked builds the listing and starts the directory watch if
// neither exists yet.
func (c *Cycler) ensureListingLocked() {
	if c.list != nil || c.settings.Current == "" {
		return
	}
	dir := filepath.Dir(c.settings.Current)
	c.list = newListing(dir, c.settings.Random, c.collator)
	if err := c.list.scan(); err != nil {
		c.logger.Warn("failed to list backdrop directory", "dir", dir, "error", err)
		return
	}
	c.logger.Debug("backdrop directory listed", "dir", dir, "images", c.list.len())

	w, err := fsnotify.NewWatcher()
	if err != nil {
		c.logger.Warn("failed to create directory watcher", "error", err)
		return
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		c.logger.Warn("failed to watch backdrop directory", "dir", dir, "error", err)
		return
	}
	c.watcher = w
	go c.watchLoop(w)
}

// dropListingLocked discards the listing and its watch; the next fire
// rebuilds them.
func (c *Cycler) dropListingLocked() {
	c.list = nil
	if c.reloadTimer != nil {
		c.reloadTimer.Stop()
		c.reloadTimer = nil
	}
	if c.watcher != nil {
		c.watcher.Close()
		c.watcher = nil
	}
}

func (c *Cycler) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			c.handleEvent(w, ev)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			c.logger.Warn("directory watch error", "error", err)
		}
	}
}

func (c *Cycler) handleEvent(w *fsnotify.Watcher, ev fsnotify.Event) {
	c.mu.Lock()
	if c.closed || c.watcher != w || c.list == nil {
		c.mu.Unlock()
		return
	}

	path := ev.Name
	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		if c.list.remove(path) {
			c.logger.Debug("image removed from listing", "path", path)
		}
	case ev.Has(fsnotify.Create):
		if render.IsImage(path) && c.list.insert(path) {
			c.logger.Debug("image added to listing", "path", path)
		}
	case ev.Has(fsnotify.Write):
		if path == c.settings.Current {
			c.deferReloadLocked(w, path)
		} else if c.list.index(path) < 0 && render.IsImage(path) {
			// Files are often created empty and filled afterwards.
			c.list.insert(path)
		}
	}
	c.mu.Unlock()
}

// deferReloadLocked (re)arms the reload of the current image so that a
// rewrite spread over many writes reloads it once, after the writes stop.
func (c *Cycler) deferReloadLocked(w *fsnotify.Watcher, path string) {
	if c.reloadTimer != nil {
		c.reloadTimer.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(c.settle, func() {
		c.mu.Lock()
		if c.reloadTimer != t || c.closed || c.watcher != w || c.settings.Current != path {
			c.mu.Unlock()
			return
		}
		c.reloadTimer = nil
		c.mu.Unlock()
		c.reloadCurrent(path)
	})
	c.reloadTimer = t
}

// reloadCurrent forces a change notification for an image rewritten in
// place by storing an empty value first.
func (c *Cycler) reloadCurrent(path string) {
	c.logger.Debug("current image rewritten, reloading", "path", path)
	key := c.key.Property(propkey.LastImage)
	if err := c.store.SetString(key, ""); err != nil {
		c.logger.Warn("failed to reset image", "error", err)
		return
	}
	if err := c.store.SetString(key, path); err != nil {
		c.logger.Warn("failed to restore image", "error", err)
	}
}

package x11

import (
	"fmt"

	"github.com/BurntSushi/xgbutil/ewmh"
)

// GetCurrentDesktop returns the current virtual desktop number (0-indexed).
// Uses _NET_CURRENT_DESKTOP atom. Returns 0 with an error if detection fails.
func (c *Connection) GetCurrentDesktop() (int, error) {
	desktop, err := ewmh.CurrentDesktopGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get current desktop: %w", err)
	}
	return int(desktop), nil
}

// GetDesktopCount returns the number of virtual desktops.
func (c *Connection) GetDesktopCount() (int, error) {
	count, err := ewmh.NumberOfDesktopsGet(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to get desktop count: %w", err)
	}
	return int(count), nil
}

// GetDesktopNames returns _NET_DESKTOP_NAMES. Window managers may publish
// fewer names than desktops; missing entries are empty.
func (c *Connection) GetDesktopNames() []string {
	names, err := ewmh.DesktopNamesGet(c.XUtil)
	if err != nil {
		return nil
	}
	return names
}

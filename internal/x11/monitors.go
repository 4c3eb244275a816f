package x11

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/xgb/randr"
)

// Monitor represents a physical display driven by one RandR output.
type Monitor struct {
	Output  uint32
	Name    string
	Primary bool
	X       int
	Y       int
	Width   int
	Height  int
}

// GetMonitors retrieves all active outputs using XRandR. The primary output
// comes first, the rest are ordered by position.
func (c *Connection) GetMonitors() ([]Monitor, error) {
	resources, err := randr.GetScreenResourcesCurrent(c.XUtil.Conn(), c.Root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	var primary randr.Output
	if reply, err := randr.GetOutputPrimary(c.XUtil.Conn(), c.Root).Reply(); err == nil {
		primary = reply.Output
	}

	var monitors []Monitor
	for _, output := range resources.Outputs {
		info, err := randr.GetOutputInfo(c.XUtil.Conn(), output, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		if info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}

		crtc, err := randr.GetCrtcInfo(c.XUtil.Conn(), info.Crtc, resources.ConfigTimestamp).Reply()
		if err != nil {
			continue
		}
		// Skip disabled CRTCs
		if crtc.Width == 0 || crtc.Height == 0 {
			continue
		}

		name := string(info.Name)
		if name == "" {
			name = fmt.Sprintf("Output%d", output)
		}

		monitors = append(monitors, Monitor{
			Output:  uint32(output),
			Name:    name,
			Primary: output == primary,
			X:       int(crtc.X),
			Y:       int(crtc.Y),
			Width:   int(crtc.Width),
			Height:  int(crtc.Height),
		})
	}

	sortMonitors(monitors)
	return monitors, nil
}

func sortMonitors(monitors []Monitor) {
	sort.SliceStable(monitors, func(i, j int) bool {
		a, b := monitors[i], monitors[j]
		if a.Primary != b.Primary {
			return a.Primary
		}
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Name < b.Name
	})
}

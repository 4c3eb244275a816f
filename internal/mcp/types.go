package mcp

import "github.com/1broseidon/backdrop/internal/ipc"

// GetStatusInput is the input for the get_status tool.
type GetStatusInput struct{}

// GetStatusOutput is the output for the get_status tool.
type GetStatusOutput struct {
	UptimeSeconds    int64  `json:"uptime_seconds"`
	MonitorCount     int    `json:"monitor_count"`
	CachedBackdrops  int    `json:"cached_backdrops"`
	InFlightRenders  int    `json:"in_flight_renders"`
	CurrentWorkspace int    `json:"current_workspace"`
	ConfigPath       string `json:"config_path,omitempty"`

	Workspaces []ipc.WorkspaceInfo `json:"workspaces"`
}

// ListMonitorsInput is the input for the list_monitors tool.
type ListMonitorsInput struct{}

// ListMonitorsOutput is the output for the list_monitors tool.
type ListMonitorsOutput struct {
	Monitors []ipc.MonitorInfo `json:"monitors"`
}

// ListBackdropsInput is the input for the list_backdrops tool.
type ListBackdropsInput struct {
	Monitor string `json:"monitor,omitempty" jsonschema:"Only list backdrops of this monitor identifier (e.g. DP-1)"`
}

// ListBackdropsOutput is the output for the list_backdrops tool.
type ListBackdropsOutput struct {
	Backdrops []ipc.BackdropInfo `json:"backdrops"`
}

// TargetInput selects backdrops for cycle_backdrop and refresh_backdrop.
type TargetInput struct {
	Monitor   string `json:"monitor,omitempty" jsonschema:"Monitor identifier as shown by list_monitors (default: every monitor)"`
	Workspace *int   `json:"workspace,omitempty" jsonschema:"Workspace number (default: the current workspace)"`
}

// TargetOutput is the output for cycle_backdrop and refresh_backdrop.
type TargetOutput struct {
	Monitor   string `json:"monitor"`
	Workspace string `json:"workspace"`
	Done      bool   `json:"done"`
}

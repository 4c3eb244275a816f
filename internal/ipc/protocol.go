package ipc

import (
	"encoding/json"
	"fmt"
)

// CommandType represents different IPC command types
type CommandType string

const (
	CommandReload        CommandType = "RELOAD"
	CommandGetStatus     CommandType = "GET_STATUS"
	CommandGetMonitors   CommandType = "GET_MONITORS"
	CommandListBackdrops CommandType = "LIST_BACKDROPS"
	CommandCycle         CommandType = "CYCLE"
	CommandInvalidate    CommandType = "INVALIDATE"
)

// Request represents an IPC request from client to server
type Request struct {
	Command CommandType     `json:"command"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response represents an IPC response from server to client
type Response struct {
	Status string          `json:"status"` // "OK" or "ERROR"
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	UptimeSeconds    int64  `json:"uptime_seconds"`
	DaemonRunning    bool   `json:"daemon_running"`
	MonitorCount     int    `json:"monitor_count"`
	CachedBackdrops  int    `json:"cached_backdrops"`
	InFlightRenders  int    `json:"in_flight_renders"`
	CurrentWorkspace int    `json:"current_workspace"`
	ConfigPath       string `json:"config_path,omitempty"`

	Workspaces []WorkspaceInfo `json:"workspaces,omitempty"`
}

// WorkspaceInfo describes one virtual desktop.
type WorkspaceInfo struct {
	Number  int    `json:"number"`
	Name    string `json:"name,omitempty"`
	Current bool   `json:"current,omitempty"`
}

// MonitorInfo represents information about a single monitor
type MonitorInfo struct {
	ID     string  `json:"id"`
	X      int     `json:"x"`
	Y      int     `json:"y"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Scale  float64 `json:"scale"`
}

// MonitorsData represents the data returned by GET_MONITORS
type MonitorsData struct {
	Monitors []MonitorInfo `json:"monitors"`
}

// BackdropInfo describes one cached backdrop.
type BackdropInfo struct {
	Key          string `json:"key"`
	Monitor      string `json:"monitor"`
	Workspace    int    `json:"workspace"`
	Filename     string `json:"filename,omitempty"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Spanning     bool   `json:"spanning"`
	Cached       bool   `json:"cached"`
	CycleEnabled bool   `json:"cycle_enabled"`
}

// BackdropsData represents the data returned by LIST_BACKDROPS
type BackdropsData struct {
	Backdrops []BackdropInfo `json:"backdrops"`
}

// TargetPayload selects the backdrops a CYCLE or INVALIDATE applies to. An
// empty Monitor means every monitor; a nil Workspace means the current one.
type TargetPayload struct {
	Monitor   string `json:"monitor,omitempty"`
	Workspace *int   `json:"workspace,omitempty"`
}

// NewOKResponse creates a successful response with optional data
func NewOKResponse(data interface{}) (*Response, error) {
	var dataBytes json.RawMessage
	if data != nil {
		bytes, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal response data: %w", err)
		}
		dataBytes = bytes
	}

	return &Response{
		Status: "OK",
		Data:   dataBytes,
	}, nil
}

// NewErrorResponse creates an error response with a message
func NewErrorResponse(errMsg string) *Response {
	return &Response{
		Status: "ERROR",
		Error:  errMsg,
	}
}

// ParseRequest parses a request from JSON bytes
func ParseRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return &req, nil
}

// Marshal converts a response to JSON bytes
func (r *Response) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

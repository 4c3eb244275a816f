// Package mcp exposes the running backdrop daemon as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"strconv"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/backdrop/internal/ipc"
)

const (
	ServerName    = "backdrop"
	ServerVersion = "0.1.0"
)

// DaemonClient is the part of the IPC client the tools use.
type DaemonClient interface {
	GetStatus() (*ipc.StatusData, error)
	GetMonitors() (*ipc.MonitorsData, error)
	ListBackdrops() (*ipc.BackdropsData, error)
	Cycle(target ipc.TargetPayload) error
	Invalidate(target ipc.TargetPayload) error
}

// Server is the MCP server forwarding tool calls to the daemon.
type Server struct {
	mcpServer *mcpsdk.Server
	client    DaemonClient
}

// NewServer creates a new MCP server talking to the daemon through client.
func NewServer(client DaemonClient) *Server {
	s := &Server{client: client}

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_status",
		Description: "Show backdrop daemon status: uptime, monitor count, cached backdrops, renders in progress and the current workspace.",
	}, s.handleGetStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_monitors",
		Description: "List the monitors known to the daemon with their identifier, position, size and scale. The identifier is what property keys and the other tools use.",
	}, s.handleListMonitors)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_backdrops",
		Description: "List the daemon's backdrop cache: one row per monitor/workspace key with the image file, surface size, whether it spans all monitors and whether slideshow cycling is enabled.",
	}, s.handleListBackdrops)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "cycle_backdrop",
		Description: "Advance the slideshow to the next image for a monitor and workspace (default: every monitor on the current workspace). Only backdrops with cycling enabled change.",
	}, s.handleCycleBackdrop)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "refresh_backdrop",
		Description: "Drop cached backdrops so they are rendered again from the current settings and image files. With no arguments every backdrop is refreshed.",
	}, s.handleRefreshBackdrop)
}

func targetPayload(args TargetInput) ipc.TargetPayload {
	return ipc.TargetPayload{Monitor: args.Monitor, Workspace: args.Workspace}
}

func describeTarget(args TargetInput) TargetOutput {
	out := TargetOutput{Monitor: args.Monitor, Workspace: "current"}
	if out.Monitor == "" {
		out.Monitor = "all"
	}
	if args.Workspace != nil {
		out.Workspace = strconv.Itoa(*args.Workspace)
	}
	return out
}

func daemonError(tool string, err error) error {
	return fmt.Errorf("%s: %w", tool, err)
}

package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/backdrop/internal/ipc"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ GetStatusInput) (*mcpsdk.CallToolResult, GetStatusOutput, error) {
	status, err := s.client.GetStatus()
	if err != nil {
		return nil, GetStatusOutput{}, daemonError("get_status", err)
	}
	workspaces := status.Workspaces
	if workspaces == nil {
		workspaces = []ipc.WorkspaceInfo{}
	}
	return nil, GetStatusOutput{
		UptimeSeconds:    status.UptimeSeconds,
		MonitorCount:     status.MonitorCount,
		CachedBackdrops:  status.CachedBackdrops,
		InFlightRenders:  status.InFlightRenders,
		CurrentWorkspace: status.CurrentWorkspace,
		ConfigPath:       status.ConfigPath,
		Workspaces:       workspaces,
	}, nil
}

func (s *Server) handleListMonitors(_ context.Context, _ *mcpsdk.CallToolRequest, _ ListMonitorsInput) (*mcpsdk.CallToolResult, ListMonitorsOutput, error) {
	data, err := s.client.GetMonitors()
	if err != nil {
		return nil, ListMonitorsOutput{}, daemonError("list_monitors", err)
	}
	monitors := data.Monitors
	if monitors == nil {
		monitors = []ipc.MonitorInfo{}
	}
	return nil, ListMonitorsOutput{Monitors: monitors}, nil
}

func (s *Server) handleListBackdrops(_ context.Context, _ *mcpsdk.CallToolRequest, args ListBackdropsInput) (*mcpsdk.CallToolResult, ListBackdropsOutput, error) {
	data, err := s.client.ListBackdrops()
	if err != nil {
		return nil, ListBackdropsOutput{}, daemonError("list_backdrops", err)
	}

	backdrops := make([]ipc.BackdropInfo, 0, len(data.Backdrops))
	for _, b := range data.Backdrops {
		if args.Monitor != "" && b.Monitor != args.Monitor {
			continue
		}
		backdrops = append(backdrops, b)
	}
	return nil, ListBackdropsOutput{Backdrops: backdrops}, nil
}

func (s *Server) handleCycleBackdrop(_ context.Context, _ *mcpsdk.CallToolRequest, args TargetInput) (*mcpsdk.CallToolResult, TargetOutput, error) {
	if err := s.client.Cycle(targetPayload(args)); err != nil {
		return nil, TargetOutput{}, daemonError("cycle_backdrop", err)
	}
	out := describeTarget(args)
	out.Done = true
	return nil, out, nil
}

func (s *Server) handleRefreshBackdrop(_ context.Context, _ *mcpsdk.CallToolRequest, args TargetInput) (*mcpsdk.CallToolResult, TargetOutput, error) {
	if err := s.client.Invalidate(targetPayload(args)); err != nil {
		return nil, TargetOutput{}, daemonError("refresh_backdrop", err)
	}
	out := describeTarget(args)
	out.Done = true
	return nil, out, nil
}

package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/1broseidon/backdrop/internal/ipc"
)

type fakeClient struct {
	err         error
	cycled      []ipc.TargetPayload
	invalidated []ipc.TargetPayload
}

func (f *fakeClient) GetStatus() (*ipc.StatusData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ipc.StatusData{UptimeSeconds: 42, MonitorCount: 2, CachedBackdrops: 1, CurrentWorkspace: 3,
		Workspaces: []ipc.WorkspaceInfo{{Number: 3, Name: "mail", Current: true}}}, nil
}

func (f *fakeClient) GetMonitors() (*ipc.MonitorsData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ipc.MonitorsData{}, nil
}

func (f *fakeClient) ListBackdrops() (*ipc.BackdropsData, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &ipc.BackdropsData{Backdrops: []ipc.BackdropInfo{
		{Key: "/backdrop/screen0/monitorDP-1/workspace0", Monitor: "DP-1"},
		{Key: "/backdrop/screen0/monitorHDMI-1/workspace0", Monitor: "HDMI-1"},
	}}, nil
}

func (f *fakeClient) Cycle(target ipc.TargetPayload) error {
	f.cycled = append(f.cycled, target)
	return f.err
}

func (f *fakeClient) Invalidate(target ipc.TargetPayload) error {
	f.invalidated = append(f.invalidated, target)
	return f.err
}

func TestGetStatus(t *testing.T) {
	s := NewServer(&fakeClient{})
	_, out, err := s.handleGetStatus(context.Background(), nil, GetStatusInput{})
	if err != nil {
		t.Fatalf("handleGetStatus() error: %v", err)
	}
	if out.UptimeSeconds != 42 || out.MonitorCount != 2 || out.CurrentWorkspace != 3 {
		t.Fatalf("handleGetStatus() = %+v", out)
	}
	if len(out.Workspaces) != 1 || out.Workspaces[0].Name != "mail" || !out.Workspaces[0].Current {
		t.Fatalf("handleGetStatus() workspaces = %+v", out.Workspaces)
	}
}

func TestListMonitorsNeverReturnsNil(t *testing.T) {
	s := NewServer(&fakeClient{})
	_, out, err := s.handleListMonitors(context.Background(), nil, ListMonitorsInput{})
	if err != nil {
		t.Fatalf("handleListMonitors() error: %v", err)
	}
	if out.Monitors == nil {
		t.Fatalf("Monitors is nil, want empty slice")
	}
}

func TestListBackdropsFiltersByMonitor(t *testing.T) {
	s := NewServer(&fakeClient{})
	_, out, err := s.handleListBackdrops(context.Background(), nil, ListBackdropsInput{Monitor: "HDMI-1"})
	if err != nil {
		t.Fatalf("handleListBackdrops() error: %v", err)
	}
	if len(out.Backdrops) != 1 || out.Backdrops[0].Monitor != "HDMI-1" {
		t.Fatalf("handleListBackdrops() = %+v", out.Backdrops)
	}
}

func TestTargetToolsForwardToDaemon(t *testing.T) {
	client := &fakeClient{}
	s := NewServer(client)
	ws := 1

	_, out, err := s.handleCycleBackdrop(context.Background(), nil, TargetInput{Monitor: "DP-1", Workspace: &ws})
	if err != nil {
		t.Fatalf("handleCycleBackdrop() error: %v", err)
	}
	if !out.Done || out.Monitor != "DP-1" || out.Workspace != "1" {
		t.Fatalf("handleCycleBackdrop() = %+v", out)
	}

	_, out, err = s.handleRefreshBackdrop(context.Background(), nil, TargetInput{})
	if err != nil {
		t.Fatalf("handleRefreshBackdrop() error: %v", err)
	}
	if out.Monitor != "all" || out.Workspace != "current" {
		t.Fatalf("handleRefreshBackdrop() = %+v", out)
	}

	if len(client.cycled) != 1 || client.cycled[0].Monitor != "DP-1" || *client.cycled[0].Workspace != 1 {
		t.Fatalf("cycled = %+v", client.cycled)
	}
	if len(client.invalidated) != 1 || client.invalidated[0].Monitor != "" || client.invalidated[0].Workspace != nil {
		t.Fatalf("invalidated = %+v", client.invalidated)
	}
}

func TestDaemonErrorsNameTheTool(t *testing.T) {
	s := NewServer(&fakeClient{err: errors.New("failed to connect to daemon")})
	_, _, err := s.handleRefreshBackdrop(context.Background(), nil, TargetInput{})
	if err == nil || !strings.HasPrefix(err.Error(), "refresh_backdrop:") {
		t.Fatalf("handleRefreshBackdrop() error = %v", err)
	}
}

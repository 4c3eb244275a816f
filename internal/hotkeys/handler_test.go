package hotkeys

import (
	"image"
	"testing"

	"github.com/1broseidon/backdrop/internal/platform"
)

type headlessBackend struct{}

func (headlessBackend) Outputs() ([]platform.Output, error)       { return nil, nil }
func (headlessBackend) Workspaces() ([]platform.Workspace, error) { return nil, nil }
func (headlessBackend) CurrentWorkspace() (int, error)            { return 0, nil }
func (headlessBackend) OnTopologyChanged(func())                  {}
func (headlessBackend) OnWorkspaceChanged(func(int))              {}
func (headlessBackend) ScreenSize() (int, int)                    { return 0, 0 }
func (headlessBackend) SetBackground(image.Image) error           { return nil }
func (headlessBackend) EventLoop()                                {}
func (headlessBackend) Disconnect()                               {}

func TestRegisterFuncWithoutX11(t *testing.T) {
	h := NewHandler(headlessBackend{})

	if err := h.RegisterFunc("", func() {}); err != nil {
		t.Fatalf("RegisterFunc(\"\") error: %v", err)
	}
	if err := h.RegisterFunc("Mod4-n", func() {}); err == nil {
		t.Fatalf("RegisterFunc() succeeded without an X11 connection")
	}

	// Failures are logged, never fatal.
	h.RegisterAll(Bindings{Next: "Mod4-n"}, Actions{Next: func() error { return nil }})
}

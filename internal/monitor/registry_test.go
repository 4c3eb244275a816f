package monitor

import (
	"testing"

	"github.com/1broseidon/backdrop/internal/platform"
)

func outputs() []platform.Output {
	return []platform.Output{
		{Handle: 10, Name: "DP-1", Bounds: platform.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}, Scale: 1},
		{Handle: 11, Name: "HDMI-1", Bounds: platform.Rect{X: 1920, Y: 0, Width: 1280, Height: 1024}},
	}
}

func TestRefreshCreatesRecords(t *testing.T) {
	r := NewRegistry(nil)
	removed := r.Refresh(outputs())
	if len(removed) != 0 {
		t.Fatalf("removed = %d, want 0", len(removed))
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	if got := r.At(0).ID; got != "DP-1" {
		t.Fatalf("At(0).ID = %q, want DP-1", got)
	}
	if got := r.ByHandle(11); got == nil || got.ID != "HDMI-1" {
		t.Fatalf("ByHandle(11) = %v, want HDMI-1", got)
	}
	if got := r.ByID("HDMI-1"); got == nil || got.Scale != 1 {
		t.Fatalf("ByID(HDMI-1) = %v, want scale defaulted to 1", got)
	}
	if r.At(2) != nil || r.At(-1) != nil {
		t.Fatalf("At out of range should return nil")
	}

	want := platform.Rect{X: 0, Y: 0, Width: 3200, Height: 1080}
	if got := r.Union(); got != want {
		t.Fatalf("Union() = %+v, want %+v", got, want)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	r.Refresh(outputs())
	first := r.All()

	removed := r.Refresh(outputs())
	if len(removed) != 0 {
		t.Fatalf("removed = %d, want 0", len(removed))
	}
	for i, m := range r.All() {
		if m != first[i] {
			t.Fatalf("monitor %d was recreated on identical refresh", i)
		}
	}
	if !r.Matches(outputs()) {
		t.Fatalf("Matches() = false after refresh")
	}
}

func TestRefreshDropsVanishedOutputs(t *testing.T) {
	r := NewRegistry(nil)
	r.Refresh(outputs())
	held := r.ByID("HDMI-1")

	removed := r.Refresh(outputs()[:1])
	if len(removed) != 1 || removed[0].ID != "HDMI-1" {
		t.Fatalf("removed = %v, want [HDMI-1]", removed)
	}
	if r.ByID("HDMI-1") != nil || r.ByHandle(11) != nil {
		t.Fatalf("HDMI-1 still registered")
	}
	// A record held elsewhere stays usable after removal.
	if held.Geometry.Width != 1280 {
		t.Fatalf("held record changed: %+v", held)
	}
	if got := r.Union(); got.Width != 1920 {
		t.Fatalf("Union().Width = %d, want 1920", got.Width)
	}
}

func TestRefreshReplacesChangedGeometry(t *testing.T) {
	r := NewRegistry(nil)
	r.Refresh(outputs())
	before := r.ByID("DP-1")

	outs := outputs()
	outs[0].Bounds.Width = 2560
	outs[0].Bounds.Height = 1440
	removed := r.Refresh(outs)
	if len(removed) != 0 {
		t.Fatalf("geometry change should not remove monitor, removed = %v", removed)
	}
	after := r.ByID("DP-1")
	if after == before {
		t.Fatalf("expected a new record after geometry change")
	}
	if before.Geometry.Width != 1920 || after.Geometry.Width != 2560 {
		t.Fatalf("before=%+v after=%+v", before.Geometry, after.Geometry)
	}
	if r.Matches(outputs()) {
		t.Fatalf("Matches() should report the old topology as different")
	}
}

func TestRefreshMakesIdentifiersUnique(t *testing.T) {
	r := NewRegistry(nil)
	r.Refresh([]platform.Output{
		{Handle: 1, Name: "VGA", Bounds: platform.Rect{Width: 800, Height: 600}},
		{Handle: 2, Name: "VGA", Bounds: platform.Rect{X: 800, Width: 800, Height: 600}},
		{Handle: 3, Bounds: platform.Rect{X: 1600, Width: 800, Height: 600}},
	})

	seen := map[string]bool{}
	for _, m := range r.All() {
		if seen[m.ID] {
			t.Fatalf("duplicate identifier %q", m.ID)
		}
		seen[m.ID] = true
	}
	if r.ByID("VGA-2") == nil || r.ByID("-3") == nil {
		t.Fatalf("unexpected identifiers: %v", r.All())
	}
}

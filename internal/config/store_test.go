package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestStore_SubscribePrefixAndEquality(t *testing.T) {
	s := NewMemoryStore(nil)

	var got []string
	unsubscribe := s.Subscribe("/backdrop/screen0/monitorA", func(key string) {
		got = append(got, key)
	})

	if err := s.SetString("/backdrop/screen0/monitorA/workspace0/last-image", "/a.png"); err != nil {
		t.Fatalf("set: %v", err)
	}
	// Same value: no change, no notification.
	if err := s.SetString("/backdrop/screen0/monitorA/workspace0/last-image", "/a.png"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetString("/backdrop/screen0/monitorB/workspace0/last-image", "/b.png"); err != nil {
		t.Fatalf("set: %v", err)
	}

	want := []string{"/backdrop/screen0/monitorA/workspace0/last-image"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("notifications = %v, want %v", got, want)
	}

	unsubscribe()
	if err := s.SetString("/backdrop/screen0/monitorA/workspace0/last-image", "/c.png"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected no notification after unsubscribe, got %v", got)
	}
}

func TestStore_TypedGettersUseDefaults(t *testing.T) {
	s := NewMemoryStore(map[string]any{
		"/k/int":    7,
		"/k/str":    "hello",
		"/k/bool":   true,
		"/k/list":   []any{1, 0.25, 0, 1},
		"/k/badlst": []any{"x"},
	})

	if got := s.GetInt("/k/int", 0); got != 7 {
		t.Fatalf("GetInt = %d", got)
	}
	if got := s.GetInt("/k/missing", 3); got != 3 {
		t.Fatalf("GetInt default = %d", got)
	}
	if got := s.GetUint("/k/int", 0); got != 7 {
		t.Fatalf("GetUint = %d", got)
	}
	if got := s.GetString("/k/int", "def"); got != "def" {
		t.Fatalf("GetString on int = %q, want default", got)
	}
	if got := s.GetString("/k/str", ""); got != "hello" {
		t.Fatalf("GetString = %q", got)
	}
	if !s.GetBool("/k/bool", false) {
		t.Fatalf("GetBool = false")
	}
	if got := s.GetDoubleArray("/k/list", nil); !reflect.DeepEqual(got, []float64{1, 0.25, 0, 1}) {
		t.Fatalf("GetDoubleArray = %v", got)
	}
	if got := s.GetDoubleArray("/k/badlst", []float64{9}); !reflect.DeepEqual(got, []float64{9}) {
		t.Fatalf("GetDoubleArray bad list = %v", got)
	}
	if !s.HasProperty("/k/str") || s.HasProperty("/k/none") {
		t.Fatalf("HasProperty mismatch")
	}
}

func TestStore_SetPersistsAndReloadNotifiesExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s, err := OpenStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.SetInt("/backdrop/screen0/monitorA/workspace0/image-style", 4); err != nil {
		t.Fatalf("set: %v", err)
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := reopened.GetInt("/backdrop/screen0/monitorA/workspace0/image-style", 0); got != 4 {
		t.Fatalf("persisted image-style = %d", got)
	}

	var changed []string
	s.Subscribe("/backdrop", func(key string) { changed = append(changed, key) })

	external := []byte("properties:\n  /backdrop/screen0/monitorA/workspace0/image-style: 4\n  /backdrop/screen0/monitorA/workspace0/last-image: /x.png\n")
	if err := os.WriteFile(path, external, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	want := []string{"/backdrop/screen0/monitorA/workspace0/last-image"}
	if !reflect.DeepEqual(changed, want) {
		t.Fatalf("reload notifications = %v, want %v", changed, want)
	}
}

func TestStore_ResetNotifies(t *testing.T) {
	s := NewMemoryStore(map[string]any{"/a/b": "x"})
	notified := 0
	s.Subscribe("/a", func(string) { notified++ })
	if err := s.Reset("/a/b"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if err := s.Reset("/a/b"); err != nil {
		t.Fatalf("reset again: %v", err)
	}
	if notified != 1 || s.HasProperty("/a/b") {
		t.Fatalf("notified=%d has=%v", notified, s.HasProperty("/a/b"))
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"true", true},
		{"false", false},
		{"5", int64(5)},
		{"-2", int64(-2)},
		{"0.5", 0.5},
		{"1,0,0.5,1", []any{1.0, 0.0, 0.5, 1.0}},
		{"/home/me/Pictures/a.png", "/home/me/Pictures/a.png"},
		{"a,b", "a,b"},
		{"True", "True"},
	}
	for _, tt := range tests {
		if got := ParseValue(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}

func TestStore_SetAcceptsParsedValues(t *testing.T) {
	s := NewMemoryStore(nil)
	if err := s.Set("/backdrop/screen0/monitorDP-1/workspace0/rgba1", ParseValue("1,0,0,1")); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	got := s.GetDoubleArray("/backdrop/screen0/monitorDP-1/workspace0/rgba1", nil)
	if !reflect.DeepEqual(got, []float64{1, 0, 0, 1}) {
		t.Fatalf("GetDoubleArray() = %v", got)
	}
	if err := s.Set("/backdrop/x", struct{}{}); err == nil {
		t.Fatalf("Set() accepted an unsupported value")
	}
}

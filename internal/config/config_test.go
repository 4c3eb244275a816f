package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if !cfg.GetPaintRoot() {
		t.Fatalf("expected paint_root to default to true")
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RenderChunkSize != DefaultRenderChunkSize {
		t.Fatalf("expected chunk size %d, got %d", DefaultRenderChunkSize, cfg.RenderChunkSize)
	}
}

func TestLoadFromPath_PropertiesAndSettings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := strings.Join([]string{
		"display: \":1\"",
		"log_level: debug",
		"paint_root: false",
		"properties:",
		"  /backdrop/screen0/monitorDP-1/workspace0/image-style: 5",
		"  /backdrop/screen0/monitorDP-1/workspace0/rgba1: [0, 0.5, 1, 1]",
		"  /backdrop/screen0/monitorDP-1/workspace0/last-image: /tmp/a.png",
		"  /backdrop/single-workspace-mode: true",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Display != ":1" || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected settings: display=%q log_level=%q", cfg.Display, cfg.LogLevel)
	}
	if cfg.GetPaintRoot() {
		t.Fatalf("expected paint_root false")
	}

	store := NewStore(path, cfg)
	if got := store.GetInt("/backdrop/screen0/monitorDP-1/workspace0/image-style", 0); got != 5 {
		t.Fatalf("image-style = %d, want 5", got)
	}
	rgba := store.GetDoubleArray("/backdrop/screen0/monitorDP-1/workspace0/rgba1", nil)
	if len(rgba) != 4 || rgba[1] != 0.5 || rgba[2] != 1 {
		t.Fatalf("rgba1 = %v", rgba)
	}
	if !store.GetBool("/backdrop/single-workspace-mode", false) {
		t.Fatalf("expected single-workspace-mode true")
	}
}

func TestLoadFromPath_RejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"log_format":        "log_format: xml\n",
		"render_chunk_size": "render_chunk_size: 10\n",
		"screen":            "screen: -1\n",
		"properties":        "properties:\n  relative/key: 1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(data), 0644); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := LoadFromPath(path)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
		})
	}
}

func TestSaveToPath_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Properties["/backdrop/screen0/monitorHDMI-1/workspace2/last-image"] = "/pics/x.jpg"
	if err := cfg.SaveToPath(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := loaded.Properties["/backdrop/screen0/monitorHDMI-1/workspace2/last-image"]; got != "/pics/x.jpg" {
		t.Fatalf("last-image = %v", got)
	}
}

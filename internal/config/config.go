package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultLogLevel                 = "info"
	DefaultLogFormat                = "auto"
	DefaultRenderChunkSize          = 64 * 1024
	MinRenderChunkSize              = 4096
	DefaultReconcileIntervalSeconds = 30
)

// Config holds the daemon settings plus the persisted backdrop properties.
type Config struct {
	Display                  string `yaml:"display,omitempty"`
	XAuthority               string `yaml:"xauthority,omitempty"`
	Screen                   int    `yaml:"screen"`
	LogLevel                 string `yaml:"log_level"`
	LogFormat                string `yaml:"log_format"`
	RenderChunkSize          int    `yaml:"render_chunk_size"`
	ReconcileIntervalSeconds int    `yaml:"reconcile_interval_seconds"`
	// PaintRoot controls whether the daemon sets the X root window
	// background. Default: true
	PaintRoot *bool `yaml:"paint_root,omitempty"`
	// Global hotkeys in xgbutil keybind notation, e.g. "Mod4-Shift-n".
	NextHotkey    string `yaml:"next_hotkey,omitempty"`
	RefreshHotkey string `yaml:"refresh_hotkey,omitempty"`

	// Properties maps full property paths (e.g.
	// /backdrop/screen0/monitorDP-1/workspace0/image-style) to values.
	Properties map[string]any `yaml:"properties,omitempty"`
}

// ValidationError reports an invalid setting by its YAML path.
type ValidationError struct {
	Path string
	Err  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func DefaultConfig() *Config {
	return &Config{
		Screen:                   0,
		LogLevel:                 DefaultLogLevel,
		LogFormat:                DefaultLogFormat,
		RenderChunkSize:          DefaultRenderChunkSize,
		ReconcileIntervalSeconds: DefaultReconcileIntervalSeconds,
		Properties:               map[string]any{},
	}
}

// GetPaintRoot returns the effective value, defaulting to true.
func (c *Config) GetPaintRoot() bool {
	if c == nil || c.PaintRoot == nil {
		return true
	}
	return *c.PaintRoot
}

func (c *Config) Validate() error {
	if c.Screen < 0 {
		return &ValidationError{Path: "screen", Err: fmt.Errorf("screen must be >= 0")}
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warn, error")}
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		return &ValidationError{Path: "log_format", Err: fmt.Errorf("log_format must be one of: auto, text, json")}
	}
	if c.RenderChunkSize < MinRenderChunkSize {
		return &ValidationError{Path: "render_chunk_size", Err: fmt.Errorf("render_chunk_size must be >= %d", MinRenderChunkSize)}
	}
	if c.ReconcileIntervalSeconds < 0 {
		return &ValidationError{Path: "reconcile_interval_seconds", Err: fmt.Errorf("reconcile_interval_seconds must be >= 0")}
	}
	for key, value := range c.Properties {
		if !strings.HasPrefix(key, "/") {
			return &ValidationError{Path: "properties." + key, Err: fmt.Errorf("property keys must start with '/'")}
		}
		if _, ok := normalizeValue(value); !ok {
			return &ValidationError{Path: "properties." + key, Err: fmt.Errorf("unsupported value type %T", value)}
		}
	}
	return nil
}

// DefaultConfigPath returns $BACKDROP_CONFIG or ~/.config/backdrop/config.yaml.
func DefaultConfigPath() (string, error) {
	if path := strings.TrimSpace(os.Getenv("BACKDROP_CONFIG")); path != "" {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "backdrop", "config.yaml"), nil
}

// Load reads the configuration from the standard location.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads path on top of the defaults. A missing file yields the
// defaults.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Properties == nil {
		cfg.Properties = map[string]any{}
	}
	for key, value := range cfg.Properties {
		if norm, ok := normalizeValue(value); ok {
			cfg.Properties[key] = norm
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SaveToPath writes the config atomically (temp file + rename).
func (c *Config) SaveToPath(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

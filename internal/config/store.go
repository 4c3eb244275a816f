package config

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when a property is not set.
var ErrNotFound = errors.New("property not found")

type subscription struct {
	id     int
	prefix string
	fn     func(key string)
}

// Store is a hierarchical typed key/value property store. Keys are slash
// separated paths. Every mutation notifies the subscribers whose prefix
// matches the key, after the store lock has been released.
type Store struct {
	mu     sync.Mutex
	path   string
	cfg    *Config
	props  map[string]any
	subs   []subscription
	nextID int
}

// OpenStore loads path and returns a store persisting to it.
func OpenStore(path string) (*Store, error) {
	cfg, err := LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	return NewStore(path, cfg), nil
}

// NewStore wraps cfg. An empty path keeps the store in memory only.
func NewStore(path string, cfg *Config) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	props := make(map[string]any, len(cfg.Properties))
	for key, value := range cfg.Properties {
		if norm, ok := normalizeValue(value); ok {
			props[key] = norm
		}
	}
	return &Store{
		path:  path,
		cfg:   cfg,
		props: props,
	}
}

// NewMemoryStore returns a non-persistent store seeded with props.
func NewMemoryStore(props map[string]any) *Store {
	cfg := DefaultConfig()
	for key, value := range props {
		cfg.Properties[key] = value
	}
	return NewStore("", cfg)
}

// Path returns the backing file path ("" for memory stores).
func (s *Store) Path() string {
	return s.path
}

// Config returns a copy of the daemon settings with the current properties.
func (s *Store) Config() *Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() *Config {
	cfg := *s.cfg
	cfg.Properties = make(map[string]any, len(s.props))
	for key, value := range s.props {
		cfg.Properties[key] = value
	}
	return &cfg
}

// Subscribe registers fn for every change to a key starting with prefix.
// The returned func removes the subscription.
func (s *Store) Subscribe(prefix string, fn func(key string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, prefix: prefix, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(keys []string) {
	if len(keys) == 0 {
		return
	}
	s.mu.Lock()
	subs := append([]subscription(nil), s.subs...)
	s.mu.Unlock()

	for _, key := range keys {
		for _, sub := range subs {
			if strings.HasPrefix(key, sub.prefix) {
				sub.fn(key)
			}
		}
	}
}

// HasProperty reports whether key is set.
func (s *Store) HasProperty(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.props[key]
	return ok
}

// Get returns the raw normalized value of key.
func (s *Store) Get(key string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.props[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return value, nil
}

// Keys returns the sorted keys starting with prefix.
func (s *Store) Keys(prefix string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for key := range s.props {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Store) lookup(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.props[key]
	return value, ok
}

func (s *Store) GetInt(key string, def int) int {
	value, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch v := value.(type) {
	case int64:
		return int(v)
	case float64:
		if v == math.Trunc(v) {
			return int(v)
		}
	case bool:
		if v {
			return 1
		}
		return 0
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func (s *Store) GetUint(key string, def uint) uint {
	n := s.GetInt(key, -1)
	if n < 0 {
		return def
	}
	return uint(n)
}

func (s *Store) GetBool(key string, def bool) bool {
	value, ok := s.lookup(key)
	if !ok {
		return def
	}
	switch v := value.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

func (s *Store) GetString(key string, def string) string {
	value, ok := s.lookup(key)
	if !ok {
		return def
	}
	if v, ok := value.(string); ok {
		return v
	}
	return def
}

// GetDoubleArray returns the numeric list stored at key, or def when the key
// is missing or not a list of numbers.
func (s *Store) GetDoubleArray(key string, def []float64) []float64 {
	value, ok := s.lookup(key)
	if !ok {
		return def
	}
	list, ok := value.([]any)
	if !ok {
		return def
	}
	out := make([]float64, 0, len(list))
	for _, item := range list {
		switch v := item.(type) {
		case float64:
			out = append(out, v)
		case int64:
			out = append(out, float64(v))
		default:
			return def
		}
	}
	return out
}

func (s *Store) SetString(key, value string) error {
	return s.set(key, value)
}

func (s *Store) SetInt(key string, value int) error {
	return s.set(key, int64(value))
}

func (s *Store) SetBool(key string, value bool) error {
	return s.set(key, value)
}

func (s *Store) SetDoubleArray(key string, values []float64) error {
	list := make([]any, len(values))
	for i, v := range values {
		list[i] = v
	}
	return s.set(key, list)
}

// Reset removes key.
func (s *Store) Reset(key string) error {
	s.mu.Lock()
	if _, ok := s.props[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.props, key)
	err := s.persistLocked()
	s.mu.Unlock()

	s.notify([]string{key})
	return err
}

func (s *Store) set(key string, value any) error {
	if !strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid property key %q: must start with '/'", key)
	}
	norm, ok := normalizeValue(value)
	if !ok {
		return fmt.Errorf("invalid property value for %s: %T", key, value)
	}

	s.mu.Lock()
	if old, exists := s.props[key]; exists && reflect.DeepEqual(old, norm) {
		s.mu.Unlock()
		return nil
	}
	s.props[key] = norm
	err := s.persistLocked()
	s.mu.Unlock()

	s.notify([]string{key})
	return err
}

func (s *Store) persistLocked() error {
	if s.path == "" {
		return nil
	}
	return s.snapshotLocked().SaveToPath(s.path)
}

// Reload re-reads the backing file and notifies every key whose value was
// added, removed or changed. Daemon settings are replaced as well.
func (s *Store) Reload() (*Config, error) {
	if s.path == "" {
		return s.Config(), nil
	}
	cfg, err := LoadFromPath(s.path)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	var changed []string
	for key, value := range cfg.Properties {
		if old, ok := s.props[key]; !ok || !reflect.DeepEqual(old, value) {
			changed = append(changed, key)
		}
	}
	for key := range s.props {
		if _, ok := cfg.Properties[key]; !ok {
			changed = append(changed, key)
		}
	}
	s.props = make(map[string]any, len(cfg.Properties))
	for key, value := range cfg.Properties {
		s.props[key] = value
	}
	s.cfg = cfg
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	sort.Strings(changed)
	s.notify(changed)
	return snapshot, nil
}

// normalizeValue maps the value shapes produced by yaml.v3 and the setters
// onto int64, float64, bool, string and []any of those.
func normalizeValue(value any) (any, bool) {
	switch v := value.(type) {
	case string, bool, int64, float64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float32:
		return float64(v), true
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out, true
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			norm, ok := normalizeValue(item)
			if !ok {
				return nil, false
			}
			if _, nested := norm.([]any); nested {
				return nil, false
			}
			out[i] = norm
		}
		return out, true
	}
	return nil, false
}

// Set stores value under key. Supported values are the ones the YAML file
// can hold: bools, integers, floats, strings and lists of those.
func (s *Store) Set(key string, value any) error {
	return s.set(key, value)
}

// ParseValue interprets a command-line property value: "true"/"false" as a
// bool, integers as ints, comma-separated numbers as a float list and
// anything else as a string.
func ParseValue(raw string) any {
	raw = strings.TrimSpace(raw)
	if raw == "true" || raw == "false" {
		return raw == "true"
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if strings.Contains(raw, ",") {
		parts := strings.Split(raw, ",")
		list := make([]any, 0, len(parts))
		for _, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return raw
			}
			list = append(list, f)
		}
		return list
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}

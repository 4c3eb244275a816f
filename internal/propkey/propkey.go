// Package propkey defines the property-key layout of backdrop settings and
// resolves a (monitor, workspace) pair to the key prefix that configures it.
package propkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Root is the top of the backdrop property tree.
const Root = "/backdrop"

// Global properties.
const (
	SingleWorkspaceMode   = Root + "/single-workspace-mode"
	SingleWorkspaceNumber = Root + "/single-workspace-number"
)

// Per-key property names, relative to a Key prefix.
const (
	ColorStyle  = "color-style"
	RGBA1       = "rgba1"
	RGBA2       = "rgba2"
	ImageStyle  = "image-style"
	LastImage   = "last-image"
	CycleEnable = "backdrop-cycle-enable"
	CyclePeriod = "backdrop-cycle-period"
	CycleTimer  = "backdrop-cycle-timer"
	CycleRandom = "backdrop-cycle-random-order"
)

var (
	ErrMonitorNotFound = errors.New("monitor not found")
	ErrInvalidKey      = errors.New("invalid backdrop key")
)

// ParseError reports a property path that is not a backdrop key prefix,
// such as a legacy or malformed key.
type ParseError struct {
	Key    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid backdrop key %q: %s", e.Key, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return ErrInvalidKey
}

// Key identifies one backdrop configuration.
type Key struct {
	Screen    int
	Monitor   string
	Workspace int
}

// String returns the key prefix, /backdrop/screen<N>/monitor<ID>/workspace<W>.
func (k Key) String() string {
	return fmt.Sprintf("%s/screen%d/monitor%s/workspace%d", Root, k.Screen, k.Monitor, k.Workspace)
}

// Property returns the full path of a property under k.
func (k Key) Property(name string) string {
	return k.String() + "/" + name
}

// Parse is the inverse of Key.String.
func Parse(prefix string) (Key, error) {
	rest, ok := strings.CutPrefix(prefix, Root+"/")
	if !ok {
		return Key{}, &ParseError{Key: prefix, Reason: "not under " + Root}
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 {
		return Key{}, &ParseError{Key: prefix, Reason: "expected screen/monitor/workspace"}
	}

	screen, err := numbered(parts[0], "screen")
	if err != nil {
		return Key{}, &ParseError{Key: prefix, Reason: err.Error()}
	}
	mon, ok := strings.CutPrefix(parts[1], "monitor")
	if !ok || mon == "" {
		return Key{}, &ParseError{Key: prefix, Reason: "missing monitor identifier"}
	}
	ws, err := numbered(parts[2], "workspace")
	if err != nil {
		return Key{}, &ParseError{Key: prefix, Reason: err.Error()}
	}
	return Key{Screen: screen, Monitor: mon, Workspace: ws}, nil
}

func numbered(part, label string) (int, error) {
	digits, ok := strings.CutPrefix(part, label)
	if !ok || digits == "" {
		return 0, fmt.Errorf("missing %s number", label)
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad %s number %q", label, digits)
	}
	return n, nil
}

// PrefixFromProperty strips the property name from a full property path,
// returning the key prefix it belongs to.
func PrefixFromProperty(property string) string {
	i := strings.LastIndexByte(property, '/')
	if i <= 0 {
		return property
	}
	return property[:i]
}

// ParseProperty parses the key that owns a full property path.
func ParseProperty(property string) (Key, error) {
	return Parse(PrefixFromProperty(property))
}

// IsGlobal reports whether property changes every backdrop key at once.
func IsGlobal(property string) bool {
	return property == SingleWorkspaceMode || property == SingleWorkspaceNumber
}

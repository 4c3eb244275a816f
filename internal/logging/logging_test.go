package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if ParseFormat("JSON") != FormatJSON || ParseFormat("text") != FormatText || ParseFormat("") != FormatAuto {
		t.Fatalf("unexpected format parsing")
	}
}

func TestNewHandler_AutoUsesJSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(&buf, FormatAuto, slog.LevelInfo))
	logger.Info("render finished", "key", "/backdrop/screen0/monitorA/workspace0")
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	logger = slog.New(NewHandler(&buf, FormatText, slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Fatalf("unexpected text output %q", out)
	}
}

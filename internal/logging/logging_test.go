package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "json", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Str("stream", "stderr").Msg("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %q", out)
	}
	if !strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, `"stream":"stderr"`) || !strings.Contains(out, `"time"`) {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("DEBUG", "console", &buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Debug().Int("pid", 7).Msg("backend started")
	out := buf.String()
	if !strings.Contains(out, "backend started") || !strings.Contains(out, "pid=7") {
		t.Fatalf("unexpected output: %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("colors must be off for non-terminal writers: %q", out)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("loud", "json", nil); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New("info", "xml", nil); err == nil {
		t.Fatalf("expected format error")
	}
}

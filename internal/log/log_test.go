package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		" DEBUG ": LevelDebug,
		"info":    LevelInfo,
		"error":   LevelError,
		"":        LevelInfo,
		"verbose": LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(LevelInfo)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
	})

	Debug("hidden", "k", "v")
	Info("shown", "count", 3, "name", "two words")
	Error("failed", errors.New("boom"), "source", "events")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line should be filtered at INFO: %s", out)
	}
	if !strings.Contains(out, "[INFO] shown count=3 name=\"two words\"") {
		t.Errorf("missing info line: %s", out)
	}
	if !strings.Contains(out, "[ERROR] failed err=boom source=events") {
		t.Errorf("missing error line: %s", out)
	}

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("visible")
	if !strings.Contains(buf.String(), "[DEBUG] visible") {
		t.Errorf("debug line should be logged at DEBUG: %s", buf.String())
	}
}

func TestOddKVIgnored(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	Info("odd", "a", 1, "dangling")
	if strings.Contains(buf.String(), "dangling") {
		t.Errorf("dangling key should be dropped: %s", buf.String())
	}
}

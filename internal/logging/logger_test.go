package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestConsoleHandlerFormatsComponentPrefix(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger = logger.With(String(FieldComponent, "worker"))
	logger.Info("task started", String(FieldTaskID, "task-20260101-000000-a"))

	line := buf.String()
	if !strings.Contains(line, "INFO worker: task started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "task_id=task-20260101-000000-a") {
		t.Fatalf("missing task_id attr: %q", line)
	}
}

func TestConsoleHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Warn("degraded", String("reason", "watch limit exceeded"))

	if !strings.Contains(buf.String(), `reason="watch limit exceeded"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	lvl.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, lvl))

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected info suppressed, got %q", buf.String())
	}
	logger.Error("emitted")
	if !strings.Contains(buf.String(), "ERROR") {
		t.Fatalf("expected error emitted, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should not be enabled")
	}
}

func TestFormatValueKinds(t *testing.T) {
	if got := formatValue(slog.DurationValue(2 * time.Second)); got != "2s" {
		t.Fatalf("duration formatting: %q", got)
	}
	if got := formatValue(slog.BoolValue(true)); got != "true" {
		t.Fatalf("bool formatting: %q", got)
	}
	if got := formatValue(slog.StringValue("")); got != `""` {
		t.Fatalf("empty string formatting: %q", got)
	}
}

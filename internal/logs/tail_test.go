package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"taskqueue/internal/logs"
)

func writeLog(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskqueued.log")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\nfour\n")

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(res.Lines) != 2 || res.Lines[0] != "three" || res.Lines[1] != "four" {
		t.Fatalf("unexpected lines: %v", res.Lines)
	}
	if res.Offset <= 0 {
		t.Fatalf("expected end offset, got %d", res.Offset)
	}
}

func TestTailMissingFile(t *testing.T) {
	res, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.TailOptions{Offset: -1, Limit: 10})
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if len(res.Lines) != 0 || res.Offset != 0 {
		t.Fatalf("unexpected result: %#v", res)
	}
}

func TestTailResumeFromOffset(t *testing.T) {
	path := writeLog(t, "one\ntwo\n")

	first, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0, Limit: 0})
	if err != nil {
		t.Fatalf("first Tail failed: %v", err)
	}
	if len(first.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", first.Lines)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("three\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	second, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: first.Offset})
	if err != nil {
		t.Fatalf("second Tail failed: %v", err)
	}
	if len(second.Lines) != 1 || second.Lines[0] != "three" {
		t.Fatalf("unexpected resumed lines: %v", second.Lines)
	}
}

func TestTailPartialLineHeldBack(t *testing.T) {
	path := writeLog(t, "full\npartial")

	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(res.Lines) != 1 || res.Lines[0] != "full" {
		t.Fatalf("partial line should be withheld: %v", res.Lines)
	}
	if res.Offset != int64(len("full\n")) {
		t.Fatalf("offset should stop before partial line, got %d", res.Offset)
	}
}

func TestTailTruncationRestartsFromZero(t *testing.T) {
	path := writeLog(t, "aaaaaaaaaaaaaaaaaaaa\n")
	res, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: 0})
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	after, err := logs.Tail(context.Background(), path, logs.TailOptions{Offset: res.Offset})
	if err != nil {
		t.Fatalf("Tail after truncation failed: %v", err)
	}
	if len(after.Lines) != 1 || after.Lines[0] != "new" {
		t.Fatalf("expected restart from zero, got %v", after.Lines)
	}
}

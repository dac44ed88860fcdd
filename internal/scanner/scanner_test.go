package scanner_test

import (
	"os"
	"path/filepath"
	"testing"

	"taskqueue/internal/scanner"
)

func seedFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("body"), 0o644); err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
}

func TestListCandidatesSortsByFilename(t *testing.T) {
	dir := t.TempDir()
	seedFile(t, dir, "task-20260102-090000-later.md")
	seedFile(t, dir, "task-20260101-090000-earlier.md")
	seedFile(t, dir, "task-20260101-100000-middle.md")

	docs, err := scanner.ListCandidates(dir, "main")
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	got := make([]string, len(docs))
	for i, d := range docs {
		got[i] = d.ID
	}
	want := []string{
		"task-20260101-090000-earlier",
		"task-20260101-100000-middle",
		"task-20260102-090000-later",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d docs, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}

func TestListCandidatesSkipsNonTasks(t *testing.T) {
	dir := t.TempDir()
	seedFile(t, dir, "task-20260101-090000-ok.md")
	seedFile(t, dir, ".task-20260101-090000-ok.lock")
	seedFile(t, dir, "notes.md")
	seedFile(t, dir, "task-2026-bad.md")
	seedFile(t, dir, "task-20260101-090000-ok.txt")
	if err := os.Mkdir(filepath.Join(dir, "task-20260101-090001-dir.md"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	docs, err := scanner.ListCandidates(dir, "main")
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "task-20260101-090000-ok" {
		t.Fatalf("expected single candidate, got %#v", docs)
	}
	if docs[0].SourceID != "main" {
		t.Fatalf("expected source id carried through, got %q", docs[0].SourceID)
	}
	if docs[0].Size != int64(len("body")) {
		t.Fatalf("expected size recorded, got %d", docs[0].Size)
	}
}

func TestListCandidatesMissingDir(t *testing.T) {
	docs, err := scanner.ListCandidates(filepath.Join(t.TempDir(), "absent"), "main")
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected empty result, got %#v", docs)
	}
}

func TestLookup(t *testing.T) {
	dir := t.TempDir()
	seedFile(t, dir, "task-20260101-090000-ok.md")

	doc, ok, err := scanner.Lookup(dir, "main", "task-20260101-090000-ok")
	if err != nil || !ok {
		t.Fatalf("Lookup failed: ok=%v err=%v", ok, err)
	}
	if doc.Name() != "task-20260101-090000-ok.md" {
		t.Fatalf("unexpected document name %q", doc.Name())
	}

	_, ok, err = scanner.Lookup(dir, "main", "task-20260101-090001-gone")
	if err != nil || ok {
		t.Fatalf("expected absent lookup to return ok=false, got ok=%v err=%v", ok, err)
	}

	if _, _, err := scanner.Lookup(dir, "main", "not-a-task"); err == nil {
		t.Fatal("expected error for invalid id")
	}
}

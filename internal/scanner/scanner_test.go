package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func drain(t *testing.T, ev *Events) []Event {
	t.Helper()
	var out []Event
	for {
		e, ok := ev.Next()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func TestScanEmitsAddedOnFirstScan(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.pdf"), "one")
	mustWriteFile(t, filepath.Join(root, "sub", "b.pdf"), "two")

	dbPath := filepath.Join(t.TempDir(), "scan.db")
	s, err := Open(dbPath, map[string]string{"docs": root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ev, err := s.Scan(nil)
	if err != nil {
		t.Fatal(err)
	}
	events := drain(t, ev)

	var added int
	for _, e := range events {
		if e.Kind == Added {
			added++
		}
	}
	if added < 2 {
		t.Fatalf("expected at least 2 Added events, got %d (total %d)", added, len(events))
	}
}

func TestScanIsQuietOnUnchangedRescan(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "a.pdf"), "one")

	dbPath := filepath.Join(t.TempDir(), "scan.db")
	s, err := Open(dbPath, map[string]string{"docs": root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	ev, err := s.Scan(nil)
	if err != nil {
		t.Fatal(err)
	}
	drain(t, ev)

	ev2, err := s.Scan(nil)
	if err != nil {
		t.Fatal(err)
	}
	if events := drain(t, ev2); len(events) != 0 {
		t.Fatalf("expected no events on unchanged rescan, got %d", len(events))
	}
}

func TestScanEmitsRemovedForDeletedFile(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a.pdf")
	mustWriteFile(t, target, "one")

	dbPath := filepath.Join(t.TempDir(), "scan.db")
	s, err := Open(dbPath, map[string]string{"docs": root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	drain(t, mustScan(t, s))

	if err := os.Remove(target); err != nil {
		t.Fatal(err)
	}

	events := drain(t, mustScan(t, s))
	var removed int
	for _, e := range events {
		if e.Kind == Removed && e.Path == "/a.pdf" {
			removed++
		}
	}
	if removed != 1 {
		t.Fatalf("expected exactly 1 Removed event for /a.pdf, got %d (total %d)", removed, len(events))
	}
}

func TestScanRespectsExcludes(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "keep.pdf"), "one")
	mustWriteFile(t, filepath.Join(root, "skip", "ignored.pdf"), "two")

	dbPath := filepath.Join(t.TempDir(), "scan.db")
	s, err := Open(dbPath, map[string]string{"docs": root}, []string{"skip/**"})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	events := drain(t, mustScan(t, s))
	for _, e := range events {
		if e.Path == "/skip/ignored.pdf" {
			t.Fatalf("excluded path was scanned: %+v", e)
		}
	}
}

func mustScan(t *testing.T, s *Scanner) *Events {
	t.Helper()
	ev, err := s.Scan(nil)
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

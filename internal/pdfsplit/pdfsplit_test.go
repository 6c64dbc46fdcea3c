package pdfsplit

import (
	"path/filepath"
	"testing"
)

func openTestSplitter(t *testing.T) *Splitter {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "pages.db"), filepath.Join(dir, "pages"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPageHashesIsEmptyForUnknownPDF(t *testing.T) {
	s := openTestSplitter(t)
	hashes, err := s.PageHashes("unknown-hash")
	if err != nil {
		t.Fatalf("PageHashes: %v", err)
	}
	if len(hashes) != 0 {
		t.Fatalf("expected no hashes, got %v", hashes)
	}
}

func TestPagePathIsWithinPagesDir(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "pages.db"), filepath.Join(dir, "pages"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	got := s.PagePath("abc123")
	want := filepath.Join(dir, "pages", "abc123.pdf")
	if got != want {
		t.Fatalf("PagePath = %q, want %q", got, want)
	}
}

func TestRemoveFileOnUntrackedPDFIsANoOp(t *testing.T) {
	s := openTestSplitter(t)
	update, err := s.RemoveFile("never-added")
	if err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	if len(update.Removed) != 0 {
		t.Fatalf("expected no removed hashes, got %v", update.Removed)
	}
}

func TestPDFsContainingPageIsEmptyForUnknownHash(t *testing.T) {
	s := openTestSplitter(t)
	refs, err := s.PDFsContainingPage("unknown-page-hash")
	if err != nil {
		t.Fatalf("PDFsContainingPage: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no refs, got %v", refs)
	}
}

package hashutil

import (
	"crypto/sha512"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func TestBytesHashMatchesRawSHA512(t *testing.T) {
	data := []byte("hello world")
	want := base64.RawURLEncoding.EncodeToString(func() []byte { h := sha512.Sum512(data); return h[:] }())
	if got := BytesHash(data); got != want {
		t.Fatalf("BytesHash = %q, want %q", got, want)
	}
}

func TestFileHashMatchesBytesHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	data := []byte("the quick brown fox jumps over the lazy dog")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := FileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := BytesHash(data); got != want {
		t.Fatalf("FileHash = %q, want %q", got, want)
	}
}

func TestFileHashIsDeterministicAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	if err := os.WriteFile(path, []byte("repeat me"), 0o644); err != nil {
		t.Fatal(err)
	}

	first, err := FileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	second, err := FileHash(path)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("expected stable hash, got %q then %q", first, second)
	}
}

func TestFileHashErrorsOnMissingFile(t *testing.T) {
	if _, err := FileHash(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

package manifest

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadJSONFromDirectory(t *testing.T) {
	dir := t.TempDir()
	data := `{"embedding": "all-MiniLM-L6-v2", "sources": {"docs": "/srv/docs"}, "excludes": ["**/*.tmp"]}`
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	m, resolvedDir, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Embedding != "all-MiniLM-L6-v2" {
		t.Fatalf("Embedding = %q", m.Embedding)
	}
	if m.Sources["docs"] != "/srv/docs" {
		t.Fatalf("Sources = %v", m.Sources)
	}
	if len(m.Excludes) != 1 || m.Excludes[0] != "**/*.tmp" {
		t.Fatalf("Excludes = %v", m.Excludes)
	}
	abs, _ := filepath.Abs(dir)
	if resolvedDir != abs {
		t.Fatalf("resolvedDir = %q, want %q", resolvedDir, abs)
	}
}

func TestLoadYAMLDirectly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.yaml")
	data := "embedding: test-model\nsources:\n  docs: /srv/docs\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	m, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Embedding != "test-model" {
		t.Fatalf("Embedding = %q", m.Embedding)
	}
}

func TestLoadRejectsMissingEmbedding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	if err := os.WriteFile(path, []byte(`{"sources": {}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(path); err == nil {
		t.Fatal("expected an error for missing embedding field")
	}
}

func TestLoadErrorsWhenNoManifestFoundInDirectory(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Load(dir); err == nil {
		t.Fatal("expected an error when no package.json/.yaml/.yml exists")
	}
}

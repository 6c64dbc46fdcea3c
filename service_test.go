// Copyright 2019 PaperCut Software International Pty Ltd. All rights reserved.

package docindex

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenCreatesWorkspaceLayout(t *testing.T) {
	dir := t.TempDir()
	workspace := filepath.Join(dir, "workspace")

	svc, err := Open(workspace, map[string]string{}, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer svc.Close()

	for _, rel := range []string{
		"scanner.sqlite3",
		filepath.Join("parser", "pdf_cache", "pages.db"),
		filepath.Join("parser", "pdf_cache", "pages"),
		"index_fts5.sqlite3",
		filepath.Join("indexes", "index.sqlite3"),
		"vector_db",
	} {
		if _, err := os.Stat(filepath.Join(workspace, rel)); err != nil {
			t.Errorf("expected %s to exist: %v", rel, err)
		}
	}
}

func TestPageContentUnknownHash(t *testing.T) {
	dir := t.TempDir()
	svc, err := Open(filepath.Join(dir, "workspace"), map[string]string{}, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer svc.Close()

	if _, err := svc.PageContent("does-not-exist", 0); err == nil {
		t.Fatal("expected an error for an unknown PDF hash")
	}
}

func TestPurgeRemovesWorkspace(t *testing.T) {
	dir := t.TempDir()
	workspace := filepath.Join(dir, "workspace")

	svc, err := Open(workspace, map[string]string{}, nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := Purge(workspace); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := os.Stat(workspace); !os.IsNotExist(err) {
		t.Fatalf("expected workspace to be removed, stat err = %v", err)
	}
}

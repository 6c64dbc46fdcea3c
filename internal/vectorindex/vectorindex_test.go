package vectorindex

import (
	"context"
	"hash/fnv"
	"path/filepath"
	"testing"

	"github.com/paperindex/docindex/internal/segment"
)

// stubEmbedder maps each distinct input string to a fixed point on the unit
// hypercube derived from its tokens, so unrelated strings land far apart
// without depending on a real embedding-model runtime.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	const dims = 8
	vec := make([]float32, dims)
	for _, tok := range segment.Tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32())%dims] += 1
	}
	return vec, nil
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "vector_db"), stubEmbedder{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return db
}

func TestSaveThenQueryGroupsSegmentsByNode(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	segs := segment.Split("alpha beta gamma. delta epsilon zeta.")
	if err := db.Save(ctx, "doc-1", segs, map[string]string{"type": "pdf.page"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	nodes, err := db.Query(ctx, "alpha beta gamma", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "doc-1" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
	if nodes[0].Metadata["type"] != "pdf.page" {
		t.Fatalf("metadata not preserved: %+v", nodes[0].Metadata)
	}
	if len(nodes[0].Segments) != len(segs) {
		t.Fatalf("expected %d grouped segments, got %d", len(segs), len(nodes[0].Segments))
	}
}

func TestQueryOnEmptyCollectionReturnsNil(t *testing.T) {
	db := openTestDB(t)
	nodes, err := db.Query(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if nodes != nil {
		t.Fatalf("expected nil, got %+v", nodes)
	}
}

func TestRemoveDropsNodeFromFutureQueries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	segs := segment.Split("removable vector content")
	if err := db.Save(ctx, "doc-1", segs, map[string]string{"type": "pdf.page"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := db.Remove(ctx, "doc-1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	nodes, err := db.Query(ctx, "removable vector content", 5)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	for _, n := range nodes {
		if n.ID == "doc-1" {
			t.Fatalf("expected doc-1 to be removed, still present: %+v", nodes)
		}
	}
}

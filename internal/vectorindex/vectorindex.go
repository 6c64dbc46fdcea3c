// Package vectorindex implements the semantic half of the hybrid index: a
// persistent embedded vector store (chromem-go) holding one entry per
// segment, grouped back into per-node results at query time, per §4.8.
package vectorindex

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/paperindex/docindex/internal/indexnode"
	"github.com/paperindex/docindex/internal/segment"
)

const (
	collectionName = "nodes"
	removeChunk    = 25
)

// Embedder is the opaque "embed one string" collaborator. The
// concrete embedding-model runtime is out of scope for this module; only
// this narrow contract is depended on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DB is the vector backend over one persistent chromem-go directory.
type DB struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	bound      bool
}

// Open opens (creating if necessary) the persistent vector store directory
// at path. The embedding function is lazily bound to embedder on first use,
// matching the design's "lazily loaded on first use" requirement.
func Open(path string, embedder Embedder) (*DB, error) {
	cdb, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: open %q: %w", path, err)
	}
	d := &DB{db: cdb, embedder: embedder}
	return d, nil
}

func (d *DB) ensureCollection() error {
	if d.collection != nil {
		return nil
	}
	col, err := d.db.GetOrCreateCollection(collectionName, nil, d.embeddingFunc)
	if err != nil {
		return err
	}
	d.collection = col
	return nil
}

func (d *DB) embeddingFunc(ctx context.Context, text string) ([]float32, error) {
	return d.embedder.Embed(ctx, text)
}

// Save embeds each of nodeID's segments and stores them under composite ids
// "<node-id>/<segment-index>", with segment offsets folded into the
// per-entry metadata alongside the caller's metadata.
func (d *DB) Save(ctx context.Context, nodeID string, segments []segment.Segment, metadata map[string]string) error {
	if len(segments) == 0 || d.embedder == nil {
		return nil
	}
	if err := d.ensureCollection(); err != nil {
		return err
	}

	docs := make([]chromem.Document, 0, len(segments))
	for i, s := range segments {
		meta := make(map[string]string, len(metadata)+2)
		for k, v := range metadata {
			meta[k] = v
		}
		meta["seg_start"] = strconv.Itoa(s.Start)
		meta["seg_end"] = strconv.Itoa(s.End)

		docs = append(docs, chromem.Document{
			ID:       fmt.Sprintf("%s/%d", nodeID, i),
			Content:  s.Text,
			Metadata: meta,
		})
	}
	return d.collection.AddDocuments(ctx, docs, 1)
}

// Remove deletes all segment entries for nodeID, walking ids in chunks of
// 25 until an empty probe confirms no more remain.
func (d *DB) Remove(ctx context.Context, nodeID string) error {
	if err := d.ensureCollection(); err != nil {
		return err
	}
	offset := 0
	for {
		ids := make([]string, removeChunk)
		for i := range ids {
			ids[i] = fmt.Sprintf("%s/%d", nodeID, offset+i)
		}
		if err := d.collection.Delete(ctx, nil, nil, ids...); err != nil {
			return err
		}
		offset += removeChunk
		probeID := fmt.Sprintf("%s/%d", nodeID, offset)
		if d.collection.GetByID(ctx, probeID).ID == "" {
			break
		}
	}
	return nil
}

var idStemPattern = regexp.MustCompile(`^(.*)/(\d+)$`)

// Query embeds queryText and performs a nearest-neighbor lookup, grouping
// raw segment-level hits back into one indexnode.Node per distinct node id
// (the part of the composite id before the trailing "/<segment-index>"),
// adopting the minimum distance across the node's segments and returning
// nodes sorted ascending by distance.
func (d *DB) Query(ctx context.Context, queryText string, resultsLimit int) ([]indexnode.Node, error) {
	if err := d.ensureCollection(); err != nil {
		return nil, err
	}
	n := d.collection.Count()
	if n == 0 || resultsLimit <= 0 || d.embedder == nil {
		return nil, nil
	}
	if resultsLimit > n {
		resultsLimit = n
	}

	results, err := d.collection.Query(ctx, queryText, resultsLimit, nil, nil)
	if err != nil {
		return nil, err
	}

	type group struct {
		metadata map[string]string
		segments []indexnode.Span
		minDist  float64
	}
	groups := map[string]*group{}
	var order []string

	for _, r := range results {
		m := idStemPattern.FindStringSubmatch(r.ID)
		if m == nil {
			continue
		}
		nodeID := m[1]
		metadata := map[string]string{}
		var start, end int
		for k, v := range r.Metadata {
			switch k {
			case "seg_start":
				start, _ = strconv.Atoi(v)
			case "seg_end":
				end, _ = strconv.Atoi(v)
			default:
				metadata[k] = v
			}
		}
		distance := 1 - float64(r.Similarity)

		g, ok := groups[nodeID]
		if !ok {
			g = &group{metadata: metadata, minDist: distance}
			groups[nodeID] = g
			order = append(order, nodeID)
		}
		g.segments = append(g.segments, indexnode.Span{Start: start, End: end})
		if distance < g.minDist {
			g.minDist = distance
		}
	}

	nodes := make([]indexnode.Node, 0, len(order))
	for _, id := range order {
		g := groups[id]
		nodes = append(nodes, indexnode.Node{
			ID:       id,
			Metadata: g.metadata,
			Distance: g.minDist,
			Segments: g.segments,
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Distance < nodes[j].Distance })
	return nodes, nil
}

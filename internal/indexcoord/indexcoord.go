// Package indexcoord is the index coordinator: it turns scanner events
// into PDF-hash and page-hash reference-counted lifecycle transitions,
// driving pdfsplit/pdfextract on hash introduction/eviction and keeping
// the FTS and vector backends in lock-step for every node, per §4.9/§4.10.
package indexcoord

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/paperindex/docindex/internal/ftsindex"
	"github.com/paperindex/docindex/internal/hashutil"
	"github.com/paperindex/docindex/internal/indexnode"
	"github.com/paperindex/docindex/internal/pdfextract"
	"github.com/paperindex/docindex/internal/pdfsplit"
	"github.com/paperindex/docindex/internal/progress"
	"github.com/paperindex/docindex/internal/query"
	"github.com/paperindex/docindex/internal/scanner"
	"github.com/paperindex/docindex/internal/segment"
	"github.com/paperindex/docindex/internal/store"
	"github.com/paperindex/docindex/internal/vectorindex"
)

// Coordinator owns the scope->file->hash table and wires scan events
// through to the split/extract pipeline and both index backends.
type Coordinator struct {
	pool      *store.Pool
	sources   map[string]string
	splitter  *pdfsplit.Splitter
	extractor *pdfextract.Extractor
	fts       *ftsindex.DB
	vec       *vectorindex.DB
	resolver  *query.Resolver
}

// Open opens (creating if necessary) the coordinator database at dbPath.
func Open(
	dbPath string,
	sources map[string]string,
	splitter *pdfsplit.Splitter,
	extractor *pdfextract.Extractor,
	fts *ftsindex.DB,
	vec *vectorindex.DB,
) (*Coordinator, error) {
	pool, err := store.Open(dbPath, createSchema)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		pool:      pool,
		sources:   sources,
		splitter:  splitter,
		extractor: extractor,
		fts:       fts,
		vec:       vec,
		resolver:  query.New(fts, vec),
	}, nil
}

func createSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE files (
			id INTEGER PRIMARY KEY,
			scope TEXT NOT NULL,
			path TEXT NOT NULL,
			hash TEXT NOT NULL
		)`,
		`CREATE INDEX idx_files_hash ON files (hash)`,
		`CREATE UNIQUE INDEX idx_files_scope_path ON files (scope, path)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database. It does not close the splitter,
// extractor or index backends passed to Open, which the caller owns.
func (c *Coordinator) Close() error {
	return c.pool.Close()
}

// Freeze severs writes to the file table for an emergency shutdown. It does
// not freeze the splitter or FTS backend; callers freeze those separately.
func (c *Coordinator) Freeze() {
	c.pool.Freeze()
}

// Query resolves queryText against the hybrid index.
func (c *Coordinator) Query(ctx context.Context, queryText string, resultsLimit int) ([]indexnode.Node, error) {
	return c.resolver.Query(ctx, queryText, resultsLimit)
}

// FilePaths returns the absolute paths of every currently-tracked file
// whose content hash is fileHash.
func (c *Coordinator) FilePaths(fileHash string) ([]string, error) {
	rows, err := c.pool.DB().Query(`SELECT scope, path FROM files WHERE hash = ?`, fileHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var scope, path string
		if err := rows.Scan(&scope, &path); err != nil {
			return nil, err
		}
		root, ok := c.sources[scope]
		if !ok {
			continue
		}
		abs, err := filepath.Abs(filepath.Join(root, "."+path))
		if err != nil {
			return nil, err
		}
		paths = append(paths, abs)
	}
	return paths, rows.Err()
}

type fileRow struct {
	id   int64
	hash string
}

// HandleEvent applies one scanner event to the file table and, on every
// resulting hash introduction or eviction, drives the split/extract/index
// pipeline. listener may be nil.
func (c *Coordinator) HandleEvent(ctx context.Context, ev scanner.Event, listener progress.Listener) error {
	if listener == nil {
		listener = progress.NopListener{}
	}
	path, ok := c.filterAndAbsPath(ev)
	if !ok {
		return nil
	}

	origin, err := c.selectFile(ev.Scope, ev.Path)
	if err != nil {
		return err
	}

	var newHash string
	didUpdate := false

	if ev.Kind != scanner.Removed {
		listener.StartHandleFile(ev.Scope, ev.Path)
		newHash, err = hashutil.FileHash(path)
		if err != nil {
			return err
		}
		if origin == nil {
			if err := c.insertFile(ev.Scope, ev.Path, newHash); err != nil {
				return err
			}
			didUpdate = true
		} else if newHash != origin.hash {
			if err := c.updateFileHash(origin.id, newHash); err != nil {
				return err
			}
			didUpdate = true
		}
	} else if origin != nil {
		if err := c.deleteFile(origin.id); err != nil {
			return err
		}
		didUpdate = true
	}

	if !didUpdate {
		return nil
	}

	if newHash != "" {
		n, err := c.countFilesWithHash(newHash)
		if err != nil {
			return err
		}
		if n == 1 {
			if err := c.handleFoundPDFHash(ctx, newHash, path, listener); err != nil {
				return err
			}
		}
	}

	if origin != nil {
		n, err := c.countFilesWithHash(origin.hash)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := c.handleLostPDFHash(ctx, origin.hash); err != nil {
				return err
			}
		}
	}

	listener.CompleteHandleFile(ev.Scope, ev.Path)
	return nil
}

func (c *Coordinator) filterAndAbsPath(ev scanner.Event) (string, bool) {
	if ev.Target == scanner.Directory {
		return "", false
	}
	root, ok := c.sources[ev.Scope]
	if !ok {
		return "", false
	}
	if !strings.EqualFold(filepath.Ext(ev.Path), ".pdf") {
		return "", false
	}
	abs, err := filepath.Abs(filepath.Join(root, "."+ev.Path))
	if err != nil {
		return "", false
	}
	return abs, true
}

func (c *Coordinator) selectFile(scope, path string) (*fileRow, error) {
	var r fileRow
	err := c.pool.DB().QueryRow(
		`SELECT id, hash FROM files WHERE scope = ? AND path = ?`, scope, path,
	).Scan(&r.id, &r.hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Coordinator) insertFile(scope, path, hash string) error {
	return c.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO files (scope, path, hash) VALUES (?, ?, ?)`, scope, path, hash)
		return err
	})
}

func (c *Coordinator) updateFileHash(id int64, hash string) error {
	return c.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE files SET hash = ? WHERE id = ?`, hash, id)
		return err
	})
}

func (c *Coordinator) deleteFile(id int64) error {
	return c.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM files WHERE id = ?`, id)
		return err
	})
}

func (c *Coordinator) countFilesWithHash(hash string) (int, error) {
	var n int
	err := c.pool.DB().QueryRow(`SELECT COUNT(*) FROM files WHERE hash = ?`, hash).Scan(&n)
	return n, err
}

// handleFoundPDFHash runs when pdfHash transitions from 0 to 1 referencing
// files: it splits the PDF into cached pages, indexes the PDF's own
// metadata node, and recurses into every page hash the split newly
// introduced.
func (c *Coordinator) handleFoundPDFHash(ctx context.Context, pdfHash, path string, listener progress.Listener) error {
	update, err := c.splitter.AddFile(pdfHash, path)
	if err != nil {
		return err
	}

	meta := pdfDocument(path, len(update.PageHashes))
	if err := c.saveNode(ctx, indexnode.PDFNodeID(pdfHash), indexnode.TypePDF, meta, nil); err != nil {
		return err
	}

	for _, pageHash := range update.Added {
		if err := c.handleFoundPageHash(ctx, pageHash); err != nil {
			return err
		}
	}
	for _, pageHash := range update.Removed {
		if err := c.handleLostPageHash(ctx, pageHash); err != nil {
			return err
		}
	}

	total := len(update.PageHashes)
	for i := range update.PageHashes {
		listener.CompleteHandlePdfPage(i, total)
		listener.CompleteIndexPdfPage(i, total)
	}
	return nil
}

// handleLostPDFHash runs when pdfHash transitions from 1 to 0 referencing
// files: its own metadata node is removed and every page hash the split
// had recorded is released, recursing into page eviction for any that
// drop to zero references.
func (c *Coordinator) handleLostPDFHash(ctx context.Context, pdfHash string) error {
	update, err := c.splitter.RemoveFile(pdfHash)
	if err != nil {
		return err
	}
	if err := c.removeNode(ctx, indexnode.PDFNodeID(pdfHash)); err != nil {
		return err
	}
	for _, pageHash := range update.Removed {
		if err := c.handleLostPageHash(ctx, pageHash); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) handleFoundPageHash(ctx context.Context, pageHash string) error {
	if err := c.extractor.ExtractPage(pageHash); err != nil {
		return err
	}
	snapshot, err := c.extractor.Snapshot(pageHash)
	if err != nil {
		return err
	}
	if err := c.saveNode(ctx, indexnode.PageNodeID(pageHash), indexnode.TypePage, snapshot, nil); err != nil {
		return err
	}

	annotations, err := c.extractor.Annotations(pageHash)
	if err != nil {
		return err
	}
	for i, a := range annotations {
		if a.Content != "" {
			id := indexnode.AnnoContentNodeID(pageHash, i)
			if err := c.saveNode(ctx, id, indexnode.TypeAnnoContent, a.Content, nil); err != nil {
				return err
			}
		}
		if a.ExtractedText != "" {
			id := indexnode.AnnoExtractedNodeID(pageHash, i)
			if err := c.saveNode(ctx, id, indexnode.TypeAnnoExtracted, a.ExtractedText, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Coordinator) handleLostPageHash(ctx context.Context, pageHash string) error {
	annotations, err := c.extractor.Annotations(pageHash)
	if err != nil {
		return err
	}
	for i := range annotations {
		if err := c.removeNode(ctx, indexnode.AnnoContentNodeID(pageHash, i)); err != nil {
			return err
		}
		if err := c.removeNode(ctx, indexnode.AnnoExtractedNodeID(pageHash, i)); err != nil {
			return err
		}
	}
	if err := c.removeNode(ctx, indexnode.PageNodeID(pageHash)); err != nil {
		return err
	}
	return c.extractor.RemovePage(pageHash)
}

func (c *Coordinator) saveNode(ctx context.Context, nodeID string, typ indexnode.Type, text string, extra map[string]string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	segments := segment.Split(text)
	metadata := make(map[string]string, len(extra)+1)
	for k, v := range extra {
		metadata[k] = v
	}
	metadata["type"] = string(typ)

	if err := c.fts.Save(nodeID, segments, metadata); err != nil {
		return err
	}
	return c.vec.Save(ctx, nodeID, segments, metadata)
}

func (c *Coordinator) removeNode(ctx context.Context, nodeID string) error {
	if err := c.fts.Remove(nodeID); err != nil {
		return err
	}
	return c.vec.Remove(ctx, nodeID)
}

// PagePDFFile is one (PDF path, page index within it) pair a page is
// reachable from.
type PagePDFFile struct {
	PDFPath   string
	PageIndex int
}

// HighlightSegment is a matched segment range within a page or annotation's
// content, together with the interior keyword sub-ranges located within it
// by substring search, per §4.10. Highlights are offsets relative to the
// segment's own Start, sorted by start.
type HighlightSegment struct {
	Start      int
	End        int
	Highlights []indexnode.Span
}

// PageAnnoQueryItem is one page's annotation that matched the query.
type PageAnnoQueryItem struct {
	Index    int
	Rank     float64
	Distance float64
	Content  string
	Segments []HighlightSegment
}

// PageQueryItem is one page that matched the query, aggregated with the
// PDFs it's reachable from and any of its own annotations that also
// matched.
type PageQueryItem struct {
	PDFFiles    []PagePDFFile
	Rank        float64
	Distance    float64
	Content     string
	Segments    []HighlightSegment
	Annotations []PageAnnoQueryItem
}

// Trim aggregates raw query nodes into one PageQueryItem per distinct page,
// folding any matching annotation-content nodes into their owning page's
// Annotations list. A page node whose page is no longer tracked (evicted
// between the query running and Trim running) still yields an item, with
// empty Content and no PDFFiles. An annotation node whose page didn't
// itself match the query is dropped (there is nowhere to attach it). keywords is the tokenized query text,
// used to locate highlight sub-ranges within each matched segment.
func (c *Coordinator) Trim(nodes []indexnode.Node, keywords []string) ([]PageQueryItem, error) {
	var items []PageQueryItem
	byPageHash := map[string]int{}

	for _, n := range nodes {
		switch n.Metadata["type"] {
		case string(indexnode.TypePage):
			pageHash := n.ID
			content, err := c.extractor.Snapshot(pageHash)
			if err != nil {
				return nil, err
			}
			refs, err := c.splitter.PDFsContainingPage(pageHash)
			if err != nil {
				return nil, err
			}

			item := PageQueryItem{
				Rank:     n.Rank,
				Distance: n.Distance,
				Content:  content,
				Segments: highlightSegments(content, n.Segments, keywords, n.Matching),
			}
			for _, ref := range refs {
				paths, err := c.FilePaths(ref.PDFHash)
				if err != nil {
					return nil, err
				}
				for _, p := range paths {
					item.PDFFiles = append(item.PDFFiles, PagePDFFile{PDFPath: p, PageIndex: ref.PageIndex})
				}
			}

			items = append(items, item)
			byPageHash[pageHash] = len(items) - 1

		case string(indexnode.TypeAnnoContent):
			pageHash, annoIndex, ok := indexnode.ParseAnnoNodeID(n.ID)
			if !ok {
				continue
			}
			itemIndex, ok := byPageHash[pageHash]
			if !ok {
				continue
			}
			annotations, err := c.extractor.Annotations(pageHash)
			if err != nil {
				return nil, err
			}
			if annoIndex < 0 || annoIndex >= len(annotations) || annotations[annoIndex].Content == "" {
				continue
			}
			content := annotations[annoIndex].Content
			item := &items[itemIndex]
			item.Annotations = append(item.Annotations, PageAnnoQueryItem{
				Index:    annoIndex,
				Rank:     n.Rank,
				Distance: n.Distance,
				Content:  content,
				Segments: highlightSegments(content, n.Segments, keywords, n.Matching),
			})
		}
	}

	for i := range items {
		sort.Slice(items[i].Annotations, func(a, b int) bool {
			return items[i].Annotations[a].Index < items[i].Annotations[b].Index
		})
	}
	return items, nil
}

// highlightSegments locates, for each of segments, every keyword as a
// case-insensitive substring within content[start:end), in offsets
// relative to the segment's own start, per §4.10. For Matched/
// MatchedPartial segments with no keyword hit are discarded, since there
// is nothing to show the reader; for Similarity they're kept with no
// highlights so the semantic hit is still visible.
func highlightSegments(content string, segments []indexnode.Span, keywords []string, matching indexnode.Matching) []HighlightSegment {
	var out []HighlightSegment
	for _, seg := range segments {
		highlights := locateHighlights(content, seg, keywords)
		if len(highlights) == 0 && matching != indexnode.Similarity {
			continue
		}
		out = append(out, HighlightSegment{Start: seg.Start, End: seg.End, Highlights: highlights})
	}
	return out
}

// locateHighlights returns every keyword's occurrences within
// content[seg.Start:seg.End), as offsets relative to seg.Start, sorted by
// start. Matching is case-insensitive and rune-based so multi-byte text
// is sliced correctly.
func locateHighlights(content string, seg indexnode.Span, keywords []string) []indexnode.Span {
	runes := []rune(content)
	start, end := seg.Start, seg.End
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end {
		return nil
	}
	sub := []rune(strings.ToLower(string(runes[start:end])))

	var highlights []indexnode.Span
	for _, kw := range keywords {
		needle := []rune(strings.ToLower(kw))
		if len(needle) == 0 {
			continue
		}
		for i := 0; i+len(needle) <= len(sub); i++ {
			if runesEqual(sub[i:i+len(needle)], needle) {
				highlights = append(highlights, indexnode.Span{Start: i, End: i + len(needle)})
			}
		}
	}
	sort.Slice(highlights, func(i, j int) bool { return highlights[i].Start < highlights[j].Start })
	return highlights
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// pdfDocument renders a PDF's basic facts as one line per field, sorted by
// key, the same minimal "document" the whole-PDF index node carries.
func pdfDocument(path string, numPages int) string {
	fields := map[string]string{
		"name":  filepath.Base(path),
		"pages": strconv.Itoa(numPages),
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, fields[k])
	}
	return b.String()
}

// Copyright 2019 PaperCut Software International Pty Ltd. All rights reserved.

// Package docindex ties the scanner, split/extract pipeline and hybrid
// index together into the single entry point a caller opens a workspace
// directory with: Service.
package docindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paperindex/docindex/internal/ftsindex"
	"github.com/paperindex/docindex/internal/indexcoord"
	"github.com/paperindex/docindex/internal/pdfextract"
	"github.com/paperindex/docindex/internal/pdfsplit"
	"github.com/paperindex/docindex/internal/progress"
	"github.com/paperindex/docindex/internal/scanner"
	"github.com/paperindex/docindex/internal/scanpool"
	"github.com/paperindex/docindex/internal/segment"
	"github.com/paperindex/docindex/internal/vectorindex"
)

// DefaultResultsLimit is used by Query when the caller passes a
// non-positive limit.
const DefaultResultsLimit = 10

// defaultScanWorkers is the number of goroutines a ScanJob runs events
// through concurrently.
const defaultScanWorkers = 4

// Service owns one workspace: the scan journal, the page split/extract
// cache, and the hybrid FTS + vector index, wired together by a single
// indexcoord.Coordinator.
type Service struct {
	sources map[string]string

	scanner   *scanner.Scanner
	splitter  *pdfsplit.Splitter
	extractor *pdfextract.Extractor
	fts       *ftsindex.DB
	vec       *vectorindex.DB
	coord     *indexcoord.Coordinator
}

// Open creates (if necessary) the workspace directory tree rooted at
// workspaceDir and opens every backing store inside it:
//
//	workspaceDir/scanner.sqlite3          filesystem scan journal
//	workspaceDir/parser/pdf_cache/pages.db    page hash reference counts
//	workspaceDir/parser/pdf_cache/pages/       cached single-page PDFs + derived text/annotation artifacts
//	workspaceDir/index_fts5.sqlite3       lexical index
//	workspaceDir/indexes/index.sqlite3    scope/path -> hash table
//	workspaceDir/vector_db/                persistent embedded vector store
//
// sources maps a scope name to the absolute directory it scans; excludes
// are doublestar glob patterns relative to each source root. embedder
// backs the vector store and may be nil if the caller only wants lexical
// search (Query then returns no Similarity-tier results).
func Open(workspaceDir string, sources map[string]string, excludes []string, embedder vectorindex.Embedder) (*Service, error) {
	abs, err := filepath.Abs(workspaceDir)
	if err != nil {
		return nil, err
	}
	pagesDir := filepath.Join(abs, "parser", "pdf_cache", "pages")
	indexesDir := filepath.Join(abs, "indexes")
	vectorDir := filepath.Join(abs, "vector_db")
	for _, dir := range []string{abs, indexesDir, vectorDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	sc, err := scanner.Open(filepath.Join(abs, "scanner.sqlite3"), sources, excludes)
	if err != nil {
		return nil, fmt.Errorf("docindex: open scanner: %w", err)
	}
	splitter, err := pdfsplit.Open(filepath.Join(abs, "parser", "pdf_cache", "pages.db"), pagesDir)
	if err != nil {
		sc.Close()
		return nil, fmt.Errorf("docindex: open splitter: %w", err)
	}
	extractor := pdfextract.New(pagesDir)

	fts, err := ftsindex.Open(filepath.Join(abs, "index_fts5.sqlite3"))
	if err != nil {
		sc.Close()
		splitter.Close()
		return nil, fmt.Errorf("docindex: open fts index: %w", err)
	}
	vec, err := vectorindex.Open(vectorDir, embedder)
	if err != nil {
		sc.Close()
		splitter.Close()
		fts.Close()
		return nil, fmt.Errorf("docindex: open vector index: %w", err)
	}

	coord, err := indexcoord.Open(filepath.Join(indexesDir, "index.sqlite3"), sources, splitter, extractor, fts, vec)
	if err != nil {
		sc.Close()
		splitter.Close()
		fts.Close()
		return nil, fmt.Errorf("docindex: open coordinator: %w", err)
	}

	return &Service{
		sources:   sources,
		scanner:   sc,
		splitter:  splitter,
		extractor: extractor,
		fts:       fts,
		vec:       vec,
		coord:     coord,
	}, nil
}

// Close closes every backing store. It does not delete the workspace
// directory; callers that want a full purge remove it themselves once
// Close has returned (see Purge).
func (s *Service) Close() error {
	var first error
	for _, c := range []func() error{s.coord.Close, s.fts.Close, s.splitter.Close, s.scanner.Close} {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// FreezeDatabase severs writes across every SQLite-backed store, satisfying
// signalctl.Freezer for the forced-shutdown path. It does not touch the
// vector store, which chromem-go flushes to disk per write and has no
// comparable freeze concept.
func (s *Service) FreezeDatabase() error {
	s.scanner.Freeze()
	s.splitter.Freeze()
	s.fts.Freeze()
	s.coord.Freeze()
	return nil
}

// Purge removes the workspace directory workspaceDir together with
// everything under it. Callers must Close the Service first.
func Purge(workspaceDir string) error {
	abs, err := filepath.Abs(workspaceDir)
	if err != nil {
		return err
	}
	return os.RemoveAll(abs)
}

// QueryResult is one Query call's response: the aggregated page hits plus
// the keyword list the caller's UI highlights matches against.
type QueryResult struct {
	Items    []indexcoord.PageQueryItem
	Keywords []string
}

// Query resolves text against the hybrid index and aggregates the matching
// nodes back into per-page results. A non-positive resultsLimit is
// replaced with DefaultResultsLimit.
func (s *Service) Query(ctx context.Context, text string, resultsLimit int) (QueryResult, error) {
	if resultsLimit <= 0 {
		resultsLimit = DefaultResultsLimit
	}
	keywords := segment.ToKeywords(text)
	nodes, err := s.coord.Query(ctx, text, resultsLimit)
	if err != nil {
		return QueryResult{}, err
	}
	items, err := s.coord.Trim(nodes, keywords)
	if err != nil {
		return QueryResult{}, err
	}
	return QueryResult{Items: items, Keywords: keywords}, nil
}

// PageContent returns the plain-text snapshot of one PDF's page, looked up
// by the PDF's whole-file hash and zero-based page index.
func (s *Service) PageContent(pdfHash string, pageIndex int) (string, error) {
	pageHashes, err := s.splitter.PageHashes(pdfHash)
	if err != nil {
		return "", err
	}
	if pageIndex < 0 || pageIndex >= len(pageHashes) {
		return "", fmt.Errorf("docindex: page %d out of range for %s (%d pages)", pageIndex, pdfHash, len(pageHashes))
	}
	return s.extractor.Snapshot(pageHashes[pageIndex])
}

// ScanJob starts a cooperatively-cancellable scan across every configured
// source, running events through a worker pool of defaultScanWorkers
// goroutines. listener may be nil. Unlike the per-worker service instance
// the design this is modeled on requires (CPython's sqlite3 module is
// bound to the thread that opened the connection), Go's database/sql pool
// already serializes access safely, so every worker shares this Service's
// single Coordinator.
func (s *Service) ScanJob(ctx context.Context, maxWorkers int, listener progress.Listener) *ScanJob {
	if maxWorkers <= 0 {
		maxWorkers = defaultScanWorkers
	}
	if listener == nil {
		listener = progress.NopListener{}
	}
	job := &ScanJob{service: s, listener: listener, ctx: ctx}
	job.pool = scanpool.New(maxWorkers, func(ev scanner.Event, _ int) error {
		return s.coord.HandleEvent(job.ctx, ev, job.listener)
	})
	return job
}

// ScanJob runs one scan to completion, or until cooperatively interrupted.
type ScanJob struct {
	service  *Service
	listener progress.Listener
	ctx      context.Context
	pool     *scanpool.Pool[scanner.Event]
}

// Start syncs every configured scope against the filesystem and drives
// each resulting event through the worker pool. It returns true if the
// scan ran to completion, false if Interrupt was called before it
// finished.
func (j *ScanJob) Start() (bool, error) {
	if err := j.pool.Start(); err != nil {
		return false, err
	}

	events, err := j.service.scanner.Scan(j.pool.IsInterrupted)
	if errors.Is(err, scanner.ErrInterrupted) {
		j.pool.Complete()
		return false, nil
	}
	if err != nil {
		j.pool.Complete()
		return false, err
	}

	for {
		ev, ok := events.Next()
		if !ok {
			break
		}
		if !j.pool.Push(ev) {
			break
		}
	}

	switch state := j.pool.Complete(); state {
	case scanpool.RaisedException:
		return false, j.pool.Err()
	case scanpool.Interrupted:
		return false, nil
	default:
		return true, nil
	}
}

// Interrupt cooperatively cancels a running Start, safe to call from
// another goroutine (e.g. a signalctl.Handler).
func (j *ScanJob) Interrupt() {
	j.pool.Interrupt()
}

// Package pdfsplit deterministically splits a PDF into single-page PDFs,
// content-addresses each page by its SHA-512 digest, and tracks which
// (pdf-hash, page-index) -> page-hash mappings are current, so the
// reference-counted lifecycle in indexcoord knows which page hashes were
// added or removed by a given file's update, per §4.4.
package pdfsplit

import (
	"database/sql"
	"os"
	"path/filepath"

	"github.com/unidoc/unipdf/v3/common"

	"github.com/paperindex/docindex/internal/hashutil"
	"github.com/paperindex/docindex/internal/pdfdoc"
	"github.com/paperindex/docindex/internal/store"
)

// Update is the result of splitting one PDF's current content: the page
// hashes it now consists of, plus (relative to what the Splitter
// previously recorded for this pdfHash) which page hashes were newly
// introduced and which are no longer referenced by it.
type Update struct {
	PageHashes []string
	Added      []string
	Removed    []string
}

// Splitter owns the page cache directory (one single-page PDF file per
// distinct page hash) and the pdfHash -> [page hashes] mapping table.
type Splitter struct {
	pool      *store.Pool
	pagesDir  string
}

// Open opens (creating if necessary) the splitter database at dbPath and
// the page cache directory at pagesDir.
func Open(dbPath, pagesDir string) (*Splitter, error) {
	if err := os.MkdirAll(pagesDir, 0o755); err != nil {
		return nil, err
	}
	pool, err := store.Open(dbPath, createSchema)
	if err != nil {
		return nil, err
	}
	return &Splitter{pool: pool, pagesDir: pagesDir}, nil
}

func createSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE pages (
			id INTEGER PRIMARY KEY,
			pdf_hash TEXT NOT NULL,
			page_index INTEGER NOT NULL,
			page_hash TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_pdf_pages ON pages (pdf_hash, page_index)`,
		`CREATE INDEX idx_page_pages ON pages (page_hash)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Splitter) Close() error {
	return s.pool.Close()
}

// Freeze severs writes to the page mapping table for an emergency shutdown.
func (s *Splitter) Freeze() {
	s.pool.Freeze()
}

// PagePath returns the cache path of pageHash's single-page PDF.
func (s *Splitter) PagePath(pageHash string) string {
	return filepath.Join(s.pagesDir, pageHash+".pdf")
}

// PageHashes returns the ordered page hashes currently recorded for
// pdfHash.
func (s *Splitter) PageHashes(pdfHash string) ([]string, error) {
	rows, err := s.pool.DB().Query(
		`SELECT page_hash FROM pages WHERE pdf_hash = ? ORDER BY page_index`, pdfHash,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// PDFPageRef names one (PDF, page index) pair that references a page hash.
type PDFPageRef struct {
	PDFHash   string
	PageIndex int
}

// PDFsContainingPage returns every PDF (and the page index within it) that
// currently references pageHash, for mapping a page-level search result
// back to its source documents.
func (s *Splitter) PDFsContainingPage(pageHash string) ([]PDFPageRef, error) {
	rows, err := s.pool.DB().Query(
		`SELECT pdf_hash, page_index FROM pages WHERE page_hash = ? ORDER BY pdf_hash`, pageHash,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []PDFPageRef
	for rows.Next() {
		var ref PDFPageRef
		if err := rows.Scan(&ref.PDFHash, &ref.PageIndex); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// AddFile splits filePath (a PDF whose whole-file digest is pdfHash) into
// single-page PDFs, writes any not already present in the page cache, and
// replaces pdfHash's page mapping with the result. Added/Removed in the
// returned Update name page hashes that, respectively, just became or just
// stopped being referenced by ANY tracked PDF -- the trigger for
// extraction and eviction in indexcoord.
func (s *Splitter) AddFile(pdfHash, filePath string) (Update, error) {
	pageHashes, err := s.splitIntoCache(filePath)
	if err != nil {
		return Update{}, err
	}

	origin, err := s.PageHashes(pdfHash)
	if err != nil {
		return Update{}, err
	}

	toRemove := stringSet(origin)
	toAdd := stringSet(pageHashes)
	for _, h := range pageHashes {
		delete(toRemove, h)
	}
	for _, h := range origin {
		delete(toAdd, h)
	}

	var added, removed []string
	err = s.pool.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM pages WHERE pdf_hash = ?`, pdfHash); err != nil {
			return err
		}
		for i, pageHash := range pageHashes {
			if _, err := tx.Exec(
				`INSERT INTO pages (pdf_hash, page_index, page_hash) VALUES (?, ?, ?)`,
				pdfHash, i, pageHash,
			); err != nil {
				return err
			}
		}
		for h := range toRemove {
			n, err := countPageHash(tx, h)
			if err != nil {
				return err
			}
			if n == 0 {
				removed = append(removed, h)
			}
		}
		for h := range toAdd {
			n, err := countPageHash(tx, h)
			if err != nil {
				return err
			}
			if n == 1 {
				added = append(added, h)
			}
		}
		return nil
	})
	if err != nil {
		return Update{}, err
	}
	return Update{PageHashes: pageHashes, Added: added, Removed: removed}, nil
}

// RemoveFile drops pdfHash's page mapping entirely and reports which page
// hashes are no longer referenced by any tracked PDF.
func (s *Splitter) RemoveFile(pdfHash string) (Update, error) {
	pageHashes, err := s.PageHashes(pdfHash)
	if err != nil {
		return Update{}, err
	}
	if err := s.pool.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM pages WHERE pdf_hash = ?`, pdfHash)
		return err
	}); err != nil {
		return Update{}, err
	}

	var removed []string
	for _, h := range pageHashes {
		n, err := countPageHash(s.pool.DB(), h)
		if err != nil {
			return Update{}, err
		}
		if n == 0 {
			removed = append(removed, h)
		}
	}
	return Update{Removed: removed}, nil
}

type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func countPageHash(q rowQuerier, pageHash string) (int, error) {
	var n int
	err := q.QueryRow(`SELECT COUNT(*) FROM pages WHERE page_hash = ?`, pageHash).Scan(&n)
	return n, err
}

// splitIntoCache writes every page of filePath into the page cache under
// its content hash, skipping pages already cached under that hash, and
// returns the page hashes in page order. Splitting is deterministic: unipdf
// writes each single-page PDF with no run-varying identifiers, so two PDFs
// sharing a page produce byte-identical output and thus the same hash.
func (s *Splitter) splitIntoCache(filePath string) ([]string, error) {
	doc, err := pdfdoc.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	numPages, err := doc.NumPages()
	if err != nil {
		return nil, err
	}

	hashes := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := doc.Page(i)
		if err != nil {
			common.Log.Error("pdfsplit: AddFile: GetPage(%q, %d): %v", filePath, i, err)
			return nil, err
		}

		tmpPath := s.PagePath("") + ".tmp"
		tmp, err := os.CreateTemp(s.pagesDir, "split-*.pdf")
		if err != nil {
			return nil, err
		}
		tmpPath = tmp.Name()

		if err := pdfdoc.WriteSinglePage(tmp, page); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return nil, err
		}
		tmp.Close()

		pageHash, err := hashutil.FileHash(tmpPath)
		if err != nil {
			os.Remove(tmpPath)
			return nil, err
		}

		target := s.PagePath(pageHash)
		if info, err := os.Stat(target); err == nil {
			if info.IsDir() {
				if err := os.RemoveAll(target); err != nil {
					os.Remove(tmpPath)
					return nil, err
				}
				if err := os.Rename(tmpPath, target); err != nil {
					os.Remove(tmpPath)
					return nil, err
				}
			} else {
				os.Remove(tmpPath)
			}
		} else if err := os.Rename(tmpPath, target); err != nil {
			os.Remove(tmpPath)
			return nil, err
		}

		hashes = append(hashes, pageHash)
	}
	return hashes, nil
}

func stringSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// Package scanner walks configured source roots, maintains a per-scope
// file-table mirror of the filesystem, and produces an ordered,
// consume-once event journal describing the delta since the last scan, per
// §4.3 of the design.
package scanner

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/paperindex/docindex/internal/store"
)

// ErrInterrupted is returned by Scan/ScanScope when the supplied cancel
// predicate reports true mid-traversal.
var ErrInterrupted = errors.New("scanner: interrupted")

// ErrUnknownScope is returned by ScanScope for a scope not in the
// configured source map.
var ErrUnknownScope = errors.New("scanner: unregistered scope")

type fileRecord struct {
	path     string
	mtime    float64
	children []string // nil iff this entry is a file
}

// Scanner mirrors a set of named source roots into a relational file table
// and a journal of Added/Updated/Removed events.
type Scanner struct {
	pool          *store.Pool
	sources       map[string]string
	excludes      []string
	didSyncScopes bool
}

// Open opens (creating if necessary) the scanner database at dbPath for the
// given scope-name -> root-path sources. excludes is an optional list of
// doublestar glob patterns (matched against scope-relative paths) to skip
// during traversal.
func Open(dbPath string, sources map[string]string, excludes []string) (*Scanner, error) {
	pool, err := store.Open(dbPath, createSchema)
	if err != nil {
		return nil, err
	}
	return &Scanner{pool: pool, sources: sources, excludes: excludes}, nil
}

func createSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE files (
			id TEXT PRIMARY KEY,
			mtime REAL NOT NULL,
			scope TEXT NOT NULL,
			children TEXT
		)`,
		`CREATE TABLE events (
			id INTEGER PRIMARY KEY,
			kind INTEGER NOT NULL,
			target INTEGER NOT NULL,
			path TEXT NOT NULL,
			scope TEXT NOT NULL,
			mtime REAL NOT NULL
		)`,
		`CREATE TABLE scopes (
			name TEXT PRIMARY KEY
		)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *Scanner) Close() error {
	return s.pool.Close()
}

// Freeze severs writes to the scan journal for an emergency shutdown.
func (s *Scanner) Freeze() {
	s.pool.Freeze()
}

// EventsCount returns the number of unconsumed rows currently in the
// journal, for progress reporting.
func (s *Scanner) EventsCount() (int, error) {
	var n int
	err := s.pool.DB().QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n)
	return n, err
}

// Scan walks every configured scope and returns a consuming iterator over
// the resulting event journal. cancel, if non-nil, is polled at every
// traversal step; if it reports true, Scan returns ErrInterrupted and any
// events produced before the interruption remain durably in the journal.
func (s *Scanner) Scan(cancel func() bool) (*Events, error) {
	if !s.didSyncScopes {
		if err := s.syncScopes(); err != nil {
			return nil, err
		}
		s.didSyncScopes = true
	}

	names := make([]string, 0, len(s.sources))
	for scope := range s.sources {
		names = append(names, scope)
	}
	sort.Strings(names)

	for _, scope := range names {
		if err := s.scanScope(scope, s.sources[scope], cancel); err != nil {
			return nil, err
		}
	}
	return newEvents(s.pool), nil
}

// ScanScope scans a single already-configured scope.
func (s *Scanner) ScanScope(scope string, cancel func() bool) (*Events, error) {
	root, ok := s.sources[scope]
	if !ok {
		return nil, ErrUnknownScope
	}
	if !s.didSyncScopes {
		if err := s.syncScopes(); err != nil {
			return nil, err
		}
		s.didSyncScopes = true
	}
	if err := s.scanScope(scope, root, cancel); err != nil {
		return nil, err
	}
	return newEvents(s.pool), nil
}

// syncScopes inserts newly configured scopes and, for scopes removed since
// the last run, emits Removed events for every tracked file/directory
// under them before deleting their file rows.
func (s *Scanner) syncScopes() error {
	origin := map[string]bool{}
	rows, err := s.pool.DB().Query(`SELECT name FROM scopes`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		origin[name] = true
	}
	rows.Close()

	return s.pool.WithTx(func(tx *sql.Tx) error {
		for scope := range s.sources {
			if origin[scope] {
				delete(origin, scope)
			} else if _, err := tx.Exec(`INSERT INTO scopes (name) VALUES (?)`, scope); err != nil {
				return err
			}
		}
		for removedScope := range origin {
			if err := s.emitRemovedScope(tx, removedScope); err != nil {
				return err
			}
			if _, err := tx.Exec(`DELETE FROM scopes WHERE name = ?`, removedScope); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Scanner) emitRemovedScope(tx *sql.Tx, scope string) error {
	rows, err := tx.Query(`SELECT id, mtime, children FROM files WHERE scope = ?`, scope)
	if err != nil {
		return err
	}
	type row struct {
		id    string
		isDir bool
		mtime float64
	}
	var all []row
	for rows.Next() {
		var r row
		var children sql.NullString
		if err := rows.Scan(&r.id, &r.mtime, &children); err != nil {
			rows.Close()
			return err
		}
		r.isDir = children.Valid
		all = append(all, r)
	}
	rows.Close()

	for _, r := range all {
		path := strings.TrimPrefix(r.id, scope+":")
		target := File
		if r.isDir {
			target = Directory
		}
		if err := recordEvent(tx, Removed, target, path, scope, r.mtime); err != nil {
			return err
		}
	}
	_, err = tx.Exec(`DELETE FROM files WHERE scope = ?`, scope)
	return err
}

// scanScope performs the depth-first walk of one scope's root, using a
// LIFO stack of relative paths seeded with "/".
func (s *Scanner) scanScope(scope, root string, cancel func() bool) error {
	stack := []string{"/"}

	for len(stack) > 0 {
		if cancel != nil && cancel() {
			return ErrInterrupted
		}

		relPath := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if s.isExcluded(relPath) {
			continue
		}

		children, err := s.scanAndReport(scope, root, relPath)
		if err != nil {
			return err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, joinRelative(relPath, children[i]))
		}
	}
	return nil
}

func (s *Scanner) isExcluded(relPath string) bool {
	for _, pattern := range s.excludes {
		if ok, _ := doublestar.Match(pattern, strings.TrimPrefix(relPath, "/")); ok {
			return true
		}
	}
	return false
}

// scanAndReport compares the filesystem state of one relative path against
// the file table, committing the resulting event(s) and returning the
// child names to continue traversing into: the cached children for an
// unchanged directory, a fresh listing for a new or changed one, and nil
// for files and for paths that no longer exist.
func (s *Scanner) scanAndReport(scope, root, relPath string) ([]string, error) {
	absPath := absoluteScopePath(root, relPath)
	oldFile, err := s.selectFile(scope, relPath)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(absPath)
	var newFile *fileRecord
	mtimeNeverChange := false

	switch {
	case statErr == nil:
		mtime := float64(info.ModTime().UnixNano()) / 1e9
		var children []string

		if oldFile != nil && oldFile.mtime == mtime {
			children = oldFile.children
			mtimeNeverChange = true
		} else if info.IsDir() && !isEpubLeaf(absPath) {
			children, err = listDir(absPath)
			if err != nil {
				return nil, err
			}
		} else if info.IsDir() {
			// .epub directories are leaves: no children tracked.
			children = nil
		}
		newFile = &fileRecord{path: relPath, mtime: mtime, children: children}

	case oldFile == nil:
		return nil, nil

	default:
		// statErr != nil && oldFile != nil: path disappeared.
	}

	if !mtimeNeverChange {
		err := s.pool.WithTx(func(tx *sql.Tx) error {
			if err := commitFileSelfEvent(tx, scope, oldFile, newFile); err != nil {
				return err
			}
			return s.commitChildrenEvents(tx, scope, oldFile, newFile)
		})
		if err != nil {
			return nil, err
		}
	}

	if newFile == nil || newFile.children == nil {
		return nil, nil
	}
	return newFile.children, nil
}

func commitFileSelfEvent(tx *sql.Tx, scope string, oldFile, newFile *fileRecord) error {
	if newFile != nil {
		childrenStr, target := encodeChildren(newFile)
		fileID := scope + ":" + newFile.path

		if oldFile == nil {
			if _, err := tx.Exec(
				`INSERT INTO files (id, mtime, scope, children) VALUES (?, ?, ?, ?)`,
				fileID, newFile.mtime, scope, nullableString(childrenStr, target),
			); err != nil {
				return err
			}
			return recordEvent(tx, Added, target, newFile.path, scope, newFile.mtime)
		}

		if _, err := tx.Exec(
			`UPDATE files SET mtime = ?, children = ? WHERE id = ?`,
			newFile.mtime, nullableString(childrenStr, target), fileID,
		); err != nil {
			return err
		}
		return recordEvent(tx, Updated, target, newFile.path, scope, newFile.mtime)
	}

	if oldFile != nil {
		target := File
		if oldFile.children != nil {
			target = Directory
		}
		fileID := scope + ":" + oldFile.path
		if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, fileID); err != nil {
			return err
		}
		if err := recordEvent(tx, Removed, target, oldFile.path, scope, oldFile.mtime); err != nil {
			return err
		}
		if oldFile.children != nil {
			return handleRemovedFolder(tx, scope, oldFile)
		}
	}
	return nil
}

// commitChildrenEvents diffs oldFile's children against newFile's to catch
// deletions that traversal alone would miss.
func (s *Scanner) commitChildrenEvents(tx *sql.Tx, scope string, oldFile, newFile *fileRecord) error {
	if oldFile == nil || oldFile.children == nil {
		return nil
	}

	toRemove := map[string]bool{}
	for _, c := range oldFile.children {
		toRemove[c] = true
	}
	if newFile != nil {
		for _, c := range newFile.children {
			delete(toRemove, c)
		}
	}

	names := make([]string, 0, len(toRemove))
	for name := range toRemove {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		childPath := joinRelative(oldFile.path, name)
		childFile, err := selectFileTx(tx, scope, childPath)
		if err != nil {
			return err
		}
		if childFile == nil {
			continue
		}

		target := File
		if childFile.children != nil {
			target = Directory
			if err := handleRemovedFolder(tx, scope, childFile); err != nil {
				return err
			}
		}

		fileID := scope + ":" + childPath
		if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, fileID); err != nil {
			return err
		}
		if err := recordEvent(tx, Removed, target, childPath, scope, childFile.mtime); err != nil {
			return err
		}
	}
	return nil
}

// handleRemovedFolder recursively emits Removed events for every
// descendant of folder known to the file table and deletes their rows.
func handleRemovedFolder(tx *sql.Tx, scope string, folder *fileRecord) error {
	for _, child := range folder.children {
		childPath := joinRelative(folder.path, child)
		childFile, err := selectFileTx(tx, scope, childPath)
		if err != nil {
			return err
		}
		if childFile == nil {
			continue
		}

		target := File
		if childFile.children != nil {
			target = Directory
			if err := handleRemovedFolder(tx, scope, childFile); err != nil {
				return err
			}
		}

		fileID := scope + ":" + childPath
		if _, err := tx.Exec(`DELETE FROM files WHERE id = ?`, fileID); err != nil {
			return err
		}
		if err := recordEvent(tx, Removed, target, childPath, scope, childFile.mtime); err != nil {
			return err
		}
	}
	return nil
}

func recordEvent(tx *sql.Tx, kind EventKind, target EventTarget, path, scope string, mtime float64) error {
	_, err := tx.Exec(
		`INSERT INTO events (kind, target, path, scope, mtime) VALUES (?, ?, ?, ?, ?)`,
		int(kind), int(target), path, scope, mtime,
	)
	return err
}

func (s *Scanner) selectFile(scope, relPath string) (*fileRecord, error) {
	return selectFileDB(s.pool.DB(), scope, relPath)
}

func selectFileDB(q interface {
	QueryRow(string, ...any) *sql.Row
}, scope, relPath string) (*fileRecord, error) {
	fileID := scope + ":" + relPath
	var mtime float64
	var children sql.NullString
	err := q.QueryRow(`SELECT mtime, children FROM files WHERE id = ?`, fileID).Scan(&mtime, &children)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fileRecord{path: relPath, mtime: mtime, children: decodeChildren(children)}, nil
}

func selectFileTx(tx *sql.Tx, scope, relPath string) (*fileRecord, error) {
	return selectFileDB(tx, scope, relPath)
}

func encodeChildren(f *fileRecord) (string, EventTarget) {
	if f.children == nil {
		return "", File
	}
	// "/" cannot appear in a single path component, so it's safe as a
	// separator for the encoded children list.
	return strings.Join(f.children, "/"), Directory
}

func decodeChildren(children sql.NullString) []string {
	if !children.Valid {
		return nil
	}
	if children.String == "" {
		return []string{}
	}
	return strings.Split(children.String, "/")
}

// nullableString stores a file's children column as SQL NULL, so that
// decodeChildren reads it back as a nil list (nil iff this entry is a file).
func nullableString(s string, target EventTarget) any {
	if target == File {
		return nil
	}
	return s
}

func listDir(absPath string) ([]string, error) {
	entries, err := os.ReadDir(absPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

func absoluteScopePath(root, relPath string) string {
	return filepath.Join(root, "."+relPath)
}

func joinRelative(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	return base + "/" + name
}

// isEpubLeaf reports whether path is a directory whose lowercased
// extension is .epub, which is treated as a leaf: its contents are never
// traversed, accommodating e-book bundles stored as directories.
func isEpubLeaf(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".epub")
}

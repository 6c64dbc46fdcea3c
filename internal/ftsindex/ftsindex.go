// Package ftsindex implements the lexical half of the hybrid index: a
// SQLite FTS5 virtual table tokenized with a Unicode tokenizer, a node
// catalog table recording each node's segment offsets, and the tiered
// ranking function of §4.7.
package ftsindex

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paperindex/docindex/internal/indexnode"
	"github.com/paperindex/docindex/internal/segment"
	"github.com/paperindex/docindex/internal/store"
)

const fetchBatchSize = 25

// DB is the lexical backend over one SQLite file.
type DB struct {
	pool *store.Pool
}

// Open opens (creating if necessary) the FTS database at path.
func Open(path string) (*DB, error) {
	pool, err := store.Open(path, createSchema)
	if err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

func createSchema(tx *sql.Tx) error {
	stmts := []string{
		`CREATE VIRTUAL TABLE contents USING fts5(
			content,
			tokenize = "unicode61 remove_diacritics 2"
		)`,
		`CREATE TABLE nodes (
			node_id TEXT PRIMARY KEY,
			type TEXT,
			metadata TEXT NOT NULL,
			segments TEXT NOT NULL,
			content_id INTEGER NOT NULL
		)`,
		`CREATE INDEX idx_nodes_content ON nodes (content_id)`,
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s); err != nil {
			return fmt.Errorf("ftsindex: schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.pool.Close()
}

// Freeze severs writes to the FTS table for an emergency shutdown.
func (d *DB) Freeze() {
	d.pool.Freeze()
}

// Save indexes nodeID's segments under the given metadata. If every
// segment tokenizes to nothing, Save is a no-op (mirrors fts5_db.py: an
// all-punctuation or all-whitespace body never produces a node).
func (d *DB) Save(nodeID string, segments []segment.Segment, metadata map[string]string) error {
	encodedSegments, tokens := encodeSegments(segments)
	if encodedSegments == "" {
		return nil
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	document := strings.Join(tokens, " ")
	typeTag := metadata["type"]

	return d.pool.WithTx(func(tx *sqlTx) error {
		res, err := tx.Exec(`INSERT INTO contents (content) VALUES (?)`, document)
		if err != nil {
			return err
		}
		contentID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO nodes (node_id, type, metadata, segments, content_id) VALUES (?, ?, ?, ?, ?)`,
			nodeID, typeTag, string(metadataJSON), encodedSegments, contentID,
		)
		return err
	})
}

// Remove deletes nodeID's content and catalog rows, if present.
func (d *DB) Remove(nodeID string) error {
	return d.pool.WithTx(func(tx *sqlTx) error {
		var contentID int64
		err := tx.QueryRow(`SELECT content_id FROM nodes WHERE node_id = ?`, nodeID).Scan(&contentID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM contents WHERE rowid = ?`, contentID); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM nodes WHERE node_id = ?`, nodeID); err != nil {
			return err
		}
		return nil
	})
}

// sqlTx is an alias for sql.Tx, so createSchema can also run
// against it via the shared WithTx helper.
type sqlTx = sql.Tx

// Condition selects the boolean relationship between query tokens used to
// build the FTS MATCH expression.
type Condition int

const (
	// AllOf requires every query token to appear in the matched row
	// (strict tier).
	AllOf Condition = iota
	// SomeButNotAll requires at least one but not every query token
	// (relaxed / partial tier).
	SomeButNotAll
)

// Query tokenizes queryText and visits every matching node via visit, in
// the order SQLite returns the rows; each node carries its Rank, but the
// visits are not sorted by it. Query stops iterating as soon as visit
// returns false.
func (d *DB) Query(queryText string, cond Condition, visit func(indexnode.Node) bool) error {
	queryTokens := segment.Tokenize(queryText)
	if len(queryTokens) == 0 {
		return nil
	}

	matchExpr := buildMatchExpr(queryTokens, cond)
	rows, err := d.pool.DB().Query(
		`SELECT N.node_id, C.content, N.metadata, N.segments
		   FROM contents C INNER JOIN nodes N ON C.rowid = N.content_id
		  WHERE C.content MATCH ?`,
		matchExpr,
	)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var nodeID, content, metadataJSON, encodedSegments string
		if err := rows.Scan(&nodeID, &content, &metadataJSON, &encodedSegments); err != nil {
			return err
		}
		var metadata map[string]string
		if err := json.Unmarshal([]byte(metadataJSON), &metadata); err != nil {
			return err
		}
		decoded := decodeSegments(content, encodedSegments)
		rank := calculateRank(queryTokens, decoded)

		node := indexnode.Node{
			ID:       nodeID,
			Metadata: metadata,
			Rank:     rank,
		}
		for _, s := range decoded {
			node.Segments = append(node.Segments, indexnode.Span{Start: s.start, End: s.end})
		}
		if !visit(node) {
			break
		}
	}
	return rows.Err()
}

func buildMatchExpr(tokens []string, cond Condition) string {
	quoted := make([]string, len(tokens))
	for i, t := range tokens {
		quoted[i] = strconv.Quote(t)
	}
	switch cond {
	case SomeButNotAll:
		or := strings.Join(quoted, " OR ")
		and := strings.Join(quoted, " AND ")
		return fmt.Sprintf(`"content": (%s) NOT (%s)`, or, and)
	default:
		and := strings.Join(quoted, " AND ")
		return fmt.Sprintf(`"content": %s`, and)
	}
}

type decodedSegment struct {
	start, end int
	tokens     []string
}

// encodeSegments tokenizes every segment's text and returns the encoded
// segment-offset string (",".joined "<token_count>:<start>-<end>") plus
// the flat token stream to store as the FTS document. Segments whose text
// tokenizes to nothing are skipped entirely (they contribute no tokens and
// would desync the offset accounting).
func encodeSegments(segments []segment.Segment) (string, []string) {
	var encoded []string
	var tokens []string

	for _, s := range segments {
		segTokens := segment.Tokenize(s.Text)
		if len(segTokens) == 0 {
			continue
		}
		encoded = append(encoded, fmt.Sprintf("%d:%d-%d", len(segTokens), s.Start, s.End))
		tokens = append(tokens, segTokens...)
	}
	return strings.Join(encoded, ","), tokens
}

// decodeSegments reverses encodeSegments given the stored content string
// and encoded offsets, recovering each segment's (start, end, tokens).
func decodeSegments(content, encoded string) []decodedSegment {
	if encoded == "" {
		return nil
	}
	tokens := strings.Split(content, " ")
	offset := 0

	var out []decodedSegment
	for _, part := range strings.Split(encoded, ",") {
		cells := strings.SplitN(part, ":", 2)
		if len(cells) != 2 {
			continue
		}
		count, err := strconv.Atoi(cells[0])
		if err != nil {
			continue
		}
		pos := strings.SplitN(cells[1], "-", 2)
		if len(pos) != 2 {
			continue
		}
		start, _ := strconv.Atoi(pos[0])
		end, _ := strconv.Atoi(pos[1])

		segTokens := tokens[offset : offset+count]
		offset += count

		out = append(out, decodedSegment{start: start, end: end, tokens: segTokens})
	}
	return out
}

// calculateRank implements the tiered rank of §4.7: for k = 0..len(Q)-1,
// C[k] is 1 if some segment matched exactly len(Q)-k distinct query
// tokens, else 0; rank = Σ C[k]·0.35^k. This prefers segments matching
// more distinct query tokens, with exponential decay for near-misses.
func calculateRank(queryTokens []string, segments []decodedSegment) float64 {
	n := len(queryTokens)
	if n == 0 {
		return 0
	}
	matchCounts := make(map[int]bool, n)

	for _, s := range segments {
		present := make(map[string]bool, len(s.tokens))
		for _, t := range s.tokens {
			present[t] = true
		}
		count := 0
		for _, q := range queryTokens {
			if present[q] {
				count++
			}
		}
		if count > 0 {
			matchCounts[count] = true
		}
	}

	var rank float64
	for k := 0; k < n; k++ {
		matchedCount := n - k
		if matchCounts[matchedCount] {
			rank += pow035(k)
		}
	}
	return rank
}

func pow035(k int) float64 {
	r := 1.0
	for i := 0; i < k; i++ {
		r *= 0.35
	}
	return r
}

// Package query implements the tiered search resolver of §4.10: a strict
// AND match over the lexical index, widened to a relaxed OR-NOT-AND match
// if the strict tier falls short of the requested result count, widened
// again to vector similarity search if still short -- each tier
// contributing only nodes no earlier tier already returned.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/paperindex/docindex/internal/ftsindex"
	"github.com/paperindex/docindex/internal/indexnode"
	"github.com/paperindex/docindex/internal/segment"
	"github.com/paperindex/docindex/internal/vectorindex"
)

// Resolver answers queries against one lexical + one vector backend pair.
type Resolver struct {
	fts *ftsindex.DB
	vec *vectorindex.DB
}

// New returns a Resolver over the given backends.
func New(fts *ftsindex.DB, vec *vectorindex.DB) *Resolver {
	return &Resolver{fts: fts, vec: vec}
}

// Query resolves queryText to at most resultsLimit nodes, trying each tier
// in turn until enough results have accumulated. queryText is reduced to
// keywords the same way indexed text is tokenized, so punctuation and
// FTS-grammar-reserved words in the query don't need escaping by the
// caller.
func (r *Resolver) Query(ctx context.Context, queryText string, resultsLimit int) ([]indexnode.Node, error) {
	if resultsLimit <= 0 {
		return nil, nil
	}
	keywords := segment.ToKeywords(queryText)
	if len(keywords) == 0 {
		return nil, nil
	}
	normalized := strings.Join(keywords, " ")

	seen := map[string]bool{}
	var results []indexnode.Node

	matched, err := r.ftsTier(normalized, ftsindex.AllOf)
	if err != nil {
		return nil, err
	}
	appendTier(&results, seen, matched, indexnode.Matched, resultsLimit)
	if len(results) >= resultsLimit {
		return results, nil
	}

	partial, err := r.ftsTier(normalized, ftsindex.SomeButNotAll)
	if err != nil {
		return nil, err
	}
	appendTier(&results, seen, partial, indexnode.MatchedPartial, resultsLimit)
	if len(results) >= resultsLimit {
		return results, nil
	}

	similar, err := r.vec.Query(ctx, normalized, resultsLimit)
	if err != nil {
		return nil, err
	}
	appendTier(&results, seen, similar, indexnode.Similarity, resultsLimit)
	return results, nil
}

func (r *Resolver) ftsTier(queryText string, cond ftsindex.Condition) ([]indexnode.Node, error) {
	var nodes []indexnode.Node
	err := r.fts.Query(queryText, cond, func(n indexnode.Node) bool {
		nodes = append(nodes, n)
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Rank > nodes[j].Rank })
	return nodes, nil
}

// appendTier folds tier's nodes (already ordered best-first for this tier)
// into results, skipping any node id already present and stopping once
// results reaches limit.
func appendTier(results *[]indexnode.Node, seen map[string]bool, tier []indexnode.Node, matching indexnode.Matching, limit int) {
	for _, n := range tier {
		if len(*results) >= limit {
			return
		}
		if seen[n.ID] {
			continue
		}
		n.Matching = matching
		seen[n.ID] = true
		*results = append(*results, n)
	}
}

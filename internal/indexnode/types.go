// Package indexnode defines the node identity scheme and result types
// shared by the FTS and vector backends and the query resolver, per §3 and
// §4.9 of the design.
package indexnode

import (
	"fmt"
	"strconv"
	"strings"
)

// Type tags the four kinds of indexed entity.
type Type string

const (
	TypePDF            Type = "pdf"
	TypePage           Type = "pdf.page"
	TypeAnnoContent    Type = "pdf.page.anno.content"
	TypeAnnoExtracted  Type = "pdf.page.anno.extracted"
)

// PDFNodeID returns the index-node id for a PDF's own metadata.
func PDFNodeID(pdfHash string) string {
	return pdfHash
}

// PageNodeID returns the index-node id for a page body.
func PageNodeID(pageHash string) string {
	return pageHash
}

// AnnoContentNodeID returns the index-node id for an annotation's content
// text.
func AnnoContentNodeID(pageHash string, annoIndex int) string {
	return fmt.Sprintf("%s/anno/%d/content", pageHash, annoIndex)
}

// AnnoExtractedNodeID returns the index-node id for an annotation's
// extracted (quad-selected) text.
func AnnoExtractedNodeID(pageHash string, annoIndex int) string {
	return fmt.Sprintf("%s/anno/%d/extracted", pageHash, annoIndex)
}

// ParseAnnoNodeID splits an annotation node id ("<page-hash>/anno/<index>/content"
// or ".../extracted") back into its page hash and annotation index. ok is
// false for any id that isn't in that shape, including a bare page or PDF
// node id.
func ParseAnnoNodeID(id string) (pageHash string, annoIndex int, ok bool) {
	parts := strings.Split(id, "/")
	if len(parts) != 4 || parts[1] != "anno" {
		return "", 0, false
	}
	idx, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, false
	}
	return parts[0], idx, true
}

// Matching is the tier a node was found under during query resolution.
type Matching string

const (
	Matched        Matching = "matched"
	MatchedPartial Matching = "matched_partial"
	Similarity     Matching = "similarity"
)

// Span is a half-open character range [Start, End) within a node's source
// text.
type Span struct {
	Start int
	End   int
}

// Node is one result from either backend: an identified unit indexed in
// both the FTS and vector stores, tagged by the tier it was found under.
type Node struct {
	ID       string
	Matching Matching
	Metadata map[string]string
	Rank     float64 // lexical rank (Matched/MatchedPartial); 0 for Similarity hits
	Distance float64 // vector distance (Similarity); 0 for lexical-only hits
	Segments []Span
}

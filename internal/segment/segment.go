// Package segment splits page and query text into bounded, non-overlapping
// segments and tokenizes text for the lexical index, per §4.6 of the
// design: segments are character ranges on sentence/whitespace boundaries,
// and tokens collapse control characters and a small punctuation class,
// lowercase, and drop a handful of reserved words that collide with the
// FTS query grammar.
package segment

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxSegmentLength bounds the number of characters in one segment. Text
// longer than this is split at the nearest preceding sentence or
// whitespace boundary.
const MaxSegmentLength = 400

// Segment is a half-open character range [Start, End) within a source
// text, plus the text slice itself.
type Segment struct {
	Start int
	End   int
	Text  string
}

var sentenceBoundary = regexp.MustCompile(`[.!?。！？]\s+`)

// Split breaks text into non-overlapping segments bounded by
// MaxSegmentLength. Segments are produced on sentence boundaries where
// possible, falling back to whitespace, and finally to a hard cut if no
// boundary is found within the bound. Pure-whitespace stretches between
// segments are intentionally skipped, so segments do not necessarily tile
// the whole input, but their union (ignoring gaps) covers it.
func Split(text string) []Segment {
	runes := []rune(text)
	n := len(runes)
	var segments []Segment

	start := 0
	for start < n {
		for start < n && unicode.IsSpace(runes[start]) {
			start++
		}
		if start >= n {
			break
		}

		end := start + MaxSegmentLength
		if end >= n {
			end = n
		} else {
			end = boundaryBefore(runes, start, end)
		}

		seg := strings.TrimRightFunc(string(runes[start:end]), unicode.IsSpace)
		trimmedEnd := start + len([]rune(seg))
		if trimmedEnd > start {
			segments = append(segments, Segment{
				Start: start,
				End:   trimmedEnd,
				Text:  seg,
			})
		}
		start = end
	}

	return segments
}

// boundaryBefore finds the best split point in runes[start:limit], scanning
// backward from limit for a sentence boundary and then for whitespace.
func boundaryBefore(runes []rune, start, limit int) int {
	window := string(runes[start:limit])
	if locs := sentenceBoundary.FindAllStringIndex(window, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		return start + last[1]
	}
	for i := limit - 1; i > start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return limit
}

var punctuationClass = regexp.MustCompile(`[-+:!"'{},.]`)
var controlCharClass = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]+`)

var reservedTokens = map[string]bool{
	"":     true,
	"near": true,
	"and":  true,
	"or":   true,
	"not":  true,
}

// Tokenize splits text into lowercased tokens for the lexical index: it
// collapses control characters to a single space, replaces the reserved
// punctuation class with a space, lowercases, and drops empty tokens and
// the reserved words NEAR/AND/OR/NOT (case-insensitively), which would
// otherwise be interpreted as FTS query operators.
func Tokenize(text string) []string {
	text = controlCharClass.ReplaceAllString(text, " ")
	text = punctuationClass.ReplaceAllString(text, " ")

	var tokens []string
	for _, raw := range strings.Split(text, " ") {
		tok := strings.ToLower(raw)
		if reservedTokens[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// ToKeywords tokenizes a free-text query into the keyword list surfaced to
// the user and used by the highlighter. It is the same tokenizer as
// Tokenize; the separate name documents the distinct call site.
func ToKeywords(query string) []string {
	return Tokenize(query)
}

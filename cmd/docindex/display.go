package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	docindex "github.com/paperindex/docindex"
	"github.com/paperindex/docindex/internal/indexcoord"
	"github.com/paperindex/docindex/internal/indexnode"
)

var divider = strings.Repeat("-", 60)

var (
	dimColor  = color.New(color.FgHiBlack)
	markColor = color.New(color.FgHiRed)
)

// displayResult renders a query result the same way command/display.py
// does: bottom item first (so the strongest match ends up nearest the
// prompt after scrolling), then a summary line.
func displayResult(result docindex.QueryResult) {
	items := make([]indexcoord.PageQueryItem, len(result.Items))
	copy(items, result.Items)
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	recordsCount := 0
	for _, item := range items {
		recordsCount += showPageItem(item)
		fmt.Println()
	}

	dimColor.Println(divider)
	fmt.Printf("Query Keywords: %s\n", strings.Join(result.Keywords, ", "))
	fmt.Printf("Found %d Pages and %d Records\n", len(items), recordsCount)
}

func showPageItem(item indexcoord.PageQueryItem) int {
	count := len(item.Segments)

	dimColor.Println(divider)
	switch len(item.PDFFiles) {
	case 0:
		// page no longer reachable from any tracked PDF; nothing to point at.
	case 1:
		f := item.PDFFiles[0]
		fmt.Printf("PDF File page at page %d: %s\n", f.PageIndex+1, dimColor.Sprint(f.PDFPath))
	default:
		fmt.Println("PDF File page from:")
		for _, f := range item.PDFFiles {
			fmt.Printf("  page %d from %s\n", f.PageIndex+1, dimColor.Sprint(f.PDFPath))
		}
	}

	if len(item.Segments) > 0 {
		fmt.Printf("Found Contents: %d\n", len(item.Segments))
	}
	if len(item.Annotations) > 0 {
		fmt.Printf("Found Annotations: %d\n", len(item.Annotations))
	}
	fmt.Printf("Rank: %.4f\n", item.Rank)
	fmt.Printf("Distance: %.4f\n", item.Distance)
	dimColor.Println(divider)
	fmt.Println(highlightText(item.Content, item.Segments))

	if len(item.Annotations) > 0 {
		dimColor.Println(divider)
		for i, anno := range item.Annotations {
			count++
			fmt.Printf("Annotation Index: %d\n", anno.Index+1)
			fmt.Printf("Rank: %.4f\n", anno.Rank)
			fmt.Printf("Distance: %.4f\n", anno.Distance)
			fmt.Println(highlightText(anno.Content, anno.Segments))
			if i < len(item.Annotations)-1 {
				fmt.Println()
			}
		}
	}
	return count
}

// highlightText renders text with every matched segment picked out against
// a dimmed background, and within each segment marks its interior keyword
// sub-ranges in mark color -- the two-level scheme command/display.py's
// _highlight_text/_mark_text use for matched query terms.
func highlightText(text string, segments []indexcoord.HighlightSegment) string {
	runes := []rune(text)
	sorted := make([]indexcoord.HighlightSegment, len(segments))
	copy(sorted, segments)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	latestEnd := 0
	for _, seg := range sorted {
		start, end := seg.Start, seg.End
		if start < latestEnd {
			start = latestEnd
		}
		if start > len(runes) {
			break
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start > latestEnd {
			b.WriteString(dimColor.Sprint(string(runes[latestEnd:start])))
			latestEnd = start
		}
		if end > start {
			b.WriteString(markSegment(string(runes[start:end]), seg.Highlights))
			latestEnd = end
		}
	}
	if latestEnd < len(runes) {
		b.WriteString(dimColor.Sprint(string(runes[latestEnd:])))
	}
	return b.String()
}

// markSegment renders one matched segment's text with its interior keyword
// sub-ranges (offsets relative to the segment's own start) picked out in
// mark color, leaving the rest of the segment in the default terminal
// color.
func markSegment(text string, highlights []indexnode.Span) string {
	runes := []rune(text)
	var b strings.Builder
	latestEnd := 0
	for _, h := range highlights {
		start, end := h.Start, h.End
		if start > len(runes) {
			break
		}
		if end > len(runes) {
			end = len(runes)
		}
		if start > latestEnd {
			b.WriteString(string(runes[latestEnd:start]))
			latestEnd = start
		}
		if end > start {
			b.WriteString(markColor.Sprint(string(runes[start:end])))
			latestEnd = end
		}
	}
	if latestEnd < len(runes) {
		b.WriteString(string(runes[latestEnd:]))
	}
	return b.String()
}

package pdfextract

import (
	"testing"

	"github.com/paperindex/docindex/internal/pdfdoc"
)

func TestExtractSelectedTextKeepsOnlyContainedChars(t *testing.T) {
	region, ok := newAnnotationRegion([]float64{0, 0, 10, 0, 10, 10, 0, 10})
	if !ok {
		t.Fatal("expected a valid region")
	}
	lines := []textLine{
		{
			bbox: rect{x0: 0, y0: 0, x1: 20, y1: 2},
			chars: []pdfdoc.CharLocation{
				{Text: "a", Llx: 0, Lly: 0, Urx: 1, Ury: 2},
				{Text: "b", Llx: 15, Lly: 0, Urx: 16, Ury: 2},
			},
		},
	}
	got, ok := extractSelectedText(lines, region)
	if !ok {
		t.Fatal("expected a match")
	}
	if got != "a" {
		t.Fatalf("got %q, want %q", got, "a")
	}
}

func TestExtractSelectedTextNoOverlap(t *testing.T) {
	region, _ := newAnnotationRegion([]float64{0, 0, 10, 0, 10, 10, 0, 10})
	lines := []textLine{
		{bbox: rect{x0: 100, y0: 100, x1: 120, y1: 102}},
	}
	if _, ok := extractSelectedText(lines, region); ok {
		t.Fatal("expected no match for non-overlapping line")
	}
}

func TestQuadRectsDropsDegenerateQuads(t *testing.T) {
	rects := quadRects([]float64{5, 5, 5, 5, 5, 5, 5, 5})
	if len(rects) != 0 {
		t.Fatalf("expected degenerate quad to be dropped, got %d rects", len(rects))
	}
}

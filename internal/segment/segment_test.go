package segment

import "testing"

func TestSplitKeepsShortTextAsOneSegment(t *testing.T) {
	text := "a short sentence."
	segs := Split(text)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d: %+v", len(segs), segs)
	}
	if segs[0].Text != text {
		t.Fatalf("segment text = %q, want %q", segs[0].Text, text)
	}
	if segs[0].Start != 0 || segs[0].End != len([]rune(text)) {
		t.Fatalf("unexpected span: %+v", segs[0])
	}
}

func TestSplitSkipsLeadingWhitespaceKeepsInterveningInOneSegment(t *testing.T) {
	text := "  first.   second."
	segs := Split(text)
	if len(segs) != 1 {
		t.Fatalf("expected whitespace-joined single segment, got %d: %+v", len(segs), segs)
	}
	if segs[0].Start != 2 || segs[0].Text != "first.   second." {
		t.Fatalf("unexpected segment: %+v", segs[0])
	}
}

func TestSplitBreaksLongTextOnSentenceBoundary(t *testing.T) {
	sentence := "This is one sentence that repeats itself many times over. "
	text := ""
	for len(text) < MaxSegmentLength+50 {
		text += sentence
	}
	segs := Split(text)
	if len(segs) < 2 {
		t.Fatalf("expected text longer than MaxSegmentLength to split, got %d segments", len(segs))
	}
	for _, s := range segs {
		if len([]rune(s.Text)) > MaxSegmentLength {
			t.Fatalf("segment exceeds MaxSegmentLength: %d runes", len([]rune(s.Text)))
		}
		if r := []rune(s.Text); r[len(r)-1] != '.' {
			t.Fatalf("segment does not end on a sentence boundary: %q", s.Text)
		}
	}
}

func TestSplitReturnsNilForAllWhitespace(t *testing.T) {
	if segs := Split("   \n\t  "); segs != nil {
		t.Fatalf("expected nil, got %+v", segs)
	}
}

func TestTokenizeLowercasesAndStripsPunctuation(t *testing.T) {
	got := Tokenize(`Hello, "World"!`)
	want := []string{"hello", "world"}
	if len(got) != len(want) {
		t.Fatalf("Tokenize = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokenize = %v, want %v", got, want)
		}
	}
}

func TestTokenizeDropsReservedWords(t *testing.T) {
	got := Tokenize("cats AND dogs OR birds NOT fish NEAR water")
	for _, tok := range got {
		switch tok {
		case "and", "or", "not", "near":
			t.Fatalf("reserved token %q leaked into tokenize output: %v", tok, got)
		}
	}
}

func TestToKeywordsIsTokenize(t *testing.T) {
	query := "find Invoices and Receipts"
	if got, want := ToKeywords(query), Tokenize(query); len(got) != len(want) {
		t.Fatalf("ToKeywords diverged from Tokenize: %v vs %v", got, want)
	}
}

package pdfextract

import "testing"

func TestParsePDFDate(t *testing.T) {
	got, ok := parsePDFDate("D:20230615143000+10'00")
	if !ok {
		t.Fatal("expected a successful parse")
	}
	want := "2023-06-15 04:30:00"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestParsePDFDateRejectsMalformed(t *testing.T) {
	if _, ok := parsePDFDate("2023-06-15"); ok {
		t.Fatal("expected malformed date to be rejected")
	}
}

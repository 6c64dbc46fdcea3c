package indexnode

import "testing"

func TestAnnoNodeIDRoundTrip(t *testing.T) {
	contentID := AnnoContentNodeID("page-hash-123", 2)
	if contentID != "page-hash-123/anno/2/content" {
		t.Fatalf("unexpected id: %s", contentID)
	}
	pageHash, idx, ok := ParseAnnoNodeID(contentID)
	if !ok || pageHash != "page-hash-123" || idx != 2 {
		t.Fatalf("ParseAnnoNodeID(%q) = (%q, %d, %v)", contentID, pageHash, idx, ok)
	}

	extractedID := AnnoExtractedNodeID("page-hash-123", 0)
	pageHash, idx, ok = ParseAnnoNodeID(extractedID)
	if !ok || pageHash != "page-hash-123" || idx != 0 {
		t.Fatalf("ParseAnnoNodeID(%q) = (%q, %d, %v)", extractedID, pageHash, idx, ok)
	}
}

func TestParseAnnoNodeIDRejectsNonAnnoIDs(t *testing.T) {
	for _, id := range []string{
		"plain-pdf-hash",
		"page-hash/anno/notanumber/content",
		"page-hash/other/0/content",
		"page-hash/anno/0",
	} {
		if _, _, ok := ParseAnnoNodeID(id); ok {
			t.Fatalf("expected ParseAnnoNodeID(%q) to fail", id)
		}
	}
}

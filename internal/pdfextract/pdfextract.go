// Package pdfextract reads a cached single-page PDF and produces the two
// derived artifacts the index feeds on: a plain-text snapshot of the
// page's body, and a JSON list of the page's annotations (each carrying
// whatever text from the page body its quad points select), per §4.5.
package pdfextract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/unidoc/unipdf/v3/common"

	"github.com/paperindex/docindex/internal/pdfdoc"
)

const (
	pdfExt        = "pdf"
	snapshotExt   = "snapshot.txt"
	annotationExt = "annotation.json"
)

// Extractor reads and writes per-page derived artifacts under one page
// cache directory.
type Extractor struct {
	pagesDir string
}

// New returns an Extractor over the page cache directory pagesDir (shared
// with pdfsplit's Splitter).
func New(pagesDir string) *Extractor {
	return &Extractor{pagesDir: pagesDir}
}

func (e *Extractor) pagePath(pageHash, ext string) string {
	return filepath.Join(e.pagesDir, pageHash+"."+ext)
}

// ExtractPage reads pageHash's cached single-page PDF and writes its
// snapshot and annotation artifacts (only the ones that have content: an
// all-whitespace page gets no snapshot file, a page with no qualifying
// annotations gets no annotation file).
func (e *Extractor) ExtractPage(pageHash string) error {
	doc, err := pdfdoc.Open(e.pagePath(pageHash, pdfExt))
	if err != nil {
		return err
	}
	defer doc.Close()

	numPages, err := doc.NumPages()
	if err != nil {
		return err
	}
	if numPages == 0 {
		return nil
	}
	page, err := doc.Page(1)
	if err != nil {
		common.Log.Error("pdfextract: ExtractPage(%q): %v", pageHash, err)
		return err
	}

	text, locations, err := page.TextWithLocations()
	if err != nil {
		return err
	}
	rawAnnotations, err := page.Annotations()
	if err != nil {
		return err
	}

	lines := groupLines(locations)
	records := make([]annotationJSON, 0, len(rawAnnotations))
	for _, a := range rawAnnotations {
		rec := annotationJSON{
			Type:    a.Subtype,
			Title:   a.Title,
			Content: a.Content,
			URI:     a.URI,
		}
		if a.CreatedRaw != "" {
			if t, ok := parsePDFDate(a.CreatedRaw); ok {
				rec.CreatedAt = t
			}
		}
		if a.ModifiedRaw != "" {
			if t, ok := parsePDFDate(a.ModifiedRaw); ok {
				rec.UpdatedAt = t
			}
		}
		if len(a.QuadPoints) > 0 {
			rec.QuadPoints = a.QuadPoints
			if region, ok := newAnnotationRegion(a.QuadPoints); ok {
				if extracted, ok := extractSelectedText(lines, region); ok {
					rec.ExtractedText = extracted
				}
			}
		}
		records = append(records, rec)
	}

	if err := e.writeSnapshot(pageHash, text); err != nil {
		return err
	}
	return e.writeAnnotations(pageHash, records)
}

func (e *Extractor) writeSnapshot(pageHash, text string) error {
	path := e.pagePath(pageHash, snapshotExt)
	if isAllWhitespace(text) {
		return removeIfExists(path)
	}
	return os.WriteFile(path, []byte(text), 0o644)
}

func (e *Extractor) writeAnnotations(pageHash string, records []annotationJSON) error {
	path := e.pagePath(pageHash, annotationExt)
	if len(records) == 0 {
		return removeIfExists(path)
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RemovePage deletes every artifact cached under pageHash: the page PDF
// itself plus its snapshot and annotation files, if present.
func (e *Extractor) RemovePage(pageHash string) error {
	for _, ext := range []string{pdfExt, snapshotExt, annotationExt} {
		if err := removeIfExists(e.pagePath(pageHash, ext)); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot returns the plain-text snapshot for pageHash, or "" if the page
// produced no body text.
func (e *Extractor) Snapshot(pageHash string) (string, error) {
	data, err := os.ReadFile(e.pagePath(pageHash, snapshotExt))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Annotations returns the parsed annotation records for pageHash, or nil
// if the page has none.
func (e *Extractor) Annotations(pageHash string) ([]annotationJSON, error) {
	data, err := os.ReadFile(e.pagePath(pageHash, annotationExt))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []annotationJSON
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func isAllWhitespace(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// textLine is a run of character marks judged to sit on the same
// horizontal line of text.
type textLine struct {
	bbox  rect
	chars []pdfdoc.CharLocation
}

const lineYTolerance = 2.0

// groupLines buckets chars by approximate vertical center, then sorts the
// resulting lines top-to-bottom (descending Y, PDF space has its origin at
// the bottom-left).
func groupLines(chars []pdfdoc.CharLocation) []textLine {
	var lines []textLine
	for _, c := range chars {
		cy := (c.Lly + c.Ury) / 2
		placed := false
		for i := range lines {
			mid := (lines[i].bbox.y0 + lines[i].bbox.y1) / 2
			if abs(mid-cy) <= lineYTolerance {
				lines[i].chars = append(lines[i].chars, c)
				lines[i].bbox = expand(lines[i].bbox, c)
				placed = true
				break
			}
		}
		if !placed {
			lines = append(lines, textLine{
				bbox:  rect{x0: c.Llx, y0: c.Lly, x1: c.Urx, y1: c.Ury},
				chars: []pdfdoc.CharLocation{c},
			})
		}
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].bbox.y1 > lines[j].bbox.y1 })
	return lines
}

func expand(r rect, c pdfdoc.CharLocation) rect {
	if c.Llx < r.x0 {
		r.x0 = c.Llx
	}
	if c.Urx > r.x1 {
		r.x1 = c.Urx
	}
	if c.Lly < r.y0 {
		r.y0 = c.Lly
	}
	if c.Ury > r.y1 {
		r.y1 = c.Ury
	}
	return r
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// extractSelectedText returns the body text an annotation's quad points
// select: every line whose bounding box overlaps the annotation region
// contributes the characters within it that the region fully contains, in
// left-to-right, top-to-bottom order.
func extractSelectedText(lines []textLine, region annotationRegion) (string, bool) {
	var out []string
	for _, line := range lines {
		if !region.overlaps(line.bbox) {
			continue
		}
		var b strings.Builder
		for _, c := range line.chars {
			charRect := rect{x0: c.Llx, y0: c.Lly, x1: c.Urx, y1: c.Ury}
			if region.contains(charRect) {
				b.WriteString(c.Text)
			}
		}
		out = append(out, b.String())
	}
	if len(out) == 0 {
		return "", false
	}
	return strings.Join(out, "\n"), true
}

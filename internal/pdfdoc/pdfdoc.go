// Package pdfdoc narrows the unipdf library down to the handful of
// operations the rest of this module needs: opening a PDF, iterating its
// pages, reading a page's text and annotations, and writing a single page
// back out as a standalone document. Isolating this surface keeps unipdf's
// API out of the splitting, extraction and indexing packages.
package pdfdoc

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/unidoc/unipdf/v3/common"
	"github.com/unidoc/unipdf/v3/core"
	"github.com/unidoc/unipdf/v3/extractor"
	pdf "github.com/unidoc/unipdf/v3/model"
)

// Document is an opened PDF, ready for page-by-page access.
type Document struct {
	path   string
	file   *os.File
	reader *pdf.PdfReader
}

// Open opens the PDF file at path for reading. Null-encrypted PDFs (an
// empty owner/user password) are transparently decrypted.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	reader, err := openReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Document{path: path, file: f, reader: reader}, nil
}

func openReader(rs io.ReadSeeker) (*pdf.PdfReader, error) {
	reader, err := pdf.NewPdfReader(rs)
	if err != nil {
		return nil, err
	}
	encrypted, err := reader.IsEncrypted()
	if err != nil {
		return nil, err
	}
	if encrypted {
		if _, err := reader.Decrypt([]byte("")); err != nil {
			return nil, fmt.Errorf("pdfdoc: decrypt %w", err)
		}
	}
	return reader, nil
}

// Close releases the underlying file handle.
func (d *Document) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// NumPages returns the page count.
func (d *Document) NumPages() (int, error) {
	return d.reader.GetNumPages()
}

// Page is a single page within an open Document, 1-indexed as in unipdf.
type Page struct {
	Number int
	page   *pdf.PdfPage
}

// Page returns the pageNum'th page (1-indexed).
func (d *Document) Page(pageNum int) (*Page, error) {
	p, err := d.reader.GetPage(pageNum)
	if err != nil {
		common.Log.Error("pdfdoc: GetPage(%q, %d): %v", d.path, pageNum, err)
		return nil, err
	}
	return &Page{Number: pageNum, page: p}, nil
}

// Text returns the page's extracted text.
func (p *Page) Text() (string, error) {
	ex, err := extractor.New(p.page)
	if err != nil {
		return "", err
	}
	text, _, _, err := ex.ExtractPageText()
	if err != nil {
		return "", err
	}
	return text.ToText(), nil
}

// CharLocation is one character's position on a page, in PDF point space
// (origin bottom-left), as returned by TextWithLocations.
type CharLocation struct {
	Text           string
	Llx, Lly, Urx, Ury float64
}

// TextWithLocations returns both the page's plain text and the bounding
// box of every text mark within it, for callers that need to spatially
// correlate text with annotation quad points.
func (p *Page) TextWithLocations() (string, []CharLocation, error) {
	ex, err := extractor.New(p.page)
	if err != nil {
		return "", nil, err
	}
	pageText, _, _, err := ex.ExtractPageText()
	if err != nil {
		return "", nil, err
	}
	text, marks := pageText.ToTextLocation()

	locs := make([]CharLocation, 0, len(marks))
	for _, m := range marks {
		locs = append(locs, CharLocation{
			Text: m.Text,
			Llx:  m.BBox.Llx, Lly: m.BBox.Lly,
			Urx: m.BBox.Urx, Ury: m.BBox.Ury,
		})
	}
	return text, locs, nil
}

// SizePt returns the page's media box width and height in PDF points.
func (p *Page) SizePt() (width, height float64, err error) {
	box, err := p.page.GetMediaBox()
	if err != nil {
		return 0, 0, err
	}
	return box.Urx - box.Llx, box.Ury - box.Lly, nil
}

// Annotation is the narrow subset of a PDF annotation dictionary this
// module reads: kind, author-facing text, link target, timestamps and the
// quad points delimiting the region of page text it covers.
type Annotation struct {
	Subtype    string
	Title      string
	Content    string
	URI        string
	CreatedRaw string
	ModifiedRaw string
	QuadPoints []float64 // x0,y0,x1,y1,... groups of 8 per quad
}

// Annotations returns the page's annotation dictionaries, skipping any
// entry unipdf cannot parse (logged and ignored, per the teacher's
// tolerant-parsing posture toward malformed PDFs).
func (p *Page) Annotations() ([]Annotation, error) {
	annots, err := p.page.GetAnnotations()
	if err != nil {
		return nil, err
	}
	out := make([]Annotation, 0, len(annots))
	for _, a := range annots {
		ann, ok := decodeAnnotation(a)
		if !ok {
			continue
		}
		out = append(out, ann)
	}
	return out, nil
}

// decodeAnnotation walks an annotation's raw dictionary rather than
// switching on unipdf's per-subtype Go types: every field we care about
// (title, contents, link target, dates, quad points) lives at a predictable
// key regardless of markup subtype, and a dictionary walk tolerates
// subtypes unipdf doesn't model with a dedicated struct.
func decodeAnnotation(annot *pdf.PdfAnnotation) (Annotation, bool) {
	dict, ok := core.GetDict(annot.ToPdfObject())
	if !ok {
		return Annotation{}, false
	}

	ann := Annotation{
		Subtype:     nameField(dict, "Subtype"),
		Title:       stringField(dict, "T"),
		Content:     stringField(dict, "Contents"),
		URI:         actionURI(dict),
		CreatedRaw:  stringField(dict, "CreationDate"),
		ModifiedRaw: stringField(dict, "M"),
		QuadPoints:  floatArrayField(dict, "QuadPoints"),
	}
	if ann.Title == "" && ann.Content == "" && ann.URI == "" {
		return Annotation{}, false
	}
	return ann, true
}

func stringField(dict *core.PdfObjectDictionary, key string) string {
	obj := core.TraceToDirectObject(dict.Get(core.PdfObjectName(key)))
	if s, ok := core.GetStringVal(obj); ok {
		return s
	}
	return ""
}

func nameField(dict *core.PdfObjectDictionary, key string) string {
	obj := core.TraceToDirectObject(dict.Get(core.PdfObjectName(key)))
	if n, ok := core.GetNameVal(obj); ok {
		return n
	}
	return ""
}

func actionURI(dict *core.PdfObjectDictionary) string {
	action, ok := core.GetDict(dict.Get(core.PdfObjectName("A")))
	if !ok {
		return ""
	}
	return stringField(action, "URI")
}

func floatArrayField(dict *core.PdfObjectDictionary, key string) []float64 {
	arr, ok := core.GetArray(dict.Get(core.PdfObjectName(key)))
	if !ok {
		return nil
	}
	out := make([]float64, 0, arr.Len())
	for _, elem := range arr.Elements() {
		if f, ok := core.GetNumberAsFloat(elem); ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// WriteSinglePage writes page as the sole page of a new PDF document to w.
// The output is deterministic for a given page's content: no per-run
// timestamps or identifiers are embedded.
func WriteSinglePage(w io.Writer, p *Page) error {
	writer := pdf.NewPdfWriter()
	if err := writer.AddPage(p.page); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := writer.Write(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

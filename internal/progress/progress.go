// Package progress defines the listener callbacks invoked during a scan
// and index pass, for driving CLI progress bars and log lines.
package progress

// Listener receives progress callbacks. Every method is optional: embed
// NopListener to implement only the ones a caller cares about.
type Listener interface {
	// StartScan reports the beginning of a scan over a scope.
	StartScan(scope string)
	// StartHandleFile reports that path (scope-relative) is about to be
	// processed.
	StartHandleFile(scope, path string)
	// CompleteHandleFile reports that path finished processing.
	CompleteHandleFile(scope, path string)
	// CompleteHandlePdfPage reports a PDF page's split/extract step
	// finished, with its position in the owning PDF.
	CompleteHandlePdfPage(pageIndex, totalPages int)
	// CompleteIndexPdfPage reports a PDF page's index write finished, with
	// its position in the owning PDF.
	CompleteIndexPdfPage(pageIndex, totalPages int)
}

// NopListener implements Listener with no-ops, so callers only override
// the callbacks they need.
type NopListener struct{}

func (NopListener) StartScan(scope string)                      {}
func (NopListener) StartHandleFile(scope, path string)           {}
func (NopListener) CompleteHandleFile(scope, path string)        {}
func (NopListener) CompleteHandlePdfPage(pageIndex, total int)    {}
func (NopListener) CompleteIndexPdfPage(pageIndex, total int)     {}

package progress

import "testing"

func TestNopListenerSatisfiesListener(t *testing.T) {
	var l Listener = NopListener{}
	l.StartScan("docs")
	l.StartHandleFile("docs", "a.pdf")
	l.CompleteHandleFile("docs", "a.pdf")
	l.CompleteHandlePdfPage(0, 3)
	l.CompleteIndexPdfPage(0, 3)
}

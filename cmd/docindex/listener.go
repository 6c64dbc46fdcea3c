package main

import (
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// cliListener renders scan progress to the terminal: a line per file
// handled, and a progress bar for the page-level work within each PDF.
// Its methods are called from every scan worker goroutine, so all shared
// state is mutex-guarded.
type cliListener struct {
	mu         sync.Mutex
	filesCount int
	bar        *progressbar.ProgressBar
}

func (l *cliListener) StartScan(scope string) {
	fmt.Printf("Scanning %s...\n", scope)
}

func (l *cliListener) StartHandleFile(scope, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Printf("[%d] Handling File %s\n", l.filesCount+1, path)
}

func (l *cliListener) CompleteHandleFile(scope, path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filesCount++
	l.closeBarLocked()
}

func (l *cliListener) CompleteHandlePdfPage(pageIndex, totalPages int) {
	l.progress(fmt.Sprintf("Parse PDF: %d pages", totalPages), pageIndex, totalPages)
}

func (l *cliListener) CompleteIndexPdfPage(pageIndex, totalPages int) {
	l.progress(fmt.Sprintf("Index PDF: %d pages", totalPages), pageIndex, totalPages)
}

func (l *cliListener) progress(desc string, pageIndex, totalPages int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.bar == nil {
		l.bar = progressbar.NewOptions(totalPages, progressbar.OptionSetDescription(desc))
	}
	l.bar.Add(1)
	if pageIndex == totalPages-1 {
		l.closeBarLocked()
	}
}

func (l *cliListener) closeBarLocked() {
	if l.bar != nil {
		l.bar.Finish()
		fmt.Println()
		l.bar = nil
	}
}

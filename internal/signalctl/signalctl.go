// Package signalctl implements the interrupt escalation ladder: the first
// Ctrl-C during a running scan job cooperatively interrupts it; the first
// Ctrl-C with no scan running warns and starts a 12-second kill timer; a
// second Ctrl-C within that window force-stops, freezing the database
// before exiting, per §4.12.
package signalctl

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"
)

const killTimerLimit = 12 * time.Second

// ScanJob is the cooperative-cancellation handle of a running scan.
type ScanJob interface {
	Interrupt()
}

// Freezer marks the database read-only ahead of a forced process exit.
type Freezer interface {
	FreezeDatabase() error
}

// ErrAlreadyWatching is returned by Watch when a scan job is already being
// watched.
var ErrAlreadyWatching = errors.New("signalctl: already watching a scan job")

// Handler owns the process's interrupt signal subscription.
type Handler struct {
	freezer Freezer
	sigs    chan os.Signal
	stop    chan struct{}

	mu                 sync.Mutex
	scanJob            ScanJob
	firstInterruptedAt time.Time
}

// New subscribes to the process's interrupt signal and begins handling it
// per the escalation ladder.
func New(freezer Freezer) *Handler {
	h := &Handler{
		freezer: freezer,
		sigs:    make(chan os.Signal, 1),
		stop:    make(chan struct{}),
	}
	signal.Notify(h.sigs, os.Interrupt)
	go h.loop()
	return h
}

func (h *Handler) loop() {
	for {
		select {
		case <-h.sigs:
			h.onInterrupt()
		case <-h.stop:
			return
		}
	}
}

// Close unsubscribes from the interrupt signal and stops the handler's
// goroutine.
func (h *Handler) Close() {
	signal.Stop(h.sigs)
	close(h.stop)
}

// Watch registers job as the scan job a first interrupt should
// cooperatively cancel.
func (h *Handler) Watch(job ScanJob) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.scanJob != nil {
		return ErrAlreadyWatching
	}
	h.scanJob = job
	return nil
}

// StopWatch unregisters the current scan job and resets the escalation
// timer, so the next interrupt starts the ladder from the top.
func (h *Handler) StopWatch() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scanJob = nil
	h.firstInterruptedAt = time.Time{}
}

func (h *Handler) onInterrupt() {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.scanJob != nil && h.firstInterruptedAt.IsZero():
		fmt.Println("\nInterrupting...")
		h.firstInterruptedAt = time.Now()
		h.scanJob.Interrupt()

	case h.firstInterruptedAt.IsZero():
		fmt.Printf("\nCannot interrupt this command (or press again to force stop after %.0fs)\n", killTimerLimit.Seconds())
		h.firstInterruptedAt = time.Now()

	default:
		elapsed := time.Since(h.firstInterruptedAt)
		if elapsed <= killTimerLimit {
			remaining := killTimerLimit - elapsed
			fmt.Printf("\nForce stopping... (press again to force stop after %.2fs)\n", remaining.Seconds())
			return
		}
		fmt.Println("\nForce stopping...")
		fmt.Println("It may corrupt the data structure of the database")
		if err := h.freezer.FreezeDatabase(); err != nil {
			fmt.Fprintf(os.Stderr, "freeze database: %v\n", err)
		}
		os.Exit(1)
	}
}

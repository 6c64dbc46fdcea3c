package signalctl

import (
	"sync/atomic"
	"testing"
)

type fakeFreezer struct {
	froze atomic.Bool
}

func (f *fakeFreezer) FreezeDatabase() error {
	f.froze.Store(true)
	return nil
}

type fakeScanJob struct {
	interrupted atomic.Bool
}

func (f *fakeScanJob) Interrupt() {
	f.interrupted.Store(true)
}

func TestOnInterruptCooperativelyCancelsWatchedJob(t *testing.T) {
	freezer := &fakeFreezer{}
	h := &Handler{freezer: freezer}
	job := &fakeScanJob{}
	if err := h.Watch(job); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	h.onInterrupt()

	if !job.interrupted.Load() {
		t.Fatal("expected the watched job to be interrupted")
	}
	if freezer.froze.Load() {
		t.Fatal("did not expect a freeze on the first interrupt")
	}
}

func TestWatchRejectsSecondJobWhileWatching(t *testing.T) {
	h := &Handler{freezer: &fakeFreezer{}}
	if err := h.Watch(&fakeScanJob{}); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := h.Watch(&fakeScanJob{}); err != ErrAlreadyWatching {
		t.Fatalf("Watch = %v, want ErrAlreadyWatching", err)
	}
}

func TestStopWatchResetsEscalationState(t *testing.T) {
	h := &Handler{freezer: &fakeFreezer{}}
	job := &fakeScanJob{}
	h.Watch(job)
	h.onInterrupt()
	h.StopWatch()

	if h.scanJob != nil {
		t.Fatal("expected scanJob to be cleared")
	}
	if !h.firstInterruptedAt.IsZero() {
		t.Fatal("expected firstInterruptedAt to be reset")
	}
}

func TestOnInterruptWithNoJobWarnsWithoutFreezing(t *testing.T) {
	freezer := &fakeFreezer{}
	h := &Handler{freezer: freezer}

	h.onInterrupt()

	if freezer.froze.Load() {
		t.Fatal("a single interrupt with no running job must not freeze")
	}
	if h.firstInterruptedAt.IsZero() {
		t.Fatal("expected the escalation timer to start")
	}
}

func TestOnInterruptWithinKillTimerWarnsWithoutForcing(t *testing.T) {
	freezer := &fakeFreezer{}
	h := &Handler{freezer: freezer}

	h.onInterrupt() // starts the timer, no job watched
	h.onInterrupt() // second press, still within killTimerLimit

	if freezer.froze.Load() {
		t.Fatal("a second interrupt inside the kill timer window must not force-stop yet")
	}
}

package scanpool

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsEveryItem(t *testing.T) {
	var total int64
	p := New(4, func(item int, _ int) error {
		atomic.AddInt64(&total, int64(item))
		return nil
	})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	var want int64
	for i := 0; i < 100; i++ {
		if !p.Push(i) {
			t.Fatalf("push %d unexpectedly rejected", i)
		}
		want += int64(i)
	}
	if state := p.Complete(); state != Ok {
		t.Fatalf("expected Ok, got %v", state)
	}
	if total != want {
		t.Fatalf("got total %d, want %d", total, want)
	}
}

func TestPoolReportsRaisedException(t *testing.T) {
	p := New(2, func(item int, _ int) error {
		if item == 1 {
			return errors.New("boom")
		}
		time.Sleep(10 * time.Millisecond)
		return nil
	})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	var pushed []int
	var mu sync.Mutex
	for i := 0; i < 100; i++ {
		if !p.Push(i) {
			break
		}
		mu.Lock()
		pushed = append(pushed, i)
		mu.Unlock()
	}
	if state := p.Complete(); state != RaisedException {
		t.Fatalf("expected RaisedException, got %v", state)
	}
	if p.Err() == nil {
		t.Fatal("expected a recorded error")
	}
}

func TestPoolInterruptStopsPushes(t *testing.T) {
	p := New(2, func(item int, _ int) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})
	if err := p.Start(); err != nil {
		t.Fatal(err)
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		p.Interrupt()
	}()

	accepted := 0
	for i := 0; i < 10000; i++ {
		if !p.Push(i) {
			break
		}
		accepted++
	}
	if state := p.Complete(); state != Interrupted {
		t.Fatalf("expected Interrupted, got %v", state)
	}
	if accepted == 10000 {
		t.Fatal("expected interrupt to cut the run short")
	}
}

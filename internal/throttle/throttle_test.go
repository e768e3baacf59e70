package throttle

import (
	"sync"
	"testing"
	"time"
)

func TestSequencerMonotonic(t *testing.T) {
	s := NewSequencer()
	last := int64(0)
	for i := 0; i < 100; i++ {
		id := s.Next()
		if id <= last {
			t.Fatalf("id %d not above previous %d", id, last)
		}
		last = id
	}
}

func TestSequencerBump(t *testing.T) {
	s := NewSequencer()
	s.Next()
	s.Bump(50)
	if got := s.Next(); got != 50 {
		t.Fatalf("after bump got %d, want 50", got)
	}
	// a lower floor never rewinds
	s.Bump(10)
	if got := s.Next(); got != 51 {
		t.Fatalf("after stale bump got %d, want 51", got)
	}
}

func TestSequencerConcurrent(t *testing.T) {
	s := NewSequencer()
	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	ids := make(chan int64, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- s.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("got %d ids, want %d", len(seen), workers*perWorker)
	}
}

func TestPacerUnderLimitSendsImmediately(t *testing.T) {
	var sent [][]byte
	p := NewPacer(5, time.Second, func(b []byte) error {
		sent = append(sent, b)
		return nil
	})
	for i := 0; i < 5; i++ {
		p.Send([]byte{byte(i)})
	}
	if len(sent) != 5 {
		t.Fatalf("sent %d, want 5", len(sent))
	}
	if p.Queued() != 0 {
		t.Fatalf("queued %d, want 0", p.Queued())
	}
}

func TestPacerQueuesOverLimitFIFO(t *testing.T) {
	var mu sync.Mutex
	var sent []byte
	p := NewPacer(3, 50*time.Millisecond, func(b []byte) error {
		mu.Lock()
		sent = append(sent, b[0])
		mu.Unlock()
		return nil
	})

	var paused, resumed bool
	p.OnPause = func(queued int) { paused = true }
	done := make(chan struct{})
	p.OnResume = func() { resumed = true; close(done) }

	for i := 0; i < 7; i++ {
		p.Send([]byte{byte(i)})
	}

	mu.Lock()
	immediate := len(sent)
	mu.Unlock()
	if immediate != 3 {
		t.Fatalf("sent %d immediately, want 3", immediate)
	}
	if p.Queued() != 4 {
		t.Fatalf("queued %d, want 4", p.Queued())
	}
	if !paused {
		t.Fatalf("OnPause not called")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("queue never drained")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, b := range sent {
		if int(b) != i {
			t.Fatalf("out of order at %d: %v", i, sent)
		}
	}
	if len(sent) != 7 {
		t.Fatalf("sent %d total, want 7", len(sent))
	}
	if !resumed {
		t.Fatalf("OnResume not called")
	}
}

func TestPacerReset(t *testing.T) {
	p := NewPacer(1, time.Minute, func(b []byte) error { return nil })
	p.Send([]byte{0})
	p.Send([]byte{1})
	p.Send([]byte{2})
	if p.Queued() != 2 {
		t.Fatalf("queued %d, want 2", p.Queued())
	}
	p.Reset()
	if p.Queued() != 0 {
		t.Fatalf("queue survived reset")
	}
	// window history cleared too: next send goes out immediately
	count := 0
	p2 := NewPacer(1, time.Minute, func(b []byte) error { count++; return nil })
	p2.Send([]byte{0})
	p2.Reset()
	p2.Send([]byte{1})
	if count != 2 {
		t.Fatalf("send after reset was throttled")
	}
}

func TestPacerZeroLimitDisabled(t *testing.T) {
	count := 0
	p := NewPacer(0, time.Second, func(b []byte) error { count++; return nil })
	for i := 0; i < 100; i++ {
		p.Send(nil)
	}
	if count != 100 {
		t.Fatalf("zero limit must disable pacing, sent %d", count)
	}
}

package throttle

import "sync"

// Sequencer hands out request identifiers. IDs are strictly increasing for
// the life of the process; a reconnect never reuses or rewinds them.
type Sequencer struct {
	mu   sync.Mutex
	next int64
}

func NewSequencer() *Sequencer {
	return &Sequencer{next: 1}
}

// Next returns a fresh identifier.
func (s *Sequencer) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}

// Bump raises the floor to min if the sequence is behind it. The gateway
// reports the lowest usable order id during the handshake; ids already
// handed out are never lowered.
func (s *Sequencer) Bump(min int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if min > s.next {
		s.next = min
	}
}

// Peek reports the id the next call to Next would return.
func (s *Sequencer) Peek() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

package session

import (
	"context"
	"time"
)

// pending is one outstanding reply-expecting request. The dispatch
// goroutine resolves it; the waiting caller owns the timeout.
type pending struct {
	op     string
	done   chan struct{}
	err    error
	cancel func() // server-side cancellation on timeout, may be nil
}

// register creates the wait handle for op. An overlapping request for
// the same op displaces the earlier waiter, which fails immediately
// instead of hanging until its timeout.
func (s *Session) register(op string, cancel func()) *pending {
	p := &pending{op: op, done: make(chan struct{}), cancel: cancel}
	s.mu.Lock()
	old := s.pending[op]
	s.pending[op] = p
	s.mu.Unlock()
	if old != nil {
		old.err = ErrSuperseded
		close(old.done)
	}
	return p
}

// resolve completes the pending request for op, if one is waiting, and
// reports whether there was one.
func (s *Session) resolve(op string, err error) bool {
	s.mu.Lock()
	p, ok := s.pending[op]
	if ok {
		delete(s.pending, op)
	}
	s.mu.Unlock()
	if ok {
		p.err = err
		close(p.done)
	}
	return ok
}

// failAll resolves every outstanding request with err. Called from the
// disconnect path: no reply is ever coming.
func (s *Session) failAll(err error) {
	s.mu.Lock()
	all := s.pending
	s.pending = make(map[string]*pending)
	s.mu.Unlock()

	for _, p := range all {
		p.err = err
		close(p.done)
	}
}

// await blocks until the request resolves, the context ends, or the
// request timeout elapses. A timeout issues the request's server-side
// cancellation so the subscription slot is not leaked.
func (s *Session) await(ctx context.Context, p *pending) error {
	timer := time.NewTimer(s.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		s.abandon(p)
		return ctx.Err()
	case <-timer.C:
		s.abandon(p)
		return &TimeoutError{Op: p.op}
	}
}

func (s *Session) abandon(p *pending) {
	s.mu.Lock()
	if s.pending[p.op] == p {
		delete(s.pending, p.op)
	}
	s.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

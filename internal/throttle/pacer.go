package throttle

import (
	"sync"
	"time"
)

// Pacer enforces the gateway's message rate: at most limit sends per
// rolling interval. Sends over the limit queue in arrival order and are
// released as the window frees up. A zero limit disables pacing.
type Pacer struct {
	limit    int
	interval time.Duration
	send     func([]byte) error

	// OnPause fires when the first message queues, OnResume when the
	// queue drains. Both are called outside the lock and may be nil.
	OnPause  func(queued int)
	OnResume func()

	mu      sync.Mutex
	sent    []time.Time
	queue   [][]byte
	timer   *time.Timer
	paused  bool
	stopped bool

	now func() time.Time
}

func NewPacer(limit int, interval time.Duration, send func([]byte) error) *Pacer {
	return &Pacer{
		limit:    limit,
		interval: interval,
		send:     send,
		now:      time.Now,
	}
}

// Send transmits payload immediately if the window allows, otherwise
// queues it. Queued payloads keep their order relative to later sends.
func (p *Pacer) Send(payload []byte) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	now := p.now()
	p.prune(now)
	if p.limit <= 0 || (len(p.queue) == 0 && len(p.sent) < p.limit) {
		p.sent = append(p.sent, now)
		p.mu.Unlock()
		return p.send(payload)
	}

	p.queue = append(p.queue, payload)
	queued := len(p.queue)
	firstPause := !p.paused
	p.paused = true
	p.schedule(now)
	p.mu.Unlock()

	if firstPause && p.OnPause != nil {
		p.OnPause(queued)
	}
	return nil
}

// Queued reports how many payloads are waiting on the window.
func (p *Pacer) Queued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Reset drops all queued payloads and the send history. Used on
// disconnect: a new connection starts with a clean window.
func (p *Pacer) Reset() {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.queue = nil
	p.sent = nil
	p.paused = false
	p.mu.Unlock()
}

// Close drops the queue and refuses further sends.
func (p *Pacer) Close() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.Reset()
}

// prune drops send timestamps that have left the rolling window.
func (p *Pacer) prune(now time.Time) {
	cut := now.Add(-p.interval)
	i := 0
	for i < len(p.sent) && !p.sent[i].After(cut) {
		i++
	}
	p.sent = p.sent[i:]
}

// schedule arms the release timer for when the oldest send in the window
// expires. Caller holds the lock.
func (p *Pacer) schedule(now time.Time) {
	if p.timer != nil || len(p.sent) == 0 {
		return
	}
	wait := p.sent[0].Add(p.interval).Sub(now)
	if wait < 0 {
		wait = 0
	}
	p.timer = time.AfterFunc(wait, p.release)
}

// release sends queued payloads that now fit in the window, in order.
func (p *Pacer) release() {
	for {
		p.mu.Lock()
		p.timer = nil
		if p.stopped || len(p.queue) == 0 {
			drained := p.paused
			p.paused = false
			p.mu.Unlock()
			if drained && p.OnResume != nil {
				p.OnResume()
			}
			return
		}
		now := p.now()
		p.prune(now)
		if len(p.sent) >= p.limit {
			p.schedule(now)
			p.mu.Unlock()
			return
		}
		payload := p.queue[0]
		p.queue = p.queue[1:]
		p.sent = append(p.sent, now)
		p.mu.Unlock()

		_ = p.send(payload)
	}
}

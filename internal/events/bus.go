package events

import (
	"sync"
	"time"

	"ibmirror/internal/models"
)

// Kind selects which stream a subscriber receives.
type Kind int

const (
	KindConnectivity Kind = iota
	KindOrderStatus
	KindFill
	KindTicker
	KindPosition
	KindAccountValue
	KindError
)

// Event is one state-change notification. Exactly one payload field is
// set, matching Type. Payloads are snapshots: handlers may keep them.
type Event struct {
	Type Kind
	Time time.Time

	Connected    *ConnectivityEvent
	Trade        *models.Trade
	Fill         *models.Fill
	TickerReqID  int64
	Position     *models.Position
	AccountValue *models.AccountValue
	Err          *ErrorEvent
}

type ConnectivityEvent struct {
	Up     bool
	Reason string
}

// ErrorEvent carries a gateway error or warning tied to a request.
type ErrorEvent struct {
	ReqID    int64
	Code     int
	Message  string
	Advisory bool
}

// Subscription detaches a handler when no longer wanted.
type Subscription struct {
	bus  *Bus
	kind Kind
	id   int64
}

func (s *Subscription) Unsubscribe() {
	if s.bus != nil {
		s.bus.remove(s.kind, s.id)
		s.bus = nil
	}
}

type handler struct {
	id int64
	fn func(Event)
}

// Bus fans events out to subscribers. Handlers run synchronously on the
// publishing goroutine, in subscription order; they must not block and
// must not call back into the publisher.
type Bus struct {
	mu       sync.RWMutex
	nextID   int64
	handlers map[Kind][]handler
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Kind][]handler)}
}

func (b *Bus) Subscribe(kind Kind, fn func(Event)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[kind] = append(b.handlers[kind], handler{id: b.nextID, fn: fn})
	return &Subscription{bus: b, kind: kind, id: b.nextID}
}

func (b *Bus) Publish(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	hs := b.handlers[ev.Type]
	fns := make([]func(Event), len(hs))
	for i, h := range hs {
		fns[i] = h.fn
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (b *Bus) remove(kind Kind, id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.handlers[kind]
	for i, h := range hs {
		if h.id == id {
			b.handlers[kind] = append(hs[:i:i], hs[i+1:]...)
			return
		}
	}
}

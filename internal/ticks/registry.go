package ticks

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"ibmirror/internal/events"
	"ibmirror/internal/logger"
	"ibmirror/internal/models"
	"ibmirror/internal/protocol"
)

// DepthLevel is one row of the order book ladder.
type DepthLevel struct {
	Price       float64
	Size        decimal.Decimal
	MarketMaker string
}

type depthBook struct {
	bids map[int]DepthLevel
	asks map[int]DepthLevel
}

// Registry owns all live tickers and depth ladders, keyed by the
// subscription's request id. Apply methods run on the dispatch goroutine;
// the lock shields snapshot readers.
type Registry struct {
	log *logger.Logger
	bus *events.Bus
	d   protocol.Defaults

	mu      sync.RWMutex
	tickers map[int64]*Ticker
	depth   map[int64]*depthBook
}

func NewRegistry(log *logger.Logger, bus *events.Bus, d protocol.Defaults) *Registry {
	return &Registry{
		log:     log,
		bus:     bus,
		d:       d,
		tickers: make(map[int64]*Ticker),
		depth:   make(map[int64]*depthBook),
	}
}

func (r *Registry) logEntry() *logrus.Entry {
	return r.log.WithComponent("ticks")
}

// Subscribe creates the ticker for a new market data request. All price
// fields start at the configured empty value.
func (r *Registry) Subscribe(reqID int64, contract models.Contract) Ticker {
	t := &Ticker{ReqID: reqID, Contract: contract, empty: r.d.EmptyPrice}
	for _, f := range []*float64{
		&t.Bid, &t.PrevBid, &t.Ask, &t.PrevAsk, &t.Last, &t.PrevLast,
		&t.High, &t.Low, &t.Open, &t.Close,
	} {
		*f = r.d.EmptyPrice
	}
	for _, f := range []*float64{
		&t.BidSize, &t.PrevBidSize, &t.AskSize, &t.PrevAskSize,
		&t.LastSize, &t.PrevLastSize, &t.Volume,
	} {
		*f = r.d.EmptySize
	}
	t.HistVolatility = r.d.Unset
	t.ImpliedVolatility = r.d.Unset

	r.mu.Lock()
	r.tickers[reqID] = t
	snap := *t
	r.mu.Unlock()
	return snap
}

// Unsubscribe drops the ticker and its depth ladder. Calling it for an
// unknown id is a no-op, so repeated cancels are safe.
func (r *Registry) Unsubscribe(reqID int64) {
	r.mu.Lock()
	delete(r.tickers, reqID)
	delete(r.depth, reqID)
	r.mu.Unlock()
}

// Reset drops every ticker and ladder. Subscriptions do not survive a
// connection.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.tickers = make(map[int64]*Ticker)
	r.depth = make(map[int64]*depthBook)
	r.mu.Unlock()
}

// Ticker returns a snapshot of one subscription.
func (r *Registry) Ticker(reqID int64) (Ticker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tickers[reqID]
	if !ok {
		return Ticker{}, false
	}
	return *t, true
}

// Tickers lists snapshots of every live subscription.
func (r *Registry) Tickers() []Ticker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Ticker, 0, len(r.tickers))
	for _, t := range r.tickers {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReqID < out[j].ReqID })
	return out
}

// ApplyTickPrice overwrites the addressed price field, moving the old
// value to its previous slot first. Price ticks that carry a size update
// the paired size field too.
func (r *Registry) ApplyTickPrice(reqID int64, code int, price, size float64) error {
	r.mu.Lock()
	t, ok := r.tickers[reqID]
	if !ok {
		// late tick after unsubscribe
		r.mu.Unlock()
		return nil
	}

	price = r.price(price)
	var sizeCode = -1
	switch code {
	case tickBid, tickDelayedBid:
		t.PrevBid = t.Bid
		t.Bid = price
		sizeCode = tickBidSize
	case tickAsk, tickDelayedAsk:
		t.PrevAsk = t.Ask
		t.Ask = price
		sizeCode = tickAskSize
	case tickLast, tickDelayedLast:
		t.PrevLast = t.Last
		t.Last = price
		sizeCode = tickLastSize
	case tickHigh, tickDelayedHigh:
		t.High = price
	case tickLow, tickDelayedLow:
		t.Low = price
	case tickClose, tickDelayedClose:
		t.Close = price
	case tickOpen, tickDelayedOpen:
		t.Open = price
	default:
		r.mu.Unlock()
		return &UnknownTickError{ReqID: reqID, Code: code}
	}
	if sizeCode >= 0 && !r.unset(size) {
		r.setSize(t, sizeCode, size)
	}
	t.Time = time.Now()
	r.mu.Unlock()

	r.publish(reqID)
	return nil
}

// ApplyTickSize overwrites the addressed size field.
func (r *Registry) ApplyTickSize(reqID int64, code int, size float64) error {
	r.mu.Lock()
	t, ok := r.tickers[reqID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	switch code {
	case tickBidSize, tickAskSize, tickLastSize, tickVolume,
		tickDelayedBidSize, tickDelayedAskSize, tickDelayedLastSize, tickDelayedVolume:
		r.setSize(t, code, r.size(size))
	default:
		r.mu.Unlock()
		return &UnknownTickError{ReqID: reqID, Code: code}
	}
	t.Time = time.Now()
	r.mu.Unlock()

	r.publish(reqID)
	return nil
}

// ApplyTickGeneric handles scalar ticks that are neither price nor size.
func (r *Registry) ApplyTickGeneric(reqID int64, code int, value float64) error {
	r.mu.Lock()
	t, ok := r.tickers[reqID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	switch code {
	case tickHistVol:
		t.HistVolatility = value
	case tickImpliedVol:
		t.ImpliedVolatility = value
	case tickHalted:
		t.Halted = value
	default:
		r.mu.Unlock()
		return &UnknownTickError{ReqID: reqID, Code: code}
	}
	t.Time = time.Now()
	r.mu.Unlock()

	r.publish(reqID)
	return nil
}

// ApplyTickString handles string-valued ticks.
func (r *Registry) ApplyTickString(reqID int64, code int, value string) error {
	r.mu.Lock()
	t, ok := r.tickers[reqID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	switch code {
	case tickLastTime:
		if ts, err := parseUnix(value, r.d.Timezone); err == nil {
			t.LastTimestamp = ts
		}
	default:
		r.mu.Unlock()
		return &UnknownTickError{ReqID: reqID, Code: code}
	}
	t.Time = time.Now()
	r.mu.Unlock()

	r.publish(reqID)
	return nil
}

// ApplyGreeks stores an option computation snapshot on the slot the tick
// type addresses.
func (r *Registry) ApplyGreeks(reqID int64, code int, g models.OptionGreeks) error {
	r.mu.Lock()
	t, ok := r.tickers[reqID]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	snap := g
	switch code {
	case tickBidGreeks, tickDelayedBidGreeks:
		t.BidGreeks = &snap
	case tickAskGreeks, tickDelayedAskGreeks:
		t.AskGreeks = &snap
	case tickLastGreeks, tickDelayedLastGreeks:
		t.LastGreeks = &snap
	case tickModelGreeks, tickDelayedModelGreeks:
		t.ModelGreeks = &snap
	default:
		r.mu.Unlock()
		return &UnknownTickError{ReqID: reqID, Code: code}
	}
	t.Time = time.Now()
	r.mu.Unlock()

	r.publish(reqID)
	return nil
}

// ApplyDepth mutates the order book ladder: operation 0 inserts, 1
// updates, 2 deletes; side 0 is ask, 1 is bid.
func (r *Registry) ApplyDepth(msg protocol.MarketDepthMsg) {
	r.mu.Lock()
	book, ok := r.depth[msg.ReqID]
	if !ok {
		book = &depthBook{bids: make(map[int]DepthLevel), asks: make(map[int]DepthLevel)}
		r.depth[msg.ReqID] = book
	}
	ladder := book.asks
	if msg.Side == 1 {
		ladder = book.bids
	}
	switch msg.Operation {
	case 0, 1:
		ladder[msg.Position] = DepthLevel{Price: msg.Price, Size: msg.Size, MarketMaker: msg.MarketMaker}
	case 2:
		delete(ladder, msg.Position)
	}
	r.mu.Unlock()

	r.publish(msg.ReqID)
}

// ClearDepth wipes the ladder for one subscription. The gateway signals a
// depth reset with an error code; the stale book must not survive it.
func (r *Registry) ClearDepth(reqID int64) {
	r.mu.Lock()
	delete(r.depth, reqID)
	r.mu.Unlock()
	r.logEntry().WithField("req_id", reqID).Debug("Depth ladder cleared.")
}

// Depth returns the ladder rows ordered by position, bids then asks.
func (r *Registry) Depth(reqID int64) (bids, asks []DepthLevel) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, ok := r.depth[reqID]
	if !ok {
		return nil, nil
	}
	return ladderRows(book.bids), ladderRows(book.asks)
}

func ladderRows(ladder map[int]DepthLevel) []DepthLevel {
	positions := make([]int, 0, len(ladder))
	for p := range ladder {
		positions = append(positions, p)
	}
	sort.Ints(positions)
	out := make([]DepthLevel, 0, len(positions))
	for _, p := range positions {
		out = append(out, ladder[p])
	}
	return out
}

func (r *Registry) setSize(t *Ticker, code int, size float64) {
	switch code {
	case tickBidSize, tickDelayedBidSize:
		t.PrevBidSize = t.BidSize
		t.BidSize = size
	case tickAskSize, tickDelayedAskSize:
		t.PrevAskSize = t.AskSize
		t.AskSize = size
	case tickLastSize, tickDelayedLastSize:
		t.PrevLastSize = t.LastSize
		t.LastSize = size
	case tickVolume, tickDelayedVolume:
		t.Volume = size
	}
}

// price maps the stream's "no price" sentinel to the configured empty
// value.
func (r *Registry) price(v float64) float64 {
	if v == -1 || r.unset(v) {
		return r.d.EmptyPrice
	}
	return v
}

func (r *Registry) size(v float64) float64 {
	if v == -1 || r.unset(v) {
		return r.d.EmptySize
	}
	return v
}

// unset matches both NaN and whatever Unset representation is configured.
func (r *Registry) unset(v float64) bool {
	return v != v || v == r.d.Unset
}

func (r *Registry) publish(reqID int64) {
	r.bus.Publish(events.Event{Type: events.KindTicker, TickerReqID: reqID})
}

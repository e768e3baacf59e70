package ticks

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"ibmirror/internal/events"
	"ibmirror/internal/logger"
	"ibmirror/internal/models"
	"ibmirror/internal/protocol"
)

func newTestRegistry() (*Registry, *events.Bus) {
	bus := events.NewBus()
	d := protocol.DefaultDefaults()
	return NewRegistry(logger.New(logger.Config{Level: "error"}), bus, d), bus
}

func aaplStock() models.Contract {
	return models.Contract{ConID: 265598, Symbol: "AAPL", SecType: models.SecTypeStock,
		Exchange: "SMART", Currency: "USD"}
}

func TestSubscribeStartsEmpty(t *testing.T) {
	r, _ := newTestRegistry()
	tk := r.Subscribe(3, aaplStock())
	if !math.IsNaN(tk.Bid) || !math.IsNaN(tk.Last) || !math.IsNaN(tk.Volume) {
		t.Fatalf("fresh ticker not empty: %+v", tk)
	}
	if tk.HasBidAsk() {
		t.Fatalf("fresh ticker claims a quote")
	}
}

func TestPrevValueCopiedEvenWhenEqual(t *testing.T) {
	r, _ := newTestRegistry()
	r.Subscribe(3, aaplStock())

	if err := r.ApplyTickPrice(3, tickBid, 230.10, 500); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := r.ApplyTickPrice(3, tickBid, 230.10, 300); err != nil {
		t.Fatalf("apply: %v", err)
	}

	tk, _ := r.Ticker(3)
	if tk.Bid != 230.10 || tk.PrevBid != 230.10 {
		t.Fatalf("equal value must still roll to previous: bid=%v prev=%v", tk.Bid, tk.PrevBid)
	}
	if tk.BidSize != 300 || tk.PrevBidSize != 500 {
		t.Fatalf("size pairing broken: %v prev %v", tk.BidSize, tk.PrevBidSize)
	}
}

func TestPrevValueSequence(t *testing.T) {
	r, _ := newTestRegistry()
	r.Subscribe(3, aaplStock())

	r.ApplyTickPrice(3, tickLast, 100, 1)
	r.ApplyTickPrice(3, tickLast, 101, 1)
	r.ApplyTickPrice(3, tickLast, 102, 1)

	tk, _ := r.Ticker(3)
	if tk.Last != 102 || tk.PrevLast != 101 {
		t.Fatalf("last=%v prev=%v", tk.Last, tk.PrevLast)
	}
}

func TestEmptyPriceSentinel(t *testing.T) {
	r, _ := newTestRegistry()
	r.Subscribe(3, aaplStock())
	r.ApplyTickPrice(3, tickAsk, -1, math.NaN())

	tk, _ := r.Ticker(3)
	if !math.IsNaN(tk.Ask) {
		t.Fatalf("no-quote sentinel leaked through: %v", tk.Ask)
	}
}

func TestUnknownTickTypeErrors(t *testing.T) {
	r, _ := newTestRegistry()
	r.Subscribe(3, aaplStock())

	err := r.ApplyTickPrice(3, 9999, 1, 1)
	ute, ok := err.(*UnknownTickError)
	if !ok {
		t.Fatalf("error = %v, want UnknownTickError", err)
	}
	if ute.Code != 9999 || ute.ReqID != 3 {
		t.Fatalf("bad error payload: %+v", ute)
	}
	if err := r.ApplyTickGeneric(3, 9999, 1); err == nil {
		t.Fatalf("generic unknown code must error")
	}
}

func TestLateTickAfterUnsubscribeIgnored(t *testing.T) {
	r, bus := newTestRegistry()
	count := 0
	bus.Subscribe(events.KindTicker, func(events.Event) { count++ })

	r.Subscribe(3, aaplStock())
	r.Unsubscribe(3)
	r.Unsubscribe(3) // repeat cancel is a no-op

	if err := r.ApplyTickPrice(3, tickBid, 10, 1); err != nil {
		t.Fatalf("late tick must be dropped silently: %v", err)
	}
	if count != 0 {
		t.Fatalf("late tick published an event")
	}
}

func TestTickerEventPublished(t *testing.T) {
	r, bus := newTestRegistry()
	var ids []int64
	bus.Subscribe(events.KindTicker, func(ev events.Event) { ids = append(ids, ev.TickerReqID) })

	r.Subscribe(3, aaplStock())
	r.ApplyTickPrice(3, tickBid, 10, 1)
	r.ApplyTickSize(3, tickVolume, 1000)

	if len(ids) != 2 || ids[0] != 3 || ids[1] != 3 {
		t.Fatalf("events = %v", ids)
	}
}

func TestGreeksSlots(t *testing.T) {
	r, _ := newTestRegistry()
	r.Subscribe(3, aaplStock())

	g := models.OptionGreeks{ImpliedVol: 0.3, Delta: 0.5, Gamma: 0.01}
	if err := r.ApplyGreeks(3, tickModelGreeks, g); err != nil {
		t.Fatalf("apply: %v", err)
	}
	tk, _ := r.Ticker(3)
	if tk.ModelGreeks == nil || tk.ModelGreeks.Delta != 0.5 {
		t.Fatalf("model greeks not stored: %+v", tk.ModelGreeks)
	}
	if tk.BidGreeks != nil {
		t.Fatalf("wrong slot populated")
	}
}

func TestDepthLadder(t *testing.T) {
	r, _ := newTestRegistry()
	r.Subscribe(5, aaplStock())

	row := func(pos, op, side int, price float64, size int64) protocol.MarketDepthMsg {
		return protocol.MarketDepthMsg{ReqID: 5, Position: pos, Operation: op, Side: side,
			Price: price, Size: decimal.NewFromInt(size)}
	}
	r.ApplyDepth(row(0, 0, 1, 229.99, 100)) // insert bid
	r.ApplyDepth(row(1, 0, 1, 229.98, 200))
	r.ApplyDepth(row(0, 0, 0, 230.01, 150)) // insert ask
	r.ApplyDepth(row(0, 1, 1, 230.00, 120)) // update best bid
	r.ApplyDepth(row(1, 2, 1, 0, 0))        // delete second bid

	bids, asks := r.Depth(5)
	if len(bids) != 1 || len(asks) != 1 {
		t.Fatalf("bids=%d asks=%d", len(bids), len(asks))
	}
	if bids[0].Price != 230.00 || !bids[0].Size.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("best bid = %+v", bids[0])
	}
}

func TestDepthClearedOnResetAndUnsubscribe(t *testing.T) {
	r, _ := newTestRegistry()
	r.Subscribe(5, aaplStock())
	r.ApplyDepth(protocol.MarketDepthMsg{ReqID: 5, Position: 0, Operation: 0, Side: 1,
		Price: 1, Size: decimal.NewFromInt(1)})

	r.ClearDepth(5)
	if bids, asks := r.Depth(5); len(bids) != 0 || len(asks) != 0 {
		t.Fatalf("ladder survived reset")
	}

	r.ApplyDepth(protocol.MarketDepthMsg{ReqID: 5, Position: 0, Operation: 0, Side: 0,
		Price: 2, Size: decimal.NewFromInt(1)})
	r.Unsubscribe(5)
	if bids, asks := r.Depth(5); len(bids) != 0 || len(asks) != 0 {
		t.Fatalf("ladder survived unsubscribe")
	}
}

func TestNegativePriceIsRealQuote(t *testing.T) {
	r, _ := newTestRegistry()
	r.Subscribe(3, models.Contract{ConID: 2, Symbol: "CL", SecType: models.SecTypeFuture,
		Exchange: "NYMEX", Currency: "USD"})

	// calendar spreads and some futures trade below zero
	if err := r.ApplyTickPrice(3, tickBid, -0.75, 10); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := r.ApplyTickPrice(3, tickAsk, -0.25, 10); err != nil {
		t.Fatalf("apply: %v", err)
	}

	tk, _ := r.Ticker(3)
	if !tk.HasBidAsk() {
		t.Fatalf("negative quote treated as empty: %+v", tk)
	}
	if mid := tk.Midpoint(math.NaN()); mid != -0.5 {
		t.Fatalf("midpoint = %v, want -0.5", mid)
	}
}

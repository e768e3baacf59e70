package ticks

import (
	"fmt"
	"strconv"
	"time"

	"ibmirror/internal/models"
)

// Tick type codes used by the gateway's market data stream. Delayed
// feeds report the same fields under their own codes.
const (
	tickBidSize   = 0
	tickBid       = 1
	tickAsk       = 2
	tickAskSize   = 3
	tickLast      = 4
	tickLastSize  = 5
	tickHigh      = 6
	tickLow       = 7
	tickVolume    = 8
	tickClose     = 9
	tickOpen      = 14
	tickHistVol   = 23
	tickImpliedVol = 24
	tickLastTime  = 45
	tickHalted    = 49

	tickBidGreeks   = 10
	tickAskGreeks   = 11
	tickLastGreeks  = 12
	tickModelGreeks = 13

	tickDelayedBidSize  = 69
	tickDelayedBid      = 66
	tickDelayedAsk      = 67
	tickDelayedAskSize  = 70
	tickDelayedLast     = 68
	tickDelayedLastSize = 71
	tickDelayedHigh     = 72
	tickDelayedLow      = 73
	tickDelayedVolume   = 74
	tickDelayedClose    = 75
	tickDelayedOpen     = 76

	tickDelayedBidGreeks   = 80
	tickDelayedAskGreeks   = 81
	tickDelayedLastGreeks  = 82
	tickDelayedModelGreeks = 83
)

// Ticker is the consolidated market data snapshot for one subscription.
// Every field keeps the value it held before the latest overwrite.
type Ticker struct {
	ReqID    int64
	Contract models.Contract
	Time     time.Time

	Bid      float64
	PrevBid  float64
	BidSize  float64
	PrevBidSize float64
	Ask      float64
	PrevAsk  float64
	AskSize  float64
	PrevAskSize float64
	Last     float64
	PrevLast float64
	LastSize float64
	PrevLastSize float64

	High   float64
	Low    float64
	Open   float64
	Close  float64
	Volume float64

	HistVolatility    float64
	ImpliedVolatility float64
	Halted            float64
	LastTimestamp     time.Time

	BidGreeks   *models.OptionGreeks
	AskGreeks   *models.OptionGreeks
	LastGreeks  *models.OptionGreeks
	ModelGreeks *models.OptionGreeks

	// configured no-quote sentinel, so emptiness checks do not mistake
	// a legitimately negative price for a missing one
	empty float64
}

// HasBidAsk reports whether both sides of the book have real quotes.
func (t *Ticker) HasBidAsk() bool {
	return !t.isEmpty(t.Bid) && !t.isEmpty(t.Ask)
}

// Midpoint is the bid/ask average, or the empty value when one side is
// missing.
func (t *Ticker) Midpoint(empty float64) float64 {
	if !t.HasBidAsk() {
		return empty
	}
	return (t.Bid + t.Ask) / 2
}

func (t *Ticker) isEmpty(v float64) bool {
	return v != v || v == t.empty
}

// parseUnix reads a seconds-since-epoch timestamp string.
func parseUnix(s string, loc *time.Location) (time.Time, error) {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(sec, 0).In(loc), nil
}

// UnknownTickError reports a tick type code this client does not map.
type UnknownTickError struct {
	ReqID int64
	Code  int
}

func (e *UnknownTickError) Error() string {
	return fmt.Sprintf("req %d: unknown tick type %d", e.ReqID, e.Code)
}

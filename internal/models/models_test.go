package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestContractKeyStableAcrossCopies(t *testing.T) {
	a := Contract{ConID: 1, Symbol: "ES", SecType: SecTypeFuture, Exchange: "CME", Currency: "USD"}
	b := a
	if a.Key() != b.Key() {
		t.Fatalf("identical contracts hash differently")
	}
	b.Strike = 4100
	if a.Key() == b.Key() {
		t.Fatalf("strike change must change the key")
	}
}

func TestStatusDoneAndActive(t *testing.T) {
	for _, s := range []Status{StatusFilled, StatusCancelled, StatusApiCancelled, StatusInactive} {
		if !s.Done() || s.Active() {
			t.Errorf("%s must be terminal", s)
		}
	}
	for _, s := range []Status{StatusPendingSubmit, StatusPreSubmitted, StatusSubmitted, StatusPendingCancel} {
		if s.Done() || !s.Active() {
			t.Errorf("%s must be active", s)
		}
	}
}

func TestTradeQuantities(t *testing.T) {
	tr := Trade{
		Order: NewLimitOrder(ActionBuy, decimal.NewFromInt(10), decimal.NewFromInt(100)),
		Fills: []Fill{
			{Execution: Execution{Shares: decimal.NewFromInt(4)}},
			{Execution: Execution{Shares: decimal.NewFromInt(3)}},
		},
	}
	if !tr.FilledQuantity().Equal(decimal.NewFromInt(7)) {
		t.Fatalf("filled = %s", tr.FilledQuantity())
	}
	if !tr.RemainingQuantity().Equal(decimal.NewFromInt(3)) {
		t.Fatalf("remaining = %s", tr.RemainingQuantity())
	}
}

func TestGreeksElementwise(t *testing.T) {
	long := OptionGreeks{Delta: 0.5, Gamma: 0.02, Vega: 0.10, Theta: -0.03}
	short := OptionGreeks{Delta: 0.3, Gamma: 0.01, Vega: 0.05, Theta: -0.01}

	spread := long.Sub(short)
	if spread.Delta != 0.2 || spread.Gamma != 0.01 {
		t.Fatalf("sub: %+v", spread)
	}

	twoLots := long.Scale(2)
	if twoLots.Delta != 1.0 || twoLots.Theta != -0.06 {
		t.Fatalf("scale: %+v", twoLots)
	}

	combined := long.Add(short)
	if combined.Delta != 0.8 {
		t.Fatalf("add: %+v", combined)
	}
}

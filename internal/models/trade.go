package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeLogEntry records one status change, fill or validation failure.
// The log is append-only.
type TradeLogEntry struct {
	Time      time.Time `json:"time"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	ErrorCode int       `json:"error_code,omitempty"`
}

// Trade aggregates an order, its latest server status, its fills and its
// history. Created on submit or discovered during resync.
type Trade struct {
	Contract Contract        `json:"contract"`
	Order    Order           `json:"order"`
	Status   OrderStatus     `json:"status"`
	Fills    []Fill          `json:"fills"`
	Log      []TradeLogEntry `json:"log"`
}

func (t *Trade) IsDone() bool {
	return t.Status.Status.Done()
}

func (t *Trade) IsActive() bool {
	return t.Status.Status.Active()
}

// FilledQuantity sums the shares over all fills.
func (t *Trade) FilledQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, f := range t.Fills {
		total = total.Add(f.Execution.Shares)
	}
	return total
}

// RemainingQuantity is the requested quantity minus what has filled.
func (t *Trade) RemainingQuantity() decimal.Decimal {
	return t.Order.TotalQuantity.Sub(t.FilledQuantity())
}

// Position is one account's holding in a contract. Last write wins.
type Position struct {
	Account  string          `json:"account"`
	Contract Contract        `json:"contract"`
	Quantity decimal.Decimal `json:"quantity"`
	AvgCost  decimal.Decimal `json:"avg_cost"`
}

// AccountValue is one account metric keyed by (account, tag, currency).
type AccountValue struct {
	Account  string `json:"account"`
	Tag      string `json:"tag"`
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

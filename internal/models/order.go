package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderAction string
type OrderType string
type TimeInForce string

const (
	ActionBuy  OrderAction = "BUY"
	ActionSell OrderAction = "SELL"

	OrderTypeMarket    OrderType = "MKT"
	OrderTypeLimit     OrderType = "LMT"
	OrderTypeStop      OrderType = "STP"
	OrderTypeStopLimit OrderType = "STP LMT"

	TIFGoodTillCancel TimeInForce = "GTC"
	TIFDay            TimeInForce = "DAY"
	TIFImmediate      TimeInForce = "IOC"
)

// Order is the caller's intent. The caller owns it until submitted; after
// that the authoritative copy lives inside the session's Trade.
type Order struct {
	OrderID       int64               `json:"order_id"`
	ClientID      int64               `json:"client_id"`
	PermID        int64               `json:"perm_id"`
	Action        OrderAction         `json:"action"`
	TotalQuantity decimal.Decimal     `json:"total_quantity"`
	OrderType     OrderType           `json:"order_type"`
	LmtPrice      decimal.NullDecimal `json:"lmt_price"`
	AuxPrice      decimal.NullDecimal `json:"aux_price"`
	TIF           TimeInForce         `json:"tif"`
	ParentID      int64               `json:"parent_id"`
	OrderRef      string              `json:"order_ref"`
	Account       string              `json:"account"`
	OutsideRTH    bool                `json:"outside_rth"`
	Hidden        bool                `json:"hidden"`
	Transmit      bool                `json:"transmit"`
}

func price(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: v, Valid: true}
}

func NewLimitOrder(action OrderAction, qty, lmtPrice decimal.Decimal) Order {
	return Order{
		Action:        action,
		TotalQuantity: qty,
		OrderType:     OrderTypeLimit,
		LmtPrice:      price(lmtPrice),
		TIF:           TIFGoodTillCancel,
		Transmit:      true,
	}
}

func NewMarketOrder(action OrderAction, qty decimal.Decimal) Order {
	return Order{
		Action:        action,
		TotalQuantity: qty,
		OrderType:     OrderTypeMarket,
		TIF:           TIFGoodTillCancel,
		Transmit:      true,
	}
}

func NewStopOrder(action OrderAction, qty, stopPrice decimal.Decimal) Order {
	return Order{
		Action:        action,
		TotalQuantity: qty,
		OrderType:     OrderTypeStop,
		AuxPrice:      price(stopPrice),
		TIF:           TIFGoodTillCancel,
		Transmit:      true,
	}
}

// Status is the server-reported order state.
type Status string

const (
	StatusPendingSubmit Status = "PendingSubmit"
	StatusPendingCancel Status = "PendingCancel"
	StatusPreSubmitted  Status = "PreSubmitted"
	StatusSubmitted     Status = "Submitted"
	StatusApiCancelled  Status = "ApiCancelled"
	StatusCancelled     Status = "Cancelled"
	StatusFilled        Status = "Filled"
	StatusInactive      Status = "Inactive"

	// StatusValidationError is a local annotation: a precondition failed
	// before transmission or the server flagged the request as advisory.
	// The order itself stays live at the broker.
	StatusValidationError Status = "ValidationError"
)

var doneStatuses = map[Status]bool{
	StatusFilled:       true,
	StatusCancelled:    true,
	StatusApiCancelled: true,
	StatusInactive:     true,
}

// Done reports whether the status is terminal.
func (s Status) Done() bool {
	return doneStatuses[s]
}

// Active reports whether the order can still execute.
func (s Status) Active() bool {
	switch s {
	case StatusPendingSubmit, StatusPendingCancel, StatusPreSubmitted,
		StatusSubmitted, StatusValidationError:
		return true
	}
	return false
}

// OrderStatus carries the server-confirmed state for one order id.
type OrderStatus struct {
	OrderID       int64           `json:"order_id"`
	Status        Status          `json:"status"`
	Filled        decimal.Decimal `json:"filled"`
	Remaining     decimal.Decimal `json:"remaining"`
	AvgFillPrice  decimal.Decimal `json:"avg_fill_price"`
	PermID        int64           `json:"perm_id"`
	ParentID      int64           `json:"parent_id"`
	LastFillPrice decimal.Decimal `json:"last_fill_price"`
	ClientID      int64           `json:"client_id"`
	WhyHeld       string          `json:"why_held"`
	MktCapPrice   decimal.Decimal `json:"mkt_cap_price"`
}

// Execution is an immutable record of a partial or full fill.
type Execution struct {
	ExecID   string          `json:"exec_id"`
	OrderID  int64           `json:"order_id"`
	ClientID int64           `json:"client_id"`
	PermID   int64           `json:"perm_id"`
	Time     time.Time       `json:"time"`
	Account  string          `json:"account"`
	Exchange string          `json:"exchange"`
	Side     string          `json:"side"`
	Shares   decimal.Decimal `json:"shares"`
	Price    decimal.Decimal `json:"price"`
	CumQty   decimal.Decimal `json:"cum_qty"`
	AvgPrice decimal.Decimal `json:"avg_price"`
}

// CommissionReport arrives separately from the execution it belongs to and
// is merged into the fill by ExecID.
type CommissionReport struct {
	ExecID      string          `json:"exec_id"`
	Commission  decimal.Decimal `json:"commission"`
	Currency    string          `json:"currency"`
	RealizedPNL decimal.Decimal `json:"realized_pnl"`
}

type Fill struct {
	Contract   Contract         `json:"contract"`
	Execution  Execution        `json:"execution"`
	Commission CommissionReport `json:"commission"`
	Time       time.Time        `json:"time"`
}

package protocol

import (
	"time"

	"github.com/shopspring/decimal"

	"ibmirror/internal/models"
)

// Message is one decoded inbound frame.
type Message interface {
	kind() int
}

type TickPrice struct {
	ReqID    int64
	TickType int
	Price    float64
	Size     float64
}

type TickSize struct {
	ReqID    int64
	TickType int
	Size     float64
}

type TickGeneric struct {
	ReqID    int64
	TickType int
	Value    float64
}

type TickString struct {
	ReqID    int64
	TickType int
	Value    string
}

type TickOptionComputation struct {
	ReqID    int64
	TickType int
	Greeks   models.OptionGreeks
}

type TickSnapshotEnd struct {
	ReqID int64
}

type OrderStatusMsg struct {
	Status models.OrderStatus
}

type OpenOrderMsg struct {
	Contract models.Contract
	Order    models.Order
	Status   models.Status
}

type OpenOrderEnd struct{}

type ErrMsg struct {
	ReqID   int64
	Code    int
	Message string
}

type AcctValueMsg struct {
	Value models.AccountValue
}

type AcctUpdateTime struct {
	Time string
}

type AcctDownloadEnd struct {
	Account string
}

type NextValidID struct {
	OrderID int64
}

type ManagedAccounts struct {
	Accounts []string
}

type ExecutionMsg struct {
	ReqID     int64
	Contract  models.Contract
	Execution models.Execution
}

type ExecutionEnd struct {
	ReqID int64
}

type CommissionReportMsg struct {
	Report models.CommissionReport
}

type PositionMsg struct {
	Position models.Position
}

type PositionEnd struct{}

type MarketDepthMsg struct {
	ReqID       int64
	Position    int
	MarketMaker string
	Operation   int // 0 insert, 1 update, 2 delete
	Side        int // 0 ask, 1 bid
	Price       float64
	Size        decimal.Decimal
}

type CurrentTime struct {
	Time time.Time
}

func (TickPrice) kind() int             { return InTickPrice }
func (TickSize) kind() int              { return InTickSize }
func (TickGeneric) kind() int           { return InTickGeneric }
func (TickString) kind() int            { return InTickString }
func (TickOptionComputation) kind() int { return InTickOptComp }
func (TickSnapshotEnd) kind() int       { return InTickSnapshotEnd }
func (OrderStatusMsg) kind() int        { return InOrderStatus }
func (OpenOrderMsg) kind() int          { return InOpenOrder }
func (OpenOrderEnd) kind() int          { return InOpenOrderEnd }
func (ErrMsg) kind() int                { return InErrMsg }
func (AcctValueMsg) kind() int          { return InAcctValue }
func (AcctUpdateTime) kind() int        { return InAcctUpdateTime }
func (AcctDownloadEnd) kind() int       { return InAcctDownloadEnd }
func (NextValidID) kind() int           { return InNextValidID }
func (ManagedAccounts) kind() int       { return InManagedAccounts }
func (ExecutionMsg) kind() int          { return InExecution }
func (ExecutionEnd) kind() int          { return InExecutionEnd }
func (CommissionReportMsg) kind() int   { return InCommissionReport }
func (PositionMsg) kind() int           { return InPosition }
func (PositionEnd) kind() int           { return InPositionEnd }
func (MarketDepthMsg) kind() int        { return InMarketDepth }
func (CurrentTime) kind() int           { return InCurrentTime }

package protocol

import (
	"ibmirror/internal/models"
)

// Encoder builds outbound request payloads. The negotiated server version
// gates optional trailing fields.
type Encoder struct {
	ServerVersion int
}

func NewEncoder(serverVersion int) *Encoder {
	return &Encoder{ServerVersion: serverVersion}
}

func writeContract(w *fieldWriter, c models.Contract) {
	w.int64(c.ConID)
	w.str(c.Symbol)
	w.str(string(c.SecType))
	w.str(c.Expiry)
	w.float(c.Strike)
	w.str(c.Right)
	w.str(c.Multiplier)
	w.str(c.Exchange)
	w.str(c.PrimaryExchange)
	w.str(c.Currency)
	w.str(c.LocalSymbol)
	w.str(c.TradingClass)
}

// StartAPI concludes the handshake; no other request is valid before it.
func (e *Encoder) StartAPI(clientID int64) []byte {
	w := &fieldWriter{}
	w.int(OutStartAPI).int(2).int64(clientID).str("")
	return w.payload()
}

func (e *Encoder) ReqIDs() []byte {
	w := &fieldWriter{}
	w.int(OutReqIDs).int(1).int(1)
	return w.payload()
}

func (e *Encoder) ReqCurrentTime() []byte {
	w := &fieldWriter{}
	w.int(OutReqCurrentTime).int(1)
	return w.payload()
}

func (e *Encoder) PlaceOrder(orderID int64, c models.Contract, o models.Order) []byte {
	w := &fieldWriter{}
	w.int(OutPlaceOrder).int64(orderID)
	writeContract(w, c)
	w.str(string(o.Action))
	w.decimal(o.TotalQuantity)
	w.str(string(o.OrderType))
	w.nullDecimal(o.LmtPrice)
	w.nullDecimal(o.AuxPrice)
	w.str(string(o.TIF))
	w.int64(o.ParentID)
	if e.ServerVersion >= minVerOrderRef {
		w.str(o.OrderRef)
	}
	w.str(o.Account)
	w.bool(o.OutsideRTH)
	w.bool(o.Hidden)
	w.bool(o.Transmit)
	return w.payload()
}

func (e *Encoder) CancelOrder(orderID int64) []byte {
	w := &fieldWriter{}
	w.int(OutCancelOrder).int(1).int64(orderID)
	return w.payload()
}

func (e *Encoder) ReqOpenOrders() []byte {
	w := &fieldWriter{}
	w.int(OutReqOpenOrders).int(1)
	return w.payload()
}

func (e *Encoder) ReqAccountUpdates(subscribe bool, account string) []byte {
	w := &fieldWriter{}
	w.int(OutReqAcctUpdates).int(2).bool(subscribe).str(account)
	return w.payload()
}

func (e *Encoder) ReqExecutions(reqID int64) []byte {
	w := &fieldWriter{}
	// empty execution filter: client id, account, time, symbol, secType,
	// exchange, side
	w.int(OutReqExecutions).int(3).int64(reqID)
	w.str("").str("").str("").str("").str("").str("")
	return w.payload()
}

func (e *Encoder) ReqMktData(reqID int64, c models.Contract, genericTicks string, snapshot bool) []byte {
	w := &fieldWriter{}
	w.int(OutReqMktData).int(11).int64(reqID)
	writeContract(w, c)
	w.str(genericTicks)
	w.bool(snapshot)
	return w.payload()
}

func (e *Encoder) CancelMktData(reqID int64) []byte {
	w := &fieldWriter{}
	w.int(OutCancelMktData).int(2).int64(reqID)
	return w.payload()
}

func (e *Encoder) ReqMktDepth(reqID int64, c models.Contract, numRows int) []byte {
	w := &fieldWriter{}
	w.int(OutReqMktDepth).int(5).int64(reqID)
	writeContract(w, c)
	w.int(numRows)
	return w.payload()
}

func (e *Encoder) CancelMktDepth(reqID int64) []byte {
	w := &fieldWriter{}
	w.int(OutCancelMktDepth).int(1).int64(reqID)
	return w.payload()
}

func (e *Encoder) ReqPositions() []byte {
	w := &fieldWriter{}
	w.int(OutReqPositions).int(1)
	return w.payload()
}

func (e *Encoder) CancelPositions() []byte {
	w := &fieldWriter{}
	w.int(OutCancelPositions).int(1)
	return w.payload()
}

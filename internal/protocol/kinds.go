// Package protocol implements the gateway wire format: length-prefixed
// frames of NUL-terminated ASCII fields, versioned per message kind.
package protocol

// Outgoing request kinds.
const (
	OutReqMktData       = 1
	OutCancelMktData    = 2
	OutPlaceOrder       = 3
	OutCancelOrder      = 4
	OutReqOpenOrders    = 5
	OutReqAcctUpdates   = 6
	OutReqExecutions    = 7
	OutReqIDs           = 8
	OutReqMktDepth      = 10
	OutCancelMktDepth   = 11
	OutReqCurrentTime   = 49
	OutReqPositions     = 61
	OutCancelPositions  = 64
	OutStartAPI         = 71
)

// Incoming message kinds.
const (
	InTickPrice        = 1
	InTickSize         = 2
	InOrderStatus      = 3
	InErrMsg           = 4
	InOpenOrder        = 5
	InAcctValue        = 6
	InAcctUpdateTime   = 8
	InNextValidID      = 9
	InExecution        = 11
	InMarketDepth      = 12
	InMarketDepthL2    = 13
	InManagedAccounts  = 15
	InTickOptComp      = 21
	InTickGeneric      = 45
	InTickString       = 46
	InCurrentTime      = 49
	InOpenOrderEnd     = 53
	InAcctDownloadEnd  = 54
	InExecutionEnd     = 55
	InTickSnapshotEnd  = 57
	InCommissionReport = 59
	InPosition         = 61
	InPositionEnd      = 62
)

// Client protocol version range offered during the handshake.
const (
	MinClientVersion = 157
	MaxClientVersion = 178
)

// Server version gates for optional fields.
const (
	// minVerMktCapPrice: orderStatus carries a trailing mktCapPrice field.
	minVerMktCapPrice = 163
	// minVerOrderRef: placeOrder accepts a caller reference string.
	minVerOrderRef = 157
)

// Advisory error codes whose messages route to the related entity's log
// instead of failing a request. The set is venue-defined and has shifted
// with observed server behavior; callers may override it per session.
var DefaultAdvisoryCodes = map[int]bool{
	105: true, 110: true, 165: true, 321: true, 329: true,
	399: true, 404: true, 434: true, 492: true, 10167: true,
}

// IsAdvisoryCode also treats the 2100-2199 notification band as advisory.
func IsAdvisoryCode(code int, overrides map[int]bool) bool {
	if overrides != nil {
		if v, ok := overrides[code]; ok {
			return v
		}
	}
	if DefaultAdvisoryCodes[code] {
		return true
	}
	return code >= 2100 && code < 2200
}

// Codes with side effects beyond logging.
const (
	CodeDepthReset    = 317 // market depth data has been reset
	CodeOrderCanceled = 202 // order cancelled by the server
)

package protocol

import (
	"fmt"
	"strings"
	"time"

	"ibmirror/internal/models"
)

// Decoder turns inbound frame payloads into typed messages. Unknown or
// newer message kinds decode to (nil, nil) so one unrecognized push never
// fails the stream; malformed payloads of known kinds are protocol errors.
type Decoder struct {
	ServerVersion int
	Defaults      Defaults
}

func NewDecoder(serverVersion int, d Defaults) *Decoder {
	return &Decoder{ServerVersion: serverVersion, Defaults: d}
}

const executionTimeLayout = "20060102-15:04:05"

func (dc *Decoder) Decode(payload []byte) (Message, error) {
	r := newFieldReader(payload, dc.Defaults)
	kind := r.int()
	if r.err != nil {
		return nil, fmt.Errorf("unreadable message kind: %w", r.err)
	}

	var msg Message
	switch kind {
	case InTickPrice:
		r.int() // version
		msg = TickPrice{
			ReqID:    r.int64(),
			TickType: r.int(),
			Price:    r.float(),
			Size:     r.float(),
		}
	case InTickSize:
		r.int()
		msg = TickSize{ReqID: r.int64(), TickType: r.int(), Size: r.float()}
	case InTickGeneric:
		r.int()
		msg = TickGeneric{ReqID: r.int64(), TickType: r.int(), Value: r.float()}
	case InTickString:
		r.int()
		msg = TickString{ReqID: r.int64(), TickType: r.int(), Value: r.str()}
	case InTickOptComp:
		r.int()
		msg = TickOptionComputation{
			ReqID:    r.int64(),
			TickType: r.int(),
			Greeks: models.OptionGreeks{
				ImpliedVol: dc.greek(r.float(), -1),
				Delta:      dc.greek(r.float(), -2),
				OptPrice:   dc.greek(r.float(), -1),
				PvDividend: dc.greek(r.float(), -1),
				Gamma:      dc.greek(r.float(), -2),
				Vega:       dc.greek(r.float(), -2),
				Theta:      dc.greek(r.float(), -2),
				UndPrice:   dc.greek(r.float(), -1),
			},
		}
	case InTickSnapshotEnd:
		r.int()
		msg = TickSnapshotEnd{ReqID: r.int64()}
	case InOrderStatus:
		r.int()
		st := models.OrderStatus{
			OrderID:       r.int64(),
			Status:        models.Status(r.str()),
			Filled:        r.decimal(),
			Remaining:     r.decimal(),
			AvgFillPrice:  r.decimal(),
			PermID:        r.int64(),
			ParentID:      r.int64(),
			LastFillPrice: r.decimal(),
			ClientID:      r.int64(),
			WhyHeld:       r.str(),
		}
		if dc.ServerVersion >= minVerMktCapPrice {
			st.MktCapPrice = r.decimal()
		}
		msg = OrderStatusMsg{Status: st}
	case InErrMsg:
		r.int()
		msg = ErrMsg{ReqID: r.int64(), Code: r.int(), Message: r.str()}
	case InOpenOrder:
		r.int()
		orderID := r.int64()
		contract := readContract(r)
		order := models.Order{
			OrderID:       orderID,
			Action:        models.OrderAction(r.str()),
			TotalQuantity: r.decimal(),
			OrderType:     models.OrderType(r.str()),
			LmtPrice:      r.nullDecimal(),
			AuxPrice:      r.nullDecimal(),
			TIF:           models.TimeInForce(r.str()),
			ParentID:      r.int64(),
			OrderRef:      r.str(),
			ClientID:      r.int64(),
			PermID:        r.int64(),
			OutsideRTH:    r.bool(),
			Hidden:        r.bool(),
			Account:       r.str(),
			Transmit:      true,
		}
		msg = OpenOrderMsg{
			Contract: contract,
			Order:    order,
			Status:   models.Status(r.str()),
		}
	case InOpenOrderEnd:
		r.int()
		msg = OpenOrderEnd{}
	case InAcctValue:
		r.int()
		msg = AcctValueMsg{Value: models.AccountValue{
			Tag:      r.str(),
			Value:    r.str(),
			Currency: r.str(),
			Account:  r.str(),
		}}
	case InAcctUpdateTime:
		r.int()
		msg = AcctUpdateTime{Time: r.str()}
	case InAcctDownloadEnd:
		r.int()
		msg = AcctDownloadEnd{Account: r.str()}
	case InNextValidID:
		r.int()
		msg = NextValidID{OrderID: r.int64()}
	case InManagedAccounts:
		r.int()
		list := r.str()
		var accounts []string
		for _, a := range strings.Split(list, ",") {
			if a != "" {
				accounts = append(accounts, a)
			}
		}
		msg = ManagedAccounts{Accounts: accounts}
	case InExecution:
		r.int()
		reqID := r.int64()
		orderID := r.int64()
		contract := readContract(r)
		exec := models.Execution{
			OrderID:  orderID,
			ExecID:   r.str(),
			Time:     dc.parseTime(r.str()),
			Account:  r.str(),
			Exchange: r.str(),
			Side:     r.str(),
			Shares:   r.decimal(),
			Price:    r.decimal(),
			PermID:   r.int64(),
			ClientID: r.int64(),
			CumQty:   r.decimal(),
			AvgPrice: r.decimal(),
		}
		msg = ExecutionMsg{ReqID: reqID, Contract: contract, Execution: exec}
	case InExecutionEnd:
		r.int()
		msg = ExecutionEnd{ReqID: r.int64()}
	case InCommissionReport:
		r.int()
		msg = CommissionReportMsg{Report: models.CommissionReport{
			ExecID:      r.str(),
			Commission:  r.decimal(),
			Currency:    r.str(),
			RealizedPNL: r.decimal(),
		}}
	case InPosition:
		r.int()
		account := r.str()
		contract := readContract(r)
		msg = PositionMsg{Position: models.Position{
			Account:  account,
			Contract: contract,
			Quantity: r.decimal(),
			AvgCost:  r.decimal(),
		}}
	case InPositionEnd:
		r.int()
		msg = PositionEnd{}
	case InMarketDepth:
		r.int()
		msg = MarketDepthMsg{
			ReqID:     r.int64(),
			Position:  r.int(),
			Operation: r.int(),
			Side:      r.int(),
			Price:     r.float(),
			Size:      r.decimal(),
		}
	case InMarketDepthL2:
		r.int()
		msg = MarketDepthMsg{
			ReqID:       r.int64(),
			Position:    r.int(),
			MarketMaker: r.str(),
			Operation:   r.int(),
			Side:        r.int(),
			Price:       r.float(),
			Size:        r.decimal(),
		}
	case InCurrentTime:
		r.int()
		msg = CurrentTime{Time: time.Unix(r.int64(), 0).In(dc.Defaults.Timezone)}
	default:
		// newer or unsupported kind: skip, never fail the stream
		return nil, nil
	}

	if r.err != nil {
		return nil, fmt.Errorf("message kind %d: %w", kind, r.err)
	}
	return msg, nil
}

// greek substitutes the per-field "not computed" sentinel.
func (dc *Decoder) greek(v, sentinel float64) float64 {
	if v == sentinel {
		return dc.Defaults.Unset
	}
	return v
}

func (dc *Decoder) parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(executionTimeLayout, s, dc.Defaults.Timezone)
	if err != nil {
		return time.Time{}
	}
	return t
}

// readContract consumes the 12-field contract tuple shared by every
// contract-carrying message.
func readContract(r *fieldReader) models.Contract {
	return models.Contract{
		ConID:           r.int64(),
		Symbol:          r.str(),
		SecType:         models.SecType(r.str()),
		Expiry:          r.str(),
		Strike:          r.float0(),
		Right:           r.str(),
		Multiplier:      r.str(),
		Exchange:        r.str(),
		PrimaryExchange: r.str(),
		Currency:        r.str(),
		LocalSymbol:     r.str(),
		TradingClass:    r.str(),
	}
}

package session

import (
	"github.com/sirupsen/logrus"

	"ibmirror/internal/events"
	"ibmirror/internal/protocol"
)

// onFrame runs on the connection's read goroutine, so the mirror has
// exactly one writer.
func (s *Session) onFrame(payload []byte) {
	s.mu.Lock()
	dec := s.dec
	s.mu.Unlock()
	if dec == nil {
		return
	}

	msg, err := dec.Decode(payload)
	if err != nil {
		// the stream cannot be trusted past an undecodable frame
		perr := &ProtocolError{Cause: err}
		s.logEntry().WithError(err).Error("Undecodable frame, dropping connection.")
		s.bus.Publish(events.Event{Type: events.KindError,
			Err: &events.ErrorEvent{Message: perr.Error()}})
		s.conn.Disconnect()
		return
	}
	if msg == nil {
		return
	}

	switch m := msg.(type) {
	case protocol.NextValidID:
		s.seq.Bump(m.OrderID)
		s.resolve(opNextValidID, nil)

	case protocol.ManagedAccounts:
		s.mirror.SetManagedAccounts(m.Accounts)
		s.resolve(opManagedAccounts, nil)

	case protocol.CurrentTime:
		s.mu.Lock()
		s.serverTime = m.Time
		s.mu.Unlock()
		s.resolve(opCurrentTime, nil)

	case protocol.OrderStatusMsg:
		s.mirror.ApplyOrderStatus(m.Status)

	case protocol.OpenOrderMsg:
		// orders seen from the server raise the id floor, so a fresh
		// session never reuses an id already live at the gateway
		s.seq.Bump(m.Order.OrderID + 1)
		s.mirror.ApplyOpenOrder(m.Contract, m.Order, m.Status)

	case protocol.OpenOrderEnd:
		s.resolve(opOpenOrders, nil)

	case protocol.ExecutionMsg:
		s.mirror.ApplyExecution(m.Contract, m.Execution)

	case protocol.ExecutionEnd:
		s.resolve(reqKey(m.ReqID), nil)

	case protocol.CommissionReportMsg:
		s.mirror.ApplyCommissionReport(m.Report)

	case protocol.PositionMsg:
		s.mirror.ApplyPosition(m.Position)

	case protocol.PositionEnd:
		s.resolve(opPositions, nil)

	case protocol.AcctValueMsg:
		s.mirror.ApplyAccountValue(m.Value)

	case protocol.AcctUpdateTime:
		s.mirror.SetAccountUpdateTime(m.Time)

	case protocol.AcctDownloadEnd:
		s.resolve(opAccountValues, nil)

	case protocol.TickPrice:
		s.tickErr(m.ReqID, s.ticks.ApplyTickPrice(m.ReqID, m.TickType, m.Price, m.Size))

	case protocol.TickSize:
		s.tickErr(m.ReqID, s.ticks.ApplyTickSize(m.ReqID, m.TickType, m.Size))

	case protocol.TickGeneric:
		s.tickErr(m.ReqID, s.ticks.ApplyTickGeneric(m.ReqID, m.TickType, m.Value))

	case protocol.TickString:
		s.tickErr(m.ReqID, s.ticks.ApplyTickString(m.ReqID, m.TickType, m.Value))

	case protocol.TickOptionComputation:
		s.tickErr(m.ReqID, s.ticks.ApplyGreeks(m.ReqID, m.TickType, m.Greeks))

	case protocol.TickSnapshotEnd:
		s.resolve(reqKey(m.ReqID), nil)

	case protocol.MarketDepthMsg:
		s.ticks.ApplyDepth(m)

	case protocol.ErrMsg:
		s.handleError(m)
	}
}

// tickErr surfaces unknown tick type codes instead of dropping them.
func (s *Session) tickErr(reqID int64, err error) {
	if err == nil {
		return
	}
	s.logEntry().WithError(err).WithField("req_id", reqID).Warn("Unhandled tick.")
	s.bus.Publish(events.Event{Type: events.KindError,
		Err: &events.ErrorEvent{ReqID: reqID, Message: err.Error()}})
}

// handleError routes a gateway error frame: advisory codes annotate,
// order errors land in the trade history, request errors resolve their
// waiting caller.
func (s *Session) handleError(m protocol.ErrMsg) {
	advisory := protocol.IsAdvisoryCode(m.Code, s.cfg.AdvisoryCodes)

	entry := s.logEntry().WithFields(logrus.Fields{
		"req_id": m.ReqID,
		"code":   m.Code,
	})
	if advisory {
		entry.Info(m.Message)
	} else {
		entry.Warn(m.Message)
	}

	switch {
	case m.Code == protocol.CodeDepthReset:
		// stale ladder must not survive a reset signal
		s.ticks.ClearDepth(m.ReqID)

	case m.ReqID >= 0 && !advisory:
		// a waiting request takes the error; otherwise the id is a live
		// order the server just dropped
		if !s.resolve(reqKey(m.ReqID), &RequestError{ReqID: m.ReqID, Code: m.Code, Message: m.Message}) {
			s.mirror.ApplyOrderError(m.ReqID, m.Code, m.Message, false)
		}

	case m.ReqID >= 0 && advisory:
		s.mirror.ApplyOrderError(m.ReqID, m.Code, m.Message, true)
	}

	s.bus.Publish(events.Event{Type: events.KindError, Err: &events.ErrorEvent{
		ReqID:    m.ReqID,
		Code:     m.Code,
		Message:  m.Message,
		Advisory: advisory,
	}})
}

// onDisconnect runs once per connection, for both deliberate and failed
// disconnects. Everything session-scoped is torn down: pending requests
// fail, the mirror and tickers clear, subscriptions are forgotten.
func (s *Session) onDisconnect(cause error) {
	var err error = ErrConnectionLost
	if cause != nil {
		err = &ConnectionError{Cause: cause}
		s.logEntry().WithError(cause).Warn("Connection lost.")
	} else {
		s.logEntry().Info("Disconnected.")
	}

	s.failAll(err)
	s.pacer.Reset()
	s.mirror.Reset()
	s.ticks.Reset()

	s.mu.Lock()
	s.ready = false
	s.mktData = make(map[int64]bool)
	s.depth = make(map[int64]bool)
	s.mu.Unlock()

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	s.bus.Publish(events.Event{Type: events.KindConnectivity,
		Connected: &events.ConnectivityEvent{Up: false, Reason: reason}})
}

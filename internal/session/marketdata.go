package session

import (
	"fmt"

	"ibmirror/internal/models"
	"ibmirror/internal/ticks"
)

// SubscribeMarketData starts a streaming quote subscription and returns
// the ticker tracking it. Tick updates arrive through ticker events.
func (s *Session) SubscribeMarketData(contract models.Contract, genericTicks string) (ticks.Ticker, error) {
	if !s.Ready() {
		return ticks.Ticker{}, fmt.Errorf("market data: session not ready")
	}

	reqID := s.seq.Next()
	t := s.ticks.Subscribe(reqID, contract)

	if err := s.send(s.encoder().ReqMktData(reqID, contract, genericTicks, false)); err != nil {
		s.ticks.Unsubscribe(reqID)
		return ticks.Ticker{}, err
	}

	s.mu.Lock()
	s.mktData[reqID] = true
	s.mu.Unlock()

	s.logEntry().WithField("req_id", reqID).Info("Market data subscribed.")
	return t, nil
}

// CancelMarketData stops a quote subscription and drops its ticker.
// Repeat cancellation is a no-op.
func (s *Session) CancelMarketData(reqID int64) error {
	s.mu.Lock()
	live := s.mktData[reqID]
	delete(s.mktData, reqID)
	s.mu.Unlock()
	if !live {
		return nil
	}

	s.ticks.Unsubscribe(reqID)
	if err := s.send(s.encoder().CancelMktData(reqID)); err != nil {
		return err
	}
	s.logEntry().WithField("req_id", reqID).Info("Market data cancelled.")
	return nil
}

// SubscribeMarketDepth starts an order book subscription.
func (s *Session) SubscribeMarketDepth(contract models.Contract, numRows int) (int64, error) {
	if !s.Ready() {
		return 0, fmt.Errorf("market depth: session not ready")
	}

	reqID := s.seq.Next()
	s.ticks.Subscribe(reqID, contract)

	if err := s.send(s.encoder().ReqMktDepth(reqID, contract, numRows)); err != nil {
		s.ticks.Unsubscribe(reqID)
		return 0, err
	}

	s.mu.Lock()
	s.depth[reqID] = true
	s.mu.Unlock()

	s.logEntry().WithField("req_id", reqID).Info("Market depth subscribed.")
	return reqID, nil
}

// CancelMarketDepth stops a depth subscription and clears its ladder
// synchronously. Repeat cancellation is a no-op.
func (s *Session) CancelMarketDepth(reqID int64) error {
	s.mu.Lock()
	live := s.depth[reqID]
	delete(s.depth, reqID)
	s.mu.Unlock()
	if !live {
		return nil
	}

	s.ticks.Unsubscribe(reqID)
	if err := s.send(s.encoder().CancelMktDepth(reqID)); err != nil {
		return err
	}
	s.logEntry().WithField("req_id", reqID).Info("Market depth cancelled.")
	return nil
}

package mirror

import (
	"time"

	"github.com/sirupsen/logrus"

	"ibmirror/internal/events"
	"ibmirror/internal/models"
)

// RegisterOrder records local intent at submit time: the trade starts in
// PendingSubmit before the gateway has said anything about it.
func (m *Mirror) RegisterOrder(contract models.Contract, order models.Order) models.Trade {
	m.mu.Lock()
	t := &models.Trade{
		Contract: contract,
		Order:    order,
		Status: models.OrderStatus{
			OrderID:   order.OrderID,
			ClientID:  order.ClientID,
			Status:    models.StatusPendingSubmit,
			Remaining: order.TotalQuantity,
		},
		Log: []models.TradeLogEntry{{
			Time:    time.Now(),
			Status:  models.StatusPendingSubmit,
			Message: "order submitted",
		}},
	}
	m.trades[order.OrderID] = t
	snap := copyTrade(t)
	m.mu.Unlock()

	m.publishTrade(snap)
	return snap
}

// ValidateModify checks a local modify against the authoritative trade
// before anything is transmitted. A failure is appended to the trade's
// history and changes nothing else.
func (m *Mirror) ValidateModify(order models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.trades[order.OrderID]
	if !ok {
		return &ValidationError{OrderID: order.OrderID, Reason: "modify of unknown order"}
	}

	var reason string
	switch {
	case t.Status.Status.Done():
		reason = "modify of a completed order"
	case order.ParentID != t.Order.ParentID:
		reason = "modify would overwrite server-assigned parent id"
	case order.PermID != 0 && t.Order.PermID != 0 && order.PermID != t.Order.PermID:
		reason = "modify carries a stale permanent id"
	case !order.TotalQuantity.IsPositive():
		reason = "modify quantity must be positive"
	}
	if reason == "" {
		return nil
	}

	t.Log = append(t.Log, models.TradeLogEntry{
		Time:    time.Now(),
		Status:  models.StatusValidationError,
		Message: reason,
	})
	m.logEntry().WithField("order_id", order.OrderID).Warn("Modify rejected: " + reason)
	return &ValidationError{OrderID: order.OrderID, Reason: reason}
}

// RegisterModify re-enters PendingSubmit after a validated local modify.
// Fills and history carry over.
func (m *Mirror) RegisterModify(order models.Order) (models.Trade, bool) {
	m.mu.Lock()
	t, ok := m.trades[order.OrderID]
	if !ok {
		m.mu.Unlock()
		return models.Trade{}, false
	}
	// server-owned identity fields survive the modify
	order.PermID = t.Order.PermID
	order.ParentID = t.Order.ParentID
	t.Order = order
	t.Status.Status = models.StatusPendingSubmit
	t.Log = append(t.Log, models.TradeLogEntry{
		Time:    time.Now(),
		Status:  models.StatusPendingSubmit,
		Message: "modify submitted",
	})
	snap := copyTrade(t)
	m.mu.Unlock()

	m.publishTrade(snap)
	return snap, true
}

// ApplyOpenOrder merges an openOrder push. Resync re-delivers known
// orders; an existing trade keeps its fills and history.
func (m *Mirror) ApplyOpenOrder(contract models.Contract, order models.Order, status models.Status) {
	m.mu.Lock()
	t, ok := m.trades[order.OrderID]
	if !ok {
		t = &models.Trade{}
		m.trades[order.OrderID] = t
	}
	t.Contract = contract
	t.Order = order
	if order.PermID != 0 {
		m.byPermID[order.PermID] = order.OrderID
		t.Status.PermID = order.PermID
	}

	changed := false
	if status != "" && status != t.Status.Status {
		if !CanTransition(t.Status.Status, status) {
			m.logEntry().WithFields(logrus.Fields{
				"order_id": order.OrderID,
				"from":     t.Status.Status,
				"to":       status,
			}).Warn("Ignoring illegal status transition.")
		} else {
			t.Status.OrderID = order.OrderID
			t.Status.ClientID = order.ClientID
			t.Status.Status = status
			t.Log = append(t.Log, models.TradeLogEntry{
				Time:   time.Now(),
				Status: status,
			})
			changed = true
		}
	}
	snap := copyTrade(t)
	m.mu.Unlock()

	if !ok || changed {
		m.publishTrade(snap)
	}
}

// ApplyOrderStatus merges a server status report, enforcing the
// transition graph. Exact duplicates are dropped without an event.
func (m *Mirror) ApplyOrderStatus(st models.OrderStatus) {
	m.mu.Lock()
	t, ok := m.trades[st.OrderID]
	if !ok {
		if orderID, aliased := m.byPermID[st.PermID]; aliased {
			t, ok = m.trades[orderID]
		}
	}
	if !ok {
		m.mu.Unlock()
		m.logEntry().WithField("order_id", st.OrderID).Debug("Status for unknown order dropped.")
		return
	}

	if st.PermID != 0 {
		m.byPermID[st.PermID] = t.Order.OrderID
	}

	cur := t.Status
	if cur.Status == st.Status &&
		cur.Filled.Equal(st.Filled) &&
		cur.Remaining.Equal(st.Remaining) &&
		cur.AvgFillPrice.Equal(st.AvgFillPrice) {
		m.mu.Unlock()
		return
	}
	if !CanTransition(cur.Status, st.Status) {
		m.mu.Unlock()
		m.logEntry().WithFields(logrus.Fields{
			"order_id": st.OrderID,
			"from":     cur.Status,
			"to":       st.Status,
		}).Warn("Ignoring illegal status transition.")
		return
	}

	t.Status = st
	if st.Status != cur.Status {
		t.Log = append(t.Log, models.TradeLogEntry{
			Time:   time.Now(),
			Status: st.Status,
		})
	}
	snap := copyTrade(t)
	m.mu.Unlock()

	m.publishTrade(snap)
}

// ApplyExecution appends a fill, deduplicated by execution id so resync
// replays never double-count.
func (m *Mirror) ApplyExecution(contract models.Contract, exec models.Execution) {
	m.mu.Lock()
	if _, seen := m.fills[exec.ExecID]; seen {
		m.mu.Unlock()
		return
	}
	t, ok := m.trades[exec.OrderID]
	if !ok {
		// execution for a trade placed by another client session
		t = &models.Trade{
			Contract: contract,
			Order:    models.Order{OrderID: exec.OrderID, ClientID: exec.ClientID, PermID: exec.PermID},
			Status: models.OrderStatus{
				OrderID:  exec.OrderID,
				ClientID: exec.ClientID,
				PermID:   exec.PermID,
			},
		}
		m.trades[exec.OrderID] = t
		if exec.PermID != 0 {
			m.byPermID[exec.PermID] = exec.OrderID
		}
	}

	fill := models.Fill{Contract: contract, Execution: exec, Time: exec.Time}
	t.Fills = append(t.Fills, fill)
	m.fills[exec.ExecID] = fillRef{orderID: exec.OrderID, index: len(t.Fills) - 1}
	t.Log = append(t.Log, models.TradeLogEntry{
		Time:    exec.Time,
		Status:  t.Status.Status,
		Message: "fill " + exec.Shares.String() + "@" + exec.Price.String(),
	})
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.KindFill, Fill: &fill})
}

// ApplyCommissionReport joins a commission report onto its fill.
func (m *Mirror) ApplyCommissionReport(rep models.CommissionReport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.fills[rep.ExecID]
	if !ok {
		m.logEntry().WithField("exec_id", rep.ExecID).Debug("Commission report without matching fill.")
		return
	}
	if t, ok := m.trades[ref.orderID]; ok && ref.index < len(t.Fills) {
		t.Fills[ref.index].Commission = rep
	}
}

// ApplyOrderError records a gateway error against the trade. Advisory
// codes annotate the status as ValidationError while the order stays
// live at the server; a hard error on a non-done trade means the server
// dropped the order.
func (m *Mirror) ApplyOrderError(orderID int64, code int, message string, advisory bool) {
	m.mu.Lock()
	t, ok := m.trades[orderID]
	if !ok {
		m.mu.Unlock()
		return
	}
	// a done trade is read-only; late errors only land in its log
	changed := false
	if !t.Status.Status.Done() {
		if advisory {
			t.Status.Status = models.StatusValidationError
		} else {
			t.Status.Status = models.StatusCancelled
		}
		changed = true
	}
	t.Log = append(t.Log, models.TradeLogEntry{
		Time:      time.Now(),
		Status:    t.Status.Status,
		Message:   message,
		ErrorCode: code,
	})
	snap := copyTrade(t)
	m.mu.Unlock()

	if changed {
		m.log.WithOrderID(orderID).WithFields(logrus.Fields{
			"code":   code,
			"status": snap.Status.Status,
		}).Warn(message)
		m.publishTrade(snap)
	}
}

// ApplyPosition is last-write-wins; a zero quantity removes the holding.
func (m *Mirror) ApplyPosition(p models.Position) {
	key := posKey{account: p.Account, conID: p.Contract.ConID}

	m.mu.Lock()
	old, existed := m.positions[key]
	if p.Quantity.IsZero() {
		if !existed {
			m.mu.Unlock()
			return
		}
		delete(m.positions, key)
	} else {
		if existed && old.Quantity.Equal(p.Quantity) && old.AvgCost.Equal(p.AvgCost) {
			m.mu.Unlock()
			return
		}
		m.positions[key] = p
	}
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.KindPosition, Position: &p})
}

// ApplyAccountValue upserts one account metric.
func (m *Mirror) ApplyAccountValue(v models.AccountValue) {
	key := acctKey{account: v.Account, tag: v.Tag, currency: v.Currency}

	m.mu.Lock()
	if old, ok := m.accountValues[key]; ok && old.Value == v.Value {
		m.mu.Unlock()
		return
	}
	m.accountValues[key] = v
	m.mu.Unlock()

	m.bus.Publish(events.Event{Type: events.KindAccountValue, AccountValue: &v})
}

// SetManagedAccounts records the account list announced at session start.
func (m *Mirror) SetManagedAccounts(accounts []string) {
	m.mu.Lock()
	m.accounts = append([]string(nil), accounts...)
	m.mu.Unlock()
}

// SetAccountUpdateTime records the gateway timestamp of the last account
// snapshot.
func (m *Mirror) SetAccountUpdateTime(ts string) {
	m.mu.Lock()
	m.acctTime = ts
	m.mu.Unlock()
}

func (m *Mirror) publishTrade(t models.Trade) {
	m.bus.Publish(events.Event{Type: events.KindOrderStatus, Trade: &t})
}

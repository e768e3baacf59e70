package mirror

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"ibmirror/internal/events"
	"ibmirror/internal/logger"
	"ibmirror/internal/models"
)

type posKey struct {
	account string
	conID   int64
}

type acctKey struct {
	account  string
	tag      string
	currency string
}

// fillRef locates one fill inside a trade, for commission report joins.
type fillRef struct {
	orderID int64
	index   int
}

// Mirror is the in-memory copy of server-side state. All mutation comes
// through the Apply* methods, which the dispatch goroutine calls serially;
// the lock only shields concurrent readers.
type Mirror struct {
	log *logger.Logger
	bus *events.Bus

	mu            sync.RWMutex
	trades        map[int64]*models.Trade
	byPermID      map[int64]int64
	fills         map[string]fillRef
	positions     map[posKey]models.Position
	accountValues map[acctKey]models.AccountValue
	accounts      []string
	acctTime      string
}

func New(log *logger.Logger, bus *events.Bus) *Mirror {
	m := &Mirror{log: log, bus: bus}
	m.init()
	return m
}

func (m *Mirror) init() {
	m.trades = make(map[int64]*models.Trade)
	m.byPermID = make(map[int64]int64)
	m.fills = make(map[string]fillRef)
	m.positions = make(map[posKey]models.Position)
	m.accountValues = make(map[acctKey]models.AccountValue)
	m.accounts = nil
	m.acctTime = ""
}

func (m *Mirror) logEntry() *logrus.Entry {
	return m.log.WithComponent("mirror")
}

// Reset discards everything. The mirror is only meaningful for one
// connection session; a disconnect invalidates all of it.
func (m *Mirror) Reset() {
	m.mu.Lock()
	m.init()
	m.mu.Unlock()
	m.logEntry().Info("State mirror cleared.")
}

// Trade returns a snapshot of the trade for an order id.
func (m *Mirror) Trade(orderID int64) (models.Trade, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.trades[orderID]
	if !ok {
		return models.Trade{}, false
	}
	return copyTrade(t), true
}

// TradeByPermID resolves a trade through the server-assigned permanent id.
func (m *Mirror) TradeByPermID(permID int64) (models.Trade, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	orderID, ok := m.byPermID[permID]
	if !ok {
		return models.Trade{}, false
	}
	t, ok := m.trades[orderID]
	if !ok {
		return models.Trade{}, false
	}
	return copyTrade(t), true
}

// Trades lists all trades, ordered by order id.
func (m *Mirror) Trades() []models.Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Trade, 0, len(m.trades))
	for _, t := range m.trades {
		out = append(out, copyTrade(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order.OrderID < out[j].Order.OrderID })
	return out
}

// OpenTrades lists trades that can still execute.
func (m *Mirror) OpenTrades() []models.Trade {
	all := m.Trades()
	out := all[:0]
	for _, t := range all {
		if t.IsActive() {
			out = append(out, t)
		}
	}
	return out
}

// Fills lists all fills across trades, ordered by execution time.
func (m *Mirror) Fills() []models.Fill {
	m.mu.RLock()
	out := make([]models.Fill, 0, len(m.fills))
	for _, t := range m.trades {
		out = append(out, t.Fills...)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		return out[i].Execution.Time.Before(out[j].Execution.Time)
	})
	return out
}

// Positions lists current holdings across all accounts.
func (m *Mirror) Positions() []models.Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Account != out[j].Account {
			return out[i].Account < out[j].Account
		}
		return out[i].Contract.ConID < out[j].Contract.ConID
	})
	return out
}

// Position returns one holding, if present.
func (m *Mirror) Position(account string, conID int64) (models.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[posKey{account: account, conID: conID}]
	return p, ok
}

// AccountValues lists all account metrics.
func (m *Mirror) AccountValues() []models.AccountValue {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.AccountValue, 0, len(m.accountValues))
	for _, v := range m.accountValues {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Account != b.Account {
			return a.Account < b.Account
		}
		if a.Tag != b.Tag {
			return a.Tag < b.Tag
		}
		return a.Currency < b.Currency
	})
	return out
}

// AccountValue returns one metric, if present.
func (m *Mirror) AccountValue(account, tag, currency string) (models.AccountValue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.accountValues[acctKey{account: account, tag: tag, currency: currency}]
	return v, ok
}

// ManagedAccounts lists the account ids the session controls.
func (m *Mirror) ManagedAccounts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.accounts...)
}

// AccountUpdateTime is the gateway's timestamp for the last account push.
func (m *Mirror) AccountUpdateTime() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.acctTime
}

// ValidationError reports a local precondition failure. The offending
// request is never transmitted and authoritative state is untouched.
type ValidationError struct {
	OrderID int64
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("order %d: %s", e.OrderID, e.Reason)
}

func copyTrade(t *models.Trade) models.Trade {
	out := *t
	out.Fills = append([]models.Fill(nil), t.Fills...)
	out.Log = append([]models.TradeLogEntry(nil), t.Log...)
	return out
}

package session

import (
	"fmt"

	"github.com/google/uuid"

	"ibmirror/internal/mirror"
	"ibmirror/internal/models"
)

// PlaceOrder transmits a new order and returns the trade tracking it.
// The trade starts in PendingSubmit; confirmation arrives through order
// status events.
func (s *Session) PlaceOrder(contract models.Contract, order models.Order) (models.Trade, error) {
	if !s.Ready() {
		return models.Trade{}, fmt.Errorf("place order: session not ready")
	}
	if !order.TotalQuantity.IsPositive() {
		return models.Trade{}, &mirror.ValidationError{Reason: "order quantity must be positive"}
	}

	order.OrderID = s.seq.Next()
	order.ClientID = s.cfg.ClientID
	if order.OrderRef == "" {
		order.OrderRef = uuid.NewString()
	}

	trade := s.mirror.RegisterOrder(contract, order)
	if err := s.send(s.encoder().PlaceOrder(order.OrderID, contract, order)); err != nil {
		return trade, err
	}
	s.logEntry().WithField("order_id", order.OrderID).Info("Order placed.")
	return trade, nil
}

// ModifyOrder retransmits an existing order id with changed fields. The
// modify is validated against the authoritative trade first; a rejected
// modify transmits nothing and mutates nothing.
func (s *Session) ModifyOrder(order models.Order) (models.Trade, error) {
	if !s.Ready() {
		return models.Trade{}, fmt.Errorf("modify order: session not ready")
	}
	if err := s.mirror.ValidateModify(order); err != nil {
		return models.Trade{}, err
	}
	trade, ok := s.mirror.RegisterModify(order)
	if !ok {
		return models.Trade{}, fmt.Errorf("modify order %d: unknown order", order.OrderID)
	}
	if err := s.send(s.encoder().PlaceOrder(order.OrderID, trade.Contract, trade.Order)); err != nil {
		return trade, err
	}
	s.logEntry().WithField("order_id", order.OrderID).Info("Order modified.")
	return trade, nil
}

// CancelOrder requests cancellation. Cancelling an already-done order is
// a no-op.
func (s *Session) CancelOrder(orderID int64) error {
	if !s.Ready() {
		return fmt.Errorf("cancel order: session not ready")
	}
	if t, ok := s.mirror.Trade(orderID); ok && t.IsDone() {
		return nil
	}
	if err := s.send(s.encoder().CancelOrder(orderID)); err != nil {
		return err
	}
	s.logEntry().WithField("order_id", orderID).Info("Order cancel requested.")
	return nil
}

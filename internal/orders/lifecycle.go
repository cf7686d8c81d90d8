package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/audit"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/users"
)

// forwardErr explains why target is not reachable from cur.
func forwardErr(cur, target Status) *apperr.Error {
	if cur == StatusCancelled {
		return ErrOrderCancelled
	}
	switch target {
	case StatusShipped:
		if cur.IsShipped() {
			return ErrAlreadyShipped
		}
		if !cur.IsPaid() {
			return ErrNotPaid
		}
	case StatusDelivered:
		if cur == StatusDelivered {
			return ErrAlreadyDelivered
		}
		if !cur.IsPaid() {
			return ErrNotPaid
		}
		if !cur.IsShipped() {
			return ErrNotShipped
		}
	}
	if !CanTransition(cur, target) {
		return apperr.Conflict("", fmt.Sprintf("cannot move order from %s to %s", cur, target))
	}
	return nil
}

// UpdateStatus moves a paid order to shipped, or a shipped order to delivered.
func (s *Service) UpdateStatus(ctx context.Context, actor users.Identity, id string, target Status) (Order, error) {
	const op = "orders.UpdateStatus"
	if !actor.IsAdmin() {
		return Order{}, apperr.Forbidden(op, "admin only")
	}
	if err := apperr.CheckID(op, "order id", id); err != nil {
		return Order{}, err
	}
	target = Status(strings.ToLower(strings.TrimSpace(string(target))))
	if target != StatusShipped && target != StatusDelivered {
		return Order{}, apperr.Validation(op, "status must be shipped or delivered")
	}

	var order Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if e := forwardErr(o.Status, target); e != nil {
			return e
		}
		from := o.Status
		now := s.now().UTC()
		o.Status = target
		o.UpdatedAt = now
		if target == StatusShipped {
			o.ShippedAt = &now
		} else {
			o.DeliveredAt = &now
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return tx.AppendAudit(ctx, audit.Entry{
			ActorID: actor.UserID,
			Action:  audit.ActionStatusUpdated,
			OrderID: o.ID,
			Details: map[string]any{"from": string(from), "to": string(target)},
		})
	})
	if err != nil {
		return Order{}, wrap(op, err)
	}

	s.afterChange(ctx, order)
	s.events.StatusChanged(ctx, order)
	typ, label, subject := notify.TypeOrderShipped, "shipped", "Order Shipped"
	if target == StatusDelivered {
		typ, label, subject = notify.TypeOrderDelivered, "delivered", "Order Delivered"
	}
	s.notifier.Dispatch(ctx, notify.Request{
		UserID:  order.UserID,
		Type:    typ,
		Message: fmt.Sprintf("Your order #%s has been %s.", order.ID, label),
		Subject: subject,
		Body:    fmt.Sprintf("Your order #%s has been %s.", order.ID, label),
		SMSBody: fmt.Sprintf("Order #%s %s.", order.ID, label),
	})
	return order, nil
}

// Cancel cancels an unpaid order and puts its stock back.
func (s *Service) Cancel(ctx context.Context, actor users.Identity, id string) (Order, error) {
	const op = "orders.Cancel"
	if err := apperr.CheckID(op, "order id", id); err != nil {
		return Order{}, err
	}

	var order Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if !actor.CanAccess(o.UserID) {
			return ErrForbidden
		}
		switch {
		case o.Status == StatusCancelled:
			return ErrAlreadyCancelled
		case !CanTransition(o.Status, StatusCancelled):
			return ErrCancelPaid
		}

		now := s.now().UTC()
		o.Status = StatusCancelled
		o.CancelledAt = &now
		o.UpdatedAt = now
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		for _, it := range o.Items {
			if err := tx.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				return err
			}
		}
		order = o
		return tx.AppendAudit(ctx, audit.Entry{
			ActorID: actor.UserID,
			Action:  audit.ActionOrderCancelled,
			OrderID: o.ID,
			Details: map[string]any{"restoredItems": len(o.Items)},
		})
	})
	if err != nil {
		return Order{}, wrap(op, err)
	}

	s.afterChange(ctx, order)
	s.events.OrderCancelled(ctx, order)
	s.notifier.Dispatch(ctx, notify.Request{
		UserID:  order.UserID,
		Type:    notify.TypeOrderCancelled,
		Message: fmt.Sprintf("Your order #%s has been cancelled.", order.ID),
		Subject: "Order Cancelled",
		Body:    fmt.Sprintf("Your order #%s has been cancelled.", order.ID),
	})
	return order, nil
}

// AddTracking attaches carrier tracking data to an order.
func (s *Service) AddTracking(ctx context.Context, actor users.Identity, id string, info TrackingInfo) (Order, error) {
	const op = "orders.AddTracking"
	if !actor.IsAdmin() {
		return Order{}, apperr.Forbidden(op, "admin only")
	}
	if err := apperr.CheckID(op, "order id", id); err != nil {
		return Order{}, err
	}
	info.Carrier = strings.TrimSpace(info.Carrier)
	info.TrackingNumber = strings.TrimSpace(info.TrackingNumber)
	info.Status = strings.TrimSpace(info.Status)
	if info.Carrier == "" || info.TrackingNumber == "" || info.Status == "" {
		return Order{}, apperr.Validation(op, "carrier, trackingNumber and status are required")
	}

	var order Order
	err := s.store.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		if o.Status == StatusCancelled {
			return ErrOrderCancelled
		}
		o.Tracking = &info
		o.UpdatedAt = s.now().UTC()
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return tx.AppendAudit(ctx, audit.Entry{
			ActorID: actor.UserID,
			Action:  audit.ActionTrackingAdded,
			OrderID: o.ID,
			Details: map[string]any{"carrier": info.Carrier, "trackingNumber": info.TrackingNumber},
		})
	})
	if err != nil {
		return Order{}, wrap(op, err)
	}

	s.notifier.Dispatch(ctx, notify.Request{
		UserID:  order.UserID,
		Type:    notify.TypeTrackingUpdate,
		Message: fmt.Sprintf("Tracking for order #%s: %s %s (%s).", order.ID, info.Carrier, info.TrackingNumber, info.Status),
		Subject: "Tracking Information",
		Body:    fmt.Sprintf("Your order #%s ships with %s, tracking number %s.", order.ID, info.Carrier, info.TrackingNumber),
	})
	return order, nil
}

func (s *Service) GetTracking(ctx context.Context, actor users.Identity, id string) (TrackingInfo, error) {
	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return TrackingInfo{}, err
	}
	if o.Tracking == nil {
		return TrackingInfo{}, ErrNoTracking.WithOp("orders.GetTracking")
	}
	return *o.Tracking, nil
}

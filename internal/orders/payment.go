package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/audit"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/users"
)

func payableErr(st Status) *apperr.Error {
	switch {
	case st == StatusCancelled:
		return ErrOrderCancelled
	case st.IsPaid():
		return ErrAlreadyPaid
	}
	return nil
}

// StartPayment registers the order's total with the payment gateway and
// remembers the gateway order id on the order.
func (s *Service) StartPayment(ctx context.Context, actor users.Identity, id string) (payment.GatewayOrder, error) {
	const op = "orders.StartPayment"
	o, err := s.Get(ctx, actor, id)
	if err != nil {
		return payment.GatewayOrder{}, err
	}
	if e := payableErr(o.Status); e != nil {
		return payment.GatewayOrder{}, e.WithOp(op)
	}

	g, err := s.gateway.CreateOrder(ctx, o.ID, o.TotalPrice)
	if err != nil {
		return payment.GatewayOrder{}, apperr.Unavailable(op, "payment gateway unavailable", err)
	}

	err = s.store.InTx(ctx, func(tx Tx) error {
		cur, err := tx.LockOrder(ctx, o.ID)
		if err != nil {
			return err
		}
		if e := payableErr(cur.Status); e != nil {
			return e
		}
		cur.GatewayOrderID = g.ID
		cur.UpdatedAt = s.now().UTC()
		return tx.UpdateOrder(ctx, cur)
	})
	if err != nil {
		return payment.GatewayOrder{}, wrap(op, err)
	}
	return g, nil
}

// Pay verifies the gateway signature and marks the order paid. Any failed
// check leaves the order untouched.
func (s *Service) Pay(ctx context.Context, actor users.Identity, id string, in PayInput) (Order, error) {
	const op = "orders.Pay"
	if err := apperr.CheckID(op, "order id", id); err != nil {
		return Order{}, err
	}
	in.GatewayOrderID = strings.TrimSpace(in.GatewayOrderID)
	in.PaymentID = strings.TrimSpace(in.PaymentID)
	in.Signature = strings.TrimSpace(in.Signature)
	if in.GatewayOrderID == "" || in.PaymentID == "" || in.Signature == "" {
		return Order{}, apperr.Validation(op, "gateway order id, payment id and signature are required")
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
		if e := payableErr(o.Status); e != nil {
			return e
		}
		if o.GatewayOrderID != "" && o.GatewayOrderID != in.GatewayOrderID {
			return ErrGatewayMismatch
		}
		if !s.verifier.Verify(in.GatewayOrderID, in.PaymentID, in.Signature) {
			return ErrInvalidSignature
		}
		if !CanTransition(o.Status, StatusPaid) {
			return ErrAlreadyPaid
		}

		now := s.now().UTC()
		o.Status = StatusPaid
		o.PaidAt = &now
		o.UpdatedAt = now
		o.GatewayOrderID = in.GatewayOrderID
		o.PaymentResult = &PaymentResult{
			PaymentID:      in.PaymentID,
			GatewayOrderID: in.GatewayOrderID,
			Signature:      in.Signature,
		}
		if err := tx.UpdateOrder(ctx, o); err != nil {
			return err
		}
		order = o
		return tx.AppendAudit(ctx, audit.Entry{
			ActorID: actor.UserID,
			Action:  audit.ActionOrderPaid,
			OrderID: o.ID,
			Details: map[string]any{"paymentId": in.PaymentID, "gatewayOrderId": in.GatewayOrderID},
		})
	})
	if err != nil {
		return Order{}, wrap(op, err)
	}

	s.afterChange(ctx, order)
	s.events.StatusChanged(ctx, order)
	s.notifier.Dispatch(ctx, notify.Request{
		UserID:  order.UserID,
		Type:    notify.TypePaymentReceived,
		Message: fmt.Sprintf("Payment received for order #%s.", order.ID),
		Subject: "Payment Received",
		Body:    fmt.Sprintf("We received your payment of %s for order #%s.", order.TotalPrice.StringFixed(2), order.ID),
		SMSBody: fmt.Sprintf("Payment received for order #%s.", order.ID),
	})
	return order, nil
}

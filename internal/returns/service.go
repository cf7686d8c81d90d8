package returns

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/users"
)

// WindowDays is how long after placement an order line may be returned.
const WindowDays = 30

var (
	ErrWindowExpired = apperr.Validation("", "return window has expired")
	ErrItemNotFound  = apperr.NotFound("", "order item not found")
	ErrNotOwner      = apperr.Forbidden("", "not authorized to return items from this order")
)

type OrderReader interface {
	Get(ctx context.Context, actor users.Identity, id string) (orders.Order, error)
}

type Directory interface {
	Get(ctx context.Context, userID string) (users.User, error)
	ListAdmins(ctx context.Context) ([]users.User, error)
}

type Service struct {
	store    Store
	orders   OrderReader
	users    Directory
	notifier notify.Dispatcher
	now      func() time.Time
}

func NewService(store Store, ord OrderReader, dir Directory, n notify.Dispatcher) *Service {
	return &Service{store: store, orders: ord, users: dir, notifier: n, now: time.Now}
}

// daysSince counts started days, so 30 days and one second is day 31.
func daysSince(from, now time.Time) int {
	return int(math.Ceil(now.Sub(from).Abs().Hours() / 24))
}

// Create files a return for one line of the caller's order.
func (s *Service) Create(ctx context.Context, actor users.Identity, in CreateInput) (Request, error) {
	const op = "returns.Create"
	in.Reason = strings.TrimSpace(in.Reason)
	if in.OrderID == "" || in.OrderItemID == "" || in.Reason == "" {
		return Request{}, apperr.Validation(op, "orderId, orderItemId and reason are required")
	}
	if err := apperr.CheckID(op, "order id", in.OrderID); err != nil {
		return Request{}, err
	}
	if err := apperr.CheckID(op, "order item id", in.OrderItemID); err != nil {
		return Request{}, err
	}

	o, err := s.orders.Get(ctx, actor, in.OrderID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindForbidden {
			return Request{}, ErrNotOwner.WithOp(op)
		}
		return Request{}, wrap(op, err)
	}
	if o.UserID != actor.UserID {
		return Request{}, ErrNotOwner.WithOp(op)
	}

	var line *orders.LineItem
	for i := range o.Items {
		if o.Items[i].ID == in.OrderItemID {
			line = &o.Items[i]
			break
		}
	}
	if line == nil {
		return Request{}, ErrItemNotFound.WithOp(op)
	}

	now := s.now().UTC()
	if daysSince(o.CreatedAt, now) > WindowDays {
		return Request{}, ErrWindowExpired.WithOp(op)
	}
	exists, err := s.store.Exists(ctx, o.ID, line.ID)
	if err != nil {
		return Request{}, wrap(op, err)
	}
	if exists {
		return Request{}, ErrDuplicate.WithOp(op)
	}

	r := Request{
		ID:      uuid.NewString(),
		OrderID: o.ID,
		UserID:  actor.UserID,
		Item: Item{
			OrderItemID: line.ID,
			ProductID:   line.ProductID,
			Name:        line.Name,
			Image:       line.Image,
			Price:       line.Price,
			Quantity:    line.Quantity,
		},
		Reason:       in.Reason,
		Status:       StatusPending,
		RefundAmount: line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Insert(ctx, r); err != nil {
		return Request{}, wrap(op, err)
	}

	s.notifyAdmins(ctx, actor, r)
	return r, nil
}

func (s *Service) notifyAdmins(ctx context.Context, actor users.Identity, r Request) {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil || len(admins) == 0 {
		return
	}
	who := actor.UserID
	if u, err := s.users.Get(ctx, actor.UserID); err == nil && u.Name != "" {
		who = u.Name
	}
	msg := fmt.Sprintf("A new return request has been submitted by %s for order #%s.", who, r.OrderID)
	for _, a := range admins {
		s.notifier.Dispatch(ctx, notify.Request{
			UserID:  a.ID,
			Type:    notify.TypeNewReturnRequest,
			Message: msg,
			Subject: "New Return Request",
			Body:    msg,
			SMSBody: fmt.Sprintf("New return request by %s for order #%s.", who, r.OrderID),
		})
	}
}

// UpdateStatus moves a return through its review states. Admin only.
func (s *Service) UpdateStatus(ctx context.Context, actor users.Identity, id string, st Status) (Request, error) {
	const op = "returns.UpdateStatus"
	if !actor.IsAdmin() {
		return Request{}, apperr.Forbidden(op, "admin only")
	}
	if err := apperr.CheckID(op, "return id", id); err != nil {
		return Request{}, err
	}
	if !st.Valid() {
		return Request{}, apperr.Validation(op, "invalid status value")
	}
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return Request{}, wrap(op, err)
	}
	if !CanTransition(r.Status, st) {
		return Request{}, apperr.Conflict(op, fmt.Sprintf("cannot move return from %s to %s", r.Status, st))
	}
	now := s.now().UTC()
	if err := s.store.UpdateStatus(ctx, id, st, now); err != nil {
		return Request{}, wrap(op, err)
	}
	r.Status, r.UpdatedAt = st, now

	msg := fmt.Sprintf("Your return request for order #%s has been %s.", r.OrderID, st)
	s.notifier.Dispatch(ctx, notify.Request{
		UserID:  r.UserID,
		Type:    notify.TypeReturnStatusUpdate,
		Message: msg,
		Subject: "Return Request Status Update",
		Body:    msg,
		SMSBody: msg,
	})
	return r, nil
}

func (s *Service) ListAll(ctx context.Context, actor users.Identity) ([]Request, error) {
	const op = "returns.ListAll"
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden(op, "admin only")
	}
	out, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

func (s *Service) ListMine(ctx context.Context, actor users.Identity) ([]Request, error) {
	out, err := s.store.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, wrap("returns.ListMine", err)
	}
	return out, nil
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithOp(op)
	}
	return apperr.Internal(op, err)
}

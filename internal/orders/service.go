package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/audit"
	"github.com/ariefcatur/go-storefront/internal/notify"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type Service struct {
	store    Store
	cache    Cache
	events   Events
	notifier notify.Dispatcher
	gateway  Gateway
	verifier SignatureVerifier
	log      zerolog.Logger
	now      func() time.Time
}

type Deps struct {
	Store    Store
	Cache    Cache
	Events   Events
	Notifier notify.Dispatcher
	Gateway  Gateway
	Verifier SignatureVerifier
	Log      zerolog.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		store:    d.Store,
		cache:    d.Cache,
		events:   d.Events,
		notifier: d.Notifier,
		gateway:  d.Gateway,
		verifier: d.Verifier,
		log:      d.Log,
		now:      time.Now,
	}
}

// Create places an order. Stock check, pricing, order insert, stock decrement,
// cart clear and the audit entry commit together or not at all. With an
// idempotency key a retried request returns the first order and replayed=true,
// and a duplicate sent while the first is in flight gets ErrRequestInFlight.
func (s *Service) Create(ctx context.Context, actor users.Identity, in CreateInput) (Order, bool, error) {
	const op = "orders.Create"
	items, err := normalizeItems(in.Items)
	if err != nil {
		return Order{}, false, wrap(op, err)
	}
	if err := validateAddress(in.ShippingAddress); err != nil {
		return Order{}, false, err.WithOp(op)
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	reserved := false
	if key != "" && s.cache != nil {
		id, ok, err := s.cache.ReserveOrder(ctx, actor.UserID, key)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("idempotency reservation failed")
		case ok:
			reserved = true
		case id == "":
			return Order{}, false, ErrRequestInFlight.WithOp(op)
		default:
			o, err := s.store.Get(ctx, id)
			if err == nil {
				return o, true, nil
			}
			s.log.Warn().Err(err).Str("order_id", id).Msg("idempotent order not loadable, placing a new one")
		}
	}

	now := s.now().UTC()
	var order Order
	err = s.store.InTx(ctx, func(tx Tx) error {
		ids := make([]string, 0, len(items))
		for _, it := range items {
			ids = append(ids, it.ProductID)
		}
		products, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}

		lines := make([]LineItem, 0, len(items))
		for _, it := range items {
			p, ok := products[it.ProductID]
			if !ok {
				return ErrProductNotFound.WithOp(op)
			}
			if p.Stock < it.Quantity {
				return ErrInsufficientStock.WithOp(op)
			}
			lines = append(lines, LineItem{
				ID:        uuid.NewString(),
				ProductID: p.ID,
				Name:      p.Name,
				Image:     p.Image,
				Price:     p.Price,
				Quantity:  it.Quantity,
			})
		}

		order = Order{
			ID:              uuid.NewString(),
			UserID:          actor.UserID,
			Items:           lines,
			ShippingAddress: in.ShippingAddress,
			PaymentMethod:   in.PaymentMethod,
			Prices:          ComputePrices(lines),
			Status:          StatusCreated,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		for _, l := range lines {
			if err := tx.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
				return err
			}
		}
		if err := tx.ClearCart(ctx, actor.UserID); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, audit.Entry{
			ActorID: actor.UserID,
			Action:  audit.ActionOrderCreated,
			OrderID: order.ID,
			Details: map[string]any{"totalPrice": order.TotalPrice.String(), "items": len(lines)},
		})
	})
	if err != nil {
		if reserved {
			if rerr := s.cache.ReleaseOrder(ctx, actor.UserID, key); rerr != nil {
				s.log.Warn().Err(rerr).Msg("idempotency key not released")
			}
		}
		return Order{}, false, wrap(op, err)
	}

	if key != "" && s.cache != nil {
		if err := s.cache.RememberOrder(ctx, actor.UserID, key, order.ID); err != nil {
			s.log.Warn().Err(err).Str("order_id", order.ID).Msg("idempotency key not stored")
		}
	}
	s.afterChange(ctx, order)
	s.events.OrderCreated(ctx, order)
	s.notifier.Dispatch(ctx, notify.Request{
		UserID:  order.UserID,
		Type:    notify.TypeOrderConfirmation,
		Message: fmt.Sprintf("Your order #%s has been successfully placed.", order.ID),
		Subject: "Order Confirmation",
		Body:    fmt.Sprintf("Thank you for your order #%s. Total: %s.", order.ID, order.TotalPrice.StringFixed(2)),
		SMSBody: fmt.Sprintf("Order #%s placed. Total %s.", order.ID, order.TotalPrice.StringFixed(2)),
	})
	return order, false, nil
}

// normalizeItems validates quantities and merges repeated products.
func normalizeItems(in []ItemInput) ([]ItemInput, error) {
	if len(in) == 0 {
		return nil, ErrEmptyOrder
	}
	idx := map[string]int{}
	out := make([]ItemInput, 0, len(in))
	for _, it := range in {
		if err := apperr.CheckID("", "product id", it.ProductID); err != nil {
			return nil, err
		}
		if it.Quantity < 1 {
			return nil, apperr.Validation("", "quantity must be at least 1")
		}
		if i, ok := idx[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

func validateAddress(a ShippingAddress) *apperr.Error {
	required := []struct{ name, val string }{
		{"fullName", a.FullName},
		{"addressLine1", a.AddressLine1},
		{"city", a.City},
		{"state", a.State},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
		{"phoneNumber", a.PhoneNumber},
	}
	for _, f := range required {
		if strings.TrimSpace(f.val) == "" {
			return apperr.Validation("", "shipping address "+f.name+" is required")
		}
	}
	return nil
}

// Get returns an order visible to actor.
func (s *Service) Get(ctx context.Context, actor users.Identity, id string) (Order, error) {
	const op = "orders.Get"
	if err := apperr.CheckID(op, "order id", id); err != nil {
		return Order{}, err
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return Order{}, wrap(op, err)
	}
	if !actor.CanAccess(o.UserID) {
		return Order{}, ErrForbidden.WithOp(op)
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, actor users.Identity) ([]Order, error) {
	out, err := s.store.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, wrap("orders.ListMine", err)
	}
	return out, nil
}

func (s *Service) ListAll(ctx context.Context, actor users.Identity) ([]Order, error) {
	const op = "orders.ListAll"
	if !actor.IsAdmin() {
		return nil, apperr.Forbidden(op, "admin only")
	}
	out, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

type StatusView struct {
	OrderID   string    `json:"orderId"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
	Cached    bool      `json:"cached"`
}

// Status serves the lifecycle state from the cache, falling back to the
// store. Ownership is always checked against the store.
func (s *Service) Status(ctx context.Context, actor users.Identity, id string) (StatusView, error) {
	const op = "orders.Status"
	if !actor.IsAdmin() {
		if _, err := s.Get(ctx, actor, id); err != nil {
			return StatusView{}, err
		}
	} else if err := apperr.CheckID(op, "order id", id); err != nil {
		return StatusView{}, err
	}

	if s.cache != nil {
		e, ok, err := s.cache.GetStatus(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("order_id", id).Msg("status cache read failed")
		} else if ok {
			return StatusView{OrderID: id, Status: Status(e.Status), UpdatedAt: e.UpdatedAt, Cached: true}, nil
		}
	}
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return StatusView{}, wrap(op, err)
	}
	if s.cache != nil {
		if err := s.cache.FillStatus(ctx, o.ID, string(o.Status), o.UpdatedAt); err != nil {
			s.log.Warn().Err(err).Str("order_id", id).Msg("status cache fill failed")
		}
	}
	return StatusView{OrderID: o.ID, Status: o.Status, UpdatedAt: o.UpdatedAt}, nil
}

// afterChange refreshes the status cache. Failures are logged only.
func (s *Service) afterChange(ctx context.Context, o Order) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetStatus(ctx, o.ID, string(o.Status), o.UpdatedAt); err != nil {
		s.log.Warn().Err(err).Str("order_id", o.ID).Msg("status cache write failed")
	}
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithOp(op)
	}
	return apperr.Internal(op, err)
}

package subscriptions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/users"
)

var ErrNotActive = apperr.Conflict("", "subscription is not active")

type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) ListPlans(ctx context.Context) ([]Plan, error) {
	out, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, wrap("subscriptions.ListPlans", err)
	}
	return out, nil
}

// AddPlan registers a new plan. Admin only.
func (s *Service) AddPlan(ctx context.Context, actor users.Identity, p Plan) (Plan, error) {
	const op = "subscriptions.AddPlan"
	if !actor.IsAdmin() {
		return Plan{}, apperr.Forbidden(op, "admin only")
	}
	p.Name = strings.ToLower(strings.TrimSpace(p.Name))
	if p.Name == "" || !p.Price.IsPositive() || len(p.Services) == 0 || p.DurationDays <= 0 {
		return Plan{}, apperr.Validation(op, "please provide all required fields")
	}
	p.ID = uuid.NewString()
	if err := s.store.InsertPlan(ctx, p); err != nil {
		return Plan{}, wrap(op, err)
	}
	return p, nil
}

// Subscribe starts a subscription on the named plan. A user may hold only
// one active subscription.
func (s *Service) Subscribe(ctx context.Context, actor users.Identity, planName string) (Subscription, error) {
	const op = "subscriptions.Subscribe"
	p, err := s.store.PlanByName(ctx, strings.ToLower(strings.TrimSpace(planName)))
	if err != nil {
		return Subscription{}, wrap(op, err)
	}

	switch _, err := s.store.Active(ctx, actor.UserID); {
	case err == nil:
		return Subscription{}, ErrActiveExists.WithOp(op)
	case !errors.Is(err, ErrNotFound):
		return Subscription{}, wrap(op, err)
	}

	sub := Subscription{
		ID:        uuid.NewString(),
		UserID:    actor.UserID,
		StartDate: s.now().UTC(),
		IsActive:  true,
	}
	sub.apply(p)
	// the partial unique index catches a concurrent subscribe that passed the lookup
	if err := s.store.Insert(ctx, sub); err != nil {
		return Subscription{}, wrap(op, err)
	}
	return sub, nil
}

// ChangePlan swaps the plan on an active subscription, keeping its start date.
func (s *Service) ChangePlan(ctx context.Context, actor users.Identity, id, planName string) (Subscription, error) {
	const op = "subscriptions.ChangePlan"
	p, err := s.store.PlanByName(ctx, strings.ToLower(strings.TrimSpace(planName)))
	if err != nil {
		return Subscription{}, wrap(op, err)
	}
	sub, err := s.owned(ctx, op, actor, id)
	if err != nil {
		return Subscription{}, err
	}
	if !sub.IsActive {
		return Subscription{}, apperr.NotFound(op, "active subscription not found")
	}
	sub.apply(p)
	if err := s.store.Update(ctx, sub); err != nil {
		return Subscription{}, wrap(op, err)
	}
	return sub, nil
}

// Mine returns the caller's active subscription, or nil when there is none.
func (s *Service) Mine(ctx context.Context, actor users.Identity) (*Subscription, error) {
	sub, err := s.store.Active(ctx, actor.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("subscriptions.Mine", err)
	}
	return &sub, nil
}

func (s *Service) History(ctx context.Context, actor users.Identity) ([]Subscription, error) {
	out, err := s.store.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, wrap("subscriptions.History", err)
	}
	return out, nil
}

func (s *Service) Cancel(ctx context.Context, actor users.Identity, id string) (Subscription, error) {
	const op = "subscriptions.Cancel"
	sub, err := s.owned(ctx, op, actor, id)
	if err != nil {
		return Subscription{}, err
	}
	if !sub.IsActive {
		return Subscription{}, ErrNotActive.WithOp(op)
	}
	sub.IsActive = false
	if err := s.store.Update(ctx, sub); err != nil {
		return Subscription{}, wrap(op, err)
	}
	return sub, nil
}

// owned hides other users' subscriptions behind NotFound.
func (s *Service) owned(ctx context.Context, op string, actor users.Identity, id string) (Subscription, error) {
	if err := apperr.CheckID(op, "subscription id", id); err != nil {
		return Subscription{}, err
	}
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return Subscription{}, wrap(op, err)
	}
	if sub.UserID != actor.UserID {
		return Subscription{}, ErrNotFound.WithOp(op)
	}
	return sub, nil
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithOp(op)
	}
	return apperr.Internal(op, err)
}

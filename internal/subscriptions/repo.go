package subscriptions

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
)

// PlanStore is the only source of plans.
type PlanStore interface {
	ListPlans(ctx context.Context) ([]Plan, error)
	PlanByName(ctx context.Context, name string) (Plan, error)
	InsertPlan(ctx context.Context, p Plan) error
}

type Store interface {
	PlanStore
	// Insert fails with ErrActiveExists if the user already has an active subscription.
	Insert(ctx context.Context, s Subscription) error
	Get(ctx context.Context, id string) (Subscription, error)
	Active(ctx context.Context, userID string) (Subscription, error)
	Update(ctx context.Context, s Subscription) error
	ListByUser(ctx context.Context, userID string) ([]Subscription, error)
}

var (
	ErrPlanNotFound = apperr.Validation("", "invalid subscription plan")
	ErrPlanExists   = apperr.Conflict("", "a plan with this name already exists")
	ErrActiveExists = apperr.Conflict("", "you already have an active subscription")
	ErrNotFound     = apperr.NotFound("", "subscription not found")
)

type Repo struct{ DB postgres.Querier }

func (r *Repo) ListPlans(ctx context.Context) ([]Plan, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, name, price, services, duration_days FROM plans ORDER BY price, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Plan{}
	for rows.Next() {
		var p Plan
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Services, &p.DurationDays); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) PlanByName(ctx context.Context, name string) (Plan, error) {
	var p Plan
	err := r.DB.QueryRow(ctx, `SELECT id, name, price, services, duration_days FROM plans WHERE name=$1`, name).
		Scan(&p.ID, &p.Name, &p.Price, &p.Services, &p.DurationDays)
	if postgres.IsNoRows(err) {
		return Plan{}, ErrPlanNotFound
	}
	return p, err
}

func (r *Repo) InsertPlan(ctx context.Context, p Plan) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO plans(id, name, price, services, duration_days) VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.Price, p.Services, p.DurationDays)
	if postgres.IsUniqueViolation(err) {
		return ErrPlanExists
	}
	return err
}

const subColumns = `id, user_id, plan, services, price, start_date, end_date, is_active`

func scanSub(row pgx.Row, s *Subscription) error {
	return row.Scan(&s.ID, &s.UserID, &s.Plan, &s.Services, &s.Price, &s.StartDate, &s.EndDate, &s.IsActive)
}

func (r *Repo) Insert(ctx context.Context, s Subscription) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO subscriptions(`+subColumns+`) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		s.ID, s.UserID, s.Plan, s.Services, s.Price, s.StartDate, s.EndDate, s.IsActive)
	if postgres.IsUniqueViolation(err) {
		return ErrActiveExists
	}
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (Subscription, error) {
	var s Subscription
	err := scanSub(r.DB.QueryRow(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE id=$1`, id), &s)
	if postgres.IsNoRows(err) {
		return Subscription{}, ErrNotFound
	}
	return s, err
}

func (r *Repo) Active(ctx context.Context, userID string) (Subscription, error) {
	var s Subscription
	err := scanSub(r.DB.QueryRow(ctx,
		`SELECT `+subColumns+` FROM subscriptions WHERE user_id=$1 AND is_active`, userID), &s)
	if postgres.IsNoRows(err) {
		return Subscription{}, ErrNotFound
	}
	return s, err
}

func (r *Repo) Update(ctx context.Context, s Subscription) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE subscriptions SET plan=$2, services=$3, price=$4, end_date=$5, is_active=$6
		WHERE id=$1`, s.ID, s.Plan, s.Services, s.Price, s.EndDate, s.IsActive)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Subscription, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+subColumns+` FROM subscriptions WHERE user_id=$1 ORDER BY start_date DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Subscription{}
	for rows.Next() {
		var s Subscription
		if err := scanSub(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

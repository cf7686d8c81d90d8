package returns

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
)

type Store interface {
	// Insert fails with ErrDuplicate when the line already has a request.
	Insert(ctx context.Context, r Request) error
	Exists(ctx context.Context, orderID, orderItemID string) (bool, error)
	Get(ctx context.Context, id string) (Request, error)
	UpdateStatus(ctx context.Context, id string, st Status, at time.Time) error
	ListAll(ctx context.Context) ([]Request, error)
	ListByUser(ctx context.Context, userID string) ([]Request, error)
}

var (
	ErrDuplicate = apperr.Conflict("", "return request already exists for this order item")
	ErrNotFound  = apperr.NotFound("", "return request not found")
)

type Repo struct{ DB postgres.Querier }

const returnColumns = `id, order_id, user_id, order_item_id, product_id, name, image, price, quantity,
	reason, status, refund_amount, created_at, updated_at`

func scanReturn(row pgx.Row, r *Request) error {
	var st string
	if err := row.Scan(&r.ID, &r.OrderID, &r.UserID, &r.Item.OrderItemID, &r.Item.ProductID,
		&r.Item.Name, &r.Item.Image, &r.Item.Price, &r.Item.Quantity,
		&r.Reason, &st, &r.RefundAmount, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return err
	}
	r.Status = Status(st)
	return nil
}

func (p *Repo) Insert(ctx context.Context, r Request) error {
	_, err := p.DB.Exec(ctx, `
		INSERT INTO return_requests(id, order_id, user_id, order_item_id, product_id, name, image,
			price, quantity, reason, status, refund_amount, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$13)`,
		r.ID, r.OrderID, r.UserID, r.Item.OrderItemID, r.Item.ProductID, r.Item.Name, r.Item.Image,
		r.Item.Price, r.Item.Quantity, r.Reason, string(r.Status), r.RefundAmount, r.CreatedAt)
	if postgres.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Repo) Exists(ctx context.Context, orderID, orderItemID string) (bool, error) {
	var ok bool
	err := p.DB.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM return_requests WHERE order_id=$1 AND order_item_id=$2)`,
		orderID, orderItemID).Scan(&ok)
	return ok, err
}

func (p *Repo) Get(ctx context.Context, id string) (Request, error) {
	var r Request
	err := scanReturn(p.DB.QueryRow(ctx, `SELECT `+returnColumns+` FROM return_requests WHERE id=$1`, id), &r)
	if postgres.IsNoRows(err) {
		return Request{}, ErrNotFound
	}
	return r, err
}

func (p *Repo) UpdateStatus(ctx context.Context, id string, st Status, at time.Time) error {
	ct, err := p.DB.Exec(ctx, `UPDATE return_requests SET status=$2, updated_at=$3 WHERE id=$1`, id, string(st), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Repo) ListAll(ctx context.Context) ([]Request, error) {
	return p.list(ctx, `SELECT `+returnColumns+` FROM return_requests ORDER BY created_at DESC`)
}

func (p *Repo) ListByUser(ctx context.Context, userID string) ([]Request, error) {
	return p.list(ctx, `SELECT `+returnColumns+` FROM return_requests WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (p *Repo) list(ctx context.Context, sql string, args ...any) ([]Request, error) {
	rows, err := p.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Request{}
	for rows.Next() {
		var r Request
		if err := scanReturn(rows, &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront/internal/audit"
	"github.com/ariefcatur/go-storefront/internal/postgres"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) InTx(ctx context.Context, fn func(Tx) error) error {
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

const orderColumns = `id, user_id, status, shipping_address, payment_method,
	items_price, tax_price, shipping_price, total_price,
	gateway_order_id, payment_result, tracking_info,
	paid_at, shipped_at, delivered_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	var status string
	var addr, pay, track []byte
	if err := row.Scan(&o.ID, &o.UserID, &status, &addr, &o.PaymentMethod,
		&o.ItemsPrice, &o.TaxPrice, &o.ShippingPrice, &o.TotalPrice,
		&o.GatewayOrderID, &pay, &track,
		&o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return err
	}
	o.Status = Status(status)
	if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
		return fmt.Errorf("shipping address: %w", err)
	}
	if len(pay) > 0 {
		o.PaymentResult = &PaymentResult{}
		if err := json.Unmarshal(pay, o.PaymentResult); err != nil {
			return fmt.Errorf("payment result: %w", err)
		}
	}
	if len(track) > 0 {
		o.Tracking = &TrackingInfo{}
		if err := json.Unmarshal(track, o.Tracking); err != nil {
			return fmt.Errorf("tracking info: %w", err)
		}
	}
	return nil
}

func loadItems(ctx context.Context, q postgres.Querier, o *Order) error {
	rows, err := q.Query(ctx, `
		SELECT id, product_id, name, image, price, quantity
		FROM order_items WHERE order_id=$1 ORDER BY position`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	o.Items = o.Items[:0]
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Image, &it.Price, &it.Quantity); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func getOrder(ctx context.Context, q postgres.Querier, sql, id string) (Order, error) {
	var o Order
	if err := scanOrder(q.QueryRow(ctx, sql, id), &o); err != nil {
		if postgres.IsNoRows(err) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	if err := loadItems(ctx, q, &o); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, r.DB, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id=$1 ORDER BY created_at DESC`, userID)
}

func (r *Repo) ListAll(ctx context.Context) ([]Order, error) {
	return r.list(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
}

func (r *Repo) list(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	out := []Order{}
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := loadItems(ctx, r.DB, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) LockProducts(ctx context.Context, ids []string) (map[string]ProductSnapshot, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, name, image, price, stock FROM products
		WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]ProductSnapshot, len(ids))
	for rows.Next() {
		var p ProductSnapshot
		if err := rows.Scan(&p.ID, &p.Name, &p.Image, &p.Price, &p.Stock); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}

func (t *pgTx) InsertOrder(ctx context.Context, o Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	if _, err := t.tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, shipping_address, payment_method,
			items_price, tax_price, shipping_price, total_price, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)`,
		o.ID, o.UserID, string(o.Status), addr, o.PaymentMethod,
		o.ItemsPrice, o.TaxPrice, o.ShippingPrice, o.TotalPrice, o.CreatedAt,
	); err != nil {
		return err
	}
	for i, it := range o.Items {
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, position, product_id, name, image, price, quantity)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			it.ID, o.ID, i, it.ProductID, it.Name, it.Image, it.Price, it.Quantity,
		); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id=$1 AND stock >= $2`, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrInsufficientStock
	}
	return nil
}

func (t *pgTx) IncrementStock(ctx context.Context, productID string, qty int) error {
	_, err := t.tx.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id=$1`, productID, qty)
	return err
}

func (t *pgTx) ClearCart(ctx context.Context, userID string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return err
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (Order, error) {
	return getOrder(ctx, t.tx, `SELECT `+orderColumns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (t *pgTx) UpdateOrder(ctx context.Context, o Order) error {
	pay, err := nullableJSON(o.PaymentResult)
	if err != nil {
		return err
	}
	track, err := nullableJSON(o.Tracking)
	if err != nil {
		return err
	}
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status=$2, gateway_order_id=$3, payment_result=$4, tracking_info=$5,
			paid_at=$6, shipped_at=$7, delivered_at=$8, cancelled_at=$9, updated_at=$10
		WHERE id=$1`,
		o.ID, string(o.Status), o.GatewayOrderID, pay, track,
		o.PaidAt, o.ShippedAt, o.DeliveredAt, o.CancelledAt, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) AppendAudit(ctx context.Context, e audit.Entry) error {
	return audit.Insert(ctx, t.tx, e)
}

func nullableJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

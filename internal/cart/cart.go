package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type Cart struct {
	UserID   string          `json:"userId"`
	Items    []Item          `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

var (
	ErrNotInCart         = apperr.NotFound("", "product not in cart")
	ErrInsufficientStock = apperr.Validation("", "insufficient stock")
)

type Store interface {
	Items(ctx context.Context, userID string) ([]Item, error)
	Quantity(ctx context.Context, userID, productID string) (int, error)
	// Add merges qty into an existing line or creates one.
	Add(ctx context.Context, userID, productID string, qty int) error
	SetQuantity(ctx context.Context, userID, productID string, qty int) error
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

type ProductReader interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Items(ctx context.Context, userID string) ([]Item, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT c.product_id, p.name, p.image, p.price, c.quantity
		FROM cart_items c JOIN products p ON p.id = c.product_id
		WHERE c.user_id=$1 ORDER BY c.created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Image, &it.Price, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) Quantity(ctx context.Context, userID, productID string) (int, error) {
	var q int
	err := r.DB.QueryRow(ctx, `SELECT quantity FROM cart_items WHERE user_id=$1 AND product_id=$2`, userID, productID).Scan(&q)
	if postgres.IsNoRows(err) {
		return 0, nil
	}
	return q, err
}

func (r *Repo) Add(ctx context.Context, userID, productID string, qty int) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(user_id, product_id, quantity) VALUES ($1,$2,$3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()`,
		userID, productID, qty)
	return err
}

func (r *Repo) SetQuantity(ctx context.Context, userID, productID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE cart_items SET quantity=$3, updated_at=now() WHERE user_id=$1 AND product_id=$2`,
		userID, productID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotInCart
	}
	return nil
}

func (r *Repo) Remove(ctx context.Context, userID, productID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1 AND product_id=$2`, userID, productID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotInCart
	}
	return nil
}

func (r *Repo) Clear(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	return err
}

type Service struct {
	store    Store
	products ProductReader
}

func NewService(store Store, products ProductReader) *Service {
	return &Service{store: store, products: products}
}

func (s *Service) Get(ctx context.Context, actor users.Identity) (Cart, error) {
	items, err := s.store.Items(ctx, actor.UserID)
	if err != nil {
		return Cart{}, wrap("cart.Get", err)
	}
	c := Cart{UserID: actor.UserID, Items: items, Subtotal: decimal.Zero}
	for _, it := range items {
		c.Subtotal = c.Subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return c, nil
}

// Add puts qty units of a product in the cart, summing with any existing line.
func (s *Service) Add(ctx context.Context, actor users.Identity, productID string, qty int) (Cart, error) {
	const op = "cart.Add"
	if err := apperr.CheckID(op, "product id", productID); err != nil {
		return Cart{}, err
	}
	if qty < 1 {
		return Cart{}, apperr.Validation(op, "quantity must be at least 1")
	}
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return Cart{}, wrap(op, err)
	}
	have, err := s.store.Quantity(ctx, actor.UserID, productID)
	if err != nil {
		return Cart{}, wrap(op, err)
	}
	if p.Stock < have+qty {
		return Cart{}, ErrInsufficientStock.WithOp(op)
	}
	if err := s.store.Add(ctx, actor.UserID, productID, qty); err != nil {
		return Cart{}, wrap(op, err)
	}
	return s.Get(ctx, actor)
}

// SetQuantity replaces a line's quantity. A quantity of zero or less removes it.
func (s *Service) SetQuantity(ctx context.Context, actor users.Identity, productID string, qty int) (Cart, error) {
	const op = "cart.SetQuantity"
	if err := apperr.CheckID(op, "product id", productID); err != nil {
		return Cart{}, err
	}
	if qty <= 0 {
		return s.Remove(ctx, actor, productID)
	}
	p, err := s.products.Get(ctx, productID)
	if err != nil {
		return Cart{}, wrap(op, err)
	}
	if p.Stock < qty {
		return Cart{}, ErrInsufficientStock.WithOp(op)
	}
	if err := s.store.SetQuantity(ctx, actor.UserID, productID, qty); err != nil {
		return Cart{}, wrap(op, err)
	}
	return s.Get(ctx, actor)
}

func (s *Service) Remove(ctx context.Context, actor users.Identity, productID string) (Cart, error) {
	const op = "cart.Remove"
	if err := apperr.CheckID(op, "product id", productID); err != nil {
		return Cart{}, err
	}
	if err := s.store.Remove(ctx, actor.UserID, productID); err != nil {
		return Cart{}, wrap(op, err)
	}
	return s.Get(ctx, actor)
}

func (s *Service) Clear(ctx context.Context, actor users.Identity) error {
	if err := s.store.Clear(ctx, actor.UserID); err != nil {
		return wrap("cart.Clear", err)
	}
	return nil
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithOp(op)
	}
	return apperr.Internal(op, err)
}

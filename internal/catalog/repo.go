package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/postgres"
)

type Store interface {
	List(ctx context.Context, f Filter) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Insert(ctx context.Context, p Product) error
	SetStock(ctx context.Context, id string, stock int) error
	// Update writes the editable fields of p.
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id string) error
	HasPurchased(ctx context.Context, userID, productID string) (bool, error)
	// AddReview stores r and refreshes the product's rating aggregate.
	AddReview(ctx context.Context, r Review) error
}

var (
	ErrProductNotFound = apperr.NotFound("", "product not found")
	ErrAlreadyReviewed = apperr.Conflict("", "product already reviewed")
	ErrProductOrdered  = apperr.Conflict("", "product appears in orders and cannot be deleted")
)

type Repo struct{ DB *pgxpool.Pool }

const productColumns = `id, COALESCE(owner_id::text, ''), name, description, brand, category, image,
	price, stock, rating, num_reviews, created_at`

func scanProduct(row pgx.Row, p *Product) error {
	return row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.Brand, &p.Category, &p.Image,
		&p.Price, &p.Stock, &p.Rating, &p.NumReviews, &p.CreatedAt)
}

func (r *Repo) List(ctx context.Context, f Filter) ([]Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []any
	if f.Category != "" {
		args = append(args, f.Category)
		sql += ` AND category = $1`
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		args = append(args, "%"+strings.ToLower(kw)+"%")
		sql += ` AND lower(name) LIKE $` + strconv.Itoa(len(args))
	}
	sql += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		var p Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Product, error) {
	var p Product
	err := scanProduct(r.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id), &p)
	if postgres.IsNoRows(err) {
		return Product{}, ErrProductNotFound
	}
	if err != nil {
		return Product{}, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, user_id, name, rating, comment, created_at
		FROM reviews WHERE product_id=$1 ORDER BY created_at`, id)
	if err != nil {
		return Product{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var rv Review
		if err := rows.Scan(&rv.ID, &rv.ProductID, &rv.UserID, &rv.Name, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return Product{}, err
		}
		p.Reviews = append(p.Reviews, rv)
	}
	return p, rows.Err()
}

func (r *Repo) Insert(ctx context.Context, p Product) error {
	var owner any
	if p.OwnerID != "" {
		owner = p.OwnerID
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, owner_id, name, description, brand, category, image, price, stock)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, owner, p.Name, p.Description, p.Brand, p.Category, p.Image, p.Price, p.Stock)
	return err
}

func (r *Repo) SetStock(ctx context.Context, id string, stock int) error {
	ct, err := r.DB.Exec(ctx, `UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, id, stock)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, p Product) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name=$2, description=$3, brand=$4, category=$5, image=$6,
			price=$7, stock=$8, updated_at=now()
		WHERE id=$1`,
		p.ID, p.Name, p.Description, p.Brand, p.Category, p.Image, p.Price, p.Stock)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if postgres.IsForeignKeyViolation(err) {
		return ErrProductOrdered
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repo) HasPurchased(ctx context.Context, userID, productID string) (bool, error) {
	var ok bool
	err := r.DB.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders o JOIN order_items i ON i.order_id = o.id
			WHERE o.user_id=$1 AND i.product_id=$2 AND o.status IN ('paid','shipped','delivered')
		)`, userID, productID).Scan(&ok)
	return ok, err
}

func (r *Repo) AddReview(ctx context.Context, rv Review) error {
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO reviews(id, product_id, user_id, name, rating, comment, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			rv.ID, rv.ProductID, rv.UserID, rv.Name, rv.Rating, rv.Comment, rv.CreatedAt)
		if postgres.IsUniqueViolation(err) {
			return ErrAlreadyReviewed
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE products SET
				num_reviews = (SELECT count(*) FROM reviews WHERE product_id=$1),
				rating = (SELECT COALESCE(round(avg(rating), 2), 0) FROM reviews WHERE product_id=$1),
				updated_at = now()
			WHERE id=$1`, rv.ProductID)
		return err
	})
}

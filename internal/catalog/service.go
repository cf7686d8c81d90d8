package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/users"
)

// UserDirectory resolves reviewer names.
type UserDirectory interface {
	Get(ctx context.Context, userID string) (users.User, error)
}

var ErrNotPurchased = apperr.Forbidden("", "only customers who bought this product can review it")

type Service struct {
	store Store
	users UserDirectory
	now   func() time.Time
}

func NewService(store Store, dir UserDirectory) *Service {
	return &Service{store: store, users: dir, now: time.Now}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	ps, err := s.store.List(ctx, f)
	if err != nil {
		return nil, wrap("catalog.List", err)
	}
	return ps, nil
}

func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	const op = "catalog.Get"
	if err := apperr.CheckID(op, "product id", id); err != nil {
		return Product{}, err
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Product{}, wrap(op, err)
	}
	return p, nil
}

type CreateInput struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"countInStock"`
}

// Create adds a product. Admins and brand accounts only.
func (s *Service) Create(ctx context.Context, actor users.Identity, in CreateInput) (Product, error) {
	const op = "catalog.Create"
	if actor.Role != users.RoleAdmin && actor.Role != users.RoleBrand {
		return Product{}, apperr.Forbidden(op, "not allowed to create products")
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Product{}, apperr.Validation(op, "name is required")
	}
	if in.Price.IsNegative() {
		return Product{}, apperr.Validation(op, "price must not be negative")
	}
	if in.Stock < 0 {
		return Product{}, apperr.Validation(op, "stock must not be negative")
	}
	p := Product{
		ID:          uuid.NewString(),
		OwnerID:     actor.UserID,
		Name:        in.Name,
		Description: in.Description,
		Brand:       in.Brand,
		Category:    in.Category,
		Image:       in.Image,
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
		Rating:      decimal.Zero,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return Product{}, wrap(op, err)
	}
	return p, nil
}

// UpdateStock overwrites the stock count of a product.
func (s *Service) UpdateStock(ctx context.Context, actor users.Identity, id string, stock int) (Product, error) {
	const op = "catalog.UpdateStock"
	if !actor.IsAdmin() {
		return Product{}, apperr.Forbidden(op, "admin only")
	}
	if err := apperr.CheckID(op, "product id", id); err != nil {
		return Product{}, err
	}
	if stock < 0 {
		return Product{}, apperr.Validation(op, "stock must not be negative")
	}
	if err := s.store.SetStock(ctx, id, stock); err != nil {
		return Product{}, wrap(op, err)
	}
	return s.Get(ctx, id)
}

// UpdateInput changes the fields that are set and leaves the rest alone.
type UpdateInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Brand       *string          `json:"brand"`
	Category    *string          `json:"category"`
	Image       *string          `json:"image"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"countInStock"`
}

// Update edits a product. Admins may edit any product, brand accounts only
// their own.
func (s *Service) Update(ctx context.Context, actor users.Identity, id string, in UpdateInput) (Product, error) {
	const op = "catalog.Update"
	p, err := s.editable(ctx, op, actor, id)
	if err != nil {
		return Product{}, err
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Product{}, apperr.Validation(op, "name must not be empty")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Brand != nil {
		p.Brand = *in.Brand
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
	if in.Price != nil {
		if in.Price.IsNegative() {
			return Product{}, apperr.Validation(op, "price must not be negative")
		}
		p.Price = in.Price.Round(2)
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return Product{}, apperr.Validation(op, "stock must not be negative")
		}
		p.Stock = *in.Stock
	}
	if err := s.store.Update(ctx, p); err != nil {
		return Product{}, wrap(op, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a product that no order refers to.
func (s *Service) Delete(ctx context.Context, actor users.Identity, id string) error {
	const op = "catalog.Delete"
	if _, err := s.editable(ctx, op, actor, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return wrap(op, err)
	}
	return nil
}

func (s *Service) editable(ctx context.Context, op string, actor users.Identity, id string) (Product, error) {
	if actor.Role != users.RoleAdmin && actor.Role != users.RoleBrand {
		return Product{}, apperr.Forbidden(op, "not allowed to change products")
	}
	if err := apperr.CheckID(op, "product id", id); err != nil {
		return Product{}, err
	}
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Product{}, wrap(op, err)
	}
	if !actor.IsAdmin() && p.OwnerID != actor.UserID {
		return Product{}, apperr.Forbidden(op, "product belongs to another brand")
	}
	return p, nil
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// AddReview records a review from a customer with a paid order for the product.
func (s *Service) AddReview(ctx context.Context, actor users.Identity, productID string, in ReviewInput) (Product, error) {
	const op = "catalog.AddReview"
	if err := apperr.CheckID(op, "product id", productID); err != nil {
		return Product{}, err
	}
	if in.Rating < 1 || in.Rating > 5 {
		return Product{}, apperr.Validation(op, "rating must be between 1 and 5")
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if in.Comment == "" {
		return Product{}, apperr.Validation(op, "comment is required")
	}
	if _, err := s.store.Get(ctx, productID); err != nil {
		return Product{}, wrap(op, err)
	}
	bought, err := s.store.HasPurchased(ctx, actor.UserID, productID)
	if err != nil {
		return Product{}, wrap(op, err)
	}
	if !bought {
		return Product{}, ErrNotPurchased.WithOp(op)
	}
	u, err := s.users.Get(ctx, actor.UserID)
	if err != nil {
		return Product{}, wrap(op, err)
	}

	rv := Review{
		ID:        uuid.NewString(),
		ProductID: productID,
		UserID:    actor.UserID,
		Name:      u.Name,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.AddReview(ctx, rv); err != nil {
		return Product{}, wrap(op, err)
	}
	return s.Get(ctx, productID)
}

func wrap(op string, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae.WithOp(op)
	}
	return apperr.Internal(op, err)
}

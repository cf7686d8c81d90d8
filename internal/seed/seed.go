// Package seed loads demo data (admin accounts, plans and products) from a
// YAML file into an empty database.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/subscriptions"
	"github.com/ariefcatur/go-storefront/internal/users"
)

type Admin struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Phone    string `yaml:"phone"`
}

// Money fields are strings so YAML never rounds them through float64.
type Plan struct {
	Name         string   `yaml:"name"`
	Price        string   `yaml:"price"`
	Services     []string `yaml:"services"`
	DurationDays int      `yaml:"durationDays"`
}

type Product struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Brand       string `yaml:"brand"`
	Category    string `yaml:"category"`
	Image       string `yaml:"image"`
	Price       string `yaml:"price"`
	Stock       int    `yaml:"countInStock"`
}

type File struct {
	Admins   []Admin   `yaml:"admins"`
	Plans    []Plan    `yaml:"plans"`
	Products []Product `yaml:"products"`
}

func Parse(b []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("seed yaml: %w", err)
	}
	return f, nil
}

func Load(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	return Parse(b)
}

type Registrar interface {
	Register(ctx context.Context, in users.RegisterInput) (users.User, error)
}

type PlanStore interface {
	InsertPlan(ctx context.Context, p subscriptions.Plan) error
}

type ProductStore interface {
	List(ctx context.Context, f catalog.Filter) ([]catalog.Product, error)
	Insert(ctx context.Context, p catalog.Product) error
}

type Seeder struct {
	Users    Registrar
	Plans    PlanStore
	Products ProductStore
	Log      zerolog.Logger
}

// Apply inserts f. Existing admins and plans are skipped; products are only
// seeded into an empty catalog, so Apply can be re-run.
func (s *Seeder) Apply(ctx context.Context, f File) error {
	for _, a := range f.Admins {
		_, err := s.Users.Register(ctx, users.RegisterInput{
			Name: a.Name, Email: a.Email, Password: a.Password, Phone: a.Phone, Role: users.RoleAdmin,
		})
		switch {
		case errors.Is(err, users.ErrEmailTaken):
			s.Log.Info().Str("email", a.Email).Msg("admin exists, skipped")
		case err != nil:
			return fmt.Errorf("admin %s: %w", a.Email, err)
		default:
			s.Log.Info().Str("email", a.Email).Msg("admin created")
		}
	}

	for _, p := range f.Plans {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return fmt.Errorf("plan %s price: %w", p.Name, err)
		}
		err = s.Plans.InsertPlan(ctx, subscriptions.Plan{
			ID: uuid.NewString(), Name: p.Name, Price: price, Services: p.Services, DurationDays: p.DurationDays,
		})
		switch {
		case errors.Is(err, subscriptions.ErrPlanExists):
			s.Log.Info().Str("plan", p.Name).Msg("plan exists, skipped")
		case err != nil:
			return fmt.Errorf("plan %s: %w", p.Name, err)
		}
	}

	existing, err := s.Products.List(ctx, catalog.Filter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.Log.Info().Int("count", len(existing)).Msg("catalog not empty, products skipped")
		return nil
	}
	for _, p := range f.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return fmt.Errorf("product %s price: %w", p.Name, err)
		}
		if err := s.Products.Insert(ctx, catalog.Product{
			ID:          uuid.NewString(),
			Name:        p.Name,
			Description: p.Description,
			Brand:       p.Brand,
			Category:    p.Category,
			Image:       p.Image,
			Price:       price,
			Stock:       p.Stock,
		}); err != nil {
			return fmt.Errorf("product %s: %w", p.Name, err)
		}
	}
	s.Log.Info().Int("products", len(f.Products)).Msg("catalog seeded")
	return nil
}

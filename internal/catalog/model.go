package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"ownerId,omitempty"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"countInStock"`
	Rating      decimal.Decimal `json:"rating"`
	NumReviews  int             `json:"numReviews"`
	Reviews     []Review        `json:"reviews,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	Category string
	Keyword  string
}

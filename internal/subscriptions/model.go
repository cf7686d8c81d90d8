package subscriptions

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Services     []string        `json:"services"`
	DurationDays int             `json:"durationDays"`
}

// Subscription copies plan terms at subscribe time so later plan edits
// do not change what the user bought.
type Subscription struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Plan      string          `json:"plan"`
	Services  []string        `json:"services"`
	Price     decimal.Decimal `json:"price"`
	StartDate time.Time       `json:"startDate"`
	EndDate   time.Time       `json:"endDate"`
	IsActive  bool            `json:"isActive"`
}

func (s *Subscription) apply(p Plan) {
	s.Plan = p.Name
	s.Services = append([]string(nil), p.Services...)
	s.Price = p.Price
	s.EndDate = s.StartDate.AddDate(0, 0, p.DurationDays)
}

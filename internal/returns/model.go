package returns

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
	StatusRefunded Status = "Refunded"
)

// Refunded is a label only. No money moves when it is set.
var validNext = map[Status]map[Status]bool{
	StatusPending:  {StatusApproved: true, StatusRejected: true},
	StatusApproved: {StatusRefunded: true, StatusRejected: true},
	StatusRejected: {},
	StatusRefunded: {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool { return validNext[from][to] }

// Item is the order line being returned, copied from the order.
type Item struct {
	OrderItemID string          `json:"orderItemId"`
	ProductID   string          `json:"productId"`
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

type Request struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"orderId"`
	UserID       string          `json:"userId"`
	Item         Item            `json:"orderItem"`
	Reason       string          `json:"reason"`
	Status       Status          `json:"status"`
	RefundAmount decimal.Decimal `json:"refundAmount"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

type CreateInput struct {
	OrderID     string `json:"orderId"`
	OrderItemID string `json:"orderItemId"`
	Reason      string `json:"reason"`
}

package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type ShippingAddress struct {
	FullName     string `json:"fullName"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
	PhoneNumber  string `json:"phoneNumber"`
}

// LineItem is a product snapshot taken when the order was placed.
type LineItem struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

type Prices struct {
	ItemsPrice    decimal.Decimal `json:"itemsPrice"`
	TaxPrice      decimal.Decimal `json:"taxPrice"`
	ShippingPrice decimal.Decimal `json:"shippingPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
}

type PaymentResult struct {
	PaymentID      string `json:"paymentId"`
	GatewayOrderID string `json:"gatewayOrderId"`
	Signature      string `json:"signature"`
}

type TrackingInfo struct {
	Carrier           string     `json:"carrier"`
	TrackingNumber    string     `json:"trackingNumber"`
	Status            string     `json:"status"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	TrackingURL       string     `json:"trackingUrl,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	Items           []LineItem      `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Prices
	Status         Status         `json:"status"`
	GatewayOrderID string         `json:"gatewayOrderId,omitempty"`
	PaymentResult  *PaymentResult `json:"paymentResult,omitempty"`
	Tracking       *TrackingInfo  `json:"trackingInfo,omitempty"`
	PaidAt         *time.Time     `json:"paidAt,omitempty"`
	ShippedAt      *time.Time     `json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time     `json:"deliveredAt,omitempty"`
	CancelledAt    *time.Time     `json:"cancelledAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// MarshalJSON adds the derived is* flags clients read.
func (o Order) MarshalJSON() ([]byte, error) {
	type plain Order
	return json.Marshal(struct {
		plain
		IsPaid      bool `json:"isPaid"`
		IsShipped   bool `json:"isShipped"`
		IsDelivered bool `json:"isDelivered"`
		IsCancelled bool `json:"isCancelled"`
	}{
		plain:       plain(o),
		IsPaid:      o.Status.IsPaid(),
		IsShipped:   o.Status.IsShipped(),
		IsDelivered: o.Status == StatusDelivered,
		IsCancelled: o.Status == StatusCancelled,
	})
}

// ProductSnapshot is a locked catalog row read during placement.
type ProductSnapshot struct {
	ID    string
	Name  string
	Image string
	Price decimal.Decimal
	Stock int
}

type ItemInput struct {
	ProductID string `json:"product"`
	Quantity  int    `json:"quantity"`
}

type CreateInput struct {
	Items           []ItemInput     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	IdempotencyKey  string          `json:"-"`
}

type PayInput struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
}

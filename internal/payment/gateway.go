package payment

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
)

// GatewayOrder is the gateway's view of a pending payment.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// orderCreator is the slice of the razorpay client we call.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type Gateway struct {
	orders   orderCreator
	currency string
}

func NewGateway(keyID, keySecret, currency string) *Gateway {
	c := razorpay.NewClient(keyID, keySecret)
	return &Gateway{orders: c.Order, currency: currency}
}

// MinorUnits converts an amount to the smallest currency unit (paise, cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// CreateOrder registers a payment order of amount with the gateway.
func (g *Gateway) CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal) (GatewayOrder, error) {
	if err := ctx.Err(); err != nil {
		return GatewayOrder{}, err
	}
	resp, err := g.orders.Create(map[string]interface{}{
		"amount":          MinorUnits(amount),
		"currency":        g.currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}, nil)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("gateway create order: %w", err)
	}

	id, _ := resp["id"].(string)
	if id == "" {
		return GatewayOrder{}, fmt.Errorf("gateway create order: response without id")
	}
	out := GatewayOrder{ID: id, Currency: g.currency, Receipt: receipt, Amount: MinorUnits(amount)}
	if cur, ok := resp["currency"].(string); ok && cur != "" {
		out.Currency = cur
	}
	if amt, ok := resp["amount"].(float64); ok {
		out.Amount = int64(amt)
	}
	return out, nil
}

package orders

import "github.com/shopspring/decimal"

var (
	TaxRate           = decimal.RequireFromString("0.18")
	FreeShippingAbove = decimal.NewFromInt(1000)
	FlatShipping      = decimal.NewFromInt(100)
)

// ComputePrices prices a set of line items. Shipping is free only when the
// items total is strictly above FreeShippingAbove.
func ComputePrices(items []LineItem) Prices {
	itemsPrice := decimal.Zero
	for _, it := range items {
		itemsPrice = itemsPrice.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	tax := itemsPrice.Mul(TaxRate).Round(2)
	shipping := FlatShipping
	if itemsPrice.GreaterThan(FreeShippingAbove) {
		shipping = decimal.Zero
	}
	return Prices{
		ItemsPrice:    itemsPrice,
		TaxPrice:      tax,
		ShippingPrice: shipping,
		TotalPrice:    itemsPrice.Add(tax).Add(shipping),
	}
}

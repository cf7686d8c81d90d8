package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/go-storefront/internal/apperr"
	"github.com/ariefcatur/go-storefront/internal/audit"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/redisx"
)

var (
	ErrEmptyOrder        = apperr.Validation("", "no order items")
	ErrProductNotFound   = apperr.NotFound("", "product not found")
	ErrInsufficientStock = apperr.Validation("", "insufficient stock")
	ErrOrderNotFound     = apperr.NotFound("", "order not found")
	ErrForbidden         = apperr.Forbidden("", "not allowed to access this order")
	ErrAlreadyPaid       = apperr.Conflict("", "order is already paid")
	ErrOrderCancelled    = apperr.Conflict("", "order is cancelled")
	ErrCancelPaid        = apperr.Conflict("", "cannot cancel a paid order")
	ErrAlreadyCancelled  = apperr.Conflict("", "order is already cancelled")
	ErrNotPaid           = apperr.Conflict("", "order is not paid")
	ErrNotShipped        = apperr.Conflict("", "order is not shipped")
	ErrAlreadyShipped    = apperr.Conflict("", "order is already shipped")
	ErrAlreadyDelivered  = apperr.Conflict("", "order is already delivered")
	ErrInvalidSignature  = apperr.Integration("", "invalid signature")
	ErrGatewayMismatch   = apperr.Validation("", "payment does not belong to this order")
	ErrNoTracking        = apperr.NotFound("", "no tracking information for this order")
	ErrRequestInFlight   = apperr.Conflict("", "an order with this idempotency key is still being placed")
)

// Tx is the unit of work used by placement, payment and lifecycle changes.
// Every method runs inside one database transaction.
type Tx interface {
	// LockProducts reads and row-locks the given products. Missing ids are
	// absent from the result.
	LockProducts(ctx context.Context, ids []string) (map[string]ProductSnapshot, error)
	InsertOrder(ctx context.Context, o Order) error
	// DecrementStock fails with ErrInsufficientStock when stock < qty.
	DecrementStock(ctx context.Context, productID string, qty int) error
	IncrementStock(ctx context.Context, productID string, qty int) error
	ClearCart(ctx context.Context, userID string) error
	LockOrder(ctx context.Context, id string) (Order, error)
	UpdateOrder(ctx context.Context, o Order) error
	AppendAudit(ctx context.Context, e audit.Entry) error
}

type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
	Get(ctx context.Context, id string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
}

// Cache holds status snapshots and create idempotency keys.
type Cache interface {
	SetStatus(ctx context.Context, orderID, status string, at time.Time) error
	// FillStatus writes only when no entry exists.
	FillStatus(ctx context.Context, orderID, status string, at time.Time) error
	GetStatus(ctx context.Context, orderID string) (redisx.StatusEntry, bool, error)
	ReserveOrder(ctx context.Context, userID, key string) (string, bool, error)
	RememberOrder(ctx context.Context, userID, key, orderID string) error
	ReleaseOrder(ctx context.Context, userID, key string) error
}

type Gateway interface {
	CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal) (payment.GatewayOrder, error)
}

type SignatureVerifier interface {
	Verify(gatewayOrderID, paymentID, signature string) bool
}

package orders

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderPaid      = "OrderPaid"
	EventOrderShipped   = "OrderShipped"
	EventOrderDelivered = "OrderDelivered"
	EventOrderCancelled = "OrderCancelled"
)

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Items   []ItemQty       `json:"items"`
	Total   decimal.Decimal `json:"total"`
}

type StatusChangedPayload struct {
	OrderID string    `json:"order_id"`
	UserID  string    `json:"user_id"`
	Status  Status    `json:"status"`
	At      time.Time `json:"at"`
}

type OrderCancelledPayload struct {
	OrderID  string    `json:"order_id"`
	UserID   string    `json:"user_id"`
	Restored []ItemQty `json:"restored"`
}

// Events publishes lifecycle events. Publishing is best-effort.
type Events interface {
	OrderCreated(ctx context.Context, o Order)
	StatusChanged(ctx context.Context, o Order)
	OrderCancelled(ctx context.Context, o Order)
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// KafkaEvents writes envelopes to the per-event order topics.
type KafkaEvents struct {
	pub      Publisher
	producer string
	log      zerolog.Logger
}

func NewKafkaEvents(pub Publisher, producer string, log zerolog.Logger) *KafkaEvents {
	return &KafkaEvents{pub: pub, producer: producer, log: log}
}

func (k *KafkaEvents) OrderCreated(ctx context.Context, o Order) {
	k.publish(ctx, TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID: o.ID,
		UserID:  o.UserID,
		Items:   itemQtys(o.Items),
		Total:   o.TotalPrice,
	})
}

func (k *KafkaEvents) StatusChanged(ctx context.Context, o Order) {
	var topic, event string
	var at time.Time
	switch o.Status {
	case StatusPaid:
		topic, event, at = TopicOrderPaid, EventOrderPaid, deref(o.PaidAt)
	case StatusShipped:
		topic, event, at = TopicOrderShipped, EventOrderShipped, deref(o.ShippedAt)
	case StatusDelivered:
		topic, event, at = TopicOrderDelivered, EventOrderDelivered, deref(o.DeliveredAt)
	default:
		return
	}
	k.publish(ctx, topic, event, o.ID, StatusChangedPayload{OrderID: o.ID, UserID: o.UserID, Status: o.Status, At: at})
}

func (k *KafkaEvents) OrderCancelled(ctx context.Context, o Order) {
	k.publish(ctx, TopicOrderCancelled, EventOrderCancelled, o.ID, OrderCancelledPayload{
		OrderID:  o.ID,
		UserID:   o.UserID,
		Restored: itemQtys(o.Items),
	})
}

func (k *KafkaEvents) publish(_ context.Context, topic, event, orderID string, payload any) {
	env, err := kafkax.NewEnvelope(event, k.producer, orderID, payload)
	if err != nil {
		k.log.Warn().Err(err).Str("event", event).Str("order_id", orderID).Msg("event not encoded")
		return
	}
	k.pub.Publish(topic, PartitionKey(orderID), kafkax.MustMarshal(env), env.Headers()...)
}

func itemQtys(items []LineItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.ProductID, Qty: it.Quantity})
	}
	return out
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

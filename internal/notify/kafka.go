package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
)

const (
	TopicNotificationRequested  = "notification.requested"
	TopicNotificationDeadLetter = "notification.requested.dlq"
	EventNotificationRequested  = "NotificationRequested"
)

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// KafkaDispatcher hands requests to cmd/notifier through the event bus.
type KafkaDispatcher struct {
	pub      Publisher
	producer string
	log      zerolog.Logger
}

func NewKafkaDispatcher(pub Publisher, producer string, log zerolog.Logger) *KafkaDispatcher {
	return &KafkaDispatcher{pub: pub, producer: producer, log: log}
}

func (d *KafkaDispatcher) Dispatch(_ context.Context, req Request) {
	env, err := kafkax.NewEnvelope(EventNotificationRequested, d.producer, req.UserID, req)
	if err != nil {
		d.log.Warn().Err(err).Str("type", req.Type).Msg("notification request not encoded")
		return
	}
	d.pub.Publish(TopicNotificationRequested, []byte(req.UserID), kafkax.MustMarshal(env), env.Headers()...)
}

// Notifier executes a request.
type Notifier interface {
	Notify(ctx context.Context, req Request) (*Notification, error)
}

type Deduper interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

// Handler consumes notification.requested events. Each event id is executed
// at most once. A failed Notify is returned so the consumer retries it and,
// once its retries are spent, moves it to the dead letter topic.
type Handler struct {
	svc   Notifier
	dedup Deduper
	log   zerolog.Logger
}

func NewHandler(svc Notifier, dedup Deduper, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, dedup: dedup, log: log}
}

func (h *Handler) Handle(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		h.log.Warn().Err(err).Int64("offset", m.Offset).Msg("undecodable message skipped")
		return nil
	}
	if env.EventType != EventNotificationRequested {
		return nil
	}

	seen, err := h.dedup.Seen(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup lookup: %w", err)
	}
	if seen {
		return nil
	}

	req, err := kafkax.UnwrapPayload[Request](env.Payload)
	if err != nil {
		h.log.Warn().Err(err).Str("event_id", env.EventID).Msg("bad notification payload skipped")
		return nil
	}
	if _, err := h.svc.Notify(ctx, req); err != nil {
		return err
	}
	if err := h.dedup.Mark(ctx, env.EventID); err != nil {
		h.log.Warn().Err(err).Str("event_id", env.EventID).Msg("dedup mark failed")
	}
	return nil
}

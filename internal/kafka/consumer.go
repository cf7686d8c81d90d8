package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// Handler must return nil only when the message was processed and its offset
// may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

// DeadLetter takes a message that kept failing. It returns nil only once the
// message is stored somewhere it can be replayed from.
type DeadLetter func(ctx context.Context, m kafka.Message, cause error) error

// Retry bounds the handler calls made for one message before it is handed to
// the dead letter. The wait starts at Backoff and doubles up to MaxWait.
type Retry struct {
	Attempts int
	Backoff  time.Duration
	MaxWait  time.Duration
}

var DefaultRetry = Retry{Attempts: 5, Backoff: 200 * time.Millisecond, MaxWait: 5 * time.Second}

// run calls fn until it succeeds, the attempts are spent or ctx ends, and
// returns the last error.
func (r Retry) run(ctx context.Context, fn func() error) error {
	wait := r.Backoff
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if attempt >= max(r.Attempts, 1) {
			return err
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
		wait *= 2
		if r.MaxWait > 0 && wait > r.MaxWait {
			wait = r.MaxWait
		}
	}
}

type committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Consumer struct {
	r          *kafka.Reader
	workers    int
	retry      Retry
	deadLetter DeadLetter
	log        zerolog.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log zerolog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, retry: DefaultRetry, log: log}
}

func (c *Consumer) WithRetry(r Retry) *Consumer {
	c.retry = r
	return c
}

// WithDeadLetter sets where messages go once their retries are spent.
// Without one a failing message is retried until shutdown and never committed.
func (c *Consumer) WithDeadLetter(dl DeadLetter) *Consumer {
	c.deadLetter = dl
	return c
}

// Start fetches until ctx ends. Messages of one partition always go to the
// same worker, so a later offset is never committed past a failing one.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup

	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 1024/c.workers+1)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.process(ctx, c.r, h, m, id)
			}
		}(i, jobs[i])
	}

	defer func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			return nil
		}
	}
}

// process commits m only after the handler or the dead letter took it.
func (c *Consumer) process(ctx context.Context, cm committer, h Handler, m kafka.Message, worker int) {
	log := c.log.With().Int("worker", worker).Int("partition", m.Partition).Int64("offset", m.Offset).Logger()
	for {
		err := c.retry.run(ctx, func() error {
			err := h(ctx, m)
			if err != nil {
				log.Warn().Err(err).Msg("handler failed")
			}
			return err
		})
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			log.Info().Msg("shutdown with message unhandled, left uncommitted")
			return
		}
		if c.deadLetter != nil {
			dlErr := c.deadLetter(ctx, m, err)
			if dlErr == nil {
				log.Error().Err(err).Msg("message dead-lettered")
				break
			}
			log.Error().Err(dlErr).Msg("dead letter write failed")
		}
		log.Error().Err(err).Msg("retries spent, starting over")
	}
	if err := cm.CommitMessages(ctx, m); err != nil {
		log.Warn().Err(err).Msg("commit failed")
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// DeadLetterTopic writes failed messages synchronously to topic. The copy
// keeps key, value and headers and records the cause and source offset.
func DeadLetterTopic(w messageWriter, topic string) DeadLetter {
	return func(ctx context.Context, m kafka.Message, cause error) error {
		headers := append([]kafka.Header(nil), m.Headers...)
		headers = append(headers,
			kafka.Header{Key: "x-dlq-cause", Value: []byte(cause.Error())},
			kafka.Header{Key: "x-dlq-source", Value: []byte(fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset))},
		)
		return w.WriteMessages(ctx, kafka.Message{
			Topic:   topic,
			Key:     m.Key,
			Value:   m.Value,
			Headers: headers,
			Time:    time.Now(),
		})
	}
}

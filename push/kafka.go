package push

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Kafka reads a shared state topic and keeps messages keyed by the slug.
type Kafka struct {
	brokers []string
	topic   string
	groupID string
	backoff Backoff
	logFn   LogFunc

	mu      sync.Mutex
	readers []*kafka.Reader
	closed  bool
}

func NewKafka(brokers []string, topic, groupID string, b Backoff, logFn LogFunc) *Kafka {
	return &Kafka{brokers: brokers, topic: topic, groupID: groupID, backoff: b, logFn: defaultLog(logFn)}
}

func (k *Kafka) Subscribe(ctx context.Context, slug string, h Handler) error {
	return retry(ctx, "kafka "+k.topic, k.backoff, k.logFn, func(ctx context.Context, connected func()) error {
		if k.isClosed() {
			return ErrClosed
		}
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  k.brokers,
			Topic:    k.topic,
			GroupID:  k.groupID,
			MinBytes: 1,
			MaxBytes: 4 << 20,
		})
		k.track(reader)
		defer k.untrack(reader)

		first := true
		for {
			msg, err := reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				if k.isClosed() {
					return ErrClosed
				}
				return fmt.Errorf("fetch: %w", err)
			}
			if first {
				connected()
				first = false
			}
			if Matches(msg, slug) {
				deliver(ctx, "kafka", msg.Value, h, k.logFn)
			}
			if err := reader.CommitMessages(ctx, msg); err != nil {
				k.logFn("push: kafka commit: %v", err)
			}
		}
	})
}

// Matches reports whether msg belongs to slug. Unkeyed messages are ignored.
func Matches(msg kafka.Message, slug string) bool {
	return string(msg.Key) == slug
}

func (k *Kafka) isClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closed
}

func (k *Kafka) track(r *kafka.Reader) {
	k.mu.Lock()
	k.readers = append(k.readers, r)
	k.mu.Unlock()
}

func (k *Kafka) untrack(r *kafka.Reader) {
	k.mu.Lock()
	for i, x := range k.readers {
		if x == r {
			k.readers = append(k.readers[:i], k.readers[i+1:]...)
			break
		}
	}
	k.mu.Unlock()
	r.Close()
}

// Close closes any open readers, which ends their sessions.
func (k *Kafka) Close() error {
	k.mu.Lock()
	k.closed = true
	readers := append([]*kafka.Reader(nil), k.readers...)
	k.mu.Unlock()
	var errs []error
	for _, r := range readers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

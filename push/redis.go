package push

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis subscribes to the pub/sub channel prefix+slug.
type Redis struct {
	client  *redis.Client
	prefix  string
	backoff Backoff
	logFn   LogFunc
}

func NewRedis(client *redis.Client, prefix string, b Backoff, logFn LogFunc) *Redis {
	return &Redis{client: client, prefix: prefix, backoff: b, logFn: defaultLog(logFn)}
}

func (r *Redis) Channel(slug string) string { return r.prefix + slug }

func (r *Redis) Subscribe(ctx context.Context, slug string, h Handler) error {
	channel := r.Channel(slug)
	return retry(ctx, "redis "+channel, r.backoff, r.logFn, func(ctx context.Context, connected func()) error {
		ps := r.client.Subscribe(ctx, channel)
		defer ps.Close()
		if _, err := ps.Receive(ctx); err != nil {
			return fmt.Errorf("subscribe %s: %w", channel, err)
		}
		connected()
		r.logFn("push: redis subscribed to %s", channel)
		for {
			msg, err := ps.ReceiveMessage(ctx)
			if err != nil {
				return err
			}
			deliver(ctx, "redis", []byte(msg.Payload), h, r.logFn)
		}
	})
}

// Publish sends raw on the slug's channel. Used by the web API and tests.
func (r *Redis) Publish(ctx context.Context, slug string, raw []byte) error {
	return r.client.Publish(ctx, r.Channel(slug), raw).Err()
}

// Close is a no-op; the client is owned by the caller.
func (r *Redis) Close() error { return nil }

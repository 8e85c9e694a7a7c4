package snapcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"smartmenu/state"
)

// RedisStore keeps one JSON snapshot per slug under prefix+slug.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "smartmenu:snapshot:"
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisStore) key(slug string) string { return r.prefix + slug }

func (r *RedisStore) SetSnapshot(ctx context.Context, slug string, snap *state.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("snapcache: encode %s: %w", slug, err)
	}
	return r.client.Set(ctx, r.key(slug), data, r.ttl).Err()
}

// GetSnapshot returns nil without error when the key is missing.
func (r *RedisStore) GetSnapshot(ctx context.Context, slug string) (*state.Snapshot, error) {
	data, err := r.client.Get(ctx, r.key(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap state.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("snapcache: decode %s: %w", slug, err)
	}
	return &snap, nil
}

// Slugs lists the slugs that currently have a cached snapshot.
func (r *RedisStore) Slugs(ctx context.Context) ([]string, error) {
	var slugs []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		slugs = append(slugs, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	return slugs, iter.Err()
}

// FlushAll deletes every cached snapshot under the prefix.
func (r *RedisStore) FlushAll(ctx context.Context) error {
	slugs, err := r.Slugs(ctx)
	if err != nil {
		return err
	}
	if len(slugs) == 0 {
		return nil
	}
	keys := make([]string, len(slugs))
	for i, s := range slugs {
		keys[i] = r.key(s)
	}
	return r.client.Del(ctx, keys...).Err()
}

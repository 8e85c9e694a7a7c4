// Package snapcache keeps the latest applied snapshot per slug. Writes go to
// the journal first and then to Redis; reads prefer Redis and fall back to
// the journal.
package snapcache

import (
	"context"
	"log"

	"smartmenu/journal"
	"smartmenu/state"
)

type Manager struct {
	db    *journal.DB
	redis *RedisStore
	keep  int
}

// NewManager accepts a nil redis store, in which case it reads and writes the
// journal only.
func NewManager(db *journal.DB, redis *RedisStore) *Manager {
	return &Manager{db: db, redis: redis}
}

// SetRetention caps the journal at keep entries per slug. Zero disables
// pruning.
func (m *Manager) SetRetention(keep int) { m.keep = keep }

// Record journals snap and refreshes the Redis copy.
func (m *Manager) Record(slug string, src state.Source, snap *state.Snapshot) (*journal.Entry, error) {
	e, err := m.db.RecordApplied(slug, src, snap)
	if err != nil {
		return nil, err
	}
	m.refreshRedis(slug, snap)
	m.prune(slug)
	return e, nil
}

// RecordFailure journals a swallowed fetch error. Redis is untouched.
func (m *Manager) RecordFailure(slug string, src state.Source, cause error) (*journal.Entry, error) {
	e, err := m.db.RecordFailure(slug, src, cause)
	if err != nil {
		return nil, err
	}
	m.prune(slug)
	return e, nil
}

func (m *Manager) prune(slug string) {
	if m.keep <= 0 {
		return
	}
	if _, err := m.db.Prune(slug, m.keep); err != nil {
		log.Printf("snapcache: prune %s: %v", slug, err)
	}
}

// Get reads the latest snapshot from Redis, falling back to the journal.
func (m *Manager) Get(slug string) (*state.Snapshot, error) {
	if m.redis != nil {
		snap, err := m.redis.GetSnapshot(context.Background(), slug)
		if err == nil && snap != nil {
			return snap, nil
		}
	}
	return m.db.LatestSnapshot(slug)
}

// Entries lists recent journal entries for slug.
func (m *Manager) Entries(slug string, limit int) ([]*journal.Entry, error) {
	return m.db.ListEntries(slug, limit)
}

// SyncRedisFromJournal rebuilds the Redis copies from the journal. Called on
// startup.
func (m *Manager) SyncRedisFromJournal() error {
	if m.redis == nil {
		return nil
	}
	ctx := context.Background()
	if err := m.redis.FlushAll(ctx); err != nil {
		log.Printf("snapcache: flush redis: %v", err)
	}

	slugs, err := m.db.Slugs()
	if err != nil {
		return err
	}
	synced := 0
	for _, slug := range slugs {
		snap, err := m.db.LatestSnapshot(slug)
		if err != nil || snap == nil {
			log.Printf("snapcache: sync %s: %v", slug, err)
			continue
		}
		if err := m.redis.SetSnapshot(ctx, slug, snap); err != nil {
			log.Printf("snapcache: sync %s: %v", slug, err)
			continue
		}
		synced++
	}

	log.Printf("snapcache: synced %d snapshots to redis", synced)
	return nil
}

func (m *Manager) refreshRedis(slug string, snap *state.Snapshot) {
	if m.redis == nil {
		return
	}
	if err := m.redis.SetSnapshot(context.Background(), slug, snap); err != nil {
		log.Printf("snapcache: refresh redis for %s: %v", slug, err)
	}
}

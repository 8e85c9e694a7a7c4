package journal

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"smartmenu/state"
)

const (
	KindApplied = "applied"
	KindFailure = "failure"
)

// Entry is one journal row. Detail holds the snapshot JSON for applied
// entries and the error text for failures.
type Entry struct {
	Seq       int64     `json:"seq"`
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Source    string    `json:"source"`
	Kind      string    `json:"kind"`
	Version   int64     `json:"version"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

func (db *DB) insert(e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := db.Exec(db.Q(`INSERT INTO entries (entry_id, slug, source, kind, version, detail) VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, e.Slug, e.Source, e.Kind, e.Version, e.Detail)
	if err != nil {
		return fmt.Errorf("journal: insert %s entry: %w", e.Kind, err)
	}
	return nil
}

// RecordApplied stores the snapshot that resulted from applying a payload.
func (db *DB) RecordApplied(slug string, src state.Source, snap *state.Snapshot) (*Entry, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("journal: encode snapshot: %w", err)
	}
	e := &Entry{Slug: slug, Source: string(src), Kind: KindApplied, Version: snap.Version, Detail: string(data)}
	return e, db.insert(e)
}

// RecordFailure stores a swallowed hydration or refresh error.
func (db *DB) RecordFailure(slug string, src state.Source, cause error) (*Entry, error) {
	e := &Entry{Slug: slug, Source: string(src), Kind: KindFailure, Detail: cause.Error()}
	return e, db.insert(e)
}

// ListEntries returns the newest entries first. An empty slug lists all.
func (db *DB) ListEntries(slug string, limit int) ([]*Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)
	const cols = `SELECT seq, entry_id, slug, source, kind, version, detail, created_at FROM entries`
	if slug == "" {
		rows, err = db.Query(db.Q(cols+` ORDER BY seq DESC LIMIT ?`), limit)
	} else {
		rows, err = db.Query(db.Q(cols+` WHERE slug = ? ORDER BY seq DESC LIMIT ?`), slug, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.Seq, &e.ID, &e.Slug, &e.Source, &e.Kind, &e.Version, &e.Detail, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// LatestSnapshot returns the last applied snapshot for slug, or nil when
// nothing has been recorded.
func (db *DB) LatestSnapshot(slug string) (*state.Snapshot, error) {
	var detail string
	err := db.QueryRow(db.Q(`SELECT detail FROM entries WHERE slug = ? AND kind = ? ORDER BY seq DESC LIMIT 1`),
		slug, KindApplied).Scan(&detail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("journal: latest snapshot: %w", err)
	}
	var snap state.Snapshot
	if err := json.Unmarshal([]byte(detail), &snap); err != nil {
		return nil, fmt.Errorf("journal: decode snapshot: %w", err)
	}
	return &snap, nil
}

// Slugs lists every slug with at least one applied entry.
func (db *DB) Slugs() ([]string, error) {
	rows, err := db.Query(db.Q(`SELECT DISTINCT slug FROM entries WHERE kind = ? ORDER BY slug`), KindApplied)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slugs []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		slugs = append(slugs, s)
	}
	return slugs, rows.Err()
}

// Prune keeps the newest keep entries per slug and deletes the rest.
func (db *DB) Prune(slug string, keep int) (int64, error) {
	res, err := db.Exec(db.Q(`DELETE FROM entries WHERE slug = ? AND seq NOT IN (SELECT seq FROM entries WHERE slug = ? ORDER BY seq DESC LIMIT ?)`),
		slug, slug, keep)
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return res.RowsAffected()
}

package journal

import (
	"errors"
	"path/filepath"
	"testing"

	"smartmenu/config"
	"smartmenu/state"
	"smartmenu/wire"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "journal.db")},
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRebind(t *testing.T) {
	cases := []struct{ in, want string }{
		{`SELECT 1`, `SELECT 1`},
		{`a = ? AND b = ?`, `a = $1 AND b = $2`},
		{`x = '?' AND y = ?`, `x = '?' AND y = $1`},
		{`VALUES (?, ?, ?)`, `VALUES ($1, $2, $3)`},
	}
	for _, c := range cases {
		if got := Rebind(c.in); got != c.want {
			t.Errorf("Rebind(%q) = %q, want %q", c.in, got, c.want)
		}
	}
	if got := (postgresDialect{}).Rewrite(`SET t = datetime('now','localtime') WHERE id = ?`); got != `SET t = NOW() WHERE id = $1` {
		t.Errorf("postgres rewrite: %q", got)
	}
	if got := (sqliteDialect{}).Rewrite(`a = ?`); got != `a = ?` {
		t.Errorf("sqlite rewrite: %q", got)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(&config.DatabaseConfig{Driver: "oracle"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecordAndLatestSnapshot(t *testing.T) {
	db := testDB(t)
	if db.Driver() != "sqlite" || db.Dialect().Name() != "sqlite" {
		t.Fatalf("driver %s", db.Driver())
	}

	snap, err := db.LatestSnapshot("t1")
	if err != nil || snap != nil {
		t.Fatalf("empty journal: %v %v", snap, err)
	}

	first := &state.Snapshot{Order: state.Order{ID: "5", Status: "opened", TotalCount: 1}, Version: 3}
	second := &state.Snapshot{
		Order:   state.Order{ID: "6", Status: "ordered", Items: []wire.OrderLine{{ID: "1", Name: "Soup", Price: 4.5}}},
		Totals:  &wire.Totals{Gross: 12.5, Currency: wire.Currency{Symbol: "€"}},
		Flags:   &state.Flags{PayVisible: wire.Bool(true)},
		Version: 4,
	}
	if _, err := db.RecordApplied("t1", state.SourceHydration, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	e, err := db.RecordApplied("t1", state.SourcePush, second)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if e.ID == "" || e.Version != 4 {
		t.Fatalf("entry %+v", e)
	}
	if _, err := db.RecordApplied("t2", state.SourceDataset, &state.Snapshot{Order: state.Order{ID: "99"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.RecordFailure("t1", state.SourceRefresh, errors.New("hydrate: status 503")); err != nil {
		t.Fatal(err)
	}

	got, err := db.LatestSnapshot("t1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if got.Order.ID != "6" || len(got.Order.Items) != 1 || got.Order.Items[0].Name != "Soup" {
		t.Fatalf("order %+v", got.Order)
	}
	if got.Totals == nil || got.Totals.Gross != 12.5 || got.Totals.Currency.Symbol != "€" {
		t.Fatalf("totals %+v", got.Totals)
	}
	if !got.PayVisible() || got.Version != 4 {
		t.Fatalf("flags/version %+v %d", got.Flags, got.Version)
	}

	entries, err := db.ListEntries("t1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Kind != KindFailure || entries[0].Source != "refresh" || entries[0].Detail != "hydrate: status 503" {
		t.Fatalf("newest %+v", entries[0])
	}
	if entries[0].CreatedAt.IsZero() {
		t.Fatal("created_at not parsed")
	}
	all, _ := db.ListEntries("", 2)
	if len(all) != 2 {
		t.Fatalf("limit: %d", len(all))
	}

	slugs, err := db.Slugs()
	if err != nil || len(slugs) != 2 || slugs[0] != "t1" || slugs[1] != "t2" {
		t.Fatalf("slugs %v %v", slugs, err)
	}
}

func TestPrune(t *testing.T) {
	db := testDB(t)
	for i := 0; i < 5; i++ {
		if _, err := db.RecordApplied("t1", state.SourcePush, &state.Snapshot{Version: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := db.Prune("t1", 2)
	if err != nil || n != 3 {
		t.Fatalf("pruned %d %v", n, err)
	}
	latest, _ := db.LatestSnapshot("t1")
	if latest.Version != 4 {
		t.Fatalf("latest version %d", latest.Version)
	}
}

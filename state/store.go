package state

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"smartmenu/wire"
)

// ErrStaleVersion is returned by Apply when the version gate drops a payload.
var ErrStaleVersion = errors.New("state: stale payload version")

// Source says where an applied payload came from.
type Source string

const (
	SourceDataset   Source = "dataset"
	SourceHydration Source = "hydration"
	SourcePush      Source = "push"
	SourceRefresh   Source = "refresh"
)

// DatasetSource is the bootstrap context element.
type DatasetSource interface {
	Dataset() map[string]string
	SetDataset(attrs map[string]string) bool
}

// Hydrator fetches the canonical state document.
type Hydrator interface {
	Fetch(ctx context.Context, slug string) (*wire.Payload, error)
}

// Observer is told about applied payloads and failed hydrations. Calls are
// made outside the store's locks.
type Observer interface {
	PayloadApplied(src Source, snap *Snapshot)
	HydrationFailed(src Source, err error)
}

type noopObserver struct{}

func (noopObserver) PayloadApplied(Source, *Snapshot) {}
func (noopObserver) HydrationFailed(Source, error)    {}

// MapDataset is a DatasetSource backed by a plain map, for tests and for
// running without a page.
type MapDataset struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMapDataset(m map[string]string) *MapDataset {
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return &MapDataset{m: cp}
}

func (d *MapDataset) Dataset() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := make(map[string]string, len(d.m))
	for k, v := range d.m {
		cp[k] = v
	}
	return cp
}

func (d *MapDataset) SetDataset(attrs map[string]string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	changed := false
	for k, v := range attrs {
		cur, ok := d.m[k]
		if v == "" {
			if ok {
				delete(d.m, k)
				changed = true
			}
			continue
		}
		if !ok || cur != v {
			d.m[k] = v
			changed = true
		}
	}
	return changed
}

type Config struct {
	Slug     string
	Context  DatasetSource
	Hydrator Hydrator
	Observer Observer
	// VersionGate drops payloads whose non-zero version is lower than the
	// highest version applied so far. Off by default: last write wins.
	VersionGate bool
	LogFunc     LogFunc
}

// Store owns the current Snapshot. Writers serialise on mu; readers load the
// published pointer without locking. Dispatch runs under its own lock and
// always publishes the latest snapshot, so subscribers never see an older
// snapshot after a newer one. Subscribers must not call Apply or Dispatch
// synchronously.
type Store struct {
	slug     string
	ctxSrc   DatasetSource
	hydrator Hydrator
	observer Observer
	gate     bool
	logFn    LogFunc
	events   *Events

	mu          sync.Mutex
	bound       bool
	baseCtx     context.Context
	lastVersion int64

	snap       atomic.Pointer[Snapshot]
	dispatchMu sync.Mutex
	inflight   sync.WaitGroup
}

func New(c Config) *Store {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	obs := c.Observer
	if obs == nil {
		obs = noopObserver{}
	}
	s := &Store{
		slug:     c.Slug,
		ctxSrc:   c.Context,
		hydrator: c.Hydrator,
		observer: obs,
		gate:     c.VersionGate,
		logFn:    logFn,
		events:   newEvents(logFn),
		baseCtx:  context.Background(),
	}
	s.snap.Store(&Snapshot{})
	return s
}

// Snapshot returns the current snapshot. It is never nil and must not be modified.
func (s *Store) Snapshot() *Snapshot { return s.snap.Load() }

func (s *Store) Events() *Events { return s.events }

func (s *Store) Slug() string { return s.slug }

// ApplyDatasetState rebuilds the snapshot from the context element. Totals,
// flags and items are dropped, so the result always needs hydration.
func (s *Store) ApplyDatasetState() *Snapshot {
	var ds map[string]string
	if s.ctxSrc != nil {
		ds = s.ctxSrc.Dataset()
	}
	next := fromDataset(ds)
	s.mu.Lock()
	s.snap.Store(next)
	s.mu.Unlock()
	return next
}

// ApplyJSONState merges p into the current snapshot and publishes the result.
// It does not dispatch.
func (s *Store) ApplyJSONState(p *wire.Payload) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.snap.Load()
	if p == nil {
		return cur, nil
	}
	if s.gate && p.Version != nil && *p.Version != 0 && *p.Version < s.lastVersion {
		return cur, fmt.Errorf("%w: got %d, have %d", ErrStaleVersion, *p.Version, s.lastVersion)
	}
	next := merge(cur, p)
	if p.Version != nil && *p.Version > s.lastVersion {
		s.lastVersion = *p.Version
	}
	s.snap.Store(next)
	return next, nil
}

// Dispatch publishes the current snapshot on every topic, then the legacy
// named events.
func (s *Store) Dispatch() {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	snap := s.snap.Load()
	s.events.Changed.Publish(snap)
	s.events.Order.Publish(snap.Order)
	s.events.Menu.Publish(MenuChange{MenuID: snap.MenuID})
	s.events.Flags.Publish(FlagsChange{Restaurant: snap.Restaurant, Flags: snap.Flags})

	s.events.Named.Emit(EventStateChanged, snap)
	s.events.Named.Emit(EventStateOrder, snap.Order)
	s.events.Named.Emit(EventStateMenu, MenuChange{MenuID: snap.MenuID})
	s.events.Named.Emit(EventStateFlags, FlagsChange{Restaurant: snap.Restaurant, Flags: snap.Flags})
	s.events.Named.Emit(EventOrdrUpdated, nil)
	s.events.Named.Emit(EventOrdrOrderUpdated, nil)
}

// Apply merges p, dispatches and notifies the observer. This is the path for
// hydration responses, push updates and refreshes.
func (s *Store) Apply(src Source, p *wire.Payload) error {
	snap, err := s.ApplyJSONState(p)
	if err != nil {
		return err
	}
	s.Dispatch()
	s.observer.PayloadApplied(src, snap)
	return nil
}

// NeedsHydration reports whether the current snapshot lacks server state.
func (s *Store) NeedsHydration() bool { return s.Snapshot().NeedsHydration() }

// Connect bootstraps from the dataset, dispatches and hydrates when needed.
// Only the first call has any effect. ctx bounds every later background
// hydration.
func (s *Store) Connect(ctx context.Context) {
	s.mu.Lock()
	if s.bound {
		s.mu.Unlock()
		return
	}
	s.bound = true
	if ctx != nil {
		s.baseCtx = ctx
	}
	s.mu.Unlock()

	s.ApplyDatasetState()
	s.Dispatch()
	if s.NeedsHydration() {
		s.hydrate("connect")
	}
}

func (s *Store) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// PageShow handles a page restore. persisted is true for a back/forward
// cache restore, which always re-hydrates.
func (s *Store) PageShow(persisted bool) {
	if !s.connected() {
		return
	}
	if persisted || s.NeedsHydration() {
		s.hydrate("pageshow")
	}
}

// VisibilityChange re-hydrates when the page becomes visible while unhydrated.
func (s *Store) VisibilityChange(visible bool) {
	if !s.connected() {
		return
	}
	if visible && s.NeedsHydration() {
		s.hydrate("visibilitychange")
	}
}

// UpdateDataset writes dataset keys onto the context element. When that
// changed anything on a connected store, the snapshot is rebuilt from the
// dataset, dispatched and hydrated again if needed.
func (s *Store) UpdateDataset(attrs map[string]string) bool {
	if s.ctxSrc == nil || !s.ctxSrc.SetDataset(attrs) {
		return false
	}
	if !s.connected() {
		return true
	}
	s.ApplyDatasetState()
	s.Dispatch()
	if s.NeedsHydration() {
		s.hydrate("dataset")
	}
	return true
}

// Refresh fetches and applies the state synchronously.
func (s *Store) Refresh(ctx context.Context) (*Snapshot, error) {
	if s.hydrator == nil {
		return nil, errors.New("state: refresh: no hydrator")
	}
	p, err := s.hydrator.Fetch(ctx, s.slug)
	if err != nil {
		s.observer.HydrationFailed(SourceRefresh, err)
		return nil, fmt.Errorf("state: refresh: %w", err)
	}
	if err := s.Apply(SourceRefresh, p); err != nil {
		return nil, fmt.Errorf("state: refresh: %w", err)
	}
	return s.Snapshot(), nil
}

// Wait blocks until background hydrations started so far have finished.
func (s *Store) Wait() { s.inflight.Wait() }

// hydrate starts a background fetch. Concurrent hydrations are allowed; the
// one applied last wins. Failures are reported to the observer and otherwise
// ignored until the next trigger.
func (s *Store) hydrate(reason string) {
	if s.hydrator == nil {
		return
	}
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		p, err := s.hydrator.Fetch(ctx, s.slug)
		if err != nil {
			s.logFn("state: hydration (%s) failed: %v", reason, err)
			s.observer.HydrationFailed(SourceHydration, err)
			return
		}
		if err := s.Apply(SourceHydration, p); err != nil {
			s.logFn("state: hydration (%s) dropped: %v", reason, err)
		}
	}()
}

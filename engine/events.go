package engine

import (
	"runtime/debug"
	"sync"
	"time"

	"smartmenu/state"
)

type EventType int

const (
	EventSnapshotApplied EventType = iota + 1
	EventHydrationFailed
	EventPushConnected
	EventPushStopped
	EventLifecycle
)

func (t EventType) String() string {
	switch t {
	case EventSnapshotApplied:
		return "snapshot-applied"
	case EventHydrationFailed:
		return "hydration-failed"
	case EventPushConnected:
		return "push-connected"
	case EventPushStopped:
		return "push-stopped"
	case EventLifecycle:
		return "lifecycle"
	}
	return "unknown"
}

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// --- Event payloads ---

type SnapshotAppliedEvent struct {
	Slug     string          `json:"slug"`
	Source   state.Source    `json:"source"`
	Snapshot *state.Snapshot `json:"snapshot"`
}

type HydrationFailedEvent struct {
	Slug   string       `json:"slug"`
	Source state.Source `json:"source"`
	Error  string       `json:"error"`
}

type PushEvent struct {
	Backend string `json:"backend"`
	Detail  string `json:"detail"`
}

type LifecycleEvent struct {
	Name   string `json:"name"` // "pageshow", "visibilitychange", "modal-show", "dataset"
	Detail string `json:"detail,omitempty"`
}

// EventBus fans engine events out to subscribers, synchronously and in
// subscription order.
type EventBus struct {
	mu     sync.RWMutex
	subs   []subscription
	nextID int
	logFn  LogFunc
}

type subscription struct {
	id    int
	types map[EventType]bool
	fn    func(Event)
}

func NewEventBus(logFn LogFunc) *EventBus {
	return &EventBus{logFn: logFn}
}

// SubscribeTypes registers fn for the given types, or every type when none
// are given. The returned id unsubscribes.
func (b *EventBus) SubscribeTypes(fn func(Event), types ...EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var set map[EventType]bool
	if len(types) > 0 {
		set = make(map[EventType]bool, len(types))
		for _, t := range types {
			set[t] = true
		}
	}
	b.nextID++
	b.subs = append(b.subs, subscription{id: b.nextID, types: set, fn: fn})
	return b.nextID
}

func (b *EventBus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()
	for _, s := range subs {
		if s.types != nil && !s.types[evt.Type] {
			continue
		}
		b.deliver(s, evt)
	}
}

func (b *EventBus) deliver(s subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil && b.logFn != nil {
			b.logFn("engine: %s subscriber panicked: %v\n%s", evt.Type, r, debug.Stack())
		}
	}()
	s.fn(evt)
}

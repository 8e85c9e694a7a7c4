package state

import (
	"log"
	"runtime/debug"
	"sync"
)

// LogFunc receives diagnostics from the store and its topics.
type LogFunc func(format string, args ...any)

// Topic is a typed, synchronous fan-out. Handlers run in subscription order
// on the publishing goroutine; a panicking handler is logged and skipped so
// the rest still see the event.
type Topic[T any] struct {
	name  string
	logFn LogFunc

	mu     sync.RWMutex
	nextID int
	subs   []topicSub[T]
}

type topicSub[T any] struct {
	id int
	fn func(T)
}

// NewTopic creates a topic. name only appears in log lines.
func NewTopic[T any](name string, logFn LogFunc) *Topic[T] {
	if logFn == nil {
		logFn = log.Printf
	}
	return &Topic[T]{name: name, logFn: logFn}
}

// Subscribe registers fn and returns a function that removes it.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, topicSub[T]{id: id, fn: fn})
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, s := range t.subs {
				if s.id == id {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers v to every current subscriber.
func (t *Topic[T]) Publish(v T) {
	t.mu.RLock()
	subs := make([]topicSub[T], len(t.subs))
	copy(subs, t.subs)
	t.mu.RUnlock()

	for _, s := range subs {
		t.deliver(s.fn, v)
	}
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

func (t *Topic[T]) deliver(fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			t.logFn("state: %s subscriber panic: %v\n%s", t.name, r, debug.Stack())
		}
	}()
	fn(v)
}

// Legacy event names kept for listeners that predate the typed topics.
const (
	EventStateChanged     = "state:changed"
	EventStateOrder       = "state:order"
	EventStateMenu        = "state:menu"
	EventStateFlags       = "state:flags"
	EventOrdrUpdated      = "ordr:updated"
	EventOrdrOrderUpdated = "ordr:order:updated"
)

// NamedEvent is a legacy notification. Detail is nil for the ordr:* aliases.
type NamedEvent struct {
	Name   string
	Detail any
}

// NamedBus carries the legacy string-named notifications.
type NamedBus struct {
	topic *Topic[NamedEvent]
}

func NewNamedBus(logFn LogFunc) *NamedBus {
	return &NamedBus{topic: NewTopic[NamedEvent]("named", logFn)}
}

// Subscribe registers fn for the given names, or for every name when none are given.
func (b *NamedBus) Subscribe(fn func(NamedEvent), names ...string) func() {
	if len(names) == 0 {
		return b.topic.Subscribe(fn)
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	return b.topic.Subscribe(func(ev NamedEvent) {
		if want[ev.Name] {
			fn(ev)
		}
	})
}

func (b *NamedBus) Emit(name string, detail any) {
	b.topic.Publish(NamedEvent{Name: name, Detail: detail})
}

// Events groups the store's topics.
type Events struct {
	Changed *Topic[*Snapshot]
	Order   *Topic[Order]
	Menu    *Topic[MenuChange]
	Flags   *Topic[FlagsChange]
	Named   *NamedBus
}

func newEvents(logFn LogFunc) *Events {
	return &Events{
		Changed: NewTopic[*Snapshot]("changed", logFn),
		Order:   NewTopic[Order]("order", logFn),
		Menu:    NewTopic[MenuChange]("menu", logFn),
		Flags:   NewTopic[FlagsChange]("flags", logFn),
		Named:   NewNamedBus(logFn),
	}
}

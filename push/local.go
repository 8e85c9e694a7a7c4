package push

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("push: subscriber closed")

// Local is an in-process backend. The web API publishes to it so operators
// can push state without a broker.
type Local struct {
	mu     sync.Mutex
	subs   map[string]map[int]chan localMsg
	nextID int
	closed bool
	done   chan struct{}
	logFn  LogFunc
}

// localMsg carries a raw message; reply is set when the sender waits for the
// handler result.
type localMsg struct {
	raw   []byte
	reply chan error
}

func NewLocal(logFn LogFunc) *Local {
	return &Local{
		subs:  make(map[string]map[int]chan localMsg),
		done:  make(chan struct{}),
		logFn: defaultLog(logFn),
	}
}

// Publish fans raw out to every subscriber of slug and returns how many were
// reached. Slow subscribers drop the message rather than block.
func (l *Local) Publish(slug string, raw []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ch := range l.subs[slug] {
		select {
		case ch <- localMsg{raw: raw}:
			n++
		default:
			l.logFn("push: local subscriber for %s full, dropping message", slug)
		}
	}
	return n
}

// Send delivers raw to every subscriber of slug and waits for their handlers.
// It returns how many subscribers took the message and the joined handler
// errors, including ErrNotState when raw carries no state.
func (l *Local) Send(ctx context.Context, slug string, raw []byte) (int, error) {
	l.mu.Lock()
	reply := make(chan error, len(l.subs[slug]))
	n := 0
	for _, ch := range l.subs[slug] {
		select {
		case ch <- localMsg{raw: raw, reply: reply}:
			n++
		default:
			l.logFn("push: local subscriber for %s full, dropping message", slug)
		}
	}
	l.mu.Unlock()

	var errs []error
	for i := 0; i < n; i++ {
		select {
		case err := <-reply:
			errs = append(errs, err)
		case <-ctx.Done():
			return n, ctx.Err()
		case <-l.done:
			return n, ErrClosed
		}
	}
	return n, errors.Join(errs...)
}

func (l *Local) Subscribe(ctx context.Context, slug string, h Handler) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	id := l.nextID
	l.nextID++
	ch := make(chan localMsg, 64)
	if l.subs[slug] == nil {
		l.subs[slug] = make(map[int]chan localMsg)
	}
	l.subs[slug][id] = ch
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.subs[slug], id)
		if len(l.subs[slug]) == 0 {
			delete(l.subs, slug)
		}
		l.mu.Unlock()
		// release senders still waiting on queued messages
		for {
			select {
			case m := <-ch:
				if m.reply != nil {
					m.reply <- ErrClosed
				}
			default:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.done:
			return nil
		case m := <-ch:
			if m.reply != nil {
				m.reply <- handle(ctx, m.raw, h)
				continue
			}
			deliver(ctx, "local", m.raw, h, l.logFn)
		}
	}
}

// Subscribers reports the live subscriptions for slug.
func (l *Local) Subscribers(slug string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs[slug])
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.done)
	}
	return nil
}

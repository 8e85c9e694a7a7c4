// Package push delivers server-pushed state updates for one smartmenu slug.
// Each backend keeps its subscription alive with capped exponential backoff
// and hands normalized payloads to a Handler.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"smartmenu/wire"
)

// ErrNotState marks a pushed message that carries no recognizable state.
var ErrNotState = errors.New("push: message is not a state payload")

// ErrGaveUp is returned by Subscribe once reconnect attempts run out.
var ErrGaveUp = errors.New("push: reconnect attempts exhausted")

// Handler receives one normalized payload. Errors are logged, never fatal.
type Handler func(ctx context.Context, p *wire.Payload) error

// Subscriber streams state updates for a slug. Subscribe blocks until ctx is
// done, the backend is closed, or reconnect attempts are exhausted.
type Subscriber interface {
	Subscribe(ctx context.Context, slug string, h Handler) error
	Close() error
}

type LogFunc func(format string, args ...any)

// stateKeys are the top-level keys that make an unwrapped message a state.
var stateKeys = []string{"order", "menuId", "tableId", "restaurant"}

// Normalize accepts either {"state": {...}} or a bare state document and
// returns the decoded payload. A bare document must carry at least one of
// order, menuId, tableId or restaurant with a non-null value.
func Normalize(raw []byte) (*wire.Payload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("push: decode message: %w", err)
	}
	if inner, ok := top["state"]; ok && !isNull(inner) {
		p, err := wire.Decode(inner)
		if err != nil {
			return nil, fmt.Errorf("push: decode state: %w", err)
		}
		return p, nil
	}
	for _, k := range stateKeys {
		if v, ok := top[k]; ok && !isNull(v) {
			p, err := wire.Decode(raw)
			if err != nil {
				return nil, fmt.Errorf("push: decode state: %w", err)
			}
			return p, nil
		}
	}
	return nil, ErrNotState
}

func isNull(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null")) || bytes.Equal(v, []byte("false"))
}

// Backoff is the reconnect schedule: Initial doubling per attempt up to Max,
// giving up after MaxAttempts consecutive failures.
type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{Initial: time.Second, Max: 10 * time.Second, MaxAttempts: 5}
}

func (b Backoff) withDefaults() Backoff {
	d := DefaultBackoff()
	if b.Initial <= 0 {
		b.Initial = d.Initial
	}
	if b.Max <= 0 {
		b.Max = d.Max
	}
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = d.MaxAttempts
	}
	return b
}

// Delay is the wait before reconnect attempt n (1-based).
func (b Backoff) Delay(n int) time.Duration {
	b = b.withDefaults()
	if n < 1 {
		n = 1
	}
	d := b.Initial
	for i := 1; i < n; i++ {
		d *= 2
		if d >= b.Max {
			return b.Max
		}
	}
	if d > b.Max {
		return b.Max
	}
	return d
}

// session is one connection lifetime. It calls connected once the backend is
// subscribed and returns when the connection drops.
type session func(ctx context.Context, connected func()) error

// retry runs sess until ctx ends, reconnecting per b. A successful connect
// resets the attempt counter.
func retry(ctx context.Context, name string, b Backoff, logFn LogFunc, sess session) error {
	b = b.withDefaults()
	attempt := 0
	for {
		err := sess(ctx, func() {
			if attempt > 0 {
				logFn("push: %s reconnected", name)
			}
			attempt = 0
		})
		if ctx.Err() != nil || errors.Is(err, ErrClosed) {
			return nil
		}
		attempt++
		if attempt > b.MaxAttempts {
			logFn("push: %s giving up after %d attempts: %v", name, b.MaxAttempts, err)
			return fmt.Errorf("%w: %s: %v", ErrGaveUp, name, err)
		}
		delay := b.Delay(attempt)
		logFn("push: %s disconnected (%v), retry %d/%d in %s", name, err, attempt, b.MaxAttempts, delay)
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// deliver normalizes raw and hands it to h. Non-state messages are skipped.
func deliver(ctx context.Context, name string, raw []byte, h Handler, logFn LogFunc) {
	if err := handle(ctx, raw, h); err != nil && !errors.Is(err, ErrNotState) {
		logFn("push: %s: %v", name, err)
	}
}

// handle normalizes raw and runs h on it.
func handle(ctx context.Context, raw []byte, h Handler) error {
	p, err := Normalize(raw)
	if err != nil {
		return err
	}
	if err := h(ctx, p); err != nil {
		return fmt.Errorf("handler: %w", err)
	}
	return nil
}

func defaultLog(fn LogFunc) LogFunc {
	if fn == nil {
		return log.Printf
	}
	return fn
}

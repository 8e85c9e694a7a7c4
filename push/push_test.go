package push

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"smartmenu/config"
	"smartmenu/wire"
)

func quiet(string, ...any) {}

func TestNormalize_Wrapped(t *testing.T) {
	p, err := Normalize([]byte(`{"state":{"order":{"id":"5","status":"opened","totalCount":2}}}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !p.HasOrder() || p.Order.ID != "5" || p.Order.TotalCount != 2 {
		t.Fatalf("payload: %+v", p.Order)
	}
}

func TestNormalize_Bare(t *testing.T) {
	for _, raw := range []string{
		`{"menuId":7}`,
		`{"tableId":"3","session":"x"}`,
		`{"restaurant":{"id":1}}`,
		`{"order":{"id":"9"}}`,
	} {
		if _, err := Normalize([]byte(raw)); err != nil {
			t.Errorf("%s: %v", raw, err)
		}
	}
}

func TestNormalize_NotState(t *testing.T) {
	for _, raw := range []string{
		`{}`,
		`{"type":"ping"}`,
		`{"state":null}`,
		`{"order":null,"menuId":null}`,
		`{"session":"only"}`,
	} {
		if _, err := Normalize([]byte(raw)); !errors.Is(err, ErrNotState) {
			t.Errorf("%s: expected ErrNotState, got %v", raw, err)
		}
	}
	if _, err := Normalize([]byte(`not json`)); err == nil || errors.Is(err, ErrNotState) {
		t.Errorf("garbage: expected decode error, got %v", err)
	}
}

func TestBackoffDelay(t *testing.T) {
	b := DefaultBackoff()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Errorf("attempt %d: got %s want %s", i+1, got, w)
		}
	}
	if got := (Backoff{}).Delay(0); got != time.Second {
		t.Errorf("zero backoff: %s", got)
	}
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	b := Backoff{Initial: time.Millisecond, Max: 2 * time.Millisecond, MaxAttempts: 3}
	calls := 0
	err := retry(context.Background(), "test", b, quiet, func(ctx context.Context, connected func()) error {
		calls++
		return fmt.Errorf("refused")
	})
	if !errors.Is(err, ErrGaveUp) {
		t.Fatalf("expected ErrGaveUp, got %v", err)
	}
	if calls != 4 {
		t.Fatalf("calls = %d, want initial try plus 3 retries", calls)
	}
}

func TestRetry_ConnectResetsAttempts(t *testing.T) {
	b := Backoff{Initial: time.Millisecond, Max: time.Millisecond, MaxAttempts: 2}
	calls := 0
	err := retry(context.Background(), "test", b, quiet, func(ctx context.Context, connected func()) error {
		calls++
		// every other session connects before dropping
		if calls%2 == 0 && calls < 10 {
			connected()
		}
		return fmt.Errorf("dropped")
	})
	if !errors.Is(err, ErrGaveUp) {
		t.Fatalf("expected ErrGaveUp, got %v", err)
	}
	if calls < 10 {
		t.Fatalf("calls = %d, connects should have reset the counter", calls)
	}
}

func TestRetry_StopsOnCancelAndClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry(ctx, "test", DefaultBackoff(), quiet, func(ctx context.Context, connected func()) error {
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("cancelled: %v", err)
	}
	err = retry(context.Background(), "test", DefaultBackoff(), quiet, func(ctx context.Context, connected func()) error {
		return ErrClosed
	})
	if err != nil {
		t.Fatalf("closed: %v", err)
	}
}

func TestLocal_DeliversToSlugSubscribers(t *testing.T) {
	l := NewLocal(quiet)
	defer l.Close()

	var mu sync.Mutex
	var got []*wire.Payload
	delivered := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- l.Subscribe(ctx, "table-1", func(_ context.Context, p *wire.Payload) error {
			mu.Lock()
			got = append(got, p)
			mu.Unlock()
			delivered <- struct{}{}
			return nil
		})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for l.Subscribers("table-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never registered")
		}
		time.Sleep(time.Millisecond)
	}

	if n := l.Publish("table-2", []byte(`{"menuId":1}`)); n != 0 {
		t.Fatalf("other slug reached %d subscribers", n)
	}
	l.Publish("table-1", []byte(`{"type":"ping"}`))
	if n := l.Publish("table-1", []byte(`{"state":{"menuId":42}}`)); n != 1 {
		t.Fatalf("publish reached %d", n)
	}

	select {
	case <-delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].MenuID == nil || got[0].MenuID.String() != "42" {
		t.Fatalf("got %+v", got)
	}
	if l.Subscribers("table-1") != 0 {
		t.Fatal("subscription not released")
	}
}

func TestLocal_CloseEndsSubscribe(t *testing.T) {
	l := NewLocal(quiet)
	done := make(chan error, 1)
	go func() {
		done <- l.Subscribe(context.Background(), "s", func(context.Context, *wire.Payload) error { return nil })
	}()
	for l.Subscribers("s") == 0 {
		time.Sleep(time.Millisecond)
	}
	l.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe did not return after close")
	}
	if err := l.Subscribe(context.Background(), "s", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("subscribe after close: %v", err)
	}
}

func TestLocal_SendReturnsHandlerError(t *testing.T) {
	l := NewLocal(quiet)
	defer l.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stale := errors.New("stale")
	go l.Subscribe(ctx, "s", func(_ context.Context, p *wire.Payload) error {
		if p.MenuID != nil && p.MenuID.String() == "1" {
			return stale
		}
		return nil
	})
	for l.Subscribers("s") == 0 {
		time.Sleep(time.Millisecond)
	}

	if n, err := l.Send(ctx, "s", []byte(`{"menuId":2}`)); n != 1 || err != nil {
		t.Fatalf("send: n=%d err=%v", n, err)
	}
	if _, err := l.Send(ctx, "s", []byte(`{"menuId":1}`)); !errors.Is(err, stale) {
		t.Fatalf("handler error not returned: %v", err)
	}
	if _, err := l.Send(ctx, "s", []byte(`{"type":"ping"}`)); !errors.Is(err, ErrNotState) {
		t.Fatalf("non-state: %v", err)
	}
	if n, err := l.Send(ctx, "other", []byte(`{"menuId":2}`)); n != 0 || err != nil {
		t.Fatalf("no subscribers: n=%d err=%v", n, err)
	}
}

func TestDeliver_HandlerErrorIsLogged(t *testing.T) {
	var logged []string
	logFn := func(f string, a ...any) { logged = append(logged, fmt.Sprintf(f, a...)) }
	deliver(context.Background(), "x", []byte(`{"menuId":1}`), func(context.Context, *wire.Payload) error {
		return fmt.Errorf("boom")
	}, logFn)
	deliver(context.Background(), "x", []byte(`{"type":"noise"}`), nil, logFn)
	if len(logged) != 1 {
		t.Fatalf("logged %q", logged)
	}
}

func TestKafkaMatches(t *testing.T) {
	if !Matches(kafka.Message{Key: []byte("t1")}, "t1") {
		t.Error("keyed message should match")
	}
	if Matches(kafka.Message{Key: []byte("t2")}, "t1") || Matches(kafka.Message{}, "t1") {
		t.Error("foreign or unkeyed message matched")
	}
}

func TestMQTTTopic(t *testing.T) {
	m := NewMQTT(MQTTOptions{TopicPrefix: "smartmenu/"}, DefaultBackoff(), quiet)
	if got := m.Topic("abc"); got != "smartmenu/abc" {
		t.Fatalf("topic %q", got)
	}
	if m.opts.ClientID == "" {
		t.Fatal("client id not generated")
	}
	if m.Connected() {
		t.Fatal("connected before subscribe")
	}
}

func TestNew(t *testing.T) {
	cfg := config.Defaults().Push
	for backend, wantNil := range map[string]bool{"none": true, "local": false, "mqtt": false} {
		cfg.Backend = backend
		sub, err := New(&cfg, nil, quiet)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if (sub == nil) != wantNil {
			t.Errorf("%s: sub = %v", backend, sub)
		}
	}
	cfg.Backend = "redis"
	if _, err := New(&cfg, nil, quiet); err == nil {
		t.Error("redis without client should fail")
	}
	cfg.Backend = "kafka"
	cfg.Kafka.Brokers = nil
	if _, err := New(&cfg, nil, quiet); err == nil {
		t.Error("kafka without brokers should fail")
	}
	cfg.Backend = "smoke-signals"
	if _, err := New(&cfg, nil, quiet); err == nil {
		t.Error("unknown backend should fail")
	}
}

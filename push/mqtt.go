package push

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// MQTT subscribes to TopicPrefix/slug. Paho's own reconnect is off so the
// shared backoff governs retries.
type MQTT struct {
	opts    MQTTOptions
	backoff Backoff
	logFn   LogFunc

	mu     sync.Mutex
	client mqtt.Client
	closed bool
	done   chan struct{}
}

func NewMQTT(o MQTTOptions, b Backoff, logFn LogFunc) *MQTT {
	if o.ClientID == "" {
		o.ClientID = "smartmenu-" + uuid.NewString()[:8]
	}
	return &MQTT{opts: o, backoff: b, logFn: defaultLog(logFn), done: make(chan struct{})}
}

func (m *MQTT) Topic(slug string) string {
	return strings.TrimSuffix(m.opts.TopicPrefix, "/") + "/" + slug
}

func (m *MQTT) Subscribe(ctx context.Context, slug string, h Handler) error {
	topic := m.Topic(slug)
	return retry(ctx, "mqtt "+topic, m.backoff, m.logFn, func(ctx context.Context, connected func()) error {
		if m.isClosed() {
			return ErrClosed
		}
		lost := make(chan error, 1)
		co := mqtt.NewClientOptions().
			AddBroker(m.opts.Broker).
			SetClientID(m.opts.ClientID).
			SetUsername(m.opts.Username).
			SetPassword(m.opts.Password).
			SetAutoReconnect(false).
			SetConnectTimeout(10 * time.Second).
			SetConnectionLostHandler(func(_ mqtt.Client, err error) {
				select {
				case lost <- err:
				default:
				}
			})
		client := mqtt.NewClient(co)
		if err := wait(client.Connect()); err != nil {
			return fmt.Errorf("connect %s: %w", m.opts.Broker, err)
		}
		m.setClient(client)
		defer func() {
			m.setClient(nil)
			client.Disconnect(250)
		}()

		tok := client.Subscribe(topic, m.opts.QoS, func(_ mqtt.Client, msg mqtt.Message) {
			deliver(ctx, "mqtt", msg.Payload(), h, m.logFn)
		})
		if err := wait(tok); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		connected()
		m.logFn("push: mqtt subscribed to %s", topic)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.done:
			return ErrClosed
		case err := <-lost:
			if m.isClosed() {
				return ErrClosed
			}
			return fmt.Errorf("connection lost: %w", err)
		}
	})
}

func wait(t mqtt.Token) error {
	if !t.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("timed out")
	}
	return t.Error()
}

func (m *MQTT) setClient(c mqtt.Client) {
	m.mu.Lock()
	m.client = c
	m.mu.Unlock()
}

// Connected reports whether a broker session is currently up.
func (m *MQTT) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client != nil && m.client.IsConnectionOpen()
}

func (m *MQTT) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MQTT) Close() error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	m.mu.Unlock()
	return nil
}

package push

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"smartmenu/config"
)

// New builds the configured backend. It returns nil for "none". The redis
// client may be nil unless the redis backend is selected.
func New(cfg *config.PushConfig, rdb *redis.Client, logFn LogFunc) (Subscriber, error) {
	b := Backoff{
		Initial:     cfg.Reconnect.Initial,
		Max:         cfg.Reconnect.Max,
		MaxAttempts: cfg.Reconnect.MaxAttempts,
	}
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "local":
		return NewLocal(logFn), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("push: redis backend needs a redis client")
		}
		return NewRedis(rdb, cfg.Redis.ChannelPrefix, b, logFn), nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, fmt.Errorf("push: kafka backend needs brokers")
		}
		return NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, b, logFn), nil
	case "mqtt":
		return NewMQTT(MQTTOptions{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		}, b, logFn), nil
	}
	return nil, fmt.Errorf("push: unknown backend %q", cfg.Backend)
}

// Package config loads the agent's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Smartmenu SmartmenuConfig `yaml:"smartmenu"`
	Hydration HydrationConfig `yaml:"hydration"`
	Push      PushConfig      `yaml:"push"`
	Redis     RedisConfig     `yaml:"redis"`
	Cache     CacheConfig     `yaml:"cache"`
	Database  DatabaseConfig  `yaml:"database"`
	Web       WebConfig       `yaml:"web"`
}

type SmartmenuConfig struct {
	BaseURL string `yaml:"base_url"`
	// Slug overrides the body data-smartmenu-id of the bootstrap page.
	Slug string `yaml:"slug"`
	// BootstrapFile is a saved page to bootstrap from instead of fetching it.
	BootstrapFile string `yaml:"bootstrap_file"`
	VersionGate   bool   `yaml:"version_gate"`
	Debug         bool   `yaml:"debug"`
}

type HydrationConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	MaxBytes  int64         `yaml:"max_bytes"`
	UserAgent string        `yaml:"user_agent"`
}

type PushConfig struct {
	Backend   string          `yaml:"backend"` // "none", "local", "redis", "kafka", "mqtt"
	Redis     RedisPushConfig `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
}

type RedisPushConfig struct {
	ChannelPrefix string `yaml:"channel_prefix"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type ReconnectConfig struct {
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
	MaxAttempts int           `yaml:"max_attempts"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheConfig controls the Redis copy of the latest snapshot.
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	KeyPrefix string        `yaml:"key_prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

type DatabaseConfig struct {
	Driver   string         `yaml:"driver"` // "sqlite" or "postgres"
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`

	// JournalKeep caps journal entries per slug; 0 keeps everything.
	JournalKeep int `yaml:"journal_keep"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type WebConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	SessionSecret     string `yaml:"session_secret"`
	AdminUser         string `yaml:"admin_user"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

func Defaults() *Config {
	return &Config{
		Smartmenu: SmartmenuConfig{
			BaseURL: "http://localhost:3000",
		},
		Hydration: HydrationConfig{
			Timeout:   10 * time.Second,
			MaxBytes:  4 << 20,
			UserAgent: "smartmenu-agent/1.0",
		},
		Push: PushConfig{
			Backend: "local",
			Redis:   RedisPushConfig{ChannelPrefix: "smartmenu:"},
			Kafka:   KafkaConfig{Topic: "smartmenu.state", GroupID: "smartmenu-agent"},
			MQTT:    MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "smartmenu", QoS: 1},
			Reconnect: ReconnectConfig{
				Initial:     time.Second,
				Max:         10 * time.Second,
				MaxAttempts: 5,
			},
		},
		Redis: RedisConfig{Address: "localhost:6379"},
		Cache: CacheConfig{KeyPrefix: "smartmenu:snapshot:", TTL: 24 * time.Hour},
		Database: DatabaseConfig{
			Driver:      "sqlite",
			SQLite:      SQLiteConfig{Path: "smartmenu.db"},
			JournalKeep: 500,
			Postgres: PostgresConfig{
				Host:    "localhost",
				Port:    5432,
				SSLMode: "disable",
			},
		},
		Web: WebConfig{
			Host:      "0.0.0.0",
			Port:      8090,
			AdminUser: "admin",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	switch c.Push.Backend {
	case "", "none", "local", "redis", "kafka", "mqtt":
	default:
		return fmt.Errorf("config: unsupported push backend %q", c.Push.Backend)
	}
	if c.Push.Backend == "kafka" && len(c.Push.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka push backend needs brokers")
	}
	return nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

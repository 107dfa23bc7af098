// Package config loads service settings from the environment and an optional file.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

type Config struct {
	Port     string
	GRPCPort string
	LogLevel string
	CartKey  string

	Storage StorageConfig
	Events  EventsConfig
	OTel    OTelConfig
}

type StorageConfig struct {
	Backend    string
	RedisAddr  string
	SQLitePath string
}

type EventsConfig struct {
	KafkaBrokers []string
	TopicPrefix  string
}

type OTelConfig struct {
	Enabled  bool
	Endpoint string
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply. Environment variables use the
// upper-cased key with dots replaced by underscores (STORAGE_BACKEND).
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("grpc_port", "7070")
	v.SetDefault("log_level", "info")
	v.SetDefault("cart.key", "@GoMarketPlace:cart")
	v.SetDefault("storage.backend", BackendSQLite)
	v.SetDefault("storage.sqlite_path", "data/cart.db")
	v.SetDefault("events.kafka_topic_prefix", "")
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Names the other services of the stack already use.
	_ = v.BindEnv("storage.redis_addr", "STORAGE_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("otel.endpoint", "OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := Config{
		Port:     v.GetString("port"),
		GRPCPort: v.GetString("grpc_port"),
		LogLevel: v.GetString("log_level"),
		CartKey:  v.GetString("cart.key"),
		Storage: StorageConfig{
			Backend:    strings.ToLower(v.GetString("storage.backend")),
			RedisAddr:  v.GetString("storage.redis_addr"),
			SQLitePath: v.GetString("storage.sqlite_path"),
		},
		Events: EventsConfig{
			KafkaBrokers: splitList(v.GetStringSlice("events.kafka_brokers")),
			TopicPrefix:  v.GetString("events.kafka_topic_prefix"),
		},
		OTel: OTelConfig{
			Enabled:  v.GetBool("otel.enabled"),
			Endpoint: v.GetString("otel.endpoint"),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.CartKey == "" {
		return errors.New("cart.key must not be empty")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Storage.RedisAddr == "" {
			return errors.New("storage.redis_addr (or REDIS_ADDR) is required for the redis backend")
		}
		// Append the default port only when none is given.
		if !strings.Contains(c.Storage.RedisAddr, ":") {
			c.Storage.RedisAddr += ":6379"
		}
	default:
		return errors.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

// splitList flattens comma-separated entries, so both "a,b" from the
// environment and ["a", "b"] from a file work.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Package config loads HeadCache's process-wide configuration: Kafka
// brokers, the topics to track, storage paths, and the tunables exposed
// by headcache.Config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rzbill/headcache/pkg/log"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	Kafka   KafkaConfig   `koanf:"kafka"`
	Storage StorageConfig `koanf:"storage"`
	Cache   CacheConfig   `koanf:"cache"`
	HTTP    HTTPConfig    `koanf:"http"`
	Log     log.Config    `koanf:"log"`
}

// KafkaConfig names the cluster and topics HeadCache tracks.
type KafkaConfig struct {
	Brokers  []string `koanf:"brokers"`
	ClientID string   `koanf:"clientId"`
	Topics   []string `koanf:"topics"`
}

// StorageConfig points at the embedded pointer store.
type StorageConfig struct {
	DataDir string `koanf:"dataDir"`
}

// CacheConfig mirrors headcache.Config's tunables, expressed as plain
// durations/ints so it can be decoded straight from file/env.
type CacheConfig struct {
	PollTimeout                   time.Duration `koanf:"pollTimeout"`
	CleanInterval                 time.Duration `koanf:"cleanInterval"`
	MaxSize                       int           `koanf:"maxSize"`
	PartitionDiscoveryBaseBackoff time.Duration `koanf:"partitionDiscoveryBaseBackoff"`
	PartitionDiscoveryMaxBackoff  time.Duration `koanf:"partitionDiscoveryMaxBackoff"`
	PartitionDiscoveryAttempts    int           `koanf:"partitionDiscoveryAttempts"`
}

// HTTPConfig configures the query HTTP server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns built-in defaults, the values used when no file is
// given and no environment override is set.
func Default() Config {
	return Config{
		Kafka: KafkaConfig{
			Brokers:  []string{"localhost:9092"},
			ClientID: "headcache",
		},
		Storage: StorageConfig{DataDir: DefaultDataDir()},
		Cache: CacheConfig{
			PollTimeout:                   10 * time.Millisecond,
			CleanInterval:                 3 * time.Second,
			MaxSize:                       100_000,
			PartitionDiscoveryBaseBackoff: 3 * time.Millisecond,
			PartitionDiscoveryMaxBackoff:  300 * time.Millisecond,
			PartitionDiscoveryAttempts:    3,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log:  log.Config{Level: "info", Format: "json"},
	}
}

// Load builds Config from, in increasing priority: built-in defaults,
// an optional YAML file at path, and HEADCACHE_-prefixed environment
// variables (HEADCACHE_KAFKA_BROKERS, HEADCACHE_CACHE_MAXSIZE, ...). An
// empty path skips the file layer.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	def := Default()
	if err := k.Load(structs.Provider(def, "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	// envKey lowercases every key; map it back onto the camelCase key the
	// defaults registered (cache.maxsize -> cache.maxSize).
	canonical := make(map[string]string)
	for _, key := range k.Keys() {
		canonical[strings.ToLower(key)] = key
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("HEADCACHE_", ".", func(key, value string) (string, interface{}) {
		name, v := envValue(key, value)
		if c, ok := canonical[name]; ok {
			name = c
		}
		return name, v
	}), nil); err != nil {
		return Config{}, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, nil
}

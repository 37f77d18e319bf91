// Package config loads the daemon configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the marketd daemon configuration.
type Config struct {
	// ListenAddr serves the transaction submission API.
	ListenAddr string `yaml:"listenAddr"`

	// DataDir holds the pebble record store and outbox.
	DataDir string `yaml:"dataDir"`

	// CustodyProgram is the base58 identity of the custody collaborator the
	// engine settles against.
	CustodyProgram string `yaml:"custodyProgram"`

	// StorageDepositLamports is escrowed per listing (0 disables).
	StorageDepositLamports uint64 `yaml:"storageDepositLamports"`

	Kafka   KafkaConfig   `yaml:"kafka"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// KafkaConfig configures the settlement event broadcaster. Empty Brokers
// disables broadcasting.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

// MetricsConfig configures the prometheus endpoint. Empty ListenAddr
// disables it.
type MetricsConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		DataDir:    "data",
		Kafka: KafkaConfig{
			Topic:        "marketplace.settlements",
			PollInterval: 250 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			ListenAddr: ":9102",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error; defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MARKETD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MARKETD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("MARKETD_CUSTODY_PROGRAM"); v != "" {
		cfg.CustodyProgram = v
	}
	if v := os.Getenv("MARKETD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("MARKETD_KAFKA_TOPIC"); v != "" {
		cfg.Kafka.Topic = v
	}
	if v := os.Getenv("MARKETD_METRICS_ADDR"); v != "" {
		cfg.Metrics.ListenAddr = v
	}
}

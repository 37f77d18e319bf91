package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.ListenAddr != want.ListenAddr || cfg.DataDir != want.DataDir {
		t.Errorf("cfg = %+v, want defaults", cfg)
	}
	if cfg.Kafka.Topic != "marketplace.settlements" || cfg.Kafka.PollInterval != 250*time.Millisecond {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
	if len(cfg.Kafka.Brokers) != 0 {
		t.Error("broadcaster must be disabled by default")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketd.yaml")
	data := []byte(`
listenAddr: ":9999"
dataDir: "/var/lib/marketd"
custodyProgram: "3yZe7d"
storageDepositLamports: 5000
kafka:
  brokers: ["k1:9092", "k2:9092"]
  topic: "events"
  pollInterval: 1s
metrics:
  listenAddr: ""
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" || cfg.DataDir != "/var/lib/marketd" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CustodyProgram != "3yZe7d" || cfg.StorageDepositLamports != 5000 {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Topic != "events" || cfg.Kafka.PollInterval != time.Second {
		t.Errorf("kafka = %+v", cfg.Kafka)
	}
	if cfg.Metrics.ListenAddr != "" {
		t.Error("metrics endpoint must be disabled by the empty address")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("listenAddr: [not a string"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("Load must fail on malformed yaml")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETD_LISTEN_ADDR", ":7070")
	t.Setenv("MARKETD_DATA_DIR", "/tmp/marketd")
	t.Setenv("MARKETD_KAFKA_BROKERS", "a:9092,b:9092,c:9092")
	t.Setenv("MARKETD_KAFKA_TOPIC", "override.topic")
	t.Setenv("MARKETD_METRICS_ADDR", ":9999")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7070" || cfg.DataDir != "/tmp/marketd" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Kafka.Brokers) != 3 || cfg.Kafka.Brokers[2] != "c:9092" {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "override.topic" || cfg.Metrics.ListenAddr != ":9999" {
		t.Errorf("cfg = %+v", cfg)
	}
}

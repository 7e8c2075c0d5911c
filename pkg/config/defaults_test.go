package config

import (
	"testing"
	"time"

	"github.com/marmos91/ferry/internal/bytesize"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Transfer(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Broker.Prefetch != 1 {
		t.Errorf("Expected prefetch 1, got %d", cfg.Broker.Prefetch)
	}
	if cfg.Broker.Heartbeat != 10*time.Second {
		t.Errorf("Expected heartbeat 10s, got %v", cfg.Broker.Heartbeat)
	}
	if cfg.Stream.ChunkSize != 64*bytesize.KiB {
		t.Errorf("Expected chunk size 64Ki, got %v", cfg.Stream.ChunkSize)
	}
	if cfg.Stream.BufferChunks != 1 {
		t.Errorf("Expected one buffered chunk, got %d", cfg.Stream.BufferChunks)
	}
	if cfg.Upload.RequeueOpenFailures {
		t.Error("Open failures must be dropped by default")
	}
	if cfg.Source.Auth.Issuer != "" {
		t.Error("Signer defaults must not apply without a signing key")
	}
}

func TestApplyDefaults_SignerOnlyWithKey(t *testing.T) {
	cfg := &Config{Source: SourceConfig{Auth: SourceAuthConfig{SigningKey: "0123456789abcdef0123456789abcdef"}}}
	ApplyDefaults(cfg)

	if cfg.Source.Auth.Issuer != "ferry" {
		t.Errorf("Expected issuer 'ferry', got %q", cfg.Source.Auth.Issuer)
	}
	if cfg.Source.Auth.TTL != 5*time.Minute {
		t.Errorf("Expected ttl 5m, got %v", cfg.Source.Auth.TTL)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/ferry.log",
		},
		ShutdownTimeout: 60 * time.Second,
		Broker: BrokerConfig{
			UploadQueue: "up",
			Prefetch:    4,
		},
		Destination: DestinationConfig{Driver: "S3"},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "/var/log/ferry.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Broker.UploadQueue != "up" || cfg.Broker.Prefetch != 4 {
		t.Errorf("Expected explicit broker values to be preserved, got %+v", cfg.Broker)
	}
	if cfg.Destination.Driver != DriverS3 {
		t.Errorf("Expected driver normalized to 's3', got %q", cfg.Destination.Driver)
	}
}

func TestApplyDefaults_DurableQueues(t *testing.T) {
	cfg := GetDefaultConfig()
	if cfg.Broker.Durable == nil || !*cfg.Broker.Durable {
		t.Errorf("Expected durable queues by default, got %v", cfg.Broker.Durable)
	}

	durable := false
	cfg = &Config{Broker: BrokerConfig{Durable: &durable}}
	ApplyDefaults(cfg)
	if cfg.Broker.DurableQueues() {
		t.Error("Explicit durable: false must be kept")
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

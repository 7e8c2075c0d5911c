package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/ferry/internal/bytesize"
	"github.com/marmos91/ferry/pkg/journal"
)

// Config represents the ferry worker configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (FERRY_*, then the legacy names listed in legacyEnv)
//  2. Configuration file (YAML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics configures the health and metrics HTTP server
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Broker configures the AMQP connection and the two task queues
	Broker BrokerConfig `mapstructure:"broker" yaml:"broker"`

	// FileService is the gRPC endpoint serving both the account and file services
	FileService FileServiceConfig `mapstructure:"file_service" yaml:"file_service"`

	// Source is the HTTP file-store that holds the bytes being transferred
	Source SourceConfig `mapstructure:"source" yaml:"source"`

	// Destination selects where part bytes are written
	Destination DestinationConfig `mapstructure:"destination" yaml:"destination"`

	// Stream bounds the memory held by one transfer
	Stream StreamConfig `mapstructure:"stream" yaml:"stream"`

	// Upload tunes the upload pipeline policy
	Upload UploadConfig `mapstructure:"upload" yaml:"upload"`

	// Journal configures the local transfer journal
	Journal journal.Config `mapstructure:"journal" yaml:"journal"`

	// ShutdownTimeout is the maximum time to wait for in-flight tasks on shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the HTTP server for health probes and metrics.
// The server always runs; Enabled only controls Prometheus collection and
// the /metrics route.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port. Legacy override: PORT
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// BrokerConfig configures the AMQP broker.
type BrokerConfig struct {
	// URL is the AMQP URI. Legacy override: RABBITMQ_URI
	URL string `mapstructure:"url" validate:"required,url" yaml:"url"`

	// UploadQueue carries file part upload tasks.
	// Default: "FILE_PART_UPLOAD"
	UploadQueue string `mapstructure:"upload_queue" validate:"required" yaml:"upload_queue"`

	// DeleteQueue carries file part deletion tasks.
	// Default: "FILE_PART_DELETE"
	DeleteQueue string `mapstructure:"delete_queue" validate:"required" yaml:"delete_queue"`

	// Prefetch is the per-channel unacknowledged delivery limit.
	// Default: 1
	Prefetch int `mapstructure:"prefetch" validate:"omitempty,min=1" yaml:"prefetch"`

	// Durable declares both queues durable. It must match how producers
	// declare the queues or the broker refuses the declaration.
	// Default: true
	Durable *bool `mapstructure:"durable" yaml:"durable"`

	// Heartbeat is the AMQP heartbeat interval.
	// Default: 10s
	Heartbeat time.Duration `mapstructure:"heartbeat" yaml:"heartbeat"`
}

// DurableQueues reports whether queues are declared durable.
func (c BrokerConfig) DurableQueues() bool {
	return c.Durable == nil || *c.Durable
}

// FileServiceConfig configures the gRPC connection to the account and file services.
type FileServiceConfig struct {
	// Address is the gRPC target. Legacy override: FILE_MS_URI
	Address string `mapstructure:"address" validate:"required" yaml:"address"`

	// Timeout bounds each unary call.
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// KeepAlive is the client keepalive ping interval. Zero disables pings.
	KeepAlive time.Duration `mapstructure:"keepalive" yaml:"keepalive"`
}

// SourceConfig configures the HTTP file-store.
type SourceConfig struct {
	// BaseURL is the file-store root. Legacy override: SERVER_URI
	BaseURL string `mapstructure:"base_url" validate:"required,url" yaml:"base_url"`

	// Prefix is the path under which parts are served.
	// Default: "upload/file"
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// Timeout bounds the wait for response headers.
	// Default: 30s
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`

	Auth SourceAuthConfig `mapstructure:"auth" yaml:"auth"`
}

// SourceAuthConfig selects the bearer token sent to the file-store. A
// static Token wins over SigningKey.
type SourceAuthConfig struct {
	// Token is sent verbatim. Legacy override: AUTHORIZATION
	Token string `mapstructure:"token" yaml:"token,omitempty"`

	// SigningKey mints short-lived HS256 tokens. At least 32 characters.
	SigningKey string `mapstructure:"signing_key" validate:"omitempty,min=32" yaml:"signing_key,omitempty"`

	// Issuer is the iss claim of minted tokens.
	// Default: "ferry"
	Issuer string `mapstructure:"issuer" yaml:"issuer,omitempty"`

	// Subject is the sub claim of minted tokens.
	Subject string `mapstructure:"subject" yaml:"subject,omitempty"`

	// TTL is the lifetime of minted tokens.
	// Default: 5m
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

// Destination drivers.
const (
	DriverGRPC = "grpc"
	DriverS3   = "s3"
)

// DestinationConfig selects the destination driver.
type DestinationConfig struct {
	// Driver is "grpc" (the account service upload stream) or "s3".
	// Default: "grpc"
	Driver string `mapstructure:"driver" validate:"required,oneof=grpc s3" yaml:"driver"`

	S3 S3Config `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3Config configures the S3 destination driver.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket,omitempty"`
	Region          string `mapstructure:"region" yaml:"region,omitempty"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// StreamConfig bounds the memory one transfer may hold.
type StreamConfig struct {
	// ChunkSize is the largest chunk handed to the destination.
	// Supports human-readable formats: "64Ki", "1MiB"
	// Default: 64Ki
	ChunkSize bytesize.ByteSize `mapstructure:"chunk_size" validate:"lte=67108864" yaml:"chunk_size"`

	// BufferChunks is how many chunks may wait between reader and uploader.
	// Default: 1
	BufferChunks int `mapstructure:"buffer_chunks" validate:"gte=0" yaml:"buffer_chunks"`
}

// UploadConfig tunes the upload pipeline.
type UploadConfig struct {
	// RequeueOpenFailures requeues tasks whose source could not be opened
	// for a reason other than not found, instead of dropping them.
	RequeueOpenFailures bool `mapstructure:"requeue_open_failures" yaml:"requeue_open_failures"`
}

// legacyEnv maps config keys to the environment variables deployments
// already set. FERRY_* names take precedence.
var legacyEnv = map[string]string{
	"broker.url":           "RABBITMQ_URI",
	"file_service.address": "FILE_MS_URI",
	"source.base_url":      "SERVER_URI",
	"source.auth.token":    "AUTHORIZATION",
	"metrics.port":         "PORT",
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (FERRY_*, then legacy names)
//  2. Configuration file
//  3. Default values
//
// A missing config file is not an error: the worker can be configured from
// the environment alone.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Owner-only: the file may carry the broker password and signing key.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: FERRY_BROKER_UPLOAD_QUEUE=uploads
	v.SetEnvPrefix("FERRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows, so every field
	// is bound up front for env-only deployments.
	bindEnvs(v, reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnvs walks the mapstructure tags of t and binds each leaf key.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Time{}) {
			bindEnvs(v, f.Type, key)
			continue
		}

		envKey := "FERRY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if legacy, ok := legacyEnv[key]; ok {
			_ = v.BindEnv(key, envKey, legacy)
		} else {
			_ = v.BindEnv(key, envKey)
		}
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and numbers to bytesize.ByteSize, so
// config files can say "64Ki" or "1MiB".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/ferry, ~/.config/ferry, or "." as
// a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ferry")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "ferry")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}

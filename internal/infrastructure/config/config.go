// Package config loads and validates the relay configuration. Values come from
// an optional config file, FACENOTIFY_* environment variables and the defaults
// installed by InstallDefaultConfigValues, in viper's usual precedence order.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"go-face-notify/internal/infrastructure/logger"
)

// EnvPrefix is prepended to every environment variable override,
// e.g. FACENOTIFY_REGISTRY_BACKEND.
const EnvPrefix = "FACENOTIFY"

// Registry backends.
const (
	BackendBadger = "badger"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// ===============================================================================
// HTTP Related Config

// ServerConfig defines the HTTP server parameters
type ServerConfig struct {
	// ListenOn is the interface the HTTP server will listen on
	ListenOn string `mapstructure:"listen_on" json:"listen_on" validate:"required,ip"`
	// Port is the port the HTTP server will listen on
	Port uint16 `mapstructure:"listen_port" json:"listen_port" validate:"required,gt=0"`
	// ReadTimeout is the request read timeout in seconds
	ReadTimeout int `mapstructure:"read_timeout_sec" json:"read_timeout_sec" validate:"gte=0"`
	// WriteTimeout is the response write timeout in seconds. Zero disables it,
	// which long-lived SSE streams need.
	WriteTimeout int `mapstructure:"write_timeout_sec" json:"write_timeout_sec" validate:"gte=0"`
	// IdleTimeout is the keep-alive idle timeout in seconds
	IdleTimeout int `mapstructure:"idle_timeout_sec" json:"idle_timeout_sec" validate:"gte=0"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.ListenOn, s.Port)
}

// ===============================================================================
// Registry Related Config

// BadgerConfig defines the embedded badger store parameters
type BadgerConfig struct {
	// Dir is the data directory; required unless InMemory is set
	Dir string `mapstructure:"dir" json:"dir" validate:"required_without=InMemory"`
	// InMemory keeps the store in memory only
	InMemory bool `mapstructure:"in_memory" json:"in_memory"`
}

// RedisConfig defines the redis store parameters
type RedisConfig struct {
	// URL is the redis connection URL, e.g. redis://localhost:6379/0
	URL string `mapstructure:"url" json:"url" validate:"required,uri"`
	// HashKey is the hash holding connectionId -> subscriberId
	HashKey string `mapstructure:"hash_key" json:"hash_key" validate:"required"`
}

// RegistryConfig selects and configures the connection registry store
type RegistryConfig struct {
	Backend string       `mapstructure:"backend" json:"backend" validate:"required,oneof=badger redis memory"`
	Badger  BadgerConfig `mapstructure:"badger" json:"badger"`
	Redis   RedisConfig  `mapstructure:"redis" json:"redis"`
}

// ===============================================================================
// Stream Related Config

// NATSReconnectConfig defines reconnect parameters
type NATSReconnectConfig struct {
	// MaxAttempts sets the max number of reconnect attempts (-1 is unlimited)
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts" validate:"gte=-1"`
	// WaitInterval is the duration between reconnect attempts in seconds
	WaitInterval int `mapstructure:"wait_interval_sec" json:"wait_interval_sec" validate:"gte=1"`
}

// NATSConfig defines parameters for connecting to NATS server
type NATSConfig struct {
	ServerURI      string              `mapstructure:"server_uri" json:"server_uri" validate:"required,uri"`
	Subject        string              `mapstructure:"subject" json:"subject" validate:"required"`
	ConnectTimeout int                 `mapstructure:"connect_timeout_sec" json:"connect_timeout_sec" validate:"gte=1"`
	Reconnect      NATSReconnectConfig `mapstructure:"reconnect" json:"reconnect"`
}

// StreamConfig configures the recognition event source
type StreamConfig struct {
	Enabled bool       `mapstructure:"enabled" json:"enabled"`
	NATS    NATSConfig `mapstructure:"nats" json:"nats"`
}

// ===============================================================================
// Fan-out Related Config

// FanoutConfig tunes notification delivery
type FanoutConfig struct {
	// MaxConcurrency bounds the number of in-flight deliveries per batch
	MaxConcurrency int `mapstructure:"max_concurrency" json:"max_concurrency" validate:"gte=1"`
	// SendTimeout is the per-connection delivery timeout in seconds
	SendTimeout int `mapstructure:"send_timeout_sec" json:"send_timeout_sec" validate:"gte=1"`
	// StrictDecode aborts the whole batch on the first malformed record
	StrictDecode bool `mapstructure:"strict_decode" json:"strict_decode"`
}

// SendTimeoutDuration returns SendTimeout as a time.Duration.
func (f FanoutConfig) SendTimeoutDuration() time.Duration {
	return time.Duration(f.SendTimeout) * time.Second
}

// ===============================================================================
// Logging Related Config

// LoggingConfig mirrors logger.Config with textual levels
type LoggingConfig struct {
	Level    string `mapstructure:"level" json:"level" validate:"oneof=debug info warn warning error fatal"`
	Format   string `mapstructure:"format" json:"format" validate:"oneof=json text console"`
	Output   string `mapstructure:"output" json:"output" validate:"oneof=stdout stderr file"`
	FilePath string `mapstructure:"file_path" json:"file_path" validate:"required_if=Output file"`
}

// LoggerConfig converts the settings into a logger.Config seeded with the
// default static fields.
func (l LoggingConfig) LoggerConfig() (*logger.Config, error) {
	level, err := logger.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	cfg := logger.NewDefaultConfig()
	cfg.Level = level
	cfg.Format = l.Format
	cfg.Output = l.Output
	cfg.FilePath = l.FilePath
	return cfg, nil
}

// ===============================================================================
// Complete Config

// SystemConfig is the complete relay configuration
type SystemConfig struct {
	Server   ServerConfig   `mapstructure:"server" json:"server"`
	Registry RegistryConfig `mapstructure:"registry" json:"registry"`
	Stream   StreamConfig   `mapstructure:"stream" json:"stream"`
	Fanout   FanoutConfig   `mapstructure:"fanout" json:"fanout"`
	Logging  LoggingConfig  `mapstructure:"logging" json:"logging"`
}

// Validate checks the struct tags. Backend specific sections are only
// checked when that backend is selected.
func (c *SystemConfig) Validate() error {
	validate := validator.New()
	if err := validate.StructExcept(c, "Registry.Badger", "Registry.Redis", "Stream.NATS"); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Registry.Backend {
	case BackendBadger:
		if err := validate.Struct(&c.Registry.Badger); err != nil {
			return fmt.Errorf("invalid badger config: %w", err)
		}
	case BackendRedis:
		if err := validate.Struct(&c.Registry.Redis); err != nil {
			return fmt.Errorf("invalid redis config: %w", err)
		}
	}
	if c.Stream.Enabled {
		if err := validate.Struct(&c.Stream.NATS); err != nil {
			return fmt.Errorf("invalid stream config: %w", err)
		}
	}
	return nil
}

// ===============================================================================

// InstallDefaultConfigValues installs default config parameters in viper
func InstallDefaultConfigValues(v *viper.Viper) {
	v.SetDefault("server.listen_on", "0.0.0.0")
	v.SetDefault("server.listen_port", 8080)
	v.SetDefault("server.read_timeout_sec", 15)
	v.SetDefault("server.write_timeout_sec", 0)
	v.SetDefault("server.idle_timeout_sec", 60)

	v.SetDefault("registry.backend", BackendBadger)
	v.SetDefault("registry.badger.dir", "./data/registry")
	v.SetDefault("registry.badger.in_memory", false)
	v.SetDefault("registry.redis.url", "redis://127.0.0.1:6379/0")
	v.SetDefault("registry.redis.hash_key", "facenotify:connections")

	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.nats.server_uri", "nats://127.0.0.1:4222")
	v.SetDefault("stream.nats.subject", "rekognition.face-search")
	v.SetDefault("stream.nats.connect_timeout_sec", 30)
	v.SetDefault("stream.nats.reconnect.max_attempts", -1)
	v.SetDefault("stream.nats.reconnect.wait_interval_sec", 15)

	v.SetDefault("fanout.max_concurrency", 64)
	v.SetDefault("fanout.send_timeout_sec", 10)
	v.SetDefault("fanout.strict_decode", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file_path", "")
}

// Load resolves the configuration once. configFile may be empty.
func Load(configFile string) (*SystemConfig, error) {
	v := viper.New()
	InstallDefaultConfigValues(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*SystemConfig, error) {
	var cfg SystemConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wb-go/wbf/zlog"
)

// Config holds the main configuration for the application.
type Config struct {
	Server       Server       `mapstructure:"server"`
	Log          Log          `mapstructure:"log"`
	Cache        Cache        `mapstructure:"cache"`
	Blur         Blur         `mapstructure:"blur"`
	Dispatcher   Dispatcher   `mapstructure:"dispatcher"`
	Camera       Camera       `mapstructure:"camera"`
	Notification Notification `mapstructure:"notification"`
	Permissions  []string     `mapstructure:"permissions"` // granted runtime permissions
	Storage      Storage      `mapstructure:"storage"`
	Kafka        Kafka        `mapstructure:"kafka"`
	Retry        Retry        `mapstructure:"retry"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	HTTPPort  string `mapstructure:"http_port"`  // HTTP address to listen on
	PublicURL string `mapstructure:"public_url"` // base URL used in "View Image" links
}

// Log holds logging configuration.
type Log struct {
	Level string `mapstructure:"level"` // zerolog level name
}

// Cache holds the private cache directory.
type Cache struct {
	Dir string `mapstructure:"dir"`
}

// Blur holds blur task configuration.
type Blur struct {
	Factor      int  `mapstructure:"factor"`       // per-dimension downscale factor
	AttachImage bool `mapstructure:"attach_image"` // attach a preview to the notification
}

// Dispatcher holds work dispatcher configuration.
type Dispatcher struct {
	Transport string `mapstructure:"transport"` // "local" or "kafka"
	Workers   int    `mapstructure:"workers"`
	QueueSize int    `mapstructure:"queue_size"`
}

// Camera holds the snapshot camera configuration.
type Camera struct {
	SnapshotURL string        `mapstructure:"snapshot_url"` // empty disables capture
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Notification holds notification presenter configuration.
type Notification struct {
	Message string `mapstructure:"message"`
	Poster  string `mapstructure:"poster"`  // "log" or "kafka"
	Exposer string `mapstructure:"exposer"` // "http" or "object"
}

// Storage holds configuration for the object storage backend.
type Storage struct {
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	BucketName    string        `mapstructure:"bucket_name"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
}

// Kafka holds configuration for the Kafka message queue.
type Kafka struct {
	GroupID            string   `mapstructure:"group_id"`            // Consumer group ID
	Topic              string   `mapstructure:"topic"`               // work request topic
	NotificationsTopic string   `mapstructure:"notifications_topic"` // notification topic
	Brokers            []string `mapstructure:"brokers"`             // List of Kafka broker addresses
}

// Retry defines retry policy configuration.
type Retry struct {
	Attempts int           `mapstructure:"attempts"` // Number of retry attempts
	Delay    time.Duration `mapstructure:"delay"`    // Initial delay between retries
	Backoff  float64       `mapstructure:"backoff"`  // Backoff multiplier for delays
}

// setDefaults registers fallbacks for keys missing from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_port", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("cache.dir", "./cache")
	v.SetDefault("blur.factor", 10)
	v.SetDefault("dispatcher.transport", "local")
	v.SetDefault("dispatcher.workers", 1)
	v.SetDefault("dispatcher.queue_size", 16)
	v.SetDefault("camera.timeout", 10*time.Second)
	v.SetDefault("notification.poster", "log")
	v.SetDefault("notification.exposer", "http")
	v.SetDefault("storage.presign_expiry", time.Hour)
	v.SetDefault("retry.attempts", 3)
	v.SetDefault("retry.delay", 100*time.Millisecond)
	v.SetDefault("retry.backoff", 2.0)
}

// bindEnv binds critical environment variables to config keys.
func bindEnv(v *viper.Viper) error {
	bindings := map[string]string{
		"cache.dir":           "CACHE_DIR",
		"kafka.brokers":       "KAFKA_BROKERS",
		"storage.access_key":  "MINIO_ACCESS_KEY",
		"storage.secret_key":  "MINIO_SECRET_KEY",
		"camera.snapshot_url": "CAMERA_SNAPSHOT_URL",
	}

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	return nil
}

// Load reads the YAML configuration at path, applying defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// KAFKA_BROKERS arrives as a single comma-separated string.
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	return &cfg, nil
}

// MustLoad loads the configuration from the specified file path.
// It panics if the configuration file cannot be loaded or unmarshaled.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		zlog.Logger.Panic().Err(err).Msg("failed to load config")
	}

	return cfg
}
